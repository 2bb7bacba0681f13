package embedding

import (
	"fmt"

	"github.com/Harshitk-cp/hyperholmes/internal/domain"
)

// Provider constants
const (
	ProviderHash = "hash"
	ProviderMock = "mock"
)

const DefaultDimension = 128

// NewClient creates an embedding client based on the provider name.
// Returns an error if the provider is unknown or the dimension is not positive.
func NewClient(provider string, dim int) (domain.EmbeddingClient, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	switch provider {
	case ProviderHash, ProviderMock, "":
		return NewHashClient(dim), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: hash, mock)", provider)
	}
}
