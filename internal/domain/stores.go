package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Snapshot is a persisted copy of one case's knowledge base.
type Snapshot struct {
	ID         uuid.UUID            `json:"id"`
	CaseID     string               `json:"case_id"`
	CreatedAt  time.Time            `json:"created_at"`
	Atoms      []Atom               `json:"atoms"`
	Embeddings map[string][]float32 `json:"embeddings,omitempty"`
}

type SnapshotStore interface {
	Save(ctx context.Context, s *Snapshot) error
	Load(ctx context.Context, caseID string) (*Snapshot, error)
	ListCases(ctx context.Context) ([]string, error)
	Close() error
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

type ScoredAtom struct {
	Atom  Atom    `json:"atom"`
	Score float64 `json:"score"`
}

// SimilaritySearcher is implemented by snapshot stores that can rank persisted
// atoms by embedding similarity.
type SimilaritySearcher interface {
	SimilarAtoms(ctx context.Context, caseID string, embedding []float32, limit int) ([]ScoredAtom, error)
}
