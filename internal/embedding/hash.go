package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashClient projects a bag of lower-cased terms onto a fixed number of buckets
// with FNV-1a, signing each term by a second hash bit, then L2-normalises. The
// same text always yields the same vector.
type HashClient struct {
	dim int
}

func NewHashClient(dim int) *HashClient {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &HashClient{dim: dim}
}

func (c *HashClient) Dimension() int { return c.dim }

func (c *HashClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Vector(text), nil
}

// Vector is Embed without a context; it never fails.
func (c *HashClient) Vector(text string) []float32 {
	vec := make([]float32, c.dim)
	for _, term := range Terms(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(term))
		sum := h.Sum32()
		sign := float32(1)
		if sum&(1<<31) != 0 {
			sign = -1
		}
		vec[int(sum%uint32(c.dim))] += sign
	}
	normalize(vec)
	return vec
}

// Terms splits text into lower-cased alphanumeric tokens.
func Terms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero
// vector or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(-1, math.Min(1, sim))
}
