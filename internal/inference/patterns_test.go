package inference

import (
	"testing"

	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func payment(id string, day int, amount float64, parties ...string) domain.Atom {
	ev := event(id, day, parties...)
	ev.Metadata.Set(domain.MetaAmount, amount)
	return ev
}

func byType(patterns []domain.DetectedPattern, typ string) []domain.DetectedPattern {
	var out []domain.DetectedPattern
	for _, p := range patterns {
		if p.Type == typ {
			out = append(out, p)
		}
	}
	return out
}

func TestDetectPatterns_ReadOnly(t *testing.T) {
	space := newSpace(t)
	space.AddAtom(entity("Alice"))
	space.AddAtom(payment("p1", 1, 5000, "Alice"))
	space.AddAtom(payment("p2", 3, 5000, "Alice"))
	eng := NewEngine(space, DefaultConfig(), zap.NewNop())

	before := space.Len()
	_ = eng.DetectPatterns()
	assert.Equal(t, before, space.Len())
}

func TestDetectPatterns_Financial(t *testing.T) {
	space := newSpace(t)
	space.AddAtom(entity("Alice"))
	space.AddAtom(entity("Bob"))
	space.AddAtom(payment("p1", 1, 5000, "Alice", "Bob"))
	space.AddAtom(payment("p2", 9, 5000, "Bob", "Alice"))
	space.AddAtom(payment("p3", 20, 1234.5, "Alice", "Bob"))
	eng := NewEngine(space, DefaultConfig(), zap.NewNop())

	patterns := eng.DetectPatterns()

	repeated := byType(patterns, PatternRepeatedTransaction)
	require.Len(t, repeated, 1)
	assert.Equal(t, []string{"p1", "p2"}, repeated[0].AtomIDs)
	assert.InDelta(t, 0.8, repeated[0].Confidence, 1e-9)

	round := byType(patterns, PatternRoundAmount)
	require.Len(t, round, 1)
	assert.Equal(t, []string{"p1", "p2"}, round[0].AtomIDs)
}

func TestDetectPatterns_HubAndIsolated(t *testing.T) {
	space := newSpace(t)
	for _, id := range []string{"Hub", "A", "B", "C", "Loner"} {
		space.AddAtom(entity(id))
	}
	space.AddLink(domain.AtomRelationship, "knows", []string{"Hub", "A"}, nil)
	space.AddLink(domain.AtomRelationship, "knows", []string{"B", "Hub"}, nil)
	space.AddLink(domain.AtomRelationship, "knows", []string{"Hub", "C"}, nil)
	eng := NewEngine(space, DefaultConfig(), zap.NewNop())

	patterns := eng.DetectPatterns()

	hubs := byType(patterns, PatternHubEntity)
	require.Len(t, hubs, 1)
	assert.Equal(t, "Hub", hubs[0].AtomIDs[0])
	assert.InDelta(t, 0.7, hubs[0].Confidence, 1e-9)

	isolated := byType(patterns, PatternIsolatedEntity)
	require.Len(t, isolated, 1)
	assert.Equal(t, []string{"Loner"}, isolated[0].AtomIDs)

	for i := 1; i < len(patterns); i++ {
		assert.GreaterOrEqual(t, patterns[i-1].Confidence, patterns[i].Confidence)
	}
}

func TestDetectPatterns_SurfacesDerivedPatterns(t *testing.T) {
	space := newSpace(t)
	space.AddAtom(evidence("doc"))
	eng := NewEngine(space, DefaultConfig(), zap.NewNop())
	eng.ForwardChain(3)

	inferred := byType(eng.DetectPatterns(), PatternInferred)
	require.Len(t, inferred, 1)
	assert.Contains(t, inferred[0].AtomIDs, "doc")
}

func TestDetectPatterns_EmptySpace(t *testing.T) {
	eng := NewEngine(newSpace(t), DefaultConfig(), zap.NewNop())
	patterns := eng.DetectPatterns()
	assert.NotNil(t, patterns)
	assert.Empty(t, patterns)
}
