package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGenerateHypotheses_NeverEmptyForEvidence(t *testing.T) {
	eng := NewEngine(newSpace(t), DefaultConfig(), zap.NewNop())

	hyps := eng.GenerateHypotheses([]string{"ghost"})
	require.Len(t, hyps, 1)
	assert.InDelta(t, insufficientEvidenceConfidence, hyps[0].Confidence, 1e-9)
	assert.Equal(t, []string{"ghost"}, hyps[0].SupportingEvidence)
	assert.NotEmpty(t, hyps[0].AlternativeExplanations)

	assert.Empty(t, eng.GenerateHypotheses(nil))
}

func TestGenerateHypotheses_CentralEntity(t *testing.T) {
	space := newSpace(t)
	space.AddAtom(entity("Acme"))
	space.AddAtom(evidence("invoice", "Acme"))
	space.AddAtom(evidence("ledger", "Acme"))
	eng := NewEngine(space, DefaultConfig(), zap.NewNop())

	before := space.Len()
	hyps := eng.GenerateHypotheses([]string{"invoice", "ledger"})
	assert.Equal(t, before, space.Len())

	require.NotEmpty(t, hyps)
	assert.Contains(t, hyps[0].Statement, "Acme")
	assert.Equal(t, []string{"Acme", "invoice", "ledger"}, hyps[0].SupportingEvidence)
	assert.Greater(t, hyps[0].Confidence, insufficientEvidenceConfidence)
}

func TestGenerateHypotheses_FinancialAndCoordinated(t *testing.T) {
	space := newSpace(t)
	space.AddAtom(entity("Alice"))
	space.AddAtom(payment("p1", 1, 1000, "Alice"))
	space.AddAtom(payment("p2", 2, 2500, "Alice"))
	eng := NewEngine(space, DefaultConfig(), zap.NewNop())

	hyps := eng.GenerateHypotheses([]string{"p1", "p2"})
	require.Len(t, hyps, 3)

	var statements []string
	for _, h := range hyps {
		statements = append(statements, h.Statement)
	}
	assert.Contains(t, statements, "Funds totalling 3500.00 moved across 2 cited transactions")

	again := eng.GenerateHypotheses([]string{"p2", "p1"})
	assert.Equal(t, hyps[0].ID, again[0].ID)
}
