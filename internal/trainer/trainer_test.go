package trainer

import (
	"fmt"
	"testing"
	"time"

	"github.com/Harshitk-cp/hyperholmes/internal/atomspace"
	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSpace(t *testing.T) *atomspace.AtomSpace {
	t.Helper()
	space, err := atomspace.New("case-trainer")
	require.NoError(t, err)
	return space
}

func addEvent(space *atomspace.AtomSpace, id string, day int, participants ...string) {
	ts := time.Date(2022, time.June, 1, 9, 0, 0, 0, time.UTC).AddDate(0, 0, day)
	space.AddAtom(domain.Atom{
		ID:       id,
		Type:     domain.AtomEvent,
		Name:     id,
		Metadata: domain.Metadata{Timestamp: &ts, Participants: participants},
	})
}

func TestTrain_CentralEntityProducesLead(t *testing.T) {
	space := newSpace(t)
	space.AddAtom(domain.Atom{ID: "suspect", Type: domain.AtomEntity, Name: "Suspect"})
	for i := 0; i < 5; i++ {
		addEvent(space, fmt.Sprintf("ev%d", i), i*30, "suspect")
	}
	tr := New(space, DefaultConfig(), zap.NewNop())

	summary := tr.Train()

	require.Positive(t, summary.PatternsLearned)
	assert.Positive(t, summary.ByCategory[domain.CategoryBehavioral]+summary.ByCategory[domain.CategoryRelational])
	assert.Equal(t, 1, summary.EntityCount)
	assert.Equal(t, 5, summary.EventCount)

	var referencing []domain.InvestigationLead
	for _, l := range tr.Leads() {
		for _, id := range l.SupportingEvidence {
			if id == "suspect" {
				referencing = append(referencing, l)
			}
		}
	}
	require.NotEmpty(t, referencing)
	assert.Equal(t, domain.PriorityCritical, referencing[0].Priority)
	assert.NotEmpty(t, referencing[0].RecommendedActions)
}

func TestTrain_ResetsOnEachCall(t *testing.T) {
	space := newSpace(t)
	space.AddAtom(domain.Atom{ID: "a", Type: domain.AtomEntity, Name: "A"})
	for i := 0; i < 3; i++ {
		addEvent(space, fmt.Sprintf("ev%d", i), i*30, "a")
	}
	tr := New(space, DefaultConfig(), zap.NewNop())

	first := tr.Train()
	second := tr.Train()

	assert.Equal(t, first, second)
	assert.Len(t, tr.Patterns(), first.PatternsLearned)
	assert.Len(t, tr.Leads(), first.LeadsGenerated)
}

func TestTrain_BelowCentralityThreshold(t *testing.T) {
	space := newSpace(t)
	space.AddAtom(domain.Atom{ID: "a", Type: domain.AtomEntity, Name: "A"})
	addEvent(space, "ev1", 0, "a")
	addEvent(space, "ev2", 40, "a")
	tr := New(space, DefaultConfig(), zap.NewNop())

	summary := tr.Train()
	assert.Zero(t, summary.ByCategory[domain.CategoryBehavioral])
}

func TestTrain_RelationalAndFinancial(t *testing.T) {
	space := newSpace(t)
	space.AddAtom(domain.Atom{ID: "a", Type: domain.AtomEntity, Name: "A"})
	space.AddAtom(domain.Atom{ID: "b", Type: domain.AtomEntity, Name: "B"})
	space.AddLink(domain.AtomRelationship, "paid", []string{"a", "b"}, nil)
	space.AddLink(domain.AtomRelationship, "owns", []string{"b", "a"}, nil)
	for i, amount := range []float64{25000, 25000} {
		id := fmt.Sprintf("tx%d", i)
		addEvent(space, id, i*60, "a", "b")
		ev, _ := space.Get(id)
		ev.Metadata.Set(domain.MetaAmount, amount)
		space.AddAtom(ev)
	}
	tr := New(space, DefaultConfig(), zap.NewNop())

	summary := tr.Train()

	assert.Equal(t, 2, summary.ByCategory[domain.CategoryRelational])
	assert.Equal(t, 2, summary.ByCategory[domain.CategoryFinancial])
	assert.Equal(t, 2, summary.RelationshipCount)

	leads := tr.Leads()
	for i := 1; i < len(leads); i++ {
		assert.GreaterOrEqual(t, leads[i-1].Confidence, leads[i].Confidence)
	}
	assert.Len(t, tr.TopLeads(2), 2)
	assert.Empty(t, tr.TopLeads(0))
	assert.Len(t, tr.TopLeads(100), len(leads))
}

func TestTrain_TemporalBurst(t *testing.T) {
	space := newSpace(t)
	addEvent(space, "e1", 0)
	addEvent(space, "e2", 1)
	addEvent(space, "e3", 2)
	tr := New(space, DefaultConfig(), zap.NewNop())

	summary := tr.Train()
	assert.Equal(t, 1, summary.ByCategory[domain.CategoryTemporal])
}

func TestTrain_DoesNotMutateSpace(t *testing.T) {
	space := newSpace(t)
	space.AddAtom(domain.Atom{ID: "a", Type: domain.AtomEntity, Name: "A"})
	for i := 0; i < 4; i++ {
		addEvent(space, fmt.Sprintf("ev%d", i), i, "a")
	}
	before := space.Len()

	New(space, DefaultConfig(), zap.NewNop()).Train()
	assert.Equal(t, before, space.Len())
}
