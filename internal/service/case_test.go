package service

import (
	"context"
	"testing"
	"time"

	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"github.com/Harshitk-cp/hyperholmes/internal/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCase(t *testing.T) *CaseService {
	t.Helper()
	svc, err := NewCaseService("case-test", Config{}, zap.NewNop())
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC) }
	return svc
}

func ptr[T any](v T) *T { return &v }

func day(n int) *time.Time {
	ts := time.Date(2022, time.June, 1, 9, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return &ts
}

func TestNewCaseService_RequiresCaseID(t *testing.T) {
	_, err := NewCaseService("", Config{}, zap.NewNop())
	assert.Error(t, err)
}

func TestEntitiesLinkedThroughQueryLanguage(t *testing.T) {
	svc := newTestCase(t)
	_, err := svc.AddEntity(domain.EntityRecord{ID: "Alice", Name: "Alice", EntityType: "person"})
	require.NoError(t, err)
	_, err = svc.AddEntity(domain.EntityRecord{ID: "Bob", Name: "Bob", EntityType: "person"})
	require.NoError(t, err)

	link := svc.QueryHGNNQL("LINK Alice TO Bob AS colleagues")
	require.True(t, link.OK())

	assert.Equal(t, 2, svc.QueryHGNNQL("FIND ENTITY").Count)
	assert.Equal(t, 2, svc.QueryHGNNQL("COUNT ENTITY").Count)
}

func TestRunInference_SingleEvidence(t *testing.T) {
	svc := newTestCase(t)
	_, err := svc.AddEvidence(domain.EvidenceRecord{ID: "ev1", Name: "Bank statement"})
	require.NoError(t, err)

	res := svc.RunInference(3)
	assert.Equal(t, inference.MethodForwardChain, res.Method)
	assert.GreaterOrEqual(t, res.Iterations, 1)
	assert.LessOrEqual(t, res.Iterations, 3)
}

func TestAddEntity_Validation(t *testing.T) {
	svc := newTestCase(t)

	_, err := svc.AddEntity(domain.EntityRecord{Name: "No id"})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = svc.AddEntity(domain.EntityRecord{ID: "x", Name: "X", Confidence: ptr(1.5)})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	assert.Zero(t, svc.space.Len())
}

func TestAddEntity_DefaultsAndMetadata(t *testing.T) {
	svc := newTestCase(t)

	a, err := svc.AddEntity(domain.EntityRecord{
		ID:         "acme",
		Name:       "Acme Ltd",
		EntityType: "company",
		Metadata:   map[string]any{"address": "1 High St", "source_file": "registry.csv"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AtomEntity, a.Type)
	assert.Equal(t, domain.DefaultTruthValue(), a.TruthValue)
	assert.Equal(t, "company", a.Metadata.EntityType)
	assert.Equal(t, "registry.csv", a.Metadata.SourceFile)
	v, ok := a.Metadata.Lookup("address")
	assert.True(t, ok)
	assert.Equal(t, "1 High St", v)
}

func TestAddEvent_CarriesTimeParticipantsAmount(t *testing.T) {
	svc := newTestCase(t)

	ev, err := svc.AddEvent(domain.EventRecord{
		ID:           "tx1",
		Name:         "Wire transfer",
		Date:         day(0),
		Participants: []string{"a", "b"},
		Amount:       ptr(25000.0),
		Confidence:   ptr(0.7),
	})
	require.NoError(t, err)

	require.NotNil(t, ev.Metadata.Timestamp)
	assert.True(t, day(0).Equal(*ev.Metadata.Timestamp))
	assert.Equal(t, []string{"a", "b"}, ev.Metadata.Participants)
	amount, ok := ev.Metadata.Float(domain.MetaAmount)
	assert.True(t, ok)
	assert.InDelta(t, 25000.0, amount, 1e-9)
	assert.InDelta(t, 0.7, ev.TruthValue.Confidence(), 1e-9)
}

func TestAddRelationship_DeterministicID(t *testing.T) {
	svc := newTestCase(t)

	first, err := svc.AddRelationship(domain.RelationshipRecord{Name: "owns", SourceID: "a", TargetID: "b"})
	require.NoError(t, err)
	second, err := svc.AddRelationship(domain.RelationshipRecord{Name: "owns", SourceID: "a", TargetID: "b"})
	require.NoError(t, err)
	reverse, err := svc.AddRelationship(domain.RelationshipRecord{Name: "owns", SourceID: "b", TargetID: "a"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, first.ID, reverse.ID)
	assert.Equal(t, []string{"a", "b"}, first.Targets)
	assert.Len(t, svc.QueryRelationships(AtomFilter{}), 2)

	_, err = svc.AddRelationship(domain.RelationshipRecord{Name: "owns", SourceID: "a"})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestQueryEntities_Filters(t *testing.T) {
	svc := newTestCase(t)
	_, _ = svc.AddEntity(domain.EntityRecord{ID: "p1", Name: "P1", EntityType: "person", Confidence: ptr(0.9)})
	_, _ = svc.AddEntity(domain.EntityRecord{ID: "p2", Name: "P2", EntityType: "person", Confidence: ptr(0.4)})
	_, _ = svc.AddEntity(domain.EntityRecord{ID: "c1", Name: "C1", EntityType: "company", Confidence: ptr(0.95)})
	_, _ = svc.AddEvent(domain.EventRecord{ID: "e1", Name: "E1", Confidence: ptr(0.99)})

	assert.Len(t, svc.QueryEntities(AtomFilter{}), 3)
	assert.Len(t, svc.QueryEntities(AtomFilter{MinConfidence: ptr(0.8)}), 2)

	got := svc.QueryEntities(AtomFilter{MinConfidence: ptr(0.8), Metadata: map[string]string{"entity_type": "person"}})
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)

	assert.NotNil(t, svc.QueryEvidence(AtomFilter{}))
	assert.Len(t, svc.QueryEvents(AtomFilter{}), 1)
}

func TestImportCase(t *testing.T) {
	svc := newTestCase(t)
	cf := domain.CaseFile{
		CaseID:   "case-test",
		Entities: []domain.EntityRecord{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
		Events:   []domain.EventRecord{{ID: "e", Name: "Meeting", Participants: []string{"a", "b"}}},
		Relationships: []domain.RelationshipRecord{
			{Name: "knows", SourceID: "a", TargetID: "b"},
		},
		Evidence: []domain.EvidenceRecord{{ID: "doc", Name: "Minutes", References: []string{"e"}}},
	}

	res, err := svc.ImportCase(cf)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Entities: 2, Events: 1, Relationships: 1, Evidence: 1}, res)
	assert.Equal(t, 5, svc.space.Len())
}

func TestImportCase_RejectsBeforeAdding(t *testing.T) {
	svc := newTestCase(t)

	_, err := svc.ImportCase(domain.CaseFile{CaseID: "other"})
	assert.ErrorIs(t, err, ErrCaseMismatch)

	_, err = svc.ImportCase(domain.CaseFile{
		CaseID:   "case-test",
		Entities: []domain.EntityRecord{{ID: "a", Name: "A"}, {ID: "", Name: "broken"}},
	})
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Zero(t, svc.space.Len())
}

func TestLoadRules_RegistersDeclarativeRule(t *testing.T) {
	svc := newTestCase(t)
	before := len(svc.Rules())

	n, err := svc.LoadRules([]byte(`
rules:
  - id: shared_bank
    type: induction
    name: Shared bank account
    premise:
      atom_type: entity
    group_by: bank_account
    min_matches: 2
    conclusion:
      atom_type: pattern
      name: shared_bank_account
      confidence: 0.7
`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, svc.Rules(), before+1)

	_, _ = svc.AddEntity(domain.EntityRecord{ID: "a", Name: "A", Metadata: map[string]any{"bank_account": "GB01"}})
	_, _ = svc.AddEntity(domain.EntityRecord{ID: "b", Name: "B", Metadata: map[string]any{"bank_account": "GB01"}})

	res := svc.RunInference(0)
	assert.Positive(t, res.RuleFirings["shared_bank"])
}

func TestReasonAndSimilar(t *testing.T) {
	svc := newTestCase(t)
	_, _ = svc.AddEntity(domain.EntityRecord{ID: "a", Name: "Acme Holdings Ltd"})
	_, _ = svc.AddEntity(domain.EntityRecord{ID: "b", Name: "Acme Holdings Limited"})
	_, _ = svc.AddEntity(domain.EntityRecord{ID: "c", Name: "Zephyr"})

	ans := svc.Reason(context.Background(), "Which companies are involved?")
	assert.Contains(t, ans.Answer, "3")
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ans.Sources)

	similar := svc.Similar(context.Background(), "a", 1)
	require.Len(t, similar, 1)
	assert.Equal(t, "b", similar[0].AtomID)
}
