package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *SQLiteSnapshotStore {
	t.Helper()
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testSnapshot(caseID string, at time.Time, atoms ...domain.Atom) *domain.Snapshot {
	return &domain.Snapshot{
		ID:         uuid.New(),
		CaseID:     caseID,
		CreatedAt:  at,
		Atoms:      atoms,
		Embeddings: map[string][]float32{},
	}
}

func TestSQLiteSnapshotStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	ts := time.Date(2023, time.March, 3, 12, 0, 0, 0, time.UTC)

	alice := domain.Atom{
		ID:         "alice",
		Type:       domain.AtomEntity,
		Name:       "Alice",
		TruthValue: domain.NewTruthValue(0.9, 0.8),
		Metadata:   domain.Metadata{EntityType: "person"},
	}
	wire := domain.Atom{
		ID:       "wire",
		Type:     domain.AtomEvent,
		Name:     "Wire transfer",
		Metadata: domain.Metadata{Timestamp: &ts, Participants: []string{"alice"}},
	}
	link := domain.Atom{ID: "rel", Type: domain.AtomRelationship, Name: "paid", Targets: []string{"alice", "wire"}, TruthValue: domain.DefaultTruthValue()}

	snap := testSnapshot("case-1", ts, alice, wire, link)
	snap.Embeddings["alice"] = []float32{1, 0, 0}
	require.NoError(t, st.Save(ctx, snap))

	got, err := st.Load(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.True(t, ts.Equal(got.CreatedAt))
	require.Len(t, got.Atoms, 3)
	assert.Equal(t, "alice", got.Atoms[0].ID)
	assert.InDelta(t, 0.8, got.Atoms[0].TruthValue.Confidence(), 1e-9)
	assert.Equal(t, "person", got.Atoms[0].Metadata.EntityType)
	require.NotNil(t, got.Atoms[1].Metadata.Timestamp)
	assert.True(t, ts.Equal(*got.Atoms[1].Metadata.Timestamp))
	assert.Equal(t, []string{"alice", "wire"}, got.Atoms[2].Targets)
	assert.Equal(t, []float32{1, 0, 0}, got.Embeddings["alice"])
}

func TestSQLiteSnapshotStore_LoadReturnsLatest(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	base := time.Date(2023, time.March, 3, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.Save(ctx, testSnapshot("case-1", base, domain.Atom{ID: "a", Type: domain.AtomEntity, Name: "A"})))
	latest := testSnapshot("case-1", base.Add(500*time.Millisecond),
		domain.Atom{ID: "a", Type: domain.AtomEntity, Name: "A"},
		domain.Atom{ID: "b", Type: domain.AtomEntity, Name: "B"},
	)
	require.NoError(t, st.Save(ctx, latest))

	got, err := st.Load(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, latest.ID, got.ID)
	assert.Len(t, got.Atoms, 2)
}

func TestSQLiteSnapshotStore_NotFound(t *testing.T) {
	st := openTestStore(t)

	_, err := st.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteSnapshotStore_ListCases(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, st.Save(ctx, testSnapshot("case-b", now)))
	require.NoError(t, st.Save(ctx, testSnapshot("case-a", now)))
	require.NoError(t, st.Save(ctx, testSnapshot("case-b", now.Add(time.Second))))

	cases, err := st.ListCases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"case-a", "case-b"}, cases)
}

func TestSQLiteSnapshotStore_SimilarAtoms(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	snap := testSnapshot("case-1", time.Now().UTC(),
		domain.Atom{ID: "x", Type: domain.AtomEntity, Name: "X"},
		domain.Atom{ID: "y", Type: domain.AtomEntity, Name: "Y"},
		domain.Atom{ID: "z", Type: domain.AtomEntity, Name: "Z"},
	)
	snap.Embeddings["x"] = []float32{1, 0}
	snap.Embeddings["y"] = []float32{0, 1}
	require.NoError(t, st.Save(ctx, snap))

	got, err := st.SimilarAtoms(ctx, "case-1", []float32{0.1, 1}, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "y", got[0].Atom.ID)
	assert.Greater(t, got[0].Score, got[1].Score)

	none, err := st.SimilarAtoms(ctx, "case-1", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, Options{Driver: DriverNone}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, st)

	st, err = Open(ctx, Options{Driver: DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "kb.db")}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.NoError(t, st.Close())

	_, err = Open(ctx, Options{Driver: DriverPostgres}, zap.NewNop())
	assert.Error(t, err)

	_, err = Open(ctx, Options{Driver: "mongo"}, zap.NewNop())
	assert.Error(t, err)
}
