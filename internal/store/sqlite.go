package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"github.com/Harshitk-cp/hyperholmes/internal/embedding"
	"github.com/google/uuid"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kb_snapshots (
	id         TEXT PRIMARY KEY,
	case_id    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	atoms      TEXT NOT NULL,
	embeddings TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS kb_snapshots_case_idx ON kb_snapshots (case_id, created_at);
`

// Fixed width so created_at sorts lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteSnapshotStore keeps each snapshot as one row with JSON columns.
type SQLiteSnapshotStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at path with WAL enabled and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteSnapshotStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate snapshot schema: %w", err)
	}
	return &SQLiteSnapshotStore{db: db}, nil
}

func (s *SQLiteSnapshotStore) Save(ctx context.Context, snap *domain.Snapshot) error {
	atoms := snap.Atoms
	if atoms == nil {
		atoms = []domain.Atom{}
	}
	atomsJSON, err := json.Marshal(atoms)
	if err != nil {
		return fmt.Errorf("encode atoms: %w", err)
	}
	embeddings := snap.Embeddings
	if embeddings == nil {
		embeddings = map[string][]float32{}
	}
	embJSON, err := json.Marshal(embeddings)
	if err != nil {
		return fmt.Errorf("encode embeddings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kb_snapshots (id, case_id, created_at, atoms, embeddings) VALUES (?, ?, ?, ?, ?)`,
		snap.ID.String(), snap.CaseID, snap.CreatedAt.UTC().Format(sqliteTimeLayout), string(atomsJSON), string(embJSON),
	)
	return err
}

// Load returns the most recent snapshot of the case.
func (s *SQLiteSnapshotStore) Load(ctx context.Context, caseID string) (*domain.Snapshot, error) {
	var (
		id, createdAt     string
		atoms, embeddings string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, atoms, embeddings FROM kb_snapshots
		 WHERE case_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		caseID,
	).Scan(&id, &createdAt, &atoms, &embeddings)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	snap := &domain.Snapshot{CaseID: caseID}
	if snap.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("decode snapshot id: %w", err)
	}
	if snap.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("decode snapshot time: %w", err)
	}
	if err := json.Unmarshal([]byte(atoms), &snap.Atoms); err != nil {
		return nil, fmt.Errorf("decode atoms: %w", err)
	}
	if err := json.Unmarshal([]byte(embeddings), &snap.Embeddings); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}
	return snap, nil
}

func (s *SQLiteSnapshotStore) ListCases(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT case_id FROM kb_snapshots ORDER BY case_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		cases = append(cases, id)
	}
	return cases, rows.Err()
}

// SimilarAtoms ranks the atoms of the case's latest snapshot by cosine
// similarity to vec. SQLite has no vector index, so scoring happens in memory.
func (s *SQLiteSnapshotStore) SimilarAtoms(ctx context.Context, caseID string, vec []float32, limit int) ([]domain.ScoredAtom, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}
	snap, err := s.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	var out []domain.ScoredAtom
	for _, a := range snap.Atoms {
		emb, ok := snap.Embeddings[a.ID]
		if !ok {
			continue
		}
		out = append(out, domain.ScoredAtom{Atom: a, Score: embedding.Cosine(vec, emb)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *SQLiteSnapshotStore) Close() error {
	return s.db.Close()
}
