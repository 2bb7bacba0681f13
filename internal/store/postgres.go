package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

const postgresSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS kb_snapshots (
	id         UUID PRIMARY KEY,
	case_id    TEXT NOT NULL,
	atom_count INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS kb_snapshots_case_idx ON kb_snapshots (case_id, created_at DESC);

CREATE TABLE IF NOT EXISTS kb_atoms (
	snapshot_id UUID NOT NULL REFERENCES kb_snapshots(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	atom_id     TEXT NOT NULL,
	atom_type   TEXT NOT NULL,
	name        TEXT NOT NULL,
	payload     JSONB NOT NULL,
	embedding   vector,
	PRIMARY KEY (snapshot_id, position)
);
`

// PostgresSnapshotStore keeps snapshots in Postgres, one row per atom, with the
// atom embedding in a pgvector column.
type PostgresSnapshotStore struct {
	db *pgxpool.Pool
}

func NewPostgresSnapshotStore(db *pgxpool.Pool) *PostgresSnapshotStore {
	return &PostgresSnapshotStore{db: db}
}

func (s *PostgresSnapshotStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate snapshot schema: %w", err)
	}
	return nil
}

func (s *PostgresSnapshotStore) Save(ctx context.Context, snap *domain.Snapshot) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO kb_snapshots (id, case_id, atom_count, created_at) VALUES ($1, $2, $3, $4)`,
		snap.ID, snap.CaseID, len(snap.Atoms), snap.CreatedAt,
	); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, a := range snap.Atoms {
		payload, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode atom %s: %w", a.ID, err)
		}
		var embedding *pgvector.Vector
		if vec := snap.Embeddings[a.ID]; len(vec) > 0 {
			v := pgvector.NewVector(vec)
			embedding = &v
		}
		batch.Queue(
			`INSERT INTO kb_atoms (snapshot_id, position, atom_id, atom_type, name, payload, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			snap.ID, i, a.ID, string(a.Type), a.Name, payload, embedding,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Load returns the most recent snapshot of the case.
func (s *PostgresSnapshotStore) Load(ctx context.Context, caseID string) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{CaseID: caseID, Embeddings: map[string][]float32{}}
	err := s.db.QueryRow(ctx,
		`SELECT id, created_at FROM kb_snapshots WHERE case_id = $1 ORDER BY created_at DESC LIMIT 1`,
		caseID,
	).Scan(&snap.ID, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT payload, embedding FROM kb_atoms WHERE snapshot_id = $1 ORDER BY position`,
		snap.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			payload   []byte
			embedding *pgvector.Vector
		)
		if err := rows.Scan(&payload, &embedding); err != nil {
			return nil, err
		}
		var a domain.Atom
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, err
		}
		snap.Atoms = append(snap.Atoms, a)
		if embedding != nil {
			snap.Embeddings[a.ID] = embedding.Slice()
		}
	}
	return snap, rows.Err()
}

func (s *PostgresSnapshotStore) ListCases(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT case_id FROM kb_snapshots ORDER BY case_id`)
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
// similarity to embedding.
func (s *PostgresSnapshotStore) SimilarAtoms(ctx context.Context, caseID string, embedding []float32, limit int) ([]domain.ScoredAtom, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.Query(ctx,
		`SELECT a.payload, 1 - (a.embedding <=> $2::vector) AS similarity
		 FROM kb_atoms a
		 WHERE a.snapshot_id = (
		     SELECT id FROM kb_snapshots WHERE case_id = $1 ORDER BY created_at DESC LIMIT 1
		 )
		   AND a.embedding IS NOT NULL
		 ORDER BY similarity DESC
		 LIMIT $3`,
		caseID, pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ScoredAtom
	for rows.Next() {
		var (
			payload []byte
			sa      domain.ScoredAtom
		)
		if err := rows.Scan(&payload, &sa.Score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &sa.Atom); err != nil {
			return nil, err
		}
		out = append(out, sa)
	}
	return out, rows.Err()
}

func (s *PostgresSnapshotStore) Close() error {
	s.db.Close()
	return nil
}
