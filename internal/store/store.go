package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("not found")

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNone     = "none"
)

// Options selects and configures a snapshot store backend.
type Options struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
}

// Open connects the configured backend and ensures its schema. DriverNone
// returns a nil store and no error.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (domain.SnapshotStore, error) {
	switch opts.Driver {
	case DriverNone, "":
		return nil, nil
	case DriverPostgres:
		if opts.DatabaseURL == "" {
			return nil, errors.New("postgres store requires DATABASE_URL")
		}
		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		st := NewPostgresSnapshotStore(pool)
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("connected to database")
		return st, nil
	case DriverSQLite:
		st, err := OpenSQLite(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("opened sqlite store", zap.String("path", opts.SQLitePath))
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
