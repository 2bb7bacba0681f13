package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"github.com/Harshitk-cp/hyperholmes/internal/metrics"
	"go.uber.org/zap"
)

var ErrCaseNotFound = errors.New("case not found")

type caseEntry struct {
	mu  sync.Mutex
	svc *CaseService
}

// CaseRegistry holds one CaseService per case id. Calls on the same case are
// serialized; different cases proceed in parallel.
type CaseRegistry struct {
	mu     sync.Mutex
	cases  map[string]*caseEntry
	cfg    Config
	store  domain.SnapshotStore
	logger *zap.Logger
}

// NewCaseRegistry builds a registry. st may be nil, in which case nothing is
// restored or persisted.
func NewCaseRegistry(cfg Config, st domain.SnapshotStore, logger *zap.Logger) *CaseRegistry {
	return &CaseRegistry{
		cases:  make(map[string]*caseEntry),
		cfg:    cfg,
		store:  st,
		logger: logger,
	}
}

func (r *CaseRegistry) Store() domain.SnapshotStore { return r.store }

// Open returns the case, creating it when absent. A newly created case is
// restored from the snapshot store if one is configured.
func (r *CaseRegistry) Open(ctx context.Context, caseID string) (*CaseService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.cases[caseID]; ok {
		return e.svc, nil
	}
	svc, err := NewCaseService(caseID, r.cfg, r.logger)
	if err != nil {
		return nil, err
	}
	if r.store != nil {
		if _, err := svc.Restore(ctx, r.store); err != nil {
			return nil, err
		}
	}
	r.cases[caseID] = &caseEntry{svc: svc}
	metrics.ActiveCases.Set(float64(len(r.cases)))
	r.logger.Info("case opened", zap.String("case_id", caseID))
	return svc, nil
}

func (r *CaseRegistry) entry(caseID string) (*caseEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.cases[caseID]
	if !ok {
		return nil, ErrCaseNotFound
	}
	return e, nil
}

// With runs fn while holding the case's lock. When create is set a missing
// case is opened first; otherwise ErrCaseNotFound is returned.
func (r *CaseRegistry) With(ctx context.Context, caseID string, create bool, fn func(*CaseService) error) error {
	if create {
		if _, err := r.Open(ctx, caseID); err != nil {
			return err
		}
	}
	e, err := r.entry(caseID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.svc)
}

// Close drops a case from memory. Persisted snapshots are kept.
func (r *CaseRegistry) Close(caseID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[caseID]; !ok {
		return ErrCaseNotFound
	}
	delete(r.cases, caseID)
	metrics.ActiveCases.Set(float64(len(r.cases)))
	return nil
}

// List returns the open case ids, sorted.
func (r *CaseRegistry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.cases))
	for id := range r.cases {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PersistAll saves every open case. It keeps going past failures and returns
// them joined.
func (r *CaseRegistry) PersistAll(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	var errs []error
	for _, id := range r.List() {
		err := r.With(ctx, id, false, func(svc *CaseService) error {
			return svc.Persist(ctx, r.store)
		})
		if err != nil {
			r.logger.Error("failed to persist case", zap.String("case_id", id), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
