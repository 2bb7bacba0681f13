package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPersistInterval = 5 * time.Minute
	persistTimeout         = 30 * time.Second
)

// Persister snapshots every open case on a fixed schedule.
type Persister struct {
	registry *CaseRegistry
	logger   *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewPersister(registry *CaseRegistry, logger *zap.Logger) *Persister {
	return &Persister{
		registry: registry,
		logger:   logger,
		interval: defaultPersistInterval,
		stopCh:   make(chan struct{}),
	}
}

func (p *Persister) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

// Start runs the persister in a background goroutine. It does nothing when the
// registry has no snapshot store.
func (p *Persister) Start() {
	if p.registry.Store() == nil {
		p.logger.Info("case persister disabled: no snapshot store")
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.logger.Info("case persister started", zap.Duration("interval", p.interval))

		for {
			select {
			case <-ticker.C:
				p.run()
			case <-p.stopCh:
				p.run()
				p.logger.Info("case persister stopped")
				return
			}
		}
	}()
}

// Stop flushes one last time and waits for the goroutine to exit. It is safe
// to call once, whether or not Start launched anything.
func (p *Persister) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Persister) run() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := p.registry.PersistAll(ctx); err != nil {
		p.logger.Error("periodic persist failed", zap.Error(err))
	}
}
