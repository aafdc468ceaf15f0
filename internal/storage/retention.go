package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Pruner deletes audit records older than the retention period once a day
type Pruner struct {
	logger    *zap.Logger
	store     *SQLiteAuditStore
	retention time.Duration
	clock     clockwork.Clock

	mu      sync.Mutex
	cron    *cron.Cron
	timeout time.Duration
}

// NewPruner creates a new pruner. A non-positive retention disables pruning.
func NewPruner(store *SQLiteAuditStore, retention time.Duration, logger *zap.Logger) *Pruner {
	return &Pruner{
		logger:    logger.Named("audit_pruner"),
		store:     store,
		retention: retention,
		clock:     clockwork.NewRealClock(),
		timeout:   time.Minute,
	}
}

// Prune deletes every record older than now minus the retention period
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, nil
	}

	cutoff := p.clock.Now().Add(-p.retention)
	n, err := p.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit records: %w", err)
	}
	return n, nil
}

// Start prunes once and then daily at midnight until Stop is called
func (p *Pruner) Start(ctx context.Context) error {
	if p.retention <= 0 {
		p.logger.Info("Audit retention disabled")
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return fmt.Errorf("pruner already started")
	}

	run := func() {
		runCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		if _, err := p.Prune(runCtx); err != nil {
			p.logger.Error("Audit retention run failed", zap.Error(err))
		}
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc("@daily", run); err != nil {
		return fmt.Errorf("failed to schedule audit retention: %w", err)
	}
	p.cron = c

	run()
	c.Start()
	p.logger.Info("Audit retention scheduled", zap.Duration("retention", p.retention))
	return nil
}

// Stop stops the daily schedule and waits for a running prune
func (p *Pruner) Stop() {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
