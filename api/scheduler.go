/*
scheduler.go - Nightly daily-sales sync

PURPOSE:
  Periodically backfills "yesterday" for each configured tenant so that
  DailySale records exist without an operator triggering a backfill.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Uses the same Orchestrator as the HTTP trigger (same lock, same run log)
  - Skips a tenant whose yesterday is already covered by a completed run
  - A tenant locked by a manual backfill is skipped until the next tick

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: false)

USAGE:
  scheduler := NewDailySyncScheduler(orchestrator, store, tenants, logger)
  scheduler.Enabled = true
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Backfill endpoint (manual trigger)
  - generic/backfill.go: Orchestrator
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/incentive-engine/generic"
)

// DailySyncScheduler backfills the previous day on a ticker.
type DailySyncScheduler struct {
	Orchestrator  *generic.Orchestrator
	Runs          generic.RunStore
	Tenants       []generic.TenantID
	CheckInterval time.Duration
	Enabled       bool
	Logger        *zap.Logger

	// Today is overridable in tests.
	Today func() generic.Day

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewDailySyncScheduler creates a disabled scheduler.
func NewDailySyncScheduler(orch *generic.Orchestrator, runs generic.RunStore, tenants []generic.TenantID, logger *zap.Logger) *DailySyncScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailySyncScheduler{
		Orchestrator:  orch,
		Runs:          runs,
		Tenants:       tenants,
		CheckInterval: time.Hour,
		Logger:        logger.Named("scheduler"),
		Today:         generic.Today,
	}
}

// Start begins the scheduler.
func (s *DailySyncScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run()

	s.Logger.Info("started",
		zap.Duration("interval", s.CheckInterval),
		zap.Int("tenants", len(s.Tenants)))
}

// Stop stops the scheduler and waits for an in-flight sync to finish.
func (s *DailySyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info("stopped")
	}
}

func (s *DailySyncScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow(context.Background())

	for {
		select {
		case <-s.ticker.C:
			s.RunNow(context.Background())
		case <-s.stop:
			return
		}
	}
}

// SyncSummary counts the outcome of one pass.
type SyncSummary struct {
	Processed int
	Skipped   int
	Failed    int
	Records   int
}

// RunNow syncs yesterday for every tenant once.
func (s *DailySyncScheduler) RunNow(ctx context.Context) SyncSummary {
	var sum SyncSummary
	yesterday := s.Today().AddDays(-1)

	for _, tenantID := range s.Tenants {
		log := s.Logger.With(zap.String("tenant", string(tenantID)), zap.Stringer("day", yesterday))

		done, err := s.Runs.HasCompletedRun(ctx, tenantID, yesterday)
		if err != nil {
			log.Error("failed to check run log", zap.Error(err))
			sum.Failed++
			continue
		}
		if done {
			sum.Skipped++
			continue
		}

		tc := generic.TenantContext{TenantID: tenantID, RequestID: "scheduler"}
		result, err := s.Orchestrator.BackfillFrom(ctx, tc, yesterday, yesterday, "scheduler")
		switch {
		case errors.Is(err, generic.ErrBackfillInProgress):
			log.Info("tenant busy, will retry next tick")
			sum.Skipped++
		case err != nil:
			log.Error("sync failed", zap.Error(err))
			sum.Failed++
		default:
			sum.Processed++
			sum.Records += result.ProcessedRecords
		}
	}

	if sum.Processed > 0 || sum.Failed > 0 {
		s.Logger.Info("sync pass completed",
			zap.Int("processed", sum.Processed),
			zap.Int("skipped", sum.Skipped),
			zap.Int("failed", sum.Failed),
			zap.Int("records", sum.Records))
	}
	return sum
}
