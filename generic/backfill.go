/*
backfill.go - Backfill / Recompute Orchestrator

PURPOSE:
  Recomputes DailySale records for a tenant over an inclusive date range.
  Used for the initial load, after retroactive rule changes, and for the
  nightly sync of "yesterday".

PER DAY:
  1. Aggregate the day's invoices (a day without invoices is skipped and
     writes nothing)
  2. Resolve the daily rule effective at the end of that day
  3. For each staff member with a non-zero sales bucket, in sorted order,
     atomically upsert the DailySale

GUARANTEES:
  - Idempotent: re-running an unchanged range writes identical records
  - Review counts are never touched by a recompute
  - The first failing day aborts the run with a *DayError; days before it
    stay written and re-invocation is the retry strategy
  - With a Locker set, a second concurrent backfill for the same tenant
    fails fast with ErrBackfillInProgress

SEE ALSO:
  - aggregator.go: Grouping rules
  - resolver.go: Rule selection
  - api/scheduler.go: Nightly trigger
*/
package generic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Locker is a per-tenant advisory lock. Lock returns ErrBackfillInProgress
// when the tenant is already locked.
type Locker interface {
	Lock(ctx context.Context, tenantID TenantID) (unlock func(), err error)
}

// BackfillResult summarizes one run.
type BackfillResult struct {
	RunID            string
	ProcessedRecords int
	DaysScanned      int
	DaysWithActivity int
}

// Orchestrator wires the resolver, aggregator and snapshot store.
type Orchestrator struct {
	Resolver   *Resolver
	Aggregator *Aggregator
	Sales      DailySaleStore

	// Optional
	Locker Locker
	Runs   RunStore
	Logger *zap.Logger
	Now    func() time.Time
}

// NewOrchestrator builds an orchestrator without lock or run log.
func NewOrchestrator(rules RuleStore, invoices InvoiceSource, sales DailySaleStore, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		Resolver:   NewResolver(rules),
		Aggregator: NewAggregator(invoices),
		Sales:      sales,
		Logger:     logger,
		Now:        time.Now,
	}
}

// Backfill recomputes every day in [start, end] for the tenant.
func (o *Orchestrator) Backfill(ctx context.Context, tc TenantContext, start, end Day) (*BackfillResult, error) {
	return o.backfill(ctx, tc, start, end, "api")
}

// BackfillFrom is Backfill with an explicit trigger label for the run log.
func (o *Orchestrator) BackfillFrom(ctx context.Context, tc TenantContext, start, end Day, trigger string) (*BackfillResult, error) {
	return o.backfill(ctx, tc, start, end, trigger)
}

func (o *Orchestrator) backfill(ctx context.Context, tc TenantContext, start, end Day, trigger string) (*BackfillResult, error) {
	if tc.TenantID == "" {
		return nil, ErrTenantRequired
	}
	rng, err := NewDayRange(start, end)
	if err != nil {
		return nil, err
	}

	log := o.logger().With(
		zap.String("tenant", string(tc.TenantID)),
		zap.String("requestId", tc.RequestID),
		zap.Stringer("range", rng),
	)

	if o.Locker != nil {
		unlock, err := o.Locker.Lock(ctx, tc.TenantID)
		if err != nil {
			if errors.Is(err, ErrBackfillInProgress) {
				log.Warn("backfill rejected, tenant locked")
			}
			return nil, err
		}
		defer unlock()
	}

	result := &BackfillResult{RunID: uuid.NewString()}
	run := BackfillRun{
		ID:        result.RunID,
		TenantID:  tc.TenantID,
		Start:     rng.Start,
		End:       rng.End,
		Status:    RunRunning,
		Trigger:   trigger,
		StartedAt: o.now(),
	}
	o.saveRun(ctx, log, run)

	log.Info("backfill started", zap.String("runId", run.ID), zap.Int("days", rng.Len()))

	runErr := o.run(ctx, tc.TenantID, rng, result)

	completed := o.now()
	run.CompletedAt = &completed
	run.ProcessedRecords = result.ProcessedRecords
	if runErr != nil {
		run.Status = RunFailed
		run.Error = runErr.Error()
		log.Error("backfill failed",
			zap.String("runId", run.ID),
			zap.Int("processedRecords", result.ProcessedRecords),
			zap.Error(runErr))
	} else {
		run.Status = RunCompleted
		log.Info("backfill completed",
			zap.String("runId", run.ID),
			zap.Int("processedRecords", result.ProcessedRecords),
			zap.Int("daysWithActivity", result.DaysWithActivity))
	}
	o.saveRun(context.WithoutCancel(ctx), log, run)

	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, tenantID TenantID, rng DayRange, result *BackfillResult) error {
	it := rng.Iter()
	for day, ok := it.Next(); ok; day, ok = it.Next() {
		if err := ctx.Err(); err != nil {
			return &DayError{Date: day, Err: err}
		}
		result.DaysScanned++

		n, err := o.processDay(ctx, tenantID, day)
		result.ProcessedRecords += n
		if err != nil {
			return err
		}
		if n > 0 {
			result.DaysWithActivity++
		}
	}
	return nil
}

// processDay recomputes one day and returns the number of records written.
func (o *Orchestrator) processDay(ctx context.Context, tenantID TenantID, day Day) (int, error) {
	agg, err := o.Aggregator.Aggregate(ctx, tenantID, day.Start(), day.End())
	if err != nil {
		var malformed *MalformedLineItemError
		if errors.As(err, &malformed) {
			return 0, &DayError{Date: day, StaffID: malformed.StaffID, Err: err}
		}
		return 0, &DayError{Date: day, Err: err}
	}
	if agg.Empty() {
		return 0, nil
	}

	snapshot, err := o.Resolver.Resolve(ctx, tenantID, RuleDaily, day)
	if err != nil {
		return 0, &DayError{Date: day, Err: err}
	}

	written := 0
	for _, staff := range agg.Staff() {
		totals := agg.Totals[staff]
		if totals.IsZero() {
			continue
		}
		sale := DailySale{
			TenantID:      tenantID,
			StaffID:       staff,
			Date:          day,
			ServiceSale:   totals.ServiceSale,
			ProductSale:   totals.ProductSale,
			PackageSale:   totals.PackageSale,
			GiftCardSale:  totals.GiftCardSale,
			CustomerCount: agg.CustomerCounts[staff],
			AppliedRule:   snapshot,
		}
		if err := o.Sales.UpsertDailySale(ctx, sale); err != nil {
			return written, &DayError{Date: day, StaffID: staff, Err: err}
		}
		written++
	}
	return written, nil
}

func (o *Orchestrator) saveRun(ctx context.Context, log *zap.Logger, run BackfillRun) {
	if o.Runs == nil {
		return
	}
	if err := o.Runs.SaveRun(ctx, run); err != nil {
		log.Warn("failed to record backfill run", zap.String("runId", run.ID), zap.Error(err))
	}
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now().UTC()
	}
	return o.Now().UTC()
}
