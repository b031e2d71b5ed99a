/*
store.go - Persistence interfaces

PURPOSE:
  Defines the boundary between the engine and its storage. Every method
  takes a TenantID as an explicit argument: there is no way to express a
  cross-tenant read or write through these interfaces.

KEY INTERFACES:
  RuleStore:      Append-only, effective-dated incentive rules
  InvoiceSource:  Read side of the transaction log
  InvoiceStore:   InvoiceSource plus ingestion (dev/test feed)
  DailySaleStore: DailySale aggregates with atomic upsert
  BaselineStore:  Per-staff target baselines
  RunStore:       Audit log of backfill runs

ATOMIC UPSERT CONTRACT:
  UpsertDailySale must be a single atomic read-modify-write:
  - sales fields, customer count and applied rule are overwritten
  - review counts are set to 0 on insert and left untouched on update
  - a reader never observes a record mixing two computations

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: INSERT ... ON CONFLICT DO UPDATE
  - store/mongo/mongo.go: UpdateOne with $set / $setOnInsert, upsert=true
  - generic/store/memory.go: In-memory, mutex guarded (tests/dev)
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// RULES
// =============================================================================

type RuleStore interface {
	// AppendRule persists a new rule version. There is no update.
	AppendRule(ctx context.Context, rule IncentiveRule) error

	// LatestRule returns the most recently effective rule of ruleType with
	// EffectiveFrom <= cutoff, or nil when none exists.
	LatestRule(ctx context.Context, tenantID TenantID, ruleType RuleType, cutoff time.Time) (*IncentiveRule, error)

	// ListRules returns every version for the tenant, oldest first.
	ListRules(ctx context.Context, tenantID TenantID) ([]IncentiveRule, error)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type InvoiceSource interface {
	// InvoicesBetween returns invoices with CreatedAt in [from, to].
	InvoicesBetween(ctx context.Context, tenantID TenantID, from, to time.Time) ([]Invoice, error)
}

type InvoiceStore interface {
	InvoiceSource
	SaveInvoice(ctx context.Context, inv Invoice) error
}

// =============================================================================
// DAILY SALES
// =============================================================================

type DailySaleStore interface {
	// UpsertDailySale atomically writes the pipeline-owned fields of the
	// record keyed by (tenant, staff, date). See the contract above.
	UpsertDailySale(ctx context.Context, sale DailySale) error

	// GetDailySale returns ErrNotFound when the record does not exist.
	GetDailySale(ctx context.Context, tenantID TenantID, staffID StaffID, date Day) (*DailySale, error)

	// ListDailySales returns records in [from, to] ordered by date then staff.
	// An empty staffIDs slice means every staff member.
	ListDailySales(ctx context.Context, tenantID TenantID, staffIDs []StaffID, from, to Day) ([]DailySale, error)

	// SetReviewCounts is the write path of the manual review-entry flow.
	// Returns ErrNotFound when the record does not exist.
	SetReviewCounts(ctx context.Context, tenantID TenantID, staffID StaffID, date Day, withName, withPhoto int) error
}

// =============================================================================
// TARGET BASELINES
// =============================================================================

type BaselineStore interface {
	SetBaseline(ctx context.Context, b StaffBaseline) error

	// GetBaseline returns ErrNotFound when the staff member has no baseline.
	GetBaseline(ctx context.Context, tenantID TenantID, staffID StaffID) (*StaffBaseline, error)
}

// =============================================================================
// BACKFILL RUNS - Audit log
// =============================================================================

type RunStore interface {
	SaveRun(ctx context.Context, run BackfillRun) error
	ListRuns(ctx context.Context, tenantID TenantID, limit int) ([]BackfillRun, error)

	// HasCompletedRun reports whether a completed run settled day: its range
	// includes day and it started after day ended (see BackfillRun.Settles).
	HasCompletedRun(ctx context.Context, tenantID TenantID, day Day) (bool, error)
}
