package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAILY SALE - One staff member's frozen aggregate for one day
// =============================================================================

// DailySale is keyed by (TenantID, StaffID, Date). The sales fields and
// CustomerCount belong to the aggregation pipeline; the review counts belong
// to the manual review-entry flow and survive every recompute.
//
// DailySale carries no timestamp. Recomputing a day from unchanged invoices
// and rules produces an identical record.
type DailySale struct {
	TenantID TenantID
	StaffID  StaffID
	Date     Day

	ServiceSale  decimal.Decimal
	ProductSale  decimal.Decimal
	PackageSale  decimal.Decimal
	GiftCardSale decimal.Decimal

	CustomerCount    int
	ReviewsWithName  int
	ReviewsWithPhoto int

	// AppliedRule is the rule in force at the end of Date, copied by value.
	AppliedRule RuleSnapshot
}

// Key identifies the record within its tenant.
func (s DailySale) Key() string {
	return string(s.StaffID) + "/" + s.Date.String()
}

// HasSales reports whether any sales bucket is non-zero.
func (s DailySale) HasSales() bool {
	return !s.ServiceSale.IsZero() || !s.ProductSale.IsZero() ||
		!s.PackageSale.IsZero() || !s.GiftCardSale.IsZero()
}

// SameComputation compares the pipeline-owned fields of two records.
func (s DailySale) SameComputation(o DailySale) bool {
	return s.TenantID == o.TenantID &&
		s.StaffID == o.StaffID &&
		s.Date.Equal(o.Date) &&
		s.ServiceSale.Equal(o.ServiceSale) &&
		s.ProductSale.Equal(o.ProductSale) &&
		s.PackageSale.Equal(o.PackageSale) &&
		s.GiftCardSale.Equal(o.GiftCardSale) &&
		s.CustomerCount == o.CustomerCount &&
		s.AppliedRule.Equal(o.AppliedRule)
}

// =============================================================================
// TARGET BASELINE
// =============================================================================

// StaffBaseline is the per-staff amount the rule multiplier scales into a
// daily target.
type StaffBaseline struct {
	TenantID  TenantID
	StaffID   StaffID
	Amount    decimal.Decimal
	UpdatedAt time.Time
}

// =============================================================================
// BACKFILL RUN - Audit record of one orchestrator invocation
// =============================================================================

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

type BackfillRun struct {
	ID               string
	TenantID         TenantID
	Start            Day
	End              Day
	Status           RunStatus
	Trigger          string // "api", "scheduler"
	ProcessedRecords int
	Error            string
	StartedAt        time.Time
	CompletedAt      *time.Time
}

// Covers reports whether the run's range includes day.
func (r BackfillRun) Covers(day Day) bool {
	return !day.Before(r.Start) && !day.After(r.End)
}

// Settles reports whether the run covered day and started once day was
// over. A run that started during the day missed the day's later invoices.
func (r BackfillRun) Settles(day Day) bool {
	return r.Covers(day) && !r.StartedAt.Before(day.AddDays(1).Start())
}
