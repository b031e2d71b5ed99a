/*
Package generic provides the core incentive computation engine.

PURPOSE:
  This package turns point-of-sale transactions into per-staff, per-day
  sales aggregates (DailySale), stamps each aggregate with the incentive
  rule that was in force that day, and computes incentive payouts from
  those aggregates. Storage, transport and tenant-specific policies plug
  in through the interfaces declared here.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: Type-safe tenant/staff/customer/invoice IDs
  - TenantContext: Explicit tenant scope threaded through every call
  - Invoice / LineItem: The transaction source records
  - ItemType: Sale category of a line item

DESIGN PRINCIPLES:
  1. Precision: Money is decimal.Decimal, never float64
  2. Tenancy: Every store method takes a TenantID; no query can omit it
  3. Immutability: Rules are versioned, snapshots are embedded by value
  4. Idempotency: Recomputing a day from unchanged data yields the same record

USAGE:
  tc, err := generic.NewTenantContext("salon-42")
  result, err := orchestrator.Backfill(ctx, tc, generic.NewDay(2025, time.March, 1), generic.NewDay(2025, time.March, 31))

SEE ALSO:
  - rule.go: IncentiveRule, RuleSnapshot and the default merge
  - aggregator.go: Daily per-staff aggregation
  - backfill.go: Range recomputation
  - calculator.go: Incentive payout
*/
package generic

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type StaffID string
type CustomerID string
type InvoiceID string
type RuleID string

// TenantContext is the tenant scope of a request. It is built once at the
// edge (HTTP header, scheduler config) and passed explicitly; nothing in the
// engine reads tenant identity from globals.
type TenantContext struct {
	TenantID  TenantID
	RequestID string
}

// NewTenantContext validates the tenant id and returns a context value.
func NewTenantContext(tenantID string) (TenantContext, error) {
	id := strings.TrimSpace(tenantID)
	if id == "" {
		return TenantContext{}, ErrTenantRequired
	}
	return TenantContext{TenantID: TenantID(id)}, nil
}

// WithRequestID returns a copy carrying the request id for log correlation.
func (tc TenantContext) WithRequestID(id string) TenantContext {
	tc.RequestID = id
	return tc
}

// =============================================================================
// LINE ITEMS - Sale categories
// =============================================================================

type ItemType string

const (
	ItemService  ItemType = "service"
	ItemProduct  ItemType = "product"
	ItemFee      ItemType = "fee"
	ItemPackage  ItemType = "package"
	ItemGiftCard ItemType = "gift_card"
)

// LineItem is one priced entry of an invoice. StaffID is nil for
// unattributed entries such as flat fees.
type LineItem struct {
	StaffID    *StaffID
	ItemType   ItemType
	FinalPrice decimal.Decimal
}

// Attributed reports whether the line item names a staff member.
func (li LineItem) Attributed() bool {
	return li.StaffID != nil && *li.StaffID != ""
}

// Invoice is a point-of-sale record owned by the transaction source.
type Invoice struct {
	ID         InvoiceID
	TenantID   TenantID
	CustomerID CustomerID
	CreatedAt  time.Time
	LineItems  []LineItem
}

// StaffRef is a convenience for building attributed line items.
func StaffRef(id string) *StaffID {
	s := StaffID(id)
	return &s
}

// =============================================================================
// MONEY HELPERS
// =============================================================================

// RoundMoney rounds to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
