/*
aggregator.go - Daily Sales Aggregator

PURPOSE:
  Groups one day's invoices by attributed staff member into category
  totals and distinct-customer counts.

RULES:
  - Line items without a staff id are excluded (flat fees, surcharges)
  - service -> ServiceSale, product -> ProductSale,
    package -> PackageSale, gift_card -> GiftCardSale
  - fee and unrecognized types are ignored
  - an attributed line item with an empty type is malformed
  - CustomerCount is the number of distinct customers across invoices
    with at least one line item attributed to the staff member;
    walk-in invoices (no customer id) add none

  Grouping does not depend on invoice order.
*/
package generic

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// StaffTotals holds one staff member's per-category sums.
type StaffTotals struct {
	ServiceSale  decimal.Decimal
	ProductSale  decimal.Decimal
	PackageSale  decimal.Decimal
	GiftCardSale decimal.Decimal
}

// IsZero reports whether every bucket is zero.
func (t StaffTotals) IsZero() bool {
	return t.ServiceSale.IsZero() && t.ProductSale.IsZero() &&
		t.PackageSale.IsZero() && t.GiftCardSale.IsZero()
}

func (t *StaffTotals) add(item ItemType, amount decimal.Decimal) {
	switch item {
	case ItemService:
		t.ServiceSale = t.ServiceSale.Add(amount)
	case ItemProduct:
		t.ProductSale = t.ProductSale.Add(amount)
	case ItemPackage:
		t.PackageSale = t.PackageSale.Add(amount)
	case ItemGiftCard:
		t.GiftCardSale = t.GiftCardSale.Add(amount)
	}
}

// DayAggregate is the aggregation of one day. Staff appear in Totals when
// at least one attributed line item named them.
type DayAggregate struct {
	Totals         map[StaffID]StaffTotals
	CustomerCounts map[StaffID]int
	InvoiceCount   int
}

// Empty reports whether the day had no invoices.
func (a DayAggregate) Empty() bool { return a.InvoiceCount == 0 }

// Staff returns the aggregated staff ids in sorted order.
func (a DayAggregate) Staff() []StaffID {
	ids := make([]StaffID, 0, len(a.Totals))
	for id := range a.Totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AggregateInvoices is the pure aggregation over an already-fetched day.
func AggregateInvoices(invoices []Invoice) (DayAggregate, error) {
	agg := DayAggregate{
		Totals:         make(map[StaffID]StaffTotals),
		CustomerCounts: make(map[StaffID]int),
		InvoiceCount:   len(invoices),
	}
	customers := make(map[StaffID]map[CustomerID]struct{})

	for _, inv := range invoices {
		for i, li := range inv.LineItems {
			if !li.Attributed() {
				continue
			}
			staff := *li.StaffID
			if li.ItemType == "" {
				return DayAggregate{}, &MalformedLineItemError{
					InvoiceID: inv.ID,
					StaffID:   staff,
					Index:     i,
					Reason:    "missing item type",
				}
			}

			totals := agg.Totals[staff]
			totals.add(li.ItemType, li.FinalPrice)
			agg.Totals[staff] = totals

			if inv.CustomerID == "" {
				continue
			}
			set, ok := customers[staff]
			if !ok {
				set = make(map[CustomerID]struct{})
				customers[staff] = set
			}
			set[inv.CustomerID] = struct{}{}
		}
	}

	for staff := range agg.Totals {
		agg.CustomerCounts[staff] = len(customers[staff])
	}
	return agg, nil
}

// Aggregator reads a day's invoices from an InvoiceSource.
type Aggregator struct {
	Invoices InvoiceSource
}

func NewAggregator(src InvoiceSource) *Aggregator {
	return &Aggregator{Invoices: src}
}

// Aggregate fetches invoices created in [dayStart, dayEnd] and aggregates them.
func (a *Aggregator) Aggregate(ctx context.Context, tenantID TenantID, dayStart, dayEnd time.Time) (DayAggregate, error) {
	invoices, err := a.Invoices.InvoicesBetween(ctx, tenantID, dayStart, dayEnd)
	if err != nil {
		return DayAggregate{}, fmt.Errorf("load invoices: %w", err)
	}
	if len(invoices) == 0 {
		return DayAggregate{Totals: map[StaffID]StaffTotals{}, CustomerCounts: map[StaffID]int{}}, nil
	}
	return AggregateInvoices(invoices)
}
