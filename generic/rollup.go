package generic

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROLLUP - Week / month totals per staff member
// =============================================================================

// RollupTotals is one staff member's totals over a window.
type RollupTotals struct {
	StaffID         StaffID
	ServiceSale     decimal.Decimal
	ProductSale     decimal.Decimal
	PackageSale     decimal.Decimal
	GiftCardSale    decimal.Decimal
	Achieved        decimal.Decimal
	CustomerCount   int
	IncentiveAmount decimal.Decimal
	ActiveDays      int
	DaysTargetMet   int
}

// Rollup sums daily incentives over a DayRange.
type Rollup struct {
	Sales      DailySaleStore
	Calculator *Calculator
}

func NewRollup(sales DailySaleStore, calc *Calculator) *Rollup {
	return &Rollup{Sales: sales, Calculator: calc}
}

// Rollup returns totals for each requested staff member over [rng.Start,
// rng.End]. Every requested staff member is present in the result; days
// without a DailySale contribute zero. An empty staffIDs slice rolls up
// every staff member with at least one record in the window.
func (r *Rollup) Rollup(ctx context.Context, tenantID TenantID, staffIDs []StaffID, rng DayRange) (map[StaffID]RollupTotals, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	if _, err := NewDayRange(rng.Start, rng.End); err != nil {
		return nil, err
	}

	out := make(map[StaffID]RollupTotals, len(staffIDs))
	for _, id := range staffIDs {
		out[id] = zeroTotals(id)
	}

	sales, err := r.Sales.ListDailySales(ctx, tenantID, staffIDs, rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("list daily sales: %w", err)
	}

	for _, sale := range sales {
		res, err := r.Calculator.Compute(ctx, sale)
		if err != nil {
			return nil, &DayError{Date: sale.Date, StaffID: sale.StaffID, Err: err}
		}
		t, ok := out[sale.StaffID]
		if !ok {
			t = zeroTotals(sale.StaffID)
		}
		t.ServiceSale = t.ServiceSale.Add(sale.ServiceSale)
		t.ProductSale = t.ProductSale.Add(sale.ProductSale)
		t.PackageSale = t.PackageSale.Add(sale.PackageSale)
		t.GiftCardSale = t.GiftCardSale.Add(sale.GiftCardSale)
		t.Achieved = t.Achieved.Add(res.Achieved)
		t.CustomerCount += sale.CustomerCount
		t.IncentiveAmount = t.IncentiveAmount.Add(res.IncentiveAmount)
		t.ActiveDays++
		if res.IsTargetMet {
			t.DaysTargetMet++
		}
		out[sale.StaffID] = t
	}
	return out, nil
}

func zeroTotals(id StaffID) RollupTotals {
	return RollupTotals{
		StaffID:         id,
		ServiceSale:     decimal.Zero,
		ProductSale:     decimal.Zero,
		PackageSale:     decimal.Zero,
		GiftCardSale:    decimal.Zero,
		Achieved:        decimal.Zero,
		IncentiveAmount: decimal.Zero,
	}
}
