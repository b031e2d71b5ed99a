package generic_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/generic"
	"github.com/warp/incentive-engine/generic/store"
	"github.com/warp/incentive-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const tenantA generic.TenantID = "salon-a"

var ctxBG = context.Background()

// engineStore is the subset of a store the engine tests need.
type engineStore interface {
	generic.RuleStore
	generic.InvoiceStore
	generic.DailySaleStore
	generic.BaselineStore
	generic.RunStore
}

// eachStore runs fn against the in-memory store and an in-memory SQLite store.
func eachStore(t *testing.T, fn func(t *testing.T, s engineStore)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, store.NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func march(day int) generic.Day {
	return generic.NewDay(2025, time.March, day)
}

func item(staff string, typ generic.ItemType, price int64) generic.LineItem {
	li := generic.LineItem{ItemType: typ, FinalPrice: decimal.NewFromInt(price)}
	if staff != "" {
		li.StaffID = generic.StaffRef(staff)
	}
	return li
}

func invoice(id string, customer string, at time.Time, items ...generic.LineItem) generic.Invoice {
	return generic.Invoice{
		ID:         generic.InvoiceID(id),
		TenantID:   tenantA,
		CustomerID: generic.CustomerID(customer),
		CreatedAt:  at,
		LineItems:  items,
	}
}

func saveAll(t *testing.T, s generic.InvoiceStore, invoices ...generic.Invoice) {
	t.Helper()
	for _, inv := range invoices {
		require.NoError(t, s.SaveInvoice(ctxBG, inv))
	}
}

// workedExample is two invoices on one day plus an unattributed fee.
func workedExample(day generic.Day) []generic.Invoice {
	return []generic.Invoice{
		invoice("inv-1", "C1", day.Start().Add(10*time.Hour),
			item("S1", generic.ItemService, 500),
			item("S2", generic.ItemProduct, 200),
		),
		invoice("inv-2", "C2", day.Start().Add(15*time.Hour),
			item("S1", generic.ItemPackage, 1000),
			item("", generic.ItemFee, 30),
		),
	}
}

func rateRule(id string, effective time.Time, rate string) generic.IncentiveRule {
	return generic.IncentiveRule{
		ID:            generic.RuleID(id),
		TenantID:      tenantA,
		Type:          generic.RuleDaily,
		EffectiveFrom: effective,
		Incentive: generic.IncentiveConfig{
			Rate: generic.DecimalPtr(dec(rate)),
		},
	}
}
