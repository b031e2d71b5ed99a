package generic_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/generic"
)

func TestAggregateInvoices_WorkedExample(t *testing.T) {
	// GIVEN: Inv1 {C1: S1 service 500, S2 product 200}, Inv2 {C2: S1 package 1000, fee}
	agg, err := generic.AggregateInvoices(workedExample(march(5)))
	require.NoError(t, err)

	// THEN: S1 and S2 totals and distinct customers
	s1 := agg.Totals["S1"]
	assertDecimal(t, "500", s1.ServiceSale)
	assertDecimal(t, "0", s1.ProductSale)
	assertDecimal(t, "1000", s1.PackageSale)
	assertDecimal(t, "0", s1.GiftCardSale)
	assert.Equal(t, 2, agg.CustomerCounts["S1"])

	s2 := agg.Totals["S2"]
	assertDecimal(t, "0", s2.ServiceSale)
	assertDecimal(t, "200", s2.ProductSale)
	assert.Equal(t, 1, agg.CustomerCounts["S2"])

	// AND: The unattributed fee creates no entry
	assert.Equal(t, []generic.StaffID{"S1", "S2"}, agg.Staff())
}

func TestAggregateInvoices_PartitionsCategorizedRevenue(t *testing.T) {
	// GIVEN: A busy day mixing staff, walk-ins, unattributed items and
	// item types that do not count as sales
	rng := rand.New(rand.NewSource(7))
	staff := []string{"S1", "S2", "S3", "S4", ""}
	types := []generic.ItemType{
		generic.ItemService, generic.ItemProduct, generic.ItemPackage,
		generic.ItemGiftCard, generic.ItemFee, "tip",
	}
	customers := []string{"C1", "C2", "C3", ""}
	at := march(5).Start()

	var invoices []generic.Invoice
	for i := 0; i < 60; i++ {
		var items []generic.LineItem
		for j := rng.Intn(4) + 1; j > 0; j-- {
			items = append(items, item(staff[rng.Intn(len(staff))], types[rng.Intn(len(types))], int64(rng.Intn(500)+1)))
		}
		invoices = append(invoices, invoice(
			"i"+string(rune('A'+i%26))+string(rune('a'+i/26)),
			customers[rng.Intn(len(customers))],
			at.Add(time.Duration(i)*time.Minute),
			items...,
		))
	}

	// Expected: every attributed item in a sales category, summed by category
	want := map[generic.ItemType]decimal.Decimal{}
	for _, inv := range invoices {
		for _, li := range inv.LineItems {
			if li.StaffID == nil {
				continue
			}
			switch li.ItemType {
			case generic.ItemService, generic.ItemProduct, generic.ItemPackage, generic.ItemGiftCard:
				want[li.ItemType] = want[li.ItemType].Add(li.FinalPrice)
			}
		}
	}

	// WHEN: Aggregating
	agg, err := generic.AggregateInvoices(invoices)
	require.NoError(t, err)

	// THEN: Summing across staff gives back exactly the categorized revenue
	got := map[generic.ItemType]decimal.Decimal{}
	for _, totals := range agg.Totals {
		got[generic.ItemService] = got[generic.ItemService].Add(totals.ServiceSale)
		got[generic.ItemProduct] = got[generic.ItemProduct].Add(totals.ProductSale)
		got[generic.ItemPackage] = got[generic.ItemPackage].Add(totals.PackageSale)
		got[generic.ItemGiftCard] = got[generic.ItemGiftCard].Add(totals.GiftCardSale)
	}
	for _, typ := range []generic.ItemType{generic.ItemService, generic.ItemProduct, generic.ItemPackage, generic.ItemGiftCard} {
		assert.True(t, want[typ].Equal(got[typ]), "%s: want %s, got %s", typ, want[typ], got[typ])
	}
	assert.NotContains(t, agg.Totals, generic.StaffID(""))
}

func TestAggregateInvoices_SameCustomerCountedOnce(t *testing.T) {
	at := march(5).Start().Add(9 * time.Hour)
	invoices := []generic.Invoice{
		invoice("i1", "C1", at, item("S1", generic.ItemService, 100)),
		invoice("i2", "C1", at.Add(time.Hour), item("S1", generic.ItemService, 50)),
	}

	agg, err := generic.AggregateInvoices(invoices)
	require.NoError(t, err)

	assertDecimal(t, "150", agg.Totals["S1"].ServiceSale)
	assert.Equal(t, 1, agg.CustomerCounts["S1"])
}

func TestAggregateInvoices_WalkInAddsNoCustomer(t *testing.T) {
	at := march(5).Start().Add(9 * time.Hour)
	agg, err := generic.AggregateInvoices([]generic.Invoice{
		invoice("i1", "", at, item("S1", generic.ItemGiftCard, 80)),
	})
	require.NoError(t, err)

	assertDecimal(t, "80", agg.Totals["S1"].GiftCardSale)
	assert.Equal(t, 0, agg.CustomerCounts["S1"])
}

func TestAggregateInvoices_FeeOnlyForStaff(t *testing.T) {
	// An attributed fee puts the staff in Totals with all-zero buckets.
	at := march(5).Start()
	agg, err := generic.AggregateInvoices([]generic.Invoice{
		invoice("i1", "C1", at, item("S9", generic.ItemFee, 15)),
	})
	require.NoError(t, err)

	assert.True(t, agg.Totals["S9"].IsZero())
}

func TestAggregateInvoices_MalformedItem(t *testing.T) {
	at := march(5).Start()
	bad := invoice("i-bad", "C1", at, item("S1", generic.ItemService, 10), item("S3", "", 10))

	_, err := generic.AggregateInvoices([]generic.Invoice{bad})

	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrMalformedLineItem)
	var mErr *generic.MalformedLineItemError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, generic.InvoiceID("i-bad"), mErr.InvoiceID)
	assert.Equal(t, generic.StaffID("S3"), mErr.StaffID)
	assert.Equal(t, 1, mErr.Index)
}

func TestAggregateInvoices_OrderIndependent(t *testing.T) {
	// GIVEN: The same invoices in several shuffled orders
	at := march(5).Start()
	base := []generic.Invoice{
		invoice("a", "C1", at, item("S1", generic.ItemService, 120), item("S2", generic.ItemProduct, 30)),
		invoice("b", "C2", at, item("S2", generic.ItemService, 75)),
		invoice("c", "C1", at, item("S1", generic.ItemPackage, 400)),
		invoice("d", "", at, item("S3", generic.ItemGiftCard, 50), item("", generic.ItemFee, 5)),
	}
	want, err := generic.AggregateInvoices(base)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := append([]generic.Invoice(nil), base...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := generic.AggregateInvoices(shuffled)
		require.NoError(t, err)

		// THEN: Identical totals and customer counts
		assert.Equal(t, want.Staff(), got.Staff())
		for _, staff := range want.Staff() {
			w, g := want.Totals[staff], got.Totals[staff]
			assert.True(t, w.ServiceSale.Equal(g.ServiceSale))
			assert.True(t, w.ProductSale.Equal(g.ProductSale))
			assert.True(t, w.PackageSale.Equal(g.PackageSale))
			assert.True(t, w.GiftCardSale.Equal(g.GiftCardSale))
			assert.Equal(t, want.CustomerCounts[staff], got.CustomerCounts[staff])
		}
	}
}

func TestAggregator_ReadsOnlyTheDay(t *testing.T) {
	eachStore(t, func(t *testing.T, s engineStore) {
		// GIVEN: Invoices at both edges of March 5 and one on March 6
		saveAll(t, s,
			invoice("first", "C1", march(5).Start(), item("S1", generic.ItemService, 10)),
			invoice("last", "C2", march(5).End(), item("S1", generic.ItemService, 20)),
			invoice("next", "C3", march(6).Start(), item("S1", generic.ItemService, 40)),
		)

		agg, err := generic.NewAggregator(s).Aggregate(ctxBG, tenantA, march(5).Start(), march(5).End())
		require.NoError(t, err)

		assert.Equal(t, 2, agg.InvoiceCount)
		assertDecimal(t, "30", agg.Totals["S1"].ServiceSale)
	})
}
