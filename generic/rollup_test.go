package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/generic"
)

func TestRollup_WeekTotals(t *testing.T) {
	eachStore(t, func(t *testing.T, s engineStore) {
		// GIVEN: S1 sells 100 of services on Mon, Wed and the following Mon
		for _, d := range []int{3, 5, 10} {
			saveAll(t, s, invoice("inv-"+march(d).String(), "C1",
				march(d).Start().Add(11*time.Hour), item("S1", generic.ItemService, 100)))
		}
		_, err := newOrchestrator(s).Backfill(ctxBG, tenantCtx(t), march(1), march(31))
		require.NoError(t, err)

		calc := flatCalculator("0")
		rollup := generic.NewRollup(s, calc)

		// WHEN: Rolling up the week of Wednesday March 5 for S1 and S2
		week := generic.WeekOf(march(5))
		totals, err := rollup.Rollup(ctxBG, tenantA, []generic.StaffID{"S1", "S2"}, week)
		require.NoError(t, err)

		// THEN: Two active days for S1, zero-filled S2
		s1 := totals["S1"]
		assertDecimal(t, "200", s1.ServiceSale)
		assertDecimal(t, "200", s1.Achieved)
		assertDecimal(t, "10", s1.IncentiveAmount)
		assert.Equal(t, 2, s1.ActiveDays)
		assert.Equal(t, 2, s1.CustomerCount)

		s2, ok := totals["S2"]
		require.True(t, ok)
		assert.Equal(t, 0, s2.ActiveDays)
		assertDecimal(t, "0", s2.IncentiveAmount)
	})
}

func TestRollup_MonthMatchesSumOfDays(t *testing.T) {
	eachStore(t, func(t *testing.T, s engineStore) {
		for d := 1; d <= 31; d += 3 {
			saveAll(t, s, invoice("inv-"+march(d).String(), "C1",
				march(d).Start().Add(8*time.Hour),
				item("S1", generic.ItemService, int64(10*d)),
				item("S2", generic.ItemProduct, 7)))
		}
		_, err := newOrchestrator(s).Backfill(ctxBG, tenantCtx(t), march(1), march(31))
		require.NoError(t, err)
		calc := flatCalculator("0")

		totals, err := generic.NewRollup(s, calc).Rollup(ctxBG, tenantA, nil, generic.MonthOf(march(17)))
		require.NoError(t, err)

		sales, err := s.ListDailySales(ctxBG, tenantA, nil, march(1), march(31))
		require.NoError(t, err)
		sum := map[generic.StaffID]string{}
		for staff := range totals {
			total := dec("0")
			for _, sale := range sales {
				if sale.StaffID != staff {
					continue
				}
				res, err := calc.Compute(ctxBG, sale)
				require.NoError(t, err)
				total = total.Add(res.IncentiveAmount)
			}
			sum[staff] = total.String()
		}

		assert.Len(t, totals, 2)
		for staff, t2 := range totals {
			assertDecimal(t, sum[staff], t2.IncentiveAmount, "staff %s", staff)
		}
	})
}

func TestRollup_RejectsInvalidRange(t *testing.T) {
	eachStore(t, func(t *testing.T, s engineStore) {
		_, err := generic.NewRollup(s, flatCalculator("0")).
			Rollup(ctxBG, tenantA, nil, generic.DayRange{Start: march(5), End: march(1)})
		assert.ErrorIs(t, err, generic.ErrInvalidRange)
	})
}
