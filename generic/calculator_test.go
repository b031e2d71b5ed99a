package generic_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/generic"
	"github.com/warp/incentive-engine/generic/store"
	"github.com/warp/incentive-engine/salon"
)

func saleWith(rule generic.RuleSnapshot, service, product, pkg, gift string) generic.DailySale {
	return generic.DailySale{
		TenantID:     tenantA,
		StaffID:      "S1",
		Date:         march(5),
		ServiceSale:  dec(service),
		ProductSale:  dec(product),
		PackageSale:  dec(pkg),
		GiftCardSale: dec(gift),
		AppliedRule:  rule,
	}
}

func flatCalculator(baseline string) *generic.Calculator {
	return generic.NewCalculator(salon.StaticTargets{Default: dec(baseline)}, generic.FlatRate{})
}

func TestCalculator_DefaultsOnTotalSale(t *testing.T) {
	// GIVEN: Worked-example S1 under the default rule
	sale := saleWith(generic.DefaultRuleSnapshot(), "500", "0", "1000", "0")

	res, err := flatCalculator("0").Compute(ctxBG, sale)
	require.NoError(t, err)

	// THEN: Packages are not counted by default; 500 x 0.05
	assertDecimal(t, "500", res.Achieved)
	assertDecimal(t, "25", res.IncentiveAmount)
	assertDecimal(t, "0", res.Breakdown.PackageBonus)
	assert.True(t, res.IsTargetMet)
	assert.Equal(t, "flat", res.Policy)
}

func TestCalculator_TargetFromBaselineAndMultiplier(t *testing.T) {
	sale := saleWith(generic.DefaultRuleSnapshot(), "300", "100", "0", "0")

	res, err := flatCalculator("100").Compute(ctxBG, sale)
	require.NoError(t, err)

	// Target = 100 x 5 = 500; achieved 400
	assertDecimal(t, "500", res.Target)
	assertDecimal(t, "400", res.Achieved)
	assert.False(t, res.IsTargetMet)
}

func TestCalculator_ApplyOnServiceSale(t *testing.T) {
	rule := generic.DefaultRuleSnapshot()
	rule.Incentive.ApplyOn = generic.ApplyOnServiceSale
	sale := saleWith(rule, "500", "200", "0", "0")

	res, err := flatCalculator("0").Compute(ctxBG, sale)
	require.NoError(t, err)

	assertDecimal(t, "700", res.Achieved)
	assertDecimal(t, "500", res.Breakdown.Base)
	assertDecimal(t, "25", res.IncentiveAmount)
}

func TestCalculator_PackageAndGiftCardBonuses(t *testing.T) {
	rule := generic.DefaultRuleSnapshot()
	rule.Sales.IncludePackageSale = true
	rule.Sales.IncludeGiftCardSale = true
	rule.Incentive.PackageRate = dec("0.02")
	rule.Incentive.GiftCardRate = dec("0.01")
	sale := saleWith(rule, "500", "0", "1000", "300")

	res, err := flatCalculator("0").Compute(ctxBG, sale)
	require.NoError(t, err)

	// Base 1800 x 0.05 = 90; package 20; gift card 3
	assertDecimal(t, "1800", res.Achieved)
	assertDecimal(t, "90", res.Breakdown.BaseIncentive)
	assertDecimal(t, "20", res.Breakdown.PackageBonus)
	assertDecimal(t, "3", res.Breakdown.GiftCardBonus)
	assertDecimal(t, "113", res.IncentiveAmount)
}

func TestCalculator_ReviewBonuses(t *testing.T) {
	sale := saleWith(generic.DefaultRuleSnapshot(), "0", "0", "0", "0")
	sale.ReviewsWithName = 2
	sale.ReviewsWithPhoto = 1

	res, err := flatCalculator("0").Compute(ctxBG, sale)
	require.NoError(t, err)

	// 2 x 200 + 1 x 300
	assertDecimal(t, "400", res.Breakdown.ReviewNameBonus)
	assertDecimal(t, "300", res.Breakdown.ReviewPhotoBonus)
	assertDecimal(t, "700", res.IncentiveAmount)
}

func TestCalculator_RoundsToCents(t *testing.T) {
	rule := generic.DefaultRuleSnapshot()
	rule.Incentive.Rate = dec("0.0333")
	sale := saleWith(rule, "100.10", "0", "0", "0")

	res, err := flatCalculator("0").Compute(ctxBG, sale)
	require.NoError(t, err)

	assertDecimal(t, "3.33", res.IncentiveAmount)
}

func TestCalculator_TargetTierDoublesAboveTarget(t *testing.T) {
	calc := generic.NewCalculator(
		salon.StaticTargets{Default: dec("100")},
		salon.TargetTier{DoubleAt: dec("1"), RequireTarget: true},
	)

	// Below target (400 < 500): nothing when the target is required
	below, err := calc.Compute(ctxBG, saleWith(generic.DefaultRuleSnapshot(), "400", "0", "0", "0"))
	require.NoError(t, err)
	assertDecimal(t, "0", below.AppliedRate)
	assertDecimal(t, "0", below.IncentiveAmount)

	// At target: double rate
	at, err := calc.Compute(ctxBG, saleWith(generic.DefaultRuleSnapshot(), "500", "0", "0", "0"))
	require.NoError(t, err)
	assertDecimal(t, "0.1", at.AppliedRate)
	assertDecimal(t, "50", at.IncentiveAmount)
	assert.Equal(t, "target_tier", at.Policy)
}

func TestCalculator_TenantPolicyOverride(t *testing.T) {
	calc := flatCalculator("0")
	calc.TenantPolicies = map[generic.TenantID]generic.TierPolicy{
		tenantA: salon.TargetTier{},
	}

	assert.Equal(t, "target_tier", calc.PolicyFor(tenantA).Name())
	assert.Equal(t, "flat", calc.PolicyFor("salon-b").Name())
}

func TestCalculator_DoesNotModifySale(t *testing.T) {
	sale := saleWith(generic.DefaultRuleSnapshot(), "500", "200", "0", "0")
	before := sale

	_, err := flatCalculator("10").Compute(ctxBG, sale)
	require.NoError(t, err)

	assert.True(t, before.SameComputation(sale))
}

func TestStoreTargetSource_FallsBackToDefault(t *testing.T) {
	mem := store.NewMemory()
	require.NoError(t, mem.SetBaseline(ctxBG, generic.StaffBaseline{
		TenantID: tenantA, StaffID: "S1", Amount: decimal.NewFromInt(80),
	}))
	src := generic.StoreTargetSource{Store: mem, Default: dec("20")}

	got, err := src.Baseline(ctxBG, tenantA, "S1")
	require.NoError(t, err)
	assertDecimal(t, "80", got)

	got, err = src.Baseline(ctxBG, tenantA, "S2")
	require.NoError(t, err)
	assertDecimal(t, "20", got)
}
