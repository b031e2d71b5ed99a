package salon_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/generic"
	"github.com/warp/incentive-engine/salon"
)

func tierInput(achieved, target int64) generic.TierInput {
	a, tg := decimal.NewFromInt(achieved), decimal.NewFromInt(target)
	return generic.TierInput{
		Achieved:  a,
		Target:    tg,
		TargetMet: a.GreaterThanOrEqual(tg),
		Incentive: generic.DefaultRuleSnapshot().Incentive,
	}
}

func TestTargetTier_Rates(t *testing.T) {
	tier := salon.TargetTier{DoubleAt: decimal.RequireFromString("1.5")}

	cases := []struct {
		name     string
		achieved int64
		want     string
	}{
		{"below target pays base", 400, "0.05"},
		{"met target pays base", 500, "0.05"},
		{"at 1.5x target doubles", 750, "0.1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tier.Rate(tierInput(tc.achieved, 500))
			assert.True(t, decimal.RequireFromString(tc.want).Equal(got), "got %s", got)
		})
	}
}

func TestTargetTier_RequireTarget(t *testing.T) {
	tier := salon.TargetTier{RequireTarget: true}

	assert.True(t, tier.Rate(tierInput(499, 500)).IsZero())
	assert.Equal(t, "0.1", tier.Rate(tierInput(500, 500)).String())
}

func TestPolicyByName(t *testing.T) {
	p, err := salon.PolicyByName("", decimal.Zero, false)
	require.NoError(t, err)
	assert.Equal(t, "flat", p.Name())

	p, err = salon.PolicyByName("Target_Tier", decimal.NewFromInt(2), true)
	require.NoError(t, err)
	assert.Equal(t, salon.TargetTier{DoubleAt: decimal.NewFromInt(2), RequireTarget: true}, p)

	_, err = salon.PolicyByName("progressive", decimal.Zero, false)
	assert.Error(t, err)
}

func TestStaticTargets(t *testing.T) {
	src := salon.StaticTargets{
		Baselines: map[generic.StaffID]decimal.Decimal{"S1": decimal.NewFromInt(90)},
		Default:   decimal.NewFromInt(10),
	}

	b, err := src.Baseline(context.Background(), "t", "S1")
	require.NoError(t, err)
	assert.Equal(t, "90", b.String())

	b, err = src.Baseline(context.Background(), "t", "S2")
	require.NoError(t, err)
	assert.Equal(t, "10", b.String())
}

func TestPresets_AreValidAndMergeAsDocumented(t *testing.T) {
	at := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	rules := []generic.IncentiveRule{
		salon.StandardDailyRule("std", "t", at),
		salon.ServiceOnlyRule("svc", "t", at, decimal.RequireFromString("0.07")),
		salon.PackageBonusRule("pkg", "t", at, decimal.RequireFromString("0.02"), decimal.RequireFromString("0.01")),
		salon.ReviewBonusRule("rev", "t", at, decimal.NewFromInt(100), decimal.NewFromInt(150)),
	}
	for _, r := range rules {
		require.NoError(t, r.Validate(), r.ID)
	}

	svc := generic.MergeRule(generic.DefaultRuleSnapshot(), rules[1])
	assert.Equal(t, generic.ApplyOnServiceSale, svc.Incentive.ApplyOn)
	assert.True(t, svc.Sales.IncludeProductSale)

	pkg := generic.MergeRule(generic.DefaultRuleSnapshot(), rules[2])
	assert.True(t, pkg.Sales.IncludePackageSale)
	assert.True(t, pkg.Sales.IncludeGiftCardSale)
	assert.Equal(t, "0.02", pkg.Incentive.PackageRate.String())
}
