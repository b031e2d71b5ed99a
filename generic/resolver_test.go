package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/generic"
)

// =============================================================================
// MERGE
// =============================================================================

func TestMergeRule_EmptyRuleKeepsDefaults(t *testing.T) {
	// GIVEN: A rule that sets nothing
	rule := generic.IncentiveRule{ID: "r-empty", TenantID: tenantA, Type: generic.RuleDaily}

	// WHEN: Merged over the defaults
	snap := generic.MergeRule(generic.DefaultRuleSnapshot(), rule)

	// THEN: Every value is the default, stamped with the rule id
	want := generic.DefaultRuleSnapshot()
	want.RuleID = "r-empty"
	assert.True(t, want.Equal(snap))
}

func TestMergeRule_FieldByField(t *testing.T) {
	// GIVEN: A rule overriding one field in each group, including a false bool
	rule := generic.IncentiveRule{
		ID:       "r-1",
		TenantID: tenantA,
		Type:     generic.RuleDaily,
		Target:   generic.TargetConfig{Multiplier: generic.DecimalPtr(dec("3"))},
		Sales:    generic.SalesConfig{IncludeProductSale: generic.BoolPtr(false)},
		Incentive: generic.IncentiveConfig{
			ApplyOn: generic.ApplyOnPtr(generic.ApplyOnServiceSale),
		},
	}

	snap := generic.MergeRule(generic.DefaultRuleSnapshot(), rule)

	// THEN: Overridden fields change, siblings keep defaults
	assertDecimal(t, "3", snap.Target.Multiplier)
	assert.False(t, snap.Sales.IncludeProductSale)
	assert.True(t, snap.Sales.IncludeServiceSale)
	assert.Equal(t, generic.ApplyOnServiceSale, snap.Incentive.ApplyOn)
	assertDecimal(t, "0.05", snap.Incentive.Rate)
	assertDecimal(t, "200", snap.Sales.ReviewNameValue)
}

func TestRuleValidate_RejectsNegativeRate(t *testing.T) {
	rule := rateRule("r-neg", time.Now(), "-0.01")

	err := rule.Validate()

	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrInvalidRule)
	assert.Contains(t, err.Error(), "incentive.rate")
}

func TestRuleValidate_RejectsUnknownApplyOn(t *testing.T) {
	rule := rateRule("r-bad", time.Now(), "0.05")
	rule.Incentive.ApplyOn = generic.ApplyOnPtr("gross")

	assert.ErrorIs(t, rule.Validate(), generic.ErrInvalidRule)
}

// =============================================================================
// EFFECTIVE DATING
// =============================================================================

func TestResolveFrom_NoRuleUsesDefaults(t *testing.T) {
	snap := generic.ResolveFrom(nil, generic.RuleDaily, march(1))

	assert.True(t, generic.DefaultRuleSnapshot().Equal(snap))
	assert.Empty(t, snap.RuleID)
}

func TestResolveFrom_RuleEffectiveMidDayAppliesToThatDay(t *testing.T) {
	// GIVEN: R1 from March 1, R2 from March 10 at 18:00
	rules := []generic.IncentiveRule{
		rateRule("r1", march(1).Start(), "0.05"),
		rateRule("r2", march(10).Start().Add(18*time.Hour), "0.08"),
	}

	// THEN: Days up to the 9th use R1; the 10th onwards use R2
	assert.Equal(t, generic.RuleID("r1"), generic.ResolveFrom(rules, generic.RuleDaily, march(9)).RuleID)
	assert.Equal(t, generic.RuleID("r2"), generic.ResolveFrom(rules, generic.RuleDaily, march(10)).RuleID)
	assert.Equal(t, generic.RuleID("r2"), generic.ResolveFrom(rules, generic.RuleDaily, march(20)).RuleID)
}

func TestResolveFrom_DayBeforeFirstRuleUsesDefaults(t *testing.T) {
	rules := []generic.IncentiveRule{rateRule("r1", march(5).Start(), "0.07")}

	snap := generic.ResolveFrom(rules, generic.RuleDaily, march(4))

	assert.Empty(t, snap.RuleID)
	assertDecimal(t, "0.05", snap.Incentive.Rate)
}

func TestResolveFrom_IgnoresOtherRuleTypes(t *testing.T) {
	monthly := rateRule("m1", march(1).Start(), "0.20")
	monthly.Type = generic.RuleMonthly

	snap := generic.ResolveFrom([]generic.IncentiveRule{monthly}, generic.RuleDaily, march(2))

	assert.Empty(t, snap.RuleID)
}

func TestResolver_StoreAndPureFormAgree(t *testing.T) {
	eachStore(t, func(t *testing.T, s engineStore) {
		// GIVEN: Three versions, two effective at the same instant
		rules := []generic.IncentiveRule{
			rateRule("r-a", march(1).Start(), "0.05"),
			rateRule("r-b", march(3).Start(), "0.06"),
			rateRule("r-c", march(3).Start(), "0.07"),
		}
		for _, r := range rules {
			require.NoError(t, s.AppendRule(ctxBG, r))
		}
		resolver := generic.NewResolver(s)

		// WHEN/THEN: Every day resolves the same as the pure form
		for _, day := range []generic.Day{march(1), march(2), march(3), march(31)} {
			got, err := resolver.Resolve(ctxBG, tenantA, generic.RuleDaily, day)
			require.NoError(t, err)
			want := generic.ResolveFrom(rules, generic.RuleDaily, day)
			assert.True(t, want.Equal(got), "day %s: want %s got %s", day, want.RuleID, got.RuleID)
		}
	})
}

func TestResolver_RequiresTenant(t *testing.T) {
	eachStore(t, func(t *testing.T, s engineStore) {
		_, err := generic.NewResolver(s).Resolve(ctxBG, "", generic.RuleDaily, march(1))
		assert.ErrorIs(t, err, generic.ErrTenantRequired)
	})
}

func TestSortRules_OldestFirstThenID(t *testing.T) {
	rules := []generic.IncentiveRule{
		rateRule("b", march(2).Start(), "0.05"),
		rateRule("c", march(1).Start(), "0.05"),
		rateRule("a", march(2).Start(), "0.05"),
	}

	generic.SortRules(rules)

	ids := []generic.RuleID{rules[0].ID, rules[1].ID, rules[2].ID}
	assert.Equal(t, []generic.RuleID{"c", "a", "b"}, ids)
}
