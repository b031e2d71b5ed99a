/*
resolver.go - Rule Resolver

PURPOSE:
  Answers "which rule was in force for this tenant on this day?" and
  returns it as a fully-populated RuleSnapshot.

SELECTION:
  Among the tenant's rules of the requested type, the one with the latest
  EffectiveFrom that is <= the end of the day (23:59:59.999999999 UTC).
  A rule created at 18:00 on the 10th therefore governs the whole 10th.

FALLBACK:
  A tenant with no matching rule gets DefaultRuleSnapshot(). Resolution
  never fails because a tenant is unconfigured; only store errors surface.
*/
package generic

import (
	"context"
	"fmt"
	"sort"
)

// Resolver resolves rule snapshots from a RuleStore.
type Resolver struct {
	Rules RuleStore
}

func NewResolver(rules RuleStore) *Resolver {
	return &Resolver{Rules: rules}
}

// Resolve returns the snapshot of the ruleType rule effective on day.
func (r *Resolver) Resolve(ctx context.Context, tenantID TenantID, ruleType RuleType, day Day) (RuleSnapshot, error) {
	if tenantID == "" {
		return RuleSnapshot{}, ErrTenantRequired
	}
	rule, err := r.Rules.LatestRule(ctx, tenantID, ruleType, day.End())
	if err != nil {
		return RuleSnapshot{}, fmt.Errorf("resolve %s rule for %s: %w", ruleType, day, err)
	}
	if rule == nil {
		return DefaultRuleSnapshot(), nil
	}
	return MergeRule(DefaultRuleSnapshot(), *rule), nil
}

// ResolveFrom is the pure form of Resolve over an in-memory list of rule
// versions. Rules of other tenants are not filtered; callers pass one
// tenant's history.
func ResolveFrom(rules []IncentiveRule, ruleType RuleType, day Day) RuleSnapshot {
	rule := LatestEffective(rules, ruleType, day)
	if rule == nil {
		return DefaultRuleSnapshot()
	}
	return MergeRule(DefaultRuleSnapshot(), *rule)
}

// LatestEffective picks the version in force at the end of day. Ties on
// EffectiveFrom go to the later entry in the slice.
func LatestEffective(rules []IncentiveRule, ruleType RuleType, day Day) *IncentiveRule {
	cutoff := day.End()
	var best *IncentiveRule
	for i := range rules {
		r := &rules[i]
		if r.Type != ruleType || r.EffectiveFrom.After(cutoff) {
			continue
		}
		if best == nil || !r.EffectiveFrom.Before(best.EffectiveFrom) {
			best = r
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// SortRules orders rule versions oldest first, breaking ties by ID.
func SortRules(rules []IncentiveRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].EffectiveFrom.Equal(rules[j].EffectiveFrom) {
			return rules[i].ID < rules[j].ID
		}
		return rules[i].EffectiveFrom.Before(rules[j].EffectiveFrom)
	})
}
