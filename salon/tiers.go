/*
Package salon provides salon-specific incentive policies and presets.

  generic holds the engine; this package holds the choices a salon chain
  makes on top of it: how the double rate is earned, where staff targets
  come from, and ready-made rule documents.

TIER POLICIES:
  generic.FlatRate: Always the base rate (engine default)
  TargetTier:       Base rate once the target is met, double rate once
                    achieved reaches DoubleAt x target; optionally nothing
                    below target

EXAMPLE:
  calc := generic.NewCalculator(targets, salon.TargetTier{
      DoubleAt:      decimal.NewFromFloat(1.5),
      RequireTarget: true,
  })
*/
package salon

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/generic"
)

// TargetTier pays the double rate for beating the target by a margin.
type TargetTier struct {
	// DoubleAt is the multiple of target at which doubleRate applies.
	// Zero means 1, so doubleRate applies as soon as the target is met.
	DoubleAt decimal.Decimal

	// RequireTarget pays nothing below target.
	RequireTarget bool
}

func (t TargetTier) Name() string { return "target_tier" }

func (t TargetTier) Rate(in generic.TierInput) decimal.Decimal {
	if !in.TargetMet {
		if t.RequireTarget {
			return decimal.Zero
		}
		return in.Incentive.Rate
	}

	doubleAt := t.DoubleAt
	if doubleAt.IsZero() {
		doubleAt = decimal.NewFromInt(1)
	}
	if in.Achieved.GreaterThanOrEqual(in.Target.Mul(doubleAt)) {
		return in.Incentive.DoubleRate
	}
	return in.Incentive.Rate
}

// PolicyByName builds a tier policy from configuration values.
func PolicyByName(name string, doubleAt decimal.Decimal, requireTarget bool) (generic.TierPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "flat":
		return generic.FlatRate{}, nil
	case "target_tier", "tiered":
		return TargetTier{DoubleAt: doubleAt, RequireTarget: requireTarget}, nil
	}
	return nil, fmt.Errorf("unknown tier policy %q (use flat or target_tier)", name)
}

var (
	_ generic.TierPolicy = TargetTier{}
	_ generic.TierPolicy = generic.FlatRate{}
)
