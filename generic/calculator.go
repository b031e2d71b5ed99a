/*
calculator.go - Incentive Calculator

PURPOSE:
  Turns one DailySale and the rule snapshot embedded in it into a payout.
  The calculation reads only the record and the two pluggable inputs
  below; the DailySale is never modified.

FORMULA:
  Achieved  = sum of the sale categories enabled by AppliedRule.Sales
  Target    = TargetSource baseline x AppliedRule.Target.Multiplier
  Rate      = TierPolicy.Rate(...)
  Base      = Achieved, or ServiceSale when applyOn = service_sale
  Amount    = Base x Rate
            + PackageSale x packageRate      (package sales enabled)
            + GiftCardSale x giftCardRate    (gift card sales enabled)
            + ReviewsWithName x reviewNameValue
            + ReviewsWithPhoto x reviewPhotoValue
  Amounts are rounded to cents.

PLUGGABLE INPUTS:
  - TargetSource: where a staff member's baseline comes from
  - TierPolicy: how rate and doubleRate are chosen
  Both are tenant-configurable; FlatRate is the default policy.

SEE ALSO:
  - salon/tiers.go: TargetTier policy and static targets
*/
package generic

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PLUGGABLE INPUTS
// =============================================================================

// TargetSource supplies the per-staff baseline the multiplier scales.
type TargetSource interface {
	Baseline(ctx context.Context, tenantID TenantID, staffID StaffID) (decimal.Decimal, error)
}

// TierInput is everything a TierPolicy may look at.
type TierInput struct {
	Achieved  decimal.Decimal
	Target    decimal.Decimal
	TargetMet bool
	Incentive IncentiveSnapshot
}

// TierPolicy chooses the rate applied to the incentive base.
type TierPolicy interface {
	Name() string
	Rate(in TierInput) decimal.Decimal
}

// FlatRate always applies the snapshot's base rate.
type FlatRate struct{}

func (FlatRate) Name() string                      { return "flat" }
func (FlatRate) Rate(in TierInput) decimal.Decimal { return in.Incentive.Rate }

// StoreTargetSource reads baselines from a BaselineStore and falls back to
// Default for staff without one.
type StoreTargetSource struct {
	Store   BaselineStore
	Default decimal.Decimal
}

func (s StoreTargetSource) Baseline(ctx context.Context, tenantID TenantID, staffID StaffID) (decimal.Decimal, error) {
	b, err := s.Store.GetBaseline(ctx, tenantID, staffID)
	if errors.Is(err, ErrNotFound) {
		return s.Default, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return b.Amount, nil
}

// =============================================================================
// RESULT
// =============================================================================

type IncentiveBreakdown struct {
	Base             decimal.Decimal `json:"base"`
	BaseIncentive    decimal.Decimal `json:"baseIncentive"`
	PackageBonus     decimal.Decimal `json:"packageBonus"`
	GiftCardBonus    decimal.Decimal `json:"giftCardBonus"`
	ReviewNameBonus  decimal.Decimal `json:"reviewNameBonus"`
	ReviewPhotoBonus decimal.Decimal `json:"reviewPhotoBonus"`
}

type IncentiveResult struct {
	TenantID        TenantID
	StaffID         StaffID
	Date            Day
	Target          decimal.Decimal
	Achieved        decimal.Decimal
	IsTargetMet     bool
	AppliedRate     decimal.Decimal
	IncentiveAmount decimal.Decimal
	Policy          string
	Breakdown       IncentiveBreakdown
}

// =============================================================================
// CALCULATOR
// =============================================================================

type Calculator struct {
	Targets TargetSource

	// Policy is used for tenants absent from TenantPolicies. Nil means FlatRate.
	Policy         TierPolicy
	TenantPolicies map[TenantID]TierPolicy
}

func NewCalculator(targets TargetSource, policy TierPolicy) *Calculator {
	return &Calculator{Targets: targets, Policy: policy}
}

// PolicyFor returns the tier policy configured for the tenant.
func (c *Calculator) PolicyFor(tenantID TenantID) TierPolicy {
	if p, ok := c.TenantPolicies[tenantID]; ok && p != nil {
		return p
	}
	if c.Policy != nil {
		return c.Policy
	}
	return FlatRate{}
}

// Compute calculates the incentive for one staff-day.
func (c *Calculator) Compute(ctx context.Context, sale DailySale) (IncentiveResult, error) {
	rule := sale.AppliedRule

	baseline := decimal.Zero
	if c.Targets != nil {
		b, err := c.Targets.Baseline(ctx, sale.TenantID, sale.StaffID)
		if err != nil {
			return IncentiveResult{}, fmt.Errorf("load target baseline for %s: %w", sale.StaffID, err)
		}
		baseline = b
	}

	achieved := Achieved(sale)
	target := baseline.Mul(rule.Target.Multiplier)
	met := achieved.GreaterThanOrEqual(target)

	policy := c.PolicyFor(sale.TenantID)
	rate := policy.Rate(TierInput{
		Achieved:  achieved,
		Target:    target,
		TargetMet: met,
		Incentive: rule.Incentive,
	})

	base := achieved
	if rule.Incentive.ApplyOn == ApplyOnServiceSale {
		base = sale.ServiceSale
	}

	bd := IncentiveBreakdown{
		Base:             base,
		BaseIncentive:    RoundMoney(base.Mul(rate)),
		PackageBonus:     decimal.Zero,
		GiftCardBonus:    decimal.Zero,
		ReviewNameBonus:  RoundMoney(decimal.NewFromInt(int64(sale.ReviewsWithName)).Mul(rule.Sales.ReviewNameValue)),
		ReviewPhotoBonus: RoundMoney(decimal.NewFromInt(int64(sale.ReviewsWithPhoto)).Mul(rule.Sales.ReviewPhotoValue)),
	}
	if rule.Sales.IncludePackageSale {
		bd.PackageBonus = RoundMoney(sale.PackageSale.Mul(rule.Incentive.PackageRate))
	}
	if rule.Sales.IncludeGiftCardSale {
		bd.GiftCardBonus = RoundMoney(sale.GiftCardSale.Mul(rule.Incentive.GiftCardRate))
	}

	amount := bd.BaseIncentive.
		Add(bd.PackageBonus).
		Add(bd.GiftCardBonus).
		Add(bd.ReviewNameBonus).
		Add(bd.ReviewPhotoBonus)

	return IncentiveResult{
		TenantID:        sale.TenantID,
		StaffID:         sale.StaffID,
		Date:            sale.Date,
		Target:          RoundMoney(target),
		Achieved:        achieved,
		IsTargetMet:     met,
		AppliedRate:     rate,
		IncentiveAmount: RoundMoney(amount),
		Policy:          policy.Name(),
		Breakdown:       bd,
	}, nil
}

// Achieved sums the categories the applied rule counts toward the target.
func Achieved(sale DailySale) decimal.Decimal {
	s := sale.AppliedRule.Sales
	total := decimal.Zero
	if s.IncludeServiceSale {
		total = total.Add(sale.ServiceSale)
	}
	if s.IncludeProductSale {
		total = total.Add(sale.ProductSale)
	}
	if s.IncludePackageSale {
		total = total.Add(sale.PackageSale)
	}
	if s.IncludeGiftCardSale {
		total = total.Add(sale.GiftCardSale)
	}
	return total
}
