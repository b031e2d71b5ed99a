package salon

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/generic"
)

// =============================================================================
// RULE PRESETS
// =============================================================================

// StandardDailyRule counts services and products at 5% / 10%, target 5x.
// It sets every field explicitly so its snapshot never depends on defaults.
func StandardDailyRule(id generic.RuleID, tenantID generic.TenantID, effective time.Time) generic.IncentiveRule {
	return generic.IncentiveRule{
		ID:            id,
		TenantID:      tenantID,
		Type:          generic.RuleDaily,
		EffectiveFrom: effective,
		Target:        generic.TargetConfig{Multiplier: generic.DecimalPtr(decimal.NewFromInt(5))},
		Sales: generic.SalesConfig{
			IncludeServiceSale:  generic.BoolPtr(true),
			IncludeProductSale:  generic.BoolPtr(true),
			IncludePackageSale:  generic.BoolPtr(false),
			IncludeGiftCardSale: generic.BoolPtr(false),
		},
		Incentive: generic.IncentiveConfig{
			Rate:       generic.DecimalPtr(decimal.RequireFromString("0.05")),
			DoubleRate: generic.DecimalPtr(decimal.RequireFromString("0.10")),
			ApplyOn:    generic.ApplyOnPtr(generic.ApplyOnTotalSale),
		},
	}
}

// ServiceOnlyRule pays on service revenue alone. Products still count
// toward the target.
func ServiceOnlyRule(id generic.RuleID, tenantID generic.TenantID, effective time.Time, rate decimal.Decimal) generic.IncentiveRule {
	return generic.IncentiveRule{
		ID:            id,
		TenantID:      tenantID,
		Type:          generic.RuleDaily,
		EffectiveFrom: effective,
		Incentive: generic.IncentiveConfig{
			Rate:    generic.DecimalPtr(rate),
			ApplyOn: generic.ApplyOnPtr(generic.ApplyOnServiceSale),
		},
	}
}

// PackageBonusRule counts package and gift card sales and pays a separate
// rate on each.
func PackageBonusRule(id generic.RuleID, tenantID generic.TenantID, effective time.Time, packageRate, giftCardRate decimal.Decimal) generic.IncentiveRule {
	return generic.IncentiveRule{
		ID:            id,
		TenantID:      tenantID,
		Type:          generic.RuleDaily,
		EffectiveFrom: effective,
		Sales: generic.SalesConfig{
			IncludePackageSale:  generic.BoolPtr(true),
			IncludeGiftCardSale: generic.BoolPtr(true),
		},
		Incentive: generic.IncentiveConfig{
			PackageRate:  generic.DecimalPtr(packageRate),
			GiftCardRate: generic.DecimalPtr(giftCardRate),
		},
	}
}

// ReviewBonusRule only overrides the review payouts.
func ReviewBonusRule(id generic.RuleID, tenantID generic.TenantID, effective time.Time, nameValue, photoValue decimal.Decimal) generic.IncentiveRule {
	return generic.IncentiveRule{
		ID:            id,
		TenantID:      tenantID,
		Type:          generic.RuleDaily,
		EffectiveFrom: effective,
		Sales: generic.SalesConfig{
			ReviewNameValue:  generic.DecimalPtr(nameValue),
			ReviewPhotoValue: generic.DecimalPtr(photoValue),
		},
	}
}
