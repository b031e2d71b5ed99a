/*
rule.go - Incentive rules, rule snapshots and the default merge

PURPOSE:
  An IncentiveRule is the tenant's compensation contract: what counts
  toward a staff member's sales, how the daily target is derived, and
  which rates apply. Rules are append-only: editing a rule creates a new
  version whose EffectiveFrom is its creation time.

KEY CONCEPTS:
  - IncentiveRule: A persisted rule version. Every field inside a group is
    optional so that documents written before a field existed still load.
  - RuleSnapshot: The fully-resolved value copy embedded into each
    DailySale. Later rule edits never reach already-computed history.
  - MergeRule: Field-by-field merge of a rule over the defaults.

DEFAULTS:
  target.multiplier                     5
  sales.includeServiceSale              true
  sales.includeProductSale              true
  sales.includePackageSale              false
  sales.includeGiftCardSale             false
  sales.reviewNameValue                 200
  sales.reviewPhotoValue                300
  incentive.rate / doubleRate           0.05 / 0.10
  incentive.applyOn                     total_sale
  incentive.packageRate / giftCardRate  0.01 / 0.01

SEE ALSO:
  - resolver.go: Picks the version in force on a day
  - factory/rule.go: JSON documents to IncentiveRule
*/
package generic

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RULE TYPES
// =============================================================================

type RuleType string

const (
	RuleDaily    RuleType = "daily"
	RuleMonthly  RuleType = "monthly"
	RulePackage  RuleType = "package"
	RuleGiftCard RuleType = "giftcard"
)

// Valid reports whether t is a known rule type.
func (t RuleType) Valid() bool {
	switch t {
	case RuleDaily, RuleMonthly, RulePackage, RuleGiftCard:
		return true
	}
	return false
}

// ApplyOn selects the base the incentive rate is applied to.
type ApplyOn string

const (
	ApplyOnTotalSale   ApplyOn = "total_sale"
	ApplyOnServiceSale ApplyOn = "service_sale"
)

func (a ApplyOn) Valid() bool {
	return a == ApplyOnTotalSale || a == ApplyOnServiceSale
}

// =============================================================================
// INCENTIVE RULE - Persisted, optional fields
// =============================================================================

type TargetConfig struct {
	Multiplier *decimal.Decimal `json:"multiplier,omitempty" bson:"multiplier,omitempty"`
}

type SalesConfig struct {
	IncludeServiceSale  *bool            `json:"includeServiceSale,omitempty" bson:"includeServiceSale,omitempty"`
	IncludeProductSale  *bool            `json:"includeProductSale,omitempty" bson:"includeProductSale,omitempty"`
	IncludePackageSale  *bool            `json:"includePackageSale,omitempty" bson:"includePackageSale,omitempty"`
	IncludeGiftCardSale *bool            `json:"includeGiftCardSale,omitempty" bson:"includeGiftCardSale,omitempty"`
	ReviewNameValue     *decimal.Decimal `json:"reviewNameValue,omitempty" bson:"reviewNameValue,omitempty"`
	ReviewPhotoValue    *decimal.Decimal `json:"reviewPhotoValue,omitempty" bson:"reviewPhotoValue,omitempty"`
}

type IncentiveConfig struct {
	Rate         *decimal.Decimal `json:"rate,omitempty" bson:"rate,omitempty"`
	DoubleRate   *decimal.Decimal `json:"doubleRate,omitempty" bson:"doubleRate,omitempty"`
	ApplyOn      *ApplyOn         `json:"applyOn,omitempty" bson:"applyOn,omitempty"`
	PackageRate  *decimal.Decimal `json:"packageRate,omitempty" bson:"packageRate,omitempty"`
	GiftCardRate *decimal.Decimal `json:"giftCardRate,omitempty" bson:"giftCardRate,omitempty"`
}

// IncentiveRule is one immutable version of a tenant's rule of a given type.
type IncentiveRule struct {
	ID            RuleID
	TenantID      TenantID
	Type          RuleType
	EffectiveFrom time.Time
	Target        TargetConfig
	Sales         SalesConfig
	Incentive     IncentiveConfig
}

// Validate checks enums and rejects negative monetary values.
func (r IncentiveRule) Validate() error {
	if r.TenantID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrInvalidRule)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRule, r.Type)
	}
	if r.EffectiveFrom.IsZero() {
		return fmt.Errorf("%w: effectiveFrom is required", ErrInvalidRule)
	}
	if r.Incentive.ApplyOn != nil && !r.Incentive.ApplyOn.Valid() {
		return fmt.Errorf("%w: unknown applyOn %q", ErrInvalidRule, *r.Incentive.ApplyOn)
	}
	checks := []struct {
		name  string
		value *decimal.Decimal
	}{
		{"target.multiplier", r.Target.Multiplier},
		{"sales.reviewNameValue", r.Sales.ReviewNameValue},
		{"sales.reviewPhotoValue", r.Sales.ReviewPhotoValue},
		{"incentive.rate", r.Incentive.Rate},
		{"incentive.doubleRate", r.Incentive.DoubleRate},
		{"incentive.packageRate", r.Incentive.PackageRate},
		{"incentive.giftCardRate", r.Incentive.GiftCardRate},
	}
	for _, c := range checks {
		if c.value != nil && c.value.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidRule, c.name)
		}
	}
	return nil
}

// =============================================================================
// RULE SNAPSHOT - Resolved, concrete values
// =============================================================================

type TargetSnapshot struct {
	Multiplier decimal.Decimal `json:"multiplier" bson:"multiplier"`
}

type SalesSnapshot struct {
	IncludeServiceSale  bool            `json:"includeServiceSale" bson:"includeServiceSale"`
	IncludeProductSale  bool            `json:"includeProductSale" bson:"includeProductSale"`
	IncludePackageSale  bool            `json:"includePackageSale" bson:"includePackageSale"`
	IncludeGiftCardSale bool            `json:"includeGiftCardSale" bson:"includeGiftCardSale"`
	ReviewNameValue     decimal.Decimal `json:"reviewNameValue" bson:"reviewNameValue"`
	ReviewPhotoValue    decimal.Decimal `json:"reviewPhotoValue" bson:"reviewPhotoValue"`
}

type IncentiveSnapshot struct {
	Rate         decimal.Decimal `json:"rate" bson:"rate"`
	DoubleRate   decimal.Decimal `json:"doubleRate" bson:"doubleRate"`
	ApplyOn      ApplyOn         `json:"applyOn" bson:"applyOn"`
	PackageRate  decimal.Decimal `json:"packageRate" bson:"packageRate"`
	GiftCardRate decimal.Decimal `json:"giftCardRate" bson:"giftCardRate"`
}

// RuleSnapshot is embedded by value into each DailySale. RuleID is empty
// when the defaults were used.
type RuleSnapshot struct {
	RuleID    RuleID            `json:"ruleId,omitempty" bson:"ruleId,omitempty"`
	Target    TargetSnapshot    `json:"target" bson:"target"`
	Sales     SalesSnapshot     `json:"sales" bson:"sales"`
	Incentive IncentiveSnapshot `json:"incentive" bson:"incentive"`
}

// Equal compares snapshots by value.
func (s RuleSnapshot) Equal(o RuleSnapshot) bool {
	return s.RuleID == o.RuleID &&
		s.Target.Multiplier.Equal(o.Target.Multiplier) &&
		s.Sales.IncludeServiceSale == o.Sales.IncludeServiceSale &&
		s.Sales.IncludeProductSale == o.Sales.IncludeProductSale &&
		s.Sales.IncludePackageSale == o.Sales.IncludePackageSale &&
		s.Sales.IncludeGiftCardSale == o.Sales.IncludeGiftCardSale &&
		s.Sales.ReviewNameValue.Equal(o.Sales.ReviewNameValue) &&
		s.Sales.ReviewPhotoValue.Equal(o.Sales.ReviewPhotoValue) &&
		s.Incentive.Rate.Equal(o.Incentive.Rate) &&
		s.Incentive.DoubleRate.Equal(o.Incentive.DoubleRate) &&
		s.Incentive.ApplyOn == o.Incentive.ApplyOn &&
		s.Incentive.PackageRate.Equal(o.Incentive.PackageRate) &&
		s.Incentive.GiftCardRate.Equal(o.Incentive.GiftCardRate)
}

// DefaultRuleSnapshot is used for tenants without a rule of the requested
// type, and as the base every persisted rule is merged over.
func DefaultRuleSnapshot() RuleSnapshot {
	return RuleSnapshot{
		Target: TargetSnapshot{
			Multiplier: decimal.NewFromInt(5),
		},
		Sales: SalesSnapshot{
			IncludeServiceSale:  true,
			IncludeProductSale:  true,
			IncludePackageSale:  false,
			IncludeGiftCardSale: false,
			ReviewNameValue:     decimal.NewFromInt(200),
			ReviewPhotoValue:    decimal.NewFromInt(300),
		},
		Incentive: IncentiveSnapshot{
			Rate:         decimal.RequireFromString("0.05"),
			DoubleRate:   decimal.RequireFromString("0.10"),
			ApplyOn:      ApplyOnTotalSale,
			PackageRate:  decimal.RequireFromString("0.01"),
			GiftCardRate: decimal.RequireFromString("0.01"),
		},
	}
}

// =============================================================================
// MERGE - Field-by-field, deterministic
// =============================================================================

// MergeRule overlays every field the rule sets onto base. Fields the rule
// omits keep the base value.
func MergeRule(base RuleSnapshot, rule IncentiveRule) RuleSnapshot {
	out := base
	out.RuleID = rule.ID

	mergeDecimal(&out.Target.Multiplier, rule.Target.Multiplier)

	mergeBool(&out.Sales.IncludeServiceSale, rule.Sales.IncludeServiceSale)
	mergeBool(&out.Sales.IncludeProductSale, rule.Sales.IncludeProductSale)
	mergeBool(&out.Sales.IncludePackageSale, rule.Sales.IncludePackageSale)
	mergeBool(&out.Sales.IncludeGiftCardSale, rule.Sales.IncludeGiftCardSale)
	mergeDecimal(&out.Sales.ReviewNameValue, rule.Sales.ReviewNameValue)
	mergeDecimal(&out.Sales.ReviewPhotoValue, rule.Sales.ReviewPhotoValue)

	mergeDecimal(&out.Incentive.Rate, rule.Incentive.Rate)
	mergeDecimal(&out.Incentive.DoubleRate, rule.Incentive.DoubleRate)
	if rule.Incentive.ApplyOn != nil {
		out.Incentive.ApplyOn = *rule.Incentive.ApplyOn
	}
	mergeDecimal(&out.Incentive.PackageRate, rule.Incentive.PackageRate)
	mergeDecimal(&out.Incentive.GiftCardRate, rule.Incentive.GiftCardRate)

	return out
}

func mergeBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func mergeDecimal(dst *decimal.Decimal, src *decimal.Decimal) {
	if src != nil {
		*dst = *src
	}
}

// Pointer helpers for building rules in code.
func BoolPtr(b bool) *bool                           { return &b }
func DecimalPtr(d decimal.Decimal) *decimal.Decimal { return &d }
func ApplyOnPtr(a ApplyOn) *ApplyOn                 { return &a }
