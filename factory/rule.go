/*
Package factory provides JSON to Go incentive rule conversion.

PURPOSE:
  Converts JSON rule documents into generic.IncentiveRule values. Tenants
  configure incentives from an admin UI; the factory validates the document
  and produces the typed, optional-field rule the resolver merges over the
  defaults.

JSON SCHEMA:
  {
    "type": "daily",
    "effectiveFrom": "2025-03-10T18:00:00Z",   // optional, defaults to now
    "target":    {"multiplier": 5},
    "sales":     {"includeServiceSale": true, "includePackageSale": true,
                  "reviewNameValue": 200},
    "incentive": {"rate": 0.05, "doubleRate": 0.10, "applyOn": "total_sale",
                  "packageRate": 0.01}
  }

  Every field inside target/sales/incentive is optional. Omitted fields keep
  the default when the rule is resolved, so documents written before a
  field existed stay valid.

KEY FEATURES:
  - Rejects unknown fields and unknown enum values
  - Rejects negative rates and values
  - Assigns an id and effective time when the document has none

USAGE:
  f := factory.NewRuleFactory()
  rule, err := f.ParseRule(tenantID, jsonString)
  err = store.AppendRule(ctx, rule)

SEE ALSO:
  - generic/rule.go: IncentiveRule and the merge
  - salon/presets.go: Ready-made rule documents
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/incentive-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleJSON is the JSON representation of a rule version.
type RuleJSON struct {
	ID            string                  `json:"id,omitempty"`
	Type          string                  `json:"type"`
	EffectiveFrom *time.Time              `json:"effectiveFrom,omitempty"`
	Target        generic.TargetConfig    `json:"target"`
	Sales         generic.SalesConfig     `json:"sales"`
	Incentive     generic.IncentiveConfig `json:"incentive"`
}

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts JSON rules to generic.IncentiveRule.
type RuleFactory struct {
	Now   func() time.Time
	NewID func() string
}

func NewRuleFactory() *RuleFactory {
	return &RuleFactory{
		Now:   time.Now,
		NewID: uuid.NewString,
	}
}

// ParseRule parses and validates a rule document for tenantID.
func (f *RuleFactory) ParseRule(tenantID generic.TenantID, jsonStr string) (generic.IncentiveRule, error) {
	dec := json.NewDecoder(bytes.NewBufferString(jsonStr))
	dec.DisallowUnknownFields()

	var rj RuleJSON
	if err := dec.Decode(&rj); err != nil {
		return generic.IncentiveRule{}, fmt.Errorf("%w: %v", generic.ErrInvalidRule, err)
	}
	return f.FromJSON(tenantID, rj)
}

// FromJSON converts an already-decoded document.
func (f *RuleFactory) FromJSON(tenantID generic.TenantID, rj RuleJSON) (generic.IncentiveRule, error) {
	ruleType := generic.RuleType(rj.Type)
	if rj.Type == "" {
		ruleType = generic.RuleDaily
	}

	rule := generic.IncentiveRule{
		ID:        generic.RuleID(rj.ID),
		TenantID:  tenantID,
		Type:      ruleType,
		Target:    rj.Target,
		Sales:     rj.Sales,
		Incentive: rj.Incentive,
	}
	if rule.ID == "" {
		rule.ID = generic.RuleID(f.NewID())
	}
	if rj.EffectiveFrom != nil {
		rule.EffectiveFrom = rj.EffectiveFrom.UTC()
	} else {
		rule.EffectiveFrom = f.Now().UTC()
	}

	if err := rule.Validate(); err != nil {
		return generic.IncentiveRule{}, err
	}
	return rule, nil
}

// ToJSON renders a rule back into its document form.
func ToJSON(rule generic.IncentiveRule) RuleJSON {
	effective := rule.EffectiveFrom
	return RuleJSON{
		ID:            string(rule.ID),
		Type:          string(rule.Type),
		EffectiveFrom: &effective,
		Target:        rule.Target,
		Sales:         rule.Sales,
		Incentive:     rule.Incentive,
	}
}
