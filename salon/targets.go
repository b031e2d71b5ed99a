package salon

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/generic"
)

// StaticTargets is a fixed baseline table, used by demos and tests.
// Staff not listed get Default.
type StaticTargets struct {
	Baselines map[generic.StaffID]decimal.Decimal
	Default   decimal.Decimal
}

func (s StaticTargets) Baseline(_ context.Context, _ generic.TenantID, staffID generic.StaffID) (decimal.Decimal, error) {
	if b, ok := s.Baselines[staffID]; ok {
		return b, nil
	}
	return s.Default, nil
}

var _ generic.TargetSource = StaticTargets{}
