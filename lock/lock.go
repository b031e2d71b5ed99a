// Package lock provides per-tenant advisory locks for the backfill
// orchestrator. Both implementations fail fast with
// generic.ErrBackfillInProgress instead of waiting.
package lock

import (
	"context"
	"sync"

	"github.com/warp/incentive-engine/generic"
)

// Local is an in-process lock. It only serializes backfills within one
// server process.
type Local struct {
	mu   sync.Mutex
	held map[generic.TenantID]struct{}
}

func NewLocal() *Local {
	return &Local{held: make(map[generic.TenantID]struct{})}
}

func (l *Local) Lock(_ context.Context, tenantID generic.TenantID) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[tenantID]; ok {
		return nil, generic.ErrBackfillInProgress
	}
	l.held[tenantID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, tenantID)
			l.mu.Unlock()
		})
	}, nil
}

var _ generic.Locker = (*Local)(nil)
