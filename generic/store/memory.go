// Package store provides an in-memory implementation of every generic store.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/incentive-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements RuleStore, InvoiceStore, DailySaleStore, BaselineStore
// and RunStore. Every method holds the mutex for its whole read-modify-write,
// which makes UpsertDailySale atomic.
type Memory struct {
	mu        sync.RWMutex
	rules     map[generic.TenantID][]generic.IncentiveRule
	invoices  map[generic.TenantID]map[generic.InvoiceID]generic.Invoice
	sales     map[saleKey]generic.DailySale
	baselines map[baselineKey]generic.StaffBaseline
	runs      map[generic.TenantID][]generic.BackfillRun
}

type saleKey struct {
	TenantID generic.TenantID
	StaffID  generic.StaffID
	Date     string
}

type baselineKey struct {
	TenantID generic.TenantID
	StaffID  generic.StaffID
}

func NewMemory() *Memory {
	return &Memory{
		rules:     make(map[generic.TenantID][]generic.IncentiveRule),
		invoices:  make(map[generic.TenantID]map[generic.InvoiceID]generic.Invoice),
		sales:     make(map[saleKey]generic.DailySale),
		baselines: make(map[baselineKey]generic.StaffBaseline),
		runs:      make(map[generic.TenantID][]generic.BackfillRun),
	}
}

// =============================================================================
// RULES
// =============================================================================

// AppendRule adds a rule version. Append-only.
func (m *Memory) AppendRule(_ context.Context, rule generic.IncentiveRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.rules[rule.TenantID] {
		if existing.ID == rule.ID {
			return fmt.Errorf("%w: rule %s already exists", generic.ErrInvalidRule, rule.ID)
		}
	}
	rules := append(m.rules[rule.TenantID], rule)
	generic.SortRules(rules)
	m.rules[rule.TenantID] = rules
	return nil
}

func (m *Memory) LatestRule(_ context.Context, tenantID generic.TenantID, ruleType generic.RuleType, cutoff time.Time) (*generic.IncentiveRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *generic.IncentiveRule
	for i := range m.rules[tenantID] {
		r := m.rules[tenantID][i]
		if r.Type != ruleType || r.EffectiveFrom.After(cutoff) {
			continue
		}
		// Sorted oldest first, so the last match wins.
		best = &r
	}
	return best, nil
}

func (m *Memory) ListRules(_ context.Context, tenantID generic.TenantID) ([]generic.IncentiveRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]generic.IncentiveRule, len(m.rules[tenantID]))
	copy(out, m.rules[tenantID])
	return out, nil
}

// =============================================================================
// INVOICES
// =============================================================================

// SaveInvoice inserts or replaces an invoice by id.
func (m *Memory) SaveInvoice(_ context.Context, inv generic.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.invoices[inv.TenantID]
	if !ok {
		byID = make(map[generic.InvoiceID]generic.Invoice)
		m.invoices[inv.TenantID] = byID
	}
	items := make([]generic.LineItem, len(inv.LineItems))
	copy(items, inv.LineItems)
	inv.LineItems = items
	byID[inv.ID] = inv
	return nil
}

func (m *Memory) InvoicesBetween(_ context.Context, tenantID generic.TenantID, from, to time.Time) ([]generic.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []generic.Invoice
	for _, inv := range m.invoices[tenantID] {
		if inv.CreatedAt.Before(from) || inv.CreatedAt.After(to) {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// =============================================================================
// DAILY SALES
// =============================================================================

func keyOf(tenantID generic.TenantID, staffID generic.StaffID, date generic.Day) saleKey {
	return saleKey{TenantID: tenantID, StaffID: staffID, Date: date.String()}
}

// UpsertDailySale overwrites the pipeline-owned fields and keeps any
// existing review counts.
func (m *Memory) UpsertDailySale(_ context.Context, sale generic.DailySale) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := keyOf(sale.TenantID, sale.StaffID, sale.Date)
	if existing, ok := m.sales[k]; ok {
		sale.ReviewsWithName = existing.ReviewsWithName
		sale.ReviewsWithPhoto = existing.ReviewsWithPhoto
	} else {
		sale.ReviewsWithName = 0
		sale.ReviewsWithPhoto = 0
	}
	m.sales[k] = sale
	return nil
}

func (m *Memory) GetDailySale(_ context.Context, tenantID generic.TenantID, staffID generic.StaffID, date generic.Day) (*generic.DailySale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sale, ok := m.sales[keyOf(tenantID, staffID, date)]
	if !ok {
		return nil, generic.ErrNotFound
	}
	return &sale, nil
}

func (m *Memory) ListDailySales(_ context.Context, tenantID generic.TenantID, staffIDs []generic.StaffID, from, to generic.Day) ([]generic.DailySale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[generic.StaffID]bool, len(staffIDs))
	for _, id := range staffIDs {
		want[id] = true
	}

	var out []generic.DailySale
	for k, sale := range m.sales {
		if k.TenantID != tenantID {
			continue
		}
		if len(want) > 0 && !want[k.StaffID] {
			continue
		}
		if sale.Date.Before(from) || sale.Date.After(to) {
			continue
		}
		out = append(out, sale)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].StaffID < out[j].StaffID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (m *Memory) SetReviewCounts(_ context.Context, tenantID generic.TenantID, staffID generic.StaffID, date generic.Day, withName, withPhoto int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := keyOf(tenantID, staffID, date)
	sale, ok := m.sales[k]
	if !ok {
		return generic.ErrNotFound
	}
	sale.ReviewsWithName = withName
	sale.ReviewsWithPhoto = withPhoto
	m.sales[k] = sale
	return nil
}

// =============================================================================
// BASELINES
// =============================================================================

func (m *Memory) SetBaseline(_ context.Context, b generic.StaffBaseline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baselines[baselineKey{TenantID: b.TenantID, StaffID: b.StaffID}] = b
	return nil
}

func (m *Memory) GetBaseline(_ context.Context, tenantID generic.TenantID, staffID generic.StaffID) (*generic.StaffBaseline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.baselines[baselineKey{TenantID: tenantID, StaffID: staffID}]
	if !ok {
		return nil, generic.ErrNotFound
	}
	return &b, nil
}

// =============================================================================
// BACKFILL RUNS
// =============================================================================

// SaveRun inserts a run or replaces the one with the same id.
func (m *Memory) SaveRun(_ context.Context, run generic.BackfillRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	runs := m.runs[run.TenantID]
	for i := range runs {
		if runs[i].ID == run.ID {
			runs[i] = run
			return nil
		}
	}
	m.runs[run.TenantID] = append(runs, run)
	return nil
}

// ListRuns returns the most recent runs first.
func (m *Memory) ListRuns(_ context.Context, tenantID generic.TenantID, limit int) ([]generic.BackfillRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]generic.BackfillRun, len(m.runs[tenantID]))
	copy(runs, m.runs[tenantID])
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *Memory) HasCompletedRun(_ context.Context, tenantID generic.TenantID, day generic.Day) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.runs[tenantID] {
		if r.Status == generic.RunCompleted && r.Settles(day) {
			return true, nil
		}
	}
	return false, nil
}

// Reset deletes everything stored for the tenant.
func (m *Memory) Reset(_ context.Context, tenantID generic.TenantID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rules, tenantID)
	delete(m.invoices, tenantID)
	delete(m.runs, tenantID)
	for k := range m.sales {
		if k.TenantID == tenantID {
			delete(m.sales, k)
		}
	}
	for k := range m.baselines {
		if k.TenantID == tenantID {
			delete(m.baselines, k)
		}
	}
	return nil
}

// Compile-time interface checks.
var (
	_ generic.RuleStore      = (*Memory)(nil)
	_ generic.InvoiceStore   = (*Memory)(nil)
	_ generic.DailySaleStore = (*Memory)(nil)
	_ generic.BaselineStore  = (*Memory)(nil)
	_ generic.RunStore       = (*Memory)(nil)
)
