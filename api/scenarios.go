/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Populates a tenant with realistic salon data (rules, baselines,
  invoices) and runs a backfill over it, so the daily-sales, incentive and
  rollup endpoints have something to show.

AVAILABLE SCENARIOS:
  worked-example:   Two stylists, two invoices, one walk-in fee
  mid-month-change: Rule edited on the 10th; earlier days keep the old rate
  review-bonus:     Review counts entered after a backfill survive a re-run

HOW SCENARIOS WORK:
  1. Reset the tenant (clear all of its data)
  2. Append rule versions and set baselines
  3. Ingest invoices
  4. Backfill the scenario's date range

USAGE VIA API:
  POST /api/scenarios/load
  X-Tenant-ID: demo-salon
  {"scenarioId": "worked-example"}

NOTE:
  Scenarios reset the tenant. Only use in development/demo environments.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/generic"
	"github.com/warp/incentive-engine/salon"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "worked-example",
		Name:        "Worked Example",
		Description: "S1 sells a service and a package to two customers, S2 a product to one",
	},
	{
		ID:          "mid-month-change",
		Name:        "Mid-Month Rule Change",
		Description: "Incentive rate raised on the 10th; backfill keeps days 1-9 on the old rule",
	},
	{
		ID:          "review-bonus",
		Name:        "Review Bonus",
		Description: "Manually entered review counts survive a recompute",
	},
}

type scenarioLoader func(ctx context.Context, h *Handler, tenantID generic.TenantID) (generic.DayRange, error)

var scenarioLoaders = map[string]scenarioLoader{
	"worked-example":   loadWorkedExample,
	"mid-month-change": loadMidMonthChange,
	"review-bonus":     loadReviewBonus,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario resets the tenant, loads a scenario and backfills it.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())

	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "scenarioId is required", validationDetails(err))
		return
	}

	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", req.ScenarioID)
		return
	}

	result, err := h.LoadScenarioByID(r.Context(), tc, req.ScenarioID, load)
	if err != nil {
		h.writeDomainError(w, r, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, BackfillResponse{
		Message:          fmt.Sprintf("Scenario %s loaded", req.ScenarioID),
		ProcessedRecords: result.ProcessedRecords,
		RunID:            result.RunID,
		DaysScanned:      result.DaysScanned,
		DaysWithActivity: result.DaysWithActivity,
	})
}

// LoadScenarioByID runs a loader and its backfill for the tenant.
func (h *Handler) LoadScenarioByID(ctx context.Context, tc generic.TenantContext, id string, load scenarioLoader) (*generic.BackfillResult, error) {
	if err := h.Store.Reset(ctx, tc.TenantID); err != nil {
		return nil, fmt.Errorf("reset tenant: %w", err)
	}
	rng, err := load(ctx, h, tc.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", id, err)
	}
	result, err := h.Orchestrator.BackfillFrom(ctx, tc, rng.Start, rng.End, "scenario")
	if err != nil {
		return nil, err
	}

	if id == "review-bonus" {
		if err := applyReviewsAndRecompute(ctx, h, tc, rng); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// =============================================================================
// SCENARIO: worked-example
// =============================================================================

// WorkedExampleDay is the day the worked-example invoices are dated.
var WorkedExampleDay = generic.NewDay(2025, time.March, 5)

func loadWorkedExample(ctx context.Context, h *Handler, tenantID generic.TenantID) (generic.DayRange, error) {
	day := WorkedExampleDay
	at := func(hour int) time.Time { return day.Start().Add(time.Duration(hour) * time.Hour) }

	invoices := []generic.Invoice{
		{
			ID: "inv-1", TenantID: tenantID, CustomerID: "C1", CreatedAt: at(10),
			LineItems: []generic.LineItem{
				{StaffID: generic.StaffRef("S1"), ItemType: generic.ItemService, FinalPrice: decimal.NewFromInt(500)},
				{StaffID: generic.StaffRef("S2"), ItemType: generic.ItemProduct, FinalPrice: decimal.NewFromInt(200)},
			},
		},
		{
			ID: "inv-2", TenantID: tenantID, CustomerID: "C2", CreatedAt: at(14),
			LineItems: []generic.LineItem{
				{StaffID: generic.StaffRef("S1"), ItemType: generic.ItemPackage, FinalPrice: decimal.NewFromInt(1000)},
				{ItemType: generic.ItemFee, FinalPrice: decimal.NewFromInt(25)},
			},
		},
	}
	if err := saveInvoices(ctx, h, invoices); err != nil {
		return generic.DayRange{}, err
	}

	if err := setBaselines(ctx, h, tenantID, map[string]int64{"S1": 100, "S2": 100}); err != nil {
		return generic.DayRange{}, err
	}
	return generic.DayRange{Start: day, End: day}, nil
}

// =============================================================================
// SCENARIO: mid-month-change
// =============================================================================

func loadMidMonthChange(ctx context.Context, h *Handler, tenantID generic.TenantID) (generic.DayRange, error) {
	first := generic.NewDay(2025, time.April, 1)
	last := generic.NewDay(2025, time.April, 15)

	r1 := salon.StandardDailyRule("rule-apr-v1", tenantID, first.Start())
	r2 := salon.PackageBonusRule("rule-apr-v2", tenantID,
		first.AddDays(9).Start().Add(18*time.Hour),
		decimal.RequireFromString("0.02"), decimal.RequireFromString("0.01"))
	r2.Incentive.Rate = generic.DecimalPtr(decimal.RequireFromString("0.08"))

	for _, rule := range []generic.IncentiveRule{r1, r2} {
		if err := h.Store.AppendRule(ctx, rule); err != nil {
			return generic.DayRange{}, err
		}
	}

	var invoices []generic.Invoice
	it := generic.DayRange{Start: first, End: last}.Iter()
	for day, ok := it.Next(); ok; day, ok = it.Next() {
		n := int64(day.Time().Day())
		invoices = append(invoices,
			generic.Invoice{
				ID:         generic.InvoiceID(fmt.Sprintf("apr-%s-a", day)),
				TenantID:   tenantID,
				CustomerID: generic.CustomerID(fmt.Sprintf("cust-%d", n%4)),
				CreatedAt:  day.Start().Add(11 * time.Hour),
				LineItems: []generic.LineItem{
					{StaffID: generic.StaffRef("anna"), ItemType: generic.ItemService, FinalPrice: decimal.NewFromInt(300 + 10*n)},
					{StaffID: generic.StaffRef("ben"), ItemType: generic.ItemProduct, FinalPrice: decimal.NewFromInt(80)},
				},
			},
			generic.Invoice{
				ID:        generic.InvoiceID(fmt.Sprintf("apr-%s-b", day)),
				TenantID:  tenantID,
				CreatedAt: day.Start().Add(16 * time.Hour),
				LineItems: []generic.LineItem{
					{StaffID: generic.StaffRef("ben"), ItemType: generic.ItemPackage, FinalPrice: decimal.NewFromInt(400)},
				},
			},
		)
	}
	if err := saveInvoices(ctx, h, invoices); err != nil {
		return generic.DayRange{}, err
	}
	if err := setBaselines(ctx, h, tenantID, map[string]int64{"anna": 60, "ben": 40}); err != nil {
		return generic.DayRange{}, err
	}
	return generic.DayRange{Start: first, End: last}, nil
}

// =============================================================================
// SCENARIO: review-bonus
// =============================================================================

func loadReviewBonus(ctx context.Context, h *Handler, tenantID generic.TenantID) (generic.DayRange, error) {
	rng, err := loadWorkedExample(ctx, h, tenantID)
	if err != nil {
		return rng, err
	}
	rule := salon.ReviewBonusRule("rule-reviews", tenantID, rng.Start.Start(),
		decimal.NewFromInt(150), decimal.NewFromInt(250))
	return rng, h.Store.AppendRule(ctx, rule)
}

// applyReviewsAndRecompute stands in for the manual review-entry flow and
// then re-runs the backfill over the same range.
func applyReviewsAndRecompute(ctx context.Context, h *Handler, tc generic.TenantContext, rng generic.DayRange) error {
	if err := h.Store.SetReviewCounts(ctx, tc.TenantID, "S1", rng.Start, 3, 1); err != nil {
		return fmt.Errorf("set review counts: %w", err)
	}
	_, err := h.Orchestrator.BackfillFrom(ctx, tc, rng.Start, rng.End, "scenario")
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func saveInvoices(ctx context.Context, h *Handler, invoices []generic.Invoice) error {
	for _, inv := range invoices {
		if err := h.Store.SaveInvoice(ctx, inv); err != nil {
			return fmt.Errorf("save invoice %s: %w", inv.ID, err)
		}
	}
	return nil
}

func setBaselines(ctx context.Context, h *Handler, tenantID generic.TenantID, amounts map[string]int64) error {
	for staff, amount := range amounts {
		err := h.Store.SetBaseline(ctx, generic.StaffBaseline{
			TenantID:  tenantID,
			StaffID:   generic.StaffID(staff),
			Amount:    decimal.NewFromInt(amount),
			UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("set baseline for %s: %w", staff, err)
		}
	}
	return nil
}
