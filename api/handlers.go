/*
handlers.go - HTTP API handlers for the incentive engine

PURPOSE:
  Exposes the incentive engine via REST API. Handles HTTP request/response,
  validation and JSON serialization, and delegates to the generic engine.

ENDPOINTS:
  Backfill:
    POST   /api/incentives/backfill               Recompute a date range
    GET    /api/incentives/backfill/runs          Run history

  Daily sales:
    GET    /api/daily-sales                       List records (?from&to&staffId)
    GET    /api/daily-sales/{staffId}/{date}/incentive  Calculator output

  Rollups:
    GET    /api/rollups                           ?from&to or ?week= or ?month=

  Rules:
    GET    /api/rules                             All versions
    POST   /api/rules                             Append a version

  Feeds:
    POST   /api/invoices                          Ingest an invoice
    PUT    /api/staff/{staffId}/baseline          Set a target baseline

  Scenarios:
    GET    /api/scenarios                         List demo scenarios
    POST   /api/scenarios/load                    Load a demo scenario

TENANCY:
  Every /api route except /api/scenarios (listing) requires X-Tenant-ID.
  The tenant middleware builds a generic.TenantContext; handlers never read
  the header themselves.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, missing tenant
  - 404: Record not found
  - 409: Backfill already running for the tenant
  - 429: Backfill rate limit
  - 500: Internal errors (message names the failing day when known)

SECURITY NOTE:
  No authentication or authorization. The tenant header is trusted.

SEE ALSO:
  - dto.go: Request/response data structures
  - middleware.go: Tenant and rate-limit middleware
  - server.go: Router setup
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/generic"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the API persists. store/sqlite, store/mongo and
// generic/store all satisfy it.
type Store interface {
	generic.RuleStore
	generic.InvoiceStore
	generic.DailySaleStore
	generic.BaselineStore
	generic.RunStore
	Reset(ctx context.Context, tenantID generic.TenantID) error
}

// Options configures the engine behind the handlers.
type Options struct {
	Locker          generic.Locker
	TierPolicy      generic.TierPolicy
	DefaultBaseline decimal.Decimal
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        Store
	Orchestrator *generic.Orchestrator
	Calculator   *generic.Calculator
	Rollup       *generic.Rollup
	RuleFactory  *factory.RuleFactory
	Logger       *zap.Logger

	validate *validator.Validate
}

// NewHandler wires the engine over store.
func NewHandler(store Store, opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	orch := generic.NewOrchestrator(store, store, store, logger.Named("backfill"))
	orch.Locker = opts.Locker
	orch.Runs = store

	calc := generic.NewCalculator(
		generic.StoreTargetSource{Store: store, Default: opts.DefaultBaseline},
		opts.TierPolicy,
	)

	return &Handler{
		Store:        store,
		Orchestrator: orch,
		Calculator:   calc,
		Rollup:       generic.NewRollup(store, calc),
		RuleFactory:  factory.NewRuleFactory(),
		Logger:       logger,
		validate:     validator.New(),
	}
}

// =============================================================================
// BACKFILL
// =============================================================================

// Backfill recomputes DailySale records for the requested range.
func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())

	var req BackfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "startDate and endDate are required (YYYY-MM-DD)", validationDetails(err))
		return
	}

	start, err := generic.ParseDay(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid startDate", err)
		return
	}
	end, err := generic.ParseDay(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid endDate", err)
		return
	}

	result, err := h.Orchestrator.Backfill(r.Context(), tc, start, end)
	if err != nil {
		h.writeDomainError(w, r, "Backfill failed", err)
		return
	}

	writeJSON(w, http.StatusOK, BackfillResponse{
		Message:          "Backfill completed",
		ProcessedRecords: result.ProcessedRecords,
		RunID:            result.RunID,
		DaysScanned:      result.DaysScanned,
		DaysWithActivity: result.DaysWithActivity,
	})
}

// ListBackfillRuns returns the tenant's most recent runs.
func (h *Handler) ListBackfillRuns(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())

	runs, err := h.Store.ListRuns(r.Context(), tc.TenantID, 50)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list backfill runs", err)
		return
	}
	out := make([]BackfillRunDTO, len(runs))
	for i, run := range runs {
		out[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// DAILY SALES
// =============================================================================

// ListDailySales returns records in [from, to]. Both default to today.
func (h *Handler) ListDailySales(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())

	rng, err := rangeFromQuery(r, "from", "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	sales, err := h.Store.ListDailySales(r.Context(), tc.TenantID, staffFromQuery(r), rng.Start, rng.End)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list daily sales", err)
		return
	}
	out := make([]DailySaleDTO, len(sales))
	for i, s := range sales {
		out[i] = toDailySaleDTO(s)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetIncentive computes the incentive for one staff-day.
func (h *Handler) GetIncentive(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())
	staffID := generic.StaffID(chi.URLParam(r, "staffId"))

	day, err := generic.ParseDay(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	sale, err := h.Store.GetDailySale(r.Context(), tc.TenantID, staffID, day)
	if err != nil {
		h.writeDomainError(w, r, "Daily sale not found", err)
		return
	}

	result, err := h.Calculator.Compute(r.Context(), *sale)
	if err != nil {
		h.writeDomainError(w, r, "Failed to compute incentive", err)
		return
	}
	writeJSON(w, http.StatusOK, toIncentiveDTO(result))
}

// =============================================================================
// ROLLUPS
// =============================================================================

// GetRollup sums incentives per staff over a week, month or explicit range.
func (h *Handler) GetRollup(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())

	rng, err := rollupRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rollup window", err)
		return
	}

	totals, err := h.Rollup.Rollup(r.Context(), tc.TenantID, staffFromQuery(r), rng)
	if err != nil {
		h.writeDomainError(w, r, "Failed to compute rollup", err)
		return
	}

	out := make([]RollupDTO, 0, len(totals))
	for _, t := range totals {
		out = append(out, toRollupDTO(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StaffID < out[j].StaffID })

	writeJSON(w, http.StatusOK, RollupResponse{
		From:   rng.Start.String(),
		To:     rng.End.String(),
		Totals: out,
	})
}

func rollupRange(r *http.Request) (generic.DayRange, error) {
	q := r.URL.Query()
	switch {
	case q.Get("week") != "":
		d, err := generic.ParseDay(q.Get("week"))
		if err != nil {
			return generic.DayRange{}, err
		}
		return generic.WeekOf(d), nil
	case q.Get("month") != "":
		t, err := time.Parse("2006-01", q.Get("month"))
		if err != nil {
			return generic.DayRange{}, errors.New("month must be YYYY-MM")
		}
		return generic.MonthOf(generic.DayOf(t)), nil
	}
	return rangeFromQuery(r, "from", "to")
}

// =============================================================================
// RULES
// =============================================================================

// ListRules returns every rule version for the tenant, oldest first.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())

	rules, err := h.Store.ListRules(r.Context(), tc.TenantID)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list rules", err)
		return
	}
	out := make([]RuleDTO, len(rules))
	for i, rule := range rules {
		out[i] = toRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateRule appends a new rule version. Existing versions are untouched.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())

	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule, err := h.RuleFactory.ParseRule(tc.TenantID, string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule", err)
		return
	}
	if err := h.Store.AppendRule(r.Context(), rule); err != nil {
		h.writeDomainError(w, r, "Failed to save rule", err)
		return
	}

	h.Logger.Info("rule version created",
		zap.String("tenant", string(tc.TenantID)),
		zap.String("ruleId", string(rule.ID)),
		zap.String("type", string(rule.Type)),
		zap.Time("effectiveFrom", rule.EffectiveFrom))

	writeJSON(w, http.StatusCreated, toRuleDTO(rule))
}

// =============================================================================
// FEEDS
// =============================================================================

// CreateInvoice stores an invoice in the transaction source.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())

	var req InvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid invoice", validationDetails(err))
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	inv := toInvoice(tc.TenantID, req, id)
	if err := h.Store.SaveInvoice(r.Context(), inv); err != nil {
		h.writeDomainError(w, r, "Failed to save invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// SetBaseline sets a staff member's target baseline.
func (h *Handler) SetBaseline(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r.Context())
	staffID := generic.StaffID(chi.URLParam(r, "staffId"))

	var req BaselineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "amount must not be negative", nil)
		return
	}

	b := generic.StaffBaseline{
		TenantID:  tc.TenantID,
		StaffID:   staffID,
		Amount:    req.Amount,
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.Store.SetBaseline(r.Context(), b); err != nil {
		h.writeDomainError(w, r, "Failed to save baseline", err)
		return
	}
	writeJSON(w, http.StatusOK, BaselineDTO{StaffID: string(staffID), Amount: b.Amount, UpdatedAt: b.UpdatedAt})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, details any) {
	resp := ErrorResponse{Error: message}
	switch d := details.(type) {
	case nil:
	case error:
		resp.Details = d.Error()
	default:
		resp.Details = d
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	default:
		tc := tenantFrom(r.Context())
		h.Logger.Error(message,
			zap.String("tenant", string(tc.TenantID)),
			zap.String("requestId", tc.RequestID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func validationDetails(err error) any {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// rangeFromQuery reads an inclusive day range. Missing bounds default to
// today.
func rangeFromQuery(r *http.Request, fromKey, toKey string) (generic.DayRange, error) {
	today := generic.Today()
	from, to := today, today

	if s := r.URL.Query().Get(fromKey); s != "" {
		d, err := generic.ParseDay(s)
		if err != nil {
			return generic.DayRange{}, err
		}
		from = d
	}
	if s := r.URL.Query().Get(toKey); s != "" {
		d, err := generic.ParseDay(s)
		if err != nil {
			return generic.DayRange{}, err
		}
		to = d
	}
	return generic.NewDayRange(from, to)
}

// staffFromQuery reads ?staffId=a,b or repeated ?staffId=a&staffId=b.
func staffFromQuery(r *http.Request) []generic.StaffID {
	var ids []generic.StaffID
	for _, v := range r.URL.Query()["staffId"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, generic.StaffID(id))
			}
		}
	}
	return ids
}
