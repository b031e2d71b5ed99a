/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the engine using SQLite. This
  is the default store for the server and the one the integration tests run
  against.

INTERFACES IMPLEMENTED:
  generic.RuleStore:      Append-only incentive rule versions
  generic.InvoiceStore:   Invoices and their line items
  generic.DailySaleStore: DailySale aggregates
  generic.BaselineStore:  Per-staff target baselines
  generic.RunStore:       Backfill run audit log

ATOMIC UPSERT:
  UpsertDailySale is a single statement:
    INSERT ... ON CONFLICT(tenant_id, staff_id, sale_date) DO UPDATE SET <sales fields>
  Review counts are written as 0 by the INSERT arm and are absent from the
  UPDATE arm, so a recompute never touches them.

KEY TABLES:
  incentive_rules:    Rule versions, config stored as JSON
  invoices:           Invoice headers
  invoice_line_items: Line items, ordered by position
  daily_sales:        One row per (tenant, staff, day); applied rule as JSON
  staff_baselines:    Target baselines
  backfill_runs:      One row per orchestrator invocation

TIME ENCODING:
  Instants are stored as fixed-width UTC text (timeLayout) so that string
  comparison in SQL matches chronological order. Days are YYYY-MM-DD.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's own locking.

USAGE:
  store, err := sqlite.New("./data/incentives.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
  - store/mongo: Document-store implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/generic"
)

// timeLayout is RFC3339 with fixed nanosecond width.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Incentive rules (append-only, effective-dated)
	CREATE TABLE IF NOT EXISTS incentive_rules (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		rule_type TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		config_json TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	-- Resolver hot path: latest version of a type at a cutoff
	CREATE INDEX IF NOT EXISTS idx_rules_tenant_type_effective
		ON incentive_rules(tenant_id, rule_type, effective_from DESC);

	-- Invoices (transaction source)
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		customer_id TEXT,
		created_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_tenant_created
		ON invoices(tenant_id, created_at);

	CREATE TABLE IF NOT EXISTS invoice_line_items (
		tenant_id TEXT NOT NULL,
		invoice_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		staff_id TEXT,
		item_type TEXT NOT NULL,
		final_price TEXT NOT NULL,
		PRIMARY KEY (tenant_id, invoice_id, position),
		FOREIGN KEY (tenant_id, invoice_id) REFERENCES invoices(tenant_id, id) ON DELETE CASCADE
	);

	-- Daily sales (one row per tenant, staff, day)
	CREATE TABLE IF NOT EXISTS daily_sales (
		tenant_id TEXT NOT NULL,
		staff_id TEXT NOT NULL,
		sale_date TEXT NOT NULL,
		service_sale TEXT NOT NULL,
		product_sale TEXT NOT NULL,
		package_sale TEXT NOT NULL,
		gift_card_sale TEXT NOT NULL,
		customer_count INTEGER NOT NULL DEFAULT 0,
		reviews_with_name INTEGER NOT NULL DEFAULT 0,
		reviews_with_photo INTEGER NOT NULL DEFAULT 0,
		applied_rule_json TEXT NOT NULL,
		UNIQUE(tenant_id, staff_id, sale_date)
	);

	CREATE INDEX IF NOT EXISTS idx_daily_sales_tenant_date
		ON daily_sales(tenant_id, sale_date);

	-- Target baselines
	CREATE TABLE IF NOT EXISTS staff_baselines (
		tenant_id TEXT NOT NULL,
		staff_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, staff_id)
	);

	-- Backfill runs (audit)
	CREATE TABLE IF NOT EXISTS backfill_runs (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL,
		trigger_source TEXT,
		processed_records INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_backfill_runs_tenant_started
		ON backfill_runs(tenant_id, started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_backfill_runs_status
		ON backfill_runs(tenant_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RULES (generic.RuleStore)
// =============================================================================

// ruleConfig is the JSON document stored in config_json.
type ruleConfig struct {
	Target    generic.TargetConfig    `json:"target"`
	Sales     generic.SalesConfig     `json:"sales"`
	Incentive generic.IncentiveConfig `json:"incentive"`
}

// AppendRule inserts a rule version. Rules are never updated.
func (s *Store) AppendRule(ctx context.Context, rule generic.IncentiveRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := json.Marshal(ruleConfig{Target: rule.Target, Sales: rule.Sales, Incentive: rule.Incentive})
	if err != nil {
		return fmt.Errorf("failed to encode rule: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO incentive_rules (id, tenant_id, rule_type, effective_from, config_json)
		VALUES (?, ?, ?, ?, ?)
	`, rule.ID, rule.TenantID, rule.Type, formatTime(rule.EffectiveFrom), string(cfg))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: rule %s already exists", generic.ErrInvalidRule, rule.ID)
		}
		return fmt.Errorf("failed to append rule: %w", err)
	}
	return nil
}

// LatestRule returns the newest version with effective_from <= cutoff.
func (s *Store) LatestRule(ctx context.Context, tenantID generic.TenantID, ruleType generic.RuleType, cutoff time.Time) (*generic.IncentiveRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules, err := s.queryRules(ctx, `
		SELECT id, tenant_id, rule_type, effective_from, config_json
		FROM incentive_rules
		WHERE tenant_id = ? AND rule_type = ? AND effective_from <= ?
		ORDER BY effective_from DESC, id DESC
		LIMIT 1
	`, tenantID, ruleType, formatTime(cutoff))
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}
	return &rules[0], nil
}

// ListRules returns all versions for a tenant, oldest first.
func (s *Store) ListRules(ctx context.Context, tenantID generic.TenantID) ([]generic.IncentiveRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRules(ctx, `
		SELECT id, tenant_id, rule_type, effective_from, config_json
		FROM incentive_rules
		WHERE tenant_id = ?
		ORDER BY effective_from ASC, id ASC
	`, tenantID)
}

func (s *Store) queryRules(ctx context.Context, query string, args ...any) ([]generic.IncentiveRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []generic.IncentiveRule
	for rows.Next() {
		var (
			r             generic.IncentiveRule
			effectiveFrom string
			cfgJSON       string
		)
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Type, &effectiveFrom, &cfgJSON); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		r.EffectiveFrom = parseTime(effectiveFrom)

		var cfg ruleConfig
		if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode rule %s: %w", r.ID, err)
		}
		r.Target, r.Sales, r.Incentive = cfg.Target, cfg.Sales, cfg.Incentive
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// =============================================================================
// INVOICES (generic.InvoiceStore)
// =============================================================================

// SaveInvoice inserts or replaces an invoice and its line items atomically.
func (s *Store) SaveInvoice(ctx context.Context, inv generic.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (id, tenant_id, customer_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			customer_id = excluded.customer_id,
			created_at = excluded.created_at
	`, inv.ID, inv.TenantID, nullString(string(inv.CustomerID)), formatTime(inv.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save invoice: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM invoice_line_items WHERE tenant_id = ? AND invoice_id = ?`,
		inv.TenantID, inv.ID,
	); err != nil {
		return fmt.Errorf("failed to replace line items: %w", err)
	}

	for i, li := range inv.LineItems {
		var staff sql.NullString
		if li.StaffID != nil {
			staff = nullString(string(*li.StaffID))
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO invoice_line_items (tenant_id, invoice_id, position, staff_id, item_type, final_price)
			VALUES (?, ?, ?, ?, ?, ?)
		`, inv.TenantID, inv.ID, i, staff, li.ItemType, li.FinalPrice.String()); err != nil {
			return fmt.Errorf("failed to save line item %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// InvoicesBetween returns invoices created in [from, to] with their items.
func (s *Store) InvoicesBetween(ctx context.Context, tenantID generic.TenantID, from, to time.Time) ([]generic.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.customer_id, i.created_at,
		       li.position, li.staff_id, li.item_type, li.final_price
		FROM invoices i
		LEFT JOIN invoice_line_items li
		       ON li.tenant_id = i.tenant_id AND li.invoice_id = i.id
		WHERE i.tenant_id = ? AND i.created_at >= ? AND i.created_at <= ?
		ORDER BY i.created_at ASC, i.id ASC, li.position ASC
	`, tenantID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []generic.Invoice
	for rows.Next() {
		var (
			id         string
			customerID sql.NullString
			createdAt  string
			position   sql.NullInt64
			staffID    sql.NullString
			itemType   sql.NullString
			finalPrice sql.NullString
		)
		if err := rows.Scan(&id, &customerID, &createdAt, &position, &staffID, &itemType, &finalPrice); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}

		n := len(invoices)
		if n == 0 || invoices[n-1].ID != generic.InvoiceID(id) {
			invoices = append(invoices, generic.Invoice{
				ID:         generic.InvoiceID(id),
				TenantID:   tenantID,
				CustomerID: generic.CustomerID(customerID.String),
				CreatedAt:  parseTime(createdAt),
			})
			n++
		}
		if !position.Valid {
			continue
		}

		li := generic.LineItem{ItemType: generic.ItemType(itemType.String)}
		if staffID.Valid {
			li.StaffID = generic.StaffRef(staffID.String)
		}
		price, err := decimal.NewFromString(finalPrice.String)
		if err != nil {
			return nil, &generic.MalformedLineItemError{
				InvoiceID: generic.InvoiceID(id),
				StaffID:   generic.StaffID(staffID.String),
				Index:     int(position.Int64),
				Reason:    fmt.Sprintf("final price %q is not a decimal", finalPrice.String),
			}
		}
		li.FinalPrice = price
		invoices[n-1].LineItems = append(invoices[n-1].LineItems, li)
	}
	return invoices, rows.Err()
}

// =============================================================================
// DAILY SALES (generic.DailySaleStore)
// =============================================================================

// UpsertDailySale writes the pipeline-owned fields in one statement.
func (s *Store) UpsertDailySale(ctx context.Context, sale generic.DailySale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ruleJSON, err := json.Marshal(sale.AppliedRule)
	if err != nil {
		return fmt.Errorf("failed to encode applied rule: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_sales (tenant_id, staff_id, sale_date,
			service_sale, product_sale, package_sale, gift_card_sale,
			customer_count, reviews_with_name, reviews_with_photo, applied_rule_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?)
		ON CONFLICT(tenant_id, staff_id, sale_date) DO UPDATE SET
			service_sale = excluded.service_sale,
			product_sale = excluded.product_sale,
			package_sale = excluded.package_sale,
			gift_card_sale = excluded.gift_card_sale,
			customer_count = excluded.customer_count,
			applied_rule_json = excluded.applied_rule_json
	`,
		sale.TenantID, sale.StaffID, sale.Date.String(),
		sale.ServiceSale.String(), sale.ProductSale.String(),
		sale.PackageSale.String(), sale.GiftCardSale.String(),
		sale.CustomerCount, string(ruleJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily sale: %w", err)
	}
	return nil
}

const dailySaleColumns = `tenant_id, staff_id, sale_date,
	service_sale, product_sale, package_sale, gift_card_sale,
	customer_count, reviews_with_name, reviews_with_photo, applied_rule_json`

// GetDailySale returns generic.ErrNotFound when no row exists.
func (s *Store) GetDailySale(ctx context.Context, tenantID generic.TenantID, staffID generic.StaffID, date generic.Day) (*generic.DailySale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales, err := s.queryDailySales(ctx,
		`SELECT `+dailySaleColumns+` FROM daily_sales
		 WHERE tenant_id = ? AND staff_id = ? AND sale_date = ?`,
		tenantID, staffID, date.String())
	if err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return nil, generic.ErrNotFound
	}
	return &sales[0], nil
}

// ListDailySales returns rows in [from, to], optionally filtered by staff.
func (s *Store) ListDailySales(ctx context.Context, tenantID generic.TenantID, staffIDs []generic.StaffID, from, to generic.Day) ([]generic.DailySale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + dailySaleColumns + ` FROM daily_sales
		WHERE tenant_id = ? AND sale_date >= ? AND sale_date <= ?`
	args := []any{tenantID, from.String(), to.String()}

	if len(staffIDs) > 0 {
		placeholders := make([]string, len(staffIDs))
		for i, id := range staffIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += ` AND staff_id IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY sale_date ASC, staff_id ASC`

	return s.queryDailySales(ctx, query, args...)
}

// SetReviewCounts updates only the review columns of an existing row.
func (s *Store) SetReviewCounts(ctx context.Context, tenantID generic.TenantID, staffID generic.StaffID, date generic.Day, withName, withPhoto int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE daily_sales SET reviews_with_name = ?, reviews_with_photo = ?
		WHERE tenant_id = ? AND staff_id = ? AND sale_date = ?
	`, withName, withPhoto, tenantID, staffID, date.String())
	if err != nil {
		return fmt.Errorf("failed to set review counts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.ErrNotFound
	}
	return nil
}

func (s *Store) queryDailySales(ctx context.Context, query string, args ...any) ([]generic.DailySale, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily sales: %w", err)
	}
	defer rows.Close()

	var sales []generic.DailySale
	for rows.Next() {
		sale, err := scanDailySale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func scanDailySale(rows *sql.Rows) (generic.DailySale, error) {
	var (
		sale                            generic.DailySale
		saleDate                        string
		service, product, pkg, giftCard string
		ruleJSON                        string
	)
	err := rows.Scan(
		&sale.TenantID, &sale.StaffID, &saleDate,
		&service, &product, &pkg, &giftCard,
		&sale.CustomerCount, &sale.ReviewsWithName, &sale.ReviewsWithPhoto, &ruleJSON,
	)
	if err != nil {
		return sale, fmt.Errorf("failed to scan daily sale: %w", err)
	}

	if sale.Date, err = generic.ParseDay(saleDate); err != nil {
		return sale, err
	}
	amounts := []struct {
		column string
		raw    string
		dst    *decimal.Decimal
	}{
		{"service_sale", service, &sale.ServiceSale},
		{"product_sale", product, &sale.ProductSale},
		{"package_sale", pkg, &sale.PackageSale},
		{"gift_card_sale", giftCard, &sale.GiftCardSale},
	}
	for _, a := range amounts {
		if *a.dst, err = decimal.NewFromString(a.raw); err != nil {
			return sale, fmt.Errorf("invalid %s %q for staff %s on %s: %w", a.column, a.raw, sale.StaffID, saleDate, err)
		}
	}

	if err := json.Unmarshal([]byte(ruleJSON), &sale.AppliedRule); err != nil {
		return sale, fmt.Errorf("failed to decode applied rule: %w", err)
	}
	return sale, nil
}

// =============================================================================
// BASELINES (generic.BaselineStore)
// =============================================================================

func (s *Store) SetBaseline(ctx context.Context, b generic.StaffBaseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedAt := b.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO staff_baselines (tenant_id, staff_id, amount, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant_id, staff_id) DO UPDATE SET
			amount = excluded.amount,
			updated_at = excluded.updated_at
	`, b.TenantID, b.StaffID, b.Amount.String(), formatTime(updatedAt))
	if err != nil {
		return fmt.Errorf("failed to save baseline: %w", err)
	}
	return nil
}

func (s *Store) GetBaseline(ctx context.Context, tenantID generic.TenantID, staffID generic.StaffID) (*generic.StaffBaseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var amount, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT amount, updated_at FROM staff_baselines
		WHERE tenant_id = ? AND staff_id = ?
	`, tenantID, staffID).Scan(&amount, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get baseline: %w", err)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid baseline amount %q: %w", amount, err)
	}
	return &generic.StaffBaseline{
		TenantID:  tenantID,
		StaffID:   staffID,
		Amount:    d,
		UpdatedAt: parseTime(updatedAt),
	}, nil
}

// =============================================================================
// BACKFILL RUNS (generic.RunStore)
// =============================================================================

// SaveRun inserts a run or updates its status, count and completion.
func (s *Store) SaveRun(ctx context.Context, r generic.BackfillRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var completedAt *string
	if r.CompletedAt != nil {
		c := formatTime(*r.CompletedAt)
		completedAt = &c
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO backfill_runs (id, tenant_id, start_date, end_date, status,
			trigger_source, processed_records, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			status = excluded.status,
			processed_records = excluded.processed_records,
			error = excluded.error,
			completed_at = excluded.completed_at
	`,
		r.ID, r.TenantID, r.Start.String(), r.End.String(), r.Status,
		nullString(r.Trigger), r.ProcessedRecords, nullString(r.Error),
		formatTime(r.StartedAt), completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save backfill run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, tenantID generic.TenantID, limit int) ([]generic.BackfillRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, tenant_id, start_date, end_date, status, trigger_source,
			processed_records, error, started_at, completed_at
		FROM backfill_runs
		WHERE tenant_id = ?
		ORDER BY started_at DESC
	`
	args := []any{tenantID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query backfill runs: %w", err)
	}
	defer rows.Close()

	var runs []generic.BackfillRun
	for rows.Next() {
		var (
			r                         generic.BackfillRun
			start, end, startedAt     string
			trigger, runErr, complete sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.TenantID, &start, &end, &r.Status, &trigger,
			&r.ProcessedRecords, &runErr, &startedAt, &complete,
		); err != nil {
			return nil, fmt.Errorf("failed to scan backfill run: %w", err)
		}
		if r.Start, err = generic.ParseDay(start); err != nil {
			return nil, fmt.Errorf("backfill run %s: %w", r.ID, err)
		}
		if r.End, err = generic.ParseDay(end); err != nil {
			return nil, fmt.Errorf("backfill run %s: %w", r.ID, err)
		}
		r.Trigger = trigger.String
		r.Error = runErr.String
		r.StartedAt = parseTime(startedAt)
		if complete.Valid {
			t := parseTime(complete.String)
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// HasCompletedRun reports whether a completed run started after day ended
// and covered it.
func (s *Store) HasCompletedRun(ctx context.Context, tenantID generic.TenantID, day generic.Day) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM backfill_runs
		WHERE tenant_id = ? AND status = ? AND start_date <= ? AND end_date >= ?
			AND started_at >= ?
	`, tenantID, generic.RunCompleted, day.String(), day.String(),
		formatTime(day.AddDays(1).Start())).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Reset deletes every row belonging to the tenant.
func (s *Store) Reset(ctx context.Context, tenantID generic.TenantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{
		"invoice_line_items", "invoices", "daily_sales",
		"incentive_rules", "staff_baselines", "backfill_runs",
	} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE tenant_id = ?", tenantID); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Compile-time interface checks.
var (
	_ generic.RuleStore      = (*Store)(nil)
	_ generic.InvoiceStore   = (*Store)(nil)
	_ generic.DailySaleStore = (*Store)(nil)
	_ generic.BaselineStore  = (*Store)(nil)
	_ generic.RunStore       = (*Store)(nil)
)
