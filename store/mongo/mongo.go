/*
Package mongostore provides a MongoDB implementation of the storage interfaces.

COLLECTIONS:
  incentive_rules: Rule versions, groups embedded as sub-documents
  invoices:        Invoices with embedded lineItems
  daily_sales:     One document per (tenantId, staffId, saleDate)
  staff_baselines: Target baselines
  backfill_runs:   Backfill audit log

ATOMIC UPSERT:
  UpsertDailySale is a single UpdateOne with upsert=true:
    $set:         sales fields, customerCount, appliedRule
    $setOnInsert: reviewsWithName = 0, reviewsWithPhoto = 0
  A unique index on (tenantId, staffId, saleDate) backs the key. Two
  concurrent first inserts race on that index; the loser retries once and
  lands on the update arm.

  Money is stored as Decimal128 through the registry in codec.go.
*/
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/generic"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	client    *mongo.Client
	rules     *mongo.Collection
	invoices  *mongo.Collection
	sales     *mongo.Collection
	baselines *mongo.Collection
	runs      *mongo.Collection
}

// Connect dials uri, verifies the connection and ensures indexes.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri).SetRegistry(NewRegistry()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := New(client, client.Database(database))
	if err := s.EnsureIndexes(connectCtx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// New wraps an existing client. The client must have been created with
// NewRegistry for decimals to round-trip.
func New(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client:    client,
		rules:     db.Collection("incentive_rules"),
		invoices:  db.Collection("invoices"),
		sales:     db.Collection("daily_sales"),
		baselines: db.Collection("staff_baselines"),
		runs:      db.Collection("backfill_runs"),
	}
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes every query below relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.rules: {
			{
				Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "type", Value: 1}, {Key: "effectiveFrom", Value: -1}},
				Options: options.Index().SetName("tenant_type_effective_idx"),
			},
			{
				Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "ruleId", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("tenant_rule_unique"),
			},
		},
		s.invoices: {
			{
				Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "invoiceId", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("tenant_invoice_unique"),
			},
			{
				Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "createdAt", Value: 1}},
				Options: options.Index().SetName("tenant_created_idx"),
			},
		},
		s.sales: {
			{
				Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "staffId", Value: 1}, {Key: "saleDate", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("tenant_staff_date_unique"),
			},
			{
				Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "saleDate", Value: 1}},
				Options: options.Index().SetName("tenant_date_idx"),
			},
		},
		s.baselines: {
			{
				Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "staffId", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("tenant_staff_unique"),
			},
		},
		s.runs: {
			{
				Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "startedAt", Value: -1}},
				Options: options.Index().SetName("tenant_started_idx"),
			},
		},
	}
	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll.Name(), err)
		}
	}
	return nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

type ruleDoc struct {
	ID            string                  `bson:"ruleId"`
	TenantID      string                  `bson:"tenantId"`
	Type          string                  `bson:"type"`
	EffectiveFrom time.Time               `bson:"effectiveFrom"`
	Target        generic.TargetConfig    `bson:"target"`
	Sales         generic.SalesConfig     `bson:"sales"`
	Incentive     generic.IncentiveConfig `bson:"incentive"`
}

type lineItemDoc struct {
	StaffID    *string         `bson:"staffId,omitempty"`
	ItemType   string          `bson:"itemType"`
	FinalPrice decimal.Decimal `bson:"finalPrice"`
}

type invoiceDoc struct {
	TenantID   string        `bson:"tenantId"`
	InvoiceID  string        `bson:"invoiceId"`
	CustomerID string        `bson:"customerId,omitempty"`
	CreatedAt  time.Time     `bson:"createdAt"`
	LineItems  []lineItemDoc `bson:"lineItems"`
}

type dailySaleDoc struct {
	TenantID         string               `bson:"tenantId"`
	StaffID          string               `bson:"staffId"`
	SaleDate         string               `bson:"saleDate"`
	ServiceSale      decimal.Decimal      `bson:"serviceSale"`
	ProductSale      decimal.Decimal      `bson:"productSale"`
	PackageSale      decimal.Decimal      `bson:"packageSale"`
	GiftCardSale     decimal.Decimal      `bson:"giftCardSale"`
	CustomerCount    int                  `bson:"customerCount"`
	ReviewsWithName  int                  `bson:"reviewsWithName"`
	ReviewsWithPhoto int                  `bson:"reviewsWithPhoto"`
	AppliedRule      generic.RuleSnapshot `bson:"appliedRule"`
}

type baselineDoc struct {
	TenantID  string          `bson:"tenantId"`
	StaffID   string          `bson:"staffId"`
	Amount    decimal.Decimal `bson:"amount"`
	UpdatedAt time.Time       `bson:"updatedAt"`
}

type runDoc struct {
	ID               string     `bson:"_id"`
	TenantID         string     `bson:"tenantId"`
	StartDate        string     `bson:"startDate"`
	EndDate          string     `bson:"endDate"`
	Status           string     `bson:"status"`
	Trigger          string     `bson:"trigger,omitempty"`
	ProcessedRecords int        `bson:"processedRecords"`
	Error            string     `bson:"error,omitempty"`
	StartedAt        time.Time  `bson:"startedAt"`
	CompletedAt      *time.Time `bson:"completedAt,omitempty"`
}

// =============================================================================
// RULES
// =============================================================================

func (s *Store) AppendRule(ctx context.Context, rule generic.IncentiveRule) error {
	_, err := s.rules.InsertOne(ctx, ruleDoc{
		ID:            string(rule.ID),
		TenantID:      string(rule.TenantID),
		Type:          string(rule.Type),
		EffectiveFrom: rule.EffectiveFrom.UTC(),
		Target:        rule.Target,
		Sales:         rule.Sales,
		Incentive:     rule.Incentive,
	})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: rule %s already exists", generic.ErrInvalidRule, rule.ID)
	}
	return err
}

func (s *Store) LatestRule(ctx context.Context, tenantID generic.TenantID, ruleType generic.RuleType, cutoff time.Time) (*generic.IncentiveRule, error) {
	filter := bson.M{
		"tenantId":      string(tenantID),
		"type":          string(ruleType),
		"effectiveFrom": bson.M{"$lte": cutoff.UTC()},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "effectiveFrom", Value: -1}, {Key: "ruleId", Value: -1}})

	var doc ruleDoc
	err := s.rules.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find rule: %w", err)
	}
	r := doc.toRule()
	return &r, nil
}

func (s *Store) ListRules(ctx context.Context, tenantID generic.TenantID) ([]generic.IncentiveRule, error) {
	opts := options.Find().SetSort(bson.D{{Key: "effectiveFrom", Value: 1}, {Key: "ruleId", Value: 1}})
	cursor, err := s.rules.Find(ctx, bson.M{"tenantId": string(tenantID)}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []ruleDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	rules := make([]generic.IncentiveRule, len(docs))
	for i, d := range docs {
		rules[i] = d.toRule()
	}
	return rules, nil
}

func (d ruleDoc) toRule() generic.IncentiveRule {
	return generic.IncentiveRule{
		ID:            generic.RuleID(d.ID),
		TenantID:      generic.TenantID(d.TenantID),
		Type:          generic.RuleType(d.Type),
		EffectiveFrom: d.EffectiveFrom.UTC(),
		Target:        d.Target,
		Sales:         d.Sales,
		Incentive:     d.Incentive,
	}
}

// =============================================================================
// INVOICES
// =============================================================================

func (s *Store) SaveInvoice(ctx context.Context, inv generic.Invoice) error {
	doc := invoiceDoc{
		TenantID:   string(inv.TenantID),
		InvoiceID:  string(inv.ID),
		CustomerID: string(inv.CustomerID),
		CreatedAt:  inv.CreatedAt.UTC(),
		LineItems:  make([]lineItemDoc, len(inv.LineItems)),
	}
	for i, li := range inv.LineItems {
		item := lineItemDoc{ItemType: string(li.ItemType), FinalPrice: li.FinalPrice}
		if li.StaffID != nil {
			id := string(*li.StaffID)
			item.StaffID = &id
		}
		doc.LineItems[i] = item
	}

	filter := bson.M{"tenantId": doc.TenantID, "invoiceId": doc.InvoiceID}
	_, err := s.invoices.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) InvoicesBetween(ctx context.Context, tenantID generic.TenantID, from, to time.Time) ([]generic.Invoice, error) {
	filter := bson.M{
		"tenantId":  string(tenantID),
		"createdAt": bson.M{"$gte": from.UTC(), "$lte": to.UTC()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "invoiceId", Value: 1}})
	cursor, err := s.invoices.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []invoiceDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]generic.Invoice, len(docs))
	for i, d := range docs {
		inv := generic.Invoice{
			ID:         generic.InvoiceID(d.InvoiceID),
			TenantID:   generic.TenantID(d.TenantID),
			CustomerID: generic.CustomerID(d.CustomerID),
			CreatedAt:  d.CreatedAt.UTC(),
			LineItems:  make([]generic.LineItem, len(d.LineItems)),
		}
		for j, li := range d.LineItems {
			item := generic.LineItem{ItemType: generic.ItemType(li.ItemType), FinalPrice: li.FinalPrice}
			if li.StaffID != nil {
				item.StaffID = generic.StaffRef(*li.StaffID)
			}
			inv.LineItems[j] = item
		}
		out[i] = inv
	}
	return out, nil
}

// =============================================================================
// DAILY SALES
// =============================================================================

func saleFilter(tenantID generic.TenantID, staffID generic.StaffID, date generic.Day) bson.M {
	return bson.M{"tenantId": string(tenantID), "staffId": string(staffID), "saleDate": date.String()}
}

// dailySaleUpdate overwrites the pipeline-owned fields. Review counts only
// appear in $setOnInsert so an update never resets them.
func dailySaleUpdate(sale generic.DailySale) bson.M {
	return bson.M{
		"$set": bson.M{
			"serviceSale":   sale.ServiceSale,
			"productSale":   sale.ProductSale,
			"packageSale":   sale.PackageSale,
			"giftCardSale":  sale.GiftCardSale,
			"customerCount": sale.CustomerCount,
			"appliedRule":   sale.AppliedRule,
		},
		"$setOnInsert": bson.M{
			"reviewsWithName":  0,
			"reviewsWithPhoto": 0,
		},
	}
}

func (s *Store) UpsertDailySale(ctx context.Context, sale generic.DailySale) error {
	filter := saleFilter(sale.TenantID, sale.StaffID, sale.Date)
	update := dailySaleUpdate(sale)
	opts := options.Update().SetUpsert(true)

	_, err := s.sales.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		_, err = s.sales.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert daily sale: %w", err)
	}
	return nil
}

func (s *Store) GetDailySale(ctx context.Context, tenantID generic.TenantID, staffID generic.StaffID, date generic.Day) (*generic.DailySale, error) {
	var doc dailySaleDoc
	err := s.sales.FindOne(ctx, saleFilter(tenantID, staffID, date)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, generic.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sale, err := doc.toSale()
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListDailySales(ctx context.Context, tenantID generic.TenantID, staffIDs []generic.StaffID, from, to generic.Day) ([]generic.DailySale, error) {
	filter := bson.M{
		"tenantId": string(tenantID),
		"saleDate": bson.M{"$gte": from.String(), "$lte": to.String()},
	}
	if len(staffIDs) > 0 {
		ids := make([]string, len(staffIDs))
		for i, id := range staffIDs {
			ids[i] = string(id)
		}
		filter["staffId"] = bson.M{"$in": ids}
	}
	opts := options.Find().SetSort(bson.D{{Key: "saleDate", Value: 1}, {Key: "staffId", Value: 1}})

	cursor, err := s.sales.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily sales: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []dailySaleDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]generic.DailySale, 0, len(docs))
	for _, d := range docs {
		sale, err := d.toSale()
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	return out, nil
}

func (s *Store) SetReviewCounts(ctx context.Context, tenantID generic.TenantID, staffID generic.StaffID, date generic.Day, withName, withPhoto int) error {
	res, err := s.sales.UpdateOne(ctx, saleFilter(tenantID, staffID, date), bson.M{
		"$set": bson.M{"reviewsWithName": withName, "reviewsWithPhoto": withPhoto},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return generic.ErrNotFound
	}
	return nil
}

func (d dailySaleDoc) toSale() (generic.DailySale, error) {
	day, err := generic.ParseDay(d.SaleDate)
	if err != nil {
		return generic.DailySale{}, err
	}
	return generic.DailySale{
		TenantID:         generic.TenantID(d.TenantID),
		StaffID:          generic.StaffID(d.StaffID),
		Date:             day,
		ServiceSale:      d.ServiceSale,
		ProductSale:      d.ProductSale,
		PackageSale:      d.PackageSale,
		GiftCardSale:     d.GiftCardSale,
		CustomerCount:    d.CustomerCount,
		ReviewsWithName:  d.ReviewsWithName,
		ReviewsWithPhoto: d.ReviewsWithPhoto,
		AppliedRule:      d.AppliedRule,
	}, nil
}

// =============================================================================
// BASELINES
// =============================================================================

func (s *Store) SetBaseline(ctx context.Context, b generic.StaffBaseline) error {
	updatedAt := b.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	filter := bson.M{"tenantId": string(b.TenantID), "staffId": string(b.StaffID)}
	doc := baselineDoc{
		TenantID:  string(b.TenantID),
		StaffID:   string(b.StaffID),
		Amount:    b.Amount,
		UpdatedAt: updatedAt.UTC(),
	}
	_, err := s.baselines.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) GetBaseline(ctx context.Context, tenantID generic.TenantID, staffID generic.StaffID) (*generic.StaffBaseline, error) {
	var doc baselineDoc
	err := s.baselines.FindOne(ctx, bson.M{"tenantId": string(tenantID), "staffId": string(staffID)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, generic.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &generic.StaffBaseline{
		TenantID:  tenantID,
		StaffID:   staffID,
		Amount:    doc.Amount,
		UpdatedAt: doc.UpdatedAt.UTC(),
	}, nil
}

// =============================================================================
// BACKFILL RUNS
// =============================================================================

func (s *Store) SaveRun(ctx context.Context, r generic.BackfillRun) error {
	doc := runDoc{
		ID:               r.ID,
		TenantID:         string(r.TenantID),
		StartDate:        r.Start.String(),
		EndDate:          r.End.String(),
		Status:           string(r.Status),
		Trigger:          r.Trigger,
		ProcessedRecords: r.ProcessedRecords,
		Error:            r.Error,
		StartedAt:        r.StartedAt.UTC(),
		CompletedAt:      r.CompletedAt,
	}
	_, err := s.runs.ReplaceOne(ctx, runFilter(r), doc, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) ListRuns(ctx context.Context, tenantID generic.TenantID, limit int) ([]generic.BackfillRun, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.runs.Find(ctx, bson.M{"tenantId": string(tenantID)}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []runDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	runs := make([]generic.BackfillRun, len(docs))
	for i, d := range docs {
		start, err := generic.ParseDay(d.StartDate)
		if err != nil {
			return nil, fmt.Errorf("backfill run %s: %w", d.ID, err)
		}
		end, err := generic.ParseDay(d.EndDate)
		if err != nil {
			return nil, fmt.Errorf("backfill run %s: %w", d.ID, err)
		}
		runs[i] = generic.BackfillRun{
			ID:               d.ID,
			TenantID:         generic.TenantID(d.TenantID),
			Start:            start,
			End:              end,
			Status:           generic.RunStatus(d.Status),
			Trigger:          d.Trigger,
			ProcessedRecords: d.ProcessedRecords,
			Error:            d.Error,
			StartedAt:        d.StartedAt.UTC(),
			CompletedAt:      d.CompletedAt,
		}
	}
	return runs, nil
}

func runFilter(r generic.BackfillRun) bson.M {
	return bson.M{"_id": r.ID, "tenantId": string(r.TenantID)}
}

// settledRunFilter matches completed runs that covered day and started
// after it ended.
func settledRunFilter(tenantID generic.TenantID, day generic.Day) bson.M {
	return bson.M{
		"tenantId":  string(tenantID),
		"status":    string(generic.RunCompleted),
		"startDate": bson.M{"$lte": day.String()},
		"endDate":   bson.M{"$gte": day.String()},
		"startedAt": bson.M{"$gte": day.AddDays(1).Start()},
	}
}

func (s *Store) HasCompletedRun(ctx context.Context, tenantID generic.TenantID, day generic.Day) (bool, error) {
	n, err := s.runs.CountDocuments(ctx, settledRunFilter(tenantID, day))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Reset deletes every document belonging to the tenant.
func (s *Store) Reset(ctx context.Context, tenantID generic.TenantID) error {
	filter := bson.M{"tenantId": string(tenantID)}
	for _, coll := range []*mongo.Collection{s.rules, s.invoices, s.sales, s.baselines, s.runs} {
		if _, err := coll.DeleteMany(ctx, filter); err != nil {
			return fmt.Errorf("failed to reset %s: %w", coll.Name(), err)
		}
	}
	return nil
}

var (
	_ generic.RuleStore      = (*Store)(nil)
	_ generic.InvoiceStore   = (*Store)(nil)
	_ generic.DailySaleStore = (*Store)(nil)
	_ generic.BaselineStore  = (*Store)(nil)
	_ generic.RunStore       = (*Store)(nil)
)
