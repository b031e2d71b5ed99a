package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/generic"
)

// =============================================================================
// BACKFILL DTOs
// =============================================================================

// BackfillRequest triggers a recompute. Dates are YYYY-MM-DD.
type BackfillRequest struct {
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

type BackfillResponse struct {
	Message          string `json:"message"`
	ProcessedRecords int    `json:"processedRecords"`
	RunID            string `json:"runId,omitempty"`
	DaysScanned      int    `json:"daysScanned"`
	DaysWithActivity int    `json:"daysWithActivity"`
}

type BackfillRunDTO struct {
	ID               string     `json:"id"`
	StartDate        string     `json:"startDate"`
	EndDate          string     `json:"endDate"`
	Status           string     `json:"status"`
	Trigger          string     `json:"trigger,omitempty"`
	ProcessedRecords int        `json:"processedRecords"`
	Error            string     `json:"error,omitempty"`
	StartedAt        time.Time  `json:"startedAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// =============================================================================
// DAILY SALE / INCENTIVE DTOs
// =============================================================================

type DailySaleDTO struct {
	StaffID          string               `json:"staffId"`
	Date             string               `json:"date"`
	ServiceSale      decimal.Decimal      `json:"serviceSale"`
	ProductSale      decimal.Decimal      `json:"productSale"`
	PackageSale      decimal.Decimal      `json:"packageSale"`
	GiftCardSale     decimal.Decimal      `json:"giftCardSale"`
	CustomerCount    int                  `json:"customerCount"`
	ReviewsWithName  int                  `json:"reviewsWithName"`
	ReviewsWithPhoto int                  `json:"reviewsWithPhoto"`
	AppliedRule      generic.RuleSnapshot `json:"appliedRule"`
}

type IncentiveDTO struct {
	StaffID         string                     `json:"staffId"`
	Date            string                     `json:"date"`
	Target          decimal.Decimal            `json:"target"`
	Achieved        decimal.Decimal            `json:"achieved"`
	IsTargetMet     bool                       `json:"isTargetMet"`
	AppliedRate     decimal.Decimal            `json:"appliedRate"`
	IncentiveAmount decimal.Decimal            `json:"incentiveAmount"`
	Policy          string                     `json:"policy"`
	Breakdown       generic.IncentiveBreakdown `json:"breakdown"`
}

type RollupDTO struct {
	StaffID         string          `json:"staffId"`
	ServiceSale     decimal.Decimal `json:"serviceSale"`
	ProductSale     decimal.Decimal `json:"productSale"`
	PackageSale     decimal.Decimal `json:"packageSale"`
	GiftCardSale    decimal.Decimal `json:"giftCardSale"`
	Achieved        decimal.Decimal `json:"achieved"`
	CustomerCount   int             `json:"customerCount"`
	IncentiveAmount decimal.Decimal `json:"incentiveAmount"`
	ActiveDays      int             `json:"activeDays"`
	DaysTargetMet   int             `json:"daysTargetMet"`
}

type RollupResponse struct {
	From   string      `json:"from"`
	To     string      `json:"to"`
	Totals []RollupDTO `json:"totals"`
}

// =============================================================================
// INGESTION DTOs
// =============================================================================

type LineItemRequest struct {
	StaffID    *string         `json:"staffId,omitempty"`
	ItemType   string          `json:"itemType" validate:"required"`
	FinalPrice decimal.Decimal `json:"finalPrice"`
}

type InvoiceRequest struct {
	ID         string            `json:"id,omitempty"`
	CustomerID string            `json:"customerId,omitempty"`
	CreatedAt  time.Time         `json:"createdAt" validate:"required"`
	LineItems  []LineItemRequest `json:"lineItems" validate:"required,min=1,dive"`
}

type BaselineRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type BaselineDTO struct {
	StaffID   string          `json:"staffId"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// RuleDTO is a stored rule version.
type RuleDTO struct {
	factory.RuleJSON
	TenantID string `json:"tenantId"`
}

// =============================================================================
// SCENARIO DTOs
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId" validate:"required"`
}

// =============================================================================
// ERROR RESPONSE
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toDailySaleDTO(s generic.DailySale) DailySaleDTO {
	return DailySaleDTO{
		StaffID:          string(s.StaffID),
		Date:             s.Date.String(),
		ServiceSale:      s.ServiceSale,
		ProductSale:      s.ProductSale,
		PackageSale:      s.PackageSale,
		GiftCardSale:     s.GiftCardSale,
		CustomerCount:    s.CustomerCount,
		ReviewsWithName:  s.ReviewsWithName,
		ReviewsWithPhoto: s.ReviewsWithPhoto,
		AppliedRule:      s.AppliedRule,
	}
}

func toIncentiveDTO(r generic.IncentiveResult) IncentiveDTO {
	return IncentiveDTO{
		StaffID:         string(r.StaffID),
		Date:            r.Date.String(),
		Target:          r.Target,
		Achieved:        r.Achieved,
		IsTargetMet:     r.IsTargetMet,
		AppliedRate:     r.AppliedRate,
		IncentiveAmount: r.IncentiveAmount,
		Policy:          r.Policy,
		Breakdown:       r.Breakdown,
	}
}

func toRollupDTO(t generic.RollupTotals) RollupDTO {
	return RollupDTO{
		StaffID:         string(t.StaffID),
		ServiceSale:     t.ServiceSale,
		ProductSale:     t.ProductSale,
		PackageSale:     t.PackageSale,
		GiftCardSale:    t.GiftCardSale,
		Achieved:        t.Achieved,
		CustomerCount:   t.CustomerCount,
		IncentiveAmount: t.IncentiveAmount,
		ActiveDays:      t.ActiveDays,
		DaysTargetMet:   t.DaysTargetMet,
	}
}

func toRunDTO(r generic.BackfillRun) BackfillRunDTO {
	return BackfillRunDTO{
		ID:               r.ID,
		StartDate:        r.Start.String(),
		EndDate:          r.End.String(),
		Status:           string(r.Status),
		Trigger:          r.Trigger,
		ProcessedRecords: r.ProcessedRecords,
		Error:            r.Error,
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
	}
}

func toRuleDTO(rule generic.IncentiveRule) RuleDTO {
	return RuleDTO{RuleJSON: factory.ToJSON(rule), TenantID: string(rule.TenantID)}
}

func toInvoice(tenantID generic.TenantID, req InvoiceRequest, id string) generic.Invoice {
	inv := generic.Invoice{
		ID:         generic.InvoiceID(id),
		TenantID:   tenantID,
		CustomerID: generic.CustomerID(req.CustomerID),
		CreatedAt:  req.CreatedAt.UTC(),
		LineItems:  make([]generic.LineItem, len(req.LineItems)),
	}
	for i, li := range req.LineItems {
		item := generic.LineItem{ItemType: generic.ItemType(li.ItemType), FinalPrice: li.FinalPrice}
		if li.StaffID != nil && *li.StaffID != "" {
			item.StaffID = generic.StaffRef(*li.StaffID)
		}
		inv.LineItems[i] = item
	}
	return inv
}
