package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/utils"
)

type Quote struct {
	ID          int           `gorm:"primary_key" json:"id"`
	TenantId    string        `gorm:"index;not null" json:"tenant_id" binding:"required"`
	ClientId    int           `gorm:"index;not null" json:"client_id" binding:"required"`
	JobId       *int          `gorm:"index;default:null" json:"job_id"`
	QuoteNumber string        `gorm:"size:30;not null" json:"quote_number"`
	SequenceNo  int64         `gorm:"not null;default:0" json:"sequence_no"`
	FamilyKey   string        `gorm:"size:50;index" json:"family_key"`
	Status      QuoteStatus   `gorm:"type:enum('draft', 'sent', 'accepted', 'declined', 'expired');not null;default:'draft'" json:"status"`
	QuoteDate   time.Time     `gorm:"not null" json:"quote_date"`
	ExpiryDate  *time.Time    `gorm:"default:null" json:"expiry_date"`
	Notes       string        `gorm:"type:text" json:"notes"`

	IsGstInclusive *bool           `gorm:"not null;default:false" json:"is_gst_inclusive"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"subtotal"`
	GstAmount      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"gst_amount"`
	Total          decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total"`

	Details []QuoteDetail `json:"quote_details" validate:"required,dive,required"`

	ArchivedAt *time.Time `gorm:"default:null" json:"archived_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type QuoteDetail struct {
	ID          int             `gorm:"primary_key" json:"id"`
	QuoteId     int             `gorm:"index;not null" json:"quote_id"`
	Name        string          `gorm:"size:150;not null" json:"name" binding:"required"`
	Description string          `gorm:"size:255" json:"description"`
	Qty         decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"qty" binding:"required"`
	UnitRate    decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"unit_rate" binding:"required"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"amount"`
}

type NewQuote struct {
	ClientId       int              `json:"client_id" binding:"required"`
	JobId          *int             `json:"job_id"`
	FamilyKey      string           `json:"family_key"`
	QuoteDate      time.Time        `json:"quote_date"`
	ExpiryDate     *time.Time       `json:"expiry_date"`
	Notes          string           `json:"notes"`
	IsGstInclusive *bool            `json:"is_gst_inclusive"`
	Details        []NewQuoteDetail `json:"details" binding:"required"`
}

type NewQuoteDetail struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Qty         decimal.Decimal `json:"qty" binding:"required"`
	UnitRate    decimal.Decimal `json:"unit_rate" binding:"required"`
}

type QuotesEdge Edge[Quote]
type QuotesConnection struct {
	Edges    []*QuotesEdge `json:"edges"`
	PageInfo *PageInfo     `json:"pageInfo"`
}

func (obj Quote) GetId() int {
	return obj.ID
}

func (q Quote) GetCursor() string {
	return q.CreatedAt.String()
}

func (q Quote) GetTenantId() string {
	return q.TenantId
}

// quoteStatusTransitions holds the allowed moves; everything else is rejected.
var quoteStatusTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteStatusDraft: {QuoteStatusSent},
	QuoteStatusSent:  {QuoteStatusAccepted, QuoteStatusDeclined, QuoteStatusExpired},
}

func isValidQuoteTransition(from, to QuoteStatus) bool {
	for _, allowed := range quoteStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (input *NewQuote) validate(ctx context.Context, tenantId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Quote](ctx, tenantId, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateResourceId[Client](ctx, tenantId, input.ClientId); err != nil {
		return errors.New("client not found")
	}
	if input.JobId != nil && *input.JobId > 0 {
		if err := utils.ValidateResourceId[Job](ctx, tenantId, *input.JobId); err != nil {
			return errors.New("job not found")
		}
	}
	if len(input.Details) == 0 {
		return errors.New("at least one detail line is required")
	}
	return nil
}

// buildQuoteDetails maps input lines and returns them with the document
// totals. Subtotal + GstAmount always equals Total at 2 dp.
func buildQuoteDetails(inputs []NewQuoteDetail, isGstInclusive bool) ([]QuoteDetail, DocumentTotals) {
	details := make([]QuoteDetail, 0, len(inputs))
	lines := make([]DocumentLine, 0, len(inputs))
	for _, item := range inputs {
		details = append(details, QuoteDetail{
			Name:        item.Name,
			Description: item.Description,
			Qty:         item.Qty,
			UnitRate:    item.UnitRate,
			Amount:      item.Qty.Mul(item.UnitRate).Round(2),
		})
		lines = append(lines, DocumentLine{Qty: item.Qty, UnitRate: item.UnitRate})
	}
	return details, CalculateDocumentTotals(lines, isGstInclusive)
}

func CreateQuote(ctx context.Context, input *NewQuote) (*Quote, error) {
	db := config.GetDB()

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	if err := input.validate(ctx, tenantId, 0); err != nil {
		return nil, err
	}

	isGstInclusive := utils.DereferencePtr(input.IsGstInclusive)
	details, totals := buildQuoteDetails(input.Details, isGstInclusive)

	seqNo, err := utils.GetSequence[Quote](ctx, tenantId)
	if err != nil {
		return nil, err
	}

	quoteDate := input.QuoteDate
	if quoteDate.IsZero() {
		quoteDate = time.Now()
	}

	quote := Quote{
		TenantId:       tenantId,
		ClientId:       input.ClientId,
		JobId:          input.JobId,
		QuoteNumber:    fmt.Sprintf("QT-%06d", seqNo),
		SequenceNo:     seqNo,
		FamilyKey:      input.FamilyKey,
		Status:         QuoteStatusDraft,
		QuoteDate:      quoteDate,
		ExpiryDate:     input.ExpiryDate,
		Notes:          input.Notes,
		IsGstInclusive: input.IsGstInclusive,
		Subtotal:       totals.Subtotal,
		GstAmount:      totals.GstAmount,
		Total:          totals.Total,
		Details:        details,
	}

	tx := db.Begin()
	if err := ValidateTierQuota(ctx, tx, tenantId, "quotes"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.WithContext(ctx).Create(&quote).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := incrementUsage(ctx, tx, tenantId, "quotes_this_month"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createHistory(tx.WithContext(ctx), "CREATE", quote.ID, "quotes", nil, quote, "quote created"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func UpdateQuote(ctx context.Context, id int, input *NewQuote) (*Quote, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	if err := input.validate(ctx, tenantId, id); err != nil {
		return nil, err
	}

	quote, err := utils.FetchModel[Quote](ctx, tenantId, id, "Details")
	if err != nil {
		return nil, err
	}
	if quote.Status != QuoteStatusDraft {
		return nil, errors.New("only draft quotes can be edited")
	}

	isGstInclusive := utils.DereferencePtr(input.IsGstInclusive)
	details, totals := buildQuoteDetails(input.Details, isGstInclusive)

	db := config.GetDB()
	tx := db.Begin()

	// replace detail lines wholesale; draft documents have no downstream rows
	if err := tx.WithContext(ctx).Where("quote_id = ?", id).Delete(&QuoteDetail{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	for i := range details {
		details[i].QuoteId = id
	}
	if err := tx.WithContext(ctx).Create(&details).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	err = tx.WithContext(ctx).Model(&quote).Updates(map[string]interface{}{
		"ClientId":       input.ClientId,
		"JobId":          input.JobId,
		"FamilyKey":      input.FamilyKey,
		"ExpiryDate":     input.ExpiryDate,
		"Notes":          input.Notes,
		"IsGstInclusive": input.IsGstInclusive,
		"Subtotal":       totals.Subtotal,
		"GstAmount":      totals.GstAmount,
		"Total":          totals.Total,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	quote.Details = details

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return quote, nil
}

// UpdateQuoteStatus applies an allowed transition, then evaluates automations
// for it after commit.
func UpdateQuoteStatus(ctx context.Context, id int, newStatus QuoteStatus) (*Quote, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	quote, err := utils.FetchModel[Quote](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	oldStatus := quote.Status
	if !isValidQuoteTransition(oldStatus, newStatus) {
		return nil, fmt.Errorf("cannot move quote from %s to %s", oldStatus, newStatus)
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Model(&quote).Updates(map[string]interface{}{
		"Status": newStatus,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createHistory(tx.WithContext(ctx), "UPDATE", id, "quotes", oldStatus, newStatus, "quote status changed"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	EvaluateStatusChange(ctx, AutomationEntityTypeQuote, quote.ID, string(oldStatus), string(newStatus))

	return quote, nil
}

func DeleteQuote(ctx context.Context, id int) (*Quote, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	result, err := utils.FetchModel[Quote](ctx, tenantId, id, "Details")
	if err != nil {
		return nil, err
	}
	if result.Status == QuoteStatusAccepted {
		return nil, errors.New("accepted quotes cannot be deleted")
	}

	db := config.GetDB()
	tx := db.Begin()

	if err := tx.WithContext(ctx).Model(&result).Association("Details").Unscoped().Clear(); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(&result).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createHistory(tx.WithContext(ctx), "DELETE", id, "quotes", result, nil, "quote deleted"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return result, nil
}

func GetQuote(ctx context.Context, id int) (*Quote, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	return utils.FetchModel[Quote](ctx, tenantId, id, "Details")
}

func PaginateQuote(ctx context.Context, limit *int, after *string,
	quoteNumber *string, status *QuoteStatus, clientId *int) (*QuotesConnection, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	if quoteNumber != nil && *quoteNumber != "" {
		dbCtx.Where("quote_number LIKE ?", "%"+*quoteNumber+"%")
	}
	if status != nil && *status != "" {
		dbCtx.Where("status = ?", *status)
	}
	if clientId != nil && *clientId > 0 {
		dbCtx.Where("client_id = ?", *clientId)
	}

	edges, pageInfo, err := FetchPageCompositeCursor[Quote](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}

	var quotesConnection QuotesConnection
	quotesConnection.PageInfo = pageInfo
	for _, edge := range edges {
		quoteEdge := QuotesEdge(edge)
		quotesConnection.Edges = append(quotesConnection.Edges, &quoteEdge)
	}

	return &quotesConnection, err
}
