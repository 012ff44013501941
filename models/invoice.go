package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/utils"
	"gorm.io/gorm"
)

type Invoice struct {
	ID            int           `gorm:"primary_key" json:"id"`
	TenantId      string        `gorm:"index;not null" json:"tenant_id" binding:"required"`
	ClientId      int           `gorm:"index;not null" json:"client_id" binding:"required"`
	JobId         *int          `gorm:"index;default:null" json:"job_id"`
	InvoiceNumber string        `gorm:"size:30;not null" json:"invoice_number"`
	SequenceNo    int64         `gorm:"not null;default:0" json:"sequence_no"`
	FamilyKey     string        `gorm:"size:50;index" json:"family_key"`
	Status        InvoiceStatus `gorm:"type:enum('draft', 'sent', 'paid', 'overdue', 'void');not null;default:'draft'" json:"status"`
	InvoiceDate   time.Time     `gorm:"index;not null" json:"invoice_date"`
	DueDate       *time.Time    `gorm:"default:null" json:"due_date"`
	Notes         string        `gorm:"type:text" json:"notes"`

	IsGstInclusive *bool           `gorm:"not null;default:false" json:"is_gst_inclusive"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"subtotal"`
	GstAmount      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"gst_amount"`
	Total          decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total"`

	Details []InvoiceDetail `json:"invoice_details" validate:"required,dive,required"`

	// recurrence fields; pattern nil means a one-off invoice
	RecurrencePattern  *RecurrencePattern `gorm:"type:enum('weekly', 'fortnightly', 'monthly', 'quarterly', 'yearly');default:null" json:"recurrence_pattern"`
	RecurrenceInterval int                `gorm:"not null;default:1" json:"recurrence_interval"`
	RecurrenceEndDate  *time.Time         `gorm:"default:null" json:"recurrence_end_date"`
	NextRecurrenceDate *time.Time         `gorm:"index;default:null" json:"next_recurrence_date"`
	RecurrenceStatus   *RecurrenceStatus  `gorm:"type:enum('active', 'paused', 'completed');default:null" json:"recurrence_status"`
	ParentInvoiceId    *int               `gorm:"index;default:null" json:"parent_invoice_id"`

	ArchivedAt *time.Time `gorm:"default:null" json:"archived_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type InvoiceDetail struct {
	ID          int             `gorm:"primary_key" json:"id"`
	InvoiceId   int             `gorm:"index;not null" json:"invoice_id"`
	Name        string          `gorm:"size:150;not null" json:"name" binding:"required"`
	Description string          `gorm:"size:255" json:"description"`
	Qty         decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"qty" binding:"required"`
	UnitRate    decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"unit_rate" binding:"required"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"amount"`
}

type NewInvoice struct {
	ClientId           int                `json:"client_id" binding:"required"`
	JobId              *int               `json:"job_id"`
	FamilyKey          string             `json:"family_key"`
	InvoiceDate        time.Time          `json:"invoice_date"`
	DueDate            *time.Time         `json:"due_date"`
	Notes              string             `json:"notes"`
	IsGstInclusive     *bool              `json:"is_gst_inclusive"`
	RecurrencePattern  *RecurrencePattern `json:"recurrence_pattern"`
	RecurrenceInterval int                `json:"recurrence_interval"`
	RecurrenceEndDate  *time.Time         `json:"recurrence_end_date"`
	NextRecurrenceDate *time.Time         `json:"next_recurrence_date"`
	Details            []NewInvoiceDetail `json:"details" binding:"required"`
}

type NewInvoiceDetail struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Qty         decimal.Decimal `json:"qty" binding:"required"`
	UnitRate    decimal.Decimal `json:"unit_rate" binding:"required"`
}

type InvoicesEdge Edge[Invoice]
type InvoicesConnection struct {
	Edges    []*InvoicesEdge `json:"edges"`
	PageInfo *PageInfo       `json:"pageInfo"`
}

func (obj Invoice) GetId() int {
	return obj.ID
}

func (i Invoice) GetCursor() string {
	return i.CreatedAt.String()
}

func (i Invoice) GetTenantId() string {
	return i.TenantId
}

var invoiceStatusTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:   {InvoiceStatusSent, InvoiceStatusVoid},
	InvoiceStatusSent:    {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusVoid},
	InvoiceStatusOverdue: {InvoiceStatusPaid, InvoiceStatusVoid},
}

func isValidInvoiceTransition(from, to InvoiceStatus) bool {
	for _, allowed := range invoiceStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (input *NewInvoice) validate(ctx context.Context, tenantId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Invoice](ctx, tenantId, id); err != nil {
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
	if input.RecurrencePattern != nil {
		if input.NextRecurrenceDate == nil {
			return errors.New("next recurrence date is required for a recurring invoice")
		}
		if input.RecurrenceEndDate != nil && input.RecurrenceEndDate.Before(*input.NextRecurrenceDate) {
			return errors.New("recurrence end date must not be before the next recurrence date")
		}
	}
	return nil
}

func buildInvoiceDetails(inputs []NewInvoiceDetail, isGstInclusive bool) ([]InvoiceDetail, DocumentTotals) {
	details := make([]InvoiceDetail, 0, len(inputs))
	lines := make([]DocumentLine, 0, len(inputs))
	for _, item := range inputs {
		details = append(details, InvoiceDetail{
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

func CreateInvoice(ctx context.Context, input *NewInvoice) (*Invoice, error) {
	db := config.GetDB()

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	if err := input.validate(ctx, tenantId, 0); err != nil {
		return nil, err
	}

	isGstInclusive := utils.DereferencePtr(input.IsGstInclusive)
	details, totals := buildInvoiceDetails(input.Details, isGstInclusive)

	seqNo, err := utils.GetSequence[Invoice](ctx, tenantId)
	if err != nil {
		return nil, err
	}

	invoiceDate := input.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = time.Now()
	}

	interval := input.RecurrenceInterval
	if interval < 1 {
		interval = 1
	}

	invoice := Invoice{
		TenantId:           tenantId,
		ClientId:           input.ClientId,
		JobId:              input.JobId,
		InvoiceNumber:      fmt.Sprintf("INV-%06d", seqNo),
		SequenceNo:         seqNo,
		FamilyKey:          input.FamilyKey,
		Status:             InvoiceStatusDraft,
		InvoiceDate:        invoiceDate,
		DueDate:            input.DueDate,
		Notes:              input.Notes,
		IsGstInclusive:     input.IsGstInclusive,
		Subtotal:           totals.Subtotal,
		GstAmount:          totals.GstAmount,
		Total:              totals.Total,
		Details:            details,
		RecurrencePattern:  input.RecurrencePattern,
		RecurrenceInterval: interval,
		RecurrenceEndDate:  input.RecurrenceEndDate,
		NextRecurrenceDate: input.NextRecurrenceDate,
	}
	if input.RecurrencePattern != nil {
		active := RecurrenceStatusActive
		invoice.RecurrenceStatus = &active
	}

	tx := db.Begin()
	if err := ValidateTierQuota(ctx, tx, tenantId, "invoices"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := incrementUsage(ctx, tx, tenantId, "invoices_this_month"); err != nil {
		tx.Rollback()
		return nil, err
	}

	// invoicing a done job stamps the job in the same transaction
	var invoicedJob *Job
	if input.JobId != nil && *input.JobId > 0 {
		job, err := utils.FetchModel[Job](ctx, tenantId, *input.JobId)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if job.Status == JobStatusDone {
			now := time.Now()
			err = tx.WithContext(ctx).Model(&job).Updates(map[string]interface{}{
				"Status":     JobStatusInvoiced,
				"InvoicedAt": &now,
			}).Error
			if err != nil {
				tx.Rollback()
				return nil, err
			}
			invoicedJob = job
		}
	}

	if err := createHistory(tx.WithContext(ctx), "CREATE", invoice.ID, "invoices", nil, invoice, "invoice created"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if invoicedJob != nil {
		if err := utils.RemoveRedisItem[Job](invoicedJob.ID); err != nil {
			return nil, err
		}
		EvaluateStatusChange(ctx, AutomationEntityTypeJob, invoicedJob.ID, string(JobStatusDone), string(JobStatusInvoiced))
	}

	return &invoice, nil
}

func UpdateInvoice(ctx context.Context, id int, input *NewInvoice) (*Invoice, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	if err := input.validate(ctx, tenantId, id); err != nil {
		return nil, err
	}

	invoice, err := utils.FetchModel[Invoice](ctx, tenantId, id, "Details")
	if err != nil {
		return nil, err
	}
	if invoice.Status != InvoiceStatusDraft {
		return nil, errors.New("only draft invoices can be edited")
	}

	isGstInclusive := utils.DereferencePtr(input.IsGstInclusive)
	details, totals := buildInvoiceDetails(input.Details, isGstInclusive)

	interval := input.RecurrenceInterval
	if interval < 1 {
		interval = 1
	}

	db := config.GetDB()
	tx := db.Begin()

	// replace detail lines wholesale; draft documents have no downstream rows
	if err := tx.WithContext(ctx).Where("invoice_id = ?", id).Delete(&InvoiceDetail{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	for i := range details {
		details[i].InvoiceId = id
	}
	if err := tx.WithContext(ctx).Create(&details).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	err = tx.WithContext(ctx).Model(&invoice).Updates(map[string]interface{}{
		"ClientId":           input.ClientId,
		"JobId":              input.JobId,
		"FamilyKey":          input.FamilyKey,
		"DueDate":            input.DueDate,
		"Notes":              input.Notes,
		"IsGstInclusive":     input.IsGstInclusive,
		"Subtotal":           totals.Subtotal,
		"GstAmount":          totals.GstAmount,
		"Total":              totals.Total,
		"RecurrencePattern":  input.RecurrencePattern,
		"RecurrenceInterval": interval,
		"RecurrenceEndDate":  input.RecurrenceEndDate,
		"NextRecurrenceDate": input.NextRecurrenceDate,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	invoice.Details = details

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return invoice, nil
}

// PauseInvoiceRecurrence flips an active series without touching its dates.
func PauseInvoiceRecurrence(ctx context.Context, id int, paused bool) (*Invoice, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	invoice, err := utils.FetchModel[Invoice](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}
	if invoice.RecurrenceStatus == nil {
		return nil, errors.New("invoice is not recurring")
	}
	if *invoice.RecurrenceStatus == RecurrenceStatusCompleted {
		return nil, errors.New("recurrence already completed")
	}

	status := RecurrenceStatusActive
	if paused {
		status = RecurrenceStatusPaused
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&invoice).Updates(map[string]interface{}{
		"RecurrenceStatus": status,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Invoice](id); err != nil {
		return nil, err
	}
	return invoice, nil
}

// UpdateInvoiceStatus applies an allowed transition, then evaluates
// automations for it after commit.
func UpdateInvoiceStatus(ctx context.Context, id int, newStatus InvoiceStatus) (*Invoice, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	invoice, err := utils.FetchModel[Invoice](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	oldStatus := invoice.Status
	if !isValidInvoiceTransition(oldStatus, newStatus) {
		return nil, fmt.Errorf("cannot move invoice from %s to %s", oldStatus, newStatus)
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Model(&invoice).Updates(map[string]interface{}{
		"Status": newStatus,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createHistory(tx.WithContext(ctx), "UPDATE", id, "invoices", oldStatus, newStatus, "invoice status changed"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	EvaluateStatusChange(ctx, AutomationEntityTypeInvoice, invoice.ID, string(oldStatus), string(newStatus))

	return invoice, nil
}

func DeleteInvoice(ctx context.Context, id int) (*Invoice, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	result, err := utils.FetchModel[Invoice](ctx, tenantId, id, "Details")
	if err != nil {
		return nil, err
	}
	if result.Status == InvoiceStatusPaid {
		return nil, errors.New("paid invoices cannot be deleted")
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

	if err := createHistory(tx.WithContext(ctx), "DELETE", id, "invoices", result, nil, "invoice deleted"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return result, nil
}

func GetInvoice(ctx context.Context, id int) (*Invoice, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	return utils.FetchModel[Invoice](ctx, tenantId, id, "Details")
}

func PaginateInvoice(ctx context.Context, limit *int, after *string,
	invoiceNumber *string, status *InvoiceStatus, clientId *int) (*InvoicesConnection, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	if invoiceNumber != nil && *invoiceNumber != "" {
		dbCtx.Where("invoice_number LIKE ?", "%"+*invoiceNumber+"%")
	}
	if status != nil && *status != "" {
		dbCtx.Where("status = ?", *status)
	}
	if clientId != nil && *clientId > 0 {
		dbCtx.Where("client_id = ?", *clientId)
	}

	edges, pageInfo, err := FetchPageCompositeCursor[Invoice](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}

	var invoicesConnection InvoicesConnection
	invoicesConnection.PageInfo = pageInfo
	for _, edge := range edges {
		invoiceEdge := InvoicesEdge(edge)
		invoicesConnection.Edges = append(invoicesConnection.Edges, &invoiceEdge)
	}

	return &invoicesConnection, err
}

/* recurrence materialization */

// ChildJobExists reports whether the parent already has a child for the due
// date. This is the idempotence check for the recurrence engine.
func ChildJobExists(ctx context.Context, tx *gorm.DB, parentId int, dueDate time.Time) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&Job{}).
		Where("parent_job_id = ? AND scheduled_at = ?", parentId, dueDate).
		Count(&count).Error
	return count > 0, err
}

func ChildInvoiceExists(ctx context.Context, tx *gorm.DB, parentId int, dueDate time.Time) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&Invoice{}).
		Where("parent_invoice_id = ? AND invoice_date = ?", parentId, dueDate).
		Count(&count).Error
	return count > 0, err
}

// MaterializeChildJob creates the next occurrence of a recurring job inside
// the caller's transaction, copying the parent's template fields. The child
// itself is a one-off; recurrence stays on the parent.
func MaterializeChildJob(ctx context.Context, tx *gorm.DB, parent *Job, dueDate time.Time) (*Job, error) {

	child := Job{
		TenantId:       parent.TenantId,
		ClientId:       parent.ClientId,
		Title:          parent.Title,
		Description:    parent.Description,
		Status:         JobStatusScheduled,
		ScheduledAt:    dueDate,
		IsGstInclusive: parent.IsGstInclusive,
		ParentJobId:    &parent.ID,
	}
	if err := tx.WithContext(ctx).Create(&child).Error; err != nil {
		return nil, err
	}
	if err := incrementUsage(ctx, tx, parent.TenantId, "jobs_this_month"); err != nil {
		return nil, err
	}
	return &child, nil
}

// MaterializeChildInvoice creates the next occurrence of a recurring invoice
// inside the caller's transaction, copying line items and totals from the
// parent. A fresh number is drawn from the tenant's sequence.
func MaterializeChildInvoice(ctx context.Context, tx *gorm.DB, parent *Invoice, dueDate time.Time) (*Invoice, error) {

	var details []InvoiceDetail
	if err := tx.WithContext(ctx).Where("invoice_id = ?", parent.ID).Find(&details).Error; err != nil {
		return nil, err
	}

	seqNo, err := utils.GetSequence[Invoice](ctx, parent.TenantId)
	if err != nil {
		return nil, err
	}

	childDetails := make([]InvoiceDetail, 0, len(details))
	for _, d := range details {
		childDetails = append(childDetails, InvoiceDetail{
			Name:        d.Name,
			Description: d.Description,
			Qty:         d.Qty,
			UnitRate:    d.UnitRate,
			Amount:      d.Amount,
		})
	}

	child := Invoice{
		TenantId:        parent.TenantId,
		ClientId:        parent.ClientId,
		InvoiceNumber:   fmt.Sprintf("INV-%06d", seqNo),
		SequenceNo:      seqNo,
		FamilyKey:       parent.FamilyKey,
		Status:          InvoiceStatusDraft,
		InvoiceDate:     dueDate,
		Notes:           parent.Notes,
		IsGstInclusive:  parent.IsGstInclusive,
		Subtotal:        parent.Subtotal,
		GstAmount:       parent.GstAmount,
		Total:           parent.Total,
		Details:         childDetails,
		ParentInvoiceId: &parent.ID,
	}
	if err := tx.WithContext(ctx).Create(&child).Error; err != nil {
		return nil, err
	}
	if err := incrementUsage(ctx, tx, parent.TenantId, "invoices_this_month"); err != nil {
		return nil, err
	}
	return &child, nil
}
