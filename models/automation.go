package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/utils"
	"gorm.io/gorm"
)

// Automation fires notification actions when an entity makes a matching
// status transition. An empty FromStatus matches any source status.
type Automation struct {
	ID           int                  `gorm:"primary_key" json:"id"`
	TenantId     string               `gorm:"index;not null" json:"tenant_id" binding:"required"`
	Name         string               `gorm:"size:100;not null" json:"name" binding:"required"`
	EntityType   AutomationEntityType `gorm:"type:enum('job', 'quote', 'invoice');not null" json:"entity_type"`
	FromStatus   string               `gorm:"size:30" json:"from_status"`
	ToStatus     string               `gorm:"size:30;not null" json:"to_status"`
	DelayMinutes int                  `gorm:"not null;default:0" json:"delay_minutes"`
	IsActive     *bool                `gorm:"not null;default:true" json:"is_active"`

	Actions []AutomationAction `json:"actions"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type AutomationAction struct {
	ID              int                 `gorm:"primary_key" json:"id"`
	AutomationId    int                 `gorm:"index;not null" json:"automation_id"`
	Channel         NotificationChannel `gorm:"type:enum('email', 'sms');not null" json:"channel"`
	TemplatePurpose string              `gorm:"size:50;not null" json:"template_purpose"`
}

// AutomationLog is the dedup record. The unique triple guarantees an
// automation fires at most once per entity, whatever races the callers run.
type AutomationLog struct {
	ID           int                  `gorm:"primary_key" json:"id"`
	TenantId     string               `gorm:"index;not null" json:"tenant_id"`
	AutomationId int                  `gorm:"index:uniq_automation_entity,unique;not null" json:"automation_id"`
	EntityType   AutomationEntityType `gorm:"index:uniq_automation_entity,unique;type:enum('job', 'quote', 'invoice');not null" json:"entity_type"`
	EntityId     int                  `gorm:"index:uniq_automation_entity,unique;not null" json:"entity_id"`
	FromStatus   string               `gorm:"size:30" json:"from_status"`
	ToStatus     string               `gorm:"size:30" json:"to_status"`
	Result       AutomationResult     `gorm:"type:enum('pending', 'success', 'error');not null;default:'pending'" json:"result"`
	ErrorMessage string               `gorm:"size:255" json:"error_message"`
	CreatedAt    time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAutomation struct {
	Name         string                `json:"name" binding:"required"`
	EntityType   AutomationEntityType  `json:"entity_type" binding:"required"`
	FromStatus   string                `json:"from_status"`
	ToStatus     string                `json:"to_status" binding:"required"`
	DelayMinutes int                   `json:"delay_minutes"`
	Actions      []NewAutomationAction `json:"actions" binding:"required"`
}

type NewAutomationAction struct {
	Channel         NotificationChannel `json:"channel" binding:"required"`
	TemplatePurpose string              `json:"template_purpose" binding:"required"`
}

func (obj Automation) GetId() int {
	return obj.ID
}

func (a Automation) GetCursor() string {
	return a.CreatedAt.String()
}

func (a Automation) GetTenantId() string {
	return a.TenantId
}

func channelFamily(channel NotificationChannel) TemplateFamily {
	if channel == NotificationChannelSms {
		return TemplateFamilySms
	}
	return TemplateFamilyEmail
}

func (input *NewAutomation) validate(ctx context.Context, tenantId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Automation](ctx, tenantId, id); err != nil {
			return err
		}
	}
	if len(input.Actions) == 0 {
		return errors.New("at least one action is required")
	}
	if input.DelayMinutes < 0 {
		return errors.New("delay minutes must not be negative")
	}
	for _, action := range input.Actions {
		family := channelFamily(action.Channel)
		if !IsValidPurposeForFamily(family, action.TemplatePurpose) {
			return fmt.Errorf("purpose %s is not valid for channel %s", action.TemplatePurpose, action.Channel)
		}
	}
	return nil
}

func CreateAutomation(ctx context.Context, input *NewAutomation) (*Automation, error) {
	db := config.GetDB()

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	if err := input.validate(ctx, tenantId, 0); err != nil {
		return nil, err
	}

	actions := make([]AutomationAction, 0, len(input.Actions))
	for _, action := range input.Actions {
		actions = append(actions, AutomationAction{
			Channel:         action.Channel,
			TemplatePurpose: action.TemplatePurpose,
		})
	}

	automation := Automation{
		TenantId:     tenantId,
		Name:         input.Name,
		EntityType:   input.EntityType,
		FromStatus:   input.FromStatus,
		ToStatus:     input.ToStatus,
		DelayMinutes: input.DelayMinutes,
		IsActive:     utils.NewTrue(),
		Actions:      actions,
	}

	if err := db.WithContext(ctx).Create(&automation).Error; err != nil {
		return nil, err
	}
	return &automation, nil
}

func UpdateAutomation(ctx context.Context, id int, input *NewAutomation) (*Automation, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	if err := input.validate(ctx, tenantId, id); err != nil {
		return nil, err
	}

	automation, err := utils.FetchModel[Automation](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(&automation).Updates(map[string]interface{}{
		"Name":         input.Name,
		"EntityType":   input.EntityType,
		"FromStatus":   input.FromStatus,
		"ToStatus":     input.ToStatus,
		"DelayMinutes": input.DelayMinutes,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// replace the action set wholesale
	if err := tx.WithContext(ctx).Where("automation_id = ?", id).Delete(&AutomationAction{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	for _, action := range input.Actions {
		row := AutomationAction{
			AutomationId:    id,
			Channel:         action.Channel,
			TemplatePurpose: action.TemplatePurpose,
		}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Automation](id); err != nil {
		return nil, err
	}
	return automation, nil
}

func ToggleActiveAutomation(ctx context.Context, id int, isActive bool) (*Automation, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	automation, err := utils.FetchModel[Automation](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&automation).Updates(map[string]interface{}{
		"IsActive": isActive,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Automation](id); err != nil {
		return nil, err
	}
	return automation, nil
}

func DeleteAutomation(ctx context.Context, id int) (*Automation, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	automation, err := utils.FetchModel[Automation](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Where("automation_id = ?", id).Delete(&AutomationAction{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(&automation).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Automation](id); err != nil {
		return nil, err
	}
	return automation, nil
}

func GetAutomation(ctx context.Context, id int) (*Automation, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	return utils.FetchModel[Automation](ctx, tenantId, id, "Actions")
}

func GetAutomations(ctx context.Context, entityType *AutomationEntityType) ([]*Automation, error) {
	db := config.GetDB()

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	var results []*Automation
	dbCtx := db.WithContext(ctx).Preload("Actions").Where("tenant_id = ?", tenantId)
	if entityType != nil && *entityType != "" {
		dbCtx = dbCtx.Where("entity_type = ?", *entityType)
	}
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func GetAutomationLogs(ctx context.Context, automationId *int, entityType *AutomationEntityType, entityId *int) ([]*AutomationLog, error) {
	db := config.GetDB()

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	var results []*AutomationLog
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	if automationId != nil && *automationId > 0 {
		dbCtx = dbCtx.Where("automation_id = ?", *automationId)
	}
	if entityType != nil && *entityType != "" {
		dbCtx = dbCtx.Where("entity_type = ?", *entityType)
	}
	if entityId != nil && *entityId > 0 {
		dbCtx = dbCtx.Where("entity_id = ?", *entityId)
	}
	err := dbCtx.Order("created_at DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// BeginAutomationRun claims the (automation, entity) slot by inserting the
// dedup row. A duplicate key means another caller already claimed it; the
// second caller skips without treating it as a failure.
func BeginAutomationRun(ctx context.Context, tx *gorm.DB, automation *Automation, entityId int, from string, to string) (*AutomationLog, bool, error) {

	log := AutomationLog{
		TenantId:     automation.TenantId,
		AutomationId: automation.ID,
		EntityType:   automation.EntityType,
		EntityId:     entityId,
		FromStatus:   from,
		ToStatus:     to,
		Result:       AutomationResultPending,
	}
	if err := tx.WithContext(ctx).Create(&log).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, true, nil
		}
		return nil, false, err
	}
	return &log, false, nil
}

func MarkAutomationRunResult(ctx context.Context, tx *gorm.DB, logId int, result AutomationResult, errMsg string) error {
	if len(errMsg) > 255 {
		errMsg = errMsg[:255]
	}
	return tx.WithContext(ctx).Model(&AutomationLog{}).Where("id = ?", logId).
		Updates(map[string]interface{}{
			"Result":       result,
			"ErrorMessage": errMsg,
		}).Error
}

func formatLocalDate(t time.Time, timezone string) string {
	localDate, err := utils.ConvertToDate(t, timezone)
	if err != nil {
		return t.Format("2006-01-02")
	}
	return localDate.Format("2006-01-02")
}

// automationRenderData collects the placeholder values for a transition's
// templates, and the client the notification goes to.
func automationRenderData(ctx context.Context, tenantId string, entityType AutomationEntityType, entityId int) (map[string]string, *Client, error) {

	business, err := GetBusinessById(ctx, tenantId)
	if err != nil {
		return nil, nil, err
	}

	data := map[string]string{
		"business_name": business.Name,
	}

	var clientId int
	switch entityType {
	case AutomationEntityTypeJob:
		job, err := utils.FetchModel[Job](ctx, tenantId, entityId)
		if err != nil {
			return nil, nil, err
		}
		clientId = job.ClientId
		data["job_title"] = job.Title
		data["scheduled_date"] = formatLocalDate(job.ScheduledAt, business.Timezone)
	case AutomationEntityTypeQuote:
		quote, err := utils.FetchModel[Quote](ctx, tenantId, entityId)
		if err != nil {
			return nil, nil, err
		}
		clientId = quote.ClientId
		data["quote_number"] = quote.QuoteNumber
		data["total"] = quote.Total.StringFixed(2)
	case AutomationEntityTypeInvoice:
		invoice, err := utils.FetchModel[Invoice](ctx, tenantId, entityId)
		if err != nil {
			return nil, nil, err
		}
		clientId = invoice.ClientId
		data["invoice_number"] = invoice.InvoiceNumber
		data["total"] = invoice.Total.StringFixed(2)
		if invoice.DueDate != nil {
			data["due_date"] = formatLocalDate(*invoice.DueDate, business.Timezone)
		}
	default:
		return nil, nil, fmt.Errorf("unknown entity type %s", entityType)
	}

	client, err := utils.FetchModel[Client](ctx, tenantId, clientId)
	if err != nil {
		return nil, nil, err
	}
	data["client_name"] = client.Name

	return data, client, nil
}

// runAutomation executes one matched automation: claim the dedup slot,
// render each action's template and queue it on the outbox, then record the
// outcome on the log row. Queueing and the result update share a transaction
// with the claim so a crash leaves either nothing or a pending row, never a
// half-queued run.
func runAutomation(ctx context.Context, automation *Automation, entityId int, from string, to string) error {
	db := config.GetDB()

	tx := db.Begin()
	log, skip, err := BeginAutomationRun(ctx, tx, automation, entityId, from, to)
	if err != nil {
		tx.Rollback()
		return err
	}
	if skip {
		tx.Rollback()
		return nil
	}

	data, client, err := automationRenderData(ctx, automation.TenantId, automation.EntityType, entityId)
	if err != nil {
		if markErr := MarkAutomationRunResult(ctx, tx, log.ID, AutomationResultError, err.Error()); markErr != nil {
			tx.Rollback()
			return markErr
		}
		if commitErr := tx.Commit().Error; commitErr != nil {
			return commitErr
		}
		return err
	}

	availableAt := time.Now().Add(time.Duration(automation.DelayMinutes) * time.Minute)

	var runErr error
	for _, action := range automation.Actions {
		recipient := client.Email
		if action.Channel == NotificationChannelSms {
			recipient = client.Mobile
			if recipient == "" {
				recipient = client.Phone
			}
		}
		if recipient == "" {
			runErr = fmt.Errorf("client %d has no %s recipient", client.ID, action.Channel)
			break
		}

		subject, body, err := ResolveTemplateContent(ctx, tx, automation.TenantId, channelFamily(action.Channel), action.TemplatePurpose)
		if err != nil {
			runErr = err
			break
		}

		outbox := NotificationOutbox{
			TenantId:    automation.TenantId,
			Channel:     action.Channel,
			Recipient:   recipient,
			Subject:     RenderTemplate(subject, data),
			Body:        RenderTemplate(body, data),
			AvailableAt: availableAt,
		}
		if err := QueueNotification(ctx, tx, &outbox); err != nil {
			runErr = err
			break
		}
	}

	if runErr != nil {
		if err := MarkAutomationRunResult(ctx, tx, log.ID, AutomationResultError, runErr.Error()); err != nil {
			tx.Rollback()
			return err
		}
		// the claim and the error result still commit; the run is spent
		if err := tx.Commit().Error; err != nil {
			return err
		}
		return runErr
	}

	if err := MarkAutomationRunResult(ctx, tx, log.ID, AutomationResultSuccess, ""); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// EvaluateStatusChange runs every active automation matching the transition.
// Called after the status write has committed; failures are logged and never
// surfaced to the caller that moved the status.
func EvaluateStatusChange(ctx context.Context, entityType AutomationEntityType, entityId int, from string, to string) {
	db := config.GetDB()
	logger := config.GetLogger()

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return
	}

	var automations []*Automation
	err := db.WithContext(ctx).Preload("Actions").
		Where("tenant_id = ? AND entity_type = ? AND to_status = ? AND is_active = ?", tenantId, entityType, to, true).
		Where("from_status = ? OR from_status = ''", from).
		Find(&automations).Error
	if err != nil {
		config.LogError(logger, "automation", "EvaluateStatusChange", "match", map[string]interface{}{
			"entity_type": entityType, "entity_id": entityId,
		}, err)
		return
	}

	for _, automation := range automations {
		if err := runAutomation(ctx, automation, entityId, from, to); err != nil {
			config.LogError(logger, "automation", "EvaluateStatusChange", "run", map[string]interface{}{
				"automation_id": automation.ID, "entity_id": entityId,
			}, err)
		}
	}
}
