package models

import (
	"context"
	"errors"
	"time"

	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/utils"
	"gorm.io/gorm"
)

// RecurringContract is a standing service agreement that generates jobs on a
// cadence. Unlike a recurring job it is not itself a job; generated jobs hang
// off the schedule rows.
type RecurringContract struct {
	ID          int                `gorm:"primary_key" json:"id"`
	TenantId    string             `gorm:"index;not null" json:"tenant_id" binding:"required"`
	ClientId    int                `gorm:"index;not null" json:"client_id" binding:"required"`
	Title       string             `gorm:"size:150;not null" json:"title" binding:"required"`
	Description string             `gorm:"type:text" json:"description"`
	Pattern     RecurrencePattern  `gorm:"type:enum('weekly', 'fortnightly', 'monthly', 'quarterly', 'yearly');not null" json:"pattern"`
	Interval    int                `gorm:"not null;default:1" json:"interval"`
	StartDate   time.Time          `gorm:"not null" json:"start_date"`
	EndDate     *time.Time         `gorm:"default:null" json:"end_date"`
	NextJobDate *time.Time         `gorm:"index;default:null" json:"next_job_date"`
	Status      RecurrenceStatus   `gorm:"type:enum('active', 'paused', 'completed');not null;default:'active'" json:"status"`

	Schedules []RecurringSchedule `json:"schedules"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RecurringSchedule records one generated occurrence. The unique pair is the
// idempotence guard: a rerun over the same due date inserts nothing twice.
type RecurringSchedule struct {
	ID                  int       `gorm:"primary_key" json:"id"`
	RecurringContractId int       `gorm:"index:uniq_contract_due,unique;not null" json:"recurring_contract_id"`
	DueDate             time.Time `gorm:"index:uniq_contract_due,unique;not null" json:"due_date"`
	JobId               int       `gorm:"index;not null" json:"job_id"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewRecurringContract struct {
	ClientId    int               `json:"client_id" binding:"required"`
	Title       string            `json:"title" binding:"required"`
	Description string            `json:"description"`
	Pattern     RecurrencePattern `json:"pattern" binding:"required"`
	Interval    int               `json:"interval"`
	StartDate   time.Time         `json:"start_date" binding:"required"`
	EndDate     *time.Time        `json:"end_date"`
}


func (obj RecurringContract) GetId() int {
	return obj.ID
}

func (c RecurringContract) GetCursor() string {
	return c.CreatedAt.String()
}

func (c RecurringContract) GetTenantId() string {
	return c.TenantId
}

func (input *NewRecurringContract) validate(ctx context.Context, tenantId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[RecurringContract](ctx, tenantId, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateResourceId[Client](ctx, tenantId, input.ClientId); err != nil {
		return errors.New("client not found")
	}
	if input.EndDate != nil && input.EndDate.Before(input.StartDate) {
		return errors.New("end date must not be before the start date")
	}
	return nil
}

func CreateRecurringContract(ctx context.Context, input *NewRecurringContract) (*RecurringContract, error) {
	db := config.GetDB()

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	if err := input.validate(ctx, tenantId, 0); err != nil {
		return nil, err
	}

	interval := input.Interval
	if interval < 1 {
		interval = 1
	}

	startDate := input.StartDate
	contract := RecurringContract{
		TenantId:    tenantId,
		ClientId:    input.ClientId,
		Title:       input.Title,
		Description: input.Description,
		Pattern:     input.Pattern,
		Interval:    interval,
		StartDate:   startDate,
		EndDate:     input.EndDate,
		NextJobDate: &startDate,
		Status:      RecurrenceStatusActive,
	}

	if err := db.WithContext(ctx).Create(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func UpdateRecurringContract(ctx context.Context, id int, input *NewRecurringContract) (*RecurringContract, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	if err := input.validate(ctx, tenantId, id); err != nil {
		return nil, err
	}

	contract, err := utils.FetchModel[RecurringContract](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}
	if contract.Status == RecurrenceStatusCompleted {
		return nil, errors.New("contract already completed")
	}

	interval := input.Interval
	if interval < 1 {
		interval = 1
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&contract).Updates(map[string]interface{}{
		"ClientId":    input.ClientId,
		"Title":       input.Title,
		"Description": input.Description,
		"Pattern":     input.Pattern,
		"Interval":    interval,
		"StartDate":   input.StartDate,
		"EndDate":     input.EndDate,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[RecurringContract](id); err != nil {
		return nil, err
	}
	return contract, nil
}

// PauseRecurringContract / resume. A completed contract stays completed.
func PauseRecurringContract(ctx context.Context, id int, paused bool) (*RecurringContract, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	contract, err := utils.FetchModel[RecurringContract](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}
	if contract.Status == RecurrenceStatusCompleted {
		return nil, errors.New("contract already completed")
	}

	status := RecurrenceStatusActive
	if paused {
		status = RecurrenceStatusPaused
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&contract).Updates(map[string]interface{}{
		"Status": status,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[RecurringContract](id); err != nil {
		return nil, err
	}
	return contract, nil
}

func DeleteRecurringContract(ctx context.Context, id int) (*RecurringContract, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	contract, err := utils.FetchModel[RecurringContract](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	// generated jobs stay; only the contract and its schedule go
	if err := tx.WithContext(ctx).Where("recurring_contract_id = ?", id).Delete(&RecurringSchedule{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(&contract).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[RecurringContract](id); err != nil {
		return nil, err
	}
	return contract, nil
}

// MaterializeContractJob creates the job for a contract's due date inside the
// caller's transaction and records the schedule row. The unique (contract,
// due date) pair makes a duplicate run a no-op.
func MaterializeContractJob(ctx context.Context, tx *gorm.DB, contract *RecurringContract, dueDate time.Time) (*Job, bool, error) {

	schedule := RecurringSchedule{
		RecurringContractId: contract.ID,
		DueDate:             dueDate,
	}
	if err := tx.WithContext(ctx).Create(&schedule).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, true, nil
		}
		return nil, false, err
	}

	job := Job{
		TenantId:    contract.TenantId,
		ClientId:    contract.ClientId,
		Title:       contract.Title,
		Description: contract.Description,
		Status:      JobStatusScheduled,
		ScheduledAt: dueDate,
	}
	if err := tx.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, false, err
	}

	if err := tx.WithContext(ctx).Model(&schedule).Update("job_id", job.ID).Error; err != nil {
		return nil, false, err
	}

	if err := incrementUsage(ctx, tx, contract.TenantId, "jobs_this_month"); err != nil {
		return nil, false, err
	}
	return &job, false, nil
}

func GetRecurringContract(ctx context.Context, id int) (*RecurringContract, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	return utils.FetchModel[RecurringContract](ctx, tenantId, id, "Schedules")
}

func GetRecurringContracts(ctx context.Context, status *RecurrenceStatus, clientId *int) ([]*RecurringContract, error) {
	db := config.GetDB()

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	var results []*RecurringContract
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if clientId != nil && *clientId > 0 {
		dbCtx = dbCtx.Where("client_id = ?", *clientId)
	}
	err := dbCtx.Order("next_job_date").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
