package models

import (
	"context"
	"errors"
	"time"

	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/utils"
)

type Job struct {
	ID          int       `gorm:"primary_key" json:"id"`
	TenantId    string    `gorm:"index;not null" json:"tenant_id" binding:"required"`
	ClientId    int       `gorm:"index;not null" json:"client_id" binding:"required"`
	Title       string    `gorm:"size:150;not null" json:"title" binding:"required"`
	Description string    `gorm:"type:text" json:"description"`
	Status      JobStatus `gorm:"type:enum('pending', 'scheduled', 'in_progress', 'done', 'invoiced');not null;default:'pending'" json:"status"`
	ScheduledAt time.Time `gorm:"index;not null" json:"scheduled_at" binding:"required"`

	// stage timestamps, stamped on entry into the matching status
	StartedAt   *time.Time `gorm:"default:null" json:"started_at"`
	CompletedAt *time.Time `gorm:"default:null" json:"completed_at"`
	InvoicedAt  *time.Time `gorm:"default:null" json:"invoiced_at"`

	IsGstInclusive *bool `gorm:"not null;default:false" json:"is_gst_inclusive"`

	// recurrence fields; pattern nil means a one-off job
	RecurrencePattern  *RecurrencePattern `gorm:"type:enum('weekly', 'fortnightly', 'monthly', 'quarterly', 'yearly');default:null" json:"recurrence_pattern"`
	RecurrenceInterval int                `gorm:"not null;default:1" json:"recurrence_interval"`
	RecurrenceEndDate  *time.Time         `gorm:"default:null" json:"recurrence_end_date"`
	NextRecurrenceDate *time.Time         `gorm:"index;default:null" json:"next_recurrence_date"`
	RecurrenceStatus   *RecurrenceStatus  `gorm:"type:enum('active', 'paused', 'completed');default:null" json:"recurrence_status"`
	ParentJobId        *int               `gorm:"index;default:null" json:"parent_job_id"`

	ArchivedAt *time.Time `gorm:"default:null" json:"archived_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewJob struct {
	ClientId           int                `json:"client_id" binding:"required"`
	Title              string             `json:"title" binding:"required"`
	Description        string             `json:"description"`
	ScheduledAt        time.Time          `json:"scheduled_at" binding:"required"`
	IsGstInclusive     *bool              `json:"is_gst_inclusive"`
	RecurrencePattern  *RecurrencePattern `json:"recurrence_pattern"`
	RecurrenceInterval int                `json:"recurrence_interval"`
	RecurrenceEndDate  *time.Time         `json:"recurrence_end_date"`
	NextRecurrenceDate *time.Time         `json:"next_recurrence_date"`
}

type JobsEdge Edge[Job]
type JobsConnection struct {
	Edges    []*JobsEdge `json:"edges"`
	PageInfo *PageInfo   `json:"pageInfo"`
}

func (obj Job) GetId() int {
	return obj.ID
}

func (j Job) GetCursor() string {
	return j.CreatedAt.String()
}

func (j Job) GetTenantId() string {
	return j.TenantId
}

func (input *NewJob) validate(ctx context.Context, tenantId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Job](ctx, tenantId, id); err != nil {
			return err
		}
	}
	// validate client
	if err := utils.ValidateResourceId[Client](ctx, tenantId, input.ClientId); err != nil {
		return errors.New("client not found")
	}
	// validate recurrence
	if input.RecurrencePattern != nil {
		if input.RecurrenceInterval < 0 {
			return errors.New("recurrence interval must be positive")
		}
		if input.NextRecurrenceDate == nil {
			return errors.New("next recurrence date is required for a recurring job")
		}
		// a recurring job never has its next occurrence before its own slot
		if input.NextRecurrenceDate.Before(input.ScheduledAt) {
			return errors.New("next recurrence date must not be before the scheduled date")
		}
		if input.RecurrenceEndDate != nil && input.RecurrenceEndDate.Before(input.ScheduledAt) {
			return errors.New("recurrence end date must not be before the scheduled date")
		}
	}
	return nil
}

func CreateJob(ctx context.Context, input *NewJob) (*Job, error) {
	db := config.GetDB()

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	if err := input.validate(ctx, tenantId, 0); err != nil {
		return nil, err
	}

	tx := db.Begin()
	if err := ValidateTierQuota(ctx, tx, tenantId, "jobs"); err != nil {
		tx.Rollback()
		return nil, err
	}

	interval := input.RecurrenceInterval
	if interval < 1 {
		interval = 1
	}

	job := Job{
		TenantId:           tenantId,
		ClientId:           input.ClientId,
		Title:              input.Title,
		Description:        input.Description,
		Status:             JobStatusScheduled,
		ScheduledAt:        input.ScheduledAt,
		IsGstInclusive:     input.IsGstInclusive,
		RecurrencePattern:  input.RecurrencePattern,
		RecurrenceInterval: interval,
		RecurrenceEndDate:  input.RecurrenceEndDate,
		NextRecurrenceDate: input.NextRecurrenceDate,
	}
	if input.RecurrencePattern != nil {
		active := RecurrenceStatusActive
		job.RecurrenceStatus = &active
	}

	if err := tx.WithContext(ctx).Create(&job).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := incrementUsage(ctx, tx, tenantId, "jobs_this_month"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createHistory(tx.WithContext(ctx), "CREATE", job.ID, "jobs", nil, job, "job created"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func UpdateJob(ctx context.Context, id int, input *NewJob) (*Job, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	if err := input.validate(ctx, tenantId, id); err != nil {
		return nil, err
	}

	oldJob, err := utils.FetchModel[Job](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	job, err := utils.FetchModel[Job](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	interval := input.RecurrenceInterval
	if interval < 1 {
		interval = 1
	}

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(&job).Updates(map[string]interface{}{
		"ClientId":           input.ClientId,
		"Title":              input.Title,
		"Description":        input.Description,
		"ScheduledAt":        input.ScheduledAt,
		"IsGstInclusive":     input.IsGstInclusive,
		"RecurrencePattern":  input.RecurrencePattern,
		"RecurrenceInterval": interval,
		"RecurrenceEndDate":  input.RecurrenceEndDate,
		"NextRecurrenceDate": input.NextRecurrenceDate,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createHistory(tx.WithContext(ctx), "UPDATE", id, "jobs", oldJob, job, "job updated"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := utils.RemoveRedisItem[Job](id); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateJobStatus moves a job forward through its status progression,
// stamping the stage timestamp, then evaluates automations for the
// transition after the write has committed.
func UpdateJobStatus(ctx context.Context, id int, newStatus JobStatus) (*Job, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	job, err := utils.FetchModel[Job](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	oldStatus := job.Status
	if jobStatusOrder[newStatus] <= jobStatusOrder[oldStatus] {
		return nil, errors.New("job status can only move forward")
	}

	now := time.Now()
	updates := map[string]interface{}{
		"Status": newStatus,
	}
	switch newStatus {
	case JobStatusInProgress:
		updates["StartedAt"] = &now
	case JobStatusDone:
		updates["CompletedAt"] = &now
	case JobStatusInvoiced:
		updates["InvoicedAt"] = &now
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Model(&job).Updates(updates).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createHistory(tx.WithContext(ctx), "UPDATE", id, "jobs", oldStatus, newStatus, "job status changed"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := utils.RemoveRedisItem[Job](id); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	// evaluated after commit so a failed action never rolls back the status
	EvaluateStatusChange(ctx, AutomationEntityTypeJob, job.ID, string(oldStatus), string(newStatus))

	return job, nil
}

// PauseJobRecurrence / ResumeJobRecurrence flip an active series without
// touching its dates. A completed series stays completed.
func PauseJobRecurrence(ctx context.Context, id int, paused bool) (*Job, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	job, err := utils.FetchModel[Job](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}
	if job.RecurrenceStatus == nil {
		return nil, errors.New("job is not recurring")
	}
	if *job.RecurrenceStatus == RecurrenceStatusCompleted {
		return nil, errors.New("recurrence already completed")
	}

	status := RecurrenceStatusActive
	if paused {
		status = RecurrenceStatusPaused
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&job).Updates(map[string]interface{}{
		"RecurrenceStatus": status,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Job](id); err != nil {
		return nil, err
	}
	return job, nil
}

func ArchiveJob(ctx context.Context, id int) (*Job, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	job, err := utils.FetchModel[Job](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	now := time.Now()
	err = db.WithContext(ctx).Model(&job).Updates(map[string]interface{}{
		"ArchivedAt": &now,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Job](id); err != nil {
		return nil, err
	}
	return job, nil
}

func GetJob(ctx context.Context, id int) (*Job, error) {
	return GetResource[Job](ctx, id)
}

func PaginateJob(ctx context.Context, limit *int, after *string,
	title *string, status *JobStatus, clientId *int) (*JobsConnection, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	if title != nil && *title != "" {
		dbCtx.Where("title LIKE ?", "%"+*title+"%")
	}
	if status != nil && *status != "" {
		dbCtx.Where("status = ?", *status)
	}
	if clientId != nil && *clientId > 0 {
		dbCtx.Where("client_id = ?", *clientId)
	}

	edges, pageInfo, err := FetchPageCompositeCursor[Job](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}

	var jobsConnection JobsConnection
	jobsConnection.PageInfo = pageInfo
	for _, edge := range edges {
		jobEdge := JobsEdge(edge)
		jobsConnection.Edges = append(jobsConnection.Edges, &jobEdge)
	}

	return &jobsConnection, err
}
