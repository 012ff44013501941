package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxNotificationAttempts = 5

// NotificationOutbox rows are written in the same transaction as the change
// that produced them and published by the dispatcher afterwards. The outbox
// is what keeps "status committed but nothing sent" and "sent but status
// rolled back" both impossible.
type NotificationOutbox struct {
	ID            int                 `gorm:"primary_key" json:"id"`
	TenantId      string              `gorm:"index;not null" json:"tenant_id"`
	Channel       NotificationChannel `gorm:"type:enum('email', 'sms');not null" json:"channel"`
	Recipient     string              `gorm:"size:255;not null" json:"recipient"`
	Subject       string              `gorm:"size:255" json:"subject"`
	Body          string              `gorm:"type:text" json:"body"`
	CorrelationId string              `gorm:"size:50;index" json:"correlation_id"`

	PublishStatus OutboxPublishStatus `gorm:"type:enum('PENDING', 'PROCESSING', 'SENT', 'FAILED', 'DEAD');not null;default:'PENDING'" json:"publish_status"`
	Attempts      int                 `gorm:"not null;default:0" json:"attempts"`
	AvailableAt   time.Time           `gorm:"index;not null" json:"available_at"`
	LastError     string              `gorm:"size:255" json:"last_error"`
	LockedAt      *time.Time          `gorm:"default:null" json:"locked_at"`
	LockedBy      string              `gorm:"size:100" json:"locked_by"`
	SentAt        *time.Time          `gorm:"default:null" json:"sent_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj NotificationOutbox) GetId() int {
	return obj.ID
}

func (n NotificationOutbox) GetCursor() string {
	return n.CreatedAt.String()
}

type NotificationOutboxesEdge Edge[NotificationOutbox]
type NotificationOutboxesConnection struct {
	Edges    []*NotificationOutboxesEdge `json:"edges"`
	PageInfo *PageInfo                   `json:"pageInfo"`
}

// QueueNotification inserts an outbox row inside the caller's transaction.
func QueueNotification(ctx context.Context, tx *gorm.DB, outbox *NotificationOutbox) error {
	if outbox.TenantId == "" {
		return errors.New("tenant id is required")
	}
	if outbox.Recipient == "" {
		return errors.New("recipient is required")
	}
	if outbox.CorrelationId == "" {
		outbox.CorrelationId = correlationIdFromContextOrNew(ctx)
	}
	if outbox.AvailableAt.IsZero() {
		outbox.AvailableAt = time.Now()
	}
	outbox.PublishStatus = OutboxPublishStatusPending
	return tx.WithContext(ctx).Create(outbox).Error
}

// ClaimNotificationBatch locks up to batchSize due rows for one dispatcher
// worker. SKIP LOCKED keeps concurrent dispatchers from blocking on each
// other's claims.
func ClaimNotificationBatch(ctx context.Context, workerId string, batchSize int) ([]*NotificationOutbox, error) {
	db := config.GetDB()

	var claimed []*NotificationOutbox
	err := db.Transaction(func(tx *gorm.DB) error {
		var rows []*NotificationOutbox
		err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("publish_status IN ?", []OutboxPublishStatus{OutboxPublishStatusPending, OutboxPublishStatusFailed}).
			Where("available_at <= ?", time.Now()).
			Order("id").
			Limit(batchSize).
			Find(&rows).Error
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		now := time.Now()
		ids := make([]int, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		err = tx.WithContext(ctx).Model(&NotificationOutbox{}).Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"PublishStatus": OutboxPublishStatusProcessing,
				"LockedAt":      &now,
				"LockedBy":      workerId,
			}).Error
		if err != nil {
			return err
		}

		for _, row := range rows {
			row.PublishStatus = OutboxPublishStatusProcessing
			row.LockedAt = &now
			row.LockedBy = workerId
		}
		claimed = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func MarkNotificationSent(ctx context.Context, id int) error {
	db := config.GetDB()

	now := time.Now()
	return db.WithContext(ctx).Model(&NotificationOutbox{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"PublishStatus": OutboxPublishStatusSent,
			"SentAt":        &now,
			"LockedAt":      nil,
			"LockedBy":      "",
		}).Error
}

// MarkNotificationFailed records the failure and backs the row off. After the
// attempt cap the row goes DEAD and the dispatcher stops picking it up.
func MarkNotificationFailed(ctx context.Context, row *NotificationOutbox, sendErr error) error {
	db := config.GetDB()

	attempts := row.Attempts + 1
	status := OutboxPublishStatusFailed
	if attempts >= maxNotificationAttempts {
		status = OutboxPublishStatusDead
	}

	errMsg := ""
	if sendErr != nil {
		errMsg = sendErr.Error()
		if len(errMsg) > 255 {
			errMsg = errMsg[:255]
		}
	}

	// exponential backoff, capped at an hour
	backoff := time.Duration(1<<uint(attempts)) * time.Minute
	if backoff > time.Hour {
		backoff = time.Hour
	}

	return db.WithContext(ctx).Model(&NotificationOutbox{}).Where("id = ?", row.ID).
		Updates(map[string]interface{}{
			"PublishStatus": status,
			"Attempts":      attempts,
			"LastError":     errMsg,
			"AvailableAt":   time.Now().Add(backoff),
			"LockedAt":      nil,
			"LockedBy":      "",
		}).Error
}

// ReleaseStaleNotificationClaims returns rows stuck in PROCESSING to the
// queue. Covers a dispatcher that died between claim and send.
func ReleaseStaleNotificationClaims(ctx context.Context, olderThan time.Duration) (int64, error) {
	db := config.GetDB()

	cutoff := time.Now().Add(-olderThan)
	result := db.WithContext(ctx).Model(&NotificationOutbox{}).
		Where("publish_status = ? AND locked_at < ?", OutboxPublishStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"PublishStatus": OutboxPublishStatusPending,
			"LockedAt":      nil,
			"LockedBy":      "",
		})
	return result.RowsAffected, result.Error
}

// MarkNotificationSentByCorrelation acknowledges delivery reported back by
// the push subscription.
func MarkNotificationSentByCorrelation(ctx context.Context, correlationId string) error {
	if correlationId == "" {
		return errors.New("correlation id is required")
	}
	db := config.GetDB()

	now := time.Now()
	result := db.WithContext(ctx).Model(&NotificationOutbox{}).
		Where("correlation_id = ? AND publish_status <> ?", correlationId, OutboxPublishStatusSent).
		Updates(map[string]interface{}{
			"PublishStatus": OutboxPublishStatusSent,
			"SentAt":        &now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no outbox row for correlation id %s", correlationId)
	}
	return nil
}

func PaginateNotificationOutbox(ctx context.Context, limit *int, after *string,
	status *OutboxPublishStatus, channel *NotificationChannel) (*NotificationOutboxesConnection, error) {

	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	if status != nil && *status != "" {
		dbCtx.Where("publish_status = ?", *status)
	}
	if channel != nil && *channel != "" {
		dbCtx.Where("channel = ?", *channel)
	}

	edges, pageInfo, err := FetchPageCompositeCursor[NotificationOutbox](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}

	var outboxConnection NotificationOutboxesConnection
	outboxConnection.PageInfo = pageInfo
	for _, edge := range edges {
		outboxEdge := NotificationOutboxesEdge(edge)
		outboxConnection.Edges = append(outboxConnection.Edges, &outboxEdge)
	}

	return &outboxConnection, err
}
