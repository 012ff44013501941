package workflow

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/models"
)

const (
	dispatcherBatchSize = 50
	staleClaimAge       = 10 * time.Minute
)

// NotificationDispatcher drains the outbox. Each tick it returns stale claims
// to the queue, claims a batch, and hands every row to Pub/Sub or, when
// direct processing is on, to the in-process sender.
type NotificationDispatcher struct {
	workerId string
	sender   NotificationSender
}

func NewNotificationDispatcher(sender NotificationSender) *NotificationDispatcher {
	hostname, _ := os.Hostname()
	return &NotificationDispatcher{
		workerId: fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8]),
		sender:   sender,
	}
}

func outboxMessage(row *models.NotificationOutbox) config.NotificationMessage {
	return config.NotificationMessage{
		ID:            row.ID,
		TenantId:      row.TenantId,
		Channel:       string(row.Channel),
		Recipient:     row.Recipient,
		Subject:       row.Subject,
		Body:          row.Body,
		QueuedAt:      row.CreatedAt,
		CorrelationId: row.CorrelationId,
	}
}

// DispatchOnce processes one batch and returns how many rows were sent.
func (d *NotificationDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	logger := config.GetLogger()

	if _, err := models.ReleaseStaleNotificationClaims(ctx, staleClaimAge); err != nil {
		config.LogError(logger, "workflow", "DispatchOnce", "release stale claims", nil, err)
	}

	batch, err := models.ClaimNotificationBatch(ctx, d.workerId, dispatcherBatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, row := range batch {
		if err := d.deliver(ctx, row); err != nil {
			config.LogError(logger, "workflow", "DispatchOnce", "deliver", map[string]interface{}{
				"outbox_id": row.ID, "tenant_id": row.TenantId,
			}, err)
			if markErr := models.MarkNotificationFailed(ctx, row, err); markErr != nil {
				config.LogError(logger, "workflow", "DispatchOnce", "mark failed", map[string]interface{}{
					"outbox_id": row.ID,
				}, markErr)
			}
			continue
		}
		if err := models.MarkNotificationSent(ctx, row.ID); err != nil {
			config.LogError(logger, "workflow", "DispatchOnce", "mark sent", map[string]interface{}{
				"outbox_id": row.ID,
			}, err)
			continue
		}
		sent++
	}
	return sent, nil
}

func (d *NotificationDispatcher) deliver(ctx context.Context, row *models.NotificationOutbox) error {
	msg := outboxMessage(row)

	if config.NotificationsDirectProcessing() {
		return d.sender.Send(ctx, msg)
	}

	_, err := config.PublishNotificationWithResult(ctx, msg)
	return err
}

// Run ticks until the context is cancelled.
func (d *NotificationDispatcher) Run(ctx context.Context, interval time.Duration) {
	logger := config.GetLogger()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.DispatchOnce(ctx); err != nil {
				config.LogError(logger, "workflow", "Run", "dispatch", nil, err)
			}
		}
	}
}
