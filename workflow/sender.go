package workflow

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/tradietrack/tradietrack_backend/config"
)

// NotificationSender delivers one message on a channel. Real SMS/email
// providers live behind this interface; the default sender only logs.
type NotificationSender interface {
	Send(ctx context.Context, msg config.NotificationMessage) error
}

// LogSender writes the message to the structured log and reports success.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg config.NotificationMessage) error {
	config.GetLogger().WithFields(logrus.Fields{
		"module":         "workflow",
		"channel":        msg.Channel,
		"recipient":      msg.Recipient,
		"subject":        msg.Subject,
		"tenant_id":      msg.TenantId,
		"correlation_id": msg.CorrelationId,
	}).Info("notification delivered")
	return nil
}
