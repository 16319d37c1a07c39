package worker

import (
	"context"

	"github.com/spec-kit/auth-gateway/internal/service"
)

// StartNotificationWorker starts the mail senders and subscribes the
// notification handlers that feed them.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, mails *MailWorker, senders int) {
	if notificationService == nil || mails == nil {
		return
	}
	mails.Start(ctx, senders)
	notificationService.RegisterHandlers()
}
