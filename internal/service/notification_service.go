package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/events"
	"github.com/spec-kit/auth-gateway/internal/i18n"
	"github.com/spec-kit/auth-gateway/internal/mail"
)

// MailQueue accepts rendered messages for asynchronous delivery.
type MailQueue interface {
	Enqueue(ctx context.Context, msg mail.Message) error
}

// NotificationService turns account events into mails.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      MailQueue
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, queue MailQueue, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventUserSignedUp, n.handleUserSignedUp)
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handlePasswordResetRequested)
	n.dispatcher.Subscribe(events.EventAccountDeletionRequested, n.handleAccountDeletionRequested)
	for _, t := range []events.EventType{
		events.EventUserSignedIn,
		events.EventUserSignedOut,
		events.EventPasswordChanged,
		events.EventUserDeleted,
	} {
		n.dispatcher.Subscribe(t, n.logEvent)
	}
}

func (n *NotificationService) handleUserSignedUp(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.UserSignedUpPayload)
	if !ok {
		return payloadError(event)
	}
	return n.send(ctx, event, mail.TemplateWelcome, p.Recipient, "")
}

func (n *NotificationService) handlePasswordResetRequested(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.PasswordResetRequestedPayload)
	if !ok {
		return payloadError(event)
	}
	return n.send(ctx, event, mail.TemplateResetPassword, p.Recipient, p.URL)
}

func (n *NotificationService) handleAccountDeletionRequested(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.AccountDeletionRequestedPayload)
	if !ok {
		return payloadError(event)
	}
	return n.send(ctx, event, mail.TemplateDeleteAccount, p.Recipient, p.URL)
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("user_id", event.UserID),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) send(ctx context.Context, event events.Event, template string, to events.Recipient, url string) error {
	tag := i18n.ResolveTag(event.Locale)
	msg, err := mail.Render(template, tag, to.Email, mail.TemplateData{Name: to.Name, URL: url})
	if err != nil {
		return err
	}
	if n.queue == nil {
		n.logger.Warn("no mail queue configured", zap.String("template", template))
		return nil
	}
	if err := n.queue.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s mail: %w", template, err)
	}
	n.logger.Debug("mail queued",
		zap.String("event", string(event.Type)),
		zap.String("template", template),
		zap.String("user_id", event.UserID))
	return nil
}

func payloadError(event events.Event) error {
	return fmt.Errorf("event %s: unexpected payload %T", event.Type, event.Payload)
}
