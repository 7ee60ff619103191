package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/jobticket-service/internal/config"
	"github.com/spec-kit/jobticket-service/internal/events"
)

// Email is an owner notification.
type Email struct {
	From     string
	To       string
	Subject  string
	Body     string
	TicketID string
	Event    events.EventType
}

// Mailer delivers owner notifications.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// LogMailer logs emails instead of delivering them.
type LogMailer struct {
	Logger *zap.Logger
}

// Send implements Mailer.
func (m LogMailer) Send(_ context.Context, email Email) error {
	m.Logger.Info("email notification",
		zap.String("from", email.From),
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("ticket_id", email.TicketID))
	return nil
}

// NotificationService handles emitting notifications for ticket events.
type NotificationService struct {
	dispatcher events.Dispatcher
	mailer     Mailer
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. A nil mailer logs emails.
func NewNotificationService(dispatcher events.Dispatcher, mailer Mailer, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if mailer == nil {
		mailer = LogMailer{Logger: logger}
	}
	return &NotificationService{
		dispatcher: dispatcher,
		mailer:     mailer,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketAdmitted, n.handleTicketAdmitted)
	n.dispatcher.Subscribe(events.EventTicketCompleted, n.handleTicketCompleted)
	n.dispatcher.Subscribe(events.EventTicketCanceled, n.handleTicketCanceled)
	n.dispatcher.Subscribe(events.EventTicketDeviceCanceled, n.handleTicketDeviceCanceled)
}

func (n *NotificationService) handleTicketAdmitted(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketAdmitted", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketCompleted(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCompleted", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	if !n.cfg.NotifyOnComplete {
		return nil
	}
	return n.sendEmail(ctx, event,
		fmt.Sprintf("Ticket %s is done", event.TicketNumber),
		"Your job ticket was processed and charged.")
}

func (n *NotificationService) handleTicketCanceled(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCanceled", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	if !n.cfg.NotifyOnCancel {
		return nil
	}
	return n.sendEmail(ctx, event,
		fmt.Sprintf("Ticket %s was canceled", event.TicketNumber),
		"Your job ticket was canceled by an operator. Nothing was charged.")
}

func (n *NotificationService) handleTicketDeviceCanceled(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketDeviceCanceled", zap.String("ticket_id", event.TicketID))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmail(ctx context.Context, event events.Event, subject, body string) error {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || event.OwnerID == "" {
		return nil
	}
	err := n.mailer.Send(ctx, Email{
		From:     n.cfg.EmailFrom,
		To:       event.OwnerID,
		Subject:  subject,
		Body:     body,
		TicketID: event.TicketID,
		Event:    event.Type,
	})
	if err != nil {
		n.logger.Warn("email notification failed", zap.String("ticket_id", event.TicketID), zap.Error(err))
		return fmt.Errorf("notify owner of %s: %w", event.TicketNumber, err)
	}
	return nil
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
