package worker

import (
	"context"
	"fmt"
	"time"

	"campus-events/internal/broker"
	"campus-events/internal/models"
	"campus-events/internal/notify"
	"campus-events/internal/util"

	"go.uber.org/zap"
)

// MailSender delivers one email
type MailSender interface {
	Send(ctx context.Context, e notify.Email) error
}

// WebhookPoster delivers one JSON webhook
type WebhookPoster interface {
	Post(ctx context.Context, url string, payload interface{}) error
}

// Deduper remembers which broker events were already delivered
type Deduper interface {
	MarkDelivered(ctx context.Context, key string, ttl time.Duration) (bool, error)
	UnmarkDelivered(ctx context.Context, key string) error
}

// RegistrationLoader reads the registration a notification refers to
type RegistrationLoader interface {
	GetRegistration(ctx context.Context, id string) (*models.Registration, error)
}

// Dispatcher turns domain events into emails and webhooks
type Dispatcher struct {
	mail     MailSender
	webhooks WebhookPoster
	dedup    Deduper
	dedupTTL time.Duration
	regs     RegistrationLoader
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher. dedup may be nil.
func NewDispatcher(mail MailSender, webhooks WebhookPoster, dedup Deduper, dedupTTL time.Duration, regs RegistrationLoader) *Dispatcher {
	return &Dispatcher{
		mail:     mail,
		webhooks: webhooks,
		dedup:    dedup,
		dedupTTL: dedupTTL,
		regs:     regs,
		logger:   util.GetLogger(),
	}
}

// Handler routes broker messages to the dispatcher
func (d *Dispatcher) Handler() *broker.EventHandler {
	h := broker.NewEventHandler()
	h.OnEventAnnounced(d.HandleEventAnnounced)
	h.OnTicketIssued(d.HandleTicketIssued)
	h.OnOrderRejected(d.HandleOrderRejected)
	return h
}

// once runs deliver unless key was already delivered. A failed delivery
// clears the mark so a redelivered message is retried.
func (d *Dispatcher) once(ctx context.Context, key, channel, kind string, deliver func() error) error {
	if d.dedup != nil {
		first, err := d.dedup.MarkDelivered(ctx, key, d.dedupTTL)
		if err != nil {
			d.logger.Warn("Dedup check failed, delivering anyway", zap.String("key", key), zap.Error(err))
		} else if !first {
			d.logger.Debug("Skipping duplicate notification", zap.String("key", key))
			return nil
		}
	}

	if err := deliver(); err != nil {
		util.NotificationsFailedTotal.WithLabelValues(channel).Inc()
		d.logger.Error("Notification delivery failed",
			zap.String("key", key),
			zap.String("channel", channel),
			zap.Error(err))
		if d.dedup != nil {
			if uerr := d.dedup.UnmarkDelivered(ctx, key); uerr != nil {
				d.logger.Warn("Failed to clear dedup mark", zap.String("key", key), zap.Error(uerr))
			}
		}
		return err
	}

	util.NotificationsSentTotal.WithLabelValues(channel, kind).Inc()
	return nil
}

// HandleEventAnnounced posts the announcement to the organizer's webhook
func (d *Dispatcher) HandleEventAnnounced(ctx context.Context, e *models.EventAnnouncedEvent) error {
	if e.WebhookURL == "" {
		return nil
	}
	return d.once(ctx, e.EventID, "webhook", e.EventType, func() error {
		return d.webhooks.Post(ctx, e.WebhookURL, notify.Announcement{
			Content: fmt.Sprintf("New event published: %s", e.Name),
			EventID: e.CampusEventID,
			Name:    e.Name,
			StartAt: e.StartAt.UTC().Format(time.RFC3339),
		})
	})
}

// HandleTicketIssued emails the participant their ticket with the QR image attached
func (d *Dispatcher) HandleTicketIssued(ctx context.Context, e *models.TicketIssuedEvent) error {
	if e.ParticipantEmail == "" {
		return nil
	}

	r, err := d.regs.GetRegistration(ctx, e.RegistrationID)
	if err != nil {
		return fmt.Errorf("failed to load registration %s: %w", e.RegistrationID, err)
	}
	ticket := r.Ticket()
	if ticket == nil || ticket.ID != e.TicketID {
		// cancelled or reissued since; the newer event carries the live ticket
		d.logger.Info("Ticket no longer current, skipping email", zap.String("ticket_id", e.TicketID))
		return nil
	}

	return d.once(ctx, e.EventID, "email", e.EventType, func() error {
		return d.mail.Send(ctx, notify.Email{
			To:      e.ParticipantEmail,
			Subject: fmt.Sprintf("Your ticket for %s", e.EventName),
			Body: fmt.Sprintf("You're confirmed for %s.\n\nTicket ID: %s\nShow the attached QR code at check-in.",
				e.EventName, ticket.ID),
			Attachments: []notify.Attachment{{
				Filename:    "ticket.png",
				ContentType: ticket.ContentType,
				Data:        ticket.Image,
			}},
		})
	})
}

// HandleOrderRejected tells the participant why their payment proof was refused
func (d *Dispatcher) HandleOrderRejected(ctx context.Context, e *models.OrderRejectedEvent) error {
	if e.ParticipantEmail == "" {
		return nil
	}
	return d.once(ctx, e.EventID, "email", e.EventType, func() error {
		return d.mail.Send(ctx, notify.Email{
			To:      e.ParticipantEmail,
			Subject: fmt.Sprintf("Payment proof rejected for %s", e.EventName),
			Body: fmt.Sprintf("Your payment proof for %s was rejected: %s\n\nYou can upload a new proof from your order page.",
				e.EventName, e.Reason),
		})
	})
}

// NotificationWorker consumes domain events and dispatches notifications
type NotificationWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	logger   *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, dispatcher *Dispatcher) *NotificationWorker {
	return &NotificationWorker{
		consumer: consumer,
		handler:  dispatcher.Handler(),
		logger:   util.GetLogger(),
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}
