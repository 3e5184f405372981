package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"campus-events/internal/models"
	"campus-events/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func newBase(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// PublishEventAnnounced publishes EventAnnounced event
func (ep *EventPublisher) PublishEventAnnounced(ctx context.Context, event *models.EventAnnouncedEvent) error {
	event.BaseEvent = newBase(models.EventTypeEventAnnounced)
	return ep.producer.PublishEvent(ctx, "event-"+event.CampusEventID, event)
}

// PublishTicketIssued publishes TicketIssued event
func (ep *EventPublisher) PublishTicketIssued(ctx context.Context, event *models.TicketIssuedEvent) error {
	event.BaseEvent = newBase(models.EventTypeTicketIssued)
	return ep.producer.PublishEvent(ctx, "registration-"+event.RegistrationID, event)
}

// PublishOrderRejected publishes OrderRejected event
func (ep *EventPublisher) PublishOrderRejected(ctx context.Context, event *models.OrderRejectedEvent) error {
	event.BaseEvent = newBase(models.EventTypeOrderRejected)
	return ep.producer.PublishEvent(ctx, "registration-"+event.RegistrationID, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onEventAnnounced func(context.Context, *models.EventAnnouncedEvent) error
	onTicketIssued   func(context.Context, *models.TicketIssuedEvent) error
	onOrderRejected  func(context.Context, *models.OrderRejectedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnEventAnnounced registers a handler for EventAnnounced events
func (eh *EventHandler) OnEventAnnounced(handler func(context.Context, *models.EventAnnouncedEvent) error) {
	eh.onEventAnnounced = handler
}

// OnTicketIssued registers a handler for TicketIssued events
func (eh *EventHandler) OnTicketIssued(handler func(context.Context, *models.TicketIssuedEvent) error) {
	eh.onTicketIssued = handler
}

// OnOrderRejected registers a handler for OrderRejected events
func (eh *EventHandler) OnOrderRejected(handler func(context.Context, *models.OrderRejectedEvent) error) {
	eh.onOrderRejected = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeEventAnnounced:
		if eh.onEventAnnounced != nil {
			var event models.EventAnnouncedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal EventAnnounced event: %w", err)
			}
			return eh.onEventAnnounced(ctx, &event)
		}

	case models.EventTypeTicketIssued:
		if eh.onTicketIssued != nil {
			var event models.TicketIssuedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal TicketIssued event: %w", err)
			}
			return eh.onTicketIssued(ctx, &event)
		}

	case models.EventTypeOrderRejected:
		if eh.onOrderRejected != nil {
			var event models.OrderRejectedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderRejected event: %w", err)
			}
			return eh.onOrderRejected(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
