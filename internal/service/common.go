package service

import (
	"context"
	"errors"
	"time"

	"campus-events/internal/models"
	"campus-events/internal/store"
	"campus-events/internal/util"

	"go.uber.org/zap"
)

// Publisher emits domain events for the notification pipeline. Delivery is
// best-effort: publish errors are logged and never fail an operation.
type Publisher interface {
	PublishEventAnnounced(ctx context.Context, event *models.EventAnnouncedEvent) error
	PublishTicketIssued(ctx context.Context, event *models.TicketIssuedEvent) error
	PublishOrderRejected(ctx context.Context, event *models.OrderRejectedEvent) error
}

// TicketIssuer mints a ticket bound to an event, participant and optional item
type TicketIssuer interface {
	Issue(eventID, participantID, itemID string) (*models.Ticket, error)
}

// Clock returns the current time. Services take one so tests can pin "now".
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

func requireParticipant(actor models.Actor) error {
	if actor.ID == "" || actor.Role != models.RoleParticipant {
		return models.Fail(models.ErrForbidden, "only participants can do this")
	}
	return nil
}

func requireOwner(actor models.Actor, e *models.Event) error {
	if actor.Role != models.RoleOrganizer || actor.ID == "" || actor.ID != e.OrganizerID {
		return models.Fail(models.ErrForbidden, "only the organizer of this event can do this")
	}
	return nil
}

// requireViewer admits the participant holding the registration and the event's organizer
func requireViewer(actor models.Actor, e *models.Event, r *models.Registration) error {
	if requireParticipant(actor) == nil && actor.ID == r.ParticipantID {
		return nil
	}
	if requireOwner(actor, e) == nil {
		return nil
	}
	return models.Fail(models.ErrForbidden, "registration belongs to someone else")
}

// lookupRegistration returns nil, nil when the participant has no registration for the event
func lookupRegistration(ctx context.Context, st *store.Store, eventID, participantID string) (*models.Registration, error) {
	r, err := st.GetRegistrationByParticipant(ctx, eventID, participantID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return r, err
}

// completeOnRead applies and persists the lazy UPCOMING -> COMPLETED
// transition. Every path that hands a registration to a caller goes through it.
func completeOnRead(ctx context.Context, st *store.Store, e *models.Event, r *models.Registration, now time.Time) error {
	if !models.CompleteIfEnded(r, e, now) {
		return nil
	}
	return st.CompleteRegistration(ctx, r.ID)
}

// readRegistration reloads a registration after a write and applies completeOnRead
func readRegistration(ctx context.Context, st *store.Store, e *models.Event, id string, now time.Time) (*models.Registration, error) {
	r, err := st.GetRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := completeOnRead(ctx, st, e, r, now); err != nil {
		return nil, err
	}
	return r, nil
}

// readParticipantRegistration is readRegistration keyed by event and participant
func readParticipantRegistration(ctx context.Context, st *store.Store, e *models.Event, participantID string, now time.Time) (*models.Registration, error) {
	r, err := st.GetRegistrationByParticipant(ctx, e.ID, participantID)
	if err != nil {
		return nil, err
	}
	if err := completeOnRead(ctx, st, e, r, now); err != nil {
		return nil, err
	}
	return r, nil
}

// completeAllOnRead is the bulk variant of completeOnRead for listings of one event
func completeAllOnRead(ctx context.Context, st *store.Store, e *models.Event, regs []models.Registration, now time.Time) error {
	changed := false
	for i := range regs {
		if models.CompleteIfEnded(&regs[i], e, now) {
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return st.CompleteEventRegistrations(ctx, e.ID)
}

type notifier struct {
	publisher Publisher
	logger    *zap.Logger
}

func (n notifier) ticketIssued(ctx context.Context, e *models.Event, r *models.Registration) {
	util.TicketsIssuedTotal.Inc()
	if n.publisher == nil || r.TicketID == nil {
		return
	}
	err := n.publisher.PublishTicketIssued(ctx, &models.TicketIssuedEvent{
		RegistrationID:   r.ID,
		CampusEventID:    e.ID,
		EventName:        e.Name,
		ParticipantID:    r.ParticipantID,
		ParticipantEmail: r.ParticipantEmail,
		TicketID:         *r.TicketID,
	})
	if err != nil {
		n.logger.Error("Failed to publish TicketIssued event",
			zap.String("registration_id", r.ID),
			zap.Error(err))
	}
}

func (n notifier) orderRejected(ctx context.Context, e *models.Event, r *models.Registration, reason string) {
	if n.publisher == nil {
		return
	}
	err := n.publisher.PublishOrderRejected(ctx, &models.OrderRejectedEvent{
		RegistrationID:   r.ID,
		CampusEventID:    e.ID,
		EventName:        e.Name,
		ParticipantEmail: r.ParticipantEmail,
		Reason:           reason,
	})
	if err != nil {
		n.logger.Error("Failed to publish OrderRejected event",
			zap.String("registration_id", r.ID),
			zap.Error(err))
	}
}

func (n notifier) eventAnnounced(ctx context.Context, e *models.Event, webhookURL string) {
	if n.publisher == nil {
		return
	}
	err := n.publisher.PublishEventAnnounced(ctx, &models.EventAnnouncedEvent{
		CampusEventID: e.ID,
		OrganizerID:   e.OrganizerID,
		Name:          e.Name,
		Type:          e.Type,
		StartAt:       e.StartAt,
		WebhookURL:    webhookURL,
	})
	if err != nil {
		n.logger.Error("Failed to publish EventAnnounced event",
			zap.String("event_id", e.ID),
			zap.Error(err))
	}
}
