package service

import (
	"context"
	"encoding/json"
	"fmt"

	"campus-events/internal/models"
	"campus-events/internal/store"
	"campus-events/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegistrationService registers participants for normal events
type RegistrationService struct {
	store   *store.Store
	tickets TicketIssuer
	notify  notifier
	logger  *zap.Logger
	now     Clock
}

// NewRegistrationService creates a new registration service. publisher may be nil.
func NewRegistrationService(store *store.Store, tickets TicketIssuer, publisher Publisher) *RegistrationService {
	logger := util.GetLogger()
	return &RegistrationService{
		store:   store,
		tickets: tickets,
		notify:  notifier{publisher: publisher, logger: logger},
		logger:  logger,
		now:     systemClock,
	}
}

// Register creates, reactivates or returns the caller's registration for a
// normal event. Registering twice returns the existing registration.
func (s *RegistrationService) Register(ctx context.Context, actor models.Actor, eventID string, responses map[string]json.RawMessage) (*models.Registration, error) {
	ctx, span := util.StartSpan(ctx, "RegistrationService.Register")
	defer span.End()

	if err := requireParticipant(actor); err != nil {
		return nil, err
	}

	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.Type != models.EventTypeNormal || !e.OpenForRegistration() {
		util.RegistrationsRejectedTotal.WithLabelValues("not_open").Inc()
		return nil, models.Fail(models.ErrNotOpen, "event is not accepting registrations")
	}
	now := s.now()
	if e.DeadlinePassed(now) {
		util.RegistrationsRejectedTotal.WithLabelValues("deadline").Inc()
		return nil, models.Fail(models.ErrDeadlinePassed, "registration closed at %s", e.RegistrationDeadline.Format("2006-01-02 15:04 MST"))
	}

	existing, err := lookupRegistration(ctx, s.store, e.ID, actor.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != models.RegistrationCancelled {
		if err := completeOnRead(ctx, s.store, e, existing, now); err != nil {
			return nil, err
		}
		return existing, nil
	}

	if e.HasCapacity() && e.SeatsTaken >= e.Capacity {
		util.RegistrationsRejectedTotal.WithLabelValues("capacity").Inc()
		return nil, models.Fail(models.ErrCapacityReached, "event is full")
	}
	if e.IIITOnly && !actor.IIITAffiliated {
		util.RegistrationsRejectedTotal.WithLabelValues("eligibility").Inc()
		return nil, models.Fail(models.ErrNotEligible, "event is restricted to IIIT members")
	}

	parsed, err := models.ParseResponses(e.FormFields, responses)
	if err != nil {
		return nil, err
	}

	claimed, err := s.store.ClaimSeat(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// a concurrent call for the same participant may have taken the last seat
		if r, err := lookupRegistration(ctx, s.store, e.ID, actor.ID); err == nil && r != nil && r.Status != models.RegistrationCancelled {
			if err := completeOnRead(ctx, s.store, e, r, now); err != nil {
				return nil, err
			}
			return r, nil
		}
		util.RegistrationsRejectedTotal.WithLabelValues("capacity").Inc()
		return nil, models.Fail(models.ErrCapacityReached, "event is full")
	}

	ticket, err := s.tickets.Issue(e.ID, actor.ID, "")
	if err != nil {
		s.releaseSeat(ctx, e.ID)
		return nil, fmt.Errorf("failed to issue ticket: %w", err)
	}

	if existing != nil {
		return s.reactivate(ctx, e, existing, actor, parsed, ticket)
	}

	if err := s.store.LockForm(ctx, e.ID); err != nil {
		s.releaseSeat(ctx, e.ID)
		return nil, fmt.Errorf("failed to lock form: %w", err)
	}

	r := &models.Registration{
		ID:               uuid.NewString(),
		EventID:          e.ID,
		ParticipantID:    actor.ID,
		ParticipantEmail: actor.Email,
		Status:           models.RegistrationUpcoming,
		FormResponses:    parsed,
	}
	r.AttachTicket(ticket)

	created, err := s.store.CreateRegistration(ctx, r)
	if err != nil {
		s.releaseSeat(ctx, e.ID)
		return nil, err
	}
	if !created {
		s.releaseSeat(ctx, e.ID)
		s.logger.Info("Concurrent registration detected",
			zap.String("event_id", e.ID),
			zap.String("participant_id", actor.ID))
		return readParticipantRegistration(ctx, s.store, e, actor.ID, now)
	}

	util.RegistrationsCreatedTotal.Inc()
	s.logger.Info("Registration created",
		zap.String("registration_id", r.ID),
		zap.String("event_id", e.ID),
		zap.String("participant_id", actor.ID))

	s.notify.ticketIssued(ctx, e, r)
	if err := completeOnRead(ctx, s.store, e, r, now); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *RegistrationService) reactivate(ctx context.Context, e *models.Event, r *models.Registration, actor models.Actor, responses models.FormResponses, ticket *models.Ticket) (*models.Registration, error) {
	r.FormResponses = responses
	if actor.Email != "" {
		r.ParticipantEmail = actor.Email
	}
	r.AttachTicket(ticket)

	ok, err := s.store.ReactivateRegistration(ctx, r)
	if err != nil {
		s.releaseSeat(ctx, e.ID)
		return nil, err
	}
	if !ok {
		s.releaseSeat(ctx, e.ID)
		return readRegistration(ctx, s.store, e, r.ID, s.now())
	}

	util.RegistrationsCreatedTotal.Inc()
	s.logger.Info("Registration reactivated",
		zap.String("registration_id", r.ID),
		zap.String("event_id", e.ID))

	fresh, err := readRegistration(ctx, s.store, e, r.ID, s.now())
	if err != nil {
		return nil, err
	}
	s.notify.ticketIssued(ctx, e, fresh)
	return fresh, nil
}

func (s *RegistrationService) releaseSeat(ctx context.Context, eventID string) {
	if err := s.store.ReleaseSeat(ctx, eventID); err != nil {
		s.logger.Error("Failed to release seat", zap.String("event_id", eventID), zap.Error(err))
	}
}

// Cancel cancels the caller's registration for a normal event and revokes its ticket
func (s *RegistrationService) Cancel(ctx context.Context, actor models.Actor, eventID string) (*models.Registration, error) {
	ctx, span := util.StartSpan(ctx, "RegistrationService.Cancel")
	defer span.End()

	if err := requireParticipant(actor); err != nil {
		return nil, err
	}

	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.Type != models.EventTypeNormal {
		return nil, models.Fail(models.ErrNotOpen, "merchandise orders cannot be cancelled")
	}

	r, err := s.store.GetRegistrationByParticipant(ctx, e.ID, actor.ID)
	if err != nil {
		return nil, err
	}
	if err := completeOnRead(ctx, s.store, e, r, s.now()); err != nil {
		return nil, err
	}

	switch r.Status {
	case models.RegistrationCancelled:
		return r, nil
	case models.RegistrationCompleted:
		return nil, models.Fail(models.ErrNotOpen, "event has already ended")
	}

	ok, err := s.store.CancelRegistration(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	if ok {
		s.releaseSeat(ctx, e.ID)
		util.RegistrationsCancelledTotal.Inc()
		s.logger.Info("Registration cancelled",
			zap.String("registration_id", r.ID),
			zap.String("event_id", e.ID))
	}

	return readRegistration(ctx, s.store, e, r.ID, s.now())
}

// GetRegistration returns a registration to its participant or to the event's organizer
func (s *RegistrationService) GetRegistration(ctx context.Context, actor models.Actor, registrationID string) (*models.Registration, error) {
	ctx, span := util.StartSpan(ctx, "RegistrationService.GetRegistration")
	defer span.End()

	r, e, err := loadRegistration(ctx, s.store, registrationID)
	if err != nil {
		return nil, err
	}
	if err := requireViewer(actor, e, r); err != nil {
		return nil, err
	}
	if err := completeOnRead(ctx, s.store, e, r, s.now()); err != nil {
		return nil, err
	}
	return r, nil
}

// ListEventRegistrations returns every registration of an event to its organizer
func (s *RegistrationService) ListEventRegistrations(ctx context.Context, actor models.Actor, eventID string) ([]models.Registration, error) {
	ctx, span := util.StartSpan(ctx, "RegistrationService.ListEventRegistrations")
	defer span.End()

	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, e); err != nil {
		return nil, err
	}

	regs, err := s.store.ListEventRegistrations(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	if err := completeAllOnRead(ctx, s.store, e, regs, s.now()); err != nil {
		return nil, err
	}
	return regs, nil
}

// ListMyRegistrations returns the caller's registrations across all events
func (s *RegistrationService) ListMyRegistrations(ctx context.Context, actor models.Actor) ([]models.Registration, error) {
	ctx, span := util.StartSpan(ctx, "RegistrationService.ListMyRegistrations")
	defer span.End()

	regs, err := s.store.ListParticipantRegistrations(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	events := make(map[string]*models.Event)
	for i := range regs {
		e, ok := events[regs[i].EventID]
		if !ok {
			e, err = s.store.GetEvent(ctx, regs[i].EventID)
			if err != nil {
				return nil, err
			}
			events[e.ID] = e
		}
		if err := completeOnRead(ctx, s.store, e, &regs[i], now); err != nil {
			return nil, err
		}
	}
	return regs, nil
}

func loadRegistration(ctx context.Context, st *store.Store, registrationID string) (*models.Registration, *models.Event, error) {
	r, err := st.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, nil, err
	}
	e, err := st.GetEvent(ctx, r.EventID)
	if err != nil {
		return nil, nil, err
	}
	return r, e, nil
}
