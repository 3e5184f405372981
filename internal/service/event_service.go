package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"campus-events/internal/models"
	"campus-events/internal/store"
	"campus-events/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventService runs the event state machine for organizers and serves event reads
type EventService struct {
	store  *store.Store
	notify notifier
	logger *zap.Logger
	now    Clock
}

// NewEventService creates a new event service. publisher may be nil.
func NewEventService(store *store.Store, publisher Publisher) *EventService {
	logger := util.GetLogger()
	return &EventService{
		store:  store,
		notify: notifier{publisher: publisher, logger: logger},
		logger: logger,
		now:    systemClock,
	}
}

// CreateEventRequest is the definition of a new draft event
type CreateEventRequest struct {
	Name                 string                   `json:"name" binding:"required"`
	Description          string                   `json:"description"`
	Type                 models.EventType         `json:"type" binding:"required"`
	IIITOnly             bool                     `json:"iiit_only"`
	RegistrationDeadline time.Time                `json:"registration_deadline"`
	StartAt              time.Time                `json:"start_at"`
	EndAt                time.Time                `json:"end_at"`
	Capacity             int                      `json:"capacity"`
	Fee                  float64                  `json:"fee"`
	Tags                 []string                 `json:"tags"`
	FormFields           models.FormFields        `json:"form_fields"`
	Merchandise          []models.MerchandiseItem `json:"merchandise"`
}

// CreateEvent stores a new event in draft owned by the calling organizer
func (s *EventService) CreateEvent(ctx context.Context, actor models.Actor, req *CreateEventRequest) (*models.Event, error) {
	ctx, span := util.StartSpan(ctx, "EventService.CreateEvent")
	defer span.End()

	if actor.Role != models.RoleOrganizer || actor.ID == "" {
		return nil, models.Fail(models.ErrForbidden, "only organizers can create events")
	}

	e := &models.Event{
		ID:                   uuid.NewString(),
		OrganizerID:          actor.ID,
		Name:                 strings.TrimSpace(req.Name),
		Description:          req.Description,
		Type:                 req.Type,
		IIITOnly:             req.IIITOnly,
		RegistrationDeadline: req.RegistrationDeadline.UTC(),
		StartAt:              req.StartAt.UTC(),
		EndAt:                req.EndAt.UTC(),
		Capacity:             req.Capacity,
		Fee:                  req.Fee,
		Tags:                 models.StringList(req.Tags),
		FormFields:           req.FormFields.Sorted(),
		Merchandise:          req.Merchandise,
		Status:               models.EventStatusDraft,
	}
	assignItemIDs(e.Merchandise)

	if err := e.ValidateDefinition(); err != nil {
		return nil, err
	}

	if err := s.store.CreateEvent(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.logger.Info("Event created",
		zap.String("event_id", e.ID),
		zap.String("organizer_id", e.OrganizerID),
		zap.String("type", string(e.Type)))
	return e, nil
}

func assignItemIDs(items []models.MerchandiseItem) {
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		if items[i].Position == 0 {
			items[i].Position = i + 1
		}
	}
}

// GetEvent returns an event. Drafts are only visible to their organizer.
func (s *EventService) GetEvent(ctx context.Context, actor models.Actor, eventID string) (*models.Event, error) {
	ctx, span := util.StartSpan(ctx, "EventService.GetEvent")
	defer span.End()

	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.Status == models.EventStatusDraft && actor.ID != e.OrganizerID {
		return nil, models.Fail(models.ErrNotFound, "event %s not found", eventID)
	}
	return e, nil
}

// ListEvents returns the organizer's own events, or every event open to
// participants for anyone else
func (s *EventService) ListEvents(ctx context.Context, actor models.Actor) ([]models.Event, error) {
	ctx, span := util.StartSpan(ctx, "EventService.ListEvents")
	defer span.End()

	filter := store.EventFilter{}
	if actor.Role == models.RoleOrganizer {
		filter.OrganizerID = actor.ID
	} else {
		filter.Statuses = []models.EventStatus{models.EventStatusPublished, models.EventStatusOngoing}
	}
	return s.store.ListEvents(ctx, filter)
}

// UpdateEvent applies an organizer's edit through the state machine
func (s *EventService) UpdateEvent(ctx context.Context, actor models.Actor, eventID string, req UpdateEventRequest) (*models.Event, error) {
	ctx, span := util.StartSpan(ctx, "EventService.UpdateEvent")
	defer span.End()

	current, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, current); err != nil {
		return nil, err
	}

	if req.Merchandise != nil {
		assignItemIDs(*req.Merchandise)
	}

	next, replaceSurface, err := PlanEventUpdate(current, req)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateEvent(ctx, next, current.Status, replaceSurface); err != nil {
		return nil, err
	}

	if current.Status != next.Status {
		s.logger.Info("Event status changed",
			zap.String("event_id", next.ID),
			zap.String("from", string(current.Status)),
			zap.String("to", string(next.Status)))
	}

	if current.Status == models.EventStatusDraft && next.Status == models.EventStatusPublished {
		s.announce(ctx, next)
	}

	return s.store.GetEvent(ctx, eventID)
}

func (s *EventService) announce(ctx context.Context, e *models.Event) {
	webhook, err := s.store.GetOrganizerWebhook(ctx, e.OrganizerID)
	if err != nil {
		s.logger.Warn("Failed to load organizer webhook", zap.String("organizer_id", e.OrganizerID), zap.Error(err))
	}
	s.notify.eventAnnounced(ctx, e, webhook)
}

// SetOrganizerWebhook configures where the organizer's event announcements go.
// An empty url disables announcements.
func (s *EventService) SetOrganizerWebhook(ctx context.Context, actor models.Actor, webhookURL string) error {
	ctx, span := util.StartSpan(ctx, "EventService.SetOrganizerWebhook")
	defer span.End()

	if actor.Role != models.RoleOrganizer || actor.ID == "" {
		return models.Fail(models.ErrForbidden, "only organizers have webhooks")
	}

	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL != "" {
		u, err := url.Parse(webhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return models.Fail(models.ErrValidationFailed, "webhook must be an http(s) URL")
		}
	}

	return s.store.SetOrganizerWebhook(ctx, actor.ID, webhookURL)
}
