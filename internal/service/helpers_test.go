package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"campus-events/internal/models"
	"campus-events/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	organizer = models.Actor{ID: "org-1", Role: models.RoleOrganizer}
	stranger  = models.Actor{ID: "org-2", Role: models.RoleOrganizer}
)

func participant(id string) models.Actor {
	return models.Actor{ID: id, Role: models.RoleParticipant, Email: id + "@campus.local", IIITAffiliated: true}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "events.db") + "?_pragma=busy_timeout(5000)"
	s, err := store.NewStore(store.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

type fakeIssuer struct {
	mu     sync.Mutex
	issued int
}

func (f *fakeIssuer) Issue(eventID, participantID, itemID string) (*models.Ticket, error) {
	f.mu.Lock()
	f.issued++
	f.mu.Unlock()
	return &models.Ticket{ID: uuid.NewString(), Image: []byte("qr:" + participantID), ContentType: "image/png"}, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	announced []*models.EventAnnouncedEvent
	issued    []*models.TicketIssuedEvent
	rejected  []*models.OrderRejectedEvent
}

func (f *fakePublisher) PublishEventAnnounced(_ context.Context, e *models.EventAnnouncedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announced = append(f.announced, e)
	return nil
}

func (f *fakePublisher) PublishTicketIssued(_ context.Context, e *models.TicketIssuedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued = append(f.issued, e)
	return nil
}

func (f *fakePublisher) PublishOrderRejected(_ context.Context, e *models.OrderRejectedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = append(f.rejected, e)
	return nil
}

func (f *fakePublisher) ticketsIssued() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.issued)
}

// testNow is the pinned clock of every service under test
var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fixture struct {
	store         *store.Store
	publisher     *fakePublisher
	events        *EventService
	registrations *RegistrationService
	orders        *OrderService
	attendance    *AttendanceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newTestStore(t)
	pub := &fakePublisher{}
	issuer := &fakeIssuer{}

	f := &fixture{
		store:         st,
		publisher:     pub,
		events:        NewEventService(st, pub),
		registrations: NewRegistrationService(st, issuer, pub),
		orders:        NewOrderService(st, NewInventoryClient(st, nil), issuer, pub),
		attendance:    NewAttendanceService(st),
	}
	f.events.now = fixedClock
	f.registrations.now = fixedClock
	f.orders.now = fixedClock
	f.attendance.now = fixedClock
	return f
}

func (f *fixture) normalEvent(t *testing.T, mutate func(e *models.Event)) *models.Event {
	t.Helper()
	e := &models.Event{
		ID:                   uuid.NewString(),
		OrganizerID:          organizer.ID,
		Name:                 "Hackathon",
		Type:                 models.EventTypeNormal,
		RegistrationDeadline: testNow.Add(24 * time.Hour),
		StartAt:              testNow.Add(48 * time.Hour),
		EndAt:                testNow.Add(52 * time.Hour),
		Status:               models.EventStatusPublished,
		FormFields: models.FormFields{
			{Position: 1, Kind: models.FieldText, Name: "team", Title: "Team name"},
			{Position: 2, Kind: models.FieldCheckbox, Name: "tracks", Title: "Tracks", Choices: []string{"ai", "web"}},
		},
	}
	if mutate != nil {
		mutate(e)
	}
	require.NoError(t, f.store.CreateEvent(context.Background(), e))
	return e
}

func (f *fixture) merchEvent(t *testing.T, stock int, mutate func(e *models.Event)) *models.Event {
	t.Helper()
	return f.normalEvent(t, func(e *models.Event) {
		e.Name = "Merch drop"
		e.Type = models.EventTypeMerchandise
		e.FormFields = nil
		e.Merchandise = []models.MerchandiseItem{
			{ID: uuid.NewString(), Position: 1, Name: "Hoodie", Sizes: models.StringList{"M", "L"}, StockQuantity: stock, PurchaseLimit: 2},
		}
		if mutate != nil {
			mutate(e)
		}
	})
}

func answers(t *testing.T, kv map[string]interface{}) map[string]json.RawMessage {
	t.Helper()
	out := make(map[string]json.RawMessage, len(kv))
	for k, v := range kv {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		out[k] = b
	}
	return out
}
