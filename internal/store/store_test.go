package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"campus-events/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "events.db") + "?_pragma=busy_timeout(5000)"
	s, err := NewStore(DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedEvent(t *testing.T, s *Store, mutate func(e *models.Event)) *models.Event {
	t.Helper()
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	e := &models.Event{
		ID:                   uuid.NewString(),
		OrganizerID:          "org-1",
		Name:                 "Hackathon",
		Type:                 models.EventTypeNormal,
		RegistrationDeadline: start.Add(-time.Hour),
		StartAt:              start,
		EndAt:                start.Add(4 * time.Hour),
		Status:               models.EventStatusPublished,
		Tags:                 models.StringList{"tech"},
		FormFields: models.FormFields{
			{Position: 1, Kind: models.FieldText, Name: "team", Title: "Team"},
		},
	}
	if mutate != nil {
		mutate(e)
	}
	require.NoError(t, s.CreateEvent(context.Background(), e))
	return e
}

func seedRegistration(t *testing.T, s *Store, eventID, participantID string) *models.Registration {
	t.Helper()
	ticket := uuid.NewString()
	r := &models.Registration{
		ID:            uuid.NewString(),
		EventID:       eventID,
		ParticipantID: participantID,
		Status:        models.RegistrationUpcoming,
		TicketID:      &ticket,
	}
	created, err := s.CreateRegistration(context.Background(), r)
	require.NoError(t, err)
	require.True(t, created)
	return r
}

func TestCreateAndGetEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := seedEvent(t, s, func(e *models.Event) {
		e.Type = models.EventTypeMerchandise
		e.FormFields = nil
		e.Merchandise = []models.MerchandiseItem{
			{ID: "tee", Position: 2, Name: "T-shirt", Sizes: models.StringList{"S", "M"}, StockQuantity: 5},
			{ID: "mug", Position: 1, Name: "Mug", StockQuantity: 3, PurchaseLimit: 1},
		}
	})

	got, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Name, got.Name)
	assert.Equal(t, models.EventTypeMerchandise, got.Type)
	assert.True(t, e.StartAt.Equal(got.StartAt))
	assert.Equal(t, models.StringList{"tech"}, got.Tags)
	require.Len(t, got.Merchandise, 2)
	assert.Equal(t, "mug", got.Merchandise[0].ID)
	assert.Equal(t, models.StringList{"S", "M"}, got.Merchandise[1].Sizes)

	_, err = s.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListEventsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedEvent(t, s, nil)
	seedEvent(t, s, func(e *models.Event) { e.Status = models.EventStatusDraft })
	seedEvent(t, s, func(e *models.Event) { e.OrganizerID = "org-2" })

	all, err := s.ListEvents(ctx, EventFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	published, err := s.ListEvents(ctx, EventFilter{Statuses: []models.EventStatus{models.EventStatusPublished}})
	require.NoError(t, err)
	assert.Len(t, published, 2)

	mine, err := s.ListEvents(ctx, EventFilter{OrganizerID: "org-1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestUpdateEventGuardsStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := seedEvent(t, s, nil)

	e.Status = models.EventStatusClosed
	require.NoError(t, s.UpdateEvent(ctx, e, models.EventStatusPublished, false))

	// a second writer still believing the event is published loses
	e.Status = models.EventStatusOngoing
	err := s.UpdateEvent(ctx, e, models.EventStatusPublished, false)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestUpdateEventSurfaceRespectsFormLock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := seedEvent(t, s, func(e *models.Event) { e.Status = models.EventStatusDraft })

	e.FormFields = append(e.FormFields, models.FormField{Position: 2, Kind: models.FieldNumber, Name: "age", Title: "Age"})
	require.NoError(t, s.UpdateEvent(ctx, e, models.EventStatusDraft, true))

	require.NoError(t, s.LockForm(ctx, e.ID))
	e.FormFields = nil
	err := s.UpdateEvent(ctx, e, models.EventStatusDraft, true)
	assert.ErrorIs(t, err, models.ErrLockedField)

	got, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, got.FormLocked)
	assert.Len(t, got.FormFields, 2)
}

func TestClaimSeatNeverExceedsCapacity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := seedEvent(t, s, func(e *models.Event) { e.Capacity = 3 })

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ClaimSeat(ctx, e.ID)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, granted)

	require.NoError(t, s.ReleaseSeat(ctx, e.ID))
	ok, err := s.ClaimSeat(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClaimSeatUnlimited(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := seedEvent(t, s, nil)

	for i := 0; i < 5; i++ {
		ok, err := s.ClaimSeat(ctx, e.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestDecrementStockNeverNegative(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedEvent(t, s, func(e *models.Event) {
		e.Type = models.EventTypeMerchandise
		e.FormFields = nil
		e.Merchandise = []models.MerchandiseItem{{ID: "hoodie", Name: "Hoodie", StockQuantity: 2}}
	})

	ok, err := s.DecrementStock(ctx, "hoodie", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.DecrementStock(ctx, "hoodie", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DecrementStock(ctx, "hoodie", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RestoreStock(ctx, "hoodie", 1))
	level, err := s.StockLevel(ctx, "hoodie")
	require.NoError(t, err)
	assert.Equal(t, 1, level)
}

func TestCreateRegistrationIsUniquePerParticipant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := seedEvent(t, s, nil)
	first := seedRegistration(t, s, e.ID, "alice")

	dup := &models.Registration{
		ID:            uuid.NewString(),
		EventID:       e.ID,
		ParticipantID: "alice",
		Status:        models.RegistrationUpcoming,
	}
	created, err := s.CreateRegistration(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.GetRegistrationByParticipant(ctx, e.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	byTicket, err := s.GetRegistrationByTicket(ctx, e.ID, *first.TicketID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, byTicket.ID)

	_, err = s.GetRegistrationByTicket(ctx, "other-event", *first.TicketID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCancelAndReactivateRegistration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := seedEvent(t, s, nil)
	r := seedRegistration(t, s, e.ID, "bob")

	ok, err := s.CancelRegistration(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CancelRegistration(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetRegistration(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationCancelled, got.Status)
	assert.Nil(t, got.TicketID)

	ticket := uuid.NewString()
	got.TicketID = &ticket
	ok, err = s.ReactivateRegistration(ctx, got)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = s.GetRegistration(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationUpcoming, got.Status)
	require.NotNil(t, got.TicketID)
	assert.Equal(t, ticket, *got.TicketID)
}

func TestPaymentTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := seedEvent(t, s, func(e *models.Event) {
		e.Type = models.EventTypeMerchandise
		e.FormFields = nil
	})

	awaiting := models.PaymentAwaiting
	r := &models.Registration{
		ID:            uuid.NewString(),
		EventID:       e.ID,
		ParticipantID: "carol",
		Status:        models.RegistrationUpcoming,
		PaymentStatus: &awaiting,
	}
	created, err := s.CreateRegistration(ctx, r)
	require.NoError(t, err)
	require.True(t, created)

	ok, err := s.RejectOrder(ctx, r.ID, "blurry")
	require.NoError(t, err)
	assert.False(t, ok, "only pending orders can be rejected")

	ok, err = s.SubmitPaymentProof(ctx, r.ID, "https://proofs.example/1.png")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.RejectOrder(ctx, r.ID, "blurry")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetRegistration(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRejected, got.Payment())
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "blurry", *got.RejectionReason)

	ok, err = s.SubmitPaymentProof(ctx, r.ID, "https://proofs.example/2.png")
	require.NoError(t, err)
	assert.True(t, ok)

	item, ticket := "tee", uuid.NewString()
	got.ItemID, got.Quantity, got.TicketID = &item, 2, &ticket
	ok, err = s.ApproveOrder(ctx, got)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ApproveOrder(ctx, got)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = s.GetRegistration(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccessful, got.Payment())
	assert.Nil(t, got.RejectionReason)
	assert.Equal(t, 2, got.Quantity)
}

func TestMarkAttendedFirstScanWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := seedEvent(t, s, nil)
	r := seedRegistration(t, s, e.ID, "dave")

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.MarkAttended(ctx, r.ID, time.Now(), "org-1", models.ScanMethodQR)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	got, err := s.GetRegistration(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.Attended)
	require.NotNil(t, got.FirstScanAt)
	require.NotNil(t, got.ScanMethod)
	assert.Equal(t, models.ScanMethodQR, *got.ScanMethod)
}

func TestSetAttendanceKeepsFirstScan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := seedEvent(t, s, nil)
	r := seedRegistration(t, s, e.ID, "erin")

	first := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	_, err := s.MarkAttended(ctx, r.ID, first, "org-1", models.ScanMethodQR)
	require.NoError(t, err)

	require.NoError(t, s.SetAttendance(ctx, r.ID, false, time.Now(), "org-1"))
	require.NoError(t, s.SetAttendance(ctx, r.ID, true, time.Now(), "org-2"))

	got, err := s.GetRegistration(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.Attended)
	require.NotNil(t, got.FirstScanAt)
	assert.True(t, first.Equal(*got.FirstScanAt))
	assert.Equal(t, "org-1", *got.ScannedBy)
}

func TestRescanAfterUnsetKeepsFirstScan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := seedEvent(t, s, nil)
	r := seedRegistration(t, s, e.ID, "frank")

	first := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	ok, err := s.MarkAttended(ctx, r.ID, first, "org-1", models.ScanMethodQR)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.SetAttendance(ctx, r.ID, false, time.Now(), "org-1"))

	ok, err = s.MarkAttended(ctx, r.ID, time.Now(), "org-2", models.ScanMethodManualEntry)
	require.NoError(t, err)
	assert.True(t, ok, "an unset registration can be admitted again")

	got, err := s.GetRegistration(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.Attended)
	require.NotNil(t, got.FirstScanAt)
	assert.True(t, first.Equal(*got.FirstScanAt))
	require.NotNil(t, got.ScannedBy)
	assert.Equal(t, "org-1", *got.ScannedBy)
	require.NotNil(t, got.ScanMethod)
	assert.Equal(t, models.ScanMethodQR, *got.ScanMethod)
}

func TestHistoryIsAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := seedEvent(t, s, nil)
	r := seedRegistration(t, s, e.ID, "frank")

	base := time.Now().UTC()
	for i, note := range []string{"", "duplicate scan attempt"} {
		require.NoError(t, s.AppendScanHistory(ctx, &models.ScanEntry{
			ID:             uuid.NewString(),
			RegistrationID: r.ID,
			ScannedAt:      base.Add(time.Duration(i) * time.Second),
			ScannedBy:      "org-1",
			Method:         models.ScanMethodQR,
			Note:           note,
		}))
	}
	require.NoError(t, s.AppendOverride(ctx, &models.OverrideEntry{
		ID:             uuid.NewString(),
		RegistrationID: r.ID,
		Action:         models.OverrideUnset,
		Reason:         "left early",
		ActorID:        "org-1",
		PreviousValue:  true,
		CreatedAt:      base,
	}))

	scans, err := s.ListScanHistory(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, "duplicate scan attempt", scans[1].Note)

	overrides, err := s.ListOverrides(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Equal(t, "left early", overrides[0].Reason)
	assert.True(t, overrides[0].PreviousValue)
}

func TestOrganizerWebhookUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	url, err := s.GetOrganizerWebhook(ctx, "org-1")
	require.NoError(t, err)
	assert.Empty(t, url)

	require.NoError(t, s.SetOrganizerWebhook(ctx, "org-1", "https://discord.example/a"))
	require.NoError(t, s.SetOrganizerWebhook(ctx, "org-1", "https://discord.example/b"))

	url, err = s.GetOrganizerWebhook(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "https://discord.example/b", url)
}
