package service

import (
	"testing"
	"time"

	"campus-events/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func draftEvent() *models.Event {
	return &models.Event{
		ID:                   "evt-1",
		OrganizerID:          "org-1",
		Name:                 "Workshop",
		Type:                 models.EventTypeNormal,
		RegistrationDeadline: testNow.Add(24 * time.Hour),
		StartAt:              testNow.Add(48 * time.Hour),
		EndAt:                testNow.Add(50 * time.Hour),
		Capacity:             10,
		Status:               models.EventStatusDraft,
	}
}

func TestPublishRequiresSurface(t *testing.T) {
	e := draftEvent()
	_, _, err := PlanEventUpdate(e, UpdateEventRequest{Status: ptr(models.EventStatusPublished)})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	fields := models.FormFields{{Position: 1, Kind: models.FieldText, Name: "why", Title: "Why?"}}
	next, replace, err := PlanEventUpdate(e, UpdateEventRequest{
		FormFields: &fields,
		Status:     ptr(models.EventStatusPublished),
	})
	require.NoError(t, err)
	assert.True(t, replace)
	assert.Equal(t, models.EventStatusPublished, next.Status)
	assert.Equal(t, models.EventStatusDraft, e.Status, "input must not be modified")

	m := draftEvent()
	m.Type = models.EventTypeMerchandise
	_, _, err = PlanEventUpdate(m, UpdateEventRequest{Status: ptr(models.EventStatusPublished)})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestDraftCannotSkipPublishing(t *testing.T) {
	_, _, err := PlanEventUpdate(draftEvent(), UpdateEventRequest{Status: ptr(models.EventStatusOngoing)})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestDraftEditsAreValidated(t *testing.T) {
	dup := models.FormFields{
		{Position: 1, Kind: models.FieldText, Name: "a", Title: "A"},
		{Position: 2, Kind: models.FieldNumber, Name: "a", Title: "A again"},
	}
	_, _, err := PlanEventUpdate(draftEvent(), UpdateEventRequest{FormFields: &dup})
	assert.ErrorIs(t, err, models.ErrValidationFailed)

	items := []models.MerchandiseItem{{ID: "x", Name: "Mug", StockQuantity: 1}}
	_, _, err = PlanEventUpdate(draftEvent(), UpdateEventRequest{Merchandise: &items})
	assert.ErrorIs(t, err, models.ErrValidationFailed, "normal events cannot carry items")
}

func TestFormLockHoldsInAnyState(t *testing.T) {
	fields := models.FormFields{{Position: 1, Kind: models.FieldText, Name: "b", Title: "B"}}
	for _, status := range []models.EventStatus{models.EventStatusDraft, models.EventStatusPublished, models.EventStatusClosed} {
		e := draftEvent()
		e.Status = status
		e.FormLocked = true
		_, _, err := PlanEventUpdate(e, UpdateEventRequest{FormFields: &fields})
		assert.ErrorIs(t, err, models.ErrLockedField, status)
	}

	e := draftEvent()
	e.FormLocked = true
	next, replace, err := PlanEventUpdate(e, UpdateEventRequest{Name: ptr("Renamed")})
	require.NoError(t, err)
	assert.False(t, replace)
	assert.Equal(t, "Renamed", next.Name)
}

func TestPublishedEditsAreMonotonic(t *testing.T) {
	e := draftEvent()
	e.Status = models.EventStatusPublished

	_, _, err := PlanEventUpdate(e, UpdateEventRequest{RegistrationDeadline: ptr(e.RegistrationDeadline.Add(-time.Minute))})
	assert.ErrorIs(t, err, models.ErrLockedField)

	_, _, err = PlanEventUpdate(e, UpdateEventRequest{Capacity: ptr(9)})
	assert.ErrorIs(t, err, models.ErrLockedField)

	next, _, err := PlanEventUpdate(e, UpdateEventRequest{
		RegistrationDeadline: ptr(e.RegistrationDeadline.Add(time.Hour)),
		Capacity:             ptr(20),
		Description:          ptr("now with pizza"),
	})
	require.NoError(t, err)
	assert.Equal(t, 20, next.Capacity)
	assert.Equal(t, "now with pizza", next.Description)
	assert.True(t, next.RegistrationDeadline.After(e.RegistrationDeadline))

	next, _, err = PlanEventUpdate(e, UpdateEventRequest{Capacity: ptr(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, next.Capacity, "removing the limit is an increase")

	_, _, err = PlanEventUpdate(e, UpdateEventRequest{Name: ptr("Other")})
	assert.ErrorIs(t, err, models.ErrLockedField)
}

func TestCapacityGrows(t *testing.T) {
	assert.True(t, capacityGrows(0, 0))
	assert.False(t, capacityGrows(0, 5))
	assert.True(t, capacityGrows(5, 5))
	assert.True(t, capacityGrows(5, 0))
	assert.False(t, capacityGrows(5, -1))
}

func TestPublishedStatusTransitions(t *testing.T) {
	for _, to := range []models.EventStatus{models.EventStatusOngoing, models.EventStatusClosed, models.EventStatusCompleted} {
		e := draftEvent()
		e.Status = models.EventStatusPublished
		next, _, err := PlanEventUpdate(e, UpdateEventRequest{Status: ptr(to)})
		require.NoError(t, err)
		assert.Equal(t, to, next.Status)
	}

	e := draftEvent()
	e.Status = models.EventStatusPublished
	_, _, err := PlanEventUpdate(e, UpdateEventRequest{Status: ptr(models.EventStatusDraft)})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestLockedStatesOnlyMoveForward(t *testing.T) {
	for _, from := range []models.EventStatus{models.EventStatusOngoing, models.EventStatusCompleted, models.EventStatusClosed} {
		e := draftEvent()
		e.Status = from

		_, _, err := PlanEventUpdate(e, UpdateEventRequest{Description: ptr("x")})
		assert.ErrorIs(t, err, models.ErrLockedField, from)

		_, _, err = PlanEventUpdate(e, UpdateEventRequest{Status: ptr(models.EventStatusPublished)})
		assert.ErrorIs(t, err, models.ErrInvalidTransition, from)

		next, _, err := PlanEventUpdate(e, UpdateEventRequest{Status: ptr(models.EventStatusClosed)})
		require.NoError(t, err)
		assert.Equal(t, models.EventStatusClosed, next.Status)
	}
}

func TestUnknownStatusIsRejected(t *testing.T) {
	_, _, err := PlanEventUpdate(draftEvent(), UpdateEventRequest{Status: ptr(models.EventStatus("archived"))})
	assert.ErrorIs(t, err, models.ErrValidationFailed)
}

func TestDraftFieldsAreStoredInPositionOrder(t *testing.T) {
	fields := models.FormFields{
		{Position: 2, Kind: models.FieldText, Name: "b", Title: "B"},
		{Position: 1, Kind: models.FieldText, Name: "a", Title: "A"},
	}
	next, _, err := PlanEventUpdate(draftEvent(), UpdateEventRequest{FormFields: &fields})
	require.NoError(t, err)
	assert.Equal(t, "a", next.FormFields[0].Name)
}
