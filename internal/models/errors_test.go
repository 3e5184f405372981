package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesByKind(t *testing.T) {
	err := fmt.Errorf("purchase: %w", Fail(ErrOutOfStock, "only %d left", 0))

	assert.True(t, errors.Is(err, ErrOutOfStock))
	assert.False(t, errors.Is(err, ErrCapacityReached))
	assert.Equal(t, KindOutOfStock, KindOf(err))
	assert.Contains(t, err.Error(), "OUT_OF_STOCK: only 0 left")
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("boom")))
	assert.Equal(t, "NOT_FOUND", ErrNotFound.Error())
}

func TestCompleteIfEnded(t *testing.T) {
	end := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	e := &Event{EndAt: end}

	r := &Registration{Status: RegistrationUpcoming}
	assert.False(t, CompleteIfEnded(r, e, end.Add(-time.Minute)))
	assert.True(t, CompleteIfEnded(r, e, end.Add(time.Minute)))
	assert.Equal(t, RegistrationCompleted, r.Status)

	cancelled := &Registration{Status: RegistrationCancelled}
	assert.False(t, CompleteIfEnded(cancelled, e, end.Add(time.Minute)))
	assert.Equal(t, RegistrationCancelled, cancelled.Status)
}
