package service

import (
	"context"
	"fmt"
	"strings"

	"campus-events/internal/models"
	"campus-events/internal/store"
	"campus-events/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const duplicateScanNote = "duplicate scan attempt"

// AttendanceService checks ticket holders in and keeps the attendance audit trail
type AttendanceService struct {
	store  *store.Store
	logger *zap.Logger
	now    Clock
}

// NewAttendanceService creates a new attendance service
func NewAttendanceService(store *store.Store) *AttendanceService {
	return &AttendanceService{
		store:  store,
		logger: util.GetLogger(),
		now:    systemClock,
	}
}

// Scan admits the holder of ticketID. The first successful scan of a ticket
// reports scanned; every later scan reports duplicate with the original
// first-scan details.
func (s *AttendanceService) Scan(ctx context.Context, actor models.Actor, eventID, ticketID string, method models.ScanMethod) (*models.ScanOutcome, error) {
	ctx, span := util.StartSpan(ctx, "AttendanceService.Scan")
	defer span.End()

	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, e); err != nil {
		return nil, err
	}

	switch method {
	case "":
		method = models.ScanMethodQR
	case models.ScanMethodQR, models.ScanMethodManualEntry:
	default:
		return nil, models.Fail(models.ErrValidationFailed, "unknown scan method %q", method)
	}

	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, models.Fail(models.ErrValidationFailed, "ticket id is required")
	}

	r, err := s.store.GetRegistrationByTicket(ctx, e.ID, ticketID)
	if err != nil {
		util.ScansTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}

	now := s.now()
	if err := completeOnRead(ctx, s.store, e, r, now); err != nil {
		return nil, err
	}
	if err := admissible(e, r); err != nil {
		util.ScansTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	marked, err := s.store.MarkAttended(ctx, r.ID, now, actor.ID, method)
	if err != nil {
		return nil, err
	}

	result := models.ScanScanned
	entry := &models.ScanEntry{
		ID:             uuid.NewString(),
		RegistrationID: r.ID,
		ScannedAt:      now,
		ScannedBy:      actor.ID,
		Method:         method,
	}
	if !marked {
		result = models.ScanDuplicate
		entry.Note = duplicateScanNote
	}
	if err := s.store.AppendScanHistory(ctx, entry); err != nil {
		return nil, err
	}

	util.ScansTotal.WithLabelValues(string(result)).Inc()
	s.logger.Info("Ticket scanned",
		zap.String("registration_id", r.ID),
		zap.String("result", string(result)),
		zap.String("scanned_by", actor.ID))

	fresh, err := readRegistration(ctx, s.store, e, r.ID, now)
	if err != nil {
		return nil, err
	}
	return &models.ScanOutcome{Result: result, Registration: fresh}, nil
}

func admissible(e *models.Event, r *models.Registration) error {
	state, err := r.State(e.Type)
	if err != nil {
		return models.Fail(models.ErrInvalidTicket, "ticket is not valid: %s", err)
	}
	if !state.Admissible() {
		if _, ok := state.(models.MerchandiseOrderState); ok {
			return models.Fail(models.ErrInvalidTicket, "order payment is %s", r.Payment())
		}
		return models.Fail(models.ErrInvalidTicket, "registration is cancelled")
	}
	return nil
}

// OverrideRequest is an organizer's manual attendance change
type OverrideRequest struct {
	Action models.OverrideAction `json:"action" binding:"required"`
	Reason string                `json:"reason"`
}

// ManualOverride forces a registration's attended flag. Every call is
// recorded in both the scan history and the override audit log.
func (s *AttendanceService) ManualOverride(ctx context.Context, actor models.Actor, registrationID string, req *OverrideRequest) (*models.Registration, error) {
	ctx, span := util.StartSpan(ctx, "AttendanceService.ManualOverride")
	defer span.End()

	r, e, err := loadRegistration(ctx, s.store, registrationID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, e); err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, models.Fail(models.ErrValidationFailed, "a reason is required for manual overrides")
	}

	var attended bool
	switch req.Action {
	case models.OverrideSet:
		if err := admissible(e, r); err != nil {
			return nil, err
		}
		attended = true
	case models.OverrideUnset:
	default:
		return nil, models.Fail(models.ErrValidationFailed, "action must be set or unset")
	}

	now := s.now()
	if err := s.store.SetAttendance(ctx, r.ID, attended, now, actor.ID); err != nil {
		return nil, fmt.Errorf("failed to apply override: %w", err)
	}

	if err := s.store.AppendScanHistory(ctx, &models.ScanEntry{
		ID:             uuid.NewString(),
		RegistrationID: r.ID,
		ScannedAt:      now,
		ScannedBy:      actor.ID,
		Method:         models.ScanMethodManualOverride,
		Note:           fmt.Sprintf("manual %s: %s", req.Action, reason),
	}); err != nil {
		return nil, err
	}
	if err := s.store.AppendOverride(ctx, &models.OverrideEntry{
		ID:             uuid.NewString(),
		RegistrationID: r.ID,
		Action:         req.Action,
		Reason:         reason,
		ActorID:        actor.ID,
		PreviousValue:  r.Attended,
		NewValue:       attended,
		CreatedAt:      now,
	}); err != nil {
		return nil, err
	}

	util.OverridesTotal.WithLabelValues(string(req.Action)).Inc()
	s.logger.Info("Attendance overridden",
		zap.String("registration_id", r.ID),
		zap.String("action", string(req.Action)),
		zap.Bool("previous", r.Attended))

	fresh, err := readRegistration(ctx, s.store, e, r.ID, now)
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

// AttendanceHistory is the audit trail of one registration
type AttendanceHistory struct {
	Scans     []models.ScanEntry     `json:"scans"`
	Overrides []models.OverrideEntry `json:"overrides"`
}

// History returns a registration's scan history and override log to its
// participant or to the event's organizer
func (s *AttendanceService) History(ctx context.Context, actor models.Actor, registrationID string) (*AttendanceHistory, error) {
	ctx, span := util.StartSpan(ctx, "AttendanceService.History")
	defer span.End()

	r, e, err := loadRegistration(ctx, s.store, registrationID)
	if err != nil {
		return nil, err
	}
	if err := requireViewer(actor, e, r); err != nil {
		return nil, err
	}

	scans, err := s.store.ListScanHistory(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	overrides, err := s.store.ListOverrides(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	return &AttendanceHistory{Scans: scans, Overrides: overrides}, nil
}
