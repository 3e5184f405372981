package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"campus-events/internal/models"
)

const registrationColumns = `id, event_id, participant_id, participant_email, status, payment_status,
	form_responses, item_id, quantity, ticket_id, qr_image, qr_content_type, attended, first_scan_at,
	scanned_by, scan_method, payment_proof, rejection_reason, created_at, updated_at`

// CreateRegistration inserts a registration unless one already exists for the
// same (event, participant) pair. It reports whether the row was created.
func (s *Store) CreateRegistration(ctx context.Context, r *models.Registration) (bool, error) {
	ts := now()
	r.CreatedAt, r.UpdatedAt = ts, ts

	res, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO registrations (`+registrationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id, participant_id) DO NOTHING`),
		r.ID, r.EventID, r.ParticipantID, r.ParticipantEmail, r.Status, r.PaymentStatus,
		r.FormResponses, r.ItemID, r.Quantity, r.TicketID, r.QRImage, r.QRContentType, r.Attended, r.FirstScanAt,
		r.ScannedBy, r.ScanMethod, r.PaymentProof, r.RejectionReason, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert registration: %w", err)
	}
	return affected(res)
}

func (s *Store) getRegistration(ctx context.Context, where string, args ...interface{}) (*models.Registration, error) {
	var r models.Registration
	err := s.db.GetContext(ctx, &r, s.q("SELECT "+registrationColumns+" FROM registrations WHERE "+where), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.Fail(models.ErrNotFound, "registration not found")
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRegistration retrieves a registration by id
func (s *Store) GetRegistration(ctx context.Context, id string) (*models.Registration, error) {
	return s.getRegistration(ctx, "id = ?", id)
}

// GetRegistrationByParticipant retrieves the registration of a participant for an event
func (s *Store) GetRegistrationByParticipant(ctx context.Context, eventID, participantID string) (*models.Registration, error) {
	return s.getRegistration(ctx, "event_id = ? AND participant_id = ?", eventID, participantID)
}

// GetRegistrationByTicket retrieves the registration holding a ticket for an event
func (s *Store) GetRegistrationByTicket(ctx context.Context, eventID, ticketID string) (*models.Registration, error) {
	return s.getRegistration(ctx, "event_id = ? AND ticket_id = ?", eventID, ticketID)
}

// ListEventRegistrations retrieves every registration of an event, oldest first
func (s *Store) ListEventRegistrations(ctx context.Context, eventID string) ([]models.Registration, error) {
	var regs []models.Registration
	err := s.db.SelectContext(ctx, &regs,
		s.q("SELECT "+registrationColumns+" FROM registrations WHERE event_id = ?"), eventID)
	if err != nil {
		return nil, err
	}
	sortByCreation(regs)
	return regs, nil
}

// ListParticipantRegistrations retrieves every registration of a participant, oldest first
func (s *Store) ListParticipantRegistrations(ctx context.Context, participantID string) ([]models.Registration, error) {
	var regs []models.Registration
	err := s.db.SelectContext(ctx, &regs,
		s.q("SELECT "+registrationColumns+" FROM registrations WHERE participant_id = ?"), participantID)
	if err != nil {
		return nil, err
	}
	sortByCreation(regs)
	return regs, nil
}

func sortByCreation(regs []models.Registration) {
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].CreatedAt.Equal(regs[j].CreatedAt) {
			return regs[i].ID < regs[j].ID
		}
		return regs[i].CreatedAt.Before(regs[j].CreatedAt)
	})
}

// ReactivateRegistration turns a cancelled registration back into an upcoming
// one with fresh responses and ticket. Attendance from the previous
// participation is cleared. It reports false when the row was not cancelled.
func (s *Store) ReactivateRegistration(ctx context.Context, r *models.Registration) (bool, error) {
	r.UpdatedAt = now()
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE registrations SET status = ?, participant_email = ?, form_responses = ?, ticket_id = ?,
			qr_image = ?, qr_content_type = ?, attended = ?, first_scan_at = NULL, scanned_by = NULL,
			scan_method = NULL, updated_at = ?
		WHERE id = ? AND status = ?`),
		models.RegistrationUpcoming, r.ParticipantEmail, r.FormResponses, r.TicketID,
		r.QRImage, r.QRContentType, false, r.UpdatedAt,
		r.ID, models.RegistrationCancelled)
	if err != nil {
		return false, fmt.Errorf("failed to reactivate registration: %w", err)
	}
	return affected(res)
}

// CancelRegistration marks a registration cancelled and revokes its ticket.
// It reports false when the registration was already cancelled.
func (s *Store) CancelRegistration(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE registrations SET status = ?, ticket_id = NULL, qr_image = NULL, qr_content_type = NULL, updated_at = ?
		WHERE id = ? AND status = ?`),
		models.RegistrationCancelled, now(), id, models.RegistrationUpcoming)
	if err != nil {
		return false, fmt.Errorf("failed to cancel registration: %w", err)
	}
	return affected(res)
}

// CompleteRegistration persists the UPCOMING -> COMPLETED transition of one registration
func (s *Store) CompleteRegistration(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		s.q("UPDATE registrations SET status = ?, updated_at = ? WHERE id = ? AND status = ?"),
		models.RegistrationCompleted, now(), id, models.RegistrationUpcoming)
	return err
}

// CompleteEventRegistrations persists the UPCOMING -> COMPLETED transition for
// every registration of an ended event
func (s *Store) CompleteEventRegistrations(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx,
		s.q("UPDATE registrations SET status = ?, updated_at = ? WHERE event_id = ? AND status = ?"),
		models.RegistrationCompleted, now(), eventID, models.RegistrationUpcoming)
	return err
}

// SubmitPaymentProof attaches a payment proof to an order awaiting payment or
// previously rejected, moving it to pending approval. It reports false when
// the order is in any other payment state.
func (s *Store) SubmitPaymentProof(ctx context.Context, id, proof string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE registrations SET payment_status = ?, payment_proof = ?, rejection_reason = NULL, updated_at = ?
		WHERE id = ? AND payment_status IN (?, ?)`),
		models.PaymentPendingApproval, proof, now(), id, models.PaymentAwaiting, models.PaymentRejected)
	if err != nil {
		return false, fmt.Errorf("failed to submit payment proof: %w", err)
	}
	return affected(res)
}

// RejectOrder moves a pending order to rejected with the organizer's reason
func (s *Store) RejectOrder(ctx context.Context, id, reason string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE registrations SET payment_status = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ? AND payment_status = ?`),
		models.PaymentRejected, reason, now(), id, models.PaymentPendingApproval)
	if err != nil {
		return false, fmt.Errorf("failed to reject order: %w", err)
	}
	return affected(res)
}

// ApproveOrder moves a pending order to successful, recording the approved
// item and quantity together with its ticket
func (s *Store) ApproveOrder(ctx context.Context, r *models.Registration) (bool, error) {
	r.UpdatedAt = now()
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE registrations SET payment_status = ?, item_id = ?, quantity = ?, ticket_id = ?, qr_image = ?,
			qr_content_type = ?, rejection_reason = NULL, updated_at = ?
		WHERE id = ? AND payment_status = ?`),
		models.PaymentSuccessful, r.ItemID, r.Quantity, r.TicketID, r.QRImage,
		r.QRContentType, r.UpdatedAt, r.ID, models.PaymentPendingApproval)
	if err != nil {
		return false, fmt.Errorf("failed to approve order: %w", err)
	}
	return affected(res)
}
