package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"campus-events/internal/models"
)

const scanColumns = `id, registration_id, scanned_at, scanned_by, method, note`

const overrideColumns = `id, registration_id, action, reason, actor_id, previous_value, new_value, created_at`

// MarkAttended records the first admission of a registration. Only the call
// that flips attended from false to true succeeds; every later call reports false.
// First-scan metadata left by an earlier admission is kept.
func (s *Store) MarkAttended(ctx context.Context, id string, at time.Time, by string, method models.ScanMethod) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE registrations SET attended = ?, first_scan_at = COALESCE(first_scan_at, ?),
			scanned_by = COALESCE(scanned_by, ?), scan_method = COALESCE(scan_method, ?), updated_at = ?
		WHERE id = ? AND attended = ?`),
		true, at.UTC(), by, method, now(), id, false)
	if err != nil {
		return false, fmt.Errorf("failed to mark attendance: %w", err)
	}
	return affected(res)
}

// SetAttendance forces the attended flag. Setting it keeps any existing
// first-scan metadata and fills it in only when absent; clearing it leaves the
// metadata untouched for the audit trail.
func (s *Store) SetAttendance(ctx context.Context, id string, attended bool, at time.Time, by string) error {
	if !attended {
		_, err := s.db.ExecContext(ctx,
			s.q("UPDATE registrations SET attended = ?, updated_at = ? WHERE id = ?"), false, now(), id)
		return err
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		UPDATE registrations SET attended = ?, first_scan_at = COALESCE(first_scan_at, ?),
			scanned_by = COALESCE(scanned_by, ?), scan_method = COALESCE(scan_method, ?), updated_at = ?
		WHERE id = ?`),
		true, at.UTC(), by, models.ScanMethodManualOverride, now(), id)
	return err
}

// AppendScanHistory adds one line to a registration's scan history
func (s *Store) AppendScanHistory(ctx context.Context, e *models.ScanEntry) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO scan_history (`+scanColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
		e.ID, e.RegistrationID, e.ScannedAt.UTC(), e.ScannedBy, e.Method, e.Note)
	if err != nil {
		return fmt.Errorf("failed to append scan history: %w", err)
	}
	return nil
}

// AppendOverride adds one line to the manual-override audit log
func (s *Store) AppendOverride(ctx context.Context, e *models.OverrideEntry) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO attendance_overrides (`+overrideColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.RegistrationID, e.Action, e.Reason, e.ActorID, e.PreviousValue, e.NewValue, e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to append override: %w", err)
	}
	return nil
}

// ListScanHistory returns a registration's scan history in the order it happened
func (s *Store) ListScanHistory(ctx context.Context, registrationID string) ([]models.ScanEntry, error) {
	var entries []models.ScanEntry
	err := s.db.SelectContext(ctx, &entries,
		s.q("SELECT "+scanColumns+" FROM scan_history WHERE registration_id = ?"), registrationID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ScannedAt.Before(entries[j].ScannedAt) })
	return entries, nil
}

// ListOverrides returns a registration's override log in the order it happened
func (s *Store) ListOverrides(ctx context.Context, registrationID string) ([]models.OverrideEntry, error) {
	var entries []models.OverrideEntry
	err := s.db.SelectContext(ctx, &entries,
		s.q("SELECT "+overrideColumns+" FROM attendance_overrides WHERE registration_id = ?"), registrationID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries, nil
}
