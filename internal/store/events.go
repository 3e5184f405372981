package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campus-events/internal/models"

	"github.com/jmoiron/sqlx"
)

const eventColumns = `id, organizer_id, name, description, type, iiit_only, registration_deadline,
	start_at, end_at, capacity, fee, tags, form_fields, status, form_locked, seats_taken,
	created_at, updated_at`

const itemColumns = `id, event_id, position, name, sizes, colors, variants, stock_quantity, purchase_limit`

// EventFilter narrows ListEvents
type EventFilter struct {
	OrganizerID string
	Statuses    []models.EventStatus
}

// CreateEvent inserts an event together with its merchandise items
func (s *Store) CreateEvent(ctx context.Context, e *models.Event) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := now()
	e.CreatedAt, e.UpdatedAt = ts, ts

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.OrganizerID, e.Name, e.Description, e.Type, e.IIITOnly, e.RegistrationDeadline.UTC(),
		e.StartAt.UTC(), e.EndAt.UTC(), e.Capacity, e.Fee, e.Tags, e.FormFields, e.Status, e.FormLocked, e.SeatsTaken,
		e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	if err := s.insertItems(ctx, tx, e.ID, e.Merchandise); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) insertItems(ctx context.Context, tx *sqlx.Tx, eventID string, items []models.MerchandiseItem) error {
	for i := range items {
		item := &items[i]
		item.EventID = eventID
		_, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO merchandise_items (`+itemColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			item.ID, item.EventID, item.Position, item.Name, item.Sizes, item.Colors, item.Variants,
			item.StockQuantity, item.PurchaseLimit)
		if err != nil {
			return fmt.Errorf("failed to insert merchandise item: %w", err)
		}
	}
	return nil
}

// GetEvent retrieves an event with its merchandise items
func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var e models.Event
	err := s.db.GetContext(ctx, &e, s.q("SELECT "+eventColumns+" FROM events WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.Fail(models.ErrNotFound, "event %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	items, err := s.GetItems(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Merchandise = items
	return &e, nil
}

// GetItems retrieves the merchandise items of an event in position order
func (s *Store) GetItems(ctx context.Context, eventID string) ([]models.MerchandiseItem, error) {
	var items []models.MerchandiseItem
	err := s.db.SelectContext(ctx, &items,
		s.q("SELECT "+itemColumns+" FROM merchandise_items WHERE event_id = ? ORDER BY position, id"), eventID)
	return items, err
}

// ListEvents retrieves events matching the filter, newest first
func (s *Store) ListEvents(ctx context.Context, filter EventFilter) ([]models.Event, error) {
	query := "SELECT " + eventColumns + " FROM events WHERE 1 = 1"
	var args []interface{}

	if filter.OrganizerID != "" {
		query += " AND organizer_id = ?"
		args = append(args, filter.OrganizerID)
	}
	if len(filter.Statuses) > 0 {
		q, inArgs, err := sqlx.In(" AND status IN (?)", filter.Statuses)
		if err != nil {
			return nil, err
		}
		query += q
		args = append(args, inArgs...)
	}
	query += " ORDER BY start_at DESC, id"

	var events []models.Event
	if err := s.db.SelectContext(ctx, &events, s.q(query), args...); err != nil {
		return nil, err
	}

	for i := range events {
		items, err := s.GetItems(ctx, events[i].ID)
		if err != nil {
			return nil, err
		}
		events[i].Merchandise = items
	}
	return events, nil
}

// UpdateEvent writes the mutable columns of an event. The write only applies
// while the event is still in prevStatus, so two racing transitions cannot
// both succeed. When replaceSurface is set, form fields and merchandise items
// are rewritten as well, but only while the form lock is still open.
func (s *Store) UpdateEvent(ctx context.Context, e *models.Event, prevStatus models.EventStatus, replaceSurface bool) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	e.UpdatedAt = now()
	query := `
		UPDATE events SET name = ?, description = ?, type = ?, iiit_only = ?, registration_deadline = ?,
			start_at = ?, end_at = ?, capacity = ?, fee = ?, tags = ?, form_fields = ?, status = ?, updated_at = ?
		WHERE id = ? AND status = ?`
	args := []interface{}{
		e.Name, e.Description, e.Type, e.IIITOnly, e.RegistrationDeadline.UTC(),
		e.StartAt.UTC(), e.EndAt.UTC(), e.Capacity, e.Fee, e.Tags, e.FormFields, e.Status, e.UpdatedAt,
		e.ID, prevStatus,
	}
	if replaceSurface {
		query += " AND form_locked = ?"
		args = append(args, false)
	}

	res, err := tx.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		var current models.Event
		err := tx.GetContext(ctx, &current, s.q("SELECT "+eventColumns+" FROM events WHERE id = ?"), e.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return models.Fail(models.ErrNotFound, "event %s not found", e.ID)
		}
		if err != nil {
			return err
		}
		if replaceSurface && current.FormLocked {
			return models.Fail(models.ErrLockedField, "form fields and merchandise are locked after the first registration")
		}
		return models.Fail(models.ErrInvalidTransition, "event changed to %s concurrently", current.Status)
	}

	if replaceSurface {
		if _, err := tx.ExecContext(ctx, s.q("DELETE FROM merchandise_items WHERE event_id = ?"), e.ID); err != nil {
			return fmt.Errorf("failed to clear merchandise items: %w", err)
		}
		if err := s.insertItems(ctx, tx, e.ID, e.Merchandise); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LockForm permanently freezes the event's form fields and merchandise
func (s *Store) LockForm(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx,
		s.q("UPDATE events SET form_locked = ? WHERE id = ? AND form_locked = ?"),
		true, eventID, false)
	return err
}

// ClaimSeat takes one seat of the event's capacity in a single conditional
// update. It reports false when the event is full. Events without a capacity
// always grant the seat.
func (s *Store) ClaimSeat(ctx context.Context, eventID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE events SET seats_taken = seats_taken + 1
		WHERE id = ? AND (capacity <= 0 OR seats_taken < capacity)`), eventID)
	if err != nil {
		return false, fmt.Errorf("failed to claim seat: %w", err)
	}
	return affected(res)
}

// ReleaseSeat gives back a seat claimed with ClaimSeat
func (s *Store) ReleaseSeat(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx,
		s.q("UPDATE events SET seats_taken = seats_taken - 1 WHERE id = ? AND seats_taken > 0"), eventID)
	return err
}

// SetOrganizerWebhook stores the organizer's announcement target
func (s *Store) SetOrganizerWebhook(ctx context.Context, organizerID, url string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO organizer_settings (organizer_id, webhook_url, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (organizer_id) DO UPDATE SET webhook_url = excluded.webhook_url, updated_at = excluded.updated_at`),
		organizerID, url, now())
	return err
}

// GetOrganizerWebhook returns the organizer's announcement target, or "" when none is configured
func (s *Store) GetOrganizerWebhook(ctx context.Context, organizerID string) (string, error) {
	var url string
	err := s.db.GetContext(ctx, &url,
		s.q("SELECT webhook_url FROM organizer_settings WHERE organizer_id = ?"), organizerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return url, err
}
