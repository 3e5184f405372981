package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventType distinguishes registration events from merchandise sales
type EventType string

const (
	EventTypeNormal      EventType = "normal"
	EventTypeMerchandise EventType = "merchandise"
)

// EventStatus is the lifecycle state of an event
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusOngoing   EventStatus = "ongoing"
	EventStatusCompleted EventStatus = "completed"
	EventStatusClosed    EventStatus = "closed"
)

// Valid reports whether s is a known status
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusDraft, EventStatusPublished, EventStatusOngoing, EventStatusCompleted, EventStatusClosed:
		return true
	}
	return false
}

// Event represents an organizer-owned activity
type Event struct {
	ID                   string      `db:"id" json:"id"`
	OrganizerID          string      `db:"organizer_id" json:"organizer_id"`
	Name                 string      `db:"name" json:"name"`
	Description          string      `db:"description" json:"description"`
	Type                 EventType   `db:"type" json:"type"`
	IIITOnly             bool        `db:"iiit_only" json:"iiit_only"`
	RegistrationDeadline time.Time   `db:"registration_deadline" json:"registration_deadline"`
	StartAt              time.Time   `db:"start_at" json:"start_at"`
	EndAt                time.Time   `db:"end_at" json:"end_at"`
	Capacity             int         `db:"capacity" json:"capacity"`
	Fee                  float64     `db:"fee" json:"fee"`
	Tags                 StringList  `db:"tags" json:"tags"`
	FormFields           FormFields  `db:"form_fields" json:"form_fields"`
	Status               EventStatus `db:"status" json:"status"`
	FormLocked           bool        `db:"form_locked" json:"form_locked"`
	SeatsTaken           int         `db:"seats_taken" json:"seats_taken"`
	CreatedAt            time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at" json:"updated_at"`

	Merchandise []MerchandiseItem `db:"-" json:"merchandise,omitempty"`
}

// OpenForRegistration reports whether the event accepts new registrations or orders
func (e *Event) OpenForRegistration() bool {
	return e.Status == EventStatusPublished || e.Status == EventStatusOngoing
}

// DeadlinePassed reports whether the registration deadline is behind now
func (e *Event) DeadlinePassed(now time.Time) bool {
	return !e.RegistrationDeadline.IsZero() && now.After(e.RegistrationDeadline)
}

// Ended reports whether the event end time is behind now
func (e *Event) Ended(now time.Time) bool {
	return !e.EndAt.IsZero() && now.After(e.EndAt)
}

// HasCapacity reports whether a capacity limit is configured
func (e *Event) HasCapacity() bool {
	return e.Capacity > 0
}

// Item returns the merchandise item with the given id
func (e *Event) Item(itemID string) (*MerchandiseItem, bool) {
	for i := range e.Merchandise {
		if e.Merchandise[i].ID == itemID {
			return &e.Merchandise[i], true
		}
	}
	return nil, false
}

// ValidateDefinition checks the structural rules of the event's
// custom surface: type exclusivity, unique field names and choice rules.
func (e *Event) ValidateDefinition() error {
	if e.Name == "" {
		return Fail(ErrValidationFailed, "event name is required")
	}
	switch e.Type {
	case EventTypeNormal:
		if len(e.Merchandise) > 0 {
			return Fail(ErrValidationFailed, "normal events cannot carry merchandise items")
		}
	case EventTypeMerchandise:
		if len(e.FormFields) > 0 {
			return Fail(ErrValidationFailed, "merchandise events cannot carry form fields")
		}
	default:
		return Fail(ErrValidationFailed, "unknown event type %q", e.Type)
	}
	if e.Capacity < 0 {
		return Fail(ErrValidationFailed, "capacity cannot be negative")
	}
	if e.Fee < 0 {
		return Fail(ErrValidationFailed, "fee cannot be negative")
	}
	if !e.StartAt.IsZero() && !e.EndAt.IsZero() && e.EndAt.Before(e.StartAt) {
		return Fail(ErrValidationFailed, "event cannot end before it starts")
	}
	if err := e.FormFields.Validate(); err != nil {
		return err
	}
	for _, item := range e.Merchandise {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MerchandiseItem is a sellable item embedded in a merchandise event
type MerchandiseItem struct {
	ID            string     `db:"id" json:"id"`
	EventID       string     `db:"event_id" json:"event_id"`
	Position      int        `db:"position" json:"position"`
	Name          string     `db:"name" json:"name"`
	Sizes         StringList `db:"sizes" json:"sizes,omitempty"`
	Colors        StringList `db:"colors" json:"colors,omitempty"`
	Variants      StringList `db:"variants" json:"variants,omitempty"`
	StockQuantity int        `db:"stock_quantity" json:"stock_quantity"`
	PurchaseLimit int        `db:"purchase_limit" json:"purchase_limit"`
}

// Validate checks an item definition
func (m MerchandiseItem) Validate() error {
	if m.Name == "" {
		return Fail(ErrValidationFailed, "merchandise item name is required")
	}
	if m.StockQuantity < 0 {
		return Fail(ErrValidationFailed, "stock for %q cannot be negative", m.Name)
	}
	if m.PurchaseLimit < 0 {
		return Fail(ErrValidationFailed, "purchase limit for %q cannot be negative", m.Name)
	}
	return nil
}

// StringList is a JSON-encoded text column
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (l *StringList) Scan(src interface{}) error {
	return scanJSON(src, (*[]string)(l))
}

// scanJSON decodes a TEXT/BLOB column holding JSON; NULL leaves dst untouched.
func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	default:
		return fmt.Errorf("cannot scan %T into JSON column", src)
	}
}
