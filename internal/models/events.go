package models

import "time"

// Event types
const (
	EventTypeEventAnnounced = "EVENT_ANNOUNCED"
	EventTypeTicketIssued   = "TICKET_ISSUED"
	EventTypeOrderRejected  = "ORDER_REJECTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// EventAnnouncedEvent published when an event moves from draft to published
type EventAnnouncedEvent struct {
	BaseEvent
	CampusEventID string    `json:"campus_event_id"`
	OrganizerID   string    `json:"organizer_id"`
	Name          string    `json:"name"`
	Type          EventType `json:"type"`
	StartAt       time.Time `json:"start_at"`
	WebhookURL    string    `json:"webhook_url,omitempty"`
}

// TicketIssuedEvent published when a registration, purchase or approval
// produces a ticket. Consumers load the QR image from the registration.
type TicketIssuedEvent struct {
	BaseEvent
	RegistrationID   string `json:"registration_id"`
	CampusEventID    string `json:"campus_event_id"`
	EventName        string `json:"event_name"`
	ParticipantID    string `json:"participant_id"`
	ParticipantEmail string `json:"participant_email"`
	TicketID         string `json:"ticket_id"`
}

// OrderRejectedEvent published when an organizer rejects a payment proof
type OrderRejectedEvent struct {
	BaseEvent
	RegistrationID   string `json:"registration_id"`
	CampusEventID    string `json:"campus_event_id"`
	EventName        string `json:"event_name"`
	ParticipantEmail string `json:"participant_email"`
	Reason           string `json:"reason"`
}
