package models

import (
	"time"
)

// RegistrationStatus is the participation status of a registration
type RegistrationStatus string

const (
	RegistrationUpcoming  RegistrationStatus = "UPCOMING"
	RegistrationCompleted RegistrationStatus = "COMPLETED"
	RegistrationCancelled RegistrationStatus = "CANCELLED"
)

// PaymentStatus is the approval state of a merchandise order
type PaymentStatus string

const (
	PaymentAwaiting        PaymentStatus = "awaiting_payment"
	PaymentPendingApproval PaymentStatus = "pending_approval"
	PaymentRejected        PaymentStatus = "rejected"
	PaymentSuccessful      PaymentStatus = "successful"
)

// ScanMethod records how an attendance mark was produced
type ScanMethod string

const (
	ScanMethodQR             ScanMethod = "qr"
	ScanMethodManualEntry    ScanMethod = "manual_entry"
	ScanMethodManualOverride ScanMethod = "manual_override"
)

// Registration binds one participant to one event
type Registration struct {
	ID               string             `db:"id" json:"id"`
	EventID          string             `db:"event_id" json:"event_id"`
	ParticipantID    string             `db:"participant_id" json:"participant_id"`
	ParticipantEmail string             `db:"participant_email" json:"participant_email,omitempty"`
	Status           RegistrationStatus `db:"status" json:"status"`
	PaymentStatus    *PaymentStatus     `db:"payment_status" json:"payment_status,omitempty"`
	FormResponses    FormResponses      `db:"form_responses" json:"form_responses,omitempty"`
	ItemID           *string            `db:"item_id" json:"item_id,omitempty"`
	Quantity         int                `db:"quantity" json:"quantity,omitempty"`
	TicketID         *string            `db:"ticket_id" json:"ticket_id,omitempty"`
	QRImage          []byte             `db:"qr_image" json:"qr_image,omitempty"`
	QRContentType    *string            `db:"qr_content_type" json:"qr_content_type,omitempty"`
	Attended         bool               `db:"attended" json:"attended"`
	FirstScanAt      *time.Time         `db:"first_scan_at" json:"first_scan_at,omitempty"`
	ScannedBy        *string            `db:"scanned_by" json:"scanned_by,omitempty"`
	ScanMethod       *ScanMethod        `db:"scan_method" json:"scan_method,omitempty"`
	PaymentProof     *string            `db:"payment_proof" json:"payment_proof,omitempty"`
	RejectionReason  *string            `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt        time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `db:"updated_at" json:"updated_at"`
}

// Ticket returns the issued ticket, or nil when none is attached
func (r *Registration) Ticket() *Ticket {
	if r.TicketID == nil {
		return nil
	}
	t := &Ticket{ID: *r.TicketID, Image: r.QRImage}
	if r.QRContentType != nil {
		t.ContentType = *r.QRContentType
	}
	return t
}

// AttachTicket stores ticket fields on the registration
func (r *Registration) AttachTicket(t *Ticket) {
	if t == nil {
		r.TicketID, r.QRImage, r.QRContentType = nil, nil, nil
		return
	}
	id, ct := t.ID, t.ContentType
	r.TicketID = &id
	r.QRImage = t.Image
	r.QRContentType = &ct
}

// Payment returns the payment status or "" for registrations without one
func (r *Registration) Payment() PaymentStatus {
	if r.PaymentStatus == nil {
		return ""
	}
	return *r.PaymentStatus
}

// CompleteIfEnded applies the derived UPCOMING -> COMPLETED transition for
// registrations of events that have ended. It reports whether r changed.
func CompleteIfEnded(r *Registration, e *Event, now time.Time) bool {
	if r.Status != RegistrationUpcoming || !e.Ended(now) {
		return false
	}
	r.Status = RegistrationCompleted
	return true
}

// Ticket is a unique identifier plus encoded image proving admission
type Ticket struct {
	ID          string `json:"ticket_id"`
	Image       []byte `json:"image"`
	ContentType string `json:"content_type"`
}

// TicketPayload is the content encoded in a ticket's QR image
type TicketPayload struct {
	TicketID      string `json:"ticketId"`
	EventID       string `json:"eventId"`
	ParticipantID string `json:"participantId"`
	ItemID        string `json:"itemId,omitempty"`
}

// ScanEntry is one append-only line of a registration's scan history
type ScanEntry struct {
	ID             string     `db:"id" json:"id"`
	RegistrationID string     `db:"registration_id" json:"registration_id"`
	ScannedAt      time.Time  `db:"scanned_at" json:"scanned_at"`
	ScannedBy      string     `db:"scanned_by" json:"scanned_by"`
	Method         ScanMethod `db:"method" json:"method"`
	Note           string     `db:"note" json:"note,omitempty"`
}

// OverrideAction is the requested manual attendance change
type OverrideAction string

const (
	OverrideSet   OverrideAction = "set"
	OverrideUnset OverrideAction = "unset"
)

// OverrideEntry is one append-only line of the manual-override audit log
type OverrideEntry struct {
	ID             string         `db:"id" json:"id"`
	RegistrationID string         `db:"registration_id" json:"registration_id"`
	Action         OverrideAction `db:"action" json:"action"`
	Reason         string         `db:"reason" json:"reason"`
	ActorID        string         `db:"actor_id" json:"actor_id"`
	PreviousValue  bool           `db:"previous_value" json:"previous_value"`
	NewValue       bool           `db:"new_value" json:"new_value"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// ScanResult is the outcome of a ticket scan
type ScanResult string

const (
	ScanScanned   ScanResult = "scanned"
	ScanDuplicate ScanResult = "duplicate"
)

// ScanOutcome is returned by a scan together with the first-scan metadata
type ScanOutcome struct {
	Result       ScanResult    `json:"result"`
	Registration *Registration `json:"registration"`
}

// Role is the role of an authenticated actor
type Role string

const (
	RoleParticipant Role = "participant"
	RoleOrganizer   Role = "organizer"
)

// Actor is the authenticated caller handed to the core by the transport layer
type Actor struct {
	ID             string
	Role           Role
	Email          string
	IIITAffiliated bool
}
