package ticket

import (
	"encoding/json"
	"fmt"

	"campus-events/internal/models"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

// ContentType of every image produced by the issuer
const ContentType = "image/png"

const defaultSize = 256

// Issuer mints tickets: a fresh unique id plus a QR image of its payload
type Issuer struct {
	size int
}

// NewIssuer creates an issuer rendering QR images of size x size pixels
func NewIssuer(size int) *Issuer {
	if size <= 0 {
		size = defaultSize
	}
	return &Issuer{size: size}
}

// Issue creates a ticket for the participant's registration to an event.
// itemID is empty for normal events.
func (i *Issuer) Issue(eventID, participantID, itemID string) (*models.Ticket, error) {
	payload := models.TicketPayload{
		TicketID:      uuid.NewString(),
		EventID:       eventID,
		ParticipantID: participantID,
		ItemID:        itemID,
	}

	content, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ticket payload: %w", err)
	}

	png, err := qrcode.Encode(string(content), qrcode.Medium, i.size)
	if err != nil {
		return nil, fmt.Errorf("failed to render ticket QR: %w", err)
	}

	return &models.Ticket{
		ID:          payload.TicketID,
		Image:       png,
		ContentType: ContentType,
	}, nil
}

// ParsePayload decodes the text read from a ticket QR image
func ParsePayload(content string) (*models.TicketPayload, error) {
	var p models.TicketPayload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return nil, models.Fail(models.ErrInvalidTicket, "unreadable ticket payload")
	}
	if p.TicketID == "" || p.EventID == "" {
		return nil, models.Fail(models.ErrInvalidTicket, "ticket payload is incomplete")
	}
	return &p, nil
}
