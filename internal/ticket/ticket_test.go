package ticket

import (
	"bytes"
	"encoding/json"
	"testing"

	"campus-events/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueProducesUniquePNGTickets(t *testing.T) {
	issuer := NewIssuer(128)

	a, err := issuer.Issue("evt-1", "alice", "")
	require.NoError(t, err)
	b, err := issuer.Issue("evt-1", "alice", "")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, ContentType, a.ContentType)
	assert.True(t, bytes.HasPrefix(a.Image, []byte("\x89PNG")))
}

func TestParsePayload(t *testing.T) {
	raw, err := json.Marshal(models.TicketPayload{TicketID: "t-1", EventID: "evt-1", ParticipantID: "alice", ItemID: "tee"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"ticketId":"t-1"`)

	p, err := ParsePayload(string(raw))
	require.NoError(t, err)
	assert.Equal(t, "tee", p.ItemID)

	_, err = ParsePayload("not json")
	assert.ErrorIs(t, err, models.ErrInvalidTicket)

	_, err = ParsePayload(`{"eventId":"evt-1"}`)
	assert.ErrorIs(t, err, models.ErrInvalidTicket)
}
