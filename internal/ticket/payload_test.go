package ticket

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload_Structured(t *testing.T) {
	raw, err := EncodePayload("compra-123", "evt-1", "ing-9", "ana@example.com")
	require.NoError(t, err)

	payload, ok := decodePayload(raw)
	require.True(t, ok)
	assert.Equal(t, "compra-123", payload.PurchaseID)
	assert.Equal(t, "evt-1", payload.EventID)
	assert.Equal(t, "ing-9", payload.TicketID)
	assert.Equal(t, "ana@example.com", payload.Email)
}

func TestDecodePayload_TrimsSurroundingWhitespace(t *testing.T) {
	raw, err := EncodePayload("compra-123", "evt-1", "", "")
	require.NoError(t, err)

	payload, ok := decodePayload("  " + raw + "\n")
	require.True(t, ok)
	assert.Equal(t, "compra-123", payload.PurchaseID)
}

func TestDecodePayload_BareIdentifierFallsThrough(t *testing.T) {
	// A legacy bare id is not base64 JSON; the decoder must signal
	// fallback, not failure.
	_, ok := decodePayload("TICKET-0042")
	assert.False(t, ok)
}

func TestDecodePayload_Base64ButNotJSON(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte("just some text"))
	_, ok := decodePayload(raw)
	assert.False(t, ok)
}

func TestDecodePayload_Base64MalformedJSON(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte(`{"id_compra": `))
	_, ok := decodePayload(raw)
	assert.False(t, ok)
}

func TestDecodePayload_EmptyObject(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte(`{}`))
	payload, ok := decodePayload(raw)
	require.True(t, ok)
	assert.Empty(t, payload.PurchaseID)
	assert.Empty(t, payload.EventID)
}
