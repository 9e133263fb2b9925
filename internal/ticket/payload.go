package ticket

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
)

// encodedPayload is the structured QR wire format: a base64 wrapped JSON
// object carrying the full ticket identity. Older tickets carry a bare
// identifier instead and go through the legacy lookup chain.
type encodedPayload struct {
	PurchaseID string `json:"id_compra"`
	EventID    string `json:"id_evento"`
	TicketID   string `json:"id_ingresso"`
	Email      string `json:"email"`
}

// decodePayload attempts the structured decode. The second return value
// reports whether the payload was structured at all; a false means the
// caller should fall back to legacy resolution, not that the scan failed.
func decodePayload(raw string) (*encodedPayload, bool) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, false
	}

	trimmed := bytes.TrimSpace(decoded)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}

	var payload encodedPayload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, false
	}

	return &payload, true
}

// EncodePayload produces the structured QR payload for a ticket identity.
// Kept next to the decoder so the two halves of the wire format cannot
// drift apart.
func EncodePayload(purchaseID, eventID, ticketID, email string) (string, error) {
	data, err := json.Marshal(encodedPayload{
		PurchaseID: purchaseID,
		EventID:    eventID,
		TicketID:   ticketID,
		Email:      email,
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
