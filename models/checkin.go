package models

import (
	"time"
)

// CheckinEntry is one row of the append-only "checkins" ledger: one row per
// validation attempt, successful or not. Entries are never updated or
// deleted; a single ticket may accumulate one valid row and any number of
// invalid re-scan rows.
type CheckinEntry struct {
	ID          string    `json:"id,omitempty"`
	PurchaseID  string    `json:"id_compra"`
	EventID     string    `json:"id_evento"`
	TicketID    string    `json:"id_ingresso"`
	BuyerEmail  string    `json:"buyer_email"`
	ValidatedBy string    `json:"validated_by"`
	Status      string    `json:"status"` // valid | invalid
	Reason      string    `json:"reason,omitempty"`
	QRPayload   string    `json:"qr_payload"`
	AttemptCode string    `json:"attempt_code,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
