package models

import (
	"time"
)

// Sale is one row of the "vendas" collection: a purchased, checkinable
// ticket unit. Status is free-text in the source data and is normalized
// elsewhere; UsedAt is set exactly once, when the ticket is redeemed.
type Sale struct {
	ID         string     `json:"id"`
	PurchaseID string     `json:"id_compra"`
	EventID    string     `json:"id_evento"`
	TicketID   string     `json:"id_ingresso"`
	BuyerEmail string     `json:"buyer_email"`
	BuyerName  string     `json:"buyer_name"`
	Status     string     `json:"status"`
	Quantity   int        `json:"quantidade,omitempty"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
}

// Purchase is the secondary/legacy record that optionally corroborates a
// sale's payment status. It may not exist for a given sale.
type Purchase struct {
	ID         string `json:"id"`
	PurchaseID string `json:"id_compra"`
	EventID    string `json:"event_id"`
	Email      string `json:"email"`
	BuyerName  string `json:"buyer_name"`
	Status     string `json:"status"` // paid, pending, refunded, ...
	Quantity   int    `json:"quantity,omitempty"`
}
