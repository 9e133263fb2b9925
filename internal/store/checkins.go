package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"ticket-admin/models"
)

// CheckinLedger backs the append-only checkins collection. Entries are
// written once and never updated or deleted.
type CheckinLedger struct {
	app core.App
}

func NewCheckinLedger(app core.App) *CheckinLedger {
	return &CheckinLedger{app: app}
}

func (l *CheckinLedger) Append(ctx context.Context, entry *models.CheckinEntry) error {
	collection, err := l.app.FindCollectionByNameOrId("checkins")
	if err != nil {
		return fmt.Errorf("checkins: append: %w", err)
	}

	rec := core.NewRecord(collection)
	rec.Set("id_compra", entry.PurchaseID)
	rec.Set("id_evento", entry.EventID)
	rec.Set("id_ingresso", entry.TicketID)
	rec.Set("buyer_email", entry.BuyerEmail)
	rec.Set("validated_by", entry.ValidatedBy)
	rec.Set("status", entry.Status)
	rec.Set("reason", entry.Reason)
	rec.Set("qr_payload", entry.QRPayload)
	rec.Set("attempt_code", entry.AttemptCode)

	if err := l.app.Save(rec); err != nil {
		return fmt.Errorf("checkins: append: %w", err)
	}
	entry.ID = rec.Id
	return nil
}

// FindValidByPurchaseOrTicket returns the prior successful check-in for a
// ticket identity, matching on either id. Empty ids are excluded from the
// disjunction so blank columns cannot produce false positives.
func (l *CheckinLedger) FindValidByPurchaseOrTicket(ctx context.Context, purchaseID, ticketID string) (*models.CheckinEntry, error) {
	var clauses []string
	params := dbx.Params{}
	if purchaseID != "" {
		clauses = append(clauses, "id_compra = {:purchase}")
		params["purchase"] = purchaseID
	}
	if ticketID != "" {
		clauses = append(clauses, "id_ingresso = {:ticket}")
		params["ticket"] = ticketID
	}
	if len(clauses) == 0 {
		return nil, nil
	}

	filter := "(" + strings.Join(clauses, " || ") + ") && status = 'valid'"
	rec, err := l.app.FindFirstRecordByFilter("checkins", filter, params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkins: find valid: %w", err)
	}
	return checkinFromRecord(rec), nil
}

// ListByEvent returns ledger history for an event, newest first.
func (l *CheckinLedger) ListByEvent(ctx context.Context, eventID string, limit int) ([]*models.CheckinEntry, error) {
	records, err := l.app.FindRecordsByFilter(
		"checkins",
		"id_evento = {:event}",
		"-created",
		limit,
		0,
		dbx.Params{"event": eventID},
	)
	if err != nil {
		return nil, fmt.Errorf("checkins: list: %w", err)
	}

	entries := make([]*models.CheckinEntry, len(records))
	for i, rec := range records {
		entries[i] = checkinFromRecord(rec)
	}
	return entries, nil
}

// CountByStatus aggregates ledger outcomes for an event directly in SQL.
func (l *CheckinLedger) CountByStatus(ctx context.Context, eventID string) (map[string]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Total  int    `db:"total"`
	}{}

	err := l.app.DB().
		NewQuery("SELECT status, COUNT(*) AS total FROM checkins WHERE id_evento = {:event} GROUP BY status").
		Bind(dbx.Params{"event": eventID}).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("checkins: count: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func checkinFromRecord(rec *core.Record) *models.CheckinEntry {
	return &models.CheckinEntry{
		ID:          rec.Id,
		PurchaseID:  rec.GetString("id_compra"),
		EventID:     rec.GetString("id_evento"),
		TicketID:    rec.GetString("id_ingresso"),
		BuyerEmail:  rec.GetString("buyer_email"),
		ValidatedBy: rec.GetString("validated_by"),
		Status:      rec.GetString("status"),
		Reason:      rec.GetString("reason"),
		QRPayload:   rec.GetString("qr_payload"),
		AttemptCode: rec.GetString("attempt_code"),
		CreatedAt:   rec.GetDateTime("created").Time(),
	}
}
