package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"ticket-admin/internal/ticket"
	"ticket-admin/models"
)

// SaleStore backs the vendas collection. All finders return (nil, nil) when
// no row matches; errors are reserved for storage failures.
type SaleStore struct {
	app      core.App
	terminal []string
}

// NewSaleStore takes the normalized set of terminal status synonyms: the
// conditional update refuses to touch rows already in one of them.
func NewSaleStore(app core.App, terminalStatuses []string) *SaleStore {
	return &SaleStore{app: app, terminal: terminalStatuses}
}

func (s *SaleStore) FindByPurchaseID(ctx context.Context, id string) (*models.Sale, error) {
	return s.findByFilter("id_compra = {:id}", id)
}

func (s *SaleStore) FindByTicketID(ctx context.Context, id string) (*models.Sale, error) {
	return s.findByFilter("id_ingresso = {:id}", id)
}

// FindByAnyID is the disjunctive last-resort lookup across every identity
// column a legacy scan could carry.
func (s *SaleStore) FindByAnyID(ctx context.Context, id string) (*models.Sale, error) {
	return s.findByFilter("id_compra = {:id} || id_ingresso = {:id} || id = {:id}", id)
}

// MarkUsed flips a sale to the terminal used status with a single
// conditional write and reports whether a row actually changed. A false
// return with a nil error means the ticket was concurrently redeemed;
// callers must treat that as a failed validation, not a success.
func (s *SaleStore) MarkUsed(ctx context.Context, purchaseID string, at time.Time) (bool, error) {
	if purchaseID == "" {
		return false, nil
	}

	res, err := s.app.NonconcurrentDB().
		Update(
			"vendas",
			dbx.Params{
				"status":  ticket.StatusUsed,
				"used_at": at.UTC().Format(types.DefaultDateLayout),
			},
			dbx.And(
				dbx.HashExp{"id_compra": purchaseID},
				s.notTerminalExpr(),
			),
		).
		WithContext(ctx).
		Execute()
	if err != nil {
		return false, fmt.Errorf("sales: mark used: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sales: mark used: %w", err)
	}
	return affected > 0, nil
}

func (s *SaleStore) notTerminalExpr() dbx.Expression {
	placeholders := make([]string, len(s.terminal))
	params := dbx.Params{}
	for i, synonym := range s.terminal {
		key := fmt.Sprintf("terminal%d", i)
		placeholders[i] = "{:" + key + "}"
		params[key] = synonym
	}
	return dbx.NewExp(
		"LOWER(TRIM(COALESCE(status, ''))) NOT IN ("+strings.Join(placeholders, ", ")+")",
		params,
	)
}

func (s *SaleStore) findByFilter(filter, id string) (*models.Sale, error) {
	if id == "" {
		return nil, nil
	}
	rec, err := s.app.FindFirstRecordByFilter("vendas", filter, dbx.Params{"id": id})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sales: find: %w", err)
	}
	return saleFromRecord(rec), nil
}

func saleFromRecord(rec *core.Record) *models.Sale {
	sale := &models.Sale{
		ID:         rec.Id,
		PurchaseID: rec.GetString("id_compra"),
		EventID:    rec.GetString("id_evento"),
		TicketID:   rec.GetString("id_ingresso"),
		BuyerEmail: rec.GetString("buyer_email"),
		BuyerName:  rec.GetString("buyer_name"),
		Status:     rec.GetString("status"),
		Quantity:   rec.GetInt("quantidade"),
	}
	if dt := rec.GetDateTime("used_at"); !dt.IsZero() {
		t := dt.Time()
		sale.UsedAt = &t
	}
	return sale
}
