package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"ticket-admin/models"
)

// PurchaseStore backs the purchases collection, the optional legacy record
// corroborating payment. Try semantics: (nil, nil) when absent.
type PurchaseStore struct {
	app core.App
}

func NewPurchaseStore(app core.App) *PurchaseStore {
	return &PurchaseStore{app: app}
}

func (s *PurchaseStore) TryFindByID(ctx context.Context, id string) (*models.Purchase, error) {
	return s.findByFilter("id = {:id}", id)
}

func (s *PurchaseStore) TryFindByPurchaseID(ctx context.Context, id string) (*models.Purchase, error) {
	return s.findByFilter("id_compra = {:id}", id)
}

func (s *PurchaseStore) findByFilter(filter, id string) (*models.Purchase, error) {
	if id == "" {
		return nil, nil
	}
	rec, err := s.app.FindFirstRecordByFilter("purchases", filter, dbx.Params{"id": id})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("purchases: find: %w", err)
	}
	return purchaseFromRecord(rec), nil
}

func purchaseFromRecord(rec *core.Record) *models.Purchase {
	purchase := &models.Purchase{
		ID:         rec.Id,
		PurchaseID: rec.GetString("id_compra"),
		EventID:    rec.GetString("event_id"),
		Email:      rec.GetString("email"),
		BuyerName:  rec.GetString("buyer_name"),
		Status:     rec.GetString("status"),
		Quantity:   rec.GetInt("quantity"),
	}
	if purchase.Email == "" {
		purchase.Email = rec.GetString("buyer_email")
	}
	return purchase
}
