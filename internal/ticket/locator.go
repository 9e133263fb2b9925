package ticket

import (
	"context"
	"fmt"

	"ticket-admin/internal/status"
	"ticket-admin/models"
)

// Source tags which lookup satisfied a claim. Downstream checks read this
// tag instead of re-deriving where the record came from.
type Source string

const (
	SourceEncoded   Source = "qr"
	SourceSales     Source = "vendas"
	SourcePurchases Source = "purchases"
)

// Claim is the canonical identity resolved from a scanned payload, plus the
// records that backed the resolution (nil on the structured path, which is
// trusted for identity without a lookup). Claims are built once by the
// locator and passed down the validation pipeline unchanged.
type Claim struct {
	PurchaseID string
	EventID    string
	TicketID   string
	BuyerEmail string
	Source     Source
	Sale       *models.Sale
	Purchase   *models.Purchase
	RawPayload string
}

// SaleFinder is the sale-record lookup surface the locator needs. All
// finders return (nil, nil) on no match; errors mean the store itself
// failed.
type SaleFinder interface {
	FindByPurchaseID(ctx context.Context, id string) (*models.Sale, error)
	FindByTicketID(ctx context.Context, id string) (*models.Sale, error)
	FindByAnyID(ctx context.Context, id string) (*models.Sale, error)
}

// PurchaseFinder is the optional corroboration lookup: absence of a
// purchase record is a normal path, not an error.
type PurchaseFinder interface {
	TryFindByID(ctx context.Context, id string) (*models.Purchase, error)
	TryFindByPurchaseID(ctx context.Context, id string) (*models.Purchase, error)
}

// Locator resolves an opaque scanned payload to a Claim. Resolution is
// pure: no writes, and every failure is a sentinel error the engine turns
// into a structured invalid result.
type Locator struct {
	sales     SaleFinder
	purchases PurchaseFinder
	lookups   []legacyLookup
}

// legacyLookup is one strategy of the bare-identifier fallback chain. The
// chain order is fixed and first-match-wins.
type legacyLookup struct {
	name string
	find func(ctx context.Context, raw, fallbackEventID string) (*Claim, error)
}

func NewLocator(sales SaleFinder, purchases PurchaseFinder) *Locator {
	l := &Locator{sales: sales, purchases: purchases}
	l.lookups = []legacyLookup{
		{"purchases_by_id", l.purchaseByID},
		{"vendas_by_id_compra", l.saleByPurchaseID},
		{"vendas_by_id_ingresso", l.saleByTicketID},
		{"purchases_by_id_compra", l.purchaseByPurchaseCode},
	}
	return l
}

// Resolve maps a scanned payload to a Claim. fallbackEventID is the
// caller-supplied event and only fills identity holes; it never overrides
// an id carried by a record.
func (l *Locator) Resolve(ctx context.Context, raw, fallbackEventID string) (*Claim, error) {
	if raw == "" {
		return nil, status.ErrPayloadCorrupted
	}

	if payload, ok := decodePayload(raw); ok {
		return &Claim{
			PurchaseID: payload.PurchaseID,
			EventID:    payload.EventID,
			TicketID:   payload.TicketID,
			BuyerEmail: payload.Email,
			Source:     SourceEncoded,
			RawPayload: raw,
		}, nil
	}

	for _, lookup := range l.lookups {
		claim, err := lookup.find(ctx, raw, fallbackEventID)
		if err != nil {
			return nil, fmt.Errorf("locator: %s: %w", lookup.name, err)
		}
		if claim != nil {
			return claim, nil
		}
	}

	return nil, status.ErrTicketNotFound
}

func (l *Locator) purchaseByID(ctx context.Context, raw, fallbackEventID string) (*Claim, error) {
	purchase, err := l.purchases.TryFindByID(ctx, raw)
	if err != nil || purchase == nil {
		return nil, err
	}
	return claimFromPurchase(purchase, raw, fallbackEventID), nil
}

func (l *Locator) purchaseByPurchaseCode(ctx context.Context, raw, fallbackEventID string) (*Claim, error) {
	purchase, err := l.purchases.TryFindByPurchaseID(ctx, raw)
	if err != nil || purchase == nil {
		return nil, err
	}
	return claimFromPurchase(purchase, raw, fallbackEventID), nil
}

func (l *Locator) saleByPurchaseID(ctx context.Context, raw, fallbackEventID string) (*Claim, error) {
	sale, err := l.sales.FindByPurchaseID(ctx, raw)
	if err != nil || sale == nil {
		return nil, err
	}
	return claimFromSale(sale, raw, fallbackEventID), nil
}

func (l *Locator) saleByTicketID(ctx context.Context, raw, fallbackEventID string) (*Claim, error) {
	sale, err := l.sales.FindByTicketID(ctx, raw)
	if err != nil || sale == nil {
		return nil, err
	}
	return claimFromSale(sale, raw, fallbackEventID), nil
}

// claimFromSale synthesizes the canonical tuple from a sale row found by a
// legacy id, preferring record fields and falling back to the raw scan.
func claimFromSale(sale *models.Sale, raw, fallbackEventID string) *Claim {
	claim := &Claim{
		PurchaseID: firstNonEmpty(sale.PurchaseID, raw),
		EventID:    firstNonEmpty(sale.EventID, fallbackEventID),
		TicketID:   firstNonEmpty(sale.TicketID, sale.ID, raw),
		BuyerEmail: sale.BuyerEmail,
		Source:     SourceSales,
		Sale:       sale,
		RawPayload: raw,
	}
	return claim
}

func claimFromPurchase(purchase *models.Purchase, raw, fallbackEventID string) *Claim {
	claim := &Claim{
		PurchaseID: firstNonEmpty(purchase.PurchaseID, purchase.ID, raw),
		EventID:    firstNonEmpty(purchase.EventID, fallbackEventID),
		TicketID:   firstNonEmpty(purchase.ID, raw),
		BuyerEmail: purchase.Email,
		Source:     SourcePurchases,
		Purchase:   purchase,
		RawPayload: raw,
	}
	return claim
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
