package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ticket-admin/internal/status"
	"ticket-admin/internal/ticket"
	"ticket-admin/models"
	"ticket-admin/monitoring"
	"ticket-admin/utils"
)

const (
	StatusValid   = "valid"
	StatusInvalid = "invalid"
	StatusError   = "error"
)

// SaleStore is the authoritative sale-record contract. MarkUsed must be a
// conditional write: set the terminal status only when the current status is
// not already terminal, and report whether a row actually changed. That
// report is the correctness backstop against concurrent scans.
type SaleStore interface {
	ticket.SaleFinder
	MarkUsed(ctx context.Context, purchaseID string, at time.Time) (bool, error)
}

// Ledger is the append-only record of validation attempts. FindValid must
// observe commits made by concurrent requests.
type Ledger interface {
	Append(ctx context.Context, entry *models.CheckinEntry) error
	FindValidByPurchaseOrTicket(ctx context.Context, purchaseID, ticketID string) (*models.CheckinEntry, error)
}

// EventFinder enriches successful results with the event title. Absence of
// the event record never fails a validation.
type EventFinder interface {
	TryFind(ctx context.Context, id string) (*models.Event, error)
}

type Request struct {
	QRPayload   string
	EventID     string
	ValidatorID string
}

// Result is the decision contract returned to the scanner client. A
// computed decision is always an HTTP success; Status carries the verdict.
type Result struct {
	Status string         `json:"status"`
	Reason string         `json:"reason,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Engine runs one validation attempt through the check-in state machine:
// locate, event match, duplicate-scan check, state check, payment
// cross-check, conditional commit. Every terminal outcome writes exactly
// one ledger entry. Engines are stateless; concurrency correctness comes
// from the store's conditional update, not from in-process locks.
type Engine struct {
	locator    *ticket.Locator
	sales      SaleStore
	purchases  ticket.PurchaseFinder
	ledger     Ledger
	events     EventFinder
	classifier *ticket.Classifier
	logger     *slog.Logger
	now        func() time.Time
}

func NewEngine(locator *ticket.Locator, sales SaleStore, purchases ticket.PurchaseFinder, ledger Ledger, events EventFinder, classifier *ticket.Classifier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		locator:    locator,
		sales:      sales,
		purchases:  purchases,
		ledger:     ledger,
		events:     events,
		classifier: classifier,
		logger:     logger,
		now:        time.Now,
	}
}

func (e *Engine) Validate(ctx context.Context, req Request) Result {
	claim, err := e.locator.Resolve(ctx, req.QRPayload, req.EventID)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrTicketNotFound):
			reason := fmt.Sprintf("Ingresso não encontrado no sistema. ID procurado: %s.", req.QRPayload)
			e.appendAttempt(ctx, orphanClaim(req), req.EventID, req.ValidatorID, StatusInvalid, reason)
			return Result{Status: StatusInvalid, Reason: reason, Data: map[string]any{
				"id":       req.QRPayload,
				"event_id": req.EventID,
			}}
		case errors.Is(err, status.ErrPayloadCorrupted):
			e.appendAttempt(ctx, orphanClaim(req), req.EventID, req.ValidatorID, StatusInvalid, status.ReasonCorrupted)
			return Result{Status: StatusInvalid, Reason: status.ReasonCorrupted}
		default:
			e.logger.Error("validation: locator failure", "error", err, "qr_payload", req.QRPayload)
			return Result{Status: StatusError, Reason: status.ReasonInternalError}
		}
	}
	monitoring.TrackLocatorResolution(string(claim.Source))

	// Event match: only authoritative when both sides carry an id.
	if claim.EventID != "" && req.EventID != "" && claim.EventID != req.EventID {
		e.appendAttempt(ctx, claim, req.EventID, req.ValidatorID, StatusInvalid, status.ReasonEventMismatch)
		return Result{Status: StatusInvalid, Reason: status.ReasonEventMismatch, Data: e.baseData(claim)}
	}

	view, hasSaleRow, err := e.resolveSale(ctx, claim)
	if err != nil {
		e.logger.Error("validation: sale lookup failure", "error", err, "id_compra", claim.PurchaseID)
		return Result{Status: StatusError, Reason: status.ReasonInternalError}
	}
	if view == nil {
		e.appendAttempt(ctx, claim, req.EventID, req.ValidatorID, StatusInvalid, status.ReasonSaleNotFound)
		return Result{Status: StatusInvalid, Reason: status.ReasonSaleNotFound, Data: e.baseData(claim)}
	}
	backfillClaim(claim, view)
	if claim.EventID == "" {
		claim.EventID = req.EventID
	}

	// The ledger, not the sale status, is the authoritative duplicate
	// detector: the status mutation and the ledger write are not atomic.
	prior, err := e.ledger.FindValidByPurchaseOrTicket(ctx, claim.PurchaseID, claim.TicketID)
	if err != nil {
		e.logger.Error("validation: ledger lookup failure", "error", err, "id_compra", claim.PurchaseID)
		return Result{Status: StatusError, Reason: status.ReasonInternalError}
	}
	if prior != nil {
		e.appendAttempt(ctx, claim, req.EventID, req.ValidatorID, StatusInvalid, status.ReasonAlreadyScanned)
		data := e.baseData(claim)
		data["first_scanned_at"] = prior.CreatedAt.Format(time.RFC3339)
		if view.BuyerName != "" {
			data["buyer_name"] = view.BuyerName
		}
		return Result{Status: StatusInvalid, Reason: status.ReasonAlreadyScanned, Data: data}
	}

	switch e.classifier.Classify(view.Status) {
	case ticket.StateUsed:
		e.appendAttempt(ctx, claim, req.EventID, req.ValidatorID, StatusInvalid, status.ReasonAlreadyUsed)
		data := e.baseData(claim)
		if view.UsedAt != nil {
			data["used_at"] = view.UsedAt.Format(time.RFC3339)
		}
		return Result{Status: StatusInvalid, Reason: status.ReasonAlreadyUsed, Data: data}
	case ticket.StateCancelled:
		e.appendAttempt(ctx, claim, req.EventID, req.ValidatorID, StatusInvalid, status.ReasonCancelled)
		return Result{Status: StatusInvalid, Reason: status.ReasonCancelled, Data: e.baseData(claim)}
	case ticket.StateUnknown:
		e.logger.Warn("validation: unrecognized sale status, proceeding as redeemable",
			"status", view.Status, "id_compra", claim.PurchaseID)
	}

	purchase := e.resolvePurchase(ctx, claim)
	if purchase != nil {
		paymentStatus := strings.ToLower(strings.TrimSpace(purchase.Status))
		if paymentStatus != "" && paymentStatus != "paid" {
			e.appendAttempt(ctx, claim, req.EventID, req.ValidatorID, StatusInvalid, status.ReasonPaymentPending)
			return Result{Status: StatusInvalid, Reason: status.ReasonPaymentPending, Data: e.baseData(claim)}
		}
	}

	redeemedAt := e.now().UTC()
	if hasSaleRow {
		updated, err := e.sales.MarkUsed(ctx, claim.PurchaseID, redeemedAt)
		if err != nil {
			e.logger.Error("validation: mark used failed", "error", err, "id_compra", claim.PurchaseID)
			return Result{Status: StatusError, Reason: status.ReasonInternalError}
		}
		if !updated {
			// Lost the race: another request redeemed this ticket between
			// the checks above and the commit.
			e.appendAttempt(ctx, claim, req.EventID, req.ValidatorID, StatusInvalid, status.ReasonConcurrentScan)
			return Result{Status: StatusInvalid, Reason: status.ReasonConcurrentScan, Data: e.baseData(claim)}
		}
	}

	e.appendAttempt(ctx, claim, req.EventID, req.ValidatorID, StatusValid, "")

	data := e.baseData(claim)
	data["used_at"] = redeemedAt.Format(time.RFC3339)
	if name := coalesce(view.BuyerName, purchaseName(purchase)); name != "" {
		data["buyer_name"] = name
	}
	if qty := firstPositive(view.Quantity, purchaseQuantity(purchase)); qty > 0 {
		data["quantity"] = qty
	}
	if e.events != nil && claim.EventID != "" {
		if event, err := e.events.TryFind(ctx, claim.EventID); err == nil && event != nil {
			data["event_name"] = event.Title
		}
	}

	return Result{Status: StatusValid, Reason: status.ReasonValid, Data: data}
}

// resolveSale produces the sale view the state check runs against. The
// second return reports whether a real vendas row backs the view; when it
// is false the commit degrades to ledger-append-only because there is no
// sale row to flip.
func (e *Engine) resolveSale(ctx context.Context, claim *ticket.Claim) (*models.Sale, bool, error) {
	if claim.Sale != nil {
		return claim.Sale, true, nil
	}

	switch claim.Source {
	case ticket.SourcePurchases:
		code := coalesce(claim.Purchase.PurchaseID, claim.Purchase.ID)
		if code != "" {
			sale, err := e.sales.FindByPurchaseID(ctx, code)
			if err != nil {
				return nil, false, err
			}
			if sale != nil {
				return sale, true, nil
			}
		}
		// Legacy data predating the vendas table: the purchase record
		// stands in for the sale.
		return saleViewFromPurchase(claim.Purchase), false, nil

	default: // structured payload, trusted for identity but not status
		if claim.PurchaseID != "" {
			sale, err := e.sales.FindByPurchaseID(ctx, claim.PurchaseID)
			if err != nil {
				return nil, false, err
			}
			if sale != nil {
				return sale, true, nil
			}
		}
		if claim.TicketID != "" {
			sale, err := e.sales.FindByTicketID(ctx, claim.TicketID)
			if err != nil {
				return nil, false, err
			}
			if sale != nil {
				return sale, true, nil
			}
		}
		sale, err := e.sales.FindByAnyID(ctx, claim.RawPayload)
		if err != nil {
			return nil, false, err
		}
		if sale != nil {
			return sale, true, nil
		}
		return nil, false, nil
	}
}

// resolvePurchase is best-effort corroboration: lookup failures are logged
// and skipped, never fatal.
func (e *Engine) resolvePurchase(ctx context.Context, claim *ticket.Claim) *models.Purchase {
	if claim.Purchase != nil {
		return claim.Purchase
	}
	if claim.TicketID != "" {
		purchase, err := e.purchases.TryFindByID(ctx, claim.TicketID)
		if err != nil {
			e.logger.Warn("validation: purchase cross-check skipped", "error", err)
			return nil
		}
		if purchase != nil {
			return purchase
		}
	}
	if claim.PurchaseID != "" {
		purchase, err := e.purchases.TryFindByPurchaseID(ctx, claim.PurchaseID)
		if err != nil {
			e.logger.Warn("validation: purchase cross-check skipped", "error", err)
			return nil
		}
		return purchase
	}
	return nil
}

// appendAttempt writes the single ledger row of this terminal outcome.
// Append failure must not mask the verdict: it is logged and counted only.
func (e *Engine) appendAttempt(ctx context.Context, claim *ticket.Claim, eventID, validatorID, outcome, reason string) {
	code, _ := utils.GenerateCode(4)
	entry := &models.CheckinEntry{
		PurchaseID:  claim.PurchaseID,
		EventID:     coalesce(eventID, claim.EventID),
		TicketID:    claim.TicketID,
		BuyerEmail:  claim.BuyerEmail,
		ValidatedBy: validatorID,
		Status:      outcome,
		Reason:      reason,
		QRPayload:   claim.RawPayload,
		AttemptCode: code,
	}
	if err := e.ledger.Append(ctx, entry); err != nil {
		monitoring.TrackLedgerWriteFailure()
		e.logger.Error("validation: ledger append failed",
			"error", err, "outcome", outcome, "id_compra", claim.PurchaseID)
	}
}

func (e *Engine) baseData(claim *ticket.Claim) map[string]any {
	return map[string]any{
		"purchase_id": claim.PurchaseID,
		"event_id":    claim.EventID,
		"ticket_id":   claim.TicketID,
		"buyer_email": claim.BuyerEmail,
	}
}

func orphanClaim(req Request) *ticket.Claim {
	return &ticket.Claim{
		PurchaseID: req.QRPayload,
		EventID:    req.EventID,
		TicketID:   req.QRPayload,
		RawPayload: req.QRPayload,
	}
}

func backfillClaim(claim *ticket.Claim, view *models.Sale) {
	claim.PurchaseID = coalesce(claim.PurchaseID, view.PurchaseID)
	claim.EventID = coalesce(claim.EventID, view.EventID)
	claim.TicketID = coalesce(claim.TicketID, view.TicketID, view.ID)
	claim.BuyerEmail = coalesce(claim.BuyerEmail, view.BuyerEmail)
}

func saleViewFromPurchase(p *models.Purchase) *models.Sale {
	return &models.Sale{
		ID:         p.ID,
		PurchaseID: coalesce(p.PurchaseID, p.ID),
		EventID:    p.EventID,
		TicketID:   p.ID,
		BuyerEmail: p.Email,
		BuyerName:  p.BuyerName,
		Status:     p.Status,
		Quantity:   p.Quantity,
	}
}

func purchaseName(p *models.Purchase) string {
	if p == nil {
		return ""
	}
	return p.BuyerName
}

func purchaseQuantity(p *models.Purchase) int {
	if p == nil {
		return 0
	}
	return p.Quantity
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
