package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"

	"ticket-admin/internal/services"
	"ticket-admin/internal/status"
	"ticket-admin/internal/validation"
	"ticket-admin/monitoring"
)

// ValidationHandler exposes the check-in decision engine. The transport
// contract is deliberate: once a decision is computed the HTTP status is
// always 200 and the client branches on the embedded status field; real
// HTTP errors are reserved for malformed transport, not business verdicts.
type ValidationHandler struct {
	app     *pocketbase.PocketBase
	engine  *validation.Engine
	feed    *services.FeedService
	timeout time.Duration
}

func NewValidationHandler(app *pocketbase.PocketBase, engine *validation.Engine, feed *services.FeedService, timeout time.Duration) *ValidationHandler {
	return &ValidationHandler{
		app:     app,
		engine:  engine,
		feed:    feed,
		timeout: timeout,
	}
}

// Validate - run one scanned payload through the check-in state machine
func (h *ValidationHandler) Validate(e *core.RequestEvent) error {
	start := time.Now()

	if e.Auth == nil {
		return e.JSON(http.StatusOK, validation.Result{
			Status: validation.StatusError,
			Reason: status.ReasonNoToken,
		})
	}

	var req struct {
		QRPayload string `json:"qrPayload"`
		EventID   string `json:"eventId"`
	}
	if err := e.BindBody(&req); err != nil || req.QRPayload == "" || req.EventID == "" {
		return e.JSON(http.StatusOK, validation.Result{
			Status: validation.StatusInvalid,
			Reason: status.ReasonMissingPayload,
		})
	}

	ctx, cancel := context.WithTimeout(e.Request.Context(), h.timeout)
	defer cancel()

	result := h.engine.Validate(ctx, validation.Request{
		QRPayload:   req.QRPayload,
		EventID:     req.EventID,
		ValidatorID: e.Auth.Id,
	})

	monitoring.TrackValidation(req.EventID, result.Status, time.Since(start))
	if result.Status == validation.StatusInvalid {
		monitoring.TrackRejection(result.Reason)
	}

	if h.feed != nil {
		summary := services.ScanSummary{
			EventID:     req.EventID,
			Status:      result.Status,
			Reason:      result.Reason,
			ValidatedBy: e.Auth.Id,
		}
		if v, ok := result.Data["purchase_id"].(string); ok {
			summary.PurchaseID = v
		}
		if v, ok := result.Data["ticket_id"].(string); ok {
			summary.TicketID = v
		}
		go h.feed.PublishScan(context.Background(), summary)
	}

	return e.JSON(http.StatusOK, result)
}
