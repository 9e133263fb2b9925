package handlers

import (
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticket-admin/internal/services"
	"ticket-admin/internal/store"
)

// HistoryHandler serves the dashboard reads: ledger history, per-event
// check-in stats and the live recent-scans feed.
type HistoryHandler struct {
	app    *pocketbase.PocketBase
	ledger *store.CheckinLedger
	events *store.EventStore
	feed   *services.FeedService
}

func NewHistoryHandler(app *pocketbase.PocketBase, ledger *store.CheckinLedger, events *store.EventStore, feed *services.FeedService) *HistoryHandler {
	return &HistoryHandler{
		app:    app,
		ledger: ledger,
		events: events,
		feed:   feed,
	}
}

// ListCheckins - ledger history for an event, newest first
func (h *HistoryHandler) ListCheckins(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Não autorizado", nil)
	}
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	limit := queryInt(e, "limit", 100)
	entries, err := h.ledger.ListByEvent(e.Request.Context(), eventID, limit)
	if err != nil {
		return apis.NewBadRequestError("Erro ao buscar check-ins", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event_id": eventID,
		"checkins": entries,
	})
}

// CheckinStats - aggregate outcomes plus a revenue estimate for an event
func (h *HistoryHandler) CheckinStats(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Não autorizado", nil)
	}
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}
	ctx := e.Request.Context()

	counts, err := h.ledger.CountByStatus(ctx, eventID)
	if err != nil {
		return apis.NewBadRequestError("Erro ao calcular estatísticas", err)
	}

	valid := counts["valid"]
	invalid := counts["invalid"]

	stats := map[string]any{
		"event_id":       eventID,
		"valid_scans":    valid,
		"invalid_scans":  invalid,
		"total_attempts": valid + invalid,
	}

	if event, err := h.events.TryFind(ctx, eventID); err == nil && event != nil {
		stats["event_name"] = event.Title
		revenue := decimal.NewFromFloat(event.Price).
			Mul(decimal.NewFromInt(int64(valid))).
			Round(2)
		stats["estimated_revenue"] = revenue.String()
	}

	return e.JSON(http.StatusOK, stats)
}

// RecentScans - the live feed backing the scanner sidebar
func (h *HistoryHandler) RecentScans(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Não autorizado", nil)
	}
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	scans, err := h.feed.RecentScans(e.Request.Context(), eventID, int64(queryInt(e, "limit", 50)))
	if err != nil {
		return apis.NewBadRequestError("Erro ao buscar leituras recentes", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event_id": eventID,
		"scans":    scans,
	})
}

func queryInt(e *core.RequestEvent, key string, defaultValue int) int {
	raw := e.Request.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
