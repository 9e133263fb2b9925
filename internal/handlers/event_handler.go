package handlers

import (
	"fmt"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticket-admin/internal/store"
)

// EventAdminHandler is the admin CRUD surface over events, discriminated by
// an `action` query parameter: absent or "list" lists, otherwise one of
// create|update|delete with a JSON body matching the event schema.
type EventAdminHandler struct {
	app  *pocketbase.PocketBase
	gate *store.AdminGate
}

func NewEventAdminHandler(app *pocketbase.PocketBase, gate *store.AdminGate) *EventAdminHandler {
	return &EventAdminHandler{app: app, gate: gate}
}

// eventFields are the writable columns of the events collection.
var eventFields = []string{"title", "description", "date", "location", "price", "available_tickets", "image_url", "category"}

// Manage - dispatch on the action discriminator
func (h *EventAdminHandler) Manage(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Não autorizado", nil)
	}
	if !h.gate.IsAdmin(e.Auth) {
		return apis.NewUnauthorizedError("Acesso de administrador necessário", nil)
	}

	action := e.Request.URL.Query().Get("action")
	if e.Request.Method == http.MethodGet || action == "" || action == "list" {
		return h.list(e)
	}

	switch action {
	case "create":
		return h.create(e)
	case "update":
		return h.update(e)
	case "delete":
		return h.delete(e)
	default:
		return apis.NewBadRequestError("Ação inválida", nil)
	}
}

func (h *EventAdminHandler) list(e *core.RequestEvent) error {
	records, err := h.app.FindRecordsByFilter("events", "id != ''", "date", 0, 0)
	if err != nil {
		return apis.NewBadRequestError("Erro ao buscar eventos", err)
	}

	events := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		events = append(events, eventResponse(rec))
	}
	return e.JSON(http.StatusOK, map[string]any{"events": events})
}

func (h *EventAdminHandler) create(e *core.RequestEvent) error {
	body := map[string]any{}
	if err := e.BindBody(&body); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if title, _ := body["title"].(string); title == "" {
		return apis.NewBadRequestError("Título é obrigatório", nil)
	}

	collection, err := h.app.FindCollectionByNameOrId("events")
	if err != nil {
		return apis.NewBadRequestError("Erro ao buscar eventos", err)
	}

	rec := core.NewRecord(collection)
	if err := applyEventFields(rec, body); err != nil {
		return apis.NewBadRequestError(err.Error(), err)
	}
	if err := h.app.Save(rec); err != nil {
		return apis.NewBadRequestError("Erro ao criar evento", err)
	}

	return e.JSON(http.StatusCreated, map[string]any{"event": eventResponse(rec)})
}

func (h *EventAdminHandler) update(e *core.RequestEvent) error {
	body := map[string]any{}
	if err := e.BindBody(&body); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	rec, err := h.app.FindRecordById("events", id)
	if err != nil {
		return apis.NewNotFoundError("Evento não encontrado", err)
	}
	if err := applyEventFields(rec, body); err != nil {
		return apis.NewBadRequestError(err.Error(), err)
	}
	if err := h.app.Save(rec); err != nil {
		return apis.NewBadRequestError("Erro ao atualizar evento", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"event": eventResponse(rec)})
}

func (h *EventAdminHandler) delete(e *core.RequestEvent) error {
	body := map[string]any{}
	if err := e.BindBody(&body); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	rec, err := h.app.FindRecordById("events", id)
	if err != nil {
		return apis.NewNotFoundError("Evento não encontrado", err)
	}
	if err := h.app.Delete(rec); err != nil {
		return apis.NewBadRequestError("Erro ao excluir evento", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"success": true})
}

// applyEventFields copies the writable schema fields from the request body
// onto the record, normalizing price through decimal so float noise never
// lands in the database.
func applyEventFields(rec *core.Record, body map[string]any) error {
	for _, field := range eventFields {
		value, ok := body[field]
		if !ok {
			continue
		}
		if field == "price" {
			price, err := normalizePrice(value)
			if err != nil {
				return err
			}
			rec.Set("price", price)
			continue
		}
		rec.Set(field, value)
	}
	return nil
}

func normalizePrice(value any) (float64, error) {
	var d decimal.Decimal
	switch v := value.(type) {
	case float64:
		d = decimal.NewFromFloat(v)
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return 0, fmt.Errorf("preço inválido: %q", v)
		}
		d = parsed
	default:
		return 0, fmt.Errorf("preço inválido")
	}

	if d.IsNegative() {
		return 0, fmt.Errorf("preço não pode ser negativo")
	}
	price, _ := d.Round(2).Float64()
	return price, nil
}

func eventResponse(rec *core.Record) map[string]any {
	return map[string]any{
		"id":                rec.Id,
		"title":             rec.GetString("title"),
		"description":       rec.GetString("description"),
		"date":              rec.GetString("date"),
		"location":          rec.GetString("location"),
		"price":             rec.GetFloat("price"),
		"available_tickets": rec.GetInt("available_tickets"),
		"image_url":         rec.GetString("image_url"),
		"category":          rec.GetString("category"),
	}
}
