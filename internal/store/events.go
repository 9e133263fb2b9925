package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pocketbase/pocketbase/core"

	"ticket-admin/models"
)

// EventStore reads the events collection for result enrichment. The event
// CRUD surface works on records directly in its handler.
type EventStore struct {
	app core.App
}

func NewEventStore(app core.App) *EventStore {
	return &EventStore{app: app}
}

func (s *EventStore) TryFind(ctx context.Context, id string) (*models.Event, error) {
	if id == "" {
		return nil, nil
	}
	rec, err := s.app.FindRecordById("events", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("events: find: %w", err)
	}
	return eventFromRecord(rec), nil
}

func eventFromRecord(rec *core.Record) *models.Event {
	return &models.Event{
		ID:               rec.Id,
		Title:            rec.GetString("title"),
		Description:      rec.GetString("description"),
		Date:             rec.GetString("date"),
		Location:         rec.GetString("location"),
		Price:            rec.GetFloat("price"),
		AvailableTickets: rec.GetInt("available_tickets"),
		ImageURL:         rec.GetString("image_url"),
		Category:         rec.GetString("category"),
	}
}
