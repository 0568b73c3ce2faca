package store

import (
	"context"

	"github.com/google/uuid"
)

// Event is the object representing a scheduled appointment. Events are
// immutable after creation; deletion cascades from customer deletion.
type Event struct {
	ID         int32
	UID        string
	CreatedTs  int64
	CustomerID int32
	Title      string
	// StartTs is the event fire timestamp, normalized to second precision.
	StartTs int64

	// CustomerPhone is populated on list queries via a join with the
	// customer table. It is not a column of the event table.
	CustomerPhone string
}

// FindEvent is the find condition for event.
type FindEvent struct {
	ID         *int32
	UID        *string
	CustomerID *int32

	// StartsOnOrAfter filters to events whose start is at or after the
	// given timestamp ("events on/after now").
	StartsOnOrAfter *int64

	Limit  *int
	Offset *int
}

// DeleteEvent is the delete request for event.
type DeleteEvent struct {
	ID int32
}

// CreateEvent creates a new event.
func (s *Store) CreateEvent(ctx context.Context, create *Event) (*Event, error) {
	if create.UID == "" {
		create.UID = uuid.New().String()
	}
	return s.driver.CreateEvent(ctx, create)
}

// ListEvents lists events with filter, joined with the owning customer's
// phone so callers can address notifications.
func (s *Store) ListEvents(ctx context.Context, find *FindEvent) ([]*Event, error) {
	return s.driver.ListEvents(ctx, find)
}

// GetEvent gets a single event with filter.
func (s *Store) GetEvent(ctx context.Context, find *FindEvent) (*Event, error) {
	limit := 1
	find.Limit = &limit
	list, err := s.driver.ListEvents(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListUpcomingEvents lists events starting at or after the given timestamp.
func (s *Store) ListUpcomingEvents(ctx context.Context, since int64) ([]*Event, error) {
	return s.driver.ListEvents(ctx, &FindEvent{StartsOnOrAfter: &since})
}

// DeleteEvent deletes an event.
func (s *Store) DeleteEvent(ctx context.Context, delete *DeleteEvent) error {
	return s.driver.DeleteEvent(ctx, delete)
}
