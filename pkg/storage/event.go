package storage

import (
	"civic/pkg/domain"
	"context"
)

// EventFilter selects events. Zero-valued fields do not filter.
type EventFilter struct {
	// EventID matches the external event key exactly.
	EventID string
	// Tag matches events referencing the tag.
	Tag       *domain.TagID
	ForUpdate bool
}

// EventUpdates describes the fields to overwrite on an event. Only non-nil
// fields are written. Field names mirror domain.Event.
type EventUpdates struct {
	EventStatus *string
	Title       *string
	Description *string
	// Tags replaces the whole tag list.
	Tags      *[]domain.TagID
	StartDate *string
	EndDate   *string
	OriginURL *string
	FormURL   *string
}

// EventStorage persists events, addressed by their external EventID.
type EventStorage interface {
	// StoreEvent inserts an event. ErrDuplicate is returned when the EventID
	// is taken.
	StoreEvent(ctx context.Context, event domain.Event) (*domain.Event, error)
	// Events returns the events matching filter ordered by start date, then
	// EventID.
	Events(ctx context.Context, filter EventFilter) ([]domain.Event, error)
	// UpdateEvent overwrites the provided fields and returns the updated
	// event, or nil when no event has the EventID.
	UpdateEvent(ctx context.Context, eventID string, updates EventUpdates) (*domain.Event, error)
	// DeleteEvent removes an event. It returns false when nothing was deleted.
	DeleteEvent(ctx context.Context, eventID string) (bool, error)
}
