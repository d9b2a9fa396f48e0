package badgerdb

import (
	"civic/pkg/domain"
	"civic/pkg/storage"
	"context"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

func (s *Store) StoreEvent(ctx context.Context, event domain.Event) (*domain.Event, error) {
	event.ID = domain.EventID(uuid.New())
	event.Tags = slices.Clone(event.Tags)
	if event.Tags == nil {
		event.Tags = []domain.TagID{}
	}
	if err := s.update(ctx, func(txn *badger.Txn) error {
		return eventDocs.insert(txn, &event)
	}); err != nil {
		return nil, err
	}

	return &event, nil
}

func (s *Store) Events(ctx context.Context, filter storage.EventFilter) ([]domain.Event, error) {
	var docs []domain.Event
	err := s.view(ctx, func(txn *badger.Txn) error {
		if filter.EventID == "" {
			var err error
			docs, err = eventDocs.all(txn)

			return err
		}

		event, err := eventDocs.getBy(txn, "eventId", filter.EventID)
		docs = nil
		if event != nil {
			docs = []domain.Event{*event}
		}

		return err
	})
	if err != nil {
		return nil, err
	}

	result := make([]domain.Event, 0, len(docs))
	for _, event := range docs {
		if filter.Tag != nil && !event.HasTag(*filter.Tag) {
			continue
		}
		result = append(result, event)
	}
	if err = lockFor(s, filter.ForUpdate, eventDocs, result); err != nil {
		return nil, err
	}
	slices.SortFunc(result, func(a, b domain.Event) int {
		if c := strings.Compare(a.StartDate, b.StartDate); c != 0 {
			return c
		}

		return strings.Compare(a.EventID, b.EventID)
	})

	return result, nil
}

func (s *Store) UpdateEvent(ctx context.Context, eventID string, updates storage.EventUpdates) (*domain.Event, error) {
	var updated *domain.Event
	err := s.update(ctx, func(txn *badger.Txn) error {
		updated = nil

		old, err := eventDocs.getBy(txn, "eventId", eventID)
		if err != nil || old == nil {
			return err
		}

		event := *old
		applyEventUpdates(&event, updates)
		if err := eventDocs.replace(txn, old, &event); err != nil {
			return err
		}
		updated = &event

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func applyEventUpdates(event *domain.Event, updates storage.EventUpdates) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&event.EventStatus, updates.EventStatus)
	set(&event.Title, updates.Title)
	set(&event.Description, updates.Description)
	set(&event.StartDate, updates.StartDate)
	set(&event.EndDate, updates.EndDate)
	set(&event.OriginURL, updates.OriginURL)
	set(&event.FormURL, updates.FormURL)
	if updates.Tags != nil {
		event.Tags = slices.Clone(*updates.Tags)
		if event.Tags == nil {
			event.Tags = []domain.TagID{}
		}
	}
}

func (s *Store) DeleteEvent(ctx context.Context, eventID string) (bool, error) {
	var deleted bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		deleted = false

		event, err := eventDocs.getBy(txn, "eventId", eventID)
		if err != nil || event == nil {
			return err
		}
		if err := eventDocs.remove(txn, event); err != nil {
			return err
		}
		deleted = true

		return nil
	})

	return deleted, err
}
