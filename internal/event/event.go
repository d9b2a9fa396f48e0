// Package event implements event CRUD. Every change enqueues a notification
// job for the mailing lists of the event's tags within the same transaction.
package event

import (
	"civic/internal/config"
	"civic/pkg/diff"
	"civic/pkg/domain"
	"civic/pkg/serrors"
	"civic/pkg/storage"
	"civic/pkg/validation"
	"context"
	"errors"
	"strings"
)

// Options configure how notification jobs are enqueued.
type Options struct {
	// MaxAttempts is the maximum number of attempts the worker makes to
	// deliver a notification before giving up.
	MaxAttempts int
}

// NewOptions constructs an Options value from the provided application config.
func NewOptions(cfg *config.Config) Options {
	return Options{
		MaxAttempts: cfg.Worker.MaxAttempts,
	}
}

// Draft holds the fields of a new event.
type Draft struct {
	EventID     string         `json:"eventId"     validate:"required"`
	EventStatus string         `json:"eventStatus" validate:"required"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Tags        []domain.TagID `json:"tags"`
	StartDate   string         `json:"startDate"`
	EndDate     string         `json:"endDate"`
	OriginURL   string         `json:"originUrl"   validate:"required"`
	FormURL     string         `json:"formUrl"`
}

// Patch lists the event fields Update may change. Nil fields are left as they
// are.
type Patch struct {
	EventStatus *string         `json:"eventStatus" validate:"omitempty,min=1"`
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Tags        *[]domain.TagID `json:"tags"`
	StartDate   *string         `json:"startDate"`
	EndDate     *string         `json:"endDate"`
	OriginURL   *string         `json:"originUrl"   validate:"omitempty,min=1"`
	FormURL     *string         `json:"formUrl"`
}

// manager is the concrete implementation of the Manager interface.
type manager struct {
	// options holds the retry policy of notification jobs.
	options Options
	// storage is the persistence layer used to store events and enqueue jobs.
	storage   storage.Storage
	validator *validation.Validator
}

// New creates a new Manager backed by the provided storage and configured
// with the given options.
func New(storage storage.Storage, options Options) Manager {
	return &manager{
		options:   options,
		storage:   storage,
		validator: validation.New(),
	}
}

func normalizeOptional(link *string) error {
	if link == nil || *link == "" {
		return nil
	}
	normalized, err := NormalizeURL(*link)
	if err != nil {
		return serrors.Wrap(serrors.ErrBadRequest, err, "invalid URL %q", *link)
	}
	*link = normalized

	return nil
}

func find(ctx context.Context, tx storage.AllStorage, eventID string, forUpdate bool) (*domain.Event, error) {
	events, err := tx.Events(ctx, storage.EventFilter{EventID: eventID, ForUpdate: forUpdate})
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not fetch event")
	}
	if len(events) == 0 {
		return nil, serrors.With(serrors.ErrNotFound, "event %q not found", eventID)
	}

	return &events[0], nil
}

// requireTags checks that every tag exists and locks it, so a concurrent tag
// deletion cannot leave the event with a dangling reference.
func requireTags(ctx context.Context, tx storage.AllStorage, tagIDs []domain.TagID) error {
	for _, tagID := range tagIDs {
		tags, err := tx.Tags(ctx, storage.TagFilter{ID: &tagID, ForUpdate: true})
		if err != nil {
			return serrors.Wrap(serrors.ErrInternal, err, "could not fetch tag")
		}
		if len(tags) == 0 {
			return serrors.With(serrors.ErrNotFound, "tag %s not found", tagID)
		}
	}

	return nil
}

func (m manager) notify(ctx context.Context, tx storage.AllStorage, action string, event *domain.Event, tags []domain.TagID) error {
	if len(tags) == 0 {
		return nil
	}

	if _, err := tx.AddJob(ctx, NotificationJobArgs{
		EventID:     event.EventID,
		Action:      action,
		Title:       event.Title,
		Tags:        tags,
		maxAttempts: m.options.MaxAttempts,
	}, nil); err != nil {
		return serrors.Wrap(serrors.ErrInternal, err, "could not add notification job")
	}

	return nil
}

func (m manager) Create(ctx context.Context, draft Draft) (*domain.Event, error) {
	draft.EventID = strings.TrimSpace(draft.EventID)
	if err := m.validator.Validate(draft); err != nil {
		return nil, err
	}
	if err := normalizeOptional(&draft.OriginURL); err != nil {
		return nil, err
	}
	if err := normalizeOptional(&draft.FormURL); err != nil {
		return nil, err
	}

	var event *domain.Event
	err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		tags := diff.Unique(draft.Tags)
		if err := requireTags(ctx, tx, tags); err != nil {
			return err
		}

		var err error
		event, err = tx.StoreEvent(ctx, domain.Event{
			EventID:     draft.EventID,
			EventStatus: draft.EventStatus,
			Title:       draft.Title,
			Description: draft.Description,
			Tags:        tags,
			StartDate:   draft.StartDate,
			EndDate:     draft.EndDate,
			OriginURL:   draft.OriginURL,
			FormURL:     draft.FormURL,
		})
		if errors.Is(err, storage.ErrDuplicate) {
			return serrors.Wrap(serrors.ErrConflict, err, "event %q already exists", draft.EventID)
		}
		if err != nil {
			return serrors.Wrap(serrors.ErrInternal, err, "could not store event")
		}

		return m.notify(ctx, tx, ActionCreated, event, event.Tags)
	})
	if err != nil {
		return nil, serrors.Internal(err, "could not create event")
	}

	return event, nil
}

func (m manager) Get(ctx context.Context, eventID string) (*domain.Event, error) {
	return find(ctx, m.storage, eventID, false)
}

func (m manager) List(ctx context.Context, tagID *domain.TagID) ([]domain.Event, error) {
	events, err := m.storage.Events(ctx, storage.EventFilter{Tag: tagID})
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not list events")
	}

	return events, nil
}

func (m manager) Update(ctx context.Context, eventID string, patch Patch) (*domain.Event, error) {
	if err := m.validator.Validate(patch); err != nil {
		return nil, err
	}
	if err := normalizeOptional(patch.OriginURL); err != nil {
		return nil, err
	}
	if err := normalizeOptional(patch.FormURL); err != nil {
		return nil, err
	}
	if patch.Tags != nil {
		tags := diff.Unique(*patch.Tags)
		patch.Tags = &tags
	}

	var event *domain.Event
	err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		original, err := find(ctx, tx, eventID, true)
		if err != nil {
			return err
		}
		if len(diff.Modified(original, patch)) == 0 {
			return serrors.With(serrors.ErrNoModification, "event %q is unchanged", eventID)
		}

		notified := original.Tags
		if patch.Tags != nil {
			added, _ := diff.Sets(original.Tags, *patch.Tags)
			if err := requireTags(ctx, tx, added); err != nil {
				return err
			}
			notified = append(diff.Unique(original.Tags), added...)
		}

		event, err = tx.UpdateEvent(ctx, eventID, storage.EventUpdates{
			EventStatus: patch.EventStatus,
			Title:       patch.Title,
			Description: patch.Description,
			Tags:        patch.Tags,
			StartDate:   patch.StartDate,
			EndDate:     patch.EndDate,
			OriginURL:   patch.OriginURL,
			FormURL:     patch.FormURL,
		})
		if err != nil {
			return serrors.Wrap(serrors.ErrInternal, err, "could not update event")
		}
		if event == nil {
			return serrors.With(serrors.ErrNotFound, "event %q not found", eventID)
		}

		return m.notify(ctx, tx, ActionUpdated, event, notified)
	})
	if err != nil {
		return nil, serrors.Internal(err, "could not update event")
	}

	return event, nil
}

func (m manager) Delete(ctx context.Context, eventID string) error {
	err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		event, err := find(ctx, tx, eventID, true)
		if err != nil {
			return err
		}

		deleted, err := tx.DeleteEvent(ctx, eventID)
		if err != nil {
			return serrors.Wrap(serrors.ErrInternal, err, "could not delete event")
		}
		if !deleted {
			return serrors.With(serrors.ErrNotFound, "event %q not found", eventID)
		}

		return m.notify(ctx, tx, ActionDeleted, event, event.Tags)
	})

	return serrors.Internal(err, "could not delete event")
}
