// Package tag manages interest tags. Deleting a tag emulates a cascading
// foreign key: users and events drop their references to it and its mailing
// list is removed, all inside the transaction that deletes the tag.
package tag

import (
	"civic/internal/mailinglist"
	"civic/pkg/diff"
	"civic/pkg/domain"
	"civic/pkg/logger"
	"civic/pkg/serrors"
	"civic/pkg/storage"
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// Stages reported by serrors.StageOf when Create or Delete fail.
const (
	StageTag         = "tag"
	StageMailingList = "mailingList"
	StageUsers       = "users"
	StageEvents      = "events"
)

// patch lists the tag fields Update may change.
type patch struct {
	Tag *string
}

// manager is the concrete implementation of the Manager interface.
type manager struct {
	storage storage.Storage
}

// New creates a new Manager backed by the provided storage.
func New(storage storage.Storage) Manager {
	return &manager{storage: storage}
}

func findByName(ctx context.Context, tx storage.AllStorage, name string, forUpdate bool) (*domain.Tag, error) {
	tags, err := tx.Tags(ctx, storage.TagFilter{Name: name, ForUpdate: forUpdate})
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not fetch tag")
	}
	if len(tags) == 0 {
		return nil, nil //nolint: nilnil
	}

	return &tags[0], nil
}

func findByID(ctx context.Context, tx storage.AllStorage, ID domain.TagID, forUpdate bool) (*domain.Tag, error) {
	tags, err := tx.Tags(ctx, storage.TagFilter{ID: &ID, ForUpdate: forUpdate})
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not fetch tag")
	}
	if len(tags) == 0 {
		return nil, nil //nolint: nilnil
	}

	return &tags[0], nil
}

// Create stores a new tag and its mailing list. A failure of either step
// rolls back both and is reported as serrors.ErrCreationFailed.
func (m manager) Create(ctx context.Context, name string) (*domain.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, serrors.With(serrors.ErrBadRequest, "tag name is required")
	}

	var tag *domain.Tag
	err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		existing, err := findByName(ctx, tx, name, true)
		if err != nil {
			return err
		}
		if existing != nil {
			return serrors.With(serrors.ErrConflict, "tag %q already exists", name)
		}

		tag, err = tx.StoreTag(ctx, domain.Tag{Tag: name})
		if errors.Is(err, storage.ErrDuplicate) {
			return serrors.Wrap(serrors.ErrConflict, err, "tag %q already exists", name)
		}
		if err != nil {
			return serrors.AtStage(serrors.ErrCreationFailed, StageTag, err, "could not store tag")
		}

		if _, err := mailinglist.Create(ctx, tx, tag.ID); err != nil {
			return serrors.AtStage(serrors.ErrCreationFailed, StageMailingList, err,
				"could not create mailing list of tag %q", name)
		}

		return nil
	})
	if err != nil {
		return nil, serrors.Internal(err, "could not create tag")
	}

	return tag, nil
}

func (m manager) Get(ctx context.Context, ID domain.TagID) (*domain.Tag, error) {
	tag, err := findByID(ctx, m.storage, ID, false)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, serrors.With(serrors.ErrNotFound, "tag %s not found", ID)
	}

	return tag, nil
}

func (m manager) GetByName(ctx context.Context, name string) (*domain.Tag, error) {
	tag, err := findByName(ctx, m.storage, strings.TrimSpace(name), false)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, serrors.With(serrors.ErrNotFound, "tag %q not found", name)
	}

	return tag, nil
}

func (m manager) List(ctx context.Context) ([]domain.Tag, error) {
	tags, err := m.storage.Tags(ctx, storage.TagFilter{})
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not list tags")
	}

	return tags, nil
}

// Update renames the tag currently named currentName. It fails with
// serrors.ErrNoModification when the name would not change or when no tag
// matched, and with serrors.ErrConflict when newName belongs to another tag.
func (m manager) Update(ctx context.Context, currentName string, newName string) (*domain.Tag, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, serrors.With(serrors.ErrBadRequest, "tag name is required")
	}

	var tag *domain.Tag
	err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		current, err := findByName(ctx, tx, strings.TrimSpace(currentName), true)
		if err != nil {
			return err
		}
		if current == nil {
			return serrors.With(serrors.ErrNoModification, "no tag named %q", currentName)
		}
		if len(diff.Modified(current, patch{Tag: &newName})) == 0 {
			return serrors.With(serrors.ErrNoModification, "tag %q is unchanged", currentName)
		}

		other, err := findByName(ctx, tx, newName, true)
		if err != nil {
			return err
		}
		if other != nil && other.ID != current.ID {
			return serrors.With(serrors.ErrConflict, "tag %q already exists", newName)
		}

		tag, err = tx.UpdateTag(ctx, current.ID, newName)
		if errors.Is(err, storage.ErrDuplicate) {
			return serrors.Wrap(serrors.ErrConflict, err, "tag %q already exists", newName)
		}
		if err != nil {
			return serrors.Wrap(serrors.ErrInternal, err, "could not update tag")
		}
		if tag == nil {
			return serrors.With(serrors.ErrNoModification, "no tag named %q", currentName)
		}

		return nil
	})
	if err != nil {
		return nil, serrors.Internal(err, "could not update tag")
	}

	return tag, nil
}

// Delete removes the tag and cascades in this order: users' interested tags,
// events' tags, the mailing list, the tag itself. The tag row stays locked for
// the whole transaction, so a concurrent deletion of the same tag observes it
// gone and fails with serrors.ErrNotFound.
func (m manager) Delete(ctx context.Context, ID domain.TagID) error {
	err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		tag, err := findByID(ctx, tx, ID, true)
		if err != nil {
			return err
		}
		if tag == nil {
			return serrors.With(serrors.ErrNotFound, "tag %s not found", ID)
		}

		users, err := detachUsers(ctx, tx, ID)
		if err != nil {
			return serrors.AtStage(serrors.ErrCascadeFailed, StageUsers, err,
				"could not remove tag %q from users", tag.Tag)
		}

		events, err := detachEvents(ctx, tx, ID)
		if err != nil {
			return serrors.AtStage(serrors.ErrCascadeFailed, StageEvents, err,
				"could not remove tag %q from events", tag.Tag)
		}

		if err := mailinglist.Delete(ctx, tx, ID); err != nil {
			return serrors.AtStage(serrors.ErrCascadeFailed, StageMailingList, err,
				"could not delete mailing list of tag %q", tag.Tag)
		}

		deleted, err := tx.DeleteTag(ctx, ID)
		if err == nil && !deleted {
			err = serrors.With(serrors.ErrNotFound, "tag %s not found", ID)
		}
		if err != nil {
			return serrors.AtStage(serrors.ErrCascadeFailed, StageTag, err, "could not delete tag %q", tag.Tag)
		}

		logger.Info(ctx, "deleted tag",
			zap.Stringer("tagID", ID),
			zap.Int("detachedUsers", users),
			zap.Int("detachedEvents", events))

		return nil
	})

	return serrors.Internal(err, "could not delete tag")
}

// detachUsers overwrites the interested tags of every user following ID. The
// mailing list is not touched here: it is deleted as a whole afterwards.
func detachUsers(ctx context.Context, tx storage.AllStorage, ID domain.TagID) (int, error) {
	users, err := tx.Users(ctx, storage.UserFilter{InterestedTag: &ID, ForUpdate: true})
	if err != nil {
		return 0, serrors.Wrap(serrors.ErrInternal, err, "could not fetch users")
	}

	for _, user := range users {
		remaining := diff.Without(user.InterestedTags, ID)
		updated, err := tx.UpdateUser(ctx, user.ID, storage.UserUpdates{InterestedTags: &remaining})
		if err != nil {
			return 0, serrors.Wrap(serrors.ErrInternal, err, "could not update user %s", user.ID)
		}
		if updated == nil {
			return 0, serrors.With(serrors.ErrNotFound, "user %s not found", user.ID)
		}
	}

	return len(users), nil
}

func detachEvents(ctx context.Context, tx storage.AllStorage, ID domain.TagID) (int, error) {
	events, err := tx.Events(ctx, storage.EventFilter{Tag: &ID, ForUpdate: true})
	if err != nil {
		return 0, serrors.Wrap(serrors.ErrInternal, err, "could not fetch events")
	}

	for _, event := range events {
		remaining := diff.Without(event.Tags, ID)
		updated, err := tx.UpdateEvent(ctx, event.EventID, storage.EventUpdates{Tags: &remaining})
		if err != nil {
			return 0, serrors.Wrap(serrors.ErrInternal, err, "could not update event %s", event.EventID)
		}
		if updated == nil {
			return 0, serrors.With(serrors.ErrNotFound, "event %s not found", event.EventID)
		}
	}

	return len(events), nil
}
