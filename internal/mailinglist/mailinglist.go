// Package mailinglist keeps one subscriber list per tag. Membership changes
// are idempotent: the user service calls AddMember and RemoveMember for every
// tag of a diff without checking current membership first.
package mailinglist

import (
	"civic/pkg/diff"
	"civic/pkg/domain"
	"civic/pkg/serrors"
	"civic/pkg/storage"
	"context"
	"errors"
	"slices"
)

// Create creates the empty list of tagID using tx.
func Create(ctx context.Context, tx storage.AllStorage, tagID domain.TagID) (*domain.MailingList, error) {
	existing, err := find(ctx, tx, tagID, true)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, serrors.With(serrors.ErrConflict, "mailing list of tag %s already exists", tagID)
	}

	list, err := tx.StoreMailingList(ctx, domain.MailingList{Tag: tagID, Users: []domain.UserID{}})
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, serrors.Wrap(serrors.ErrConflict, err, "mailing list of tag %s already exists", tagID)
	}
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not store mailing list")
	}

	return list, nil
}

// AddMember adds userID to the list of tagID using tx. The list is locked
// for the rest of the transaction.
func AddMember(ctx context.Context, tx storage.AllStorage, tagID domain.TagID, userID domain.UserID) (*domain.MailingList, error) {
	list, err := Get(ctx, tx, tagID, true)
	if err != nil {
		return nil, err
	}
	if list.HasUser(userID) {
		return list, nil
	}

	return update(ctx, tx, list, append(slices.Clone(list.Users), userID))
}

// RemoveMember removes userID from the list of tagID using tx. The list is
// locked for the rest of the transaction.
func RemoveMember(ctx context.Context, tx storage.AllStorage, tagID domain.TagID, userID domain.UserID) (*domain.MailingList, error) {
	list, err := Get(ctx, tx, tagID, true)
	if err != nil {
		return nil, err
	}
	if !list.HasUser(userID) {
		return list, nil
	}

	return update(ctx, tx, list, diff.Without(list.Users, userID))
}

// Get returns the list of tagID, failing with serrors.ErrNotFound when the tag
// has none.
func Get(ctx context.Context, tx storage.AllStorage, tagID domain.TagID, forUpdate bool) (*domain.MailingList, error) {
	list, err := find(ctx, tx, tagID, forUpdate)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, serrors.With(serrors.ErrNotFound, "mailing list of tag %s not found", tagID)
	}

	return list, nil
}

// Delete removes the list of tagID using tx.
func Delete(ctx context.Context, tx storage.AllStorage, tagID domain.TagID) error {
	deleted, err := tx.DeleteMailingList(ctx, tagID)
	if err != nil {
		return serrors.Wrap(serrors.ErrInternal, err, "could not delete mailing list")
	}
	if !deleted {
		return serrors.With(serrors.ErrNotFound, "mailing list of tag %s not found", tagID)
	}

	return nil
}

// Recipients returns the union of the members of the lists of tagIDs.
func Recipients(ctx context.Context, tx storage.AllStorage, tagIDs ...domain.TagID) ([]domain.UserID, error) {
	if len(tagIDs) == 0 {
		return []domain.UserID{}, nil
	}

	lists, err := tx.MailingLists(ctx, storage.MailingListFilter{Tags: diff.Unique(tagIDs)})
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not fetch mailing lists")
	}

	var users []domain.UserID
	for _, list := range lists {
		users = append(users, list.Users...)
	}

	return diff.Unique(users), nil
}

func find(ctx context.Context, tx storage.AllStorage, tagID domain.TagID, forUpdate bool) (*domain.MailingList, error) {
	lists, err := tx.MailingLists(ctx, storage.MailingListFilter{
		Tags:      []domain.TagID{tagID},
		ForUpdate: forUpdate,
	})
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not fetch mailing list")
	}
	if len(lists) == 0 {
		return nil, nil //nolint: nilnil
	}

	return &lists[0], nil
}

func update(ctx context.Context, tx storage.AllStorage, list *domain.MailingList, users []domain.UserID) (*domain.MailingList, error) {
	updated, err := tx.UpdateMailingListUsers(ctx, list.ID, users)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not update mailing list")
	}
	if updated == nil {
		return nil, serrors.With(serrors.ErrNotFound, "mailing list of tag %s not found", list.Tag)
	}

	return updated, nil
}

type manager struct {
	storage storage.Storage
}

// New creates a Manager backed by the provided storage.
func New(storage storage.Storage) Manager {
	return &manager{storage: storage}
}

func (m manager) Create(ctx context.Context, tagID domain.TagID) (*domain.MailingList, error) {
	var list *domain.MailingList
	err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		var err error
		list, err = Create(ctx, tx, tagID)

		return err
	})
	if err != nil {
		return nil, serrors.Internal(err, "could not create mailing list")
	}

	return list, nil
}

func (m manager) AddMember(ctx context.Context, tagID domain.TagID, userID domain.UserID) (*domain.MailingList, error) {
	var list *domain.MailingList
	err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		var err error
		list, err = AddMember(ctx, tx, tagID, userID)

		return err
	})
	if err != nil {
		return nil, serrors.Internal(err, "could not add mailing list member")
	}

	return list, nil
}

func (m manager) RemoveMember(ctx context.Context, tagID domain.TagID, userID domain.UserID) (*domain.MailingList, error) {
	var list *domain.MailingList
	err := m.storage.WithTx(ctx, func(tx storage.AllStorage) error {
		var err error
		list, err = RemoveMember(ctx, tx, tagID, userID)

		return err
	})
	if err != nil {
		return nil, serrors.Internal(err, "could not remove mailing list member")
	}

	return list, nil
}

func (m manager) Get(ctx context.Context, tagID domain.TagID) (*domain.MailingList, error) {
	return Get(ctx, m.storage, tagID, false)
}

func (m manager) Delete(ctx context.Context, tagID domain.TagID) error {
	return Delete(ctx, m.storage, tagID)
}

func (m manager) Recipients(ctx context.Context, tagIDs ...domain.TagID) ([]domain.UserID, error) {
	return Recipients(ctx, m.storage, tagIDs...)
}
