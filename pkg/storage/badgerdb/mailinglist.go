package badgerdb

import (
	"civic/pkg/domain"
	"civic/pkg/storage"
	"context"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

func (s *Store) StoreMailingList(ctx context.Context, list domain.MailingList) (*domain.MailingList, error) {
	list.ID = domain.MailingListID(uuid.New())
	list.Users = slices.Clone(list.Users)
	if list.Users == nil {
		list.Users = []domain.UserID{}
	}
	if err := s.update(ctx, func(txn *badger.Txn) error {
		return mailingListDocs.insert(txn, &list)
	}); err != nil {
		return nil, err
	}

	return &list, nil
}

func (s *Store) MailingLists(ctx context.Context, filter storage.MailingListFilter) ([]domain.MailingList, error) {
	var result []domain.MailingList
	err := s.view(ctx, func(txn *badger.Txn) error {
		if len(filter.Tags) == 0 {
			var err error
			result, err = mailingListDocs.all(txn)

			return err
		}

		result = nil
		for _, tag := range filter.Tags {
			list, err := mailingListDocs.getBy(txn, "tag", tag.String())
			if err != nil {
				return err
			}
			if list != nil && !slices.ContainsFunc(result, func(l domain.MailingList) bool { return l.ID == list.ID }) {
				result = append(result, *list)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	if err = lockFor(s, filter.ForUpdate, mailingListDocs, result); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) UpdateMailingListUsers(
	ctx context.Context,
	ID domain.MailingListID,
	users []domain.UserID,
) (*domain.MailingList, error) {
	var updated *domain.MailingList
	err := s.update(ctx, func(txn *badger.Txn) error {
		updated = nil

		old, err := mailingListDocs.get(txn, ID.String())
		if err != nil || old == nil {
			return err
		}

		list := domain.MailingList{ID: old.ID, Tag: old.Tag, Users: slices.Clone(users)}
		if list.Users == nil {
			list.Users = []domain.UserID{}
		}
		if err := mailingListDocs.replace(txn, old, &list); err != nil {
			return err
		}
		updated = &list

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *Store) DeleteMailingList(ctx context.Context, tag domain.TagID) (bool, error) {
	var deleted bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		deleted = false

		list, err := mailingListDocs.getBy(txn, "tag", tag.String())
		if err != nil || list == nil {
			return err
		}
		if err := mailingListDocs.remove(txn, list); err != nil {
			return err
		}
		deleted = true

		return nil
	})

	return deleted, err
}
