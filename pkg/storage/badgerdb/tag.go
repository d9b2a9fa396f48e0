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

func (s *Store) StoreTag(ctx context.Context, tag domain.Tag) (*domain.Tag, error) {
	tag.ID = domain.TagID(uuid.New())
	if err := s.update(ctx, func(txn *badger.Txn) error {
		return tagDocs.insert(txn, &tag)
	}); err != nil {
		return nil, err
	}

	return &tag, nil
}

func (s *Store) Tags(ctx context.Context, filter storage.TagFilter) ([]domain.Tag, error) {
	var result []domain.Tag
	err := s.view(ctx, func(txn *badger.Txn) error {
		var (
			tag *domain.Tag
			err error
		)
		switch {
		case filter.ID != nil:
			tag, err = tagDocs.get(txn, filter.ID.String())
		case filter.Name != "":
			tag, err = tagDocs.getBy(txn, "name", fold(filter.Name))
		default:
			result, err = tagDocs.all(txn)

			return err
		}
		result = nil
		if tag != nil && (filter.Name == "" || strings.EqualFold(tag.Tag, filter.Name)) {
			result = []domain.Tag{*tag}
		}

		return err
	})
	if err != nil {
		return nil, err
	}
	if err = lockFor(s, filter.ForUpdate, tagDocs, result); err != nil {
		return nil, err
	}

	slices.SortFunc(result, func(a, b domain.Tag) int {
		return strings.Compare(fold(a.Tag), fold(b.Tag))
	})

	return result, nil
}

func (s *Store) UpdateTag(ctx context.Context, ID domain.TagID, name string) (*domain.Tag, error) {
	var updated *domain.Tag
	err := s.update(ctx, func(txn *badger.Txn) error {
		updated = nil

		old, err := tagDocs.get(txn, ID.String())
		if err != nil || old == nil {
			return err
		}

		tag := domain.Tag{ID: old.ID, Tag: name}
		if err := tagDocs.replace(txn, old, &tag); err != nil {
			return err
		}
		updated = &tag

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *Store) DeleteTag(ctx context.Context, ID domain.TagID) (bool, error) {
	var deleted bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		deleted = false

		tag, err := tagDocs.get(txn, ID.String())
		if err != nil || tag == nil {
			return err
		}
		if err := tagDocs.remove(txn, tag); err != nil {
			return err
		}
		deleted = true

		return nil
	})

	return deleted, err
}
