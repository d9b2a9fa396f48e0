package badgerdb

import (
	"civic/pkg/domain"
	"civic/pkg/storage"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

func (s *Store) StoreUser(ctx context.Context, user domain.User) (*domain.User, error) {
	user.ID = domain.UserID(uuid.New())
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = time.Time{}

	var doc userDoc
	doc.FromDomain(&user)
	if err := s.update(ctx, func(txn *badger.Txn) error {
		return userDocs.insert(txn, &doc)
	}); err != nil {
		return nil, err
	}

	stored := doc.ToDomain()

	return &stored, nil
}

func (s *Store) Users(ctx context.Context, filter storage.UserFilter) ([]domain.User, error) {
	var docs []userDoc
	err := s.view(ctx, func(txn *badger.Txn) error {
		var (
			doc *userDoc
			err error
		)
		switch {
		case filter.ID != nil:
			doc, err = userDocs.get(txn, filter.ID.String())
		case filter.Email != "":
			doc, err = userDocs.getBy(txn, "email", fold(filter.Email))
		default:
			docs, err = userDocs.all(txn)

			return err
		}
		if doc != nil {
			docs = []userDoc{*doc}
		}

		return err
	})
	if err != nil {
		return nil, err
	}

	result := make([]domain.User, 0, len(docs))
	matched := docs[:0]
	for i := range docs {
		user := docs[i].ToDomain()
		if filter.Email != "" && !strings.EqualFold(user.Email, filter.Email) {
			continue
		}
		if filter.InterestedTag != nil && !user.HasTag(*filter.InterestedTag) {
			continue
		}
		result = append(result, user)
		matched = append(matched, docs[i])
	}
	if err = lockFor(s, filter.ForUpdate, userDocs, matched); err != nil {
		return nil, err
	}
	slices.SortStableFunc(result, func(a, b domain.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID.String(), b.ID.String())
	})

	return result, nil
}

func (s *Store) UpdateUser(ctx context.Context, ID domain.UserID, updates storage.UserUpdates) (*domain.User, error) {
	var updated *domain.User
	err := s.update(ctx, func(txn *badger.Txn) error {
		updated = nil

		old, err := userDocs.get(txn, ID.String())
		if err != nil || old == nil {
			return err
		}

		user := old.ToDomain()
		applyUserUpdates(&user, updates)
		user.UpdatedAt = time.Now().UTC()

		var doc userDoc
		doc.FromDomain(&user)
		if err := userDocs.replace(txn, old, &doc); err != nil {
			return err
		}
		updated = &user

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func applyUserUpdates(user *domain.User, updates storage.UserUpdates) {
	if updates.FirstName != nil {
		user.FirstName = *updates.FirstName
	}
	if updates.LastName != nil {
		user.LastName = *updates.LastName
	}
	if updates.Email != nil {
		user.Email = *updates.Email
	}
	if updates.PasswordHash != nil {
		user.PasswordHash = *updates.PasswordHash
	}
	if updates.Municipality != nil {
		m := *updates.Municipality
		user.Municipality = &m
	}
	if updates.InterestedTags != nil {
		user.InterestedTags = slices.Clone(*updates.InterestedTags)
	}
	if updates.IsAdmin != nil {
		user.IsAdmin = *updates.IsAdmin
	}
	if updates.IsValidated != nil {
		user.IsValidated = *updates.IsValidated
	}
	if updates.ConfirmationToken != nil {
		user.ConfirmationToken = nil
		if *updates.ConfirmationToken != "" {
			token := *updates.ConfirmationToken
			user.ConfirmationToken = &token
		}
	}
}

func (s *Store) DeleteUser(ctx context.Context, ID domain.UserID) (bool, error) {
	var deleted bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		deleted = false

		doc, err := userDocs.get(txn, ID.String())
		if err != nil || doc == nil {
			return err
		}
		if err := userDocs.remove(txn, doc); err != nil {
			return err
		}
		deleted = true

		return nil
	})

	return deleted, err
}
