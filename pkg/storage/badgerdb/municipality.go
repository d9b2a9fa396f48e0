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

func (s *Store) StoreMunicipality(ctx context.Context, municipality domain.Municipality) (*domain.Municipality, error) {
	municipality.ID = domain.MunicipalityID(uuid.New())
	if err := s.update(ctx, func(txn *badger.Txn) error {
		return municipalityDocs.insert(txn, &municipality)
	}); err != nil {
		return nil, err
	}

	return &municipality, nil
}

func (s *Store) Municipalities(ctx context.Context, filter storage.MunicipalityFilter) ([]domain.Municipality, error) {
	var result []domain.Municipality
	err := s.view(ctx, func(txn *badger.Txn) error {
		var (
			municipality *domain.Municipality
			err          error
		)
		switch {
		case filter.ID != nil:
			municipality, err = municipalityDocs.get(txn, filter.ID.String())
		case filter.Name != "":
			municipality, err = municipalityDocs.getBy(txn, "name", fold(filter.Name))
		default:
			result, err = municipalityDocs.all(txn)

			return err
		}
		result = nil
		if municipality != nil && (filter.Name == "" || strings.EqualFold(municipality.Municipality, filter.Name)) {
			result = []domain.Municipality{*municipality}
		}

		return err
	})
	if err != nil {
		return nil, err
	}
	if err = lockFor(s, filter.ForUpdate, municipalityDocs, result); err != nil {
		return nil, err
	}

	slices.SortFunc(result, func(a, b domain.Municipality) int {
		return strings.Compare(fold(a.Municipality), fold(b.Municipality))
	})

	return result, nil
}

func (s *Store) UpdateMunicipality(ctx context.Context, ID domain.MunicipalityID, name string) (*domain.Municipality, error) {
	var updated *domain.Municipality
	err := s.update(ctx, func(txn *badger.Txn) error {
		updated = nil

		old, err := municipalityDocs.get(txn, ID.String())
		if err != nil || old == nil {
			return err
		}

		municipality := domain.Municipality{ID: old.ID, Municipality: name}
		if err := municipalityDocs.replace(txn, old, &municipality); err != nil {
			return err
		}
		updated = &municipality

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *Store) DeleteMunicipality(ctx context.Context, ID domain.MunicipalityID) (bool, error) {
	var deleted bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		deleted = false

		municipality, err := municipalityDocs.get(txn, ID.String())
		if err != nil || municipality == nil {
			return err
		}
		if err := municipalityDocs.remove(txn, municipality); err != nil {
			return err
		}
		deleted = true

		return nil
	})

	return deleted, err
}
