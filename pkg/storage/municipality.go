package storage

import (
	"civic/pkg/domain"
	"context"
)

// MunicipalityFilter selects municipalities. Zero-valued fields do not filter.
type MunicipalityFilter struct {
	ID *domain.MunicipalityID
	// Name matches the whole municipality name case-insensitively.
	Name      string
	ForUpdate bool
}

// MunicipalityStorage persists municipalities.
type MunicipalityStorage interface {
	// StoreMunicipality inserts a municipality. ErrDuplicate is returned when
	// the name (case-insensitive) is taken.
	StoreMunicipality(ctx context.Context, municipality domain.Municipality) (*domain.Municipality, error)
	// Municipalities returns the municipalities matching filter ordered by name.
	Municipalities(ctx context.Context, filter MunicipalityFilter) ([]domain.Municipality, error)
	// UpdateMunicipality renames a municipality and returns it, or nil when
	// no municipality has the ID.
	UpdateMunicipality(ctx context.Context, ID domain.MunicipalityID, name string) (*domain.Municipality, error)
	// DeleteMunicipality removes a municipality. It returns false when nothing
	// was deleted. Users referencing it are left untouched.
	DeleteMunicipality(ctx context.Context, ID domain.MunicipalityID) (bool, error)
}
