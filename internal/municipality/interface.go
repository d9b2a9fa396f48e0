package municipality

import (
	"civic/pkg/domain"
	"context"
)

// Manager manages municipalities and guards the default municipality, which
// is identified by its configured name and can be neither deleted nor renamed.
type Manager interface {
	// GetOrCreateDefault looks name up case-insensitively. When it is missing
	// and names the default municipality, the default is created on the fly.
	GetOrCreateDefault(ctx context.Context, name string) (*domain.Municipality, error)
	Get(ctx context.Context, name string) (*domain.Municipality, error)
	List(ctx context.Context) ([]domain.Municipality, error)
	Create(ctx context.Context, name string) (*domain.Municipality, error)
	// Delete removes a municipality and reassigns its users to the default
	// municipality in the same transaction.
	Delete(ctx context.Context, name string) error
	Update(ctx context.Context, currentName string, newName string) (*domain.Municipality, error)
}
