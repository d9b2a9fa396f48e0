package tag

import (
	"civic/pkg/domain"
	"context"
)

// Manager manages interest tags together with the mailing list each tag owns.
type Manager interface {
	// Create stores a tag and its empty mailing list atomically.
	Create(ctx context.Context, name string) (*domain.Tag, error)
	Get(ctx context.Context, ID domain.TagID) (*domain.Tag, error)
	GetByName(ctx context.Context, name string) (*domain.Tag, error)
	List(ctx context.Context) ([]domain.Tag, error)
	Update(ctx context.Context, currentName string, newName string) (*domain.Tag, error)
	// Delete removes a tag, every reference to it held by users and events,
	// and its mailing list. Either all of it happens or nothing does.
	Delete(ctx context.Context, ID domain.TagID) error
}
