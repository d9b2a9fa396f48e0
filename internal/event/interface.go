package event

import (
	"civic/pkg/domain"
	"context"
)

// Manager manages events addressed by their external EventID. Tag references
// are only read here; tag deletion is what removes them from events.
type Manager interface {
	Create(ctx context.Context, draft Draft) (*domain.Event, error)
	Get(ctx context.Context, eventID string) (*domain.Event, error)
	// List returns the events ordered by start date, optionally restricted to
	// the events referencing tagID.
	List(ctx context.Context, tagID *domain.TagID) ([]domain.Event, error)
	// Update applies patch and fails with serrors.ErrNoModification when it
	// would not change the stored event.
	Update(ctx context.Context, eventID string, patch Patch) (*domain.Event, error)
	Delete(ctx context.Context, eventID string) error
}
