package storage

import (
	"civic/pkg/domain"
	"context"
)

// TagFilter selects tags. Zero-valued fields do not filter.
type TagFilter struct {
	ID *domain.TagID
	// Name matches the whole tag name case-insensitively.
	Name      string
	ForUpdate bool
}

// TagStorage persists tags.
type TagStorage interface {
	// StoreTag inserts a tag. ErrDuplicate is returned when a tag with the
	// same name (case-insensitive) exists.
	StoreTag(ctx context.Context, tag domain.Tag) (*domain.Tag, error)
	// Tags returns the tags matching filter ordered by name.
	Tags(ctx context.Context, filter TagFilter) ([]domain.Tag, error)
	// UpdateTag renames a tag and returns it, or nil when no tag has the ID.
	UpdateTag(ctx context.Context, ID domain.TagID, name string) (*domain.Tag, error)
	// DeleteTag removes a tag. It returns false when no tag was deleted.
	DeleteTag(ctx context.Context, ID domain.TagID) (bool, error)
}
