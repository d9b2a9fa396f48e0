package storage

import (
	"civic/pkg/domain"
	"context"
)

// MailingListFilter selects mailing lists. Zero-valued fields do not filter.
type MailingListFilter struct {
	// Tags matches the lists of any of the given tags.
	Tags      []domain.TagID
	ForUpdate bool
}

// MailingListStorage persists mailing lists. There is at most one list per tag.
type MailingListStorage interface {
	// StoreMailingList inserts a list. ErrDuplicate is returned when the tag
	// already has a list.
	StoreMailingList(ctx context.Context, list domain.MailingList) (*domain.MailingList, error)
	// MailingLists returns the lists matching filter.
	MailingLists(ctx context.Context, filter MailingListFilter) ([]domain.MailingList, error)
	// UpdateMailingListUsers replaces the members of a list and returns it, or
	// nil when no list has the ID.
	UpdateMailingListUsers(ctx context.Context, ID domain.MailingListID, users []domain.UserID) (*domain.MailingList, error)
	// DeleteMailingList removes the list of tag. It returns false when the tag
	// has no list.
	DeleteMailingList(ctx context.Context, tag domain.TagID) (bool, error)
}
