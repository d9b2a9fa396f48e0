package mailinglist

import (
	"civic/pkg/domain"
	"context"
)

// Manager maintains the per-tag subscriber sets. Every method runs in its own
// transaction; services that mutate a list as part of a larger operation use
// the package-level functions with their transaction handle instead.
type Manager interface {
	// Create creates the empty list of tagID. It fails with serrors.ErrConflict
	// if the tag already has a list.
	Create(ctx context.Context, tagID domain.TagID) (*domain.MailingList, error)
	// AddMember adds userID to the list of tagID. Adding a present member is a
	// successful no-op. It fails with serrors.ErrNotFound if the tag has no list.
	AddMember(ctx context.Context, tagID domain.TagID, userID domain.UserID) (*domain.MailingList, error)
	// RemoveMember removes userID from the list of tagID. Removing an absent
	// member is a successful no-op. It fails with serrors.ErrNotFound if the tag
	// has no list.
	RemoveMember(ctx context.Context, tagID domain.TagID, userID domain.UserID) (*domain.MailingList, error)
	Get(ctx context.Context, tagID domain.TagID) (*domain.MailingList, error)
	Delete(ctx context.Context, tagID domain.TagID) error
	// Recipients returns the members of the lists of the given tags, without
	// duplicates. Tags without a list are skipped.
	Recipients(ctx context.Context, tagIDs ...domain.TagID) ([]domain.UserID, error)
}
