package user

import (
	"civic/pkg/domain"
	"context"
)

// Manager registers and maintains users. Every change to a user's interested
// tags is mirrored to the mailing lists of those tags in the same transaction.
type Manager interface {
	// IsEmailUnique reports whether email is non-blank and not used by any
	// user, compared case-insensitively.
	IsEmailUnique(ctx context.Context, email string) (bool, error)
	// Register creates a user, assigning the default municipality when info
	// has none, and enrolls it in the mailing list of every interested tag.
	Register(ctx context.Context, info RegisterInfo, isAdmin bool, isValidated bool) (*domain.User, error)
	// Login returns the user owning email when password matches its hash.
	Login(ctx context.Context, email string, password string) (*domain.User, error)
	// Update applies patch to the user owning email and synchronizes mailing
	// list memberships with the resulting interested tags.
	Update(ctx context.Context, email string, patch Patch) (*domain.User, error)
	// Delete removes the user owning email from every mailing list and then
	// deletes it.
	Delete(ctx context.Context, email string) error
	GetOne(ctx context.Context, email string) (*domain.UserProfile, error)
	GetAll(ctx context.Context) ([]domain.UserProfile, error)
	// Validate confirms the email of a user with the token issued at
	// registration.
	Validate(ctx context.Context, email string, token string) (*domain.User, error)
}
