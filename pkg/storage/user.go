package storage

import (
	"civic/pkg/domain"
	"context"
)

// UserFilter selects users. Zero-valued fields do not filter.
type UserFilter struct {
	// ID matches a single user.
	ID *domain.UserID
	// Email matches case-insensitively.
	Email string
	// InterestedTag matches users whose InterestedTags contain the tag.
	InterestedTag *domain.TagID
	// ForUpdate locks the matched users until the surrounding transaction
	// ends. It has no effect outside a transaction.
	ForUpdate bool
}

// UserUpdates describes the fields to overwrite on a user. Only non-nil fields
// are written. Field names mirror domain.User.
type UserUpdates struct {
	FirstName    *string
	LastName     *string
	Email        *string
	PasswordHash *string
	Municipality *domain.MunicipalityID
	// InterestedTags replaces the whole interested tag list.
	InterestedTags *[]domain.TagID
	IsAdmin        *bool
	IsValidated    *bool
	// ConfirmationToken sets the pending confirmation token. An empty string
	// clears it.
	ConfirmationToken *string
}

// UserStorage persists users.
type UserStorage interface {
	// StoreUser inserts a user and returns it as stored, including the
	// generated ID and timestamps. ErrDuplicate is returned when the email is
	// already taken.
	StoreUser(ctx context.Context, user domain.User) (*domain.User, error)
	// Users returns the users matching filter ordered by creation time.
	Users(ctx context.Context, filter UserFilter) ([]domain.User, error)
	// UpdateUser overwrites the provided fields and returns the updated user,
	// or nil when no user has the given ID.
	UpdateUser(ctx context.Context, ID domain.UserID, updates UserUpdates) (*domain.User, error)
	// DeleteUser removes a user. It returns false when no user was deleted.
	DeleteUser(ctx context.Context, ID domain.UserID) (bool, error)
}
