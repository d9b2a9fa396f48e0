package domain

import (
	"slices"
	"time"
)

// User is a registered member of the community. InterestedTags is an ordered
// set: it never contains the same tag twice and keeps insertion order.
type User struct {
	// ID is the unique identifier of the user.
	ID UserID `json:"id"`

	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	// Email is unique across users, compared case-insensitively.
	Email string `json:"email"`
	// PasswordHash is the salted one-way hash of the user's password.
	PasswordHash string `json:"-"`

	// Municipality references the user's municipality. Users registered
	// without one are assigned the default municipality.
	Municipality *MunicipalityID `json:"municipality"`
	// InterestedTags are the tags the user subscribed to. The mailing list of
	// every tag listed here contains the user.
	InterestedTags []TagID `json:"interestedTags"`

	IsAdmin     bool `json:"isAdmin"`
	IsValidated bool `json:"isValidated"`
	// ConfirmationToken is the pending email confirmation token, if any.
	ConfirmationToken *string `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasTag reports whether tag is one of the user's interested tags.
func (u *User) HasTag(tag TagID) bool {
	return slices.Contains(u.InterestedTags, tag)
}

// UserProfile is a user with its references resolved for display.
type UserProfile struct {
	User

	// MunicipalityRecord is the resolved municipality, nil when the reference
	// is empty or dangling.
	MunicipalityRecord *Municipality `json:"municipalityRecord,omitempty"`
	// Tags are the resolved interested tags, in the user's order. Dangling
	// references are skipped.
	Tags []Tag `json:"tags"`
}
