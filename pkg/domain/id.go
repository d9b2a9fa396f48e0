package domain

import "github.com/google/uuid"

// UserID uniquely identifies a user.
type UserID uuid.UUID

// TagID uniquely identifies an interest tag.
type TagID uuid.UUID

// MunicipalityID uniquely identifies a municipality.
type MunicipalityID uuid.UUID

// EventID is the internal identifier of an event document. Events are
// addressed externally by Event.EventID.
type EventID uuid.UUID

// MailingListID uniquely identifies a mailing list.
type MailingListID uuid.UUID

// ParseID parses a canonical UUID string into any of the identifier types.
func ParseID[T ~[16]byte](s string) (T, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return T{}, err //nolint: wrapcheck
	}

	return T(u), nil
}

func (id UserID) String() string                { return uuid.UUID(id).String() }
func (id UserID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *UserID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id TagID) String() string                { return uuid.UUID(id).String() }
func (id TagID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *TagID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id MunicipalityID) String() string                { return uuid.UUID(id).String() }
func (id MunicipalityID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *MunicipalityID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id EventID) String() string                { return uuid.UUID(id).String() }
func (id EventID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *EventID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id MailingListID) String() string                { return uuid.UUID(id).String() }
func (id MailingListID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *MailingListID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
