package badgerdb

import (
	"civic/pkg/domain"
	"time"

	"github.com/google/uuid"
)

// userDoc is the stored form of a user. Unlike domain.User it serializes the
// password hash and the confirmation token.
type userDoc struct {
	ID                uuid.UUID   `json:"id"`
	FirstName         string      `json:"firstName"`
	LastName          string      `json:"lastName"`
	Email             string      `json:"email"`
	PasswordHash      string      `json:"passwordHash"`
	Municipality      *uuid.UUID  `json:"municipality,omitempty"`
	InterestedTags    []uuid.UUID `json:"interestedTags"`
	IsAdmin           bool        `json:"isAdmin"`
	IsValidated       bool        `json:"isValidated"`
	ConfirmationToken *string     `json:"confirmationToken,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

func (u *userDoc) ToDomain() domain.User {
	tags := make([]domain.TagID, 0, len(u.InterestedTags))
	for _, t := range u.InterestedTags {
		tags = append(tags, domain.TagID(t))
	}

	var municipality *domain.MunicipalityID
	if u.Municipality != nil {
		m := domain.MunicipalityID(*u.Municipality)
		municipality = &m
	}

	return domain.User{
		ID:                domain.UserID(u.ID),
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Email:             u.Email,
		PasswordHash:      u.PasswordHash,
		Municipality:      municipality,
		InterestedTags:    tags,
		IsAdmin:           u.IsAdmin,
		IsValidated:       u.IsValidated,
		ConfirmationToken: u.ConfirmationToken,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func (u *userDoc) FromDomain(user *domain.User) {
	u.ID = uuid.UUID(user.ID)
	u.FirstName = user.FirstName
	u.LastName = user.LastName
	u.Email = user.Email
	u.PasswordHash = user.PasswordHash
	u.Municipality = nil
	if user.Municipality != nil {
		m := uuid.UUID(*user.Municipality)
		u.Municipality = &m
	}
	u.InterestedTags = make([]uuid.UUID, 0, len(user.InterestedTags))
	for _, t := range user.InterestedTags {
		u.InterestedTags = append(u.InterestedTags, uuid.UUID(t))
	}
	u.IsAdmin = user.IsAdmin
	u.IsValidated = user.IsValidated
	u.ConfirmationToken = user.ConfirmationToken
	u.CreatedAt = user.CreatedAt
	u.UpdatedAt = user.UpdatedAt
}

// Tags, municipalities, events and mailing lists carry nothing that is hidden
// from their JSON form, so the domain types are stored as they are.
//
//nolint: gochecknoglobals
var (
	userDocs = newCollection(
		"user",
		func(u *userDoc) string { return u.ID.String() },
		index[userDoc]{name: "email", value: func(u *userDoc) string { return fold(u.Email) }},
	)
	tagDocs = newCollection(
		"tag",
		func(t *domain.Tag) string { return t.ID.String() },
		index[domain.Tag]{name: "name", value: func(t *domain.Tag) string { return fold(t.Tag) }},
	)
	municipalityDocs = newCollection(
		"municipality",
		func(m *domain.Municipality) string { return m.ID.String() },
		index[domain.Municipality]{name: "name", value: func(m *domain.Municipality) string { return fold(m.Municipality) }},
	)
	eventDocs = newCollection(
		"event",
		func(e *domain.Event) string { return e.ID.String() },
		index[domain.Event]{name: "eventId", value: func(e *domain.Event) string { return e.EventID }},
	)
	mailingListDocs = newCollection(
		"mailinglist",
		func(m *domain.MailingList) string { return m.ID.String() },
		index[domain.MailingList]{name: "tag", value: func(m *domain.MailingList) string { return m.Tag.String() }},
	)
	jobDocs = newCollection(
		"job",
		func(j *Job) string { return j.ID.String() },
	)
)
