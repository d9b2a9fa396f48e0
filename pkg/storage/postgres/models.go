package postgres

import (
	"civic/pkg/domain"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// uuidSet is a list of ids stored as a JSONB array.
type uuidSet []uuid.UUID

func (s uuidSet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]uuid.UUID(s))
	if err != nil {
		return nil, fmt.Errorf("could not marshal id set: %w", err)
	}

	return string(b), nil
}

func (s *uuidSet) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*s = uuidSet{}

		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported id set source %T", src)
	}

	var ids []uuid.UUID
	if err := json.Unmarshal(b, &ids); err != nil {
		return fmt.Errorf("could not unmarshal id set: %w", err)
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	*s = ids

	return nil
}

// containsLiteral renders the JSONB containment operand matching rows whose
// set holds id.
func containsLiteral(id uuid.UUID) string {
	return `["` + id.String() + `"]`
}

func toSet[T ~[16]byte](ids []T) uuidSet {
	out := make(uuidSet, 0, len(ids))
	for _, id := range ids {
		out = append(out, uuid.UUID(id))
	}

	return out
}

func fromSet[T ~[16]byte](set uuidSet) []T {
	out := make([]T, 0, len(set))
	for _, id := range set {
		out = append(out, T(id))
	}

	return out
}

type PgUser struct {
	ID uuid.UUID `db:"id" goqu:"skipinsert"`

	FirstName    string `db:"first_name"`
	LastName     string `db:"last_name"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`

	Municipality   uuid.NullUUID `db:"municipality"`
	InterestedTags uuidSet       `db:"interested_tags"`

	IsAdmin           bool           `db:"is_admin"`
	IsValidated       bool           `db:"is_validated"`
	ConfirmationToken sql.NullString `db:"confirmation_token"`

	CreatedAt time.Time    `db:"created_at" goqu:"skipinsert"`
	UpdatedAt sql.NullTime `db:"updated_at" goqu:"skipinsert"`
}

func (p *PgUser) ToDomain() domain.User {
	var municipality *domain.MunicipalityID
	if p.Municipality.Valid {
		m := domain.MunicipalityID(p.Municipality.UUID)
		municipality = &m
	}

	var token *string
	if p.ConfirmationToken.Valid {
		t := p.ConfirmationToken.String
		token = &t
	}

	return domain.User{
		ID:                domain.UserID(p.ID),
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		Email:             p.Email,
		PasswordHash:      p.PasswordHash,
		Municipality:      municipality,
		InterestedTags:    fromSet[domain.TagID](p.InterestedTags),
		IsAdmin:           p.IsAdmin,
		IsValidated:       p.IsValidated,
		ConfirmationToken: token,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt.Time,
	}
}

func (p *PgUser) FromDomain(user domain.User) {
	*p = PgUser{
		ID:             uuid.UUID(user.ID),
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		Email:          user.Email,
		PasswordHash:   user.PasswordHash,
		InterestedTags: toSet(user.InterestedTags),
		IsAdmin:        user.IsAdmin,
		IsValidated:    user.IsValidated,
		CreatedAt:      user.CreatedAt,
		UpdatedAt: sql.NullTime{
			Time:  user.UpdatedAt,
			Valid: !user.UpdatedAt.IsZero(),
		},
	}
	if user.Municipality != nil {
		p.Municipality = uuid.NullUUID{UUID: uuid.UUID(*user.Municipality), Valid: true}
	}
	if user.ConfirmationToken != nil {
		p.ConfirmationToken = sql.NullString{String: *user.ConfirmationToken, Valid: true}
	}
}

type PgTag struct {
	ID  uuid.UUID `db:"id"  goqu:"skipinsert"`
	Tag string    `db:"tag"`
}

func (p *PgTag) ToDomain() domain.Tag {
	return domain.Tag{ID: domain.TagID(p.ID), Tag: p.Tag}
}

type PgMunicipality struct {
	ID           uuid.UUID `db:"id"           goqu:"skipinsert"`
	Municipality string    `db:"municipality"`
}

func (p *PgMunicipality) ToDomain() domain.Municipality {
	return domain.Municipality{ID: domain.MunicipalityID(p.ID), Municipality: p.Municipality}
}

type PgEvent struct {
	ID      uuid.UUID `db:"id"       goqu:"skipinsert"`
	EventID string    `db:"event_id"`

	EventStatus string  `db:"event_status"`
	Title       string  `db:"title"`
	Description string  `db:"description"`
	Tags        uuidSet `db:"tags"`
	StartDate   string  `db:"start_date"`
	EndDate     string  `db:"end_date"`
	OriginURL   string  `db:"origin_url"`
	FormURL     string  `db:"form_url"`
}

func (p *PgEvent) ToDomain() domain.Event {
	return domain.Event{
		ID:          domain.EventID(p.ID),
		EventID:     p.EventID,
		EventStatus: p.EventStatus,
		Title:       p.Title,
		Description: p.Description,
		Tags:        fromSet[domain.TagID](p.Tags),
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		OriginURL:   p.OriginURL,
		FormURL:     p.FormURL,
	}
}

func (p *PgEvent) FromDomain(event domain.Event) {
	*p = PgEvent{
		ID:          uuid.UUID(event.ID),
		EventID:     event.EventID,
		EventStatus: event.EventStatus,
		Title:       event.Title,
		Description: event.Description,
		Tags:        toSet(event.Tags),
		StartDate:   event.StartDate,
		EndDate:     event.EndDate,
		OriginURL:   event.OriginURL,
		FormURL:     event.FormURL,
	}
}

type PgMailingList struct {
	ID    uuid.UUID `db:"id"    goqu:"skipinsert"`
	Tag   uuid.UUID `db:"tag"`
	Users uuidSet   `db:"users"`
}

func (p *PgMailingList) ToDomain() domain.MailingList {
	return domain.MailingList{
		ID:    domain.MailingListID(p.ID),
		Tag:   domain.TagID(p.Tag),
		Users: fromSet[domain.UserID](p.Users),
	}
}

func pgToDomain[P any, D any](rows []P, conv func(*P) D) []D {
	out := make([]D, 0, len(rows))
	for i := range rows {
		out = append(out, conv(&rows[i]))
	}

	return out
}
