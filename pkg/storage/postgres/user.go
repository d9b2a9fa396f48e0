package postgres

import (
	"civic/pkg/domain"
	"civic/pkg/storage"
	"context"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
)

const (
	usersTable = "users"
)

func (p *PgSQL) StoreUser(ctx context.Context, user domain.User) (*domain.User, error) {
	var row PgUser
	row.FromDomain(user)

	var stored PgUser
	if _, err := p.Builder.Insert(usersTable).
		Rows(row).
		Returning(&PgUser{}).
		Executor().ScanStructContext(ctx, &stored); err != nil {
		return nil, wrapErr(err, "could not store user into pg")
	}

	result := stored.ToDomain()

	return &result, nil
}

// Users returns the users matching filter ordered by created_at, id.
func (p *PgSQL) Users(ctx context.Context, filter storage.UserFilter) ([]domain.User, error) {
	var w []exp.Expression
	if filter.ID != nil {
		w = append(w, goqu.I("id").Eq(uuid.UUID(*filter.ID)))
	}
	if filter.Email != "" {
		w = append(w, goqu.Func("lower", goqu.I("email")).Eq(strings.ToLower(filter.Email)))
	}
	if filter.InterestedTag != nil {
		w = append(w, goqu.L("interested_tags @> ?::jsonb", containsLiteral(uuid.UUID(*filter.InterestedTag))))
	}

	ds := p.Builder.From(usersTable).
		Where(w...).
		Order(goqu.I("created_at").Asc(), goqu.I("id").Asc())
	if filter.ForUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}

	var rows []PgUser
	if err := ds.Executor().ScanStructsContext(ctx, &rows); err != nil {
		return nil, wrapErr(err, "could not fetch users from pg")
	}

	return pgToDomain(rows, (*PgUser).ToDomain), nil
}

// UpdateUser sets the provided fields and updated_at. An empty confirmation
// token is stored as NULL.
func (p *PgSQL) UpdateUser(ctx context.Context, ID domain.UserID, updates storage.UserUpdates) (*domain.User, error) {
	rec := goqu.Record{
		"updated_at": goqu.L("CURRENT_TIMESTAMP"),
	}
	if updates.FirstName != nil {
		rec["first_name"] = *updates.FirstName
	}
	if updates.LastName != nil {
		rec["last_name"] = *updates.LastName
	}
	if updates.Email != nil {
		rec["email"] = *updates.Email
	}
	if updates.PasswordHash != nil {
		rec["password_hash"] = *updates.PasswordHash
	}
	if updates.Municipality != nil {
		rec["municipality"] = uuid.UUID(*updates.Municipality)
	}
	if updates.InterestedTags != nil {
		rec["interested_tags"] = toSet(*updates.InterestedTags)
	}
	if updates.IsAdmin != nil {
		rec["is_admin"] = *updates.IsAdmin
	}
	if updates.IsValidated != nil {
		rec["is_validated"] = *updates.IsValidated
	}
	if updates.ConfirmationToken != nil {
		if *updates.ConfirmationToken == "" {
			rec["confirmation_token"] = goqu.L("NULL")
		} else {
			rec["confirmation_token"] = *updates.ConfirmationToken
		}
	}

	var row PgUser
	found, err := p.Builder.Update(usersTable).
		Set(rec).
		Where(goqu.I("id").Eq(uuid.UUID(ID))).
		Returning(&PgUser{}).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, wrapErr(err, "could not update user in pg")
	}
	if !found {
		return nil, nil //nolint: nilnil
	}

	user := row.ToDomain()

	return &user, nil
}

func (p *PgSQL) DeleteUser(ctx context.Context, ID domain.UserID) (bool, error) {
	res, err := p.Builder.Delete(usersTable).
		Where(goqu.I("id").Eq(uuid.UUID(ID))).
		Executor().ExecContext(ctx)
	if err != nil {
		return false, wrapErr(err, "could not delete user in pg")
	}

	return affected(res)
}
