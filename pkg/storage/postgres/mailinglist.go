package postgres

import (
	"civic/pkg/domain"
	"civic/pkg/storage"
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
)

const (
	mailingListsTable = "mailing_lists"
)

func (p *PgSQL) StoreMailingList(ctx context.Context, list domain.MailingList) (*domain.MailingList, error) {
	var row PgMailingList
	if _, err := p.Builder.Insert(mailingListsTable).
		Rows(PgMailingList{Tag: uuid.UUID(list.Tag), Users: toSet(list.Users)}).
		Returning(&PgMailingList{}).
		Executor().ScanStructContext(ctx, &row); err != nil {
		return nil, wrapErr(err, "could not store mailing list into pg")
	}

	stored := row.ToDomain()

	return &stored, nil
}

func (p *PgSQL) MailingLists(ctx context.Context, filter storage.MailingListFilter) ([]domain.MailingList, error) {
	var w []exp.Expression
	if len(filter.Tags) > 0 {
		tags := make([]string, 0, len(filter.Tags))
		for _, tag := range filter.Tags {
			tags = append(tags, tag.String())
		}
		w = append(w, goqu.I("tag").In(tags))
	}

	ds := p.Builder.From(mailingListsTable).
		Where(w...).
		Order(goqu.I("id").Asc())
	if filter.ForUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}

	var rows []PgMailingList
	if err := ds.Executor().ScanStructsContext(ctx, &rows); err != nil {
		return nil, wrapErr(err, "could not fetch mailing lists from pg")
	}

	return pgToDomain(rows, (*PgMailingList).ToDomain), nil
}

func (p *PgSQL) UpdateMailingListUsers(
	ctx context.Context,
	ID domain.MailingListID,
	users []domain.UserID,
) (*domain.MailingList, error) {
	var row PgMailingList
	found, err := p.Builder.Update(mailingListsTable).
		Set(goqu.Record{"users": toSet(users)}).
		Where(goqu.I("id").Eq(uuid.UUID(ID))).
		Returning(&PgMailingList{}).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, wrapErr(err, "could not update mailing list in pg")
	}
	if !found {
		return nil, nil //nolint: nilnil
	}

	list := row.ToDomain()

	return &list, nil
}

func (p *PgSQL) DeleteMailingList(ctx context.Context, tag domain.TagID) (bool, error) {
	res, err := p.Builder.Delete(mailingListsTable).
		Where(goqu.I("tag").Eq(uuid.UUID(tag))).
		Executor().ExecContext(ctx)
	if err != nil {
		return false, wrapErr(err, "could not delete mailing list in pg")
	}

	return affected(res)
}
