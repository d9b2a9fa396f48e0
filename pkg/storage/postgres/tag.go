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
	tagsTable = "tags"
)

func (p *PgSQL) StoreTag(ctx context.Context, tag domain.Tag) (*domain.Tag, error) {
	var row PgTag
	if _, err := p.Builder.Insert(tagsTable).
		Rows(PgTag{Tag: tag.Tag}).
		Returning(&PgTag{}).
		Executor().ScanStructContext(ctx, &row); err != nil {
		return nil, wrapErr(err, "could not store tag into pg")
	}

	stored := row.ToDomain()

	return &stored, nil
}

// Tags returns the tags matching filter ordered by lower(tag).
func (p *PgSQL) Tags(ctx context.Context, filter storage.TagFilter) ([]domain.Tag, error) {
	var w []exp.Expression
	if filter.ID != nil {
		w = append(w, goqu.I("id").Eq(uuid.UUID(*filter.ID)))
	}
	if filter.Name != "" {
		w = append(w, goqu.Func("lower", goqu.I("tag")).Eq(strings.ToLower(filter.Name)))
	}

	ds := p.Builder.From(tagsTable).
		Select(&PgTag{}).
		Where(w...).
		Order(goqu.Func("lower", goqu.I("tag")).Asc())
	if filter.ForUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}

	var rows []PgTag
	if err := ds.Executor().ScanStructsContext(ctx, &rows); err != nil {
		return nil, wrapErr(err, "could not fetch tags from pg")
	}

	return pgToDomain(rows, (*PgTag).ToDomain), nil
}

func (p *PgSQL) UpdateTag(ctx context.Context, ID domain.TagID, name string) (*domain.Tag, error) {
	var row PgTag
	found, err := p.Builder.Update(tagsTable).
		Set(goqu.Record{"tag": name}).
		Where(goqu.I("id").Eq(uuid.UUID(ID))).
		Returning(&PgTag{}).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, wrapErr(err, "could not update tag in pg")
	}
	if !found {
		return nil, nil //nolint: nilnil
	}

	tag := row.ToDomain()

	return &tag, nil
}

func (p *PgSQL) DeleteTag(ctx context.Context, ID domain.TagID) (bool, error) {
	res, err := p.Builder.Delete(tagsTable).
		Where(goqu.I("id").Eq(uuid.UUID(ID))).
		Executor().ExecContext(ctx)
	if err != nil {
		return false, wrapErr(err, "could not delete tag in pg")
	}

	return affected(res)
}
