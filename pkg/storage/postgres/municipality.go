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
	municipalitiesTable = "municipalities"
)

func (p *PgSQL) StoreMunicipality(ctx context.Context, municipality domain.Municipality) (*domain.Municipality, error) {
	var row PgMunicipality
	if _, err := p.Builder.Insert(municipalitiesTable).
		Rows(PgMunicipality{Municipality: municipality.Municipality}).
		Returning(&PgMunicipality{}).
		Executor().ScanStructContext(ctx, &row); err != nil {
		return nil, wrapErr(err, "could not store municipality into pg")
	}

	stored := row.ToDomain()

	return &stored, nil
}

// Municipalities returns the municipalities matching filter ordered by
// lower(municipality).
func (p *PgSQL) Municipalities(ctx context.Context, filter storage.MunicipalityFilter) ([]domain.Municipality, error) {
	var w []exp.Expression
	if filter.ID != nil {
		w = append(w, goqu.I("id").Eq(uuid.UUID(*filter.ID)))
	}
	if filter.Name != "" {
		w = append(w, goqu.Func("lower", goqu.I("municipality")).Eq(strings.ToLower(filter.Name)))
	}

	ds := p.Builder.From(municipalitiesTable).
		Select(&PgMunicipality{}).
		Where(w...).
		Order(goqu.Func("lower", goqu.I("municipality")).Asc())
	if filter.ForUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}

	var rows []PgMunicipality
	if err := ds.Executor().ScanStructsContext(ctx, &rows); err != nil {
		return nil, wrapErr(err, "could not fetch municipalities from pg")
	}

	return pgToDomain(rows, (*PgMunicipality).ToDomain), nil
}

func (p *PgSQL) UpdateMunicipality(ctx context.Context, ID domain.MunicipalityID, name string) (*domain.Municipality, error) {
	var row PgMunicipality
	found, err := p.Builder.Update(municipalitiesTable).
		Set(goqu.Record{"municipality": name}).
		Where(goqu.I("id").Eq(uuid.UUID(ID))).
		Returning(&PgMunicipality{}).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, wrapErr(err, "could not update municipality in pg")
	}
	if !found {
		return nil, nil //nolint: nilnil
	}

	municipality := row.ToDomain()

	return &municipality, nil
}

func (p *PgSQL) DeleteMunicipality(ctx context.Context, ID domain.MunicipalityID) (bool, error) {
	res, err := p.Builder.Delete(municipalitiesTable).
		Where(goqu.I("id").Eq(uuid.UUID(ID))).
		Executor().ExecContext(ctx)
	if err != nil {
		return false, wrapErr(err, "could not delete municipality in pg")
	}

	return affected(res)
}
