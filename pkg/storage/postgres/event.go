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
	eventsTable = "events"
)

func (p *PgSQL) StoreEvent(ctx context.Context, event domain.Event) (*domain.Event, error) {
	var row PgEvent
	row.FromDomain(event)

	var stored PgEvent
	if _, err := p.Builder.Insert(eventsTable).
		Rows(row).
		Returning(&PgEvent{}).
		Executor().ScanStructContext(ctx, &stored); err != nil {
		return nil, wrapErr(err, "could not store event into pg")
	}

	result := stored.ToDomain()

	return &result, nil
}

// Events returns the events matching filter ordered by start_date, event_id.
func (p *PgSQL) Events(ctx context.Context, filter storage.EventFilter) ([]domain.Event, error) {
	var w []exp.Expression
	if filter.EventID != "" {
		w = append(w, goqu.I("event_id").Eq(filter.EventID))
	}
	if filter.Tag != nil {
		w = append(w, goqu.L("tags @> ?::jsonb", containsLiteral(uuid.UUID(*filter.Tag))))
	}

	ds := p.Builder.From(eventsTable).
		Select(&PgEvent{}).
		Where(w...).
		Order(goqu.I("start_date").Asc(), goqu.I("event_id").Asc())
	if filter.ForUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}

	var rows []PgEvent
	if err := ds.Executor().ScanStructsContext(ctx, &rows); err != nil {
		return nil, wrapErr(err, "could not fetch events from pg")
	}

	return pgToDomain(rows, (*PgEvent).ToDomain), nil
}

func (p *PgSQL) UpdateEvent(ctx context.Context, eventID string, updates storage.EventUpdates) (*domain.Event, error) {
	rec := goqu.Record{}
	for column, value := range map[string]*string{
		"event_status": updates.EventStatus,
		"title":        updates.Title,
		"description":  updates.Description,
		"start_date":   updates.StartDate,
		"end_date":     updates.EndDate,
		"origin_url":   updates.OriginURL,
		"form_url":     updates.FormURL,
	} {
		if value != nil {
			rec[column] = *value
		}
	}
	if updates.Tags != nil {
		rec["tags"] = toSet(*updates.Tags)
	}
	if len(rec) == 0 {
		// nothing to set, still report whether the event exists
		events, err := p.Events(ctx, storage.EventFilter{EventID: eventID})
		if err != nil || len(events) == 0 {
			return nil, err
		}

		return &events[0], nil
	}

	var row PgEvent
	found, err := p.Builder.Update(eventsTable).
		Set(rec).
		Where(goqu.I("event_id").Eq(eventID)).
		Returning(&PgEvent{}).
		Executor().ScanStructContext(ctx, &row)
	if err != nil {
		return nil, wrapErr(err, "could not update event in pg")
	}
	if !found {
		return nil, nil //nolint: nilnil
	}

	event := row.ToDomain()

	return &event, nil
}

func (p *PgSQL) DeleteEvent(ctx context.Context, eventID string) (bool, error) {
	res, err := p.Builder.Delete(eventsTable).
		Where(goqu.I("event_id").Eq(eventID)).
		Executor().ExecContext(ctx)
	if err != nil {
		return false, wrapErr(err, "could not delete event in pg")
	}

	return affected(res)
}
