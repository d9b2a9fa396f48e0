package postgres_test

import (
	"civic/pkg/storage/postgres"
	"context"
	"database/sql"
	"testing"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverdatabasesql"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertest"
	"github.com/stretchr/testify/require"
)

type notificationJobArgs struct {
	EventID string `json:"eventId"`
}

func (notificationJobArgs) Kind() string { return "test_notification" }

func migrateRiver(t *testing.T, storage *postgres.PgSQL) {
	t.Helper()
	migrator, err := rivermigrate.New(riverdatabasesql.New(storage.DB.(*sql.DB)), nil)
	require.NoError(t, err)
	migrations := migrator.AllVersions()
	_, err = migrator.Migrate(t.Context(), rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{
		TargetVersion: migrations[len(migrations)-1].Version,
	})
	require.NoError(t, err)
}

func TestPgSQL_AddJob(t *testing.T) {
	pg, cleanup := setupTestDB(t)
	defer cleanup()
	migrateRiver(t, pg)

	ctx := context.Background()

	t.Run("inside a transaction", func(t *testing.T) {
		txStorage, err := pg.Begin(ctx)
		require.NoError(t, err)
		defer func() { _ = txStorage.Rollback() }()

		inserted, err := txStorage.AddJob(ctx, notificationJobArgs{EventID: "in-tx"}, &river.InsertOpts{})
		require.NoError(t, err)
		require.True(t, inserted)
		rivertest.RequireInsertedTx[*riverdatabasesql.Driver](
			ctx,
			t,
			txStorage.(*postgres.PgSQL).DB.(*sql.Tx),
			&notificationJobArgs{},
			nil,
		)
	})

	t.Run("outside a transaction", func(t *testing.T) {
		inserted, err := pg.AddJob(ctx, notificationJobArgs{EventID: "direct"}, &river.InsertOpts{})
		require.NoError(t, err)
		require.True(t, inserted)
		rivertest.RequireInserted[*riverdatabasesql.Driver](
			ctx,
			t,
			riverdatabasesql.New(pg.DB.(*sql.DB)),
			&notificationJobArgs{},
			nil,
		)
	})
}
