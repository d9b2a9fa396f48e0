package postgres

import (
	"civic/pkg/storage"
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverdatabasesql"
)

// inserter is an insert-only River client. It has no pool of its own and is
// only ever used with InsertTx, so one instance serves every PgSQL handle.
var inserter = sync.OnceValues(func() (*river.Client[*sql.Tx], error) { //nolint: gochecknoglobals
	return river.NewClient[*sql.Tx](riverdatabasesql.New(nil), &river.Config{})
})

// AddJob enqueues a River job in the same transaction as the entity writes
// that caused it, so a notification only becomes visible once they commit.
// Called outside a transaction, it opens one just for the insert.
// It returns false when River skipped the job as a duplicate of a unique job.
func (p *PgSQL) AddJob(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (bool, error) {
	tx, ok := p.DB.(*sql.Tx)
	if !ok {
		var inserted bool
		err := p.WithTx(ctx, func(tx storage.AllStorage) error {
			var err error
			inserted, err = tx.AddJob(ctx, args, opts)

			return err
		})

		return inserted, err
	}

	client, err := inserter()
	if err != nil {
		return false, fmt.Errorf("could not create river queue client: %w", err)
	}

	job, err := client.InsertTx(ctx, tx, args, opts)
	if err != nil {
		return false, fmt.Errorf("could not insert job %s: %w", args.Kind(), err)
	}

	return !job.UniqueSkippedAsDuplicate, nil
}
