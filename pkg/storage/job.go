package storage

import (
	"context"

	"github.com/riverqueue/river"
)

// JobStorage enqueues background jobs. When called through a transactional
// handle the job becomes visible only if the transaction commits, so work
// scheduled by a service operation never outlives a rollback.
type JobStorage interface {
	// AddJob enqueues a new job with the given arguments. It returns false
	// when the backend skipped the insert as a duplicate of a unique job.
	AddJob(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (bool, error)
}
