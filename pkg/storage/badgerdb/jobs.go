package badgerdb

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// Job is a job recorded in the outbox collection. Badger has no job queue, so
// AddJob persists the job next to the data it belongs to and a dispatcher
// drains the outbox after the transaction commits.
type Job struct {
	ID          uuid.UUID       `json:"id"`
	Kind        string          `json:"kind"`
	Args        json.RawMessage `json:"args"`
	Queue       string          `json:"queue,omitempty"`
	MaxAttempts int             `json:"maxAttempts,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// AddJob records a job in the outbox. Inside a transaction the job is only
// visible after commit. Unique insert options are not enforced, so the job is
// always reported as inserted.
func (s *Store) AddJob(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (bool, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return false, fmt.Errorf("could not encode job args: %w", err)
	}

	job := Job{
		ID:        uuid.New(),
		Kind:      args.Kind(),
		Args:      data,
		CreatedAt: time.Now().UTC(),
	}
	if withOpts, ok := args.(river.JobArgsWithInsertOpts); ok {
		argOpts := withOpts.InsertOpts()
		job.Queue, job.MaxAttempts = argOpts.Queue, argOpts.MaxAttempts
	}
	if opts != nil && opts.Queue != "" {
		job.Queue = opts.Queue
	}
	if opts != nil && opts.MaxAttempts > 0 {
		job.MaxAttempts = opts.MaxAttempts
	}

	if err := s.update(ctx, func(txn *badger.Txn) error {
		return jobDocs.insert(txn, &job)
	}); err != nil {
		return false, fmt.Errorf("could not insert job: %w", err)
	}

	return true, nil
}

// Jobs returns the pending outbox jobs, oldest first.
func (s *Store) Jobs(ctx context.Context) ([]Job, error) {
	var result []Job
	if err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		result, err = jobDocs.all(txn)

		return err
	}); err != nil {
		return nil, err
	}

	slices.SortStableFunc(result, func(a, b Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return result, nil
}

// DeleteJob removes a job from the outbox once it has been handled.
func (s *Store) DeleteJob(ctx context.Context, ID uuid.UUID) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		job, err := jobDocs.get(txn, ID.String())
		if err != nil || job == nil {
			return err
		}

		return jobDocs.remove(txn, job)
	})
}
