package worker

import (
	"civic/internal/event"
	"civic/pkg/logger"
	"civic/pkg/storage/badgerdb"
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outbox is the job outbox of the Badger backend.
type Outbox interface {
	Jobs(ctx context.Context) ([]badgerdb.Job, error)
	DeleteJob(ctx context.Context, ID uuid.UUID) error
}

// Dispatcher drains the Badger outbox, playing the part River plays for the
// PostgreSQL backend. Jobs run one at a time in enqueue order. A failing job
// stays in the outbox and is retried on the next poll until it used up its
// attempts.
type Dispatcher struct {
	outbox        Outbox
	notifications *NotificationWorker
	// interval is the time between two polls of the outbox.
	interval time.Duration
	// maxAttempts applies to jobs recorded without their own limit.
	maxAttempts int
	// attempts counts failed runs per job since the dispatcher started.
	attempts map[uuid.UUID]int
}

// NewDispatcher constructs a Dispatcher polling outbox every interval.
func NewDispatcher(outbox Outbox,
	notifications *NotificationWorker,
	interval time.Duration,
	maxAttempts int) *Dispatcher {
	return &Dispatcher{
		outbox:        outbox,
		notifications: notifications,
		interval:      interval,
		maxAttempts:   max(maxAttempts, 1),
		attempts:      make(map[uuid.UUID]int),
	}
}

// Run polls the outbox until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if err := d.Drain(ctx); err != nil {
			logger.Error(ctx, "could not drain job outbox", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Drain runs every job currently in the outbox once.
func (d *Dispatcher) Drain(ctx context.Context) error {
	jobs, err := d.outbox.Jobs(ctx)
	if err != nil {
		return fmt.Errorf("could not fetch jobs: %w", err)
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			return ctx.Err() //nolint: wrapcheck
		}
		jobCtx := logger.WithFields(ctx, zap.Stringer("jobID", job.ID), zap.String("kind", job.Kind))

		if err := d.run(jobCtx, job); err != nil {
			d.attempts[job.ID]++
			limit := d.maxAttempts
			if job.MaxAttempts > 0 {
				limit = job.MaxAttempts
			}
			if d.attempts[job.ID] < limit {
				logger.Warn(jobCtx, "job failed, will retry", zap.Int("attempt", d.attempts[job.ID]), zap.Error(err))

				continue
			}
			logger.Error(jobCtx, "job failed permanently", zap.Int("attempts", d.attempts[job.ID]), zap.Error(err))
		}

		delete(d.attempts, job.ID)
		if err := d.outbox.DeleteJob(ctx, job.ID); err != nil {
			return fmt.Errorf("could not delete job %s: %w", job.ID, err)
		}
	}

	return nil
}

func (d *Dispatcher) run(ctx context.Context, job badgerdb.Job) error {
	var args event.NotificationJobArgs
	if job.Kind != args.Kind() {
		logger.Warn(ctx, "dropping job of unknown kind")

		return nil
	}
	if err := json.Unmarshal(job.Args, &args); err != nil {
		return fmt.Errorf("could not decode job args: %w", err)
	}

	return d.notifications.Deliver(ctx, args)
}
