package worker

import (
	"civic/internal/config"
	"civic/pkg/logger"
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// Options tunes the River client of the PostgreSQL backend.
type Options struct {
	// MaxWorkers bounds the notification jobs processed concurrently.
	MaxWorkers int
	// FetchPollInterval is how often River polls for jobs when it misses a
	// LISTEN/NOTIFY wakeup. Zero keeps the River default.
	FetchPollInterval time.Duration
}

// NewOptions reads Options from cfg.
func NewOptions(cfg *config.Config) Options {
	return Options{
		MaxWorkers:        cfg.Worker.MaxWorkers,
		FetchPollInterval: cfg.Worker.PollInterval,
	}
}

// Start runs a River client processing the notification jobs that event
// changes enqueue in PostgreSQL. Stop the returned client on shutdown.
func Start(ctx context.Context,
	options Options,
	dbPool *pgxpool.Pool,
	notifications *NotificationWorker) (*river.Client[pgx.Tx], error) {
	workers := river.NewWorkers()
	if err := river.AddWorkerSafely(workers, notifications); err != nil {
		return nil, fmt.Errorf("could not register notification worker: %w", err)
	}

	riverConfig := &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: max(options.MaxWorkers, 1)},
		},
		Workers: workers,
		Logger:  logger.Slog(ctx),
	}
	if options.FetchPollInterval > 0 {
		riverConfig.FetchPollInterval = options.FetchPollInterval
	}

	riverClient, err := river.NewClient(riverpgxv5.New(dbPool), riverConfig)
	if err != nil {
		return nil, fmt.Errorf("could not create river queue client: %w", err)
	}
	if err = riverClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("could not start river queue client: %w", err)
	}

	return riverClient, nil
}
