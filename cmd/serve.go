package main

import (
	"civic/internal/api"
	"civic/internal/api/handler/v1handler"
	"civic/internal/config"
	"civic/internal/event"
	"civic/internal/mailinglist"
	"civic/internal/municipality"
	"civic/internal/tag"
	"civic/internal/user"
	"civic/internal/worker"
	"civic/pkg/logger"
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDeps(cfg *config.Config, strg backend) api.Deps {
	return api.Deps{Deps: v1handler.Deps{
		Users:          user.New(strg, user.NewOptions(cfg)),
		Tags:           tag.New(strg),
		Municipalities: municipality.New(strg, municipality.NewOptions(cfg)),
		Events:         event.New(strg, event.NewOptions(cfg)),
		MailingLists:   mailinglist.New(strg),
	}}
}

func setupServer(ctx context.Context, cfg *config.Config, deps api.Deps) func(ctx context.Context) {
	server, err := api.NewServer(deps, api.NewOptions(cfg))
	if err != nil {
		logger.Fatal(ctx, "could not create webserver", zap.Error(err))
	}

	go func() {
		logger.Info(ctx, "starting webserver...", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "could not start webserver", zap.Error(err))
			}
		}
	}()

	return func(ctx context.Context) {
		logger.Info(ctx, "stopping webserver...")
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(ctx, "could not stop webserver", zap.Error(err))
		}
	}
}

// setupWorker starts the notification workers of the configured backend:
// River for PostgreSQL, the outbox dispatcher for Badger.
func setupWorker(ctx context.Context, cfg *config.Config, strg backend, deps api.Deps) func(ctx context.Context) {
	notifications := worker.NewNotificationWorker(deps.MailingLists, strg, worker.LogNotifier{})

	if strg.pg != nil {
		riverClient, err := worker.Start(ctx, worker.NewOptions(cfg), strg.pg.Pool, notifications)
		if err != nil {
			logger.Fatal(ctx, "could not start notification worker", zap.Error(err))
		}

		return func(ctx context.Context) {
			logger.Info(ctx, "stopping notification worker...")
			if err := riverClient.Stop(ctx); err != nil {
				logger.Error(ctx, "could not stop notification worker", zap.Error(err))
			}
		}
	}

	dispatcher := worker.NewDispatcher(strg.badger, notifications, cfg.Worker.PollInterval, cfg.Worker.MaxAttempts)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info(ctx, "starting outbox dispatcher...")
		dispatcher.Run(runCtx)
	}()

	return func(ctx context.Context) {
		logger.Info(ctx, "stopping outbox dispatcher...")
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			logger.Warn(ctx, "outbox dispatcher did not stop in time")
		}
	}
}

func serveCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts API server and notification workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			strg, closeStrg := getStorage(ctx, cfg)
			defer closeStrg()

			deps := newDeps(cfg, strg)
			stopWorker := setupWorker(context.WithoutCancel(ctx), cfg, strg, deps)
			stopWebserver := setupServer(ctx, cfg, deps)

			// wait for interrupt
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
			defer cancel()

			stopWebserver(shutdownCtx)
			stopWorker(shutdownCtx)
		},
	}

	return cmd
}
