package worker

import (
	"civic/pkg/domain"
	"civic/pkg/logger"
	"context"

	"go.uber.org/zap"
)

// Notification is an event change to deliver to the subscribers of the
// event's tags.
type Notification struct {
	EventID    string
	Action     string
	Title      string
	Recipients []domain.User
}

// Notifier delivers notifications. Returning an error of kind
// serrors.ErrRateLimited snoozes the job, serrors.ErrBadRequest cancels it and
// any other error lets the queue retry it.
//
//go:generate mockgen -package mockworker -source=notifier.go -destination=mock/mockworker.go *
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// LogNotifier writes notifications to the context logger. It stands in for a
// mail transport.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, notification Notification) error {
	for _, recipient := range notification.Recipients {
		logger.Info(ctx, "event notification",
			zap.String("eventID", notification.EventID),
			zap.String("action", notification.Action),
			zap.String("title", notification.Title),
			zap.String("email", recipient.Email))
	}

	return nil
}
