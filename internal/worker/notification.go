package worker

import (
	"civic/internal/event"
	"civic/internal/mailinglist"
	"civic/pkg/domain"
	"civic/pkg/logger"
	"civic/pkg/serrors"
	"civic/pkg/storage"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"
)

// rateLimitBackoff is how long a job waits after the notifier reported being
// rate limited.
const rateLimitBackoff = time.Minute

// NotificationWorker is a River worker delivering event notifications to the
// members of the mailing lists of the event's tags. Lists deleted since the
// job was enqueued are skipped, and a user following several of the tags is
// notified once.
type NotificationWorker struct {
	river.WorkerDefaults[event.NotificationJobArgs]

	// lists resolves the recipients of the notified tags.
	lists mailinglist.Manager
	// users loads the recipient records.
	users storage.UserStorage
	// notifier performs the delivery.
	notifier Notifier
}

// NewNotificationWorker constructs a NotificationWorker.
func NewNotificationWorker(lists mailinglist.Manager,
	users storage.UserStorage,
	notifier Notifier) *NotificationWorker {
	return &NotificationWorker{
		lists:    lists,
		users:    users,
		notifier: notifier,
	}
}

// Work executes a single notification job and maps delivery errors to the
// appropriate River actions.
func (w *NotificationWorker) Work(ctx context.Context, job *river.Job[event.NotificationJobArgs]) error {
	ctx = logger.WithFields(ctx, zap.Int64("jobID", job.ID), zap.String("eventID", job.Args.EventID))

	err := w.Deliver(ctx, job.Args)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, serrors.ErrBadRequest):
		return river.JobCancel(err) //nolint: wrapcheck
	case errors.Is(err, serrors.ErrRateLimited):
		logger.Warn(ctx, "notifier is rate limited", zap.Error(err))

		return river.JobSnooze(rateLimitBackoff) //nolint: wrapcheck
	default:
		logger.Error(ctx, "error in delivering notification", zap.Error(err))

		return err
	}
}

// Deliver resolves the recipients of args and hands them to the notifier.
func (w *NotificationWorker) Deliver(ctx context.Context, args event.NotificationJobArgs) error {
	recipientIDs, err := w.lists.Recipients(ctx, args.Tags...)
	if err != nil {
		return fmt.Errorf("could not resolve recipients: %w", err)
	}
	if len(recipientIDs) == 0 {
		logger.Debug(ctx, "no recipients for notification")

		return nil
	}

	recipients, err := w.recipients(ctx, recipientIDs)
	if err != nil {
		return err
	}

	if err := w.notifier.Notify(ctx, Notification{
		EventID:    args.EventID,
		Action:     args.Action,
		Title:      args.Title,
		Recipients: recipients,
	}); err != nil {
		return fmt.Errorf("could not notify recipients: %w", err)
	}
	logger.Info(ctx, "notification delivered", zap.Int("recipients", len(recipients)))

	return nil
}

// recipients loads the users of IDs in the given order, skipping users
// deleted in the meantime.
func (w *NotificationWorker) recipients(ctx context.Context, IDs []domain.UserID) ([]domain.User, error) {
	users, err := w.users.Users(ctx, storage.UserFilter{})
	if err != nil {
		return nil, fmt.Errorf("could not fetch users: %w", err)
	}
	byID := make(map[domain.UserID]domain.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}

	recipients := make([]domain.User, 0, len(IDs))
	for _, ID := range IDs {
		if user, ok := byID[ID]; ok {
			recipients = append(recipients, user)
		}
	}

	return recipients, nil
}
