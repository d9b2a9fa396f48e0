package event

import (
	"civic/pkg/domain"

	"github.com/riverqueue/river"
)

// Actions carried by NotificationJobArgs.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// NotificationJobArgs asks the worker to notify the subscribers of Tags that
// an event changed. It is enqueued in the transaction that changes the event,
// so no notification is sent for a change that was rolled back.
type NotificationJobArgs struct {
	EventID string `json:"eventId"`
	Action  string `json:"action"`
	Title   string `json:"title"`
	// Tags are the tags whose mailing lists receive the notification.
	Tags []domain.TagID `json:"tags"`

	// maxAttempts configures the maximum number of times River should retry the job.
	maxAttempts int
}

// Kind returns the River job kind used to register and dispatch the notification worker.
func (args NotificationJobArgs) Kind() string { return "EventNotificationJob" }

// InsertOpts returns the River options that control how the job is enqueued.
func (args NotificationJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: args.maxAttempts,
	}
}
