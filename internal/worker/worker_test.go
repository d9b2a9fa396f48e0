package worker_test

import (
	"civic/internal/event"
	"civic/internal/mailinglist"
	"civic/internal/worker"
	mockworker "civic/internal/worker/mock"
	"civic/pkg/domain"
	"civic/pkg/logger"
	"civic/pkg/serrors"
	"civic/pkg/storage/badgerdb"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestMain(m *testing.M) {
	logger.Setup(logger.DevelopmentEnvironment)
	m.Run()
}

type fixture struct {
	store    *badgerdb.Store
	notifier *mockworker.MockNotifier
	worker   *worker.NotificationWorker
	tag      domain.TagID
	alice    domain.User
	bob      domain.User
}

// setup stores a tag followed by alice and bob, plus a second tag followed
// by alice only.
func setup(t *testing.T) (fixture, domain.TagID) {
	t.Helper()
	ctx := context.Background()

	store, err := badgerdb.Open(badgerdb.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	lists := mailinglist.New(store)
	f := fixture{store: store, notifier: mockworker.NewMockNotifier(gomock.NewController(t))}
	f.worker = worker.NewNotificationWorker(lists, store, f.notifier)

	tag, err := store.StoreTag(ctx, domain.Tag{Tag: "sports"})
	require.NoError(t, err)
	other, err := store.StoreTag(ctx, domain.Tag{Tag: "culture"})
	require.NoError(t, err)
	f.tag = tag.ID
	for _, tagID := range []domain.TagID{tag.ID, other.ID} {
		_, err := lists.Create(ctx, tagID)
		require.NoError(t, err)
	}

	alice, err := store.StoreUser(ctx, domain.User{Email: "alice@example.com"})
	require.NoError(t, err)
	bob, err := store.StoreUser(ctx, domain.User{Email: "bob@example.com"})
	require.NoError(t, err)
	f.alice, f.bob = *alice, *bob

	for _, membership := range []struct {
		tag  domain.TagID
		user domain.UserID
	}{{tag.ID, alice.ID}, {tag.ID, bob.ID}, {other.ID, alice.ID}} {
		_, err := lists.AddMember(ctx, membership.tag, membership.user)
		require.NoError(t, err)
	}

	return f, other.ID
}

func makeJob(id int64, args event.NotificationJobArgs) *river.Job[event.NotificationJobArgs] {
	return &river.Job[event.NotificationJobArgs]{
		JobRow: &rivertype.JobRow{ID: id},
		Args:   args,
	}
}

func TestNotificationWorker_Work_Success(t *testing.T) {
	f, other := setup(t)

	f.notifier.EXPECT().Notify(gomock.Any(), worker.Notification{
		EventID:    "evt-1",
		Action:     event.ActionCreated,
		Title:      "Town hall",
		Recipients: []domain.User{f.alice, f.bob},
	}).Return(nil)

	// alice follows both tags and a deleted tag has no list: one notification each
	require.NoError(t, f.worker.Work(context.Background(), makeJob(1, event.NotificationJobArgs{
		EventID: "evt-1",
		Action:  event.ActionCreated,
		Title:   "Town hall",
		Tags:    []domain.TagID{f.tag, other, domain.TagID(uuid.New())},
	})))
}

func TestNotificationWorker_Work_NoRecipients(t *testing.T) {
	f, _ := setup(t)

	// no call to the notifier is expected
	require.NoError(t, f.worker.Work(context.Background(), makeJob(2, event.NotificationJobArgs{
		EventID: "evt-1",
		Tags:    []domain.TagID{domain.TagID(uuid.New())},
	})))
}

func TestNotificationWorker_Work_BadRequestCancels(t *testing.T) {
	f, _ := setup(t)

	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(serrors.With(serrors.ErrBadRequest, "bad address"))

	err := f.worker.Work(context.Background(), makeJob(3, event.NotificationJobArgs{Tags: []domain.TagID{f.tag}}))
	require.Error(t, err)
	var cancelErr *river.JobCancelError
	require.ErrorAs(t, err, &cancelErr)
}

func TestNotificationWorker_Work_RateLimitedSnoozes(t *testing.T) {
	f, _ := setup(t)

	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(serrors.With(serrors.ErrRateLimited, "slow down"))

	err := f.worker.Work(context.Background(), makeJob(4, event.NotificationJobArgs{Tags: []domain.TagID{f.tag}}))
	require.Error(t, err)
	var snoozeErr *river.JobSnoozeError
	require.ErrorAs(t, err, &snoozeErr)
	require.Equal(t, time.Minute, snoozeErr.Duration)
}

func TestNotificationWorker_Work_ErrorRetries(t *testing.T) {
	f, _ := setup(t)
	boom := errors.New("smtp down")

	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(boom)

	err := f.worker.Work(context.Background(), makeJob(5, event.NotificationJobArgs{Tags: []domain.TagID{f.tag}}))
	require.ErrorIs(t, err, boom)
	var cancelErr *river.JobCancelError
	require.NotErrorAs(t, err, &cancelErr)
}

func TestDispatcher_Drain(t *testing.T) {
	f, _ := setup(t)
	ctx := context.Background()
	events := event.New(f.store, event.Options{MaxAttempts: 2})

	_, err := events.Create(ctx, event.Draft{
		EventID:     "evt-1",
		EventStatus: "published",
		Title:       "Town hall",
		Tags:        []domain.TagID{f.tag},
		OriginURL:   "https://example.com/events/1",
	})
	require.NoError(t, err)

	dispatcher := worker.NewDispatcher(f.store, f.worker, time.Second, 5)

	gomock.InOrder(
		f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("smtp down")),
		f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, notification worker.Notification) error {
				require.Equal(t, "evt-1", notification.EventID)
				require.Len(t, notification.Recipients, 2)

				return nil
			}),
	)

	// the first failure keeps the job, the retry delivers and removes it
	require.NoError(t, dispatcher.Drain(ctx))
	jobs, err := f.store.Jobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	require.NoError(t, dispatcher.Drain(ctx))
	jobs, err = f.store.Jobs(ctx)
	require.NoError(t, err)
	require.Empty(t, jobs)
}

func TestDispatcher_DrainGivesUp(t *testing.T) {
	f, _ := setup(t)
	ctx := context.Background()

	// the job carries its own limit of two attempts
	events := event.New(f.store, event.Options{MaxAttempts: 2})
	_, err := events.Create(ctx, event.Draft{
		EventID:     "evt-1",
		EventStatus: "published",
		Tags:        []domain.TagID{f.tag},
		OriginURL:   "https://example.com/events/1",
	})
	require.NoError(t, err)

	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("smtp down")).Times(2)

	dispatcher := worker.NewDispatcher(f.store, f.worker, time.Second, 5)
	require.NoError(t, dispatcher.Drain(ctx))
	require.NoError(t, dispatcher.Drain(ctx))

	jobs, err := f.store.Jobs(ctx)
	require.NoError(t, err)
	require.Empty(t, jobs)
}
