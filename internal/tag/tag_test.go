package tag_test

import (
	"civic/internal/mailinglist"
	"civic/internal/tag"
	"civic/internal/user"
	"civic/pkg/domain"
	"civic/pkg/serrors"
	"civic/pkg/storage"
	"civic/pkg/storage/badgerdb"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// faultyStorage runs transactions whose handle fails the write of one
// deletion stage with err.
type faultyStorage struct {
	storage.Storage
	stage string
	err   error
}

func (f faultyStorage) WithTx(ctx context.Context, cb func(storage.AllStorage) error) error {
	return f.Storage.WithTx(ctx, func(tx storage.AllStorage) error {
		return cb(faultyTx{AllStorage: tx, stage: f.stage, err: f.err})
	})
}

type faultyTx struct {
	storage.AllStorage
	stage string
	err   error
}

func (f faultyTx) UpdateUser(ctx context.Context, ID domain.UserID, updates storage.UserUpdates) (*domain.User, error) {
	if f.stage == tag.StageUsers {
		return nil, f.err
	}

	return f.AllStorage.UpdateUser(ctx, ID, updates)
}

func (f faultyTx) UpdateEvent(ctx context.Context, eventID string, updates storage.EventUpdates) (*domain.Event, error) {
	if f.stage == tag.StageEvents {
		return nil, f.err
	}

	return f.AllStorage.UpdateEvent(ctx, eventID, updates)
}

func (f faultyTx) DeleteMailingList(ctx context.Context, ID domain.TagID) (bool, error) {
	if f.stage == tag.StageMailingList {
		return false, f.err
	}

	return f.AllStorage.DeleteMailingList(ctx, ID)
}

func (f faultyTx) DeleteTag(ctx context.Context, ID domain.TagID) (bool, error) {
	if f.stage == tag.StageTag {
		return false, f.err
	}

	return f.AllStorage.DeleteTag(ctx, ID)
}

// interleaved runs before ahead of the first user scan of a transaction.
type interleaved struct {
	storage.AllStorage
	once   *sync.Once
	before func()
}

func (i interleaved) Users(ctx context.Context, filter storage.UserFilter) ([]domain.User, error) {
	i.once.Do(i.before)

	return i.AllStorage.Users(ctx, filter)
}

type interleavedStorage struct {
	storage.Storage
	once   *sync.Once
	before func()
}

func (i interleavedStorage) WithTx(ctx context.Context, cb func(storage.AllStorage) error) error {
	return i.Storage.WithTx(ctx, func(tx storage.AllStorage) error {
		return cb(interleaved{AllStorage: tx, once: i.once, before: i.before})
	})
}

func setupStore(t *testing.T) *badgerdb.Store {
	t.Helper()

	store, err := badgerdb.Open(badgerdb.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func requireConsistent(t *testing.T, store storage.Storage) {
	t.Helper()

	drifts, err := mailinglist.Verify(context.Background(), store)
	require.NoError(t, err)
	require.Empty(t, drifts)
}

// follow subscribes a stored user to tagID the way the user service does.
func follow(t *testing.T, store storage.Storage, email string, tagIDs ...domain.TagID) domain.User {
	t.Helper()
	ctx := context.Background()

	stored, err := store.StoreUser(ctx, domain.User{Email: email, InterestedTags: tagIDs})
	require.NoError(t, err)
	for _, tagID := range tagIDs {
		_, err := mailinglist.New(store).AddMember(ctx, tagID, stored.ID)
		require.NoError(t, err)
	}

	return *stored
}

func TestManager_Create(t *testing.T) {
	store := setupStore(t)
	manager := tag.New(store)
	ctx := context.Background()

	created, err := manager.Create(ctx, " Sports ")
	require.NoError(t, err)
	require.Equal(t, "Sports", created.Tag)

	list, err := mailinglist.New(store).Get(ctx, created.ID)
	require.NoError(t, err)
	require.Empty(t, list.Users)

	_, err = manager.Create(ctx, "sports")
	require.ErrorIs(t, err, serrors.ErrConflict)

	_, err = manager.Create(ctx, "")
	require.ErrorIs(t, err, serrors.ErrBadRequest)

	found, err := manager.GetByName(ctx, "SPORTS")
	require.NoError(t, err)
	require.Equal(t, created, found)

	found, err = manager.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created, found)

	_, err = manager.Get(ctx, domain.TagID(uuid.New()))
	require.ErrorIs(t, err, serrors.ErrNotFound)

	all, err := manager.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []domain.Tag{*created}, all)
}

func TestManager_CreateRollsBackOnMailingListFailure(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	manager := tag.New(refusingStorage{Storage: store})

	_, err := manager.Create(ctx, "Sports")
	require.ErrorIs(t, err, serrors.ErrCreationFailed)
	require.Equal(t, tag.StageMailingList, serrors.StageOf(err))

	tags, err := store.Tags(ctx, storage.TagFilter{})
	require.NoError(t, err)
	require.Empty(t, tags)
}

// refusingStorage runs transactions whose handle refuses to store mailing lists.
type refusingStorage struct {
	storage.Storage
}

func (r refusingStorage) WithTx(ctx context.Context, cb func(storage.AllStorage) error) error {
	return r.Storage.WithTx(ctx, func(tx storage.AllStorage) error {
		return cb(refusingTx{AllStorage: tx})
	})
}

type refusingTx struct {
	storage.AllStorage
}

func (refusingTx) StoreMailingList(context.Context, domain.MailingList) (*domain.MailingList, error) {
	return nil, errors.New("disk full")
}

func TestManager_Update(t *testing.T) {
	store := setupStore(t)
	manager := tag.New(store)
	ctx := context.Background()

	sports, err := manager.Create(ctx, "Sports")
	require.NoError(t, err)
	_, err = manager.Create(ctx, "Culture")
	require.NoError(t, err)

	_, err = manager.Update(ctx, "Sports", "Sports")
	require.ErrorIs(t, err, serrors.ErrNoModification)

	_, err = manager.Update(ctx, "Missing", "Other")
	require.ErrorIs(t, err, serrors.ErrNoModification)

	_, err = manager.Update(ctx, "Sports", "culture")
	require.ErrorIs(t, err, serrors.ErrConflict)

	renamed, err := manager.Update(ctx, "sports", "Sport")
	require.NoError(t, err)
	require.Equal(t, sports.ID, renamed.ID)
	require.Equal(t, "Sport", renamed.Tag)

	// changing only the case is a modification of the same tag
	renamed, err = manager.Update(ctx, "Sport", "SPORT")
	require.NoError(t, err)
	require.Equal(t, "SPORT", renamed.Tag)
}

func TestManager_DeleteCascades(t *testing.T) {
	store := setupStore(t)
	manager := tag.New(store)
	ctx := context.Background()

	t1, err := manager.Create(ctx, "T1")
	require.NoError(t, err)
	t2, err := manager.Create(ctx, "T2")
	require.NoError(t, err)

	follower := follow(t, store, "u@example.com", t1.ID, t2.ID)
	event, err := store.StoreEvent(ctx, domain.Event{EventID: "e", Tags: []domain.TagID{t1.ID}})
	require.NoError(t, err)
	requireConsistent(t, store)

	require.NoError(t, manager.Delete(ctx, t1.ID))

	users, err := store.Users(ctx, storage.UserFilter{ID: &follower.ID})
	require.NoError(t, err)
	require.Equal(t, []domain.TagID{t2.ID}, users[0].InterestedTags)

	events, err := store.Events(ctx, storage.EventFilter{EventID: event.EventID})
	require.NoError(t, err)
	require.Empty(t, events[0].Tags)

	_, err = mailinglist.New(store).Get(ctx, t1.ID)
	require.ErrorIs(t, err, serrors.ErrNotFound)
	_, err = manager.Get(ctx, t1.ID)
	require.ErrorIs(t, err, serrors.ErrNotFound)

	list, err := mailinglist.New(store).Get(ctx, t2.ID)
	require.NoError(t, err)
	require.Equal(t, []domain.UserID{follower.ID}, list.Users)
	requireConsistent(t, store)

	require.ErrorIs(t, manager.Delete(ctx, t1.ID), serrors.ErrNotFound)
}

func TestManager_DeleteIsAtomic(t *testing.T) {
	for _, stage := range []string{tag.StageUsers, tag.StageEvents, tag.StageMailingList, tag.StageTag} {
		t.Run(stage, func(t *testing.T) {
			store := setupStore(t)
			ctx := context.Background()

			t1, err := tag.New(store).Create(ctx, "T1")
			require.NoError(t, err)
			follower := follow(t, store, "u@example.com", t1.ID)
			_, err = store.StoreEvent(ctx, domain.Event{EventID: "e", Tags: []domain.TagID{t1.ID}})
			require.NoError(t, err)

			boom := errors.New("boom")
			err = tag.New(faultyStorage{Storage: store, stage: stage, err: boom}).Delete(ctx, t1.ID)
			require.ErrorIs(t, err, serrors.ErrCascadeFailed)
			require.ErrorIs(t, err, boom)
			require.Equal(t, stage, serrors.StageOf(err))

			// nothing of the cascade is visible
			tags, err := store.Tags(ctx, storage.TagFilter{ID: &t1.ID})
			require.NoError(t, err)
			require.Len(t, tags, 1)

			users, err := store.Users(ctx, storage.UserFilter{ID: &follower.ID})
			require.NoError(t, err)
			require.Equal(t, []domain.TagID{t1.ID}, users[0].InterestedTags)

			events, err := store.Events(ctx, storage.EventFilter{Tag: &t1.ID})
			require.NoError(t, err)
			require.Len(t, events, 1)

			list, err := mailinglist.New(store).Get(ctx, t1.ID)
			require.NoError(t, err)
			require.Equal(t, []domain.UserID{follower.ID}, list.Users)
			requireConsistent(t, store)
		})
	}
}

func TestManager_DeleteDetachesConcurrentFollower(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	t1, err := tag.New(store).Create(ctx, "T1")
	require.NoError(t, err)
	follower := follow(t, store, "u@example.com")

	// the user follows T1 while the deletion is collecting the users to detach
	var followErr error
	manager := tag.New(interleavedStorage{Storage: store, once: &sync.Once{}, before: func() {
		users := user.New(store, user.Options{BcryptCost: bcrypt.MinCost})
		_, followErr = users.Update(ctx, follower.Email, user.Patch{InterestedTags: &[]domain.TagID{t1.ID}})
	}})

	require.NoError(t, manager.Delete(ctx, t1.ID))
	require.NoError(t, followErr)

	users, err := store.Users(ctx, storage.UserFilter{ID: &follower.ID})
	require.NoError(t, err)
	require.Empty(t, users[0].InterestedTags)

	_, err = mailinglist.New(store).Get(ctx, t1.ID)
	require.ErrorIs(t, err, serrors.ErrNotFound)
	requireConsistent(t, store)
}

func TestManager_ConcurrentDelete(t *testing.T) {
	store := setupStore(t)
	manager := tag.New(store)
	ctx := context.Background()

	t1, err := manager.Create(ctx, "T1")
	require.NoError(t, err)
	follow(t, store, "a@example.com", t1.ID)
	follow(t, store, "b@example.com", t1.ID)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = manager.Delete(ctx, t1.ID)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++

			continue
		}
		require.ErrorIs(t, err, serrors.ErrNotFound)
	}
	require.Equal(t, 1, succeeded)

	users, err := store.Users(ctx, storage.UserFilter{InterestedTag: &t1.ID})
	require.NoError(t, err)
	require.Empty(t, users)
	requireConsistent(t, store)
}
