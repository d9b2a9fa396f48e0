package municipality_test

import (
	"civic/internal/municipality"
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

const defaultName = "Autre"

func setupManager(t *testing.T) (municipality.Manager, *badgerdb.Store) {
	t.Helper()

	store, err := badgerdb.Open(badgerdb.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return municipality.New(store, municipality.Options{DefaultMunicipality: defaultName}), store
}

func TestManager_GetOrCreateDefault(t *testing.T) {
	manager, store := setupManager(t)
	ctx := context.Background()

	_, err := manager.GetOrCreateDefault(ctx, "Laval")
	require.ErrorIs(t, err, serrors.ErrNotFound)

	created, err := manager.GetOrCreateDefault(ctx, "autre")
	require.NoError(t, err)
	require.Equal(t, defaultName, created.Municipality)

	again, err := manager.GetOrCreateDefault(ctx, "AUTRE")
	require.NoError(t, err)
	require.Equal(t, created.ID, again.ID)

	all, err := store.Municipalities(ctx, storage.MunicipalityFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestManager_Create(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()

	created, err := manager.Create(ctx, "Laval")
	require.NoError(t, err)
	require.Equal(t, "Laval", created.Municipality)

	_, err = manager.Create(ctx, "LAVAL")
	require.ErrorIs(t, err, serrors.ErrConflict)

	_, err = manager.Create(ctx, "  ")
	require.ErrorIs(t, err, serrors.ErrBadRequest)

	found, err := manager.Get(ctx, "laval")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	_, err = manager.Get(ctx, "Gatineau")
	require.ErrorIs(t, err, serrors.ErrNotFound)
}

func TestManager_DeleteDefaultIsForbidden(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()

	// forbidden whether or not the default exists yet
	require.ErrorIs(t, manager.Delete(ctx, defaultName), serrors.ErrForbidden)

	_, err := manager.GetOrCreateDefault(ctx, defaultName)
	require.NoError(t, err)
	_, err = manager.Create(ctx, "Laval")
	require.NoError(t, err)

	require.ErrorIs(t, manager.Delete(ctx, "aUtRe"), serrors.ErrForbidden)

	_, err = manager.Get(ctx, defaultName)
	require.NoError(t, err)
}

func TestManager_DeleteReassignsUsers(t *testing.T) {
	manager, store := setupManager(t)
	ctx := context.Background()

	laval, err := manager.Create(ctx, "Laval")
	require.NoError(t, err)
	gatineau, err := manager.Create(ctx, "Gatineau")
	require.NoError(t, err)
	dangling := domain.MunicipalityID(uuid.New())

	inLaval, err := store.StoreUser(ctx, domain.User{Email: "laval@example.com", Municipality: &laval.ID})
	require.NoError(t, err)
	inGatineau, err := store.StoreUser(ctx, domain.User{Email: "gatineau@example.com", Municipality: &gatineau.ID})
	require.NoError(t, err)
	orphan, err := store.StoreUser(ctx, domain.User{Email: "orphan@example.com", Municipality: &dangling})
	require.NoError(t, err)

	require.NoError(t, manager.Delete(ctx, "laval"))

	_, err = manager.Get(ctx, "Laval")
	require.ErrorIs(t, err, serrors.ErrNotFound)

	// the default municipality was created lazily
	fallback, err := manager.Get(ctx, defaultName)
	require.NoError(t, err)

	for _, tc := range []struct {
		user     domain.UserID
		expected domain.MunicipalityID
	}{
		{inLaval.ID, fallback.ID},
		{orphan.ID, fallback.ID},
		{inGatineau.ID, gatineau.ID},
	} {
		users, err := store.Users(ctx, storage.UserFilter{ID: &tc.user})
		require.NoError(t, err)
		require.Len(t, users, 1)
		require.Equal(t, tc.expected, *users[0].Municipality)
	}

	require.ErrorIs(t, manager.Delete(ctx, "Laval"), serrors.ErrNotFound)
}

// wrappedStorage hands transactions to callbacks through wrap.
type wrappedStorage struct {
	storage.Storage
	wrap func(storage.AllStorage) storage.AllStorage
}

func (w wrappedStorage) WithTx(ctx context.Context, cb func(storage.AllStorage) error) error {
	return w.Storage.WithTx(ctx, func(tx storage.AllStorage) error {
		return cb(w.wrap(tx))
	})
}

// failingUpdates fails every user update.
type failingUpdates struct {
	storage.AllStorage
}

func (failingUpdates) UpdateUser(context.Context, domain.UserID, storage.UserUpdates) (*domain.User, error) {
	return nil, errors.New("user write failed")
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

func TestManager_DeleteIsAtomic(t *testing.T) {
	manager, store := setupManager(t)
	ctx := context.Background()

	laval, err := manager.Create(ctx, "Laval")
	require.NoError(t, err)
	inLaval, err := store.StoreUser(ctx, domain.User{Email: "laval@example.com", Municipality: &laval.ID})
	require.NoError(t, err)

	failing := municipality.New(wrappedStorage{
		Storage: store,
		wrap:    func(tx storage.AllStorage) storage.AllStorage { return failingUpdates{AllStorage: tx} },
	}, municipality.Options{DefaultMunicipality: defaultName})

	err = failing.Delete(ctx, "Laval")
	require.ErrorIs(t, err, serrors.ErrCascadeFailed)
	require.Equal(t, municipality.StageUsers, serrors.StageOf(err))

	found, err := manager.Get(ctx, "Laval")
	require.NoError(t, err)
	require.Equal(t, laval.ID, found.ID)

	users, err := store.Users(ctx, storage.UserFilter{ID: &inLaval.ID})
	require.NoError(t, err)
	require.Equal(t, laval.ID, *users[0].Municipality)

	// the default municipality created for the reassignment was rolled back
	_, err = manager.Get(ctx, defaultName)
	require.ErrorIs(t, err, serrors.ErrNotFound)
}

func TestManager_DeleteReassignsConcurrentRegistration(t *testing.T) {
	manager, store := setupManager(t)
	ctx := context.Background()
	options := municipality.Options{DefaultMunicipality: defaultName}

	laval, err := manager.Create(ctx, "Laval")
	require.NoError(t, err)

	users := user.New(store, user.Options{BcryptCost: bcrypt.MinCost, Municipality: options})

	// a user registers into Laval after the deletion locked it but before the
	// deletion collected the users to reassign
	var registered *domain.User
	var registerErr error
	once := &sync.Once{}
	racing := municipality.New(wrappedStorage{
		Storage: store,
		wrap: func(tx storage.AllStorage) storage.AllStorage {
			return interleaved{AllStorage: tx, once: once, before: func() {
				registered, registerErr = users.Register(ctx, user.RegisterInfo{
					FirstName:    "Ada",
					LastName:     "Lovelace",
					Email:        "ada@example.com",
					Password:     "Secret123",
					Municipality: &laval.ID,
				}, false, false)
			}}
		},
	}, options)

	require.NoError(t, racing.Delete(ctx, "Laval"))
	require.NoError(t, registerErr)

	fallback, err := manager.Get(ctx, defaultName)
	require.NoError(t, err)

	stored, err := store.Users(ctx, storage.UserFilter{ID: &registered.ID})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, fallback.ID, *stored[0].Municipality)

	// once the deletion committed, registering into Laval is rejected
	_, err = users.Register(ctx, user.RegisterInfo{
		FirstName:    "Grace",
		LastName:     "Hopper",
		Email:        "grace@example.com",
		Password:     "Secret123",
		Municipality: &laval.ID,
	}, false, false)
	require.ErrorIs(t, err, serrors.ErrNotFound)
}

func TestManager_Update(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()

	laval, err := manager.Create(ctx, "Laval")
	require.NoError(t, err)
	_, err = manager.Create(ctx, "Gatineau")
	require.NoError(t, err)

	renamed, err := manager.Update(ctx, "laval", "Laval-Ouest")
	require.NoError(t, err)
	require.Equal(t, laval.ID, renamed.ID)
	require.Equal(t, "Laval-Ouest", renamed.Municipality)

	_, err = manager.Update(ctx, "Laval", "Somewhere")
	require.ErrorIs(t, err, serrors.ErrNotFound)

	_, err = manager.Update(ctx, "Laval-Ouest", "Laval-Ouest")
	require.ErrorIs(t, err, serrors.ErrNotFound)

	_, err = manager.Update(ctx, "Laval-Ouest", "gatineau")
	require.ErrorIs(t, err, serrors.ErrConflict)

	// a case-only rename of the same municipality is allowed
	renamed, err = manager.Update(ctx, "Laval-Ouest", "laval-ouest")
	require.NoError(t, err)
	require.Equal(t, "laval-ouest", renamed.Municipality)

	_, err = manager.Update(ctx, defaultName, "Elsewhere")
	require.ErrorIs(t, err, serrors.ErrForbidden)
}

func TestManager_List(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()

	for _, name := range []string{"Laval", "Gatineau"} {
		_, err := manager.Create(ctx, name)
		require.NoError(t, err)
	}

	all, err := manager.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "Gatineau", all[0].Municipality)
	require.Equal(t, "Laval", all[1].Municipality)
}
