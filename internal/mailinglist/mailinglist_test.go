package mailinglist_test

import (
	"civic/internal/mailinglist"
	"civic/pkg/domain"
	"civic/pkg/serrors"
	"civic/pkg/storage/badgerdb"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func setupManager(t *testing.T) (mailinglist.Manager, *badgerdb.Store) {
	t.Helper()

	store, err := badgerdb.Open(badgerdb.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return mailinglist.New(store), store
}

func TestManager_Create(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()
	tagID := domain.TagID(uuid.New())

	list, err := manager.Create(ctx, tagID)
	require.NoError(t, err)
	require.Equal(t, tagID, list.Tag)
	require.Empty(t, list.Users)

	_, err = manager.Create(ctx, tagID)
	require.ErrorIs(t, err, serrors.ErrConflict)
}

func TestManager_MembershipIsIdempotent(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()
	tagID := domain.TagID(uuid.New())
	userID := domain.UserID(uuid.New())

	_, err := manager.Create(ctx, tagID)
	require.NoError(t, err)

	once, err := manager.AddMember(ctx, tagID, userID)
	require.NoError(t, err)
	twice, err := manager.AddMember(ctx, tagID, userID)
	require.NoError(t, err)
	require.Equal(t, once.Users, twice.Users)
	require.Equal(t, []domain.UserID{userID}, twice.Users)

	removed, err := manager.RemoveMember(ctx, tagID, userID)
	require.NoError(t, err)
	require.Empty(t, removed.Users)
	removed, err = manager.RemoveMember(ctx, tagID, userID)
	require.NoError(t, err)
	require.Empty(t, removed.Users)

	list, err := manager.Get(ctx, tagID)
	require.NoError(t, err)
	require.Empty(t, list.Users)
}

func TestManager_MissingList(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()
	tagID := domain.TagID(uuid.New())
	userID := domain.UserID(uuid.New())

	_, err := manager.AddMember(ctx, tagID, userID)
	require.ErrorIs(t, err, serrors.ErrNotFound)

	_, err = manager.RemoveMember(ctx, tagID, userID)
	require.ErrorIs(t, err, serrors.ErrNotFound)

	_, err = manager.Get(ctx, tagID)
	require.ErrorIs(t, err, serrors.ErrNotFound)

	err = manager.Delete(ctx, tagID)
	require.ErrorIs(t, err, serrors.ErrNotFound)
}

func TestManager_Delete(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()
	tagID := domain.TagID(uuid.New())

	_, err := manager.Create(ctx, tagID)
	require.NoError(t, err)
	require.NoError(t, manager.Delete(ctx, tagID))

	_, err = manager.Get(ctx, tagID)
	require.ErrorIs(t, err, serrors.ErrNotFound)

	// the tag may get a fresh list afterwards
	_, err = manager.Create(ctx, tagID)
	require.NoError(t, err)
}

func TestManager_Recipients(t *testing.T) {
	manager, _ := setupManager(t)
	ctx := context.Background()
	tagA := domain.TagID(uuid.New())
	tagB := domain.TagID(uuid.New())
	missing := domain.TagID(uuid.New())
	alice := domain.UserID(uuid.New())
	bob := domain.UserID(uuid.New())

	for _, tagID := range []domain.TagID{tagA, tagB} {
		_, err := manager.Create(ctx, tagID)
		require.NoError(t, err)
	}
	_, err := manager.AddMember(ctx, tagA, alice)
	require.NoError(t, err)
	_, err = manager.AddMember(ctx, tagB, alice)
	require.NoError(t, err)
	_, err = manager.AddMember(ctx, tagB, bob)
	require.NoError(t, err)

	recipients, err := manager.Recipients(ctx, tagA, tagB, missing)
	require.NoError(t, err)
	require.ElementsMatch(t, []domain.UserID{alice, bob}, recipients)

	recipients, err = manager.Recipients(ctx)
	require.NoError(t, err)
	require.Empty(t, recipients)
}

func TestVerify(t *testing.T) {
	manager, store := setupManager(t)
	ctx := context.Background()

	sports, err := store.StoreTag(ctx, domain.Tag{Tag: "sports"})
	require.NoError(t, err)
	culture, err := store.StoreTag(ctx, domain.Tag{Tag: "culture"})
	require.NoError(t, err)
	orphan := domain.TagID(uuid.New())

	user, err := store.StoreUser(ctx, domain.User{Email: "a@example.com", InterestedTags: []domain.TagID{sports.ID}})
	require.NoError(t, err)
	_, err = manager.Create(ctx, sports.ID)
	require.NoError(t, err)

	drifts, err := mailinglist.Verify(ctx, store)
	require.NoError(t, err)
	require.ElementsMatch(t, []mailinglist.Drift{
		{Tag: sports.ID, Unsubscribed: []domain.UserID{user.ID}},
		{Tag: culture.ID, MissingList: true},
	}, drifts)

	_, err = manager.AddMember(ctx, sports.ID, user.ID)
	require.NoError(t, err)
	_, err = manager.Create(ctx, culture.ID)
	require.NoError(t, err)
	_, err = manager.Create(ctx, orphan)
	require.NoError(t, err)

	drifts, err = mailinglist.Verify(ctx, store)
	require.NoError(t, err)
	require.Equal(t, []mailinglist.Drift{{Tag: orphan, OrphanList: true, Stale: []domain.UserID{}}}, drifts)
}

func TestRepair(t *testing.T) {
	manager, store := setupManager(t)
	ctx := context.Background()

	sports, err := store.StoreTag(ctx, domain.Tag{Tag: "sports"})
	require.NoError(t, err)
	culture, err := store.StoreTag(ctx, domain.Tag{Tag: "culture"})
	require.NoError(t, err)
	orphan := domain.TagID(uuid.New())

	follower, err := store.StoreUser(ctx, domain.User{Email: "a@example.com", InterestedTags: []domain.TagID{sports.ID, culture.ID}})
	require.NoError(t, err)
	leaver, err := store.StoreUser(ctx, domain.User{Email: "b@example.com"})
	require.NoError(t, err)

	_, err = manager.Create(ctx, sports.ID)
	require.NoError(t, err)
	_, err = manager.AddMember(ctx, sports.ID, leaver.ID)
	require.NoError(t, err)
	_, err = manager.Create(ctx, orphan)
	require.NoError(t, err)

	drifts, err := mailinglist.Verify(ctx, store)
	require.NoError(t, err)
	require.Len(t, drifts, 3)
	require.NoError(t, mailinglist.Repair(ctx, store, drifts))

	drifts, err = mailinglist.Verify(ctx, store)
	require.NoError(t, err)
	require.Empty(t, drifts)

	list, err := manager.Get(ctx, sports.ID)
	require.NoError(t, err)
	require.Equal(t, []domain.UserID{follower.ID}, list.Users)
	list, err = manager.Get(ctx, culture.ID)
	require.NoError(t, err)
	require.Equal(t, []domain.UserID{follower.ID}, list.Users)
	_, err = manager.Get(ctx, orphan)
	require.ErrorIs(t, err, serrors.ErrNotFound)
}
