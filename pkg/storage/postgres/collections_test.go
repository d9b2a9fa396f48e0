package postgres_test

import (
	"civic/pkg/domain"
	"civic/pkg/storage"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPgSQL_Collections(t *testing.T) {
	t.Parallel()

	pgSQL, cleanup := setupTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()

	t.Run("tags are unique case-insensitively", func(t *testing.T) {
		tag, err := pgSQL.StoreTag(ctx, domain.Tag{Tag: "Sports"})
		require.NoError(t, err)
		require.NotEqual(t, domain.TagID{}, tag.ID)

		_, err = pgSQL.StoreTag(ctx, domain.Tag{Tag: "SPORTS"})
		require.ErrorIs(t, err, storage.ErrDuplicate)

		found, err := pgSQL.Tags(ctx, storage.TagFilter{Name: "sports"})
		require.NoError(t, err)
		require.Equal(t, []domain.Tag{*tag}, found)

		other, err := pgSQL.StoreTag(ctx, domain.Tag{Tag: "Culture"})
		require.NoError(t, err)
		_, err = pgSQL.UpdateTag(ctx, other.ID, "sports")
		require.ErrorIs(t, err, storage.ErrDuplicate)

		missing, err := pgSQL.UpdateTag(ctx, domain.TagID(uuid.New()), "x")
		require.NoError(t, err)
		require.Nil(t, missing)
	})

	t.Run("municipalities", func(t *testing.T) {
		m, err := pgSQL.StoreMunicipality(ctx, domain.Municipality{Municipality: "Autre"})
		require.NoError(t, err)

		renamed, err := pgSQL.UpdateMunicipality(ctx, m.ID, "Other")
		require.NoError(t, err)
		require.Equal(t, "Other", renamed.Municipality)

		deleted, err := pgSQL.DeleteMunicipality(ctx, m.ID)
		require.NoError(t, err)
		require.True(t, deleted)
		deleted, err = pgSQL.DeleteMunicipality(ctx, m.ID)
		require.NoError(t, err)
		require.False(t, deleted)
	})

	t.Run("users", func(t *testing.T) {
		tagID := domain.TagID(uuid.New())
		municipality := domain.MunicipalityID(uuid.New())
		user, err := pgSQL.StoreUser(ctx, domain.User{
			FirstName:      "Ada",
			LastName:       "Lovelace",
			Email:          "Ada@Example.com",
			PasswordHash:   "hash",
			Municipality:   &municipality,
			InterestedTags: []domain.TagID{tagID},
		})
		require.NoError(t, err)
		require.False(t, user.CreatedAt.IsZero())
		require.Equal(t, []domain.TagID{tagID}, user.InterestedTags)

		_, err = pgSQL.StoreUser(ctx, domain.User{Email: "ada@example.COM", PasswordHash: "x"})
		require.ErrorIs(t, err, storage.ErrDuplicate)

		found, err := pgSQL.Users(ctx, storage.UserFilter{InterestedTag: &tagID})
		require.NoError(t, err)
		require.Len(t, found, 1)
		require.Equal(t, user.ID, found[0].ID)

		token := "token"
		updated, err := pgSQL.UpdateUser(ctx, user.ID, storage.UserUpdates{
			InterestedTags:    &[]domain.TagID{},
			ConfirmationToken: &token,
		})
		require.NoError(t, err)
		require.Empty(t, updated.InterestedTags)
		require.Equal(t, &token, updated.ConfirmationToken)

		noToken := ""
		updated, err = pgSQL.UpdateUser(ctx, user.ID, storage.UserUpdates{ConfirmationToken: &noToken})
		require.NoError(t, err)
		require.Nil(t, updated.ConfirmationToken)

		found, err = pgSQL.Users(ctx, storage.UserFilter{InterestedTag: &tagID})
		require.NoError(t, err)
		require.Empty(t, found)

		deleted, err := pgSQL.DeleteUser(ctx, user.ID)
		require.NoError(t, err)
		require.True(t, deleted)
	})

	t.Run("events", func(t *testing.T) {
		tagID := domain.TagID(uuid.New())
		_, err := pgSQL.StoreEvent(ctx, domain.Event{EventID: "e2", StartDate: "2025-02-01", Tags: []domain.TagID{tagID}})
		require.NoError(t, err)
		_, err = pgSQL.StoreEvent(ctx, domain.Event{EventID: "e1", StartDate: "2025-01-01", Tags: []domain.TagID{tagID}})
		require.NoError(t, err)
		_, err = pgSQL.StoreEvent(ctx, domain.Event{EventID: "e1"})
		require.ErrorIs(t, err, storage.ErrDuplicate)

		events, err := pgSQL.Events(ctx, storage.EventFilter{Tag: &tagID})
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.Equal(t, "e1", events[0].EventID)

		title := "updated"
		event, err := pgSQL.UpdateEvent(ctx, "e2", storage.EventUpdates{Title: &title, Tags: &[]domain.TagID{}})
		require.NoError(t, err)
		require.Equal(t, "updated", event.Title)
		require.Empty(t, event.Tags)

		event, err = pgSQL.UpdateEvent(ctx, "e2", storage.EventUpdates{})
		require.NoError(t, err)
		require.Equal(t, "updated", event.Title)

		event, err = pgSQL.UpdateEvent(ctx, "missing", storage.EventUpdates{Title: &title})
		require.NoError(t, err)
		require.Nil(t, event)

		deleted, err := pgSQL.DeleteEvent(ctx, "e1")
		require.NoError(t, err)
		require.True(t, deleted)
	})

	t.Run("mailing lists", func(t *testing.T) {
		tagID := domain.TagID(uuid.New())
		list, err := pgSQL.StoreMailingList(ctx, domain.MailingList{Tag: tagID})
		require.NoError(t, err)
		require.Empty(t, list.Users)

		_, err = pgSQL.StoreMailingList(ctx, domain.MailingList{Tag: tagID})
		require.ErrorIs(t, err, storage.ErrDuplicate)

		userID := domain.UserID(uuid.New())
		list, err = pgSQL.UpdateMailingListUsers(ctx, list.ID, []domain.UserID{userID})
		require.NoError(t, err)
		require.Equal(t, []domain.UserID{userID}, list.Users)

		lists, err := pgSQL.MailingLists(ctx, storage.MailingListFilter{Tags: []domain.TagID{tagID}})
		require.NoError(t, err)
		require.Len(t, lists, 1)

		deleted, err := pgSQL.DeleteMailingList(ctx, tagID)
		require.NoError(t, err)
		require.True(t, deleted)
	})
}
