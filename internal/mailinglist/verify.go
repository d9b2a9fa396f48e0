package mailinglist

import (
	"civic/pkg/diff"
	"civic/pkg/domain"
	"civic/pkg/serrors"
	"civic/pkg/storage"
	"context"
	"slices"
)

// Drift describes a tag whose mailing list does not match the users
// following it.
type Drift struct {
	Tag domain.TagID
	// MissingList is set when the tag has no mailing list at all.
	MissingList bool
	// OrphanList is set when a mailing list references a tag that no longer
	// exists.
	OrphanList bool
	// Unsubscribed follow the tag but are not members of its list.
	Unsubscribed []domain.UserID
	// Stale are members of the list who no longer follow the tag.
	Stale []domain.UserID
}

// Verify compares every mailing list with the users following its tag and
// returns the differences. An empty result means the lists are consistent.
func Verify(ctx context.Context, tx storage.AllStorage) ([]Drift, error) {
	tags, err := tx.Tags(ctx, storage.TagFilter{})
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not fetch tags")
	}
	lists, err := tx.MailingLists(ctx, storage.MailingListFilter{})
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not fetch mailing lists")
	}
	users, err := tx.Users(ctx, storage.UserFilter{})
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrInternal, err, "could not fetch users")
	}

	followers := make(map[domain.TagID][]domain.UserID, len(tags))
	for _, user := range users {
		for _, tagID := range diff.Unique(user.InterestedTags) {
			followers[tagID] = append(followers[tagID], user.ID)
		}
	}
	byTag := make(map[domain.TagID]domain.MailingList, len(lists))
	for _, list := range lists {
		byTag[list.Tag] = list
	}

	var drifts []Drift
	for _, tag := range tags {
		list, ok := byTag[tag.ID]
		delete(byTag, tag.ID)
		if !ok {
			drifts = append(drifts, Drift{Tag: tag.ID, MissingList: true, Unsubscribed: followers[tag.ID]})

			continue
		}

		unsubscribed, stale := diff.Sets(list.Users, followers[tag.ID])
		if len(unsubscribed) > 0 || len(stale) > 0 {
			drifts = append(drifts, Drift{Tag: tag.ID, Unsubscribed: unsubscribed, Stale: stale})
		}
	}
	for _, list := range lists {
		if _, orphan := byTag[list.Tag]; orphan {
			drifts = append(drifts, Drift{Tag: list.Tag, OrphanList: true, Stale: list.Users})
		}
	}

	return drifts, nil
}

// Repair applies drifts returned by Verify using tx: orphan lists are
// deleted, missing lists are created and memberships are brought in line
// with the users following each tag.
func Repair(ctx context.Context, tx storage.AllStorage, drifts []Drift) error {
	for _, drift := range drifts {
		if drift.OrphanList {
			if err := Delete(ctx, tx, drift.Tag); err != nil {
				return err
			}

			continue
		}

		var (
			list *domain.MailingList
			err  error
		)
		if drift.MissingList {
			list, err = Create(ctx, tx, drift.Tag)
		} else {
			list, err = Get(ctx, tx, drift.Tag, true)
		}
		if err != nil {
			return err
		}

		users := slices.Clone(list.Users)
		for _, stale := range drift.Stale {
			users = diff.Without(users, stale)
		}
		users = diff.Unique(append(users, drift.Unsubscribed...))
		if _, err = update(ctx, tx, list, users); err != nil {
			return err
		}
	}

	return nil
}
