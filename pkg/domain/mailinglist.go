package domain

import "slices"

// MailingList is the materialized set of users subscribed to one tag. It is
// owned by its tag: created and deleted together with it. Users always equals
// the set of users whose InterestedTags contain Tag.
type MailingList struct {
	ID    MailingListID `json:"id"`
	Tag   TagID         `json:"tag"`
	Users []UserID      `json:"users"`
}

// HasUser reports whether user is a member of the list.
func (m *MailingList) HasUser(user UserID) bool {
	return slices.Contains(m.Users, user)
}
