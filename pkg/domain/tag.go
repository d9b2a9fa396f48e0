package domain

// Tag is a named interest category used to filter events and target
// notifications. Tag names are unique, compared case-insensitively.
type Tag struct {
	ID  TagID  `json:"id"`
	Tag string `json:"tag"`
}
