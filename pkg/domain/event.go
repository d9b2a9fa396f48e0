package domain

import "slices"

// Event is a community event synchronized from an upstream content source.
// Tags hold opaque references to Tag documents.
type Event struct {
	// ID is the internal identifier of the event document.
	ID EventID `json:"id"`
	// EventID is the unique external key assigned by the upstream source.
	EventID string `json:"eventId"`

	EventStatus string  `json:"eventStatus"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Tags        []TagID `json:"tags"`
	StartDate   string  `json:"startDate"`
	EndDate     string  `json:"endDate"`
	OriginURL   string  `json:"originUrl"`
	FormURL     string  `json:"formUrl"`
}

// HasTag reports whether the event references tag.
func (e *Event) HasTag(tag TagID) bool {
	return slices.Contains(e.Tags, tag)
}
