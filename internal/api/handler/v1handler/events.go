package v1handler

import (
	"civic/internal/event"
	"civic/pkg/domain"
	"civic/pkg/serrors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// listEvents accepts an optional tag query parameter restricting the result
// to the events referencing that tag.
func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	var filter *domain.TagID
	if raw := r.URL.Query().Get("tag"); raw != "" {
		ID, err := domain.ParseID[domain.TagID](raw)
		if err != nil {
			h.writeError(w, r, serrors.Wrap(serrors.ErrBadRequest, err, "invalid tag id"))

			return
		}
		filter = &ID
	}

	events, err := h.deps.Events.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, events)
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	found, err := h.deps.Events.Get(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, found)
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	var draft event.Draft
	if err := decode(w, r, &draft); err != nil {
		h.writeError(w, r, err)

		return
	}

	created, err := h.deps.Events.Create(r.Context(), draft)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusCreated, created)
}

func (h *Handler) updateEvent(w http.ResponseWriter, r *http.Request) {
	var patch event.Patch
	if err := decode(w, r, &patch); err != nil {
		h.writeError(w, r, err)

		return
	}

	updated, err := h.deps.Events.Update(r.Context(), chi.URLParam(r, "eventId"), patch)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, updated)
}

func (h *Handler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Events.Delete(r.Context(), chi.URLParam(r, "eventId")); err != nil {
		h.writeError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
