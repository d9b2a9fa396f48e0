package v1handler

import (
	"civic/pkg/domain"
	"civic/pkg/serrors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type tagRequest struct {
	Tag string `json:"tag"`
}

func tagID(r *http.Request) (domain.TagID, error) {
	ID, err := domain.ParseID[domain.TagID](chi.URLParam(r, "id"))
	if err != nil {
		return ID, serrors.Wrap(serrors.ErrBadRequest, err, "invalid tag id")
	}

	return ID, nil
}

func (h *Handler) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.deps.Tags.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, tags)
}

func (h *Handler) getTag(w http.ResponseWriter, r *http.Request) {
	ID, err := tagID(r)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	found, err := h.deps.Tags.Get(r.Context(), ID)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, found)
}

func (h *Handler) createTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)

		return
	}

	created, err := h.deps.Tags.Create(r.Context(), req.Tag)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusCreated, created)
}

func (h *Handler) renameTag(w http.ResponseWriter, r *http.Request) {
	ID, err := tagID(r)
	if err != nil {
		h.writeError(w, r, err)

		return
	}
	var req tagRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)

		return
	}

	current, err := h.deps.Tags.Get(r.Context(), ID)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	updated, err := h.deps.Tags.Update(r.Context(), current.Tag, req.Tag)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, updated)
}

func (h *Handler) deleteTag(w http.ResponseWriter, r *http.Request) {
	ID, err := tagID(r)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	if err := h.deps.Tags.Delete(r.Context(), ID); err != nil {
		h.writeError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getMailingList(w http.ResponseWriter, r *http.Request) {
	ID, err := tagID(r)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	list, err := h.deps.MailingLists.Get(r.Context(), ID)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, list)
}
