package v1handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type municipalityRequest struct {
	Municipality string `json:"municipality"`
}

func (h *Handler) listMunicipalities(w http.ResponseWriter, r *http.Request) {
	municipalities, err := h.deps.Municipalities.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, municipalities)
}

// getMunicipality creates the default municipality when it is requested before
// it exists.
func (h *Handler) getMunicipality(w http.ResponseWriter, r *http.Request) {
	found, err := h.deps.Municipalities.GetOrCreateDefault(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, found)
}

func (h *Handler) createMunicipality(w http.ResponseWriter, r *http.Request) {
	var req municipalityRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)

		return
	}

	created, err := h.deps.Municipalities.Create(r.Context(), req.Municipality)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusCreated, created)
}

func (h *Handler) renameMunicipality(w http.ResponseWriter, r *http.Request) {
	var req municipalityRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)

		return
	}

	updated, err := h.deps.Municipalities.Update(r.Context(), chi.URLParam(r, "name"), req.Municipality)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, updated)
}

func (h *Handler) deleteMunicipality(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Municipalities.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.writeError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
