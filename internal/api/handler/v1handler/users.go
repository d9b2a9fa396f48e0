package v1handler

import (
	"civic/internal/user"
	"civic/pkg/domain"
	"civic/pkg/logger"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint: gosec
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type validateRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type emailUniqueResponse struct {
	Unique bool `json:"unique"`
}

// register creates a regular, non validated user. Admin accounts are created
// with the setup command.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var info user.RegisterInfo
	if err := decode(w, r, &info); err != nil {
		h.writeError(w, r, err)

		return
	}

	created, err := h.deps.Users.Register(r.Context(), info, false, false)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusCreated, created)
}

func (h *Handler) login(sec *SecHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decode(w, r, &req); err != nil {
			h.writeError(w, r, err)

			return
		}

		found, err := h.deps.Users.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			h.writeError(w, r, err)

			return
		}

		token, err := sec.Issue(found)
		if err != nil {
			h.writeError(w, r, err)

			return
		}

		writeJSON(r.Context(), w, http.StatusOK, loginResponse{Token: token, User: found})
	}
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)

		return
	}

	validated, err := h.deps.Users.Validate(r.Context(), req.Email, req.Token)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, validated)
}

func (h *Handler) isEmailUnique(w http.ResponseWriter, r *http.Request) {
	unique, err := h.deps.Users.IsEmailUnique(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, emailUniqueResponse{Unique: unique})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	h.writeProfile(w, r, Email(r.Context()))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	h.writeProfile(w, r, chi.URLParam(r, "email"))
}

func (h *Handler) writeProfile(w http.ResponseWriter, r *http.Request, email string) {
	profile, err := h.deps.Users.GetOne(r.Context(), email)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, profile)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.deps.Users.GetAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, profiles)
}

// TokenHeader carries the token reissued by PATCH /users/me after an email
// change. Tokens name the user by email, so the caller's old token no longer
// resolves to the account.
const TokenHeader = "X-Auth-Token"

// updateMe lets users edit their own account. The privilege flags can only be
// changed by an administrator.
func (h *Handler) updateMe(sec *SecHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch user.Patch
		if err := decode(w, r, &patch); err != nil {
			h.writeError(w, r, err)

			return
		}
		patch.IsAdmin = nil
		patch.IsValidated = nil

		email := Email(r.Context())
		updated, err := h.deps.Users.Update(r.Context(), email, patch)
		if err != nil {
			h.writeError(w, r, err)

			return
		}

		if !strings.EqualFold(updated.Email, email) {
			token, err := sec.Issue(updated)
			if err != nil {
				// the update is committed, the caller has to log in again
				logger.Warn(r.Context(), "could not reissue token after email change", zap.Error(err))
			} else {
				w.Header().Set(TokenHeader, token)
			}
		}

		writeJSON(r.Context(), w, http.StatusOK, updated)
	}
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var patch user.Patch
	if err := decode(w, r, &patch); err != nil {
		h.writeError(w, r, err)

		return
	}

	h.applyPatch(w, r, chi.URLParam(r, "email"), patch)
}

func (h *Handler) applyPatch(w http.ResponseWriter, r *http.Request, email string, patch user.Patch) {
	updated, err := h.deps.Users.Update(r.Context(), email, patch)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusOK, updated)
}

func (h *Handler) deleteMe(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, Email(r.Context()))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, chi.URLParam(r, "email"))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request, email string) {
	if err := h.deps.Users.Delete(r.Context(), email); err != nil {
		h.writeError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
