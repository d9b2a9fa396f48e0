// Package v1handler implements the v1 HTTP endpoints. Handlers decode the
// request, call one manager and map the semantic error kinds of the managers
// to HTTP status codes.
package v1handler

import (
	"civic/internal/event"
	"civic/internal/mailinglist"
	"civic/internal/municipality"
	"civic/internal/tag"
	"civic/internal/user"
	"civic/pkg/logger"
	"civic/pkg/serrors"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Deps are the managers behind the v1 endpoints.
type Deps struct {
	Users          user.Manager
	Tags           tag.Manager
	Municipalities municipality.Manager
	Events         event.Manager
	MailingLists   mailinglist.Manager
}

type Handler struct {
	deps Deps
}

func New(deps Deps) *Handler {
	return &Handler{deps: deps}
}

// Error is the body of every non-2xx response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Stage names the failed step of a rolled back multi-step operation.
	Stage string `json:"stage,omitempty"`
}

// ErrorStatusCode pairs an Error body with its HTTP status.
type ErrorStatusCode struct {
	StatusCode int
	Response   Error
}

var statusByKind = map[serrors.Kind]int{ //nolint: gochecknoglobals
	serrors.ErrNotFound:       http.StatusNotFound,
	serrors.ErrUnauthorized:   http.StatusUnauthorized,
	serrors.ErrForbidden:      http.StatusForbidden,
	serrors.ErrBadRequest:     http.StatusBadRequest,
	serrors.ErrConflict:       http.StatusConflict,
	serrors.ErrNoModification: http.StatusConflict,
	serrors.ErrTimeout:        http.StatusGatewayTimeout,
	serrors.ErrUnavailable:    http.StatusServiceUnavailable,
	serrors.ErrRateLimited:    http.StatusTooManyRequests,
}

var defaultMessages = map[serrors.Kind]string{ //nolint: gochecknoglobals
	serrors.ErrNotFound:       "resource not found",
	serrors.ErrUnauthorized:   "unauthorized",
	serrors.ErrForbidden:      "forbidden",
	serrors.ErrBadRequest:     "bad request",
	serrors.ErrConflict:       "resource already exists",
	serrors.ErrNoModification: "no modification",
	serrors.ErrTimeout:        "timeout",
	serrors.ErrUnavailable:    "service unavailable",
	serrors.ErrRateLimited:    "too many requests",
}

// NewError converts err into an error response. Kinds without a client facing
// status, including failed creations and cascades, become 500 and are logged;
// their message is never exposed.
func (h Handler) NewError(ctx context.Context, err error) *ErrorStatusCode {
	kind := serrors.KindOf(err)
	if status, ok := statusByKind[kind]; ok {
		var se *serrors.Error
		_ = errors.As(err, &se)
		message := se.Message()
		if message == "" {
			message = defaultMessages[kind]
		}

		return &ErrorStatusCode{
			StatusCode: status,
			Response:   Error{Code: kind.Error(), Message: message},
		}
	}

	if kind == nil {
		kind = serrors.ErrInternal
	}
	stage := serrors.StageOf(err)
	logger.Error(ctx, "request failed", zap.Error(err), zap.String("stage", stage))

	return &ErrorStatusCode{
		StatusCode: http.StatusInternalServerError,
		Response:   Error{Code: kind.Error(), Message: "internal error", Stage: stage},
	}
}

// Routes registers the v1 endpoints on r. Reads of tags, municipalities and
// events are public; their writes and the user directory require an admin.
func (h *Handler) Routes(r chi.Router, sec *SecHandler) {
	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.register)
		r.Post("/login", h.login(sec))
		r.Post("/validate", h.validate)
		r.Get("/email-unique", h.isEmailUnique)

		r.Group(func(r chi.Router) {
			r.Use(sec.RequireAuth)
			r.Get("/me", h.me)
			r.Patch("/me", h.updateMe(sec))
			r.Delete("/me", h.deleteMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(sec.RequireAuth, RequireAdmin)
			r.Get("/", h.listUsers)
			r.Get("/{email}", h.getUser)
			r.Patch("/{email}", h.updateUser)
			r.Delete("/{email}", h.deleteUser)
		})
	})

	r.Route("/tags", func(r chi.Router) {
		r.Get("/", h.listTags)
		r.Get("/{id}", h.getTag)

		r.Group(func(r chi.Router) {
			r.Use(sec.RequireAuth, RequireAdmin)
			r.Post("/", h.createTag)
			r.Put("/{id}", h.renameTag)
			r.Delete("/{id}", h.deleteTag)
			r.Get("/{id}/mailing-list", h.getMailingList)
		})
	})

	r.Route("/municipalities", func(r chi.Router) {
		r.Get("/", h.listMunicipalities)
		r.Get("/{name}", h.getMunicipality)

		r.Group(func(r chi.Router) {
			r.Use(sec.RequireAuth, RequireAdmin)
			r.Post("/", h.createMunicipality)
			r.Put("/{name}", h.renameMunicipality)
			r.Delete("/{name}", h.deleteMunicipality)
		})
	})

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.listEvents)
		r.Get("/{eventId}", h.getEvent)

		r.Group(func(r chi.Router) {
			r.Use(sec.RequireAuth, RequireAdmin)
			r.Post("/", h.createEvent)
			r.Patch("/{eventId}", h.updateEvent)
			r.Delete("/{eventId}", h.deleteEvent)
		})
	})
}

// decode reads a JSON body into dst. Malformed or oversized bodies are bad
// requests.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return serrors.Wrap(serrors.ErrBadRequest, err, "could not read request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return serrors.Wrap(serrors.ErrBadRequest, err, "invalid JSON body")
	}

	return nil
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Error(ctx, "could not encode response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	res := h.NewError(r.Context(), err)
	writeJSON(r.Context(), w, res.StatusCode, res.Response)
}
