package controller

import (
	"net/http"
	"slices"
)

const (
	corsAllowedHeaders = "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Request-Id"
	corsAllowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
)

// WithCORS returns a middleware that sets CORS headers for requests coming
// from one of origins and short-circuits OPTIONS preflight requests with 204
// No Content. A "*" entry allows every origin; credentials are only allowed
// for explicitly listed origins.
func WithCORS(origins ...string) func(http.Handler) http.Handler {
	wildcard := slices.Contains(origins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			header := w.Header()

			switch {
			case origin != "" && slices.Contains(origins, origin):
				header.Set("Access-Control-Allow-Origin", origin)
				header.Set("Access-Control-Allow-Credentials", "true")
				header.Add("Vary", "Origin")
			case wildcard:
				header.Set("Access-Control-Allow-Origin", "*")
			}
			header.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
			header.Set("Access-Control-Allow-Methods", corsAllowedMethods)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
