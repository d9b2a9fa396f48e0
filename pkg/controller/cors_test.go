package controller_test

import (
	"civic/pkg/controller"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func serveCORS(t *testing.T, method string, origin string, origins ...string) (*http.Response, bool) {
	t.Helper()

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(method, "/v1/tags", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	controller.WithCORS(origins...)(next).ServeHTTP(rec, req)

	return rec.Result(), called
}

func TestWithCORS_Preflight(t *testing.T) {
	res, called := serveCORS(t, http.MethodOptions, "https://app.example", "*")

	require.False(t, called, "next handler should not be called for OPTIONS preflight")
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	require.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	require.Empty(t, res.Header.Get("Access-Control-Allow-Credentials"))
	require.Contains(t, res.Header.Get("Access-Control-Allow-Methods"), "DELETE")
	require.Contains(t, res.Header.Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestWithCORS_ListedOrigin(t *testing.T) {
	res, called := serveCORS(t, http.MethodDelete, "https://app.example", "https://app.example")

	require.True(t, called)
	require.Equal(t, http.StatusTeapot, res.StatusCode)
	require.Equal(t, "https://app.example", res.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", res.Header.Get("Access-Control-Allow-Credentials"))
	require.Equal(t, "Origin", res.Header.Get("Vary"))
}

func TestWithCORS_UnlistedOrigin(t *testing.T) {
	res, called := serveCORS(t, http.MethodGet, "https://evil.example", "https://app.example")

	require.True(t, called)
	require.Empty(t, res.Header.Get("Access-Control-Allow-Origin"))
}
