package devserver

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/trunkgo/internal/config"
)

func TestProxyHandler_ForwardsToBackend(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Path", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	h, err := newProxyHandler(config.ProxyRule{Backend: backend.URL}, slog.Default())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/things", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/api/things", rec.Header().Get("X-Seen-Path"))
}

func TestProxyHandler_RewritesPrefix(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Path", r.URL.Path)
	}))
	defer backend.Close()

	h, err := newProxyHandler(config.ProxyRule{Backend: backend.URL, RewritePrefix: "/api"}, slog.Default())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/things", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "/things", rec.Header().Get("X-Seen-Path"))
}

func TestProxyHandler_InjectsRequestHeaders(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Auth", r.Header.Get("Authorization"))
	}))
	defer backend.Close()

	h, err := newProxyHandler(config.ProxyRule{
		Backend:        backend.URL,
		RequestHeaders: map[string]string{"Authorization": "Bearer dev-token"},
	}, slog.Default())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "Bearer dev-token", rec.Header().Get("X-Seen-Auth"))
}

func TestProxyHandler_ChasesRedirectsByDefault(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusFound)
			return
		}
		w.Write([]byte("final"))
	}))
	defer backend.Close()

	h, err := newProxyHandler(config.ProxyRule{Backend: backend.URL}, slog.Default())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/old", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "final", rec.Body.String())
}

func TestProxyHandler_NoRedirectRelaysRedirectUnmodified(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	}))
	defer backend.Close()

	h, err := newProxyHandler(config.ProxyRule{Backend: backend.URL, NoRedirect: true}, slog.Default())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/old", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/new", rec.Header().Get("Location"))
}

func TestProxyHandler_BadBackendReturnsBadGateway(t *testing.T) {
	h, err := newProxyHandler(config.ProxyRule{Backend: "http://127.0.0.1:1"}, slog.Default())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
