// Package devserver implements trunkgo's development server: it serves the
// most recent build's dist directory, proxies configured backend rules,
// and pushes autoreload notifications to connected browsers whenever a
// watched rebuild completes. It generalizes the teacher's chi-based HTTP
// server (internal/http/server.go) and middleware chain, dropping the huma
// OpenAPI layer and CORS handling that a local dev server has no use for.
package devserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jmylchreest/trunkgo/internal/config"
)

// BuildState tracks the outcome of the most recent build so the dev server
// and its /__trunkgo/health endpoint can report it.
type BuildState struct {
	mu        sync.RWMutex
	lastBuild time.Time
	lastErr   error
	buildID   uint64
}

func (s *BuildState) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBuild = time.Now()
	s.lastErr = nil
	s.buildID++
}

func (s *BuildState) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	s.buildID++
}

// Snapshot returns the current build state.
func (s *BuildState) Snapshot() (lastBuild time.Time, lastErr error, buildID uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastBuild, s.lastErr, s.buildID
}

// Server is trunkgo's dev server: static file serving with SPA fallback,
// reverse-proxying per config.ProxyRule, and an autoreload WebSocket
// broadcaster.
type Server struct {
	cfg    config.ServeConfig
	logger *slog.Logger

	router    chi.Router
	reload    *reloadBroadcaster
	state     *BuildState
	httpSrv   *http.Server
	injectJS  bool
}

// New builds a Server that serves distDir and proxies the given rules.
// Unless cfg.NoAutoreload is set, the autoreload script is injected into
// HTML responses and the WebSocket endpoint is mounted.
func New(cfg config.ServeConfig, distDir string, proxyRules []config.ProxyRule, logger *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		reload:   newReloadBroadcaster(logger),
		state:    &BuildState{},
		injectJS: !cfg.NoAutoreload,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(requestID)
	r.Use(accessLog(logger))
	r.Use(recovery(logger))
	r.Use(extraHeaders(cfg.Headers))

	if s.injectJS {
		r.Get(ReloadPath, s.reload.handler())
	}

	r.Get("/__trunkgo/health", s.handleHealth)

	for _, rule := range proxyRules {
		handler, err := newProxyHandler(rule, logger)
		if err != nil {
			return nil, fmt.Errorf("configuring proxy rule for %q: %w", rule.Backend, err)
		}
		mount := rule.RewritePrefix
		if mount == "" {
			mount = "/"
		}
		r.Mount(mount, handler)
	}

	static := newStaticHandler(distDir, !cfg.NoSpaFallback)
	if s.injectJS {
		static = s.withReloadInjection(static)
	}
	r.Handle("/*", static)

	s.router = r
	return s, nil
}

// withReloadInjection wraps a handler so that any text/html response has
// the autoreload script appended before </body>.
func (s *Server) withReloadInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &bufferingWriter{header: make(http.Header)}
		next.ServeHTTP(rec, r)

		for k, vv := range rec.header {
			for _, v := range vv {
				w.Header().Add(k, v)
			}
		}

		body := rec.buf.Bytes()
		if isHTML(rec.header.Get("Content-Type")) {
			body = injectBeforeBodyClose(body, []byte(autoreloadScript))
			w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		}
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		w.WriteHeader(rec.status)
		w.Write(body)
	})
}

// extraHeaders appends the configured serve.headers to every response
// ahead of any handler writing one, so hop-by-hop overrides from proxy or
// static handlers still take effect (Header().Add merges, not replaces).
func extraHeaders(headers map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for k, v := range headers {
				w.Header().Add(k, v)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isHTML(contentType string) bool {
	return len(contentType) >= 9 && contentType[:9] == "text/html"
}

func injectBeforeBodyClose(body, script []byte) []byte {
	idx := bytes.LastIndex(body, []byte("</body>"))
	if idx < 0 {
		return append(body, script...)
	}
	out := make([]byte, 0, len(body)+len(script))
	out = append(out, body[:idx]...)
	out = append(out, script...)
	out = append(out, body[idx:]...)
	return out
}

// bufferingWriter is a minimal in-memory http.ResponseWriter used to
// capture a downstream handler's output so it can be rewritten before
// being sent to the real client.
type bufferingWriter struct {
	header http.Header
	status int
	buf    bytes.Buffer
}

func (b *bufferingWriter) Header() http.Header         { return b.header }
func (b *bufferingWriter) WriteHeader(statusCode int)  { b.status = statusCode }
func (b *bufferingWriter) Write(p []byte) (int, error) { return b.buf.Write(p) }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	lastBuild, lastErr, buildID := s.state.Snapshot()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	status := "ok"
	if lastErr != nil {
		status = "error"
	}
	fmt.Fprintf(w, `{"status":%q,"build_id":%d,"last_build":%q,"clients":%d}`,
		status, buildID, lastBuild.Format(time.RFC3339), s.reload.ClientCount())
}

// NotifyBuildSucceeded records a successful build and broadcasts a reload
// to every connected client.
func (s *Server) NotifyBuildSucceeded() {
	s.state.recordSuccess()
	if s.injectJS {
		s.reload.Broadcast()
	}
}

// NotifyBuildFailed records a failed build without triggering a reload;
// the stale page stays up rather than reloading into a broken build.
func (s *Server) NotifyBuildFailed(err error) {
	s.state.recordFailure(err)
}

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled
// or the server fails, mirroring the teacher's graceful-shutdown-via-
// context pattern.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: s.router,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("dev server listening", "addr", s.cfg.Addr())
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
			return
		}
		errc <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}
