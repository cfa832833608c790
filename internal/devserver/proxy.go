package devserver

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/jmylchreest/trunkgo/internal/config"
)

// newProxyHandler builds an http.Handler for one proxy rule: plain requests
// go through httputil.ReverseProxy, and requests carrying a WebSocket
// upgrade are relayed frame-by-frame when the rule opts in.
func newProxyHandler(rule config.ProxyRule, logger *slog.Logger) (http.Handler, error) {
	backend, err := url.Parse(rule.Backend)
	if err != nil {
		return nil, err
	}

	rp := httputil.NewSingleHostReverseProxy(backend)
	baseDirector := rp.Director
	rp.Director = func(r *http.Request) {
		baseDirector(r)
		if rule.RewritePrefix != "" {
			r.URL.Path = strings.TrimPrefix(r.URL.Path, rule.RewritePrefix)
			if !strings.HasPrefix(r.URL.Path, "/") {
				r.URL.Path = "/" + r.URL.Path
			}
		}
		for k, v := range rule.RequestHeaders {
			r.Header.Set(k, v)
		}
	}
	rp.ErrorLog = nil
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("proxy request failed", "backend", rule.Backend, "path", r.URL.Path, "error", err)
		w.WriteHeader(http.StatusBadGateway)
	}

	inner := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if rule.NoSystemProxy {
		inner.Proxy = nil
	}
	if rule.InsecureSkipTLS {
		inner.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	if rule.NoRedirect {
		rp.Transport = inner
	} else {
		rp.Transport = &redirectChasingTransport{client: &http.Client{Transport: inner}}
	}

	if !rule.WSUpgradeEnabled {
		return rp, nil
	}

	return &wsProxyHandler{rule: rule, backend: backend, http: rp, logger: logger}, nil
}

// wsProxyHandler dispatches to the HTTP reverse proxy for ordinary requests
// and relays WebSocket frames for upgrade requests, grounded on the
// teacher's relay.Manager session-based connection handling.
type wsProxyHandler struct {
	rule    config.ProxyRule
	backend *url.URL
	http    http.Handler
	logger  *slog.Logger
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (h *wsProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		h.http.ServeHTTP(w, r)
		return
	}

	clientConn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "path", r.URL.Path, "error", err)
		return
	}
	defer clientConn.Close()

	backendURL := *h.backend
	backendURL.Scheme = wsScheme(h.backend.Scheme)
	backendURL.Path = r.URL.Path
	backendURL.RawQuery = r.URL.RawQuery
	if h.rule.RewritePrefix != "" {
		backendURL.Path = strings.TrimPrefix(backendURL.Path, h.rule.RewritePrefix)
	}

	dialer := websocket.Dialer{}
	if h.rule.InsecureSkipTLS {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	backendConn, _, err := dialer.Dial(backendURL.String(), nil)
	if err != nil {
		h.logger.Warn("websocket backend dial failed", "backend", backendURL.String(), "error", err)
		return
	}
	defer backendConn.Close()

	errc := make(chan error, 2)
	go relayFrames(clientConn, backendConn, errc)
	go relayFrames(backendConn, clientConn, errc)
	<-errc
}

func relayFrames(dst, src *websocket.Conn, errc chan<- error) {
	for {
		mt, msg, err := src.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		if err := dst.WriteMessage(mt, msg); err != nil {
			errc <- err
			return
		}
	}
}

func wsScheme(httpScheme string) string {
	if httpScheme == "https" {
		return "wss"
	}
	return "ws"
}

// redirectChasingTransport is the default RoundTripper for a proxy rule:
// plain http.Transport never follows redirects (that's http.Client
// behavior), so by default a rule chases 3xx responses from the backend
// itself and relays only the final response to the browser. Setting
// no_redirect on a rule swaps this out for the bare *http.Transport so the
// browser sees the backend's redirect unmodified.
type redirectChasingTransport struct {
	client *http.Client
}

func (t *redirectChasingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	// ReverseProxy's outgoing request still carries the inbound RequestURI,
	// which http.Client rejects, so send a copy with it cleared.
	out := r.Clone(r.Context())
	out.RequestURI = ""
	return t.client.Do(out)
}
