package devserver

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// contentTypeByExt is a small content-type table for the extensions a wasm
// build actually produces, grounded on bennypowers-cem's serveStaticFiles —
// net/http's built-in sniffing gets .wasm and .js wrong often enough in
// practice that trunk-rs pins them explicitly too.
var contentTypeByExt = map[string]string{
	".js":    "application/javascript; charset=utf-8",
	".mjs":   "application/javascript; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".html":  "text/html; charset=utf-8",
	".json":  "application/json; charset=utf-8",
	".svg":   "image/svg+xml",
	".wasm":  "application/wasm",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

// staticHandler serves files out of root, falling back to index.html for
// unresolved paths unless spaFallback is disabled, and rejecting any path
// that escapes root.
type staticHandler struct {
	root        string
	spaFallback bool
}

func newStaticHandler(root string, spaFallback bool) http.Handler {
	return &staticHandler{root: root, spaFallback: spaFallback}
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestPath := filepath.Clean(r.URL.Path)
	if requestPath == "." {
		requestPath = "/"
	}

	fullPath := filepath.Join(h.root, strings.TrimPrefix(requestPath, "/"))
	if rel, err := filepath.Rel(h.root, fullPath); err != nil || strings.HasPrefix(rel, "..") {
		http.NotFound(w, r)
		return
	}

	content, servedPath, err := h.read(fullPath)
	if err != nil {
		if h.spaFallback {
			content, servedPath, err = h.read(filepath.Join(h.root, "index.html"))
		}
		if err != nil {
			http.NotFound(w, r)
			return
		}
	}

	if ct, ok := contentTypeByExt[filepath.Ext(servedPath)]; ok {
		w.Header().Set("Content-Type", ct)
	}
	w.Write(content)
}

func (h *staticHandler) read(path string) ([]byte, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", err
	}
	if info.IsDir() {
		path = filepath.Join(path, "index.html")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return content, path, nil
}
