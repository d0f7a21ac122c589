package server

import (
	"net/http"
	"strings"
)

// NormalizeBasePath ensures the base path starts and ends with '/'.
func NormalizeBasePath(basePath string) string {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return "/"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if !strings.HasSuffix(basePath, "/") {
		basePath = basePath + "/"
	}
	return basePath
}

// BasePathHandler strips the public base path before calling inner.
// Requests outside the base path are passed through unchanged.
type BasePathHandler struct {
	basePath string
	inner    http.Handler
}

// NewBasePathHandler returns inner itself when basePath is "/".
func NewBasePathHandler(basePath string, inner http.Handler) http.Handler {
	bp := NormalizeBasePath(basePath)
	if bp == "/" {
		return inner
	}
	return &BasePathHandler{
		basePath: bp,
		inner:    inner,
	}
}

func (h *BasePathHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, h.basePath) {
		h.inner.ServeHTTP(w, withPath(r, "/"+strings.TrimPrefix(r.URL.Path, h.basePath)))
		return
	}
	// "/app" for base "/app/"
	if r.URL.Path+"/" == h.basePath {
		h.inner.ServeHTTP(w, withPath(r, "/"))
		return
	}
	h.inner.ServeHTTP(w, r)
}

func withPath(r *http.Request, p string) *http.Request {
	r2 := r.Clone(r.Context())
	r2.URL.Path = p
	r2.URL.RawPath = ""
	return r2
}
