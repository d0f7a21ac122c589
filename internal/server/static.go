package server

import (
	"io/fs"
	"net/http"
	"os"
	"path"
)

// SPAHandler serves a built single-page app. Missing extensionless paths get
// index.html so client-side routes resolve; missing files with an extension
// are 404.
type SPAHandler struct {
	fileServer http.Handler
	filesystem fs.FS
}

// NewSPAHandler serves files from fsys.
func NewSPAHandler(fsys fs.FS) *SPAHandler {
	return &SPAHandler{
		fileServer: http.FileServer(http.FS(fsys)),
		filesystem: fsys,
	}
}

// NewDirSPAHandler serves the output directory dir. The directory need not
// exist yet; until a build produces it every asset request is 404.
func NewDirSPAHandler(dir string) *SPAHandler {
	return NewSPAHandler(os.DirFS(dir))
}

func (h *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	urlPath := r.URL.Path
	if urlPath == "/" {
		h.fileServer.ServeHTTP(w, r)
		return
	}

	if _, err := fs.Stat(h.filesystem, urlPath[1:]); err == nil {
		h.fileServer.ServeHTTP(w, r)
		return
	}

	// r.URL.Path is already decoded, so %2Ecss counts as an extension
	if path.Ext(urlPath) != "" {
		http.NotFound(w, r)
		return
	}

	h.fileServer.ServeHTTP(w, withPath(r, "/"))
}
