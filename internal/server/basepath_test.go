package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":       "/",
		"/":      "/",
		"app":    "/app/",
		"/app":   "/app/",
		"/app/":  "/app/",
		" /a/b ": "/a/b/",
	}
	for in, want := range cases {
		if got := NormalizeBasePath(in); got != want {
			t.Errorf("NormalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func pathEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Path))
	})
}

func TestBasePathHandler(t *testing.T) {
	h := NewBasePathHandler("/app", pathEcho())

	cases := map[string]string{
		"/app/":            "/",
		"/app":             "/",
		"/app/assets/a.js": "/assets/a.js",
		"/other":           "/other",
	}
	for in, want := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, in, nil))
		if got := rec.Body.String(); got != want {
			t.Errorf("%s: inner saw %q, want %q", in, got, want)
		}
	}
}

func TestBasePathHandlerRootIsNoop(t *testing.T) {
	inner := pathEcho()
	if h := NewBasePathHandler("/", inner); h == nil {
		t.Fatal("nil handler")
	} else if _, wrapped := h.(*BasePathHandler); wrapped {
		t.Errorf("root base path should not wrap the handler")
	}
}
