package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestDevProxyHandlerPreservesPathAndQuery(t *testing.T) {
	vite := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("vite:" + r.URL.RequestURI()))
	}))
	defer vite.Close()

	handler, err := NewDevProxyHandler(vite.URL, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := serve(handler, "/src/main.ts?t=123")
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if got, want := rec.Body.String(), "vite:/src/main.ts?t=123"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDevProxyHandlerUnreachable(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	handler, err := NewDevProxyHandler(url, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec := serve(handler, "/"); rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

func TestDevProxyHandlerInvalidURL(t *testing.T) {
	for _, u := range []string{"localhost:5173", "ftp://x", "://"} {
		if _, err := NewDevProxyHandler(u, zerolog.Nop()); err == nil {
			t.Errorf("%q: expected error", u)
		}
	}
}
