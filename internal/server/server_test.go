package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fabian4/devproxy/internal/metrics"
)

func TestDefaultHandlerDiagnostics(t *testing.T) {
	m := metrics.NewRegistry()
	m.IncRequest("api", "GET", "200")
	h, err := NewDefaultHandler(Options{PublicPath: "/", OutDir: t.TempDir(), Metrics: m, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}

	if rec := serve(h, HealthPath); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz: got %d %q", rec.Code, rec.Body.String())
	}
	rec := serve(h, MetricsPath)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "devproxy_requests_total") {
		t.Errorf("metrics: got %d %q", rec.Code, rec.Body.String())
	}
}

func TestDefaultHandlerUsesFallbackURL(t *testing.T) {
	vite := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("vite"))
	}))
	defer vite.Close()

	h, err := NewDefaultHandler(Options{PublicPath: "/", OutDir: t.TempDir(), FallbackURL: vite.URL, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	if rec := serve(h, "/src/App.vue"); rec.Body.String() != "vite" {
		t.Errorf("got %q, want vite", rec.Body.String())
	}
	// no metrics registry, no metrics endpoint: relayed like anything else
	if rec := serve(h, MetricsPath); rec.Body.String() != "vite" {
		t.Errorf("metrics path: got %q", rec.Body.String())
	}
}

func TestDefaultHandlerPassesNonCanonicalPaths(t *testing.T) {
	vite := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.RequestURI))
	}))
	defer vite.Close()

	h, err := NewDefaultHandler(Options{PublicPath: "/", OutDir: t.TempDir(), FallbackURL: vite.URL, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{"/a//b", "/x/../y", "/@fs//home/u/p.js", "/__devproxy/healthz/"} {
		rec := serve(h, path)
		if rec.Code != http.StatusOK || rec.Body.String() != path {
			t.Errorf("%s: got %d %q, want 200 with the path unchanged", path, rec.Code, rec.Body.String())
		}
	}
}
