package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fabian4/devproxy/internal/config"
	"github.com/fabian4/devproxy/internal/model"
	"github.com/fabian4/devproxy/internal/router"
)

func versionedUpstream(t *testing.T, version string) *httptest.Server {
	t.Helper()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Version", version)
	}))
	t.Cleanup(up.Close)
	return up
}

func TestHotReload(t *testing.T) {
	v1 := versionedUpstream(t, "v1")
	v2 := versionedUpstream(t, "v2")

	path := filepath.Join(t.TempDir(), "rules.yaml")
	write := func(target string) {
		t.Helper()
		yml := fmt.Sprintf("rules:\n  - name: reload\n    match: /reload\n    target: %s\n", target)
		if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(v1.URL)

	specs, err := config.LoadRules(path)
	if err != nil {
		t.Fatal(err)
	}
	rules, err := config.Compile(specs, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	gw := newGateway(rules, nil)

	reloaded := make(chan error, 10)
	w := config.NewWatcher(path, func(rules []model.Rule, err error) {
		if err == nil {
			gw.UpdateTable(router.New(rules))
		}
		reloaded <- err
	}, zerolog.Nop(), config.WithDebounce(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	version := func() string {
		rr := httptest.NewRecorder()
		gw.ServeHTTP(rr, httptest.NewRequest("GET", "/reload", nil))
		return rr.Header().Get("X-Version")
	}
	if got := version(); got != "v1" {
		t.Fatalf("before reload: got %q, want v1", got)
	}

	write(v2.URL)
	select {
	case err := <-reloaded:
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	if got := version(); got != "v2" {
		t.Fatalf("after reload: got %q, want v2", got)
	}

	// a broken file keeps the running table
	if err := os.WriteFile(path, []byte("rules:\n  - match: \"^/(\"\n    target: http://x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-reloaded:
		if err == nil {
			t.Fatal("want compile error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	if got := version(); got != "v2" {
		t.Fatalf("after broken reload: got %q, want v2", got)
	}
}
