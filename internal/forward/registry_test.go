package forward

import (
	"context"
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.DialTimeout != 5*time.Second {
		t.Errorf("DialTimeout: got %v, want %v", opts.DialTimeout, 5*time.Second)
	}
	if opts.DialKeepAlive != 60*time.Second {
		t.Errorf("DialKeepAlive: got %v, want %v", opts.DialKeepAlive, 60*time.Second)
	}
	if opts.IdleConnTimeout != 90*time.Second {
		t.Errorf("IdleConnTimeout: got %v, want %v", opts.IdleConnTimeout, 90*time.Second)
	}
	if opts.ResponseHeaderTimeout != 0 {
		t.Errorf("ResponseHeaderTimeout: got %v, want 0", opts.ResponseHeaderTimeout)
	}
}

func TestNewDefaultRegistry(t *testing.T) {
	reg := NewDefaultRegistry()

	if _, ok := reg.store[Secure]; !ok {
		t.Error("secure transport not pre-registered")
	}
	if _, ok := reg.store[Insecure]; !ok {
		t.Error("insecure transport not pre-registered")
	}
}

func TestRegistry_ForSecure(t *testing.T) {
	reg := NewDefaultRegistry()

	sec, ok := reg.ForSecure(true).(*http.Transport)
	if !ok {
		t.Fatal("expected *http.Transport for secure")
	}
	if sec.TLSClientConfig.InsecureSkipVerify {
		t.Error("secure transport must verify certificates")
	}

	ins, ok := reg.ForSecure(false).(*http.Transport)
	if !ok {
		t.Fatal("expected *http.Transport for insecure")
	}
	if !ins.TLSClientConfig.InsecureSkipVerify {
		t.Error("insecure transport must skip verification")
	}
	if ins.ForceAttemptHTTP2 {
		t.Error("transports are HTTP/1.1 only")
	}
}

// Both transports stay distinct and stable across calls.
func TestRegistry_ForSecureStable(t *testing.T) {
	reg := NewDefaultRegistry()
	if reg.ForSecure(true) != reg.ForSecure(true) {
		t.Error("secure transport changed between calls")
	}
	if reg.ForSecure(true) == reg.ForSecure(false) {
		t.Error("secure and insecure share a transport")
	}
	reg.CloseIdle()
}

func TestRegistry_WithRootCAsAndHeaderTimeout(t *testing.T) {
	pool := x509.NewCertPool()
	opts := DefaultOptions()
	opts.RootCAs = pool
	opts.ResponseHeaderTimeout = 30 * time.Second
	reg := NewRegistry(opts)

	tr := reg.ForSecure(true).(*http.Transport)
	if tr.TLSClientConfig.RootCAs != pool {
		t.Error("RootCAs not applied")
	}
	if tr.ResponseHeaderTimeout != 30*time.Second {
		t.Errorf("ResponseHeaderTimeout: got %v, want 30s", tr.ResponseHeaderTimeout)
	}
}

func TestRegistry_DialTLSInsecure(t *testing.T) {
	up := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer up.Close()
	u, _ := url.Parse(up.URL)

	reg := NewDefaultRegistry()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := reg.Dial(ctx, u, false)
	if err != nil {
		t.Fatalf("insecure dial: %v", err)
	}
	_ = conn.Close()

	if _, err := reg.Dial(ctx, u, true); err == nil {
		t.Fatal("secure dial to self-signed upstream should fail")
	}
}

func TestRegistry_DialUnsupportedScheme(t *testing.T) {
	reg := NewDefaultRegistry()
	u, _ := url.Parse("ftp://example.com")
	if _, err := reg.Dial(context.Background(), u, true); err == nil {
		t.Fatal("want error for unsupported scheme")
	}
}

func TestHostPort(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8075/": "localhost:8075",
		"http://example.com":     "example.com:80",
		"https://example.com/x":  "example.com:443",
		"wss://[::1]":            "[::1]:443",
	}
	for raw, want := range cases {
		u, _ := url.Parse(raw)
		if got := hostPort(u); got != want {
			t.Errorf("hostPort(%q): got %q, want %q", raw, got, want)
		}
	}
}
