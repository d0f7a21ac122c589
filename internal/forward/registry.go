package forward

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Transport names.
const (
	Secure   = "secure"   // verifies upstream certificates
	Insecure = "insecure" // skips upstream certificate verification
)

// Options tunes the default transports.
type Options struct {
	// Dial/keepalive
	DialTimeout   time.Duration
	DialKeepAlive time.Duration

	// Pool sizing
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// Timeouts
	TLSHandshakeTimeout   time.Duration
	ExpectContinueTimeout time.Duration
	ResponseHeaderTimeout time.Duration // optional, 0 to disable

	RootCAs *x509.CertPool
}

// DefaultOptions suits a local development proxy talking to a handful of upstreams.
func DefaultOptions() Options {
	return Options{
		DialTimeout:           5 * time.Second,
		DialKeepAlive:         60 * time.Second,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 0,
		RootCAs:               nil,
	}
}

// Factory returns upstream transports and raw connections.
type Factory interface {
	ForSecure(secure bool) http.RoundTripper
	Dial(ctx context.Context, target *url.URL, secure bool) (net.Conn, error)
	CloseIdle()
}

// Registry holds the secure and insecure transports. The set is fixed at
// construction, so it is safe for concurrent use without locking.
type Registry struct {
	store  map[string]*http.Transport
	opts   Options
	dialer *net.Dialer
}

var _ Factory = (*Registry)(nil)

// NewDefaultRegistry builds a registry with DefaultOptions.
func NewDefaultRegistry() *Registry { return NewRegistry(DefaultOptions()) }

// NewRegistry builds a registry with given options and pre-registers the
// secure and insecure transports.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		store: make(map[string]*http.Transport, 2),
		opts:  opts,
		dialer: &net.Dialer{
			Timeout:   opts.DialTimeout,
			KeepAlive: opts.DialKeepAlive,
		},
	}
	r.store[Secure] = r.newTransport(false)
	r.store[Insecure] = r.newTransport(true)
	return r
}

// ForSecure picks the transport matching a rule's secure flag.
func (r *Registry) ForSecure(secure bool) http.RoundTripper {
	if secure {
		return r.store[Secure]
	}
	return r.store[Insecure]
}

// CloseIdle calls CloseIdleConnections on both transports.
func (r *Registry) CloseIdle() {
	for _, t := range r.store {
		t.CloseIdleConnections()
	}
}

// Dial opens a raw connection to target, performing the TLS handshake for
// https targets. Used for upgraded (tunnelled) requests.
func (r *Registry) Dial(ctx context.Context, target *url.URL, secure bool) (net.Conn, error) {
	addr := hostPort(target)
	switch target.Scheme {
	case "http", "ws":
		return r.dialer.DialContext(ctx, "tcp", addr)
	case "https", "wss":
		d := &tls.Dialer{NetDialer: r.dialer, Config: r.tlsConfig(!secure, target.Hostname())}
		return d.DialContext(ctx, "tcp", addr)
	default:
		return nil, fmt.Errorf("dial %s: unsupported scheme %q", target.Host, target.Scheme)
	}
}

// --- builders ---

func (r *Registry) tlsConfig(skipVerify bool, serverName string) *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: skipVerify,
		RootCAs:            r.opts.RootCAs,
		ServerName:         serverName,
		NextProtos:         []string{"http/1.1"},
	}
}

func (r *Registry) newTransport(skipVerify bool) *http.Transport {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           r.dialer.DialContext,
		ForceAttemptHTTP2:     false,
		TLSClientConfig:       r.tlsConfig(skipVerify, ""),
		MaxIdleConns:          r.opts.MaxIdleConns,
		MaxIdleConnsPerHost:   r.opts.MaxIdleConnsPerHost,
		IdleConnTimeout:       r.opts.IdleConnTimeout,
		TLSHandshakeTimeout:   r.opts.TLSHandshakeTimeout,
		ExpectContinueTimeout: r.opts.ExpectContinueTimeout,
	}
	if r.opts.ResponseHeaderTimeout > 0 {
		tr.ResponseHeaderTimeout = r.opts.ResponseHeaderTimeout
	}
	return tr
}

func hostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	switch u.Scheme {
	case "https", "wss":
		return net.JoinHostPort(u.Hostname(), "443")
	default:
		return net.JoinHostPort(u.Hostname(), "80")
	}
}
