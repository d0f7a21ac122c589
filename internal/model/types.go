package model

import (
	"net/http"
	"net/url"
)

// Matcher decides whether a request path selects a rule.
type Matcher interface {
	Match(path string) bool
	// Pattern returns the declared pattern, e.g. "/api" or "^/(webroot|res)".
	Pattern() string
}

// RewriteFunc maps the original request path to the path sent upstream.
type RewriteFunc func(path string) string

// RequestHook mutates the outgoing request. in is the client request as received.
type RequestHook func(out, in *http.Request)

// ResponseHook mutates the upstream response before it is copied to the client.
type ResponseHook func(res *http.Response, in *http.Request)

// Rule is one compiled entry of the proxy table.
type Rule struct {
	Name         string
	Matcher      Matcher
	Target       *url.URL
	ChangeOrigin bool // outgoing Host = Target.Host
	Secure       bool // false => skip upstream TLS verification
	WebSocket    bool // rule also applies to upgrade requests
	Rewrite      RewriteFunc
	OnRequest    []RequestHook
	OnResponse   []ResponseHook
	RateLimit    *RateLimit // optional
}

type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
}

// UpstreamPath returns the path forwarded upstream for the given client path.
func (r *Rule) UpstreamPath(path string) string {
	if r.Rewrite == nil {
		return path
	}
	return r.Rewrite(path)
}
