// Package hooks provides the request and response header mutations that
// proxy rules attach to forwarded traffic.
package hooks

import (
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fabian4/devproxy/internal/model"
)

// ForwardedOptions configures Forwarded.
type ForwardedOptions struct {
	// Proto overrides X-Forwarded-Proto; empty derives it from the client request.
	Proto  string
	RealIP bool
}

// Forwarded sets X-Forwarded-Host to the client-facing Host, X-Forwarded-Proto
// to the client scheme, appends the client address to X-Forwarded-For and
// optionally sets X-Real-IP.
func Forwarded(opts ForwardedOptions) model.RequestHook {
	return func(out, in *http.Request) {
		out.Header.Set("X-Forwarded-Host", in.Host)
		proto := opts.Proto
		if proto == "" {
			proto = scheme(in)
		}
		out.Header.Set("X-Forwarded-Proto", proto)

		ip := clientIP(in.RemoteAddr)
		if ip == "" {
			return
		}
		const key = "X-Forwarded-For"
		if prior := out.Header.Get(key); prior != "" {
			out.Header.Set(key, prior+", "+ip)
		} else {
			out.Header.Set(key, ip)
		}
		if opts.RealIP {
			out.Header.Set("X-Real-IP", ip)
		}
	}
}

// RewriteLocation replaces a leading from in the Location header with to, so
// redirects issued by the upstream point back at the public proxy path. A
// Location naming from without its trailing slash (optionally followed by a
// query) maps to to as well.
func RewriteLocation(from, to string) model.ResponseHook {
	bare := strings.TrimSuffix(from, "/")
	return func(res *http.Response, _ *http.Request) {
		loc := res.Header.Get("Location")
		switch {
		case loc == "":
		case strings.HasPrefix(loc, from):
			res.Header.Set("Location", to+strings.TrimPrefix(loc, from))
		case loc == bare:
			res.Header.Set("Location", to)
		case strings.HasPrefix(loc, bare+"?"), strings.HasPrefix(loc, bare+"#"):
			res.Header.Set("Location", to+loc[len(bare):])
		}
	}
}

// SecurityHeaders drops Content-Security-Policy and/or forces
// X-Content-Type-Options: nosniff on proxied responses.
func SecurityHeaders(stripCSP, nosniff bool) model.ResponseHook {
	return func(res *http.Response, _ *http.Request) {
		if stripCSP {
			res.Header.Del("Content-Security-Policy")
			res.Header.Del("Content-Security-Policy-Report-Only")
		}
		if nosniff {
			res.Header.Set("X-Content-Type-Options", "nosniff")
		}
	}
}

// LogRequest logs every request path forwarded by the rule at debug level.
func LogRequest(logger zerolog.Logger, rule string) model.RequestHook {
	return func(out, in *http.Request) {
		logger.Debug().
			Str("rule", rule).
			Str("path", in.URL.RequestURI()).
			Str("upstream", out.URL.String()).
			Msg("proxying")
	}
}

// LogContentType logs the request path and the upstream Content-Type.
func LogContentType(logger zerolog.Logger, rule string) model.ResponseHook {
	return func(res *http.Response, in *http.Request) {
		logger.Debug().
			Str("rule", rule).
			Str("path", in.URL.RequestURI()).
			Int("status", res.StatusCode).
			Str("content_type", res.Header.Get("Content-Type")).
			Msg("proxied")
	}
}

func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func clientIP(remoteAddr string) string {
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return ""
	}
	return ip
}
