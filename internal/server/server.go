// Package server builds the handler that receives requests no proxy rule
// matched.
package server

import (
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/fabian4/devproxy/internal/metrics"
)

const (
	HealthPath  = "/__devproxy/healthz"
	MetricsPath = "/__devproxy/metrics"
)

type Options struct {
	PublicPath  string
	OutDir      string
	FallbackURL string            // dev server; empty serves OutDir
	Metrics     *metrics.Registry // optional
	Logger      zerolog.Logger
}

// NewDefaultHandler serves the diagnostics endpoints and hands everything
// else to the dev server, or to the built app under the public base path.
func NewDefaultHandler(o Options) (http.Handler, error) {
	var app http.Handler
	if o.FallbackURL != "" {
		h, err := NewDevProxyHandler(o.FallbackURL, o.Logger)
		if err != nil {
			return nil, err
		}
		app = h
	} else {
		app = NewBasePathHandler(o.PublicPath, NewDirSPAHandler(o.OutDir))
	}

	var metricsHandler http.Handler
	if o.Metrics != nil {
		metricsHandler = o.Metrics.Handler()
	}
	// Exact path checks only: a ServeMux would redirect paths such as
	// "/a//b" instead of passing them on untouched.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == HealthPath:
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = io.WriteString(w, "ok")
		case r.URL.Path == MetricsPath && metricsHandler != nil:
			metricsHandler.ServeHTTP(w, r)
		default:
			app.ServeHTTP(w, r)
		}
	}), nil
}
