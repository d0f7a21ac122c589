package server

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/rs/zerolog"
)

// NewDevProxyHandler relays every request to a running front-end dev server,
// keeping HMR and live reload working behind the proxy.
func NewDevProxyHandler(target string, logger zerolog.Logger) (http.Handler, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("fallback url: must be http(s) URL with host, got %q", target)
	}
	rp := httputil.NewSingleHostReverseProxy(u)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error().Err(err).Str("path", r.URL.RequestURI()).Str("upstream", target).Msg("dev server unreachable")
		w.WriteHeader(http.StatusBadGateway)
	}
	return rp, nil
}
