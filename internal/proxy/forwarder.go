package proxy

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	fwd "github.com/fabian4/devproxy/internal/forward"
	"github.com/fabian4/devproxy/internal/metrics"
	"github.com/fabian4/devproxy/internal/model"
)

// Forwarder relays one request to the upstream of a matched rule. It is a
// hand-rolled HTTP/1.1 reverse proxy (no httputil.ReverseProxy) so that rule
// hooks see the exact outgoing request and upstream response.
type Forwarder struct {
	Transports      fwd.Factory
	UpstreamTimeout time.Duration // 0 = none; never applied to tunnels
	Logger          zerolog.Logger
	Metrics         *metrics.Registry // optional
}

// Result describes the upstream side of a forwarded request.
type Result struct {
	Upstream string
	Status   int
	Tunnel   bool
	Err      error
}

func NewForwarder(f fwd.Factory, upstreamTimeout time.Duration, logger zerolog.Logger, m *metrics.Registry) *Forwarder {
	return &Forwarder{Transports: f, UpstreamTimeout: upstreamTimeout, Logger: logger, Metrics: m}
}

// Forward proxies r according to rule and writes the upstream answer to w.
// Upstream connection failures are answered with 502 Bad Gateway.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, rule *model.Rule) Result {
	up := UpstreamURL(rule, r.URL)
	res := Result{Upstream: up.String()}
	if rule.WebSocket && IsUpgrade(r) {
		res.Tunnel = true
		res.Status, res.Err = f.tunnel(w, r, rule, up)
		return res
	}
	res.Status, res.Err = f.roundTrip(w, r, rule, up)
	return res
}

// UpstreamURL joins the rule target with the (rewritten) request path and
// keeps the query string. The rewrite runs on the escaped path, so encoded
// reserved characters such as %2F reach the upstream unchanged.
func UpstreamURL(rule *model.Rule, in *url.URL) *url.URL {
	u := new(url.URL)
	*u = *rule.Target
	raw := joinSlash(rule.Target.EscapedPath(), rule.UpstreamPath(in.EscapedPath()))
	p, err := url.PathUnescape(raw)
	if err != nil {
		p = raw
	}
	u.Path = p
	u.RawPath = raw
	u.RawQuery = in.RawQuery
	u.Fragment = ""
	return u
}

func (f *Forwarder) outgoing(ctx context.Context, r *http.Request, rule *model.Rule, up *url.URL) (*http.Request, error) {
	hdr := cloneHeader(r.Header)
	dropHopByHop(hdr)

	out, err := http.NewRequestWithContext(ctx, r.Method, up.String(), r.Body)
	if err != nil {
		return nil, err
	}
	out.Header = hdr
	if r.Body != nil && r.Body != http.NoBody {
		out.ContentLength = r.ContentLength
	}

	// Host policy
	if rule.ChangeOrigin {
		out.Host = rule.Target.Host
	} else {
		out.Host = r.Host
	}

	for _, h := range rule.OnRequest {
		h(out, r)
	}
	return out, nil
}

func (f *Forwarder) roundTrip(w http.ResponseWriter, r *http.Request, rule *model.Rule, up *url.URL) (int, error) {
	ctx := r.Context()
	if f.UpstreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.UpstreamTimeout)
		defer cancel()
	}

	reqUp, err := f.outgoing(ctx, r, rule, up)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return http.StatusBadRequest, err
	}

	resUp, err := f.Transports.ForSecure(rule.Secure).RoundTrip(reqUp)
	if err != nil {
		f.Logger.Error().Err(err).Str("rule", rule.Name).Str("upstream", up.String()).Msg("upstream error")
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return http.StatusBadGateway, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			f.Logger.Debug().Err(err).Msg("error closing upstream body")
		}
	}(resUp.Body)

	dropHopByHop(resUp.Header)
	for _, h := range rule.OnResponse {
		h(resUp, r)
	}
	copyHeaders(w.Header(), resUp.Header)

	// Announce trailers if any
	if len(resUp.Trailer) > 0 {
		trailerKeys := make([]string, 0, len(resUp.Trailer))
		for k := range resUp.Trailer {
			trailerKeys = append(trailerKeys, k)
		}
		w.Header().Set("Trailer", strings.Join(trailerKeys, ","))
	}

	w.WriteHeader(resUp.StatusCode)
	if err := copyBody(w, resUp); err != nil {
		f.Logger.Debug().Err(err).Str("rule", rule.Name).Msg("copy upstream body")
	}

	// Copy trailer values
	for k, vv := range resUp.Trailer {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	return resUp.StatusCode, nil
}

// copyBody streams the upstream body. Responses without a known length
// (chunked, event streams) are flushed after every read.
func copyBody(w http.ResponseWriter, res *http.Response) error {
	fl, canFlush := w.(http.Flusher)
	if !canFlush || (res.ContentLength >= 0 && !isEventStream(res.Header)) {
		_, err := io.Copy(w, res.Body)
		return err
	}
	fl.Flush()
	buf := make([]byte, 32*1024)
	for {
		n, rerr := res.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			fl.Flush()
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

func isEventStream(h http.Header) bool {
	return strings.HasPrefix(h.Get("Content-Type"), "text/event-stream")
}
