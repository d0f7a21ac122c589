package handler

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fabian4/devproxy/internal/metrics"
	"github.com/fabian4/devproxy/internal/proxy"
	"github.com/fabian4/devproxy/internal/ratelimit"
	"github.com/fabian4/devproxy/internal/router"
)

const requestIDHeader = "X-Request-Id"

// Gateway consults the rule table before anything else: a matched request is
// forwarded upstream, an unmatched one is passed to Fallback untouched.
type Gateway struct {
	tableMu sync.RWMutex
	table   *router.Table

	Forwarder *proxy.Forwarder
	Fallback  http.Handler
	Limiter   *ratelimit.Limiter // optional
	Metrics   *metrics.Registry  // optional
	AccessLog *zerolog.Logger    // optional
}

func NewGateway(t *router.Table, f *proxy.Forwarder, fallback http.Handler) *Gateway {
	if fallback == nil {
		fallback = http.NotFoundHandler()
	}
	return &Gateway{table: t, Forwarder: f, Fallback: fallback}
}

// Table returns the table requests are currently matched against.
func (g *Gateway) Table() *router.Table {
	g.tableMu.RLock()
	defer g.tableMu.RUnlock()
	return g.table
}

// UpdateTable swaps in a new table. Requests already being served keep the
// table they were matched against.
func (g *Gateway) UpdateTable(t *router.Table) {
	g.tableMu.Lock()
	g.table = t
	g.tableMu.Unlock()
	if g.Limiter != nil {
		g.Limiter.Reset()
	}
}

var _ http.Handler = (*Gateway)(nil)

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rule := g.Table().Match(r.URL.Path, proxy.IsUpgrade(r))
	if rule == nil {
		if g.Metrics == nil && g.AccessLog == nil {
			g.Fallback.ServeHTTP(w, r)
			return
		}
		lw := &loggingResponseWriter{ResponseWriter: w}
		start := time.Now()
		g.Fallback.ServeHTTP(lw, r)
		g.record(r, lw, start, "", proxy.Result{})
		return
	}

	start := time.Now()
	lw := &loggingResponseWriter{ResponseWriter: w}
	var result proxy.Result

	if g.Limiter != nil && !g.Limiter.Allow(rule.Name, rule.RateLimit) {
		http.Error(lw, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
	} else {
		result = g.Forwarder.Forward(lw, r, rule)
		if g.Metrics != nil && !result.Tunnel {
			g.Metrics.ObserveLatency(rule.Name, time.Since(start))
		}
	}
	g.record(r, lw, start, rule.Name, result)
}

func (g *Gateway) record(r *http.Request, lw *loggingResponseWriter, start time.Time, rule string, result proxy.Result) {
	status := lw.statusCode
	if status == 0 {
		status = http.StatusOK
	}
	if g.Metrics != nil {
		g.Metrics.IncRequest(rule, r.Method, strconv.Itoa(status))
	}
	if g.AccessLog == nil {
		return
	}

	id := r.Header.Get(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	ev := g.AccessLog.Info().
		Str("request_id", id).
		Str("method", r.Method).
		Str("path", r.URL.RequestURI()).
		Str("protocol", r.Proto).
		Int("status", status).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Str("remote_ip", r.RemoteAddr).
		Str("user_agent", r.UserAgent()).
		Int64("bytes_written", lw.bytes)
	if rule != "" {
		ev = ev.Str("rule", rule).Str("upstream", result.Upstream)
	}
	if result.Tunnel {
		ev = ev.Bool("tunnel", true)
	}
	if result.Err != nil {
		ev = ev.AnErr("upstream_error", result.Err)
	}
	ev.Msg("access")
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int64
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	if w.statusCode == 0 {
		w.statusCode = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingResponseWriter) Write(b []byte) (int, error) {
	if w.statusCode == 0 {
		w.statusCode = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

func (w *loggingResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets upgraded connections through; the status is recorded as 101.
func (w *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	conn, rw, err := hj.Hijack()
	if err == nil && w.statusCode == 0 {
		w.statusCode = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

func (w *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
