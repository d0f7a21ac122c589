package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/fabian4/devproxy/internal/model"
)

var errNoHijack = errors.New("response writer does not support hijacking")

// tunnel performs the upgrade handshake with the upstream and, on
// 101 Switching Protocols, splices the client and upstream connections until
// either side closes. A non-101 answer is relayed as a normal response.
func (f *Forwarder) tunnel(w http.ResponseWriter, r *http.Request, rule *model.Rule, up *url.URL) (int, error) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return http.StatusInternalServerError, errNoHijack
	}
	upType := upgradeType(r.Header)

	reqUp, err := f.outgoing(r.Context(), r, rule, up)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return http.StatusBadRequest, err
	}
	reqUp.Header.Set("Connection", "Upgrade")
	reqUp.Header.Set("Upgrade", upType)

	upstream, err := f.Transports.Dial(r.Context(), up, rule.Secure)
	if err != nil {
		f.Logger.Error().Err(err).Str("rule", rule.Name).Str("upstream", up.String()).Msg("tunnel: dial upstream")
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return http.StatusBadGateway, err
	}
	defer func() { _ = upstream.Close() }()

	if err := reqUp.Write(upstream); err != nil {
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return http.StatusBadGateway, fmt.Errorf("tunnel: write handshake: %w", err)
	}
	upReader := bufio.NewReader(upstream)
	resUp, err := http.ReadResponse(upReader, reqUp)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return http.StatusBadGateway, fmt.Errorf("tunnel: read handshake: %w", err)
	}
	for _, h := range rule.OnResponse {
		h(resUp, r)
	}

	if resUp.StatusCode != http.StatusSwitchingProtocols {
		defer func() { _ = resUp.Body.Close() }()
		dropHopByHop(resUp.Header)
		copyHeaders(w.Header(), resUp.Header)
		w.WriteHeader(resUp.StatusCode)
		_, _ = io.Copy(w, resUp.Body)
		return resUp.StatusCode, nil
	}

	client, clientBuf, err := hj.Hijack()
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("tunnel: hijack: %w", err)
	}
	defer func() { _ = client.Close() }()

	if _, err := fmt.Fprintf(clientBuf, "HTTP/1.1 %s\r\n", resUp.Status); err != nil {
		return http.StatusSwitchingProtocols, err
	}
	if err := resUp.Header.Write(clientBuf); err != nil {
		return http.StatusSwitchingProtocols, err
	}
	if _, err := clientBuf.WriteString("\r\n"); err != nil {
		return http.StatusSwitchingProtocols, err
	}
	if err := clientBuf.Flush(); err != nil {
		return http.StatusSwitchingProtocols, err
	}

	if f.Metrics != nil {
		f.Metrics.IncActiveTunnels(rule.Name)
		defer f.Metrics.DecActiveTunnels(rule.Name)
	}
	f.Logger.Debug().Str("rule", rule.Name).Str("upstream", up.String()).Str("protocol", upType).Msg("tunnel open")
	splice(client, clientBuf.Reader, upstream, upReader)
	f.Logger.Debug().Str("rule", rule.Name).Msg("tunnel closed")
	return http.StatusSwitchingProtocols, nil
}

type closeWriter interface {
	CloseWrite() error
}

// splice copies both directions; src readers may hold bytes already
// buffered off the connections.
func splice(client net.Conn, clientSrc io.Reader, upstream net.Conn, upstreamSrc io.Reader) {
	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(upstream, clientSrc)
		if c, ok := upstream.(closeWriter); ok {
			_ = c.CloseWrite()
		}
		close(done)
	}()

	_, _ = io.Copy(client, upstreamSrc)
	if c, ok := client.(closeWriter); ok {
		_ = c.CloseWrite()
	}
	<-done
}
