// internal/httpserver/proxy.go
//
// GET /api/audio-proxy?url=<preview url>
// Streams a provider audio preview so browsers can mix mashup slots through Web Audio
// (which needs CORS-enabled sources). Only https URLs on whitelisted provider hosts are
// fetched; previews are content-addressed, so responses are cached forever.

package httpserver

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultProxyHosts are the Deezer preview CDNs.
var DefaultProxyHosts = []string{"dzcdn.net", "deezer.com"}

func (s *Server) handleAudioProxy(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	u, err := url.Parse(raw)
	if raw == "" || err != nil || u.Scheme != "https" || !s.allowedHost(u.Hostname()) {
		http.Error(w, `{"error":"invalid_url"}`, http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, u.String(), nil)
	if err != nil {
		http.Error(w, `{"error":"invalid_url"}`, http.StatusBadRequest)
		return
	}
	res, err := s.deps.ProxyClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("host", u.Hostname()).Msg("audio proxy fetch")
		http.Error(w, `{"error":"upstream_unavailable"}`, http.StatusBadGateway)
		return
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		http.Error(w, `{"error":"upstream_status"}`, http.StatusBadGateway)
		return
	}

	h := w.Header()
	h.Del("Access-Control-Allow-Credentials")
	h.Del("Vary")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Cache-Control", "public, max-age=31536000, immutable")
	ct := res.Header.Get("Content-Type")
	if ct == "" {
		ct = "audio/mpeg"
	}
	h.Set("Content-Type", ct)
	if cl := res.Header.Get("Content-Length"); cl != "" {
		h.Set("Content-Length", cl)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, res.Body); err != nil {
		log.Debug().Err(err).Msg("audio proxy copy")
	}
}

// allowedHost reports whether host is, or is a subdomain of, a whitelisted host.
func (s *Server) allowedHost(host string) bool {
	host = strings.ToLower(host)
	for _, h := range s.deps.ProxyHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
