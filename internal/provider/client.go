// internal/provider/client.go
//
// Shared HTTP plumbing for the metadata providers (Deezer, TMDB).
// Responsibilities:
//   - Rate limit outbound calls (golang.org/x/time/rate).
//   - Decode JSON bodies; map transport, status and decode failures to game.ErrTransientFetch.
//   - Count requests per provider and outcome.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/michaljagosz/omnimusle/internal/game"
	"github.com/michaljagosz/omnimusle/internal/metrics"
)

const maxBody = 2 << 20

type client struct {
	name    string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter // nil = unlimited
}

func newClient(name, baseURL string, hc *http.Client, lim *rate.Limiter) client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return client{name: name, baseURL: strings.TrimRight(baseURL, "/"), http: hc, limiter: lim}
}

// NewLimiter allows rps requests per second with a burst of the same size.
// rps <= 0 disables limiting.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// getJSON fetches baseURL+path?q and decodes the body into out.
func (c client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %s rate limit: %v", game.ErrTransientFetch, c.name, err)
		}
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(c.name, "error").Inc()
		return fmt.Errorf("%w: %s: %v", game.ErrTransientFetch, c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequests.WithLabelValues(c.name, "status").Inc()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return fmt.Errorf("%w: %s: status %d", game.ErrTransientFetch, c.name, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(out); err != nil {
		metrics.UpstreamRequests.WithLabelValues(c.name, "decode").Inc()
		return fmt.Errorf("%w: %s: decode: %v", game.ErrTransientFetch, c.name, err)
	}
	metrics.UpstreamRequests.WithLabelValues(c.name, "ok").Inc()
	return nil
}
