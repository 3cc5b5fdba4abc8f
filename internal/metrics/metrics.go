// internal/metrics/metrics.go
//
// Prometheus collectors for the game server.
// Collectors are registered once via Init and exposed by the HTTP server at /metrics.

package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Guesses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnimusle_guesses_total",
			Help: "Submissions applied to a game, by kind and verdict (skip for skips)",
		},
		[]string{"kind", "verdict"},
	)

	GamesFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnimusle_games_finished_total",
			Help: "Games reaching a terminal state, by kind and status",
		},
		[]string{"kind", "status"},
	)

	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omnimusle_upstream_requests_total",
			Help: "Requests sent to metadata providers",
		},
		[]string{"provider", "outcome"},
	)

	StorageWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omnimusle_storage_write_failures_total",
			Help: "Snapshot writes that failed and were dropped",
		},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "omnimusle_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "route", "status"},
	)
)

var once sync.Once

// Init registers all collectors with the default registry. Safe to call repeatedly.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(Guesses, GamesFinished, UpstreamRequests, StorageWriteFailures, RequestDuration)
	})
}

// Middleware observes request durations labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}
