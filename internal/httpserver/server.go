// internal/httpserver/server.go
//
// HTTP server wiring for the omnimusle backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, logging, metrics).
//   - Public endpoints: "/", "/health", "/metrics".
//   - Game endpoints under /api/games/{kind} (see routes_daily.go).
//   - Search proxy, per-kind stats and the audio proxy.
//   - Websocket channel at /ws/{kind} (see ws.go).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so the player cookie works).
//   - Every caller is a player: the first request gets a signed anonymous cookie.
//   - The websocket and the audio proxy sit outside the request timeout.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/michaljagosz/omnimusle/internal/daily"
	"github.com/michaljagosz/omnimusle/internal/game"
	"github.com/michaljagosz/omnimusle/internal/metrics"
	"github.com/michaljagosz/omnimusle/internal/playback"
	"github.com/michaljagosz/omnimusle/internal/search"
	"github.com/michaljagosz/omnimusle/internal/session"
)

const (
	defaultOrigin   = "http://localhost:5173"
	requestTimeout  = 10 * time.Second
	defaultDebounce = 400 * time.Millisecond
)

// Deps are the collaborators and settings of a Server.
type Deps struct {
	Games   *session.Manager
	Search  *search.Service
	Results *daily.Store // optional; /api/stats answers 503 without it

	JWTSecret      string
	CookieName     string
	SecureCookies  bool
	ClientOrigin   string
	ProxyHosts     []string // host suffixes the audio proxy may fetch from
	ProxyClient    *http.Client
	SearchDebounce time.Duration
	Now            func() time.Time
}

// Server bundles the router and its dependencies.
type Server struct {
	r    *chi.Mux
	deps Deps
}

// New constructs a Server, installs middleware, and registers routes.
func New(deps Deps) *Server {
	if deps.ClientOrigin == "" {
		deps.ClientOrigin = defaultOrigin
	}
	if deps.CookieName == "" {
		deps.CookieName = defaultCookieName
	}
	if deps.JWTSecret == "" {
		deps.JWTSecret = devSecret
	}
	if deps.SearchDebounce <= 0 {
		deps.SearchDebounce = defaultDebounce
	}
	if len(deps.ProxyHosts) == 0 {
		deps.ProxyHosts = DefaultProxyHosts
	}
	if deps.ProxyClient == nil {
		deps.ProxyClient = &http.Client{Timeout: 30 * time.Second}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{r: chi.NewRouter(), deps: deps}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(requestLogger)
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(metrics.Middleware)
	s.r.Use(s.cors)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout)) // bound handler time
		r.Use(jsonContentType)               // default JSON responses

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"omnimusle","endpoints":["/health","/metrics","/api/overview","/api/games/{kind}","/api/search","/api/stats/{kind}","/api/audio-proxy","/ws/{kind}"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})
		r.Get("/api/search", s.handleSearch)

		// Game endpoints: every request is tied to the anonymous player cookie.
		s.mountGames(r.With(s.withPlayer))

		// JSON 404 for easier debugging
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
		})
	})

	s.r.Handle("/metrics", promhttp.Handler())
	s.r.Get("/api/audio-proxy", s.handleAudioProxy)
	s.r.With(s.withPlayer).Get("/ws/{kind}", s.handleWS)

	return s
}

// Start serves HTTP on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.deps.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger writes one zerolog line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("reqId", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Msg("http")
	})
}

// ------------------------------ search -------------------------------------

// handleSearch proxies the guess box search. Unknown types are a 400; upstream trouble
// yields an empty list.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	typ := r.URL.Query().Get("type")
	if typ == "" {
		typ = "track"
	}
	res, err := s.deps.Search.Search(r.Context(), q, typ)
	if errors.Is(err, game.ErrUnknownKind) {
		http.Error(w, `{"error":"unknown_type"}`, http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("type", typ).Msg("search")
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"query": q, "type": typ, "candidates": res})
}

// ------------------------------- errors ------------------------------------

// errorCode maps domain errors to an HTTP status and a stable error code.
func errorCode(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrUnknownKind):
		return http.StatusNotFound, "unknown_kind"
	case errors.Is(err, game.ErrAlreadyGuessed):
		return http.StatusConflict, "already_guessed"
	case errors.Is(err, game.ErrGameOver):
		return http.StatusConflict, "game_over"
	case errors.Is(err, session.ErrNotFinished):
		return http.StatusConflict, "not_finished"
	case errors.Is(err, game.ErrInvalidCandidate):
		return http.StatusBadRequest, "invalid_candidate"
	case errors.Is(err, playback.ErrNoMedia):
		return http.StatusBadRequest, "no_media"
	case errors.Is(err, game.ErrTransientFetch),
		errors.Is(err, game.ErrMalformedPuzzle),
		errors.Is(err, game.ErrNotReady):
		return http.StatusServiceUnavailable, "puzzle_unavailable"
	}
	return http.StatusInternalServerError, "server_error"
}

func writeError(w http.ResponseWriter, err error) {
	status, code := errorCode(err)
	if status >= http.StatusInternalServerError {
		log.Warn().Err(err).Str("code", code).Msg("request failed")
	}
	http.Error(w, `{"error":"`+code+`"}`, status)
}
