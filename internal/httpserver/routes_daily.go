// internal/httpserver/routes_daily.go
//
// HTTP routes for the daily games.
//   - GET  /api/overview                 → today's status of every kind + countdown
//   - GET  /api/games/{kind}             → resolve or resume today's game
//   - POST /api/games/{kind}/guess       → submit a candidate
//   - POST /api/games/{kind}/skip        → give up the current round
//   - GET  /api/games/{kind}/share       → share text (text/plain)
//   - GET  /api/games/{kind}/share.png   → share text as a QR code
//   - GET  /api/stats/{kind}             → played / won / streaks from the results log
//
// Each player gets one game per kind per UTC day. State lives in the session manager,
// which persists a snapshot after every transition.

package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/michaljagosz/omnimusle/internal/daily"
	"github.com/michaljagosz/omnimusle/internal/game"
	"github.com/michaljagosz/omnimusle/internal/session"
)

const qrSize = 256

// mountGames registers the per-player routes.
func (s *Server) mountGames(r chi.Router) {
	r.Get("/api/overview", s.handleOverview)
	r.Route("/api/games/{kind}", func(r chi.Router) {
		r.Get("/", s.handleGame)
		r.Post("/guess", s.handleGuess)
		r.Post("/skip", s.handleSkip)
		r.Get("/share", s.handleShare)
		r.Get("/share.png", s.handleShareQR)
	})
	r.Get("/api/stats/{kind}", s.handleStats)
}

// kindParam parses the {kind} URL parameter, writing a 404 when it is unknown.
func kindParam(w http.ResponseWriter, r *http.Request) (game.Kind, bool) {
	k, err := game.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return "", false
	}
	return k, true
}

// -----------------------------------------------------------------------------
// /api/overview

type overviewRes struct {
	Date        string                 `json:"date"`
	NextReset   string                 `json:"nextReset"`
	SecondsLeft int64                  `json:"secondsLeft"`
	Games       []session.OverviewItem `json:"games"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	now := s.deps.Now()
	items := s.deps.Games.Overview(r.Context(), playerID(r))
	_ = json.NewEncoder(w).Encode(overviewRes{
		Date:        daily.DateKey(now),
		NextReset:   daily.NextReset(now).Format(time.RFC3339),
		SecondsLeft: int64(daily.UntilReset(now).Seconds()),
		Games:       items,
	})
}

// -----------------------------------------------------------------------------
// /api/games/{kind}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	k, ok := kindParam(w, r)
	if !ok {
		return
	}
	v, err := s.deps.Games.Get(r.Context(), playerID(r), k)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// guessReq is the request payload for /guess.
type guessReq struct {
	Candidate *game.Candidate `json:"candidate"`
}

// moveRes is returned by /guess and /skip.
type moveRes struct {
	Outcome game.Outcome `json:"outcome"`
	View    session.View `json:"view"`
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	k, ok := kindParam(w, r)
	if !ok {
		return
	}
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	if req.Candidate == nil {
		http.Error(w, `{"error":"invalid_candidate"}`, http.StatusBadRequest)
		return
	}
	out, v, err := s.deps.Games.Guess(r.Context(), playerID(r), k, *req.Candidate)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(moveRes{Outcome: out, View: v})
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	k, ok := kindParam(w, r)
	if !ok {
		return
	}
	out, v, err := s.deps.Games.Skip(r.Context(), playerID(r), k)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(moveRes{Outcome: out, View: v})
}

// -----------------------------------------------------------------------------
// share

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	k, ok := kindParam(w, r)
	if !ok {
		return
	}
	text, err := s.deps.Games.Share(r.Context(), playerID(r), k)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleShareQR(w http.ResponseWriter, r *http.Request) {
	k, ok := kindParam(w, r)
	if !ok {
		return
	}
	text, err := s.deps.Games.Share(r.Context(), playerID(r), k)
	if err != nil {
		writeError(w, err)
		return
	}
	png, err := qrcode.Encode(text, qrcode.Medium, qrSize)
	if err != nil {
		log.Error().Err(err).Str("kind", string(k)).Msg("encode share qr")
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// -----------------------------------------------------------------------------
// /api/stats/{kind}

type statsRes struct {
	Kind    game.Kind      `json:"kind"`
	Stats   daily.Stats    `json:"stats"`
	History []daily.Result `json:"history"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	k, ok := kindParam(w, r)
	if !ok {
		return
	}
	if s.deps.Results == nil {
		http.Error(w, `{"error":"stats_unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	player := playerID(r)
	st, err := s.deps.Results.Stats(r.Context(), player, string(k), daily.DayIndex(s.deps.Now()))
	if err != nil {
		log.Error().Err(err).Str("kind", string(k)).Msg("load stats")
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
		return
	}
	hist, err := s.deps.Results.History(r.Context(), player, string(k), 30)
	if err != nil {
		log.Error().Err(err).Str("kind", string(k)).Msg("load history")
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
		return
	}
	if hist == nil {
		hist = []daily.Result{}
	}
	_ = json.NewEncoder(w).Encode(statsRes{Kind: k, Stats: st, History: hist})
}
