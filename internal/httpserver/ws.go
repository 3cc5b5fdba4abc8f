// internal/httpserver/ws.go
//
// GET /ws/{kind}: live channel for one of the player's games.
// Server → client envelopes:
//   - state    : the game view, sent on connect and after every transition
//   - results  : debounced search results (stale queries are never delivered)
//   - playback : play | fade | stop | progress commands for the client's audio/video
//   - error    : a stable error code, same vocabulary as the REST API
// Client → server envelopes: search {query}, guess {candidate}, skip, play, stop.
//
// Notes:
//   - One writer goroutine owns the socket; everyone else queues through push.
//   - Playback timing runs here; the client only executes the commands.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/michaljagosz/omnimusle/internal/game"
	"github.com/michaljagosz/omnimusle/internal/playback"
	"github.com/michaljagosz/omnimusle/internal/search"
	"github.com/michaljagosz/omnimusle/internal/session"
)

const (
	wsPingEvery  = 25 * time.Second
	wsWriteWait  = 10 * time.Second
	wsSendBuffer = 64
)

// envelope is the single wire shape in both directions.
type envelope struct {
	Type      string          `json:"type"`
	Query     string          `json:"query,omitempty"`
	Candidate *game.Candidate `json:"candidate,omitempty"`
	View      *session.View   `json:"view,omitempty"`
	Results   *search.Result  `json:"results,omitempty"`
	Playback  *playbackMsg    `json:"playback,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type playbackMsg struct {
	Action     string  `json:"action"` // play | fade | stop | progress
	Ref        string  `json:"ref,omitempty"`
	StartMs    int64   `json:"startMs,omitempty"`
	PositionMs int64   `json:"positionMs,omitempty"`
	DurationMs int64   `json:"durationMs,omitempty"`
	Volume     float64 `json:"volume,omitempty"`
	From       float64 `json:"from,omitempty"`
	To         float64 `json:"to,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	origin := s.deps.ClientOrigin
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || o == origin
		},
	}
}

// wsConn serializes writes to one socket.
type wsConn struct {
	ws        *websocket.Conn
	send      chan envelope
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws, send: make(chan envelope, wsSendBuffer), done: make(chan struct{})}
}

// push queues env; it drops the message when the client is not keeping up.
func (c *wsConn) push(env envelope) {
	select {
	case c.send <- env:
	case <-c.done:
	default:
		log.Debug().Str("type", env.Type).Msg("ws send buffer full, dropped")
	}
}

func (c *wsConn) pushError(err error) {
	_, code := errorCode(err)
	c.push(envelope{Type: "error", Error: code})
}

func (c *wsConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case env := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.ws.WriteJSON(env); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// remotePlayer is a playback.Player whose output device is the client. The position is
// derived from the wall clock since the last Play.
type remotePlayer struct {
	conn *wsConn

	mu      sync.Mutex
	start   time.Duration
	began   time.Time
	playing bool
}

func (p *remotePlayer) Play(ref string, start time.Duration, volume float64) error {
	p.mu.Lock()
	p.start, p.began, p.playing = start, time.Now(), true
	p.mu.Unlock()
	p.conn.push(envelope{Type: "playback", Playback: &playbackMsg{
		Action: "play", Ref: ref, StartMs: start.Milliseconds(), Volume: volume,
	}})
	return nil
}

func (p *remotePlayer) Fade(from, to float64, d time.Duration) {
	p.conn.push(envelope{Type: "playback", Playback: &playbackMsg{
		Action: "fade", From: from, To: to, DurationMs: d.Milliseconds(),
	}})
}

func (p *remotePlayer) Stop() {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
	p.conn.push(envelope{Type: "playback", Playback: &playbackMsg{Action: "stop"}})
}

func (p *remotePlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return p.start
	}
	return p.start + time.Since(p.began)
}

// handleWS upgrades the connection and runs the reader loop until the client leaves.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	k, ok := kindParam(w, r)
	if !ok {
		return
	}
	player := playerID(r)

	// a freshly issued player cookie has to ride on the upgrade response
	hdr := http.Header{}
	if c := w.Header().Values("Set-Cookie"); len(c) > 0 {
		hdr["Set-Cookie"] = c
	}
	ws, err := s.upgrader().Upgrade(w, r, hdr)
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := newWSConn(ws)
	go c.writeLoop()
	defer c.close()

	events, unsubscribe := s.deps.Games.Subscribe(player, k)
	defer unsubscribe()
	go func() {
		for ev := range events {
			v := ev.View
			c.push(envelope{Type: "state", View: &v})
		}
	}()

	pl := playback.NewSession(&remotePlayer{conn: c}, playback.Options{
		OnEvent: func(e playback.Event) {
			if e.Type != playback.EventProgress {
				return
			}
			c.push(envelope{Type: "playback", Playback: &playbackMsg{
				Action: "progress", PositionMs: e.Position.Milliseconds(), DurationMs: e.Duration.Milliseconds(),
			}})
		},
	})
	defer pl.Stop()

	deb := search.NewDebouncer(s.deps.Search, game.Kinds[k].SearchType, s.deps.SearchDebounce, func(res search.Result) {
		c.push(envelope{Type: "results", Results: &res})
	})
	defer deb.Stop()

	if v, err := s.deps.Games.Get(ctx, player, k); err != nil {
		c.pushError(err)
	} else {
		c.push(envelope{Type: "state", View: &v})
	}

	var clip playback.Clip
	// replay follows a move: a new round extends the clip, a solved mashup slot mutes
	replay := func() {
		if !pl.Playing() {
			return
		}
		next, err := s.deps.Games.Clip(ctx, player, k)
		if err != nil {
			return
		}
		if slices.Equal(next.Refs, clip.Refs) {
			pl.RoundChanged(next)
		} else if err := pl.Start(ctx, next); err != nil {
			c.pushError(err)
		}
		clip = next
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.push(envelope{Type: "error", Error: "bad_json"})
			continue
		}

		switch env.Type {
		case "search":
			deb.Submit(ctx, env.Query)

		case "guess":
			if env.Candidate == nil {
				c.push(envelope{Type: "error", Error: "invalid_candidate"})
				continue
			}
			if _, _, err := s.deps.Games.Guess(ctx, player, k, *env.Candidate); err != nil {
				c.pushError(err)
				continue
			}
			replay()

		case "skip":
			if _, _, err := s.deps.Games.Skip(ctx, player, k); err != nil {
				c.pushError(err)
				continue
			}
			replay()

		case "play":
			next, err := s.deps.Games.Clip(ctx, player, k)
			if err != nil {
				c.pushError(err)
				continue
			}
			if err := pl.Start(ctx, next); err != nil {
				c.pushError(err)
				continue
			}
			clip = next

		case "stop":
			pl.Stop()

		default:
			c.push(envelope{Type: "error", Error: "unknown_type"})
		}
	}
}
