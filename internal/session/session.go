// internal/session/session.go
//
// Per-player game lifecycle.
// Responsibilities:
//   - Keep one game.Machine per (player, kind) for the current UTC day.
//   - Resolve the day's puzzle and resume the player's snapshot if it belongs to it.
//   - Apply guesses/skips under a per-game mutex, save after every transition.
//   - Record finished games in the results log and count them in metrics.
//   - Fan out state views to subscribers (websocket connections).
//
// Notes:
//   - A puzzle fetch failure leaves the game loading; the next request retries.
//   - Snapshots are scoped per player: "<player>/<storage key>".

package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/michaljagosz/omnimusle/internal/daily"
	"github.com/michaljagosz/omnimusle/internal/game"
	"github.com/michaljagosz/omnimusle/internal/metrics"
	"github.com/michaljagosz/omnimusle/internal/playback"
	"github.com/michaljagosz/omnimusle/internal/store"
)

// ErrNotFinished is returned when a share artifact is requested for a game in progress.
var ErrNotFinished = errors.New("game not finished")

// PuzzleSource yields the day's puzzle for a kind.
type PuzzleSource interface {
	Daily(ctx context.Context, kind game.Kind, now time.Time) (*game.Puzzle, error)
}

// ResultsRecorder stores finished games and looks them up again.
type ResultsRecorder interface {
	Record(ctx context.Context, r daily.Result) error
	Find(ctx context.Context, playerID, kind, date string) (daily.Result, bool, error)
}

// View is what a client needs to render one game.
type View struct {
	Kind        game.Kind     `json:"kind"`
	Label       string        `json:"label"`
	Date        string        `json:"date"`
	State       game.State    `json:"state"`
	Fidelity    game.Fidelity `json:"fidelity"`
	Media       string        `json:"media,omitempty"`
	SlotMedia   []string      `json:"slotMedia,omitempty"`
	SearchType  string        `json:"searchType"`
	Answer      *game.Target  `json:"answer,omitempty"`
	SlotAnswers []game.Target `json:"slotAnswers,omitempty"`
	Grid        string        `json:"grid,omitempty"`
	NextReset   time.Time     `json:"nextReset"`
}

// Event is published to subscribers after every transition.
type Event struct {
	Player string
	View   View
}

type gameKey struct {
	player string
	kind   game.Kind
}

// Game is one player's game of one kind for one day.
type Game struct {
	mu      sync.Mutex
	key     gameKey
	day     int64
	machine *game.Machine
	persist *game.Persistence
	puzzle  *game.Puzzle
}

// Options configures a Manager.
type Options struct {
	Source   PuzzleSource
	Store    store.Store
	Results  ResultsRecorder // optional
	ShareURL string
	Now      func() time.Time
}

// Manager owns all live games.
type Manager struct {
	src      PuzzleSource
	kv       store.Store
	results  ResultsRecorder
	shareURL string
	now      func() time.Time

	mu    sync.Mutex
	games map[gameKey]*Game

	subMu  sync.RWMutex
	subs   map[gameKey]map[int]chan Event
	nextID int
}

func NewManager(opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		src:      opts.Source,
		kv:       opts.Store,
		results:  opts.Results,
		shareURL: opts.ShareURL,
		now:      opts.Now,
		games:    make(map[gameKey]*Game),
		subs:     make(map[gameKey]map[int]chan Event),
	}
}

// game returns the live game for today, replacing one left over from an earlier day.
func (m *Manager) game(player string, kind game.Kind) (*Game, error) {
	cfg, err := game.ConfigFor(kind)
	if err != nil {
		return nil, err
	}
	today := daily.DayIndex(m.now())
	key := gameKey{player: player, kind: kind}

	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.games[key]; ok && g.day == today {
		return g, nil
	}
	for k, g := range m.games {
		if g.day < today {
			delete(m.games, k)
		}
	}

	g := &Game{
		key:     key,
		day:     today,
		machine: game.NewMachine(cfg),
		persist: game.NewPersistence(store.NewScoped(m.kv, player), cfg.StorageKey, cfg),
	}
	g.machine.OnChange(func(s game.State) {
		g.persist.Save(context.Background(), s)
	})
	m.games[key] = g
	return g, nil
}

// ensure resolves g's puzzle if it is still loading. Caller holds g.mu.
func (m *Manager) ensure(ctx context.Context, g *Game) error {
	if g.machine.Status() != game.StatusLoading {
		return nil
	}
	p, err := m.src.Daily(ctx, g.key.kind, m.now())
	if err != nil {
		return err
	}
	if err := g.machine.Resolve(p, g.persist.Load(ctx, p)); err != nil {
		return err
	}
	g.puzzle = p
	log.Debug().Str("player", g.key.player).Str("kind", string(g.key.kind)).
		Int("round", g.machine.State().Round).Msg("game resolved")
	return nil
}

// Get resolves (or resumes) the player's game and returns its view.
func (m *Manager) Get(ctx context.Context, player string, kind game.Kind) (View, error) {
	g, err := m.game(player, kind)
	if err != nil {
		return View{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := m.ensure(ctx, g); err != nil {
		return View{}, err
	}
	return m.view(g), nil
}

// Guess submits a candidate.
func (m *Manager) Guess(ctx context.Context, player string, kind game.Kind, c game.Candidate) (game.Outcome, View, error) {
	return m.apply(ctx, player, kind, func(mc *game.Machine) (game.Outcome, error) { return mc.Submit(c) })
}

// Skip gives up the current round.
func (m *Manager) Skip(ctx context.Context, player string, kind game.Kind) (game.Outcome, View, error) {
	return m.apply(ctx, player, kind, func(mc *game.Machine) (game.Outcome, error) { return mc.Skip() })
}

func (m *Manager) apply(ctx context.Context, player string, kind game.Kind, fn func(*game.Machine) (game.Outcome, error)) (game.Outcome, View, error) {
	g, err := m.game(player, kind)
	if err != nil {
		return game.Outcome{}, View{}, err
	}

	g.mu.Lock()
	if err := m.ensure(ctx, g); err != nil {
		g.mu.Unlock()
		return game.Outcome{}, View{}, err
	}
	before := g.machine.State()
	out, err := fn(g.machine)
	if err != nil {
		v := m.view(g)
		g.mu.Unlock()
		return out, v, err
	}
	after := g.machine.State()
	v := m.view(g)
	g.mu.Unlock()

	m.observe(ctx, g, before, after, out)
	m.publish(g.key, Event{Player: player, View: v})
	return out, v, nil
}

// observe records metrics and, on the transition into a terminal state, the result.
func (m *Manager) observe(ctx context.Context, g *Game, before, after game.State, out game.Outcome) {
	kind := string(g.key.kind)
	switch {
	case len(after.Guesses) > len(before.Guesses) && after.Guesses[len(after.Guesses)-1].Type == game.GuessSkip:
		metrics.Guesses.WithLabelValues(kind, "skip").Inc()
	case out.Verdict != "":
		metrics.Guesses.WithLabelValues(kind, string(out.Verdict)).Inc()
	}

	if before.Status.Finished() || !after.Status.Finished() {
		return
	}
	metrics.GamesFinished.WithLabelValues(kind, string(after.Status)).Inc()
	log.Info().Str("player", g.key.player).Str("kind", kind).Str("status", string(after.Status)).
		Int("round", after.Round).Msg("game finished")

	if m.results == nil {
		return
	}
	now := m.now()
	r := daily.Result{
		PlayerID: g.key.player,
		Kind:     kind,
		Date:     daily.DateKey(now),
		Day:      g.day,
		Status:   string(after.Status),
		Rounds:   len(after.Guesses),
		Grid:     game.Encode(after),
	}
	if err := m.results.Record(ctx, r); err != nil {
		log.Warn().Err(err).Str("player", g.key.player).Str("kind", kind).Msg("record result failed")
	}
}

// view builds the client view. Caller holds g.mu.
func (m *Manager) view(g *Game) View {
	cfg := g.machine.Config()
	st := g.machine.State()
	v := View{
		Kind:       cfg.Kind,
		Label:      cfg.Label,
		Date:       daily.DateKey(m.now()),
		State:      st,
		Fidelity:   g.machine.Fidelity(),
		SearchType: cfg.SearchType,
		NextReset:  daily.NextReset(m.now()),
	}
	p := g.puzzle
	if p == nil {
		return v
	}

	if cfg.Shape != game.RevealLines {
		v.Media = p.Target.Media
	}
	for i, s := range p.Slots {
		solved := i < len(st.PerSlotSolved) && st.PerSlotSolved[i]
		if st.Status.Finished() || !solved {
			v.SlotMedia = append(v.SlotMedia, s.Media)
		}
		if st.Status.Finished() || solved {
			v.SlotAnswers = append(v.SlotAnswers, s)
		}
	}
	if st.Status.Finished() {
		t := p.Target
		v.Answer = &t
		v.Grid = game.Encode(st)
	}
	return v
}

// Share returns the share text of a finished game.
func (m *Manager) Share(ctx context.Context, player string, kind game.Kind) (string, error) {
	v, err := m.Get(ctx, player, kind)
	if err != nil {
		return "", err
	}
	if !v.State.Status.Finished() {
		return "", ErrNotFinished
	}
	return game.ShareText(game.Kinds[kind], v.State, m.shareURL), nil
}

// Clip returns what to play for the player's current round.
func (m *Manager) Clip(ctx context.Context, player string, kind game.Kind) (playback.Clip, error) {
	g, err := m.game(player, kind)
	if err != nil {
		return playback.Clip{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := m.ensure(ctx, g); err != nil {
		return playback.Clip{}, err
	}
	return playback.ClipFor(g.puzzle, g.machine.State(), g.machine.Fidelity())
}

// OverviewItem is the completion status of one kind.
type OverviewItem struct {
	Kind   game.Kind   `json:"kind"`
	Label  string      `json:"label"`
	Status game.Status `json:"status"` // "" when not started today
	Grid   string      `json:"grid,omitempty"`
}

// Overview reports today's completion per kind from stored snapshots, without fetching
// any puzzle. A finished game whose snapshot is gone (expired, other driver) is taken
// from the results log.
func (m *Manager) Overview(ctx context.Context, player string) []OverviewItem {
	scoped := store.NewScoped(m.kv, player)
	today := daily.DateKey(m.now())

	out := make([]OverviewItem, 0, len(game.AllKinds))
	for _, k := range game.AllKinds {
		cfg := game.Kinds[k]
		item := OverviewItem{Kind: k, Label: cfg.Label}
		s, ok := game.NewPersistence(scoped, cfg.StorageKey, cfg).LoadAny(ctx)
		if ok && strings.HasPrefix(s.PuzzleIdentity, string(k)+":"+today+":") {
			item.Status = s.Status
			if s.Status.Finished() {
				item.Grid = game.Encode(*s)
			}
		} else if m.results != nil {
			r, found, err := m.results.Find(ctx, player, string(k), today)
			if err != nil {
				log.Warn().Err(err).Str("kind", string(k)).Msg("results lookup failed")
			} else if found {
				item.Status, item.Grid = game.Status(r.Status), r.Grid
			}
		}
		out = append(out, item)
	}
	return out
}

// Subscribe registers for views of the player's game of kind. The returned function
// unsubscribes and closes the channel. Slow subscribers miss events rather than block.
func (m *Manager) Subscribe(player string, kind game.Kind) (<-chan Event, func()) {
	key := gameKey{player: player, kind: kind}
	ch := make(chan Event, 8)

	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	if m.subs[key] == nil {
		m.subs[key] = make(map[int]chan Event)
	}
	m.subs[key][id] = ch
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs[key], id)
			if len(m.subs[key]) == 0 {
				delete(m.subs, key)
			}
			m.subMu.Unlock()
			close(ch)
		})
	}
}

func (m *Manager) publish(key gameKey, ev Event) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	for _, ch := range m.subs[key] {
		select {
		case ch <- ev:
		default:
			log.Debug().Str("player", key.player).Str("kind", string(key.kind)).Msg("subscriber lagging, event dropped")
		}
	}
}
