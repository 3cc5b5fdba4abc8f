package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/michaljagosz/omnimusle/internal/daily"
	"github.com/michaljagosz/omnimusle/internal/game"
	"github.com/michaljagosz/omnimusle/internal/store"
)

type fakeSource struct {
	mu    sync.Mutex
	fail  error
	calls int
}

func (f *fakeSource) Daily(_ context.Context, kind game.Kind, now time.Time) (*game.Puzzle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	date := daily.DateKey(now)
	switch kind {
	case game.KindMashup:
		return &game.Puzzle{
			Kind: kind, Identity: "mashup:" + date + ":1",
			Slots: []game.Target{
				{ID: "1", Title: "One", Media: "m1"},
				{ID: "2", Title: "Two", Media: "m2"},
				{ID: "3", Title: "Three", Media: "m3"},
			},
			Reveal: game.RevealSpec{DurationsMs: []int{1000, 2000, 4000, 8000, 16000, 30000}},
		}, nil
	default:
		return &game.Puzzle{
			Kind: game.KindSong, Identity: "song:" + date + ":1109731",
			Target: game.Target{ID: "1109731", Title: "Bohemian Rhapsody", Creator: "Queen", Media: "p.mp3"},
			Reveal: game.RevealSpec{DurationsMs: []int{500, 1000, 4000, 8000, 16000, 30000}},
		}, nil
	}
}

type fakeResults struct {
	mu   sync.Mutex
	rows []daily.Result
}

func (f *fakeResults) Record(_ context.Context, r daily.Result) error {
	f.mu.Lock()
	f.rows = append(f.rows, r)
	f.mu.Unlock()
	return nil
}

func (f *fakeResults) Find(_ context.Context, player, kind, date string) (daily.Result, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.PlayerID == player && r.Kind == kind && r.Date == date {
			return r, true, nil
		}
	}
	return daily.Result{}, false, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	m       *Manager
	src     *fakeSource
	kv      store.Store
	results *fakeResults
	clock   *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		src:     &fakeSource{},
		kv:      store.NewMemoryStore(),
		results: &fakeResults{},
		clock:   &clock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)},
	}
	f.m = f.restart()
	return f
}

// restart builds a new manager on the same storage, as after a process restart.
func (f *fixture) restart() *Manager {
	return NewManager(Options{Source: f.src, Store: f.kv, Results: f.results, ShareURL: "https://omnimusle.example", Now: f.clock.Now})
}

func TestManager_ResumeAfterRestart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.m.Skip(ctx, "p1", game.KindSong)
	require.NoError(t, err)
	_, v, err := f.m.Guess(ctx, "p1", game.KindSong, game.Candidate{ID: "9", Title: "Radio Ga Ga", Creator: "Queen"})
	require.NoError(t, err)
	require.Equal(t, 2, v.State.Round)
	require.Nil(t, v.Answer)

	v, err = f.restart().Get(ctx, "p1", game.KindSong)
	require.NoError(t, err)
	require.Equal(t, 2, v.State.Round)
	require.Equal(t, game.VerdictPartial, v.State.Guesses[1].Verdict)
	require.Equal(t, 1000*4, v.Fidelity.DurationMs)
}

func TestManager_PlayersAreIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.m.Skip(ctx, "p1", game.KindSong)
	require.NoError(t, err)

	v, err := f.m.Get(ctx, "p2", game.KindSong)
	require.NoError(t, err)
	require.Zero(t, v.State.Round)
}

func TestManager_FetchFailureStaysLoading(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.src.fail = game.ErrTransientFetch

	_, err := f.m.Get(ctx, "p1", game.KindSong)
	require.ErrorIs(t, err, game.ErrTransientFetch)
	_, _, err = f.m.Skip(ctx, "p1", game.KindSong)
	require.ErrorIs(t, err, game.ErrTransientFetch)

	f.src.fail = nil
	v, err := f.m.Get(ctx, "p1", game.KindSong)
	require.NoError(t, err)
	require.Equal(t, game.StatusPlaying, v.State.Status)
}

func TestManager_LossIsRecordedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < game.MaxRounds; i++ {
		_, _, err := f.m.Skip(ctx, "p1", game.KindSong)
		require.NoError(t, err)
	}
	_, v, err := f.m.Skip(ctx, "p1", game.KindSong)
	require.ErrorIs(t, err, game.ErrGameOver)
	require.Equal(t, game.StatusLost, v.State.Status)
	require.NotNil(t, v.Answer)
	require.Equal(t, "Bohemian Rhapsody", v.Answer.Title)
	require.Equal(t, "⬛⬛⬛⬛⬛⬛", v.Grid)

	require.Len(t, f.results.rows, 1)
	r := f.results.rows[0]
	require.Equal(t, "lost", r.Status)
	require.Equal(t, "2024-06-01", r.Date)
	require.Equal(t, 6, r.Rounds)
}

func TestManager_Share(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.m.Share(ctx, "p1", game.KindSong)
	require.ErrorIs(t, err, ErrNotFinished)

	_, _, err = f.m.Skip(ctx, "p1", game.KindSong)
	require.NoError(t, err)
	_, _, err = f.m.Guess(ctx, "p1", game.KindSong, game.Candidate{ID: "1109731"})
	require.NoError(t, err)

	text, err := f.m.Share(ctx, "p1", game.KindSong)
	require.NoError(t, err)
	require.Equal(t, "Song of the Day\n⬛🟩⬜⬜⬜⬜\n\nhttps://omnimusle.example", text)
}

func TestManager_DuplicateGuess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := game.Candidate{ID: "9", Title: "Radio Ga Ga"}

	_, _, err := f.m.Guess(ctx, "p1", game.KindSong, c)
	require.NoError(t, err)
	_, v, err := f.m.Guess(ctx, "p1", game.KindSong, c)
	require.ErrorIs(t, err, game.ErrAlreadyGuessed)
	require.Equal(t, 1, v.State.Round)
}

func TestManager_NewDayStartsFresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.m.Skip(ctx, "p1", game.KindSong)
	require.NoError(t, err)

	f.clock.Add(24 * time.Hour)
	v, err := f.m.Get(ctx, "p1", game.KindSong)
	require.NoError(t, err)
	require.Zero(t, v.State.Round)
	require.Equal(t, "2024-06-02", v.Date)
	require.Contains(t, v.State.PuzzleIdentity, "2024-06-02")
}

func TestManager_Overview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.m.Guess(ctx, "p1", game.KindSong, game.Candidate{ID: "1109731"})
	require.NoError(t, err)
	_, _, err = f.m.Skip(ctx, "p1", game.KindMashup)
	require.NoError(t, err)

	items := f.m.Overview(ctx, "p1")
	require.Len(t, items, len(game.AllKinds))
	byKind := map[game.Kind]OverviewItem{}
	for _, it := range items {
		byKind[it.Kind] = it
	}
	require.Equal(t, game.StatusWon, byKind[game.KindSong].Status)
	require.Equal(t, "🟩⬜⬜⬜⬜⬜", byKind[game.KindSong].Grid)
	require.Equal(t, game.StatusPlaying, byKind[game.KindMashup].Status)
	require.Empty(t, byKind[game.KindAlbum].Status)

	f.clock.Add(24 * time.Hour)
	for _, it := range f.m.Overview(ctx, "p1") {
		require.Empty(t, it.Status, it.Kind)
	}
}

func TestManager_OverviewFallsBackToResults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// finished on another instance whose snapshot store is not shared
	require.NoError(t, f.results.Record(ctx, daily.Result{
		PlayerID: "p1", Kind: string(game.KindAlbum), Date: "2024-06-01", Status: "lost", Rounds: 6, Grid: "⬛⬛⬛⬛⬛⬛",
	}))
	require.NoError(t, f.results.Record(ctx, daily.Result{
		PlayerID: "p1", Kind: string(game.KindFilm), Date: "2024-05-31", Status: "won", Rounds: 1, Grid: "🟩⬜⬜⬜⬜⬜",
	}))

	byKind := map[game.Kind]OverviewItem{}
	for _, it := range f.m.Overview(ctx, "p1") {
		byKind[it.Kind] = it
	}
	require.Equal(t, game.StatusLost, byKind[game.KindAlbum].Status)
	require.Equal(t, "⬛⬛⬛⬛⬛⬛", byKind[game.KindAlbum].Grid)
	require.Empty(t, byKind[game.KindFilm].Status)

	for _, it := range f.m.Overview(ctx, "p2") {
		require.Empty(t, it.Status, it.Kind)
	}
}

func TestManager_MashupView(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	out, v, err := f.m.Guess(ctx, "p1", game.KindMashup, game.Candidate{ID: "2", Title: "Two"})
	require.NoError(t, err)
	require.Equal(t, 1, out.Slot)
	require.Equal(t, []string{"m1", "m3"}, v.SlotMedia)
	require.Equal(t, "Two", v.SlotAnswers[0].Title)
	require.Len(t, v.SlotAnswers, 1)
}

func TestManager_Subscribe(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ch, cancel := f.m.Subscribe("p1", game.KindSong)
	other, cancelOther := f.m.Subscribe("p2", game.KindSong)
	defer cancelOther()

	_, _, err := f.m.Skip(ctx, "p1", game.KindSong)
	require.NoError(t, err)

	select {
	case ev := <-ch:
		require.Equal(t, "p1", ev.Player)
		require.Equal(t, 1, ev.View.State.Round)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	require.Empty(t, other)

	cancel()
	cancel()
	_, ok := <-ch
	require.False(t, ok)
}

func TestManager_UnknownKind(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Get(context.Background(), "p1", game.Kind("podcast"))
	require.ErrorIs(t, err, game.ErrUnknownKind)
}

func TestManager_Clip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.m.Skip(ctx, "p1", game.KindSong)
	require.NoError(t, err)
	c, err := f.m.Clip(ctx, "p1", game.KindSong)
	require.NoError(t, err)
	require.Equal(t, []string{"p.mp3"}, c.Refs)
	require.Equal(t, time.Second, c.Duration)

	_, _, err = f.m.Guess(ctx, "p1", game.KindMashup, game.Candidate{ID: "2", Title: "Two"})
	require.NoError(t, err)
	c, err = f.m.Clip(ctx, "p1", game.KindMashup)
	require.NoError(t, err)
	require.Equal(t, []string{"m1", "m3"}, c.Refs)
}
