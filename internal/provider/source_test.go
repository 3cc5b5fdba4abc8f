package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaljagosz/omnimusle/internal/catalog"
	"github.com/michaljagosz/omnimusle/internal/game"
)

var day = time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)

func track(id int64, title, artist, preview string) map[string]any {
	return map[string]any{
		"id": id, "title": title, "preview": preview,
		"artist": map[string]any{"name": artist},
		"album":  map[string]any{"title": "Album", "cover_medium": "https://cdn/cover.jpg", "cover_small": "https://cdn/s.jpg"},
	}
}

type fakeDeezer struct {
	tracks map[string]any
	calls  atomic.Int32
	gate   chan struct{} // when set, track lookups wait for it to close
}

func (f *fakeDeezer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	if f.gate != nil && strings.HasPrefix(r.URL.Path, "/track/") {
		select {
		case <-f.gate:
		case <-r.Context().Done():
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasPrefix(r.URL.Path, "/track/"):
		id := strings.TrimPrefix(r.URL.Path, "/track/")
		t, ok := f.tracks[id]
		if !ok {
			t = map[string]any{"error": map[string]any{"type": "DataException", "message": "no data", "code": 800}}
		}
		_ = json.NewEncoder(w).Encode(t)
	case r.URL.Path == "/search/artist":
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{
			map[string]any{"id": 412, "name": "Queen", "picture_small": "s", "picture_xl": "xl"},
		}})
	case r.URL.Path == "/search/album":
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{
			map[string]any{"id": 302127, "title": "Nevermind", "cover_xl": "xl", "release_date": "1991-09-24",
				"artist": map[string]any{"name": "Nirvana"}},
		}})
	case r.URL.Path == "/search":
		if r.URL.Query().Get("q") == "broken" {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{track(77, "Take On Me", "a-ha", "p")}})
	default:
		http.NotFound(w, r)
	}
}

func newFixture(t *testing.T, tmdbKey string) (*Source, *fakeDeezer, *httptest.Server) {
	t.Helper()
	fd := &fakeDeezer{tracks: map[string]any{
		"1109731":   track(1109731, "Bohemian Rhapsody", "Queen", "https://cdn/p1.mp3"),
		"6569065":   track(6569065, "Smells Like Teen Spirit", "Nirvana", "https://cdn/p2.mp3"),
		"112233":    track(112233, "Eye of the Tiger", "Survivor", "https://cdn/p3.mp3"),
		"3135556":   track(3135556, "Billie Jean", "Michael Jackson", ""),
		"7675055":   track(7675055, "Danger Zone", "Kenny Loggins", "https://cdn/p4.mp3"),
		"nopreview": track(5, "Silent", "Nobody", ""),
	}}
	dz := httptest.NewServer(fd)
	t.Cleanup(dz.Close)

	tm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, tmdbKey, r.URL.Query().Get("api_key"))
		switch r.URL.Path {
		case "/3/movie/744":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 744, "title": "Top Gun", "poster_path": "/tg.jpg"})
		case "/3/search/multi":
			_ = json.NewEncoder(w).Encode(map[string]any{"results": []any{
				map[string]any{"id": 744, "media_type": "movie", "title": "Top Gun", "release_date": "1986-05-16", "poster_path": "/tg.jpg"},
				map[string]any{"id": 1399, "media_type": "tv", "name": "Game of Thrones", "first_air_date": "2011-04-17"},
				map[string]any{"id": 500, "media_type": "person", "name": "Tom Cruise"},
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(tm.Close)

	cat := catalog.Catalog{
		game.KindSong:   {Entries: []catalog.Entry{{TrackID: "1109731"}}},
		game.KindArtist: {Entries: []catalog.Entry{{Query: "Freddie Mercury"}}},
		game.KindAlbum:  {Entries: []catalog.Entry{{Query: "Nirvana Nevermind"}}},
		game.KindLyrics: {Entries: []catalog.Entry{{TrackID: "3135556", Lines: []string{"1", "2", "3", "4", "5", "6"}}}},
		game.KindFilm:   {Entries: []catalog.Entry{{FilmID: "744", Title: "Top Gun", TrackID: "7675055"}}},
		game.KindClip: {Entries: []catalog.Entry{{VideoID: "djV11Xbc914", Title: "a-ha - Take On Me",
			Timestamps: []int{162, 15, 50, 90, 130, 175}}}},
		game.KindMashup: {Entries: []catalog.Entry{{Tracks: []string{"1109731", "6569065", "112233"}}}},
	}
	src := NewSource(cat, NewDeezer(dz.URL, dz.Client(), nil), NewTMDB(tm.URL, tmdbKey, tm.Client(), nil))
	return src, fd, dz
}

func TestSource_SongIsCachedPerDay(t *testing.T) {
	src, fd, _ := newFixture(t, "")
	ctx := context.Background()

	p, err := src.Daily(ctx, game.KindSong, day)
	require.NoError(t, err)
	require.Equal(t, "song:2024-06-01:1109731", p.Identity)
	require.Equal(t, "Bohemian Rhapsody", p.Target.Title)
	require.Equal(t, "Queen", p.Target.Creator)
	require.Equal(t, "https://cdn/p1.mp3", p.Target.Media)
	require.Equal(t, []int{500, 1000, 4000, 8000, 16000, 30000}, p.Reveal.DurationsMs)

	calls := fd.calls.Load()
	again, err := src.Daily(ctx, game.KindSong, day.Add(8*time.Hour))
	require.NoError(t, err)
	require.Same(t, p, again)
	require.Equal(t, calls, fd.calls.Load())

	next, err := src.Daily(ctx, game.KindSong, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, "song:2024-06-02:1109731", next.Identity)
}

func TestSource_ImageKinds(t *testing.T) {
	src, _, _ := newFixture(t, "")
	ctx := context.Background()

	p, err := src.Daily(ctx, game.KindArtist, day)
	require.NoError(t, err)
	require.Equal(t, "412", p.Target.ID)
	require.Equal(t, "xl", p.Target.Media)
	require.Equal(t, []int{60, 40, 25, 15, 8, 1}, p.Reveal.PixelFactors)

	p, err = src.Daily(ctx, game.KindAlbum, day)
	require.NoError(t, err)
	require.Equal(t, "Nevermind", p.Target.Title)
	require.Equal(t, "Nirvana", p.Target.Creator)
}

func TestSource_LyricsDoNotNeedPreview(t *testing.T) {
	src, _, _ := newFixture(t, "")
	p, err := src.Daily(context.Background(), game.KindLyrics, day)
	require.NoError(t, err)
	require.Equal(t, "Billie Jean", p.Target.Title)
	require.Len(t, p.Reveal.Lines, 6)
}

func TestSource_FilmPosterIsOptional(t *testing.T) {
	src, _, _ := newFixture(t, "")
	p, err := src.Daily(context.Background(), game.KindFilm, day)
	require.NoError(t, err)
	require.Equal(t, "744", p.Target.ID)
	require.Equal(t, "https://cdn/p4.mp3", p.Target.Media)
	require.Empty(t, p.Target.Cover)

	src, _, _ = newFixture(t, "k3y")
	p, err = src.Daily(context.Background(), game.KindFilm, day)
	require.NoError(t, err)
	require.Equal(t, "https://image.tmdb.org/t/p/w500/tg.jpg", p.Target.Cover)
}

func TestSource_ClipAndMashup(t *testing.T) {
	src, _, _ := newFixture(t, "")
	ctx := context.Background()

	p, err := src.Daily(ctx, game.KindClip, day)
	require.NoError(t, err)
	require.Equal(t, "djV11Xbc914", p.Target.Media)
	require.Equal(t, "https://cdn/cover.jpg", p.Target.Cover)
	require.Equal(t, []int{162, 15, 50, 90, 130, 175}, p.Reveal.OffsetsSec)

	p, err = src.Daily(ctx, game.KindMashup, day)
	require.NoError(t, err)
	require.Len(t, p.Slots, 3)
	require.Equal(t, "Eye of the Tiger", p.Slots[2].Title)
	require.Equal(t, "mashup:2024-06-01:1109731", p.Identity)
	require.Equal(t, []int{1000, 2000, 4000, 8000, 16000, 30000}, p.Reveal.DurationsMs)
}

func TestSource_TransientFailures(t *testing.T) {
	ctx := context.Background()

	cases := map[game.Kind]struct{ bad, good catalog.Entry }{
		game.KindSong: {
			bad:  catalog.Entry{TrackID: "nopreview"},
			good: catalog.Entry{TrackID: "1109731"},
		},
		game.KindFilm: {
			bad:  catalog.Entry{FilmID: "744", Title: "Top Gun", TrackID: "missing"},
			good: catalog.Entry{FilmID: "744", Title: "Top Gun", TrackID: "7675055"},
		},
		game.KindMashup: {
			bad:  catalog.Entry{Tracks: []string{"1109731", "missing", "112233"}},
			good: catalog.Entry{Tracks: []string{"1109731", "6569065", "112233"}},
		},
	}
	for kind, tc := range cases {
		t.Run(string(kind), func(t *testing.T) {
			src, _, _ := newFixture(t, "")
			src.cat[kind] = catalog.Playlist{Entries: []catalog.Entry{tc.bad}}

			_, err := src.Daily(ctx, kind, day)
			require.ErrorIs(t, err, game.ErrTransientFetch)

			// failures are not cached
			src.cat[kind] = catalog.Playlist{Entries: []catalog.Entry{tc.good}}
			_, err = src.Daily(ctx, kind, day)
			require.NoError(t, err)
		})
	}
}

func TestSource_CancelledCallerDoesNotFailOthers(t *testing.T) {
	src, fd, _ := newFixture(t, "")
	fd.gate = make(chan struct{})

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := src.Daily(first, game.KindSong, day)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return fd.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		p   *game.Puzzle
		err error
	}
	second := make(chan result, 1)
	go func() {
		p, err := src.Daily(context.Background(), game.KindSong, day)
		second <- result{p, err}
	}()

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(fd.gate)
	got := <-second
	require.NoError(t, got.err)
	require.Equal(t, "1109731", got.p.Target.ID)
	require.EqualValues(t, 1, fd.calls.Load())
}

func TestSource_UpstreamDown(t *testing.T) {
	src, _, dz := newFixture(t, "")
	dz.Close()
	_, err := src.Daily(context.Background(), game.KindSong, day)
	require.ErrorIs(t, err, game.ErrTransientFetch)
}

func TestSource_Search(t *testing.T) {
	ctx := context.Background()
	src, _, _ := newFixture(t, "k3y")

	got, err := src.Search(ctx, "track", "take on")
	require.NoError(t, err)
	require.Equal(t, []game.Candidate{{ID: "77", Title: "Take On Me", Creator: "a-ha", Image: "https://cdn/s.jpg"}}, got)

	got, err = src.Search(ctx, "album", "nevermind")
	require.NoError(t, err)
	require.Equal(t, "1991", got[0].Year)

	got, err = src.Search(ctx, "film", "top")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "https://image.tmdb.org/t/p/w92/tg.jpg", got[0].Image)
	require.Equal(t, "Game of Thrones", got[1].Title)
	require.Equal(t, "2011", got[1].Year)

	_, err = src.Search(ctx, "track", "broken")
	require.ErrorIs(t, err, game.ErrTransientFetch)

	_, err = src.Search(ctx, "podcast", "x")
	require.ErrorIs(t, err, game.ErrUnknownKind)
}

func TestTMDB_DisabledWithoutKey(t *testing.T) {
	tm := NewTMDB("http://127.0.0.1:1", "", nil, nil)
	got, err := tm.SearchFilms(context.Background(), "top gun")
	require.NoError(t, err)
	require.Empty(t, got)

	poster, err := tm.Poster(context.Background(), "744")
	require.NoError(t, err)
	require.Empty(t, poster)
}

func TestNewLimiter(t *testing.T) {
	require.Nil(t, NewLimiter(0))
	l := NewLimiter(0.5)
	require.NotNil(t, l)
	require.Equal(t, 1, l.Burst())
}
