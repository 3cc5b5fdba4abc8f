// internal/provider/source.go
//
// Daily puzzle source.
// Responsibilities:
//   - Pick today's catalog entry per kind and resolve it against Deezer/TMDB.
//   - Validate provider payloads into a game.Puzzle (ErrTransientFetch otherwise).
//   - Cache one puzzle per (kind, UTC day); concurrent callers share one fetch.
//   - Dispatch search queries to the provider for a search type.
//
// Notes:
//   - Film: the Deezer soundtrack preview is required, the TMDB poster is optional.
//   - Clip: the Deezer cover is optional; the answer comes from the catalog.
//   - Mashup: the three tracks are fetched concurrently and all need a preview.

package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/michaljagosz/omnimusle/internal/catalog"
	"github.com/michaljagosz/omnimusle/internal/daily"
	"github.com/michaljagosz/omnimusle/internal/game"
)

// fetchTimeout bounds one shared puzzle resolution, which outlives the request that
// started it.
const fetchTimeout = 30 * time.Second

type cacheKey struct {
	kind game.Kind
	day  int64
}

// Source resolves and caches the daily puzzles.
type Source struct {
	cat    catalog.Catalog
	deezer *Deezer
	tmdb   *TMDB

	mu    sync.RWMutex
	cache map[cacheKey]*game.Puzzle
	group singleflight.Group
}

func NewSource(cat catalog.Catalog, deezer *Deezer, tmdb *TMDB) *Source {
	return &Source{cat: cat, deezer: deezer, tmdb: tmdb, cache: make(map[cacheKey]*game.Puzzle)}
}

// Daily returns the puzzle of kind for the UTC day of now. Calls for the same kind and
// day return the same puzzle; failures are not cached.
func (s *Source) Daily(ctx context.Context, kind game.Kind, now time.Time) (*game.Puzzle, error) {
	cfg, err := game.ConfigFor(kind)
	if err != nil {
		return nil, err
	}
	key := cacheKey{kind: kind, day: daily.DayIndex(now)}

	s.mu.RLock()
	p, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	ch := s.group.DoChan(fmt.Sprintf("%s/%d", kind, key.day), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		p, err := s.build(fctx, cfg, now)
		if err != nil {
			return nil, err
		}
		if err := game.ValidatePuzzle(p, cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", game.ErrTransientFetch, err)
		}
		s.store(key, p)
		log.Info().Str("kind", string(kind)).Str("identity", p.Identity).Msg("daily puzzle resolved")
		return p, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		// the fetch keeps going for the other waiters and the cache
		return nil, ctx.Err()
	}
	if res.Err != nil {
		log.Warn().Err(res.Err).Str("kind", string(kind)).Msg("daily puzzle fetch failed")
		return nil, res.Err
	}
	return res.Val.(*game.Puzzle), nil
}

// store caches p and drops puzzles from earlier days.
func (s *Source) store(key cacheKey, p *game.Puzzle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.cache {
		if k.day < key.day {
			delete(s.cache, k)
		}
	}
	s.cache[key] = p
}

func (s *Source) build(ctx context.Context, cfg game.KindConfig, now time.Time) (*game.Puzzle, error) {
	e, err := s.cat.Pick(cfg.Kind, now)
	if err != nil {
		return nil, err
	}

	p := &game.Puzzle{Kind: cfg.Kind, Day: daily.DayIndex(now)}
	switch cfg.Kind {
	case game.KindSong:
		t, err := s.deezer.Track(ctx, e.TrackID)
		if err != nil {
			return nil, err
		}
		if err := requirePreview(t); err != nil {
			return nil, err
		}
		p.Target = trackTarget(t)

	case game.KindLyrics:
		t, err := s.deezer.Track(ctx, e.TrackID)
		if err != nil {
			return nil, err
		}
		p.Target = trackTarget(t)
		p.Reveal.Lines = append([]string(nil), e.Lines...)

	case game.KindArtist:
		a, err := s.deezer.FirstArtist(ctx, e.Query)
		if err != nil {
			return nil, err
		}
		p.Target = game.Target{ID: itoa(a.ID), Title: a.Name, Creator: a.Name, Cover: a.PictureXL, Media: a.PictureXL}

	case game.KindAlbum:
		a, err := s.deezer.FirstAlbum(ctx, e.Query)
		if err != nil {
			return nil, err
		}
		p.Target = game.Target{ID: itoa(a.ID), Title: a.Title, Creator: a.Artist.Name, Cover: a.CoverXL, Media: a.CoverXL}

	case game.KindFilm:
		t, err := s.deezer.Track(ctx, e.TrackID)
		if err != nil {
			return nil, err
		}
		if err := requirePreview(t); err != nil {
			return nil, err
		}
		poster, err := s.tmdb.Poster(ctx, e.FilmID)
		if err != nil {
			log.Warn().Err(err).Str("film", e.FilmID).Msg("poster lookup failed")
		}
		p.Target = game.Target{ID: e.FilmID, Title: e.Title, Cover: poster, Media: t.Preview}

	case game.KindClip:
		p.Target = game.Target{ID: e.VideoID, Title: e.Title, Media: e.VideoID}
		if t, err := s.deezer.FirstTrack(ctx, e.Title); err != nil {
			log.Debug().Err(err).Str("clip", e.VideoID).Msg("cover lookup failed")
		} else {
			p.Target.Cover = t.Album.CoverMedium
		}
		p.Reveal.OffsetsSec = append([]int(nil), e.Timestamps...)

	case game.KindMashup:
		slots, err := s.mashupSlots(ctx, e.Tracks)
		if err != nil {
			return nil, err
		}
		p.Slots = slots
		titles := make([]string, len(slots))
		for i, sl := range slots {
			titles[i] = sl.Title
		}
		p.Target = game.Target{ID: slots[0].ID, Title: strings.Join(titles, " / ")}
	}

	switch cfg.Shape {
	case game.RevealAudio:
		p.Reveal.DurationsMs = append([]int(nil), cfg.DurationsMs...)
	case game.RevealPixelate:
		p.Reveal.PixelFactors = append([]int(nil), cfg.PixelFactors...)
	}
	p.Identity = identity(cfg.Kind, now, p.Target.ID)
	return p, nil
}

func (s *Source) mashupSlots(ctx context.Context, ids []string) ([]game.Target, error) {
	slots := make([]game.Target, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			t, err := s.deezer.Track(gctx, id)
			if err != nil {
				return err
			}
			if err := requirePreview(t); err != nil {
				return err
			}
			slots[i] = trackTarget(t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slots, nil
}

func trackTarget(t deezerTrack) game.Target {
	return game.Target{
		ID:      itoa(t.ID),
		Title:   t.Title,
		Creator: t.Artist.Name,
		Cover:   t.Album.CoverMedium,
		Media:   t.Preview,
	}
}

// identity changes every day even when a playlist repeats the same target.
func identity(k game.Kind, now time.Time, targetID string) string {
	return string(k) + ":" + daily.DateKey(now) + ":" + targetID
}

// Search dispatches a query to the provider serving searchType
// (track | artist | album | film).
func (s *Source) Search(ctx context.Context, searchType, q string) ([]game.Candidate, error) {
	switch searchType {
	case "", "track":
		return s.deezer.SearchTracks(ctx, q)
	case "artist":
		return s.deezer.SearchArtists(ctx, q)
	case "album":
		return s.deezer.SearchAlbums(ctx, q)
	case "film":
		return s.tmdb.SearchFilms(ctx, q)
	}
	return nil, fmt.Errorf("%w: search type %q", game.ErrUnknownKind, searchType)
}
