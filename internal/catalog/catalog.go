// internal/catalog/catalog.go
//
// Per-kind playlists the daily puzzles are drawn from.
//
// Responsibilities:
//   - Load playlists from a JSON file (CATALOG_FILE) or fall back to the embedded default.
//   - Validate every playlist entry has what its kind needs.
//   - Pick the entry for a UTC day with daily.SelectIndex and the playlist's offset.
//
// Playlist entries reference provider ids; nothing here talks to the network.
//
// Initialization behavior (Init):
//   1. If path is set, parse that file.
//   2. Otherwise use the embedded assets/playlists.json.
//   Initialization is run once (sync.Once).

package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/michaljagosz/omnimusle/assets"
	"github.com/michaljagosz/omnimusle/internal/daily"
	"github.com/michaljagosz/omnimusle/internal/game"
)

// ErrInvalid is returned for documents with missing or malformed playlists.
var ErrInvalid = errors.New("catalog: invalid playlist")

// Entry is one day's puzzle seed. Which fields are set depends on the kind.
type Entry struct {
	TrackID    string   `json:"trackId,omitempty"`    // song, lyrics, film (soundtrack preview)
	Query      string   `json:"query,omitempty"`      // artist, album (search query)
	FilmID     string   `json:"filmId,omitempty"`     // film (TMDB movie id)
	Title      string   `json:"title,omitempty"`      // film, clip (the answer)
	VideoID    string   `json:"videoId,omitempty"`    // clip (YouTube id)
	Lines      []string `json:"lines,omitempty"`      // lyrics
	Timestamps []int    `json:"timestamps,omitempty"` // clip, seconds
	Tracks     []string `json:"tracks,omitempty"`     // mashup, Deezer track ids
}

// Playlist is the rotation of one kind. Offset shifts the rotation so kinds sharing a
// playlist length do not line up.
type Playlist struct {
	Offset  int     `json:"offset,omitempty"`
	Entries []Entry `json:"entries"`
}

// Catalog maps each kind to its playlist.
type Catalog map[game.Kind]Playlist

// Parse decodes and validates a playlist document.
func Parse(b []byte) (Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads a playlist document from path, or the embedded default when path is empty.
func Load(path string) (Catalog, error) {
	var (
		b   []byte
		err error
	)
	if path != "" {
		b, err = os.ReadFile(path)
	} else {
		b, err = assets.Playlists()
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

// Validate checks every kind has a non-empty playlist with well-formed entries.
func (c Catalog) Validate() error {
	for _, k := range game.AllKinds {
		pl, ok := c[k]
		if !ok || len(pl.Entries) == 0 {
			return fmt.Errorf("%w: %s has no entries", ErrInvalid, k)
		}
		for i, e := range pl.Entries {
			if err := validEntry(k, e); err != nil {
				return fmt.Errorf("%w: %s[%d]: %s", ErrInvalid, k, i, err)
			}
		}
	}
	return nil
}

func validEntry(k game.Kind, e Entry) error {
	switch k {
	case game.KindSong:
		if e.TrackID == "" {
			return errors.New("missing trackId")
		}
	case game.KindArtist, game.KindAlbum:
		if e.Query == "" {
			return errors.New("missing query")
		}
	case game.KindLyrics:
		if e.TrackID == "" {
			return errors.New("missing trackId")
		}
		if len(e.Lines) != game.MaxRounds {
			return fmt.Errorf("%d lines, want %d", len(e.Lines), game.MaxRounds)
		}
	case game.KindFilm:
		if e.FilmID == "" || e.Title == "" || e.TrackID == "" {
			return errors.New("film needs filmId, title and trackId")
		}
	case game.KindClip:
		if e.VideoID == "" || e.Title == "" {
			return errors.New("clip needs videoId and title")
		}
		if len(e.Timestamps) != game.MaxRounds {
			return fmt.Errorf("%d timestamps, want %d", len(e.Timestamps), game.MaxRounds)
		}
	case game.KindMashup:
		if len(e.Tracks) != game.Kinds[game.KindMashup].Slots {
			return fmt.Errorf("%d tracks, want %d", len(e.Tracks), game.Kinds[game.KindMashup].Slots)
		}
	}
	return nil
}

// Pick returns the entry scheduled for the UTC day of now.
func (c Catalog) Pick(k game.Kind, now time.Time) (Entry, error) {
	pl, ok := c[k]
	if !ok || len(pl.Entries) == 0 {
		return Entry{}, fmt.Errorf("%w: %s has no entries", ErrInvalid, k)
	}
	return pl.Entries[daily.SelectIndex(now, len(pl.Entries), pl.Offset)], nil
}

var (
	initOnce   sync.Once
	current    Catalog
	initialErr error
)

// Init loads the process-wide catalog exactly once.
func Init(path string) error {
	initOnce.Do(func() {
		current, initialErr = Load(path)
	})
	return initialErr
}

// Default returns the catalog loaded by Init, or nil before a successful Init.
func Default() Catalog { return current }
