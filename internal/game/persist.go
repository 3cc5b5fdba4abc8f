// internal/game/persist.go
//
// Snapshot persistence for a single game.
// Responsibilities:
//   - Serialize State to JSON under a fixed per-kind key.
//   - Restore only snapshots that belong to the active puzzle and are well formed.
//   - Swallow write failures: losing persistence must never block gameplay.

package game

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/michaljagosz/omnimusle/internal/metrics"
)

// KV is the storage collaborator. Implementations may be backed by memory, SQLite,
// Redis, PostgreSQL, etc. (see internal/store).
type KV interface {
	// Get returns the stored value and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}

// Persistence saves and restores State under one key.
type Persistence struct {
	kv  KV
	key string
	cfg KindConfig
}

// NewPersistence binds a KV to a storage key for the given kind.
func NewPersistence(kv KV, key string, cfg KindConfig) *Persistence {
	return &Persistence{kv: kv, key: key, cfg: cfg}
}

// Load returns the stored state for puzzle, or nil when there is none that can be resumed.
// Read errors, parse failures, malformed shapes and stale puzzle identities all mean
// "start fresh" and are not reported as errors.
func (p *Persistence) Load(ctx context.Context, puzzle *Puzzle) *State {
	raw, ok, err := p.kv.Get(ctx, p.key)
	if err != nil {
		log.Warn().Err(err).Str("key", p.key).Msg("snapshot read failed")
		return nil
	}
	if !ok || raw == "" {
		return nil
	}

	var s State
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		log.Debug().Err(err).Str("key", p.key).Msg("discarding unparsable snapshot")
		return nil
	}
	if puzzle == nil || s.PuzzleIdentity != puzzle.Identity {
		log.Debug().Str("key", p.key).Str("stored", s.PuzzleIdentity).Msg("discarding stale snapshot")
		return nil
	}
	if !ValidSnapshot(s, p.cfg) {
		log.Debug().Str("key", p.key).Msg("discarding malformed snapshot")
		return nil
	}
	if s.Guesses == nil {
		s.Guesses = []Guess{}
	}
	return &s
}

// LoadAny returns whatever snapshot is stored, without checking the puzzle identity.
// Used for overviews where today's puzzle may not be resolved yet.
func (p *Persistence) LoadAny(ctx context.Context) (*State, bool) {
	raw, ok, err := p.kv.Get(ctx, p.key)
	if err != nil || !ok {
		return nil, false
	}
	var s State
	if err := json.Unmarshal([]byte(raw), &s); err != nil || !ValidSnapshot(s, p.cfg) {
		return nil, false
	}
	return &s, true
}

// Save writes s. Loading states are never written; failures are logged and dropped.
func (p *Persistence) Save(ctx context.Context, s State) {
	if s.Status == StatusLoading {
		return
	}
	b, err := json.Marshal(s)
	if err != nil {
		log.Error().Err(err).Str("key", p.key).Msg("encode snapshot")
		return
	}
	if err := p.kv.Set(ctx, p.key, string(b)); err != nil {
		metrics.StorageWriteFailures.Inc()
		log.Warn().Err(err).Str("key", p.key).Msg("snapshot write failed")
	}
}
