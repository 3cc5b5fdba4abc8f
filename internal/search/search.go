// internal/search/search.go
//
// Candidate search for the guess box.
// Responsibilities:
//   - Short queries (< 2 characters) return nothing without touching the network.
//   - Upstream failures degrade to an empty result set.
//   - Debouncer: waits for a quiet interval, then runs only the latest query; results of
//     superseded queries are dropped (last writer wins).

package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/bep/debounce"
	"github.com/rs/zerolog/log"

	"github.com/michaljagosz/omnimusle/internal/game"
)

// MinQueryLen is the shortest query sent upstream.
const MinQueryLen = 2

// Upstream performs the actual provider search.
type Upstream interface {
	Search(ctx context.Context, searchType, q string) ([]game.Candidate, error)
}

type Service struct {
	up Upstream
}

func NewService(up Upstream) *Service { return &Service{up: up} }

// Search returns candidates for query. Transient upstream failures yield an empty list.
func (s *Service) Search(ctx context.Context, query, searchType string) ([]game.Candidate, error) {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < MinQueryLen {
		return []game.Candidate{}, nil
	}
	res, err := s.up.Search(ctx, searchType, q)
	if errors.Is(err, game.ErrTransientFetch) || errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Str("type", searchType).Msg("search degraded to empty")
		return []game.Candidate{}, nil
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = []game.Candidate{}
	}
	return res, nil
}

// Result is one delivered search.
type Result struct {
	Seq        uint64           `json:"seq"`
	Query      string           `json:"query"`
	Candidates []game.Candidate `json:"candidates"`
}

// Debouncer runs searches for a single input box.
type Debouncer struct {
	svc        *Service
	searchType string
	deliver    func(Result)
	debounced  func(func())

	seq    atomic.Uint64
	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewDebouncer calls deliver with the result of the latest query after a quiet
// interval of wait. deliver is never called for a superseded query.
func NewDebouncer(svc *Service, searchType string, wait time.Duration, deliver func(Result)) *Debouncer {
	return &Debouncer{
		svc:        svc,
		searchType: searchType,
		deliver:    deliver,
		debounced:  debounce.New(wait),
	}
}

// Submit issues a new query and returns its sequence number.
func (d *Debouncer) Submit(ctx context.Context, query string) uint64 {
	seq := d.seq.Add(1)
	d.debounced(func() { d.run(ctx, seq, query) })
	return seq
}

func (d *Debouncer) run(parent context.Context, seq uint64, query string) {
	if d.seq.Load() != seq {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.cancel = cancel
	d.mu.Unlock()
	defer cancel()

	res, err := d.svc.Search(ctx, query, d.searchType)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("search failed")
		res = []game.Candidate{}
	}
	if d.seq.Load() != seq {
		return
	}
	d.deliver(Result{Seq: seq, Query: query, Candidates: res})
}

// Stop drops pending and in-flight queries.
func (d *Debouncer) Stop() {
	d.seq.Add(1)
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.mu.Unlock()
}
