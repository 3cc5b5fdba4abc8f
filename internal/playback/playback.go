// internal/playback/playback.go
//
// Timed playback of a puzzle's media.
// Responsibilities:
//   - Derive what to play for the current round (Clip) from the reveal fidelity.
//   - Drive a Player: start, fade out and stop exactly at the round's duration.
//   - Recompute the stop time when the round changes mid-playback.
//   - Emit progress events from a ticker goroutine bound to a context.
//
// Notes:
//   - Decoding and output are the Player's job; this package only schedules.
//   - The ticker only reads state; it never mutates the game.

package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/michaljagosz/omnimusle/internal/game"
)

// ErrNoMedia is returned for kinds without playable media (image, lyrics).
var ErrNoMedia = errors.New("playback: nothing to play")

const (
	DefaultFade   = 200 * time.Millisecond
	DefaultTick   = 100 * time.Millisecond
	DefaultVolume = 1.0
)

// Player is the media output. Play adds ref to the current mix starting at start.
type Player interface {
	Play(ref string, start time.Duration, volume float64) error
	Fade(from, to float64, d time.Duration)
	Stop()
	Position() time.Duration
}

// Clip is one scheduled playback.
type Clip struct {
	Refs     []string      `json:"refs"`
	Start    time.Duration `json:"start"`
	Duration time.Duration `json:"duration"` // 0 = until stopped
	Loop     bool          `json:"loop"`     // restart at Start when Duration elapses
}

// ClipFor returns what to play for the state's current fidelity. Mashup plays only the
// slots that are still unsolved; once finished it plays all of them.
func ClipFor(p *game.Puzzle, st game.State, f game.Fidelity) (Clip, error) {
	if p == nil {
		return Clip{}, ErrNoMedia
	}
	switch f.Shape {
	case game.RevealAudio:
		refs := []string{p.Target.Media}
		if len(p.Slots) > 0 {
			refs = lo.FilterMap(p.Slots, func(t game.Target, i int) (string, bool) {
				solved := i < len(st.PerSlotSolved) && st.PerSlotSolved[i]
				return t.Media, !solved || st.Status.Finished()
			})
		}
		return Clip{Refs: refs, Duration: time.Duration(f.DurationMs) * time.Millisecond}, nil

	case game.RevealVideo:
		c := Clip{Refs: []string{p.Target.Media}, Start: time.Duration(f.OffsetSec) * time.Second}
		if !f.Full {
			c.Duration = time.Duration(f.LoopSec) * time.Second
			c.Loop = true
		}
		return c, nil
	}
	return Clip{}, ErrNoMedia
}

// EventType tags an Event.
type EventType string

const (
	EventPlay     EventType = "play"
	EventProgress EventType = "progress"
	EventFade     EventType = "fade"
	EventStop     EventType = "stop"
)

// Event reports a playback transition or progress tick.
type Event struct {
	Type     EventType     `json:"type"`
	Position time.Duration `json:"position"`
	Duration time.Duration `json:"duration"`
}

// Options tunes a Session. Zero values use the defaults.
type Options struct {
	Fade    time.Duration
	Tick    time.Duration
	Volume  float64
	OnEvent func(Event)
}

// Session schedules one Player. Safe for concurrent use.
type Session struct {
	player Player
	opts   Options

	mu      sync.Mutex
	clip    Clip
	playing bool
	seek    bool // Start moved; the loop replays from the new offset
	cancel  context.CancelFunc
	done    chan struct{}
	resched chan struct{}
}

func NewSession(p Player, opts Options) *Session {
	if opts.Fade <= 0 {
		opts.Fade = DefaultFade
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Volume <= 0 {
		opts.Volume = DefaultVolume
	}
	if opts.OnEvent == nil {
		opts.OnEvent = func(Event) {}
	}
	return &Session{player: p, opts: opts}
}

// Start stops any current playback and plays clip until its duration elapses, ctx is
// cancelled or Stop is called.
func (s *Session) Start(ctx context.Context, clip Clip) error {
	s.Stop()

	s.mu.Lock()
	for _, ref := range clip.Refs {
		if err := s.player.Play(ref, clip.Start, s.opts.Volume); err != nil {
			s.mu.Unlock()
			s.player.Stop()
			return err
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	s.clip = clip
	s.seek = false
	s.playing = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.resched = make(chan struct{}, 1)
	done, resched := s.done, s.resched
	s.mu.Unlock()

	s.opts.OnEvent(Event{Type: EventPlay, Position: clip.Start, Duration: clip.Duration})
	go s.loop(ctx, done, resched)
	return nil
}

// RoundChanged applies the new round's duration to the running playback. The remaining
// time is recomputed from the current position. A different Start (a clip's next
// timestamp) restarts the refs from there.
func (s *Session) RoundChanged(clip Clip) {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	if clip.Start != s.clip.Start {
		s.clip.Start = clip.Start
		s.seek = true
	}
	s.clip.Duration = clip.Duration
	s.clip.Loop = clip.Loop
	resched := s.resched
	s.mu.Unlock()

	select {
	case resched <- struct{}{}:
	default:
	}
}

// Stop halts playback and waits for the ticker to exit.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Playing reports whether a clip is currently scheduled.
func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// remaining is the time left before the stop point; ok is false for open-ended clips.
func (s *Session) remaining() (time.Duration, bool) {
	s.mu.Lock()
	c := s.clip
	s.mu.Unlock()
	if c.Duration <= 0 {
		return 0, false
	}
	left := c.Duration - (s.player.Position() - c.Start)
	if left < 0 {
		left = 0
	}
	return left, true
}

func (s *Session) loop(ctx context.Context, done chan struct{}, resched <-chan struct{}) {
	defer close(done)
	defer s.finish()

	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	arm := func() {
		if left, ok := s.remaining(); ok {
			timer.Reset(left)
		} else {
			timer.Stop()
		}
	}
	arm()

	for {
		select {
		case <-ctx.Done():
			return

		case <-resched:
			if c, ok := s.takeSeek(); ok {
				s.seekTo(c)
			}
			arm()

		case <-ticker.C:
			s.mu.Lock()
			d := s.clip.Duration
			s.mu.Unlock()
			s.opts.OnEvent(Event{Type: EventProgress, Position: s.player.Position(), Duration: d})

		case <-timer.C:
			// a round change may have landed between the timer firing and now
			if c, ok := s.takeSeek(); ok {
				s.seekTo(c)
				arm()
				continue
			}
			s.mu.Lock()
			c := s.clip
			s.mu.Unlock()
			if c.Loop {
				s.replay(c)
				arm()
				continue
			}
			if c.Duration <= 0 {
				continue
			}
			s.player.Fade(s.opts.Volume, 0, s.opts.Fade)
			s.opts.OnEvent(Event{Type: EventFade, Position: s.player.Position(), Duration: c.Duration})
			select {
			case <-ctx.Done():
			case <-time.After(s.opts.Fade):
			}
			return
		}
	}
}

// takeSeek returns the clip to restart when RoundChanged moved its start.
func (s *Session) takeSeek() (Clip, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seek {
		return Clip{}, false
	}
	s.seek = false
	return s.clip, true
}

func (s *Session) seekTo(c Clip) {
	s.replay(c)
	s.opts.OnEvent(Event{Type: EventPlay, Position: c.Start, Duration: c.Duration})
}

// replay restarts every ref of c at c.Start.
func (s *Session) replay(c Clip) {
	s.player.Stop()
	for _, ref := range c.Refs {
		_ = s.player.Play(ref, c.Start, s.opts.Volume)
	}
}

// finish stops the player once, whichever way the loop ended.
func (s *Session) finish() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = false
	d := s.clip.Duration
	s.mu.Unlock()

	pos := s.player.Position()
	s.player.Stop()
	s.opts.OnEvent(Event{Type: EventStop, Position: pos, Duration: d})
}
