// internal/game/engine.go
//
// Core state machine shared by every daily game variant.
// Responsibilities:
//   - Wait in "loading" until the day's puzzle is resolved.
//   - Start fresh or resume a matching snapshot.
//   - Apply candidates and skips: evaluate, append, advance the round.
//   - Track state transitions: loading → playing → won/lost.
//
// Notes:
//   - Behaviour per variant comes from KindConfig; there is one engine, not seven.
//   - Every transition is computed on a copy and swapped in, so observers never
//     see a half-applied update.
//   - A Machine is not safe for concurrent use; callers serialize access.
package game

import (
	"fmt"

	"github.com/samber/lo"
)

// Outcome describes the effect of a single submission.
type Outcome struct {
	Verdict Verdict `json:"verdict,omitempty"`
	Slot    int     `json:"slot"` // mashup slot resolved by this submission, -1 otherwise
	Status  Status  `json:"status"`
	Round   int     `json:"round"`
}

// Machine owns the round/guess/status progression of one game.
type Machine struct {
	cfg      KindConfig
	puzzle   *Puzzle
	state    State
	onChange []func(State)
}

// NewMachine returns a machine in the loading state.
func NewMachine(cfg KindConfig) *Machine {
	return &Machine{
		cfg:   cfg,
		state: State{Status: StatusLoading, Guesses: []Guess{}},
	}
}

// OnChange registers fn to be called with a copy of the state after every transition.
func (m *Machine) OnChange(fn func(State)) { m.onChange = append(m.onChange, fn) }

// Resolve leaves the loading state. A saved state is restored verbatim when it belongs
// to p and is well formed; otherwise the game starts at round 0.
// A malformed puzzle is rejected and the machine stays in loading.
func (m *Machine) Resolve(p *Puzzle, saved *State) error {
	if m.state.Status != StatusLoading {
		return nil
	}
	if err := ValidatePuzzle(p, m.cfg); err != nil {
		return err
	}

	next := State{PuzzleIdentity: p.Identity, Status: StatusPlaying, Guesses: []Guess{}}
	if m.cfg.Slots > 0 {
		next.PerSlotSolved = make([]bool, m.cfg.Slots)
	}
	if saved != nil && saved.PuzzleIdentity == p.Identity && ValidSnapshot(*saved, m.cfg) {
		next = saved.clone()
	}

	m.puzzle = p
	m.commit(next)
	return nil
}

// Submit applies a candidate guess.
func (m *Machine) Submit(c Candidate) (Outcome, error) {
	if err := m.ready(); err != nil {
		return m.outcome("", -1), err
	}
	if c.ID == "" && c.Title == "" {
		return m.outcome("", -1), ErrInvalidCandidate
	}
	if alreadyGuessed(c, m.state, m.puzzle) {
		return m.outcome("", -1), ErrAlreadyGuessed
	}

	next := m.state.clone()

	if m.cfg.Slots > 0 {
		if slot, ok := EvaluateSlots(c, m.puzzle, next.PerSlotSolved); ok {
			next.PerSlotSolved[slot] = true
			if lo.EveryBy(next.PerSlotSolved, func(b bool) bool { return b }) {
				next.Status = StatusWon
			}
			m.commit(next)
			return m.outcome(VerdictExact, slot), nil
		}
		m.consume(next, Guess{Type: GuessCandidate, Candidate: &c, Verdict: VerdictNone})
		return m.outcome(VerdictNone, -1), nil
	}

	v := Evaluate(c, m.puzzle, m.cfg)
	if v == VerdictExact {
		next.Status = StatusWon
		m.commit(next)
		return m.outcome(v, -1), nil
	}
	m.consume(next, Guess{Type: GuessCandidate, Candidate: &c, Verdict: v})
	return m.outcome(v, -1), nil
}

// Skip gives up the current round.
func (m *Machine) Skip() (Outcome, error) {
	if err := m.ready(); err != nil {
		return m.outcome("", -1), err
	}
	m.consume(m.state.clone(), Guess{Type: GuessSkip})
	return m.outcome("", -1), nil
}

// consume appends a round-consuming guess and advances (or ends) the game.
func (m *Machine) consume(next State, g Guess) {
	next.Guesses = append(next.Guesses, g)
	if next.Round < LastRound {
		next.Round++
	} else {
		next.Status = StatusLost
	}
	m.commit(next)
}

func (m *Machine) commit(next State) {
	m.state = next
	for _, fn := range m.onChange {
		fn(next.clone())
	}
}

func (m *Machine) ready() error {
	switch {
	case m.state.Status == StatusLoading:
		return ErrNotReady
	case m.state.Status.Finished():
		return ErrGameOver
	}
	return nil
}

func (m *Machine) outcome(v Verdict, slot int) Outcome {
	return Outcome{Verdict: v, Slot: slot, Status: m.state.Status, Round: m.state.Round}
}

// State returns a copy of the current state.
func (m *Machine) State() State { return m.state.clone() }

// Status is a shortcut for State().Status.
func (m *Machine) Status() Status { return m.state.Status }

// Puzzle returns the resolved puzzle, or nil while loading.
func (m *Machine) Puzzle() *Puzzle { return m.puzzle }

// Config returns the kind configuration driving this machine.
func (m *Machine) Config() KindConfig { return m.cfg }

// Fidelity is the reveal level for the current round.
func (m *Machine) Fidelity() Fidelity {
	if m.puzzle == nil {
		return Fidelity{Shape: m.cfg.Shape}
	}
	return FidelityFor(m.state.Round, m.state.Status, m.puzzle, m.cfg)
}

// ValidatePuzzle checks a puzzle has everything the engine relies on.
func ValidatePuzzle(p *Puzzle, cfg KindConfig) error {
	if p == nil {
		return fmt.Errorf("%w: nil puzzle", ErrMalformedPuzzle)
	}
	if p.Kind != cfg.Kind {
		return fmt.Errorf("%w: kind %q, want %q", ErrMalformedPuzzle, p.Kind, cfg.Kind)
	}
	if p.Identity == "" {
		return fmt.Errorf("%w: empty identity", ErrMalformedPuzzle)
	}
	if cfg.Slots > 0 {
		if len(p.Slots) != cfg.Slots {
			return fmt.Errorf("%w: %d slots, want %d", ErrMalformedPuzzle, len(p.Slots), cfg.Slots)
		}
		for i, s := range p.Slots {
			if s.ID == "" {
				return fmt.Errorf("%w: slot %d has no id", ErrMalformedPuzzle, i)
			}
		}
	} else if p.Target.ID == "" && p.Target.Title == "" {
		return fmt.Errorf("%w: empty target", ErrMalformedPuzzle)
	}

	var n int
	switch cfg.Shape {
	case RevealPixelate:
		n = len(p.Reveal.PixelFactors)
	case RevealAudio:
		n = len(p.Reveal.DurationsMs)
	case RevealLines:
		n = len(p.Reveal.Lines)
	case RevealVideo:
		n = len(p.Reveal.OffsetsSec)
	}
	if n != MaxRounds {
		return fmt.Errorf("%w: %d reveal steps, want %d", ErrMalformedPuzzle, n, MaxRounds)
	}
	return nil
}

// ValidSnapshot reports whether s is a well-formed, internally consistent state for cfg.
func ValidSnapshot(s State, cfg KindConfig) bool {
	if s.Round < 0 || s.Round > LastRound {
		return false
	}
	switch s.Status {
	case StatusPlaying, StatusWon:
		if s.Round != len(s.Guesses) {
			return false
		}
	case StatusLost:
		if s.Round != LastRound || len(s.Guesses) != MaxRounds {
			return false
		}
	default:
		return false
	}
	if cfg.Slots == 0 && len(s.PerSlotSolved) > 0 {
		return false
	}
	if cfg.Slots > 0 {
		if len(s.PerSlotSolved) != cfg.Slots {
			return false
		}
		// won exactly when every slot is solved
		all := lo.EveryBy(s.PerSlotSolved, func(b bool) bool { return b })
		if all != (s.Status == StatusWon) {
			return false
		}
	}
	for _, g := range s.Guesses {
		if g.Type != GuessSkip && (g.Type != GuessCandidate || g.Candidate == nil) {
			return false
		}
	}
	return true
}
