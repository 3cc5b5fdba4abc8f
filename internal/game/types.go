// internal/game/types.go
//
// Core type definitions for the daily guessing engine.
// Defines:
//   - Kind: which "X of the day" variant a puzzle belongs to.
//   - Verdict: evaluation tier of a submitted candidate (exact/partial/none).
//   - Candidate / Target: the typed shapes search results and answers are parsed into.
//   - Puzzle: the day's immutable answer plus its reveal schedule.
//   - Guess / State: one consumed round and the resumable game state.

package game

// Kind identifies a game variant.
type Kind string

const (
	KindSong   Kind = "song"
	KindArtist Kind = "artist"
	KindAlbum  Kind = "album"
	KindLyrics Kind = "lyrics"
	KindFilm   Kind = "film"
	KindClip   Kind = "clip"
	KindMashup Kind = "mashup"
)

// Verdict is the evaluation tier of a candidate.
//   - "exact":   the candidate is the answer.
//   - "partial": not the answer, but the creator (artist) matches.
//   - "none":    no match at all.
type Verdict string

const (
	VerdictExact   Verdict = "exact"
	VerdictPartial Verdict = "partial"
	VerdictNone    Verdict = "none"
)

// Status is the coarse lifecycle state of a game.
type Status string

const (
	StatusLoading Status = "loading"
	StatusPlaying Status = "playing"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
)

// Finished reports whether s is terminal.
func (s Status) Finished() bool { return s == StatusWon || s == StatusLost }

const (
	MaxRounds = 6             // attempts per game
	LastRound = MaxRounds - 1 // rounds are 0-indexed
)

// Candidate is a searchable item a player can submit as a guess.
type Candidate struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Creator string `json:"creator,omitempty"` // artist / performer name
	Image   string `json:"image,omitempty"`
	Year    string `json:"year,omitempty"`
}

// Target is one answer of a puzzle.
type Target struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Creator string `json:"creator,omitempty"`
	Cover   string `json:"cover,omitempty"`
	Media   string `json:"media,omitempty"` // preview URL, image URL or video id
}

// RevealSpec holds the six per-round reveal steps of a puzzle.
// Exactly one of the slices is populated, depending on the kind's reveal shape.
type RevealSpec struct {
	PixelFactors []int    `json:"pixelFactors,omitempty"`
	DurationsMs  []int    `json:"durationsMs,omitempty"`
	Lines        []string `json:"lines,omitempty"`
	OffsetsSec   []int    `json:"offsetsSec,omitempty"`
}

// Puzzle is the day's answer. Never mutated after construction.
type Puzzle struct {
	Kind     Kind       `json:"kind"`
	Identity string     `json:"identity"`
	Day      int64      `json:"day"`
	Target   Target     `json:"target"`
	Slots    []Target   `json:"slots,omitempty"` // mashup sub-targets
	Reveal   RevealSpec `json:"reveal"`
}

// GuessType tags a Guess.
type GuessType string

const (
	GuessSkip      GuessType = "skip"
	GuessCandidate GuessType = "candidate"
)

// Guess is one consumed round: either a skip or a wrong candidate.
type Guess struct {
	Type      GuessType  `json:"type"`
	Candidate *Candidate `json:"candidate,omitempty"`
	Verdict   Verdict    `json:"verdict,omitempty"`
}

// State is the resumable state of a single game.
type State struct {
	PuzzleIdentity string  `json:"puzzleIdentity"`
	Round          int     `json:"round"`
	Status         Status  `json:"status"`
	Guesses        []Guess `json:"guesses"`
	PerSlotSolved  []bool  `json:"perSlotSolved,omitempty"`
}

// clone returns a deep copy so callers never alias machine internals.
func (s State) clone() State {
	out := s
	out.Guesses = make([]Guess, len(s.Guesses))
	for i, g := range s.Guesses {
		if g.Candidate != nil {
			c := *g.Candidate
			g.Candidate = &c
		}
		out.Guesses[i] = g
	}
	if s.PerSlotSolved != nil {
		out.PerSlotSolved = append([]bool(nil), s.PerSlotSolved...)
	}
	return out
}
