// internal/game/evaluate.go
//
// Answer evaluation.
//   - Evaluate:      single-target kinds → exact / partial / none.
//   - EvaluateSlots: mashup kinds → which unsolved slot (if any) the candidate resolves.
//   - identityOf:    the key used for duplicate-guess detection.

package game

import (
	"strings"

	"github.com/samber/lo"
)

// Evaluate compares a candidate against the puzzle's target.
//
// Exact when identifiers are equal, or when the kind's TitleMatch rule accepts the title.
// Partial only for kinds with a secondary attribute, when the creators match.
func Evaluate(c Candidate, p *Puzzle, cfg KindConfig) Verdict {
	t := p.Target
	if matchesTarget(c, t, cfg.TitleMatch) {
		return VerdictExact
	}
	if cfg.Partial && c.Creator != "" && t.Creator != "" && strings.EqualFold(c.Creator, t.Creator) {
		return VerdictPartial
	}
	return VerdictNone
}

// EvaluateSlots returns the first unsolved slot the candidate matches by id or title.
// A single submission never resolves more than one slot.
func EvaluateSlots(c Candidate, p *Puzzle, solved []bool) (int, bool) {
	for i, t := range p.Slots {
		if i < len(solved) && solved[i] {
			continue
		}
		if matchesTarget(c, t, TitleMatchEqual) {
			return i, true
		}
	}
	return -1, false
}

func matchesTarget(c Candidate, t Target, rule TitleMatch) bool {
	if c.ID != "" && c.ID == t.ID {
		return true
	}
	switch rule {
	case TitleMatchEqual:
		return c.Title != "" && strings.EqualFold(c.Title, t.Title)
	case TitleMatchContains:
		phrase := keyPhrase(t.Title)
		return phrase != "" && strings.Contains(strings.ToLower(c.Title), strings.ToLower(phrase))
	}
	return false
}

// keyPhrase is the distinguishing part of an "Artist - Title" string: the second
// " - " separated field, so "A - B - C" yields "B".
func keyPhrase(title string) string {
	if parts := strings.Split(title, " - "); len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(title)
}

// identityOf is the duplicate-detection key of a candidate.
// Candidates without an id fall back to their lower-cased title.
func identityOf(c Candidate) string {
	if c.ID != "" {
		return "id:" + c.ID
	}
	return "title:" + strings.ToLower(strings.TrimSpace(c.Title))
}

// alreadyGuessed reports whether c was submitted before in this game, or (mashup)
// names a slot that is already solved.
func alreadyGuessed(c Candidate, s State, p *Puzzle) bool {
	id := identityOf(c)
	seen := lo.ContainsBy(s.Guesses, func(g Guess) bool {
		return g.Type == GuessCandidate && g.Candidate != nil && identityOf(*g.Candidate) == id
	})
	if seen {
		return true
	}
	for i, t := range p.Slots {
		if i < len(s.PerSlotSolved) && s.PerSlotSolved[i] && matchesTarget(c, t, TitleMatchEqual) {
			return true
		}
	}
	return false
}
