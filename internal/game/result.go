package game

import "strings"

// Share glyphs. The set and order are a compatibility contract for shared results.
const (
	GlyphSkip    = "⬛"
	GlyphMiss    = "🟥"
	GlyphPartial = "🟨"
	GlyphWin     = "🟩"
	GlyphUnused  = "⬜"
)

// Encode turns a game's history into a fixed six-slot glyph string.
func Encode(s State) string {
	var b strings.Builder
	used := 0
	for _, g := range s.Guesses {
		if used == MaxRounds {
			break
		}
		switch {
		case g.Type == GuessSkip:
			b.WriteString(GlyphSkip)
		case g.Verdict == VerdictPartial:
			b.WriteString(GlyphPartial)
		default:
			b.WriteString(GlyphMiss)
		}
		used++
	}
	if s.Status == StatusWon && used < MaxRounds {
		b.WriteString(GlyphWin)
		used++
	}
	for ; used < MaxRounds; used++ {
		b.WriteString(GlyphUnused)
	}
	return b.String()
}

// ShareText is the copy-to-clipboard artifact: header, grid and a trailer line.
func ShareText(cfg KindConfig, s State, url string) string {
	return cfg.Label + "\n" + Encode(s) + "\n\n" + url
}
