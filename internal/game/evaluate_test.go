package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	artist := &Puzzle{Kind: KindArtist, Target: Target{ID: "412", Title: "Queen", Creator: "Queen"}}
	film := &Puzzle{Kind: KindFilm, Target: Target{ID: "744", Title: "Top Gun"}}

	cases := []struct {
		name string
		p    *Puzzle
		c    Candidate
		want Verdict
	}{
		{"song id", songPuzzle(), cand("1109731", "whatever", ""), VerdictExact},
		{"song title equality", songPuzzle(), cand("555", "bohemian rhapsody", "Queen"), VerdictExact},
		{"song same artist", songPuzzle(), cand("555", "We Will Rock You", "queen"), VerdictPartial},
		{"song nothing", songPuzzle(), cand("555", "Billie Jean", "Michael Jackson"), VerdictNone},
		{"song empty creator", songPuzzle(), cand("555", "Billie Jean", ""), VerdictNone},
		{"album same artist", albumPuzzle(), cand("9", "In Utero", "Nirvana"), VerdictPartial},
		{"album title is not enough", albumPuzzle(), cand("9", "Nevermind", "Someone"), VerdictNone},
		{"lyrics title", lyricsPuzzle(), cand("1", "Billie Jean", "Cover Band"), VerdictExact},
		{"lyrics artist", lyricsPuzzle(), cand("1", "Thriller", "Michael Jackson"), VerdictPartial},
		{"artist has no partial", artist, cand("1", "Queen Latifah", "Queen"), VerdictNone},
		{"artist id", artist, cand("412", "Queen", ""), VerdictExact},
		{"film has no partial", film, cand("745", "Top Gun: Maverick", ""), VerdictNone},
		{"film id", film, cand("744", "Top Gun", ""), VerdictExact},
		{"clip key phrase", clipPuzzle(), cand("77", "Take On Me (2017 Remaster)", "a-ha"), VerdictExact},
		{"clip key phrase case", clipPuzzle(), cand("77", "TAKE ON ME", "a-ha"), VerdictExact},
		{"clip same artist is none", clipPuzzle(), cand("77", "Hunting High and Low", "a-ha"), VerdictNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Evaluate(tc.c, tc.p, Kinds[tc.p.Kind]))
		})
	}
}

func TestKeyPhrase(t *testing.T) {
	require.Equal(t, "Take On Me", keyPhrase("a-ha - Take On Me"))
	require.Equal(t, "B.Y.O.B.", keyPhrase("System Of A Down - B.Y.O.B."))
	require.Equal(t, "Thriller", keyPhrase("Thriller"))
	require.Equal(t, "Trailing -", keyPhrase("Trailing - "))
	require.Equal(t, "Under Pressure", keyPhrase("Queen - Under Pressure - Live at Wembley"))

	p := clipPuzzle()
	p.Target.Title = "Queen - Under Pressure - Live at Wembley"
	require.Equal(t, VerdictExact, Evaluate(cand("78", "Under Pressure (Remastered 2011)", "Queen"), p, Kinds[KindClip]))
}

func TestEvaluateSlots_AtMostOne(t *testing.T) {
	p := mashupPuzzle()
	// same track placed in two slots: only the first unsolved one resolves
	p.Slots[2] = p.Slots[0]

	slot, ok := EvaluateSlots(cand("1109731", "", ""), p, []bool{false, false, false})
	require.True(t, ok)
	require.Equal(t, 0, slot)

	slot, ok = EvaluateSlots(cand("1109731", "", ""), p, []bool{true, false, false})
	require.True(t, ok)
	require.Equal(t, 2, slot)

	_, ok = EvaluateSlots(cand("1", "Nope", ""), p, []bool{false, false, false})
	require.False(t, ok)
}
