package game

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	skip := Guess{Type: GuessSkip}
	miss := Guess{Type: GuessCandidate, Candidate: &Candidate{ID: "1"}, Verdict: VerdictNone}
	near := Guess{Type: GuessCandidate, Candidate: &Candidate{ID: "2"}, Verdict: VerdictPartial}

	cases := []struct {
		name string
		s    State
		want string
	}{
		{"two skips then win", State{Status: StatusWon, Round: 2, Guesses: []Guess{skip, skip}}, "⬛⬛🟩⬜⬜⬜"},
		{"partials then loss", State{Status: StatusLost, Round: 5, Guesses: []Guess{near, near, near, miss, miss, miss}}, "🟨🟨🟨🟥🟥🟥"},
		{"first try", State{Status: StatusWon}, "🟩⬜⬜⬜⬜⬜"},
		{"win on last round", State{Status: StatusWon, Round: 5, Guesses: []Guess{skip, miss, near, skip, miss}}, "⬛🟥🟨⬛🟥🟩"},
		{"in progress", State{Status: StatusPlaying, Round: 1, Guesses: []Guess{miss}}, "🟥⬜⬜⬜⬜⬜"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Encode(tc.s)
			require.Equal(t, tc.want, got)
			require.Equal(t, MaxRounds, utf8.RuneCountInString(got))
		})
	}
}

func TestEncode_NeverExceedsSixSlots(t *testing.T) {
	skip := Guess{Type: GuessSkip}
	s := State{Status: StatusWon, Guesses: []Guess{skip, skip, skip, skip, skip, skip, skip}}
	require.Equal(t, "⬛⬛⬛⬛⬛⬛", Encode(s))
}

func TestShareText(t *testing.T) {
	s := State{Status: StatusWon, Round: 1, Guesses: []Guess{{Type: GuessSkip}}}
	got := ShareText(Kinds[KindFilm], s, "https://omnimusle.example")
	require.Equal(t, "Film of the Day\n⬛🟩⬜⬜⬜⬜\n\nhttps://omnimusle.example", got)
}
