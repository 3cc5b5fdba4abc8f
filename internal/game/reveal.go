package game

// Fidelity is how much of the answer a round discloses.
// Only the field matching the kind's RevealShape is meaningful.
type Fidelity struct {
	Shape       RevealShape `json:"shape"`
	PixelFactor int         `json:"pixelFactor,omitempty"` // 1 = original image
	DurationMs  int         `json:"durationMs,omitempty"`
	Lines       []string    `json:"lines,omitempty"`
	OffsetSec   int         `json:"offsetSec,omitempty"`
	LoopSec     int         `json:"loopSec,omitempty"`
	Full        bool        `json:"full"`
}

// FidelityFor looks up the reveal step for round. Once the game is finished the
// maximum-clarity value is returned regardless of round.
func FidelityFor(round int, status Status, p *Puzzle, cfg KindConfig) Fidelity {
	if round < 0 {
		round = 0
	}
	if round > LastRound {
		round = LastRound
	}
	if status.Finished() {
		return maxFidelity(p, cfg)
	}

	f := Fidelity{Shape: cfg.Shape}
	r := p.Reveal
	switch cfg.Shape {
	case RevealPixelate:
		f.PixelFactor = at(r.PixelFactors, round)
	case RevealAudio:
		f.DurationMs = at(r.DurationsMs, round)
	case RevealLines:
		n := round + 1
		if n > len(r.Lines) {
			n = len(r.Lines)
		}
		f.Lines = append([]string(nil), r.Lines[:n]...)
	case RevealVideo:
		f.OffsetSec = at(r.OffsetsSec, round)
		f.LoopSec = cfg.LoopSec
	}
	return f
}

func maxFidelity(p *Puzzle, cfg KindConfig) Fidelity {
	f := Fidelity{Shape: cfg.Shape, Full: true}
	switch cfg.Shape {
	case RevealPixelate:
		f.PixelFactor = 1
	case RevealAudio:
		f.DurationMs = cfg.FullDurationMs
	case RevealLines:
		f.Lines = append([]string(nil), p.Reveal.Lines...)
	case RevealVideo:
		f.OffsetSec = at(p.Reveal.OffsetsSec, LastRound)
	}
	return f
}

func at(xs []int, i int) int {
	if i < len(xs) {
		return xs[i]
	}
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}
