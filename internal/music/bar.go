package music

import "fmt"

// Bar is a measure of a fixed number of beats.
type Bar struct {
	Beats int
}

func BarOf(beats int) (Bar, error) {
	if beats < 1 {
		return Bar{}, fmt.Errorf("bar must have at least one beat, got %d", beats)
	}
	return Bar{Beats: beats}, nil
}

// ComputeSubsectionBeats splits total beats into 4, 3 or 2 equal runs of whole
// bars, whichever divides first; otherwise it falls back to whole bars.
func (b Bar) ComputeSubsectionBeats(total int) int {
	if b.Beats < 1 {
		return max(1, total)
	}
	bars := total / b.Beats
	for _, d := range []int{4, 3, 2} {
		if bars >= d && bars%d == 0 {
			return b.Beats * bars / d
		}
	}
	return b.Beats * max(1, bars)
}
