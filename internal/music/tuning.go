package music

import (
	"fmt"
	"math"
)

const (
	minRootPitch = 1.0
	maxRootPitch = 100_000.0
)

// Tuning maps notes to frequencies in twelve-tone equal temperament.
type Tuning struct {
	root      Note
	rootPitch float64
}

func NewTuning(root Note, rootPitchHz float64) (*Tuning, error) {
	if root.IsAtonal() {
		return nil, fmt.Errorf("tuning root note must be tonal")
	}
	if rootPitchHz < minRootPitch || rootPitchHz > maxRootPitch {
		return nil, fmt.Errorf("tuning root pitch must be between %v and %v Hz, got %v", minRootPitch, maxRootPitch, rootPitchHz)
	}
	return &Tuning{root: root, rootPitch: rootPitchHz}, nil
}

// Pitch returns the frequency in Hz, or 0 for an atonal note.
func (t *Tuning) Pitch(n Note) float64 {
	if n.IsAtonal() {
		return 0
	}
	return t.rootPitch * math.Pow(2, float64(t.root.Delta(n))/12)
}

// Note returns the note nearest to a frequency.
func (t *Tuning) Note(pitchHz float64) Note {
	if pitchHz <= 0 {
		return AtonalNote()
	}
	semitones := int(math.Round(12 * math.Log2(pitchHz/t.rootPitch)))
	return t.root.Shift(semitones)
}
