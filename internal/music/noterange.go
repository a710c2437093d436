package music

import "math"

// NoteRange spans the lowest and highest tonal notes seen so far.
type NoteRange struct {
	low, high Note
	ok        bool
}

// RangeOf returns the range spanning the tonal notes given.
func RangeOf(notes ...Note) NoteRange {
	var r NoteRange
	r.Expand(notes...)
	return r
}

func (r *NoteRange) Expand(notes ...Note) {
	for _, n := range notes {
		if n.IsAtonal() {
			continue
		}
		if !r.ok {
			r.low, r.high, r.ok = n, n, true
			continue
		}
		if n.IsLower(r.low) {
			r.low = n
		}
		if r.high.IsLower(n) {
			r.high = n
		}
	}
}

func (r *NoteRange) ExpandRange(other NoteRange) {
	if other.ok {
		r.Expand(other.low, other.high)
	}
}

func (r NoteRange) IsEmpty() bool {
	return !r.ok
}

func (r NoteRange) Low() (Note, bool)  { return r.low, r.ok }
func (r NoteRange) High() (Note, bool) { return r.high, r.ok }

func (r NoteRange) Includes(n Note) bool {
	return r.ok && !n.IsAtonal() && !n.IsLower(r.low) && !r.high.IsLower(n)
}

// Median is the note halfway between low and high, rounded down.
func (r NoteRange) Median() (Note, bool) {
	if !r.ok {
		return AtonalNote(), false
	}
	return r.low.Shift(r.low.Delta(r.high) / 2), true
}

func (r NoteRange) Shift(semitones int) NoteRange {
	if !r.ok {
		return r
	}
	return NoteRange{low: r.low.Shift(semitones), high: r.high.Shift(semitones), ok: true}
}

func (r NoteRange) ShiftOctave(octaves int) NoteRange {
	return r.Shift(octaves * 12)
}

const maxOctaveSearch = 10

// MedianOptimalShiftOctaves is the octave shift moving r's median closest to target's.
func (r NoteRange) MedianOptimalShiftOctaves(target NoteRange) int {
	src, ok := r.Median()
	if !ok {
		return 0
	}
	dst, ok := target.Median()
	if !ok {
		return 0
	}
	best, shift := math.MaxInt, 0
	for o := maxOctaveSearch; o >= -maxOctaveSearch; o-- {
		d := abs(dst.Delta(src.ShiftOctave(o)))
		if d < best {
			best, shift = d, o
		}
	}
	return shift
}

// LowestOptimalShiftOctaves is the octave shift putting r's low note at or just above target's.
func (r NoteRange) LowestOptimalShiftOctaves(target NoteRange) int {
	if !r.ok || !target.ok {
		return 0
	}
	best, shift := math.MaxInt, 0
	for o := maxOctaveSearch; o >= -maxOctaveSearch; o-- {
		d := target.low.Delta(r.low.ShiftOctave(o))
		if d >= 0 && d < best {
			best, shift = d, o
		}
	}
	return shift
}

func (r NoteRange) String() string {
	if !r.ok {
		return "empty"
	}
	return r.low.String() + "-" + r.high.String()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
