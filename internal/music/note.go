// Package music holds the pitch, chord and timing arithmetic used by craft.
package music

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// AtonalName marks an event or audio with no specific pitch.
const AtonalName = "X"

type Accidental int

const (
	Sharp Accidental = iota
	Flat
)

// PitchClass is a semitone within an octave, C=0 through B=11, or None.
type PitchClass int

const (
	None PitchClass = iota - 1
	C
	Cs
	D
	Ds
	E
	F
	Fs
	G
	Gs
	A
	As
	B
)

var (
	sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	flatNames  = [12]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}
	letters    = map[byte]PitchClass{'C': C, 'D': D, 'E': E, 'F': F, 'G': G, 'A': A, 'B': B}
)

// parsePitchClass reads a letter and optional accidental, returning the rest of the string.
func parsePitchClass(s string) (PitchClass, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return None, ""
	}
	pc, ok := letters[strings.ToUpper(s[:1])[0]]
	if !ok {
		return None, s
	}
	rest := s[1:]
	switch {
	case strings.HasPrefix(rest, "#") || strings.HasPrefix(rest, "♯"):
		pc = (pc + 1) % 12
		rest = strings.TrimPrefix(strings.TrimPrefix(rest, "#"), "♯")
	case strings.HasPrefix(rest, "b") || strings.HasPrefix(rest, "♭"):
		pc = (pc + 11) % 12
		rest = strings.TrimPrefix(strings.TrimPrefix(rest, "b"), "♭")
	}
	return pc, rest
}

func PitchClassOf(s string) PitchClass {
	pc, _ := parsePitchClass(s)
	return pc
}

func (p PitchClass) Name(acc Accidental) string {
	if p == None {
		return AtonalName
	}
	if acc == Flat {
		return flatNames[p]
	}
	return sharpNames[p]
}

func (p PitchClass) String() string {
	return p.Name(Sharp)
}

// Delta is the shortest signed semitone move from p to other, in -5..6.
func (p PitchClass) Delta(other PitchClass) int {
	if p == None || other == None {
		return 0
	}
	d := ((int(other)-int(p))%12 + 12) % 12
	if d > 6 {
		d -= 12
	}
	return d
}

// Note is a pitch class in an octave. The zero octave starts at C0.
type Note struct {
	PitchClass PitchClass
	Octave     int
}

func AtonalNote() Note {
	return Note{PitchClass: None}
}

// NoteOf parses names like "C4", "Eb3" or "F#-1"; anything else is atonal.
func NoteOf(name string) Note {
	pc, rest := parsePitchClass(name)
	if pc == None {
		return AtonalNote()
	}
	octave := 0
	if rest = strings.TrimSpace(rest); rest != "" {
		o, err := strconv.Atoi(rest)
		if err != nil {
			return AtonalNote()
		}
		octave = o
	}
	return Note{PitchClass: pc, Octave: octave}
}

// NotesOf parses a comma separated list, skipping blanks.
func NotesOf(csv string) []Note {
	var notes []Note
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		notes = append(notes, NoteOf(part))
	}
	return notes
}

func (n Note) IsAtonal() bool {
	return n.PitchClass == None
}

// Value counts semitones above C0.
func (n Note) Value() int {
	return n.Octave*12 + int(n.PitchClass)
}

func noteOfValue(v int) Note {
	octave := v / 12
	pc := v % 12
	if pc < 0 {
		pc += 12
		octave--
	}
	return Note{PitchClass: PitchClass(pc), Octave: octave}
}

// Delta is the signed semitone distance from n to target.
func (n Note) Delta(target Note) int {
	if n.IsAtonal() || target.IsAtonal() {
		return 0
	}
	return target.Value() - n.Value()
}

func (n Note) Shift(semitones int) Note {
	if n.IsAtonal() {
		return n
	}
	return noteOfValue(n.Value() + semitones)
}

func (n Note) ShiftOctave(octaves int) Note {
	if n.IsAtonal() {
		return n
	}
	return Note{PitchClass: n.PitchClass, Octave: n.Octave + octaves}
}

// NearestOf returns the note of pitch class pc closest to n; a tritone resolves upward.
func (n Note) NearestOf(pc PitchClass) Note {
	if n.IsAtonal() || pc == None {
		return Note{PitchClass: pc, Octave: n.Octave}
	}
	return n.Shift(n.PitchClass.Delta(pc))
}

func (n Note) IsLower(other Note) bool {
	return n.Value() < other.Value()
}

func (n Note) Name(acc Accidental) string {
	if n.IsAtonal() {
		return AtonalName
	}
	return fmt.Sprintf("%s%d", n.PitchClass.Name(acc), n.Octave)
}

func (n Note) String() string {
	return n.Name(Sharp)
}

// CompareNotes orders notes by pitch, atonal first.
func CompareNotes(a, b Note) int {
	switch {
	case a.IsAtonal() && b.IsAtonal():
		return 0
	case a.IsAtonal():
		return -1
	case b.IsAtonal():
		return 1
	}
	return a.Value() - b.Value()
}

// SortNotes sorts in place by pitch and returns the slice.
func SortNotes(notes []Note) []Note {
	slices.SortFunc(notes, CompareNotes)
	return notes
}

// JoinNotes renders notes as a comma separated list.
func JoinNotes(notes []Note, acc Accidental) string {
	names := make([]string, len(notes))
	for i, n := range notes {
		names[i] = n.Name(acc)
	}
	return strings.Join(names, ", ")
}
