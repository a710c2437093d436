package music

import "testing"

func TestNoteOf(t *testing.T) {
	tests := []struct {
		name   string
		want   Note
		atonal bool
	}{
		{"C4", Note{C, 4}, false},
		{"C#4", Note{Cs, 4}, false},
		{"Db4", Note{Cs, 4}, false},
		{"Bb2", Note{As, 2}, false},
		{"F#-1", Note{Fs, -1}, false},
		{"E", Note{E, 0}, false},
		{"X", Note{}, true},
		{"", Note{}, true},
		{"C4z", Note{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NoteOf(tt.name)
			if tt.atonal {
				if !got.IsAtonal() {
					t.Errorf("Expected atonal, got %v", got)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNoteArithmetic(t *testing.T) {
	c4 := NoteOf("C4")
	if d := c4.Delta(NoteOf("A4")); d != 9 {
		t.Errorf("Expected delta 9, got %d", d)
	}
	if n := c4.Shift(-1); n.String() != "B3" {
		t.Errorf("Expected B3, got %s", n)
	}
	if n := c4.ShiftOctave(-2); n.String() != "C2" {
		t.Errorf("Expected C2, got %s", n)
	}
	if n := NoteOf("C0").Shift(-1); n.String() != "B-1" {
		t.Errorf("Expected B-1, got %s", n)
	}
	if n := NoteOf("Eb3"); n.Name(Flat) != "Eb3" || n.Name(Sharp) != "D#3" {
		t.Errorf("Expected Eb3/D#3, got %s/%s", n.Name(Flat), n.Name(Sharp))
	}
	if n := NoteOf("B3").NearestOf(C); n.String() != "C4" {
		t.Errorf("Expected nearest C to B3 to be C4, got %s", n)
	}
}

func TestPitchClassDelta(t *testing.T) {
	tests := []struct {
		from, to PitchClass
		want     int
	}{
		{C, G, -5},
		{C, F, 5},
		{C, Fs, 6},
		{A, C, 3},
		{C, C, 0},
		{None, C, 0},
	}

	for _, tt := range tests {
		if got := tt.from.Delta(tt.to); got != tt.want {
			t.Errorf("Expected %v->%v to be %d, got %d", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestNotesOfAndSort(t *testing.T) {
	notes := SortNotes(NotesOf("G4, C4, , E4"))
	if len(notes) != 3 {
		t.Fatalf("Expected 3 notes, got %d", len(notes))
	}
	if got := JoinNotes(notes, Sharp); got != "C4, E4, G4" {
		t.Errorf("Expected C4, E4, G4, got %s", got)
	}
}

func TestChordOf(t *testing.T) {
	tests := []struct {
		name    string
		root    PitchClass
		slash   PitchClass
		desc    string
		quality string
		noChord bool
	}{
		{name: "C", root: C, slash: C, desc: "", quality: "major"},
		{name: "Cm7", root: C, slash: C, desc: "m7", quality: "minor"},
		{name: "F#maj9", root: Fs, slash: Fs, desc: "maj9", quality: "major"},
		{name: "Eb/G", root: Ds, slash: G, desc: "", quality: "major"},
		{name: "Bdim", root: B, slash: B, desc: "dim", quality: "diminished"},
		{name: "NC", noChord: true},
		{name: "", noChord: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ChordOf(tt.name)
			if c.IsNoChord() != tt.noChord {
				t.Fatalf("Expected noChord=%v, got %v", tt.noChord, c.IsNoChord())
			}
			if tt.noChord {
				return
			}
			if c.Root != tt.root || c.SlashRoot != tt.slash || c.Description != tt.desc {
				t.Errorf("Expected %v/%v %q, got %v/%v %q", tt.root, tt.slash, tt.desc, c.Root, c.SlashRoot, c.Description)
			}
			if c.Quality() != tt.quality {
				t.Errorf("Expected quality %s, got %s", tt.quality, c.Quality())
			}
		})
	}
}

func TestChordMatching(t *testing.T) {
	if !ChordOf("Cm7").Equals(ChordOf("Cm7")) {
		t.Error("Expected Cm7 to equal itself")
	}
	if ChordOf("Cm7").Equals(ChordOf("Cm")) {
		t.Error("Expected Cm7 not to equal Cm")
	}
	if !ChordOf("Cm7").IsAcceptable(ChordOf("Cm/Eb")) {
		t.Error("Expected Cm7 to accept Cm/Eb")
	}
	if ChordOf("Cm").IsAcceptable(ChordOf("C")) {
		t.Error("Expected Cm not to accept C")
	}
}
