package music

import (
	"math/rand/v2"
	"testing"
)

func TestNoteRange(t *testing.T) {
	r := RangeOf(NoteOf("E4"), AtonalNote(), NoteOf("C3"), NoteOf("G5"))
	low, _ := r.Low()
	high, _ := r.High()
	if low.String() != "C3" || high.String() != "G5" {
		t.Errorf("Expected C3-G5, got %s", r)
	}
	if !r.Includes(NoteOf("C4")) || r.Includes(NoteOf("A5")) {
		t.Error("Expected C4 included and A5 excluded")
	}
	if m, _ := RangeOf(NoteOf("C4"), NoteOf("C5")).Median(); m.String() != "F#4" {
		t.Errorf("Expected median F#4, got %s", m)
	}
	if !RangeOf().IsEmpty() {
		t.Error("Expected empty range")
	}
}

func TestMedianOptimalShiftOctaves(t *testing.T) {
	src := RangeOf(NoteOf("C2"), NoteOf("C3"))
	dst := RangeOf(NoteOf("C4"), NoteOf("C5"))
	if got := src.MedianOptimalShiftOctaves(dst); got != 2 {
		t.Errorf("Expected 2, got %d", got)
	}
	if got := src.MedianOptimalShiftOctaves(NoteRange{}); got != 0 {
		t.Errorf("Expected 0 for empty target, got %d", got)
	}
}

func TestLowestOptimalShiftOctaves(t *testing.T) {
	src := RangeOf(NoteOf("D4"), NoteOf("A4"))
	dst := RangeOf(NoteOf("E1"), NoteOf("E2"))
	// D4 down three octaves is D1, below E1; down two is D2, the nearest at or above
	if got := src.LowestOptimalShiftOctaves(dst); got != -2 {
		t.Errorf("Expected -2, got %d", got)
	}
}

func TestNotePicker(t *testing.T) {
	voicing := NotesOf("C4, E4, G4")

	p := NewNotePicker(NoteRange{}, voicing, false)
	if got := p.Pick(NoteOf("F4")); got.String() != "E4" {
		t.Errorf("Expected E4, got %s", got)
	}
	if got := p.Pick(NoteOf("B4")); got.String() != "G4" {
		t.Errorf("Expected G4, got %s", got)
	}
	if got := p.Pick(AtonalNote()); !got.IsAtonal() {
		t.Errorf("Expected atonal passthrough, got %s", got)
	}
	if p.Picked().String() != "E4-G4" {
		t.Errorf("Expected picked range E4-G4, got %s", p.Picked())
	}

	inv := NewNotePicker(RangeOf(NoteOf("C5"), NoteOf("C6")), voicing, true)
	if got := inv.Pick(NoteOf("B4")); got.String() != "C5" {
		t.Errorf("Expected inversion C5, got %s", got)
	}
}

func TestStickyBun(t *testing.T) {
	bun := NewStickyBun("event-1", 3, rand.New(rand.NewPCG(1, 2)))
	if len(bun.Values) != 3 {
		t.Fatalf("Expected 3 values, got %d", len(bun.Values))
	}

	voicing := NotesOf("G4, C4, E4")
	first := bun.Compute(voicing, 1)

	raw, err := bun.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	again, err := ParseStickyBun(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := again.Compute(voicing, 1); got != first {
		t.Errorf("Expected stable note %s, got %s", first, got)
	}
	if !(StickyBun{}).Compute(nil, 0).IsAtonal() {
		t.Error("Expected atonal for empty voicing")
	}

	fixed := StickyBun{Values: []int{0, 99}}
	if got := fixed.Compute(voicing, 0); got.String() != "C4" {
		t.Errorf("Expected lowest voicing note C4, got %s", got)
	}
	if got := fixed.Compute(voicing, 1); got.String() != "G4" {
		t.Errorf("Expected highest voicing note G4, got %s", got)
	}
}

func TestComputeSubsectionBeats(t *testing.T) {
	bar := Bar{Beats: 4}
	tests := []struct {
		total, want int
	}{
		{64, 16},
		{48, 12},
		{24, 8},
		{8, 4},
		{20, 20},
		{2, 4},
	}
	for _, tt := range tests {
		if got := bar.ComputeSubsectionBeats(tt.total); got != tt.want {
			t.Errorf("Expected %d beats for total %d, got %d", tt.want, tt.total, got)
		}
	}
	if _, err := BarOf(0); err == nil {
		t.Error("Expected error for zero-beat bar")
	}
}
