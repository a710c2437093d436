package fabricator

import (
	"cmp"
	"slices"

	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/marble"
	"github.com/cesargomez89/segmentcraft/internal/music"
)

func (f *Fabricator) Choices() []domain.SegmentChoice {
	return f.repos.Choices.List(f.segment.ID)
}

func (f *Fabricator) Arrangements() []domain.SegmentChoiceArrangement {
	return f.repos.Arrangements.List(f.segment.ID)
}

func (f *Fabricator) Picks() []domain.SegmentChoiceArrangementPick {
	return f.repos.Picks.List(f.segment.ID)
}

func (f *Fabricator) Memes() []domain.SegmentMeme {
	return f.repos.Memes.List(f.segment.ID)
}

func (f *Fabricator) Messages() []domain.SegmentMessage {
	return f.repos.Messages.List(f.segment.ID)
}

func (f *Fabricator) Metas() []domain.SegmentMeta {
	return f.repos.Metas.List(f.segment.ID)
}

func (f *Fabricator) Voicings() []domain.SegmentChordVoicing {
	return f.repos.Voicings.List(f.segment.ID)
}

// Chords returns the segment's chords sorted by position.
func (f *Fabricator) Chords() []domain.SegmentChord {
	chords := f.repos.Chords.List(f.segment.ID)
	slices.SortStableFunc(chords, func(a, b domain.SegmentChord) int { return cmp.Compare(a.Position, b.Position) })
	return chords
}

// PicksOfChoice returns the picks arranged under a choice, ordered by start.
func (f *Fabricator) PicksOfChoice(choiceID string) []domain.SegmentChoiceArrangementPick {
	arrangements := make(map[string]bool)
	for _, a := range f.Arrangements() {
		if a.SegmentChoiceID == choiceID {
			arrangements[a.ID] = true
		}
	}
	var out []domain.SegmentChoiceArrangementPick
	for _, p := range f.Picks() {
		if arrangements[p.SegmentChoiceArrangementID] {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.SegmentChoiceArrangementPick) int {
		return cmp.Compare(a.StartAtSegmentMicros, b.StartAtSegmentMicros)
	})
	return out
}

// CurrentChoiceOfType returns the segment-level choice of a program type,
// ignoring per-voice choices.
func (f *Fabricator) CurrentChoiceOfType(t domain.ProgramType) (domain.SegmentChoice, bool) {
	for _, c := range f.Choices() {
		if c.ProgramType == t && c.ProgramVoiceID == "" && c.InstrumentID == "" {
			return c, true
		}
	}
	return domain.SegmentChoice{}, false
}

// GetChordAt returns the last chord at or before a beat position.
func (f *Fabricator) GetChordAt(position float64) (domain.SegmentChord, bool) {
	if c, ok := f.chordAt[position]; ok {
		if c == nil {
			return domain.SegmentChord{}, false
		}
		return *c, true
	}

	var found *domain.SegmentChord
	for _, c := range f.Chords() {
		if c.Position > position {
			break
		}
		found = &c
	}
	f.chordAt[position] = found
	if found == nil {
		return domain.SegmentChord{}, false
	}
	return *found, true
}

// ChooseVoicing picks one of the chord's voicings for an instrument type that
// has at least one tonal note.
func (f *Fabricator) ChooseVoicing(chord domain.SegmentChord, t domain.InstrumentType) (domain.SegmentChordVoicing, bool) {
	var candidates []domain.SegmentChordVoicing
	for _, v := range f.Voicings() {
		if v.SegmentChordID != chord.ID || v.Type != t {
			continue
		}
		if !music.RangeOf(music.NotesOf(v.Notes)...).IsEmpty() {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return domain.SegmentChordVoicing{}, false
	}
	return candidates[marble.QuickPick(f.rng, len(candidates))], true
}

// ProgramVoicingNoteRange spans every voicing note of an instrument type in the segment.
func (f *Fabricator) ProgramVoicingNoteRange(t domain.InstrumentType) music.NoteRange {
	var r music.NoteRange
	for _, v := range f.Voicings() {
		if v.Type == t {
			r.Expand(music.NotesOf(v.Notes)...)
		}
	}
	return r
}
