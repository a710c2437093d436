package fabricator

import (
	"slices"

	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/marble"
	"github.com/cesargomez89/segmentcraft/internal/music"
)

func (f *Fabricator) computeType() (domain.SegmentType, error) {
	if f.segment.Offset == 0 {
		return domain.SegmentTypeInitial, nil
	}
	previous := f.retro.PreviousSegment()
	if previous == nil {
		return "", domain.Fatalf("segment %s at offset %d has no previous segment", f.segment.ID, f.segment.Offset)
	}

	previousMain, err := f.retro.PreviousChoiceOfType(domain.ProgramTypeMain, domain.SegmentTypePending)
	if err != nil {
		return "", err
	}
	if f.HasMoreSequenceBindingOffsets(*previousMain, 1) && f.config.MainProgramLengthMaxDelta > previous.Delta {
		return domain.SegmentTypeContinue, nil
	}

	previousMacro, err := f.retro.PreviousChoiceOfType(domain.ProgramTypeMacro, domain.SegmentTypePending)
	if err != nil {
		return "", err
	}
	if previousMacro != nil && f.HasMoreSequenceBindingOffsets(*previousMacro, 2) {
		return domain.SegmentTypeNextMain, nil
	}
	return domain.SegmentTypeNextMacro, nil
}

// IsContinuationOfMacroProgram is true when the macro program carries over
// from the previous segment.
func (f *Fabricator) IsContinuationOfMacroProgram() bool {
	return f.isType(domain.SegmentTypeContinue, domain.SegmentTypeNextMain)
}

// PreviousChoiceOfType looks up the previous segment's choice of a program type.
func (f *Fabricator) PreviousChoiceOfType(t domain.ProgramType) (*domain.SegmentChoice, error) {
	current, err := f.Type()
	if err != nil {
		return nil, err
	}
	return f.retro.PreviousChoiceOfType(t, current)
}

// ChoiceIfContinuedOfVoice returns the previous segment's choice for a voice
// with the same name and type, but only when this segment continues it.
func (f *Fabricator) ChoiceIfContinuedOfVoice(voice domain.ProgramVoice) (domain.SegmentChoice, bool) {
	if !f.isType(domain.SegmentTypeContinue) {
		return domain.SegmentChoice{}, false
	}
	for _, c := range f.retro.Choices() {
		prior, ok := f.material.Voice(c.ProgramVoiceID)
		if ok && prior.Name == voice.Name && prior.Type == voice.Type {
			return c, true
		}
	}
	return domain.SegmentChoice{}, false
}

// ChoiceIfContinuedOfInstrument is the instrument-level counterpart of ChoiceIfContinuedOfVoice.
func (f *Fabricator) ChoiceIfContinuedOfInstrument(t domain.InstrumentType, modes ...domain.InstrumentMode) (domain.SegmentChoice, bool) {
	if !f.isType(domain.SegmentTypeContinue) {
		return domain.SegmentChoice{}, false
	}
	prior := f.retro.PreviousChoicesOfInstrument(t, modes...)
	if len(prior) == 0 {
		return domain.SegmentChoice{}, false
	}
	return prior[0], true
}

// KeyForChoice is the sequence key when set, otherwise the program key.
func (f *Fabricator) KeyForChoice(choice domain.SegmentChoice) string {
	if seq, ok := f.SequenceOf(choice); ok && seq.Key != "" {
		return seq.Key
	}
	if p, ok := f.material.Program(choice.ProgramID); ok {
		return p.Key
	}
	return ""
}

// SequenceOf resolves the sequence a choice plays, through its binding or
// sequence id, else a random sequence of its program that stays fixed for
// the rest of the segment.
func (f *Fabricator) SequenceOf(choice domain.SegmentChoice) (domain.ProgramSequence, bool) {
	if seq, ok := f.sequences[choice.ID]; ok {
		return seq, true
	}

	var seq domain.ProgramSequence
	var ok bool
	switch {
	case choice.ProgramSequenceBindingID != "":
		if b, found := f.material.SequenceBinding(choice.ProgramSequenceBindingID); found {
			seq, ok = f.material.Sequence(b.ProgramSequenceID)
		}
	case choice.ProgramSequenceID != "":
		seq, ok = f.material.Sequence(choice.ProgramSequenceID)
	default:
		if p, found := f.material.Program(choice.ProgramID); found {
			seq, ok = f.RandomlySelectedSequence(p)
		}
	}
	if ok {
		f.sequences[choice.ID] = seq
	}
	return seq, ok
}

// NextSequenceBindingOffset is the next greater available offset of the
// choice's program, or 0 when the binding is the last one.
func (f *Fabricator) NextSequenceBindingOffset(choice domain.SegmentChoice) int {
	b, ok := f.material.SequenceBinding(choice.ProgramSequenceBindingID)
	if !ok {
		return 0
	}
	for _, o := range f.material.AvailableOffsets(b) {
		if o > b.Offset {
			return o
		}
	}
	return 0
}

// HasMoreSequenceBindingOffsets reports whether at least n offsets remain after the choice's binding.
func (f *Fabricator) HasMoreSequenceBindingOffsets(choice domain.SegmentChoice, n int) bool {
	b, ok := f.material.SequenceBinding(choice.ProgramSequenceBindingID)
	if !ok {
		return false
	}
	offsets := f.material.AvailableOffsets(b)
	i := slices.Index(offsets, b.Offset)
	return i >= 0 && i < len(offsets)-n
}

// SecondMacroSequenceBindingOffset skips the opening offset of a macro program when it has more than one.
func (f *Fabricator) SecondMacroSequenceBindingOffset(programID string) int {
	var offsets []int
	for _, b := range f.material.SequenceBindingsOfProgram(programID) {
		offsets = append(offsets, b.Offset)
	}
	slices.Sort(offsets)
	offsets = slices.Compact(offsets)
	switch len(offsets) {
	case 0:
		return 0
	case 1:
		return offsets[0]
	default:
		return offsets[1]
	}
}

// ProgramSequenceChords keeps, per position, the chord with the most voicing notes.
func (f *Fabricator) ProgramSequenceChords(seq domain.ProgramSequence) []domain.ProgramSequenceChord {
	best := make(map[float64]domain.ProgramSequenceChord)
	notes := make(map[float64]int)
	var positions []float64
	for _, c := range f.material.ChordsOfSequence(seq.ID) {
		n := 0
		for _, v := range f.material.VoicingsOfChord(c.ID) {
			n += len(music.NotesOf(v.Notes))
		}
		_, seen := best[c.Position]
		if !seen {
			positions = append(positions, c.Position)
		}
		if !seen || n > notes[c.Position] {
			best[c.Position] = c
			notes[c.Position] = n
		}
	}
	slices.Sort(positions)
	out := make([]domain.ProgramSequenceChord, 0, len(positions))
	for _, p := range positions {
		out = append(out, best[p])
	}
	return out
}

func (f *Fabricator) pickUniform(ids []string) (string, bool) {
	bag := marble.New(f.rng)
	for _, id := range ids {
		bag.Add(id, 1)
	}
	id, err := bag.Pick()
	if err != nil {
		return "", false
	}
	return id, true
}

func (f *Fabricator) RandomlySelectedSequence(program domain.Program) (domain.ProgramSequence, bool) {
	var ids []string
	for _, s := range f.material.SequencesOfProgram(program.ID) {
		ids = append(ids, s.ID)
	}
	id, ok := f.pickUniform(ids)
	if !ok {
		return domain.ProgramSequence{}, false
	}
	return f.material.Sequence(id)
}

// RandomlySelectedSequenceBindingAtOffset falls back to the nearest offset the program has.
func (f *Fabricator) RandomlySelectedSequenceBindingAtOffset(programID string, offset int) (domain.ProgramSequenceBinding, bool) {
	var ids []string
	for _, b := range f.material.BindingsAtOffsetOfProgram(programID, offset, true) {
		ids = append(ids, b.ID)
	}
	id, ok := f.pickUniform(ids)
	if !ok {
		return domain.ProgramSequenceBinding{}, false
	}
	return f.material.SequenceBinding(id)
}

// RandomlySelectedPatternOfSequenceByVoice picks a pattern of the choice's
// sequence written for the choice's voice.
func (f *Fabricator) RandomlySelectedPatternOfSequenceByVoice(choice domain.SegmentChoice) (domain.ProgramSequencePattern, bool) {
	seq, ok := f.SequenceOf(choice)
	if !ok {
		return domain.ProgramSequencePattern{}, false
	}
	var ids []string
	for _, p := range f.material.PatternsOfSequenceAndVoice(seq.ID, choice.ProgramVoiceID) {
		ids = append(ids, p.ID)
	}
	id, ok := f.pickUniform(ids)
	if !ok {
		return domain.ProgramSequencePattern{}, false
	}
	return f.material.Pattern(id)
}
