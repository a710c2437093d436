package fabricator

import (
	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/meme"
)

func (f *Fabricator) memeNames() []string {
	memes := f.Memes()
	names := make([]string, 0, len(memes))
	for _, m := range memes {
		names = append(names, m.Name)
	}
	return names
}

// memeNamesOfChoice collects the distinct memes a choice brings into the segment.
func (f *Fabricator) memeNamesOfChoice(c domain.SegmentChoice) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if n := meme.Upper(name); n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	if c.ProgramID != "" {
		for _, m := range f.material.MemesOfProgram(c.ProgramID) {
			add(m.Name)
		}
	}
	if c.ProgramSequenceBindingID != "" {
		for _, m := range f.material.MemesOfSequenceBinding(c.ProgramSequenceBindingID) {
			add(m.Name)
		}
	}
	if c.InstrumentID != "" {
		for _, m := range f.material.MemesOfInstrument(c.InstrumentID) {
			add(m.Name)
		}
	}
	return names
}

func (f *Fabricator) isometry(sources []string) *meme.Isometry {
	return meme.NewIsometry(f.taxonomy, meme.Stemmed, sources)
}

// MemeIsometryOfSegment scores candidates against every meme the segment has so far.
func (f *Fabricator) MemeIsometryOfSegment() *meme.Isometry {
	return f.isometry(f.memeNames())
}

// MemeIsometryOfCurrentMacro scores candidates against the memes of the
// macro program and binding chosen for this segment.
func (f *Fabricator) MemeIsometryOfCurrentMacro() *meme.Isometry {
	macro, ok := f.CurrentChoiceOfType(domain.ProgramTypeMacro)
	if !ok {
		return f.isometry(nil)
	}
	return f.isometry(f.memeNamesOfChoice(macro))
}

// MemeIsometryOfNextSequenceInPreviousMacro scores candidates against where
// the previous macro program was heading: its program memes plus the memes
// of the binding after the one it played.
func (f *Fabricator) MemeIsometryOfNextSequenceInPreviousMacro() *meme.Isometry {
	previous, err := f.PreviousChoiceOfType(domain.ProgramTypeMacro)
	if err != nil || previous == nil {
		return f.isometry(nil)
	}

	var sources []string
	for _, m := range f.material.MemesOfProgram(previous.ProgramID) {
		sources = append(sources, m.Name)
	}
	if b, ok := f.material.SequenceBinding(previous.ProgramSequenceBindingID); ok {
		for _, next := range f.material.BindingsAtOffsetOfProgram(previous.ProgramID, b.Offset+1, true) {
			for _, m := range f.material.MemesOfSequenceBinding(next.ID) {
				sources = append(sources, m.Name)
			}
		}
	}
	return f.isometry(sources)
}
