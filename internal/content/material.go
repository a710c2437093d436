// Package content provides the read-only source material craft selects from.
package content

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/cesargomez89/segmentcraft/internal/domain"
)

// Document is the serialized layout of a content snapshot.
type Document struct {
	Templates                    []domain.Template                    `yaml:"templates"`
	TemplateBindings             []domain.TemplateBinding             `yaml:"templateBindings"`
	Programs                     []domain.Program                     `yaml:"programs"`
	ProgramMemes                 []domain.ProgramMeme                 `yaml:"programMemes"`
	ProgramSequences             []domain.ProgramSequence             `yaml:"programSequences"`
	ProgramSequenceBindings      []domain.ProgramSequenceBinding      `yaml:"programSequenceBindings"`
	ProgramSequenceBindingMemes  []domain.ProgramSequenceBindingMeme  `yaml:"programSequenceBindingMemes"`
	ProgramSequenceChords        []domain.ProgramSequenceChord        `yaml:"programSequenceChords"`
	ProgramSequenceChordVoicings []domain.ProgramSequenceChordVoicing `yaml:"programSequenceChordVoicings"`
	ProgramVoices                []domain.ProgramVoice                `yaml:"programVoices"`
	ProgramVoiceTracks           []domain.ProgramVoiceTrack           `yaml:"programVoiceTracks"`
	ProgramSequencePatterns      []domain.ProgramSequencePattern      `yaml:"programSequencePatterns"`
	ProgramSequencePatternEvents []domain.ProgramSequencePatternEvent `yaml:"programSequencePatternEvents"`
	Instruments                  []domain.Instrument                  `yaml:"instruments"`
	InstrumentMemes              []domain.InstrumentMeme              `yaml:"instrumentMemes"`
	InstrumentAudios             []domain.InstrumentAudio             `yaml:"instrumentAudios"`
}

// SourceMaterial is an immutable, indexed view over a Document. When scoped
// to a template it also knows which programs and instruments are bound to the
// template directly rather than through a library.
type SourceMaterial struct {
	doc Document

	templates    map[string]domain.Template
	programs     map[string]domain.Program
	sequences    map[string]domain.ProgramSequence
	bindings     map[string]domain.ProgramSequenceBinding
	voices       map[string]domain.ProgramVoice
	tracks       map[string]domain.ProgramVoiceTrack
	patterns     map[string]domain.ProgramSequencePattern
	events       map[string]domain.ProgramSequencePatternEvent
	chords       map[string]domain.ProgramSequenceChord
	instruments  map[string]domain.Instrument
	audios       map[string]domain.InstrumentAudio
	boundProgram map[string]bool
	boundInstr   map[string]bool
	templateID   string
}

// New indexes a document, rejecting duplicate ids and dangling references.
func New(doc Document) (*SourceMaterial, error) {
	s := &SourceMaterial{
		doc:          doc,
		templates:    make(map[string]domain.Template),
		programs:     make(map[string]domain.Program),
		sequences:    make(map[string]domain.ProgramSequence),
		bindings:     make(map[string]domain.ProgramSequenceBinding),
		voices:       make(map[string]domain.ProgramVoice),
		tracks:       make(map[string]domain.ProgramVoiceTrack),
		patterns:     make(map[string]domain.ProgramSequencePattern),
		events:       make(map[string]domain.ProgramSequencePatternEvent),
		chords:       make(map[string]domain.ProgramSequenceChord),
		instruments:  make(map[string]domain.Instrument),
		audios:       make(map[string]domain.InstrumentAudio),
		boundProgram: make(map[string]bool),
		boundInstr:   make(map[string]bool),
	}

	var problems []string
	seen := make(map[string]bool)
	check := func(kind string, entity any, id string) {
		if err := validate.Struct(entity); err != nil {
			problems = append(problems, fmt.Sprintf("%s %q: %v", kind, id, err))
		}
		if id != "" && seen[id] {
			problems = append(problems, fmt.Sprintf("%s %q: duplicate id", kind, id))
		}
		seen[id] = true
	}
	requireParent := func(kind, id, parentKind, parentID string, ok bool) {
		if !ok {
			problems = append(problems, fmt.Sprintf("%s %q references missing %s %q", kind, id, parentKind, parentID))
		}
	}

	for _, t := range doc.Templates {
		check("template", t, t.ID)
		s.templates[t.ID] = t
	}
	for _, p := range doc.Programs {
		check("program", p, p.ID)
		s.programs[p.ID] = p
	}
	for _, i := range doc.Instruments {
		check("instrument", i, i.ID)
		s.instruments[i.ID] = i
	}
	for _, b := range doc.TemplateBindings {
		check("template binding", b, b.ID)
		_, ok := s.templates[b.TemplateID]
		requireParent("template binding", b.ID, "template", b.TemplateID, ok)
	}
	for _, m := range doc.ProgramMemes {
		check("program meme", m, m.ID)
		_, ok := s.programs[m.ProgramID]
		requireParent("program meme", m.ID, "program", m.ProgramID, ok)
	}
	for _, q := range doc.ProgramSequences {
		check("sequence", q, q.ID)
		_, ok := s.programs[q.ProgramID]
		requireParent("sequence", q.ID, "program", q.ProgramID, ok)
		s.sequences[q.ID] = q
	}
	for _, b := range doc.ProgramSequenceBindings {
		check("sequence binding", b, b.ID)
		_, ok := s.sequences[b.ProgramSequenceID]
		requireParent("sequence binding", b.ID, "sequence", b.ProgramSequenceID, ok)
		s.bindings[b.ID] = b
	}
	for _, m := range doc.ProgramSequenceBindingMemes {
		check("sequence binding meme", m, m.ID)
		_, ok := s.bindings[m.ProgramSequenceBindingID]
		requireParent("sequence binding meme", m.ID, "sequence binding", m.ProgramSequenceBindingID, ok)
	}
	for _, v := range doc.ProgramVoices {
		check("voice", v, v.ID)
		_, ok := s.programs[v.ProgramID]
		requireParent("voice", v.ID, "program", v.ProgramID, ok)
		s.voices[v.ID] = v
	}
	for _, t := range doc.ProgramVoiceTracks {
		check("track", t, t.ID)
		_, ok := s.voices[t.ProgramVoiceID]
		requireParent("track", t.ID, "voice", t.ProgramVoiceID, ok)
		s.tracks[t.ID] = t
	}
	for _, c := range doc.ProgramSequenceChords {
		check("chord", c, c.ID)
		_, ok := s.sequences[c.ProgramSequenceID]
		requireParent("chord", c.ID, "sequence", c.ProgramSequenceID, ok)
		s.chords[c.ID] = c
	}
	for _, v := range doc.ProgramSequenceChordVoicings {
		check("chord voicing", v, v.ID)
		_, ok := s.chords[v.ProgramSequenceChordID]
		requireParent("chord voicing", v.ID, "chord", v.ProgramSequenceChordID, ok)
		_, ok = s.voices[v.ProgramVoiceID]
		requireParent("chord voicing", v.ID, "voice", v.ProgramVoiceID, ok)
	}
	for _, p := range doc.ProgramSequencePatterns {
		check("pattern", p, p.ID)
		_, ok := s.sequences[p.ProgramSequenceID]
		requireParent("pattern", p.ID, "sequence", p.ProgramSequenceID, ok)
		_, ok = s.voices[p.ProgramVoiceID]
		requireParent("pattern", p.ID, "voice", p.ProgramVoiceID, ok)
		s.patterns[p.ID] = p
	}
	for _, e := range doc.ProgramSequencePatternEvents {
		check("event", e, e.ID)
		_, ok := s.patterns[e.ProgramSequencePatternID]
		requireParent("event", e.ID, "pattern", e.ProgramSequencePatternID, ok)
		s.events[e.ID] = e
	}
	for _, m := range doc.InstrumentMemes {
		check("instrument meme", m, m.ID)
		_, ok := s.instruments[m.InstrumentID]
		requireParent("instrument meme", m.ID, "instrument", m.InstrumentID, ok)
	}
	for _, a := range doc.InstrumentAudios {
		check("audio", a, a.ID)
		_, ok := s.instruments[a.InstrumentID]
		requireParent("audio", a.ID, "instrument", a.InstrumentID, ok)
		s.audios[a.ID] = a
	}

	if len(problems) > 0 {
		return nil, domain.Validationf("invalid content:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return s, nil
}

// ForTemplate returns the subset of material bound to a template, directly
// or through a library, remembering which items were bound directly.
func (s *SourceMaterial) ForTemplate(templateID string) (*SourceMaterial, error) {
	tmpl, ok := s.templates[templateID]
	if !ok {
		return nil, domain.Existencef("template %s not in content", templateID)
	}

	direct := make(map[string]bool)
	libraries := make(map[string]bool)
	var bindings []domain.TemplateBinding
	for _, b := range s.doc.TemplateBindings {
		if b.TemplateID != templateID {
			continue
		}
		bindings = append(bindings, b)
		switch b.ContentType {
		case domain.ContentBindingLibrary:
			libraries[b.TargetID] = true
		default:
			direct[b.TargetID] = true
		}
	}

	programs := make(map[string]bool)
	instruments := make(map[string]bool)
	sub := Document{Templates: []domain.Template{tmpl}, TemplateBindings: bindings}
	for _, p := range s.doc.Programs {
		if direct[p.ID] || libraries[p.LibraryID] {
			programs[p.ID] = true
			sub.Programs = append(sub.Programs, p)
		}
	}
	for _, i := range s.doc.Instruments {
		if direct[i.ID] || libraries[i.LibraryID] {
			instruments[i.ID] = true
			sub.Instruments = append(sub.Instruments, i)
		}
	}
	sub.ProgramMemes = filter(s.doc.ProgramMemes, func(e domain.ProgramMeme) bool { return programs[e.ProgramID] })
	sub.ProgramSequences = filter(s.doc.ProgramSequences, func(e domain.ProgramSequence) bool { return programs[e.ProgramID] })
	sub.ProgramSequenceBindings = filter(s.doc.ProgramSequenceBindings, func(e domain.ProgramSequenceBinding) bool { return programs[e.ProgramID] })
	sub.ProgramSequenceBindingMemes = filter(s.doc.ProgramSequenceBindingMemes, func(e domain.ProgramSequenceBindingMeme) bool { return programs[e.ProgramID] })
	sub.ProgramSequenceChords = filter(s.doc.ProgramSequenceChords, func(e domain.ProgramSequenceChord) bool { return programs[e.ProgramID] })
	sub.ProgramSequenceChordVoicings = filter(s.doc.ProgramSequenceChordVoicings, func(e domain.ProgramSequenceChordVoicing) bool { return programs[e.ProgramID] })
	sub.ProgramVoices = filter(s.doc.ProgramVoices, func(e domain.ProgramVoice) bool { return programs[e.ProgramID] })
	sub.ProgramVoiceTracks = filter(s.doc.ProgramVoiceTracks, func(e domain.ProgramVoiceTrack) bool { return programs[e.ProgramID] })
	sub.ProgramSequencePatterns = filter(s.doc.ProgramSequencePatterns, func(e domain.ProgramSequencePattern) bool { return programs[e.ProgramID] })
	sub.ProgramSequencePatternEvents = filter(s.doc.ProgramSequencePatternEvents, func(e domain.ProgramSequencePatternEvent) bool { return programs[e.ProgramID] })
	sub.InstrumentMemes = filter(s.doc.InstrumentMemes, func(e domain.InstrumentMeme) bool { return instruments[e.InstrumentID] })
	sub.InstrumentAudios = filter(s.doc.InstrumentAudios, func(e domain.InstrumentAudio) bool { return instruments[e.InstrumentID] })

	scoped, err := New(sub)
	if err != nil {
		return nil, err
	}
	scoped.templateID = templateID
	for id := range direct {
		if programs[id] {
			scoped.boundProgram[id] = true
		}
		if instruments[id] {
			scoped.boundInstr[id] = true
		}
	}
	return scoped, nil
}

func filter[E any](in []E, keep func(E) bool) []E {
	var out []E
	for _, e := range in {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// TemplateID is set on material scoped with ForTemplate.
func (s *SourceMaterial) TemplateID() string {
	return s.templateID
}

func (s *SourceMaterial) Template(id string) (domain.Template, bool) {
	t, ok := s.templates[id]
	return t, ok
}

func (s *SourceMaterial) Templates() []domain.Template {
	return slices.Clone(s.doc.Templates)
}

// IsProgramBound reports whether the program was bound to the template directly.
func (s *SourceMaterial) IsProgramBound(id string) bool {
	return s.boundProgram[id]
}

func (s *SourceMaterial) IsInstrumentBound(id string) bool {
	return s.boundInstr[id]
}

func (s *SourceMaterial) Program(id string) (domain.Program, bool) {
	p, ok := s.programs[id]
	return p, ok
}

func (s *SourceMaterial) ProgramsOfType(t domain.ProgramType) []domain.Program {
	return filter(s.doc.Programs, func(p domain.Program) bool { return p.Type == t })
}

func (s *SourceMaterial) MemesOfProgram(programID string) []domain.ProgramMeme {
	return filter(s.doc.ProgramMemes, func(m domain.ProgramMeme) bool { return m.ProgramID == programID })
}

func (s *SourceMaterial) Sequence(id string) (domain.ProgramSequence, bool) {
	q, ok := s.sequences[id]
	return q, ok
}

func (s *SourceMaterial) SequencesOfProgram(programID string) []domain.ProgramSequence {
	return filter(s.doc.ProgramSequences, func(q domain.ProgramSequence) bool { return q.ProgramID == programID })
}

func (s *SourceMaterial) SequenceBinding(id string) (domain.ProgramSequenceBinding, bool) {
	b, ok := s.bindings[id]
	return b, ok
}

func (s *SourceMaterial) SequenceBindingsOfProgram(programID string) []domain.ProgramSequenceBinding {
	return filter(s.doc.ProgramSequenceBindings, func(b domain.ProgramSequenceBinding) bool { return b.ProgramID == programID })
}

// BindingsAtOffsetOfProgram returns the bindings at an offset. With
// includeNearest it falls back to the closest offset the program has.
func (s *SourceMaterial) BindingsAtOffsetOfProgram(programID string, offset int, includeNearest bool) []domain.ProgramSequenceBinding {
	all := s.SequenceBindingsOfProgram(programID)
	if includeNearest && len(all) > 0 {
		nearest := slices.MinFunc(all, func(a, b domain.ProgramSequenceBinding) int {
			return cmp.Compare(abs(a.Offset-offset), abs(b.Offset-offset))
		})
		offset = nearest.Offset
	}
	return filter(all, func(b domain.ProgramSequenceBinding) bool { return b.Offset == offset })
}

// AvailableOffsets lists the distinct binding offsets of the binding's program, ascending.
func (s *SourceMaterial) AvailableOffsets(binding domain.ProgramSequenceBinding) []int {
	var offsets []int
	for _, b := range s.SequenceBindingsOfProgram(binding.ProgramID) {
		offsets = append(offsets, b.Offset)
	}
	slices.Sort(offsets)
	return slices.Compact(offsets)
}

func (s *SourceMaterial) MemesOfSequenceBinding(bindingID string) []domain.ProgramSequenceBindingMeme {
	return filter(s.doc.ProgramSequenceBindingMemes, func(m domain.ProgramSequenceBindingMeme) bool {
		return m.ProgramSequenceBindingID == bindingID
	})
}

// MemesAtBeginning collects program memes and the memes of bindings at offset 0.
func (s *SourceMaterial) MemesAtBeginning(programID string) []string {
	set := make(map[string]bool)
	for _, m := range s.MemesOfProgram(programID) {
		set[m.Name] = true
	}
	for _, b := range s.BindingsAtOffsetOfProgram(programID, 0, false) {
		for _, m := range s.MemesOfSequenceBinding(b.ID) {
			set[m.Name] = true
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// ChordsOfSequence returns the sequence's chords sorted by position.
func (s *SourceMaterial) ChordsOfSequence(sequenceID string) []domain.ProgramSequenceChord {
	out := filter(s.doc.ProgramSequenceChords, func(c domain.ProgramSequenceChord) bool { return c.ProgramSequenceID == sequenceID })
	slices.SortStableFunc(out, func(a, b domain.ProgramSequenceChord) int { return cmp.Compare(a.Position, b.Position) })
	return out
}

func (s *SourceMaterial) VoicingsOfChord(chordID string) []domain.ProgramSequenceChordVoicing {
	return filter(s.doc.ProgramSequenceChordVoicings, func(v domain.ProgramSequenceChordVoicing) bool {
		return v.ProgramSequenceChordID == chordID
	})
}

func (s *SourceMaterial) VoicingsOfProgram(programID string) []domain.ProgramSequenceChordVoicing {
	return filter(s.doc.ProgramSequenceChordVoicings, func(v domain.ProgramSequenceChordVoicing) bool {
		return v.ProgramID == programID
	})
}

func (s *SourceMaterial) Voice(id string) (domain.ProgramVoice, bool) {
	v, ok := s.voices[id]
	return v, ok
}

// VoicesOfProgram returns voices ordered by their order field.
func (s *SourceMaterial) VoicesOfProgram(programID string) []domain.ProgramVoice {
	out := filter(s.doc.ProgramVoices, func(v domain.ProgramVoice) bool { return v.ProgramID == programID })
	slices.SortStableFunc(out, func(a, b domain.ProgramVoice) int { return cmp.Compare(a.Order, b.Order) })
	return out
}

func (s *SourceMaterial) Track(id string) (domain.ProgramVoiceTrack, bool) {
	t, ok := s.tracks[id]
	return t, ok
}

func (s *SourceMaterial) TracksOfVoice(voiceID string) []domain.ProgramVoiceTrack {
	out := filter(s.doc.ProgramVoiceTracks, func(t domain.ProgramVoiceTrack) bool { return t.ProgramVoiceID == voiceID })
	slices.SortStableFunc(out, func(a, b domain.ProgramVoiceTrack) int { return cmp.Compare(a.Order, b.Order) })
	return out
}

// TrackNameOfEvent returns the name of the track an event plays on.
func (s *SourceMaterial) TrackNameOfEvent(event domain.ProgramSequencePatternEvent) (string, bool) {
	t, ok := s.tracks[event.ProgramVoiceTrackID]
	if !ok {
		return "", false
	}
	return t.Name, true
}

func (s *SourceMaterial) Pattern(id string) (domain.ProgramSequencePattern, bool) {
	p, ok := s.patterns[id]
	return p, ok
}

func (s *SourceMaterial) PatternsOfSequenceAndVoice(sequenceID, voiceID string) []domain.ProgramSequencePattern {
	return filter(s.doc.ProgramSequencePatterns, func(p domain.ProgramSequencePattern) bool {
		return p.ProgramSequenceID == sequenceID && p.ProgramVoiceID == voiceID
	})
}

func (s *SourceMaterial) Event(id string) (domain.ProgramSequencePatternEvent, bool) {
	e, ok := s.events[id]
	return e, ok
}

// EventsOfPattern returns the pattern's events sorted by position.
func (s *SourceMaterial) EventsOfPattern(patternID string) []domain.ProgramSequencePatternEvent {
	out := filter(s.doc.ProgramSequencePatternEvents, func(e domain.ProgramSequencePatternEvent) bool {
		return e.ProgramSequencePatternID == patternID
	})
	slices.SortStableFunc(out, func(a, b domain.ProgramSequencePatternEvent) int { return cmp.Compare(a.Position, b.Position) })
	return out
}

// EventsOfProgramVoiceType returns every event played by voices of the given type.
func (s *SourceMaterial) EventsOfProgramVoiceType(programID string, t domain.InstrumentType) []domain.ProgramSequencePatternEvent {
	return filter(s.doc.ProgramSequencePatternEvents, func(e domain.ProgramSequencePatternEvent) bool {
		if e.ProgramID != programID {
			return false
		}
		p, ok := s.patterns[e.ProgramSequencePatternID]
		if !ok {
			return false
		}
		v, ok := s.voices[p.ProgramVoiceID]
		return ok && v.Type == t
	})
}

func (s *SourceMaterial) Instrument(id string) (domain.Instrument, bool) {
	i, ok := s.instruments[id]
	return i, ok
}

func (s *SourceMaterial) InstrumentsOfType(t domain.InstrumentType) []domain.Instrument {
	return filter(s.doc.Instruments, func(i domain.Instrument) bool { return i.Type == t })
}

func (s *SourceMaterial) MemesOfInstrument(instrumentID string) []domain.InstrumentMeme {
	return filter(s.doc.InstrumentMemes, func(m domain.InstrumentMeme) bool { return m.InstrumentID == instrumentID })
}

func (s *SourceMaterial) Audio(id string) (domain.InstrumentAudio, bool) {
	a, ok := s.audios[id]
	return a, ok
}

func (s *SourceMaterial) AudiosOfInstrument(instrumentID string) []domain.InstrumentAudio {
	return filter(s.doc.InstrumentAudios, func(a domain.InstrumentAudio) bool { return a.InstrumentID == instrumentID })
}

// AudiosOfInstrumentTypesAndModes returns audios of instruments matching any of the types and modes.
func (s *SourceMaterial) AudiosOfInstrumentTypesAndModes(types []domain.InstrumentType, modes []domain.InstrumentMode) []domain.InstrumentAudio {
	return filter(s.doc.InstrumentAudios, func(a domain.InstrumentAudio) bool {
		i, ok := s.instruments[a.InstrumentID]
		return ok && slices.Contains(types, i.Type) && slices.Contains(modes, i.Mode)
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
