package craft

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/fabricator"
	"github.com/cesargomez89/segmentcraft/internal/marble"
	"github.com/cesargomez89/segmentcraft/internal/meme"
)

// Overrides steer the macro choice of a segment from outside, e.g. when
// an operator asks the chain to move somewhere specific.
type Overrides struct {
	MacroProgramID string
	Memes          []string
}

func (o Overrides) hasMemes() bool { return len(o.Memes) > 0 }

// MacroMain chooses the macro and main programs of a segment and derives
// its key, tempo, total, chords, delta and intensity from them.
type MacroMain struct {
	*Craft
	overrides Overrides
}

func NewMacroMain(f *fabricator.Fabricator, o Overrides) *MacroMain {
	return &MacroMain{Craft: newCraft(f, "macro_main"), overrides: o}
}

func (m *MacroMain) Do() error {
	t, err := m.f.Type()
	if err != nil {
		return err
	}

	var macro, main domain.Program
	if m.overrides.hasMemes() {
		for _, name := range m.overrides.Memes {
			if err := m.f.Put(domain.SegmentMeme{ID: uuid.NewString(), SegmentID: m.f.Segment().ID, Name: name}, true); err != nil {
				return err
			}
		}
		if main, err = m.chooseMainProgram(t); err != nil {
			return err
		}
		if macro, err = m.chooseMacroProgram(t); err != nil {
			return err
		}
	} else {
		if macro, err = m.chooseMacroProgram(t); err != nil {
			return err
		}
		if main, err = m.chooseMainProgram(t); err != nil {
			return err
		}
	}

	macroOffset, err := m.macroSequenceBindingOffset(t, macro)
	if err != nil {
		return err
	}
	macroBinding, ok := m.f.RandomlySelectedSequenceBindingAtOffset(macro.ID, macroOffset)
	if !ok {
		return domain.Existencef("macro program %s has no sequence binding near offset %d", macro.ID, macroOffset)
	}
	if _, err := m.putProgramChoice(macro, macroBinding); err != nil {
		return err
	}

	mainOffset, err := m.mainSequenceBindingOffset(t)
	if err != nil {
		return err
	}
	mainBinding, ok := m.f.RandomlySelectedSequenceBindingAtOffset(main.ID, mainOffset)
	if !ok {
		return domain.Existencef("main program %s has no sequence binding near offset %d", main.ID, mainOffset)
	}
	mainSeq, err := m.putProgramChoice(main, mainBinding)
	if err != nil {
		return err
	}

	if err := m.putChords(mainSeq); err != nil {
		return err
	}

	macroSeq, _ := m.f.Material().Sequence(macroBinding.ProgramSequenceID)
	return m.updateSegment(t, main, mainSeq, macroSeq)
}

func (m *MacroMain) putProgramChoice(program domain.Program, binding domain.ProgramSequenceBinding) (domain.ProgramSequence, error) {
	seq, ok := m.f.Material().Sequence(binding.ProgramSequenceID)
	if !ok {
		return domain.ProgramSequence{}, domain.Existencef("sequence %s of binding %s", binding.ProgramSequenceID, binding.ID)
	}
	choice := domain.SegmentChoice{
		ID:                       uuid.NewString(),
		SegmentID:                m.f.Segment().ID,
		ProgramID:                program.ID,
		ProgramType:              program.Type,
		ProgramSequenceID:        seq.ID,
		ProgramSequenceBindingID: binding.ID,
		DeltaIn:                  -1,
		DeltaOut:                 -1,
	}
	return seq, m.f.Put(choice, true)
}

// chooseMacroProgram keeps the macro program while it continues, otherwise
// draws one whose opening memes suit where the previous macro was heading.
func (m *MacroMain) chooseMacroProgram(t domain.SegmentType) (domain.Program, error) {
	material := m.f.Material()
	if m.overrides.MacroProgramID != "" {
		if p, ok := material.Program(m.overrides.MacroProgramID); ok {
			return p, nil
		}
		return domain.Program{}, domain.Existencef("macro program %s", m.overrides.MacroProgramID)
	}

	previous, err := m.previousChoiceOfType(t, domain.ProgramTypeMacro)
	if err != nil {
		return domain.Program{}, err
	}
	if previous != nil && m.f.IsContinuationOfMacroProgram() {
		if p, ok := material.Program(previous.ProgramID); ok {
			return p, nil
		}
	}

	avoid := ""
	if previous != nil {
		avoid = previous.ProgramID
	}

	var iso *meme.Isometry
	switch {
	case m.overrides.hasMemes():
		iso = m.f.MemeIsometryOfSegment()
	case t == domain.SegmentTypeInitial:
		return m.chooseRandomProgram(domain.ProgramTypeMacro, avoid)
	default:
		iso = m.f.MemeIsometryOfNextSequenceInPreviousMacro()
	}

	bag := marble.New(m.f.Rand())
	for _, p := range material.ProgramsOfType(domain.ProgramTypeMacro) {
		memes := material.MemesAtBeginning(p.ID)
		score := int(iso.Score(memes))
		switch {
		case material.IsProgramBound(p.ID):
			bag.AddTier(1, p.ID, score)
			bag.AddTier(2, p.ID, 1+score)
			bag.AddTier(3, p.ID, 1)
		case p.State == domain.ContentStatePublished && p.ID != avoid:
			bag.AddTier(4, p.ID, score)
			bag.AddTier(5, p.ID, 1+score)
		case p.State == domain.ContentStatePublished:
			bag.AddTier(6, p.ID, 1)
		default:
			bag.AddTier(7, p.ID, 1)
		}
	}
	m.f.PutReport("macroChoice", bag.String())

	p, ok := m.pickProgram(bag)
	if !ok {
		return domain.Program{}, domain.Existencef("no macro program available")
	}
	return p, nil
}

// chooseRandomProgram ignores memes entirely, preferring bound material
// and then anything published that is not avoided.
func (m *MacroMain) chooseRandomProgram(t domain.ProgramType, avoid string) (domain.Program, error) {
	material := m.f.Material()
	bag := marble.New(m.f.Rand())
	for _, p := range material.ProgramsOfType(t) {
		switch {
		case material.IsProgramBound(p.ID) && p.ID != avoid:
			bag.AddTier(1, p.ID, 1)
		case material.IsProgramBound(p.ID):
			bag.AddTier(2, p.ID, 1)
		case p.State == domain.ContentStatePublished && p.ID != avoid:
			bag.AddTier(3, p.ID, 1)
		case p.State == domain.ContentStatePublished:
			bag.AddTier(4, p.ID, 1)
		default:
			bag.AddTier(5, p.ID, 1)
		}
	}
	m.f.PutReport(strings.ToLower(string(t))+"Choice", bag.String())

	p, ok := m.pickProgram(bag)
	if !ok {
		return domain.Program{}, domain.Existencef("no %s program available", t)
	}
	return p, nil
}

// chooseMainProgram keeps the main program on a continuing segment,
// otherwise draws by affinity with the memes already on the segment.
func (m *MacroMain) chooseMainProgram(t domain.SegmentType) (domain.Program, error) {
	material := m.f.Material()
	previous, err := m.previousChoiceOfType(t, domain.ProgramTypeMain)
	if err != nil {
		return domain.Program{}, err
	}
	if t == domain.SegmentTypeContinue && previous != nil {
		if p, ok := material.Program(previous.ProgramID); ok {
			return p, nil
		}
	}

	avoid := ""
	if previous != nil {
		avoid = previous.ProgramID
	}

	iso := m.f.MemeIsometryOfSegment()
	bag := marble.New(m.f.Rand())
	for _, p := range material.ProgramsOfType(domain.ProgramTypeMain) {
		memes := material.MemesAtBeginning(p.ID)
		if !iso.IsAllowed(memes) {
			continue
		}
		score := weight(iso, memes)
		switch {
		case material.IsProgramBound(p.ID):
			bag.AddTier(1, p.ID, score)
		case p.State == domain.ContentStatePublished && p.ID != avoid:
			bag.AddTier(2, p.ID, score)
		case p.State == domain.ContentStatePublished:
			bag.AddTier(3, p.ID, score)
		default:
			bag.AddTier(4, p.ID, score)
		}
	}
	m.f.PutReport("mainChoice", bag.String())

	p, ok := m.pickProgram(bag)
	if !ok {
		return domain.Program{}, domain.Existencef("no main program available for memes [%s]", strings.Join(iso.Sources(), ","))
	}
	return p, nil
}

// previousChoiceOfType is nil on the initial segment, where there is nothing to look back at.
func (m *MacroMain) previousChoiceOfType(t domain.SegmentType, pt domain.ProgramType) (*domain.SegmentChoice, error) {
	if t == domain.SegmentTypeInitial {
		return nil, nil
	}
	return m.f.PreviousChoiceOfType(pt)
}

func (m *MacroMain) macroSequenceBindingOffset(t domain.SegmentType, macro domain.Program) (int, error) {
	switch t {
	case domain.SegmentTypeInitial, domain.SegmentTypeNextMacro:
		if m.overrides.hasMemes() || m.overrides.MacroProgramID != "" {
			return m.f.SecondMacroSequenceBindingOffset(macro.ID), nil
		}
		return 0, nil
	case domain.SegmentTypeContinue:
		previous, err := m.f.PreviousChoiceOfType(domain.ProgramTypeMacro)
		if err != nil || previous == nil {
			return 0, err
		}
		b, ok := m.f.Material().SequenceBinding(previous.ProgramSequenceBindingID)
		if !ok {
			return 0, nil
		}
		return b.Offset, nil
	case domain.SegmentTypeNextMain:
		previous, err := m.f.PreviousChoiceOfType(domain.ProgramTypeMacro)
		if err != nil || previous == nil {
			return 0, err
		}
		return m.f.NextSequenceBindingOffset(*previous), nil
	}
	return 0, domain.Validationf("cannot choose macro offset for segment type %s", t)
}

func (m *MacroMain) mainSequenceBindingOffset(t domain.SegmentType) (int, error) {
	if t != domain.SegmentTypeContinue {
		return 0, nil
	}
	previous, err := m.f.PreviousChoiceOfType(domain.ProgramTypeMain)
	if err != nil || previous == nil {
		return 0, err
	}
	return m.f.NextSequenceBindingOffset(*previous), nil
}

// putChords copies the main sequence's chords and their voicings onto the segment.
func (m *MacroMain) putChords(seq domain.ProgramSequence) error {
	material := m.f.Material()
	segmentID := m.f.Segment().ID
	for _, pc := range m.f.ProgramSequenceChords(seq) {
		if pc.Position >= float64(seq.Total) || strings.TrimSpace(pc.Name) == "" {
			continue
		}
		chord := domain.SegmentChord{
			ID:        uuid.NewString(),
			SegmentID: segmentID,
			Name:      pc.Name,
			Position:  pc.Position,
		}
		if err := m.f.Put(chord, false); err != nil {
			return err
		}
		for _, v := range material.VoicingsOfChord(pc.ID) {
			voice, ok := material.Voice(v.ProgramVoiceID)
			if !ok {
				continue
			}
			voicing := domain.SegmentChordVoicing{
				ID:             uuid.NewString(),
				SegmentID:      segmentID,
				SegmentChordID: chord.ID,
				Type:           voice.Type,
				Notes:          v.Notes,
			}
			if err := m.f.Put(voicing, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MacroMain) updateSegment(t domain.SegmentType, main domain.Program, mainSeq, macroSeq domain.ProgramSequence) error {
	seg := m.f.Segment()
	seg.Type = t
	seg.Tempo = main.Tempo
	seg.Key = strings.TrimSpace(mainSeq.Key)
	if seg.Key == "" {
		seg.Key = strings.TrimSpace(main.Key)
	}
	seg.Total = mainSeq.Total
	seg.SetDuration(m.f.MicrosAtPosition(float64(mainSeq.Total)))

	// Delta is the arc position where this segment starts.
	seg.Delta = 0
	if t == domain.SegmentTypeContinue {
		if previous := m.f.Retrospective().PreviousSegment(); previous != nil {
			seg.Delta = previous.Delta + previous.Total
		}
	}
	seg.Intensity = m.computeIntensity(seg.Delta, macroSeq, mainSeq)

	m.f.AddInfoMessage(fmt.Sprintf("Chose main program %s with key %s at %v bpm", main.Name, seg.Key, seg.Tempo))
	return nil
}

// computeIntensity averages the macro and main sequences. With auto
// crescendo it ramps from the minimum to the maximum over the main program.
func (m *MacroMain) computeIntensity(delta int, macroSeq, mainSeq domain.ProgramSequence) float64 {
	avg := (macroSeq.Intensity + mainSeq.Intensity) / 2
	cfg := m.f.Config()
	if !cfg.IntensityAutoCrescendoEnabled || cfg.MainProgramLengthMaxDelta <= 0 {
		return avg
	}
	lo, hi := cfg.IntensityAutoCrescendoMinimum, cfg.IntensityAutoCrescendoMaximum
	progress := min(1, float64(delta)/float64(cfg.MainProgramLengthMaxDelta))
	return lo + (hi-lo)*progress*avg
}
