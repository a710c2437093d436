package craft

import (
	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/fabricator"
)

// Beat arranges the percussive voices of one beat program on drum instruments.
type Beat struct {
	*Craft
}

func NewBeat(f *fabricator.Fabricator) *Beat {
	return &Beat{Craft: newCraft(f, "beat")}
}

func (b *Beat) Do() error {
	program, ok, err := b.chooseProgram()
	if err != nil {
		return err
	}
	if !ok {
		b.f.AddInfoMessage("No beat program is available")
		return nil
	}

	voices := b.f.Material().VoicesOfProgram(program.ID)
	layers := make([]string, 0, len(voices))
	for _, v := range voices {
		layers = append(layers, v.Name)
	}

	cfg := b.f.Config()
	err = b.precomputeDeltas(
		func(c domain.SegmentChoice) bool { return c.ProgramType == domain.ProgramTypeBeat },
		b.voiceNameOf,
		layers,
		cfg.DeltaArcBeatLayersToPrioritize,
		cfg.DeltaArcBeatLayersIncoming,
	)
	if err != nil {
		return err
	}

	seq, ok := b.f.RandomlySelectedSequence(program)
	if !ok {
		b.f.AddWarningMessage("Beat program " + program.Name + " has no sequences")
		return nil
	}
	return b.craftNoteEvents(seq, voices, b.instrumentForVoice, true)
}

// chooseProgram keeps the beat program while the main program continues.
func (b *Beat) chooseProgram() (domain.Program, bool, error) {
	t, err := b.f.Type()
	if err != nil {
		return domain.Program{}, false, err
	}
	if t == domain.SegmentTypeContinue {
		previous, err := b.f.PreviousChoiceOfType(domain.ProgramTypeBeat)
		if err != nil {
			return domain.Program{}, false, err
		}
		if previous != nil {
			if p, ok := b.f.Material().Program(previous.ProgramID); ok {
				return p, true, nil
			}
		}
	}
	p, ok := b.chooseFreshProgram(domain.ProgramTypeBeat, domain.InstrumentTypeDrum)
	return p, ok, nil
}

func (b *Beat) voiceNameOf(c domain.SegmentChoice) string {
	if v, ok := b.f.Material().Voice(c.ProgramVoiceID); ok {
		return v.Name
	}
	return ""
}

// instrumentForVoice requires a drum kit with an audio for every track the voice plays.
func (b *Beat) instrumentForVoice(voice domain.ProgramVoice) (domain.Instrument, bool) {
	var tracks []string
	for _, t := range b.f.Material().TracksOfVoice(voice.ID) {
		tracks = append(tracks, t.Name)
	}
	return b.chooseFreshInstrument(domain.InstrumentTypeDrum, tracks)
}
