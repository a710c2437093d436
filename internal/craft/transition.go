package craft

import (
	"github.com/google/uuid"

	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/fabricator"
)

// Transition marks the start of a segment with one audio whose size follows
// how far the music moved: large for a new macro, medium for a new main,
// small otherwise.
type Transition struct {
	*Craft
}

func NewTransition(f *fabricator.Fabricator) *Transition {
	return &Transition{Craft: newCraft(f, "transition")}
}

func (tr *Transition) Do() error {
	t, err := tr.f.Type()
	if err != nil {
		return err
	}
	cfg := tr.f.Config()
	preferred := cfg.EventNamesSmall
	switch t {
	case domain.SegmentTypeNextMacro:
		preferred = cfg.EventNamesLarge
	case domain.SegmentTypeNextMain:
		preferred = cfg.EventNamesMedium
	}

	var avoid []string
	for _, c := range tr.f.Retrospective().PreviousChoicesOfInstrument(domain.InstrumentTypeTransition) {
		for _, p := range tr.f.Retrospective().PreviousPicksForInstrument(c.InstrumentID) {
			avoid = append(avoid, p.InstrumentAudioID)
		}
	}

	audio, ok := tr.chooseFreshInstrumentAudio(
		[]domain.InstrumentType{domain.InstrumentTypeTransition},
		[]domain.InstrumentMode{domain.InstrumentModeEvent, domain.InstrumentModeLoop},
		avoid,
		preferred,
	)
	if !ok {
		return nil
	}
	instrument, ok := tr.f.Material().Instrument(audio.InstrumentID)
	if !ok {
		return domain.Existencef("instrument %s of audio %s", audio.InstrumentID, audio.ID)
	}

	choice := domain.SegmentChoice{
		ID:             uuid.NewString(),
		SegmentID:      tr.f.Segment().ID,
		Mute:           tr.computeMute(instrument.Type),
		InstrumentType: instrument.Type,
		InstrumentMode: instrument.Mode,
		InstrumentID:   instrument.ID,
		DeltaIn:        -1,
		DeltaOut:       -1,
	}
	added, err := tr.put(choice)
	if err != nil || !added {
		return err
	}
	arrangement := domain.SegmentChoiceArrangement{
		ID:              uuid.NewString(),
		SegmentID:       choice.SegmentID,
		SegmentChoiceID: choice.ID,
	}
	if err := tr.f.Put(arrangement, false); err != nil {
		return err
	}

	length := tr.f.TotalMicros()
	if audio.TotalBeats > 0 {
		length = tr.f.MicrosAtPosition(audio.TotalBeats)
	}
	return tr.pickSpan(arrangement, audio, 0, &length, audio.Event)
}
