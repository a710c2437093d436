package craft

import (
	"github.com/google/uuid"

	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/fabricator"
)

// Background spans the whole segment with one layer of audio per intensity band.
type Background struct {
	*Craft
}

func NewBackground(f *fabricator.Fabricator) *Background {
	return &Background{Craft: newCraft(f, "background")}
}

func (b *Background) Do() error {
	instrument, ok := b.chooseInstrument()
	if !ok {
		return nil
	}

	choice := domain.SegmentChoice{
		ID:             uuid.NewString(),
		SegmentID:      b.f.Segment().ID,
		Mute:           b.computeMute(instrument.Type),
		InstrumentType: instrument.Type,
		InstrumentMode: instrument.Mode,
		InstrumentID:   instrument.ID,
		DeltaIn:        -1,
		DeltaOut:       -1,
	}
	added, err := b.put(choice)
	if err != nil || !added {
		return err
	}
	arrangement := domain.SegmentChoiceArrangement{
		ID:              uuid.NewString(),
		SegmentID:       choice.SegmentID,
		SegmentChoiceID: choice.ID,
	}
	if err := b.f.Put(arrangement, false); err != nil {
		return err
	}

	length := b.f.TotalMicros()
	for _, audio := range b.selectGeneralAudioIntensityLayers(instrument) {
		if err := b.pickSpan(arrangement, audio, 0, &length, audio.Event); err != nil {
			return err
		}
	}
	return nil
}

func (b *Background) chooseInstrument() (domain.Instrument, bool) {
	if prior, ok := b.f.ChoiceIfContinuedOfInstrument(domain.InstrumentTypeBackground); ok {
		if i, ok := b.f.Material().Instrument(prior.InstrumentID); ok {
			return i, true
		}
	}
	return b.chooseFreshInstrument(domain.InstrumentTypeBackground, nil)
}
