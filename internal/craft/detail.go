package craft

import (
	"slices"

	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/fabricator"
)

// Detail layers the melodic and harmonic instruments in the configured
// order. A type with a detail program plays its events; a type without one
// falls back to a chord-mode instrument following the segment chords.
type Detail struct {
	*Craft
}

func NewDetail(f *fabricator.Fabricator) *Detail {
	return &Detail{Craft: newCraft(f, "detail")}
}

func (d *Detail) Do() error {
	cfg := d.f.Config()
	layers := make([]string, 0, len(cfg.DetailLayerOrder))
	for _, t := range cfg.DetailLayerOrder {
		layers = append(layers, string(t))
	}

	err := d.precomputeDeltas(
		func(c domain.SegmentChoice) bool {
			return c.ProgramType == domain.ProgramTypeDetail || slices.Contains(cfg.DetailLayerOrder, c.InstrumentType)
		},
		func(c domain.SegmentChoice) string { return string(c.InstrumentType) },
		layers,
		nil,
		cfg.DeltaArcDetailLayersIncoming,
	)
	if err != nil {
		return err
	}

	for _, t := range cfg.DetailLayerOrder {
		if err := d.craftLayer(t); err != nil {
			return err
		}
	}
	return nil
}

func (d *Detail) craftLayer(t domain.InstrumentType) error {
	if program, ok := d.programOfType(t); ok {
		instrument, ok := d.instrumentOfType(t, domain.InstrumentModeEvent)
		if !ok {
			d.logger.Info("No event instrument for detail program", "type", t, "program_id", program.ID)
			return nil
		}
		return d.craftEventParts(instrument, program)
	}

	instrument, ok := d.instrumentOfType(t, domain.InstrumentModeChord)
	if !ok {
		return nil
	}
	return d.craftChordParts(instrument)
}

// programOfType keeps the previous detail program of the type on a
// continuing segment, otherwise draws a fresh one.
func (d *Detail) programOfType(t domain.InstrumentType) (domain.Program, bool) {
	if st, err := d.f.Type(); err == nil && st == domain.SegmentTypeContinue {
		for _, c := range d.f.Retrospective().PreviousChoicesOfType(domain.ProgramTypeDetail) {
			if c.InstrumentType != t {
				continue
			}
			if p, ok := d.f.Material().Program(c.ProgramID); ok {
				return p, true
			}
		}
	}
	return d.chooseFreshProgram(domain.ProgramTypeDetail, t)
}

func (d *Detail) instrumentOfType(t domain.InstrumentType, mode domain.InstrumentMode) (domain.Instrument, bool) {
	if prior, ok := d.f.ChoiceIfContinuedOfInstrument(t, mode); ok {
		if i, ok := d.f.Material().Instrument(prior.InstrumentID); ok {
			return i, true
		}
	}
	return d.chooseFreshInstrument(t, nil, mode)
}
