package craft

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/music"
)

// instrumentFor resolves the instrument a fresh voice choice plays.
type instrumentFor func(voice domain.ProgramVoice) (domain.Instrument, bool)

// section is the span of one segment chord, in beats.
type section struct {
	chord    domain.SegmentChord
	from, to float64
}

// craftNoteEvents makes one choice per voice. A voice continued from the
// previous segment keeps its instrument and delta bounds; the others get a
// fresh instrument and the precomputed arc.
func (c *Craft) craftNoteEvents(seq domain.ProgramSequence, voices []domain.ProgramVoice, instruments instrumentFor, defaultAtonal bool) error {
	segmentID := c.f.Segment().ID
	for _, voice := range voices {
		program, ok := c.f.Material().Program(voice.ProgramID)
		if !ok {
			return domain.Existencef("program %s of voice %s", voice.ProgramID, voice.ID)
		}
		choice := domain.SegmentChoice{
			ID:                uuid.NewString(),
			SegmentID:         segmentID,
			Mute:              c.computeMute(voice.Type),
			ProgramType:       program.Type,
			InstrumentType:    voice.Type,
			ProgramID:         voice.ProgramID,
			ProgramSequenceID: seq.ID,
			ProgramVoiceID:    voice.ID,
		}

		if prior, ok := c.f.ChoiceIfContinuedOfVoice(voice); ok {
			choice.DeltaIn = prior.DeltaIn
			choice.DeltaOut = prior.DeltaOut
			choice.InstrumentID = prior.InstrumentID
			choice.InstrumentMode = prior.InstrumentMode
		} else {
			instrument, ok := instruments(voice)
			if !ok {
				continue
			}
			choice.DeltaIn = c.computeDeltaIn(choice)
			choice.DeltaOut = c.computeDeltaOut(choice)
			choice.InstrumentID = instrument.ID
			choice.InstrumentMode = instrument.Mode
		}

		added, err := c.put(choice)
		if err != nil {
			return err
		}
		if !added {
			continue
		}
		if err := c.craftNoteEventArrangements(choice, defaultAtonal); err != nil {
			return err
		}
	}
	return nil
}

// craftNoteEventArrangements lays patterns end to end across the segment,
// restarting at every chord when the program asks for it.
func (c *Craft) craftNoteEventArrangements(choice domain.SegmentChoice, defaultAtonal bool) error {
	var optimal music.NoteRange
	total := float64(c.f.Segment().Total)

	program, ok := c.f.Material().Program(choice.ProgramID)
	if !ok {
		return domain.Existencef("program %s of choice %s", choice.ProgramID, choice.ID)
	}

	sections := c.sections()
	if len(sections) > 0 && program.Config.DoPatternRestartOnChord {
		for _, s := range sections {
			if err := c.craftNoteEventSection(choice, s.from, s.to, &optimal, defaultAtonal); err != nil {
				return err
			}
		}
	} else if err := c.craftNoteEventSection(choice, 0, total, &optimal, defaultAtonal); err != nil {
		return err
	}

	return c.finalizeOneShotCutoffs(choice)
}

func (c *Craft) sections() []section {
	chords := c.f.Chords()
	out := make([]section, len(chords))
	for i, chord := range chords {
		to := float64(c.f.Segment().Total)
		if i < len(chords)-1 {
			to = chords[i+1].Position
		}
		out[i] = section{chord: chord, from: chord.Position, to: to}
	}
	return out
}

func (c *Craft) craftNoteEventSection(choice domain.SegmentChoice, from, to float64, optimal *music.NoteRange, defaultAtonal bool) error {
	for pos := from; pos < to; {
		pattern, ok := c.f.RandomlySelectedPatternOfSequenceByVoice(choice)
		if !ok {
			return nil
		}
		advanced, err := c.craftPatternEvents(choice, pattern, pos, to, optimal, defaultAtonal)
		if err != nil {
			return err
		}
		if advanced <= 0 {
			return nil
		}
		pos += advanced
	}
	return nil
}

// craftPatternEvents arranges one pass of a pattern from a position and
// returns how many beats it covered.
func (c *Craft) craftPatternEvents(choice domain.SegmentChoice, pattern domain.ProgramSequencePattern, from, to float64, optimal *music.NoteRange, defaultAtonal bool) (float64, error) {
	arrangement := domain.SegmentChoiceArrangement{
		ID:                       uuid.NewString(),
		SegmentID:                choice.SegmentID,
		SegmentChoiceID:          choice.ID,
		ProgramSequencePatternID: pattern.ID,
	}
	if err := c.f.Put(arrangement, false); err != nil {
		return 0, err
	}

	instrument, ok := c.f.Material().Instrument(choice.InstrumentID)
	if !ok {
		return 0, domain.Existencef("instrument %s of choice %s", choice.InstrumentID, choice.ID)
	}
	for _, event := range c.f.Material().EventsOfPattern(pattern.ID) {
		if err := c.pickNotesAndAudioForEvent(instrument, choice, arrangement, from, to, event, optimal, defaultAtonal); err != nil {
			return 0, err
		}
	}
	return min(to-from, float64(pattern.Total)), nil
}

func (c *Craft) pickNotesAndAudioForEvent(instrument domain.Instrument, choice domain.SegmentChoice, arrangement domain.SegmentChoiceArrangement, from, to float64, event domain.ProgramSequencePatternEvent, optimal *music.NoteRange, defaultAtonal bool) error {
	position := from + event.Position
	if position < 0 || position >= float64(c.f.Segment().Total) {
		return nil
	}

	duration := min(event.Duration, to-position)
	chord, hasChord := c.f.GetChordAt(position)
	var voicing domain.SegmentChordVoicing
	hasVoicing := false
	if hasChord {
		voicing, hasVoicing = c.f.ChooseVoicing(chord, instrument.Type)
	}

	ratio := c.volumeRatio(choice, position)
	if ratio <= 0 {
		return nil
	}

	var notes []string
	switch {
	case hasVoicing:
		notes = c.pickNotesForEvent(instrument.Type, choice, event, chord, voicing, optimal)
	case defaultAtonal:
		notes = []string{music.AtonalName}
	}

	start := c.f.MicrosAtPosition(position)
	var length *int64
	if !isOneShot(instrument, c.trackName(event)) {
		l := c.f.MicrosAtPosition(position+duration) - start
		length = &l
	}

	voicingID := ""
	if hasVoicing {
		voicingID = voicing.ID
	}
	for _, note := range notes {
		if err := c.pickInstrumentAudio(note, instrument, event, arrangement, start, length, voicingID, ratio); err != nil {
			return err
		}
	}
	return nil
}

// pickNotesForEvent transposes the event onto the segment chord, shifts it
// into the voicing's octave and picks voicing notes close to the evolving
// range. Atonal event notes follow the event's sticky bun.
func (c *Craft) pickNotesForEvent(t domain.InstrumentType, choice domain.SegmentChoice, event domain.ProgramSequencePatternEvent, chord domain.SegmentChord, voicing domain.SegmentChordVoicing, optimal *music.NoteRange) []string {
	segChord := music.ChordOf(chord.Name)
	key := music.ChordOf(c.f.KeyForChoice(choice))
	programRange := c.f.ProgramRange(choice.ProgramID, t)
	voicingRange := c.f.ProgramVoicingNoteRange(t)

	transpose := c.f.ProgramTargetShift(t, key, segChord)
	octaves := 12 * c.f.ProgramRangeShiftOctaves(t, programRange.Shift(transpose), voicingRange)

	var eventNotes []music.Note
	hasAtonal := false
	for _, n := range music.NotesOf(event.Tones) {
		eventNotes = append(eventNotes, n.Shift(transpose+octaves))
		hasAtonal = hasAtonal || n.IsAtonal()
	}
	music.SortNotes(eventNotes)

	if optimal.IsEmpty() {
		optimal.Expand(eventNotes...)
	}

	var bun music.StickyBun
	hasBun := false
	if hasAtonal {
		bun, hasBun = c.f.StickyBun(event.ID)
	}

	var voicingNotes []music.Note
	for _, n := range music.NotesOf(voicing.Notes) {
		if !n.IsAtonal() {
			voicingNotes = append(voicingNotes, n)
		}
	}
	picker := music.NewNotePicker(*optimal, voicingNotes, c.f.Config().SeeksInversionsFor(t))

	picked := make([]music.Note, 0, len(eventNotes))
	for i, n := range eventNotes {
		if n.IsAtonal() && hasBun {
			picked = append(picked, bun.Compute(voicingNotes, i))
		} else {
			picked = append(picked, picker.Pick(n))
		}
	}
	optimal.Expand(picked...)

	seen := make(map[string]bool)
	var out []string
	for _, n := range picked {
		name := n.Name(music.Sharp)
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// pickInstrumentAudio puts one pick for a note of an event. An instrument
// with no audio for the note is skipped.
func (c *Craft) pickInstrumentAudio(note string, instrument domain.Instrument, event domain.ProgramSequencePatternEvent, arrangement domain.SegmentChoiceArrangement, start int64, length *int64, voicingID string, ratio float64) error {
	var audio domain.InstrumentAudio
	var ok bool
	if instrument.Config.IsMultiphonic {
		audio, ok = c.selectMultiphonicAudio(instrument, event, note)
	} else {
		audio, ok = c.selectMonophonicAudio(instrument, event)
	}
	if !ok {
		c.logger.Warn("No audio for event", "instrument_id", instrument.ID, "event_id", event.ID, "note", note)
		return nil
	}

	tones := music.AtonalName
	if instrument.Config.IsTonal {
		tones = note
	}
	pick := domain.SegmentChoiceArrangementPick{
		ID:                            uuid.NewString(),
		SegmentID:                     arrangement.SegmentID,
		SegmentChoiceArrangementID:    arrangement.ID,
		InstrumentAudioID:             audio.ID,
		ProgramSequencePatternEventID: event.ID,
		Event:                         c.trackName(event),
		StartAtSegmentMicros:          start,
		LengthMicros:                  length,
		Amplitude:                     event.Velocity * ratio,
		Tones:                         tones,
		SegmentChordVoicingID:         voicingID,
	}
	return c.f.Put(pick, false)
}

// pickSpan puts a pick of an audio that is not driven by a pattern event.
func (c *Craft) pickSpan(arrangement domain.SegmentChoiceArrangement, audio domain.InstrumentAudio, start int64, length *int64, event string) error {
	pick := domain.SegmentChoiceArrangementPick{
		ID:                         uuid.NewString(),
		SegmentID:                  arrangement.SegmentID,
		SegmentChoiceArrangementID: arrangement.ID,
		InstrumentAudioID:          audio.ID,
		StartAtSegmentMicros:       start,
		LengthMicros:               length,
		Amplitude:                  1,
		Tones:                      audio.Tones,
		Event:                      event,
	}
	return c.f.Put(pick, false)
}

// craftChordParts makes a chord-mode instrument play one audio per chord.
func (c *Craft) craftChordParts(instrument domain.Instrument) error {
	choice := domain.SegmentChoice{
		ID:             uuid.NewString(),
		SegmentID:      c.f.Segment().ID,
		Mute:           c.computeMute(instrument.Type),
		InstrumentType: instrument.Type,
		InstrumentMode: instrument.Mode,
		InstrumentID:   instrument.ID,
	}
	if prior, ok := c.f.ChoiceIfContinuedOfInstrument(instrument.Type, instrument.Mode); ok {
		choice.DeltaIn = prior.DeltaIn
		choice.DeltaOut = prior.DeltaOut
	} else {
		choice.DeltaIn = c.computeDeltaIn(choice)
		choice.DeltaOut = c.computeDeltaOut(choice)
	}

	added, err := c.put(choice)
	if err != nil || !added {
		return err
	}
	return c.craftChordPartsOf(instrument, choice)
}

func (c *Craft) craftChordPartsOf(instrument domain.Instrument, choice domain.SegmentChoice) error {
	sections := c.sections()
	if len(sections) == 0 {
		return nil
	}

	arrangement := domain.SegmentChoiceArrangement{
		ID:              uuid.NewString(),
		SegmentID:       choice.SegmentID,
		SegmentChoiceID: choice.ID,
	}
	if err := c.f.Put(arrangement, false); err != nil {
		return err
	}

	for _, s := range sections {
		audio, ok := c.selectChordPartAudio(instrument, music.ChordOf(s.chord.Name))
		if !ok {
			continue
		}
		ratio := c.volumeRatio(choice, s.from)
		if ratio <= 0 {
			continue
		}

		start := c.f.MicrosAtPosition(s.from)
		var length *int64
		if !isOneShot(instrument, "") {
			l := c.f.MicrosAtPosition(s.to) - start
			length = &l
		}
		pick := domain.SegmentChoiceArrangementPick{
			ID:                         uuid.NewString(),
			SegmentID:                  choice.SegmentID,
			SegmentChoiceArrangementID: arrangement.ID,
			InstrumentAudioID:          audio.ID,
			StartAtSegmentMicros:       start,
			LengthMicros:               length,
			Amplitude:                  ratio,
			Tones:                      s.chord.Name,
			Event:                      string(instrument.Type),
		}
		if err := c.f.Put(pick, false); err != nil {
			return err
		}
	}
	return c.finalizeOneShotCutoffs(choice)
}

// craftEventParts plays a random sequence of a program on every voice with
// one instrument.
func (c *Craft) craftEventParts(instrument domain.Instrument, program domain.Program) error {
	seq, ok := c.f.RandomlySelectedSequence(program)
	if !ok {
		return nil
	}
	voices := c.f.Material().VoicesOfProgram(program.ID)
	if len(voices) == 0 {
		return nil
	}
	return c.craftNoteEvents(seq, voices, func(domain.ProgramVoice) (domain.Instrument, bool) { return instrument, true }, false)
}

// finalizeOneShotCutoffs gives every open-ended pick of a one-shot
// instrument the length up to the next pick, or to the end of the segment.
// Picks starting after the segment are removed.
func (c *Craft) finalizeOneShotCutoffs(choice domain.SegmentChoice) error {
	instrument, ok := c.f.Material().Instrument(choice.InstrumentID)
	if !ok {
		return domain.Existencef("instrument %s of choice %s", choice.InstrumentID, choice.ID)
	}
	if !instrument.Config.IsOneShot || !instrument.Config.IsOneShotCutoffEnabled {
		return nil
	}
	if !c.f.Config().FinalizesAudioLengthOf(instrument.Type) {
		return nil
	}

	picks := c.f.PicksOfChoice(choice.ID)
	total := c.f.TotalMicros()
	for _, pick := range picks {
		if pick.LengthMicros != nil && *pick.LengthMicros > 0 {
			continue
		}

		var next *int64
		for _, other := range picks {
			if other.StartAtSegmentMicros > pick.StartAtSegmentMicros {
				n := other.StartAtSegmentMicros
				next = &n
				break
			}
		}

		switch {
		case next != nil:
			l := *next - pick.StartAtSegmentMicros
			pick.LengthMicros = &l
		case pick.StartAtSegmentMicros < total:
			l := total - pick.StartAtSegmentMicros
			pick.LengthMicros = &l
		default:
			if err := c.f.DeletePick(pick.ID); err != nil {
				return fmt.Errorf("failed to delete pick %s: %w", pick.ID, err)
			}
			continue
		}
		if err := c.f.UpdatePick(pick); err != nil {
			return err
		}
	}
	return nil
}
