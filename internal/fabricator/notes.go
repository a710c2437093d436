package fabricator

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/cesargomez89/segmentcraft/internal/constants"
	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/music"
)

// StickyBunKeyPrefix prefixes the segment meta key of an event's sticky bun.
const StickyBunKeyPrefix = "StickyBun_"

// ProgramRange spans the tonal notes of every event the program's voices of
// an instrument type play.
func (f *Fabricator) ProgramRange(programID string, t domain.InstrumentType) music.NoteRange {
	key := programID + "_" + string(t)
	if r, ok := f.programRanges[key]; ok {
		return r
	}
	var r music.NoteRange
	for _, e := range f.material.EventsOfProgramVoiceType(programID, t) {
		r.Expand(music.NotesOf(e.Tones)...)
	}
	f.programRanges[key] = r
	return r
}

// ProgramRangeShiftOctaves is the octave shift bringing a source range onto
// the target. Bass aligns lowest notes, drums never shift and everything else
// aligns medians.
func (f *Fabricator) ProgramRangeShiftOctaves(t domain.InstrumentType, source, target music.NoteRange) int {
	switch t {
	case domain.InstrumentTypeBass:
		return source.LowestOptimalShiftOctaves(target)
	case domain.InstrumentTypeDrum:
		return 0
	default:
		return source.MedianOptimalShiftOctaves(target)
	}
}

// ProgramTargetShift is the transposition from a program's key chord to the
// segment chord. Bass follows the slash root.
func (f *Fabricator) ProgramTargetShift(t domain.InstrumentType, from, to music.Chord) int {
	if from.IsNoChord() || to.IsNoChord() {
		return 0
	}
	if t == domain.InstrumentTypeBass {
		return from.Root.Delta(to.SlashRoot)
	}
	return from.Root.Delta(to.Root)
}

// StickyBunKey is the meta key a sticky bun is stored under.
func StickyBunKey(eventID string) string {
	return StickyBunKeyPrefix + eventID
}

// StickyBun returns the event's sticky bun from this segment, else from the
// nearest earlier segment, else a fresh one that is stored in this segment.
func (f *Fabricator) StickyBun(eventID string) (music.StickyBun, bool) {
	if !f.config.StickyBunEnabled {
		return music.StickyBun{}, false
	}
	key := StickyBunKey(eventID)

	for _, m := range f.Metas() {
		if m.Key != key {
			continue
		}
		if bun, err := music.ParseStickyBun(m.Value); err == nil {
			return bun, true
		}
	}

	if m, ok := f.retro.PreviousMeta(key); ok {
		if bun, err := music.ParseStickyBun(m.Value); err == nil {
			f.putMeta(key, m.Value)
			return bun, true
		}
		f.AddWarningMessage(fmt.Sprintf("Ignoring unreadable sticky bun for event %s", eventID))
	}

	event, ok := f.material.Event(eventID)
	if !ok {
		f.AddErrorMessage(fmt.Sprintf("Cannot create sticky bun for missing event %s", eventID))
		return music.StickyBun{}, false
	}
	bun := music.NewStickyBun(eventID, len(music.NotesOf(event.Tones)), f.rng)
	value, err := bun.Marshal()
	if err != nil {
		f.AddErrorMessage(err.Error())
		return music.StickyBun{}, false
	}
	f.putMeta(key, value)
	return bun, true
}

func (f *Fabricator) putMeta(key, value string) {
	meta := domain.SegmentMeta{ID: uuid.NewString(), SegmentID: f.segment.ID, Key: key, Value: value}
	if err := f.bench.PutEntity(meta); err != nil {
		f.logger.Error("Failed to put segment meta", "key", key, "error", err)
	}
}

// MicrosAtPosition converts a beat position to segment-relative microseconds.
// A segment holds one tempo from start to end; tempo changes happen at
// segment boundaries, never as a ramp inside one.
func (f *Fabricator) MicrosAtPosition(position float64) int64 {
	tempo := f.segment.Tempo
	if tempo <= 0 {
		return 0
	}
	tm, err := music.NewTimeMap(tempo, tempo, math.Max(1, float64(f.segment.Total)))
	if err != nil {
		return int64(float64(constants.MicrosPerMinute) / tempo * position)
	}
	return tm.MicrosAtPosition(position)
}

// TotalMicros is the segment duration, or the length of its beats when not yet set.
func (f *Fabricator) TotalMicros() int64 {
	if f.segment.DurationMicros != nil {
		return *f.segment.DurationMicros
	}
	return f.MicrosAtPosition(float64(f.segment.Total))
}

// Persistent audio selection

func preferredKey(parent, ident string) string {
	return parent + "__" + ident
}

// PreferredAudio returns the audio already chosen for a key in this segment
// or carried over from the previous one.
func (f *Fabricator) PreferredAudio(parent, ident string) (domain.InstrumentAudio, bool) {
	a, ok := f.preferredAudios[preferredKey(parent, ident)]
	return a, ok
}

func (f *Fabricator) PutPreferredAudio(parent, ident string, audio domain.InstrumentAudio) {
	f.preferredAudios[preferredKey(parent, ident)] = audio
}

// loadPreferredAudios seeds persistent selections from the previous
// segment's picks, keyed the same way craft keys new selections: by voice
// track and note for event picks, by instrument and chord for chord parts.
func (f *Fabricator) loadPreferredAudios() {
	for _, pick := range f.retro.Picks() {
		audio, ok := f.material.Audio(pick.InstrumentAudioID)
		if !ok {
			continue
		}
		instrument, ok := f.material.Instrument(audio.InstrumentID)
		if !ok || !instrument.Config.IsAudioSelectionPersistent {
			continue
		}

		if pick.ProgramSequencePatternEventID == "" {
			f.PutPreferredAudio(instrument.ID, pick.Tones, audio)
			continue
		}
		event, ok := f.material.Event(pick.ProgramSequencePatternEventID)
		if !ok {
			continue
		}
		parent := event.ProgramVoiceTrackID
		if parent == "" {
			parent = constants.UnknownKey
		}
		if instrument.Config.IsMultiphonic {
			f.PutPreferredAudio(parent, pick.Tones, audio)
		} else {
			f.PutPreferredAudio(parent, event.Tones, audio)
		}
	}
}
