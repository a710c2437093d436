package craft

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/cesargomez89/segmentcraft/internal/constants"
	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/marble"
	"github.com/cesargomez89/segmentcraft/internal/meme"
	"github.com/cesargomez89/segmentcraft/internal/music"
)

// Selection tiers: material bound to the template directly is always drawn
// before material that is merely published.
const (
	tierDirect    = 1
	tierPublished = 2
)

func memeNames[M any](memes []M, name func(M) string) []string {
	out := make([]string, 0, len(memes))
	for _, m := range memes {
		out = append(out, name(m))
	}
	return out
}

func (c *Craft) programMemes(programID string) []string {
	return memeNames(c.f.Material().MemesOfProgram(programID), func(m domain.ProgramMeme) string { return m.Name })
}

func (c *Craft) instrumentMemes(instrumentID string) []string {
	return memeNames(c.f.Material().MemesOfInstrument(instrumentID), func(m domain.InstrumentMeme) string { return m.Name })
}

func weight(iso *meme.Isometry, memes []string) int {
	return 1 + int(iso.Score(memes))
}

func (c *Craft) pickProgram(bag *marble.Bag) (domain.Program, bool) {
	id, err := bag.Pick()
	if err != nil {
		return domain.Program{}, false
	}
	return c.f.Material().Program(id)
}

func (c *Craft) pickInstrument(bag *marble.Bag) (domain.Instrument, bool) {
	id, err := bag.Pick()
	if err != nil {
		return domain.Instrument{}, false
	}
	return c.f.Material().Instrument(id)
}

func (c *Craft) pickAudio(bag *marble.Bag) (domain.InstrumentAudio, bool) {
	id, err := bag.Pick()
	if err != nil {
		return domain.InstrumentAudio{}, false
	}
	return c.f.Material().Audio(id)
}

// chooseFreshProgram draws a program of a type having at least one voice of
// the given instrument type, weighted by meme affinity with the segment.
func (c *Craft) chooseFreshProgram(t domain.ProgramType, voiceType domain.InstrumentType) (domain.Program, bool) {
	material := c.f.Material()
	iso := c.f.MemeIsometryOfSegment()
	bag := marble.New(c.f.Rand())

	for _, p := range material.ProgramsOfType(t) {
		hasVoice := slices.ContainsFunc(material.VoicesOfProgram(p.ID), func(v domain.ProgramVoice) bool { return v.Type == voiceType })
		if !hasVoice {
			continue
		}
		memes := c.programMemes(p.ID)
		if !iso.IsAllowed(memes) {
			continue
		}
		if material.IsProgramBound(p.ID) {
			bag.AddTier(tierDirect, p.ID, weight(iso, memes))
		}
		if p.State == domain.ContentStatePublished {
			bag.AddTier(tierPublished, p.ID, weight(iso, memes))
		}
	}

	c.f.PutReport("choiceOf"+string(voiceType)+string(t)+"Program", bag.String())
	return c.pickProgram(bag)
}

// chooseFreshInstrument draws an instrument of a type whose audios cover
// every required event name.
func (c *Craft) chooseFreshInstrument(t domain.InstrumentType, requireEvents []string, modes ...domain.InstrumentMode) (domain.Instrument, bool) {
	material := c.f.Material()
	iso := c.f.MemeIsometryOfSegment()
	bag := marble.New(c.f.Rand())

	for _, i := range material.InstrumentsOfType(t) {
		if len(modes) > 0 && !slices.Contains(modes, i.Mode) {
			continue
		}
		if !c.instrumentContainsAudioEventsLike(i, requireEvents) {
			continue
		}
		memes := c.instrumentMemes(i.ID)
		if !iso.IsAllowed(memes) {
			continue
		}
		if material.IsInstrumentBound(i.ID) {
			bag.AddTier(tierDirect, i.ID, weight(iso, memes))
		}
		if i.State == domain.ContentStatePublished {
			bag.AddTier(tierPublished, i.ID, weight(iso, memes))
		}
	}

	c.f.PutReport("choiceOf"+string(t)+"Instrument", bag.String())
	return c.pickInstrument(bag)
}

// chooseFreshInstrumentAudio draws an audio across instruments. Audios whose
// event is preferred win over the rest within the same binding tier.
func (c *Craft) chooseFreshInstrumentAudio(types []domain.InstrumentType, modes []domain.InstrumentMode, avoidIDs, preferredEvents []string) (domain.InstrumentAudio, bool) {
	material := c.f.Material()
	iso := c.f.MemeIsometryOfSegment()
	bag := marble.New(c.f.Rand())

	for _, a := range material.AudiosOfInstrumentTypesAndModes(types, modes) {
		if slices.Contains(avoidIDs, a.ID) {
			continue
		}
		instrument, ok := material.Instrument(a.InstrumentID)
		if !ok {
			continue
		}
		memes := c.instrumentMemes(a.InstrumentID)
		if !iso.IsAllowed(memes) {
			continue
		}
		preferred := containsFold(preferredEvents, a.Event)
		if material.IsInstrumentBound(instrument.ID) {
			tier := 3
			if preferred {
				tier = 1
			}
			bag.AddTier(tier, a.ID, weight(iso, memes))
		}
		if instrument.State == domain.ContentStatePublished {
			tier := 4
			if preferred {
				tier = 2
			}
			bag.AddTier(tier, a.ID, weight(iso, memes))
		}
	}

	names := make([]string, 0, len(types)+len(modes))
	for _, t := range types {
		names = append(names, string(t))
	}
	for _, m := range modes {
		names = append(names, string(m))
	}
	c.f.PutReport("choice"+strings.Join(names, ""), bag.String())
	return c.pickAudio(bag)
}

func (c *Craft) instrumentContainsAudioEventsLike(instrument domain.Instrument, requireEvents []string) bool {
	if len(requireEvents) == 0 {
		return true
	}
	audios := c.f.Material().AudiosOfInstrument(instrument.ID)
	for _, event := range requireEvents {
		found := slices.ContainsFunc(audios, func(a domain.InstrumentAudio) bool { return strings.EqualFold(a.Event, event) })
		if !found {
			return false
		}
	}
	return true
}

// selectChordPartAudio reuses the audio already chosen for the chord when the
// instrument keeps its selections.
func (c *Craft) selectChordPartAudio(instrument domain.Instrument, chord music.Chord) (domain.InstrumentAudio, bool) {
	if !instrument.Config.IsAudioSelectionPersistent {
		return c.selectNewChordPartAudio(instrument, chord)
	}
	if a, ok := c.preferredAudioOf(instrument, instrument.ID, chord.Name()); ok {
		return a, true
	}
	a, ok := c.selectNewChordPartAudio(instrument, chord)
	if ok {
		c.f.PutPreferredAudio(instrument.ID, chord.Name(), a)
	}
	return a, ok
}

// selectNewChordPartAudio prefers an audio of exactly the chord over one
// that is merely acceptable.
func (c *Craft) selectNewChordPartAudio(instrument domain.Instrument, chord music.Chord) (domain.InstrumentAudio, bool) {
	bag := marble.New(c.f.Rand())
	for _, a := range c.f.Material().AudiosOfInstrument(instrument.ID) {
		audioChord := music.ChordOf(a.Tones)
		switch {
		case audioChord.Equals(chord):
			bag.AddTier(0, a.ID, 1)
		case audioChord.IsAcceptable(chord):
			bag.AddTier(1, a.ID, 1)
		}
	}
	return c.pickAudio(bag)
}

// preferredAudioOf only honours a remembered audio that belongs to the instrument.
func (c *Craft) preferredAudioOf(instrument domain.Instrument, parent, ident string) (domain.InstrumentAudio, bool) {
	a, ok := c.f.PreferredAudio(parent, ident)
	if !ok || a.InstrumentID != instrument.ID {
		return domain.InstrumentAudio{}, false
	}
	return a, true
}

// selectGeneralAudioIntensityLayers keeps the previous segment's audios of a
// persistent instrument, otherwise draws one audio per intensity layer.
func (c *Craft) selectGeneralAudioIntensityLayers(instrument domain.Instrument) []domain.InstrumentAudio {
	if instrument.Config.IsAudioSelectionPersistent {
		var out []domain.InstrumentAudio
		seen := make(map[string]bool)
		for _, pick := range c.f.Retrospective().PreviousPicksForInstrument(instrument.ID) {
			if seen[pick.InstrumentAudioID] {
				continue
			}
			if a, ok := c.f.Material().Audio(pick.InstrumentAudioID); ok {
				seen[a.ID] = true
				out = append(out, a)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return c.selectAudioIntensityLayers(c.f.Material().AudiosOfInstrument(instrument.ID), c.f.Config().LayersOf(instrument.Type))
}

// selectAudioIntensityLayers sorts audios by intensity, splits them into
// equal buckets and draws one audio from each.
func (c *Craft) selectAudioIntensityLayers(audios []domain.InstrumentAudio, layers int) []domain.InstrumentAudio {
	if len(audios) == 0 || layers < 1 {
		return nil
	}
	sorted := slices.Clone(audios)
	slices.SortStableFunc(sorted, func(a, b domain.InstrumentAudio) int { return cmp.Compare(a.Intensity, b.Intensity) })

	perLayer := (len(sorted) + layers - 1) / layers
	bags := make([]*marble.Bag, layers)
	for i := range bags {
		bags[i] = marble.New(c.f.Rand())
	}
	for i, a := range sorted {
		bags[i/perLayer].Add(a.ID, 1)
	}

	var out []domain.InstrumentAudio
	for _, bag := range bags {
		if bag.IsEmpty() {
			continue
		}
		if a, ok := c.pickAudio(bag); ok {
			out = append(out, a)
		}
	}
	return out
}

// selectMultiphonicAudio picks an audio for one note of an event.
func (c *Craft) selectMultiphonicAudio(instrument domain.Instrument, event domain.ProgramSequencePatternEvent, note string) (domain.InstrumentAudio, bool) {
	if !instrument.Config.IsAudioSelectionPersistent {
		return c.selectNewMultiphonicAudio(instrument, note)
	}
	parent := trackKey(event)
	if a, ok := c.preferredAudioOf(instrument, parent, note); ok {
		return a, true
	}
	a, ok := c.selectNewMultiphonicAudio(instrument, note)
	if ok {
		c.f.PutPreferredAudio(parent, note, a)
	}
	return a, ok
}

// selectMonophonicAudio picks the one audio an event plays, whatever its notes.
func (c *Craft) selectMonophonicAudio(instrument domain.Instrument, event domain.ProgramSequencePatternEvent) (domain.InstrumentAudio, bool) {
	if !instrument.Config.IsAudioSelectionPersistent {
		return c.selectNewNoteEventAudio(instrument, event)
	}
	parent := trackKey(event)
	if a, ok := c.preferredAudioOf(instrument, parent, event.Tones); ok {
		return a, true
	}
	a, ok := c.selectNewNoteEventAudio(instrument, event)
	if ok {
		c.f.PutPreferredAudio(parent, event.Tones, a)
	}
	return a, ok
}

func trackKey(event domain.ProgramSequencePatternEvent) string {
	if event.ProgramVoiceTrackID == "" {
		return constants.UnknownKey
	}
	return event.ProgramVoiceTrackID
}

// selectNewNoteEventAudio scores drum audios by event name and everything
// else by note, keeping the first audio with the best score.
func (c *Craft) selectNewNoteEventAudio(instrument domain.Instrument, event domain.ProgramSequencePatternEvent) (domain.InstrumentAudio, bool) {
	audios := c.f.Material().AudiosOfInstrument(instrument.ID)
	if len(audios) == 0 {
		return domain.InstrumentAudio{}, false
	}
	trackName := c.trackName(event)
	eventNote := music.NoteOf(firstTone(event.Tones))

	best, bestScore := audios[0], -1
	for _, a := range audios {
		score := 0
		if instrument.Type == domain.InstrumentTypeDrum {
			if strings.EqualFold(a.Event, trackName) {
				score = constants.ScoreMatchedEventName
			}
		} else if music.NoteOf(a.Tones) == eventNote {
			score = constants.ScoreMatchedNote
		}
		if score > bestScore {
			best, bestScore = a, score
		}
	}
	return best, true
}

// selectNewMultiphonicAudio draws among audios playing the note, where an
// atonal note or audio matches anything.
func (c *Craft) selectNewMultiphonicAudio(instrument domain.Instrument, note string) (domain.InstrumentAudio, bool) {
	audios := c.f.Material().AudiosOfInstrument(instrument.ID)
	want := music.NoteOf(note)

	var candidates []domain.InstrumentAudio
	for _, a := range audios {
		if strings.TrimSpace(a.Tones) == "" {
			continue
		}
		have := music.NoteOf(a.Tones)
		if want.IsAtonal() || have.IsAtonal() || want == have {
			candidates = append(candidates, a)
		}
	}

	if len(candidates) == 0 {
		available := make([]music.Note, 0, len(audios))
		for _, a := range audios {
			available = append(available, music.NoteOf(a.Tones))
		}
		c.reportMissing(map[string]string{
			"instrumentId":   instrument.ID,
			"searchForNote":  note,
			"availableNotes": music.JoinNotes(music.SortNotes(available), music.Sharp),
		})
		return domain.InstrumentAudio{}, false
	}
	return candidates[marble.QuickPick(c.f.Rand(), len(candidates))], true
}

func (c *Craft) reportMissing(details map[string]string) {
	parts := make([]string, 0, len(details))
	for _, k := range slices.Sorted(maps.Keys(details)) {
		parts = append(parts, k+"="+details[k])
	}
	c.f.AddWarningMessage("Missing audio: " + strings.Join(parts, " "))
}

func firstTone(tones string) string {
	first, _, _ := strings.Cut(tones, ",")
	return strings.TrimSpace(first)
}

func containsFold(list []string, s string) bool {
	return slices.ContainsFunc(list, func(x string) bool { return strings.EqualFold(x, s) })
}
