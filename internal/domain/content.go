package domain

import (
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

type ProgramType string

const (
	ProgramTypeMain   ProgramType = "Main"
	ProgramTypeMacro  ProgramType = "Macro"
	ProgramTypeBeat   ProgramType = "Beat"
	ProgramTypeDetail ProgramType = "Detail"
)

type InstrumentType string

const (
	InstrumentTypeBackground InstrumentType = "Background"
	InstrumentTypeBass       InstrumentType = "Bass"
	InstrumentTypeDrum       InstrumentType = "Drum"
	InstrumentTypeHook       InstrumentType = "Hook"
	InstrumentTypePad        InstrumentType = "Pad"
	InstrumentTypePercussion InstrumentType = "Percussion"
	InstrumentTypeStab       InstrumentType = "Stab"
	InstrumentTypeSticky     InstrumentType = "Sticky"
	InstrumentTypeStripe     InstrumentType = "Stripe"
	InstrumentTypeTransition InstrumentType = "Transition"
)

// InstrumentTypes lists every instrument type in display order
var InstrumentTypes = []InstrumentType{
	InstrumentTypeBackground,
	InstrumentTypeBass,
	InstrumentTypeDrum,
	InstrumentTypeHook,
	InstrumentTypePad,
	InstrumentTypePercussion,
	InstrumentTypeStab,
	InstrumentTypeSticky,
	InstrumentTypeStripe,
	InstrumentTypeTransition,
}

type InstrumentMode string

const (
	InstrumentModeEvent InstrumentMode = "Event"
	InstrumentModeChord InstrumentMode = "Chord"
	InstrumentModeLoop  InstrumentMode = "Loop"
)

type ContentState string

const (
	ContentStateDraft     ContentState = "Draft"
	ContentStatePublished ContentState = "Published"
)

// ProgramConfig holds per-program craft settings
type ProgramConfig struct {
	BarBeats                int  `json:"bar_beats" yaml:"barBeats"`
	CutoffMinimumBars       int  `json:"cutoff_minimum_bars" yaml:"cutoffMinimumBars"`
	DoPatternRestartOnChord bool `json:"do_pattern_restart_on_chord" yaml:"doPatternRestartOnChord"`
}

func DefaultProgramConfig() ProgramConfig {
	return ProgramConfig{
		BarBeats:          4,
		CutoffMinimumBars: 2,
	}
}

func (c *ProgramConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain ProgramConfig
	p := plain(DefaultProgramConfig())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = ProgramConfig(p)
	return nil
}

// InstrumentConfig holds per-instrument audio selection settings
type InstrumentConfig struct {
	IsAudioSelectionPersistent   bool     `json:"is_audio_selection_persistent" yaml:"isAudioSelectionPersistent"`
	IsMultiphonic                bool     `json:"is_multiphonic" yaml:"isMultiphonic"`
	IsOneShot                    bool     `json:"is_one_shot" yaml:"isOneShot"`
	IsOneShotCutoffEnabled       bool     `json:"is_one_shot_cutoff_enabled" yaml:"isOneShotCutoffEnabled"`
	IsTonal                      bool     `json:"is_tonal" yaml:"isTonal"`
	OneShotObserveLengthOfEvents []string `json:"one_shot_observe_length_of_events" yaml:"oneShotObserveLengthOfEvents"`
}

func DefaultInstrumentConfig() InstrumentConfig {
	return InstrumentConfig{
		IsAudioSelectionPersistent: true,
		IsOneShotCutoffEnabled:     true,
	}
}

func (c *InstrumentConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain InstrumentConfig
	p := plain(DefaultInstrumentConfig())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = InstrumentConfig(p)
	return nil
}

// ObservesLengthOf reports whether one-shot playback still honours the event length of a track
func (c InstrumentConfig) ObservesLengthOf(trackName string) bool {
	return slices.ContainsFunc(c.OneShotObserveLengthOfEvents, func(s string) bool {
		return strings.EqualFold(s, trackName)
	})
}

type Program struct {
	ID        string        `json:"id" yaml:"id" validate:"required"`
	LibraryID string        `json:"library_id" yaml:"libraryId"`
	Type      ProgramType   `json:"type" yaml:"type" validate:"required"`
	State     ContentState  `json:"state" yaml:"state"`
	Name      string        `json:"name" yaml:"name"`
	Key       string        `json:"key" yaml:"key"`
	Tempo     float64       `json:"tempo" yaml:"tempo"`
	Intensity float64       `json:"intensity" yaml:"intensity"`
	Config    ProgramConfig `json:"config" yaml:"config"`
}

func (p *Program) UnmarshalYAML(value *yaml.Node) error {
	type plain Program
	out := plain{Config: DefaultProgramConfig()}
	if err := value.Decode(&out); err != nil {
		return err
	}
	*p = Program(out)
	return nil
}

type ProgramMeme struct {
	ID        string `json:"id" yaml:"id" validate:"required"`
	ProgramID string `json:"program_id" yaml:"programId" validate:"required"`
	Name      string `json:"name" yaml:"name"`
}

type ProgramSequence struct {
	ID        string  `json:"id" yaml:"id" validate:"required"`
	ProgramID string  `json:"program_id" yaml:"programId" validate:"required"`
	Name      string  `json:"name" yaml:"name"`
	Key       string  `json:"key" yaml:"key"`
	Total     int     `json:"total" yaml:"total"`
	Intensity float64 `json:"intensity" yaml:"intensity"`
}

type ProgramSequenceBinding struct {
	ID                string `json:"id" yaml:"id" validate:"required"`
	ProgramID         string `json:"program_id" yaml:"programId" validate:"required"`
	ProgramSequenceID string `json:"program_sequence_id" yaml:"programSequenceId" validate:"required"`
	Offset            int    `json:"offset" yaml:"offset"`
}

type ProgramSequenceBindingMeme struct {
	ID                       string `json:"id" yaml:"id" validate:"required"`
	ProgramID                string `json:"program_id" yaml:"programId" validate:"required"`
	ProgramSequenceBindingID string `json:"program_sequence_binding_id" yaml:"programSequenceBindingId" validate:"required"`
	Name                     string `json:"name" yaml:"name"`
}

type ProgramSequenceChord struct {
	ID                string  `json:"id" yaml:"id" validate:"required"`
	ProgramID         string  `json:"program_id" yaml:"programId" validate:"required"`
	ProgramSequenceID string  `json:"program_sequence_id" yaml:"programSequenceId" validate:"required"`
	Name              string  `json:"name" yaml:"name"`
	Position          float64 `json:"position" yaml:"position"`
}

type ProgramSequenceChordVoicing struct {
	ID                     string `json:"id" yaml:"id" validate:"required"`
	ProgramID              string `json:"program_id" yaml:"programId" validate:"required"`
	ProgramSequenceChordID string `json:"program_sequence_chord_id" yaml:"programSequenceChordId" validate:"required"`
	ProgramVoiceID         string `json:"program_voice_id" yaml:"programVoiceId" validate:"required"`
	Notes                  string `json:"notes" yaml:"notes"`
}

type ProgramVoice struct {
	ID        string         `json:"id" yaml:"id" validate:"required"`
	ProgramID string         `json:"program_id" yaml:"programId" validate:"required"`
	Type      InstrumentType `json:"type" yaml:"type"`
	Name      string         `json:"name" yaml:"name"`
	Order     float64        `json:"order" yaml:"order"`
}

type ProgramVoiceTrack struct {
	ID             string  `json:"id" yaml:"id" validate:"required"`
	ProgramID      string  `json:"program_id" yaml:"programId" validate:"required"`
	ProgramVoiceID string  `json:"program_voice_id" yaml:"programVoiceId" validate:"required"`
	Name           string  `json:"name" yaml:"name"`
	Order          float64 `json:"order" yaml:"order"`
}

type ProgramSequencePattern struct {
	ID                string `json:"id" yaml:"id" validate:"required"`
	ProgramID         string `json:"program_id" yaml:"programId" validate:"required"`
	ProgramSequenceID string `json:"program_sequence_id" yaml:"programSequenceId" validate:"required"`
	ProgramVoiceID    string `json:"program_voice_id" yaml:"programVoiceId" validate:"required"`
	Name              string `json:"name" yaml:"name"`
	Total             int    `json:"total" yaml:"total"`
}

type ProgramSequencePatternEvent struct {
	ID                       string  `json:"id" yaml:"id" validate:"required"`
	ProgramID                string  `json:"program_id" yaml:"programId" validate:"required"`
	ProgramSequencePatternID string  `json:"program_sequence_pattern_id" yaml:"programSequencePatternId" validate:"required"`
	ProgramVoiceTrackID      string  `json:"program_voice_track_id" yaml:"programVoiceTrackId"`
	Position                 float64 `json:"position" yaml:"position"`
	Duration                 float64 `json:"duration" yaml:"duration"`
	Velocity                 float64 `json:"velocity" yaml:"velocity"`
	Tones                    string  `json:"tones" yaml:"tones"`
}

type Instrument struct {
	ID        string           `json:"id" yaml:"id" validate:"required"`
	LibraryID string           `json:"library_id" yaml:"libraryId"`
	Type      InstrumentType   `json:"type" yaml:"type" validate:"required"`
	Mode      InstrumentMode   `json:"mode" yaml:"mode"`
	State     ContentState     `json:"state" yaml:"state"`
	Name      string           `json:"name" yaml:"name"`
	Volume    float64          `json:"volume" yaml:"volume"`
	Config    InstrumentConfig `json:"config" yaml:"config"`
}

func (i *Instrument) UnmarshalYAML(value *yaml.Node) error {
	type plain Instrument
	out := plain{Config: DefaultInstrumentConfig()}
	if err := value.Decode(&out); err != nil {
		return err
	}
	*i = Instrument(out)
	return nil
}

type InstrumentMeme struct {
	ID           string `json:"id" yaml:"id" validate:"required"`
	InstrumentID string `json:"instrument_id" yaml:"instrumentId" validate:"required"`
	Name         string `json:"name" yaml:"name"`
}

type InstrumentAudio struct {
	ID           string  `json:"id" yaml:"id" validate:"required"`
	InstrumentID string  `json:"instrument_id" yaml:"instrumentId" validate:"required"`
	Name         string  `json:"name" yaml:"name"`
	Event        string  `json:"event" yaml:"event"`
	Tones        string  `json:"tones" yaml:"tones"`
	Intensity    float64 `json:"intensity" yaml:"intensity"`
	Volume       float64 `json:"volume" yaml:"volume"`
	Tempo        float64 `json:"tempo" yaml:"tempo"`
	TotalBeats   float64 `json:"total_beats" yaml:"totalBeats"`
	WaveformKey  string  `json:"waveform_key" yaml:"waveformKey"`
}

type ContentBindingType string

const (
	ContentBindingProgram    ContentBindingType = "Program"
	ContentBindingInstrument ContentBindingType = "Instrument"
	ContentBindingLibrary    ContentBindingType = "Library"
)

// TemplateBinding makes a program, instrument or whole library available to a template
type TemplateBinding struct {
	ID          string             `json:"id" yaml:"id" validate:"required"`
	TemplateID  string             `json:"template_id" yaml:"templateId" validate:"required"`
	ContentType ContentBindingType `json:"content_type" yaml:"contentType"`
	TargetID    string             `json:"target_id" yaml:"targetId" validate:"required"`
}

type Template struct {
	ID      string         `json:"id" yaml:"id" validate:"required"`
	Name    string         `json:"name" yaml:"name"`
	ShipKey string         `json:"ship_key" yaml:"shipKey"`
	Config  TemplateConfig `json:"config" yaml:"config"`
}

func (t *Template) UnmarshalYAML(value *yaml.Node) error {
	type plain Template
	out := plain{Config: DefaultTemplateConfig()}
	if err := value.Decode(&out); err != nil {
		return err
	}
	*t = Template(out)
	return nil
}
