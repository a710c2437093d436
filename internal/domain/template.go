package domain

import (
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// MemeCategory is one mutually exclusive group of the meme taxonomy
type MemeCategory struct {
	Name  string   `json:"name" yaml:"name"`
	Memes []string `json:"memes" yaml:"memes"`
}

// TemplateConfig tunes how segments of chains built from a template are crafted
type TemplateConfig struct {
	ChoiceMuteProbability                     map[InstrumentType]float64 `json:"choice_mute_probability" yaml:"choiceMuteProbability"`
	DeltaArcBeatLayersIncoming                int                        `json:"delta_arc_beat_layers_incoming" yaml:"deltaArcBeatLayersIncoming"`
	DeltaArcBeatLayersToPrioritize            []string                   `json:"delta_arc_beat_layers_to_prioritize" yaml:"deltaArcBeatLayersToPrioritize"`
	DeltaArcDetailLayersIncoming              int                        `json:"delta_arc_detail_layers_incoming" yaml:"deltaArcDetailLayersIncoming"`
	DeltaArcEnabled                           bool                       `json:"delta_arc_enabled" yaml:"deltaArcEnabled"`
	DetailLayerOrder                          []InstrumentType           `json:"detail_layer_order" yaml:"detailLayerOrder"`
	EventNamesLarge                           []string                   `json:"event_names_large" yaml:"eventNamesLarge"`
	EventNamesMedium                          []string                   `json:"event_names_medium" yaml:"eventNamesMedium"`
	EventNamesSmall                           []string                   `json:"event_names_small" yaml:"eventNamesSmall"`
	InstrumentTypesForAudioLengthFinalization []InstrumentType           `json:"instrument_types_for_audio_length_finalization" yaml:"instrumentTypesForAudioLengthFinalization"`
	InstrumentTypesForInversionSeeking        []InstrumentType           `json:"instrument_types_for_inversion_seeking" yaml:"instrumentTypesForInversionSeeking"`
	IntensityAutoCrescendoEnabled             bool                       `json:"intensity_auto_crescendo_enabled" yaml:"intensityAutoCrescendoEnabled"`
	IntensityAutoCrescendoMaximum             float64                    `json:"intensity_auto_crescendo_maximum" yaml:"intensityAutoCrescendoMaximum"`
	IntensityAutoCrescendoMinimum             float64                    `json:"intensity_auto_crescendo_minimum" yaml:"intensityAutoCrescendoMinimum"`
	IntensityLayers                           map[InstrumentType]int     `json:"intensity_layers" yaml:"intensityLayers"`
	MainProgramLengthMaxDelta                 int                        `json:"main_program_length_max_delta" yaml:"mainProgramLengthMaxDelta"`
	MemeTaxonomy                              []MemeCategory             `json:"meme_taxonomy" yaml:"memeTaxonomy"`
	StickyBunEnabled                          bool                       `json:"sticky_bun_enabled" yaml:"stickyBunEnabled"`
}

func DefaultTemplateConfig() TemplateConfig {
	mute := make(map[InstrumentType]float64, len(InstrumentTypes))
	for _, t := range InstrumentTypes {
		mute[t] = 0
	}
	return TemplateConfig{
		ChoiceMuteProbability:          mute,
		DeltaArcBeatLayersIncoming:     1,
		DeltaArcBeatLayersToPrioritize: []string{"kick"},
		DeltaArcDetailLayersIncoming:   1,
		DeltaArcEnabled:                false,
		DetailLayerOrder: []InstrumentType{
			InstrumentTypeBass, InstrumentTypePad, InstrumentTypeStab, InstrumentTypeSticky, InstrumentTypeStripe,
		},
		EventNamesLarge:  []string{"BIG", "HIGH", "LARGE", "PRIMARY"},
		EventNamesMedium: []string{"MEDIUM", "MIDDLE", "REGULAR", "SECONDARY"},
		EventNamesSmall:  []string{"LITTLE", "LOW", "SMALL"},
		InstrumentTypesForAudioLengthFinalization: []InstrumentType{
			InstrumentTypeBass, InstrumentTypePad, InstrumentTypeStab, InstrumentTypeSticky, InstrumentTypeStripe,
		},
		InstrumentTypesForInversionSeeking: []InstrumentType{
			InstrumentTypePad, InstrumentTypeStab, InstrumentTypeSticky, InstrumentTypeStripe,
		},
		IntensityAutoCrescendoEnabled: true,
		IntensityAutoCrescendoMaximum: 0.8,
		IntensityAutoCrescendoMinimum: 0.2,
		IntensityLayers: map[InstrumentType]int{
			InstrumentTypeBackground: 3,
			InstrumentTypeBass:       1,
			InstrumentTypeDrum:       1,
			InstrumentTypeHook:       3,
			InstrumentTypePad:        3,
			InstrumentTypePercussion: 3,
			InstrumentTypeStab:       2,
			InstrumentTypeSticky:     2,
			InstrumentTypeStripe:     2,
			InstrumentTypeTransition: 3,
		},
		MainProgramLengthMaxDelta: 280,
		MemeTaxonomy: []MemeCategory{
			{Name: "COLOR", Memes: []string{"BLUE", "GREEN", "RED"}},
			{Name: "SEASON", Memes: []string{"FALL", "SPRING", "SUMMER", "WINTER"}},
		},
		StickyBunEnabled: true,
	}
}

func (c *TemplateConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain TemplateConfig
	p := plain(DefaultTemplateConfig())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = TemplateConfig(p)
	return nil
}

// ParseTemplateConfig reads YAML overrides on top of the defaults.
func ParseTemplateConfig(data []byte) (TemplateConfig, error) {
	cfg := DefaultTemplateConfig()
	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return TemplateConfig{}, Validationf("invalid template config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return TemplateConfig{}, err
	}
	return cfg, nil
}

// Validate checks ranges that would make craft misbehave
func (c TemplateConfig) Validate() error {
	var problems []string
	for t, p := range c.ChoiceMuteProbability {
		if p < 0 || p > 1 {
			problems = append(problems, fmt.Sprintf("choiceMuteProbability[%s] must be within 0..1, got %v", t, p))
		}
	}
	if c.IntensityAutoCrescendoMinimum > c.IntensityAutoCrescendoMaximum {
		problems = append(problems, "intensityAutoCrescendoMinimum must not exceed intensityAutoCrescendoMaximum")
	}
	if c.MainProgramLengthMaxDelta < 0 {
		problems = append(problems, "mainProgramLengthMaxDelta cannot be negative")
	}
	for t, n := range c.IntensityLayers {
		if n < 1 {
			problems = append(problems, fmt.Sprintf("intensityLayers[%s] must be at least 1, got %d", t, n))
		}
	}
	if len(problems) > 0 {
		return Validationf("invalid template config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Marshal renders the config as YAML for storage
func (c TemplateConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c TemplateConfig) MuteProbability(t InstrumentType) float64 {
	return c.ChoiceMuteProbability[t]
}

// LayersOf returns the configured intensity layer count, at least 1
func (c TemplateConfig) LayersOf(t InstrumentType) int {
	if n, ok := c.IntensityLayers[t]; ok && n > 0 {
		return n
	}
	return 1
}

func (c TemplateConfig) FinalizesAudioLengthOf(t InstrumentType) bool {
	return slices.Contains(c.InstrumentTypesForAudioLengthFinalization, t)
}

func (c TemplateConfig) SeeksInversionsFor(t InstrumentType) bool {
	return slices.Contains(c.InstrumentTypesForInversionSeeking, t)
}
