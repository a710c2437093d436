package domain

// EntityKind names each kind of segment child entity
type EntityKind string

const (
	KindChoice       EntityKind = "choice"
	KindArrangement  EntityKind = "arrangement"
	KindPick         EntityKind = "pick"
	KindChord        EntityKind = "chord"
	KindChordVoicing EntityKind = "chord_voicing"
	KindMeme         EntityKind = "meme"
	KindMessage      EntityKind = "message"
	KindMeta         EntityKind = "meta"
)

// CraftedKinds are the kinds destroyed when a segment is reverted.
var CraftedKinds = []EntityKind{KindPick, KindArrangement, KindChoice, KindChordVoicing, KindChord, KindMeme}

// SegmentEntity is any entity owned by exactly one segment.
type SegmentEntity interface {
	EntityID() string
	SegmentRef() string
	Kind() EntityKind
}

// SegmentChoice is the selection of a program or instrument active in a segment
type SegmentChoice struct {
	ID                       string         `json:"id" db:"id"`
	SegmentID                string         `json:"segment_id" db:"segment_id"`
	ProgramID                string         `json:"program_id,omitempty" db:"program_id"`
	ProgramType              ProgramType    `json:"program_type,omitempty" db:"program_type"`
	ProgramSequenceID        string         `json:"program_sequence_id,omitempty" db:"program_sequence_id"`
	ProgramSequenceBindingID string         `json:"program_sequence_binding_id,omitempty" db:"program_sequence_binding_id"`
	ProgramVoiceID           string         `json:"program_voice_id,omitempty" db:"program_voice_id"`
	InstrumentID             string         `json:"instrument_id,omitempty" db:"instrument_id"`
	InstrumentType           InstrumentType `json:"instrument_type,omitempty" db:"instrument_type"`
	InstrumentMode           InstrumentMode `json:"instrument_mode,omitempty" db:"instrument_mode"`
	DeltaIn                  int            `json:"delta_in" db:"delta_in"`
	DeltaOut                 int            `json:"delta_out" db:"delta_out"`
	Mute                     bool           `json:"mute" db:"mute"`
}

func (c SegmentChoice) EntityID() string   { return c.ID }
func (c SegmentChoice) SegmentRef() string { return c.SegmentID }
func (c SegmentChoice) Kind() EntityKind   { return KindChoice }

// SegmentChoiceArrangement binds a choice to a pattern, or to none for chord parts
type SegmentChoiceArrangement struct {
	ID                       string `json:"id" db:"id"`
	SegmentID                string `json:"segment_id" db:"segment_id"`
	SegmentChoiceID          string `json:"segment_choice_id" db:"segment_choice_id" validate:"required"`
	ProgramSequencePatternID string `json:"program_sequence_pattern_id,omitempty" db:"program_sequence_pattern_id"`
}

func (a SegmentChoiceArrangement) EntityID() string   { return a.ID }
func (a SegmentChoiceArrangement) SegmentRef() string { return a.SegmentID }
func (a SegmentChoiceArrangement) Kind() EntityKind   { return KindArrangement }

// SegmentChoiceArrangementPick is one concrete, precisely timed audio event
type SegmentChoiceArrangementPick struct {
	ID                            string  `json:"id" db:"id"`
	SegmentID                     string  `json:"segment_id" db:"segment_id"`
	SegmentChoiceArrangementID    string  `json:"segment_choice_arrangement_id" db:"segment_choice_arrangement_id" validate:"required"`
	ProgramSequencePatternEventID string  `json:"program_sequence_pattern_event_id,omitempty" db:"program_sequence_pattern_event_id"`
	InstrumentAudioID             string  `json:"instrument_audio_id" db:"instrument_audio_id" validate:"required"`
	SegmentChordVoicingID         string  `json:"segment_chord_voicing_id,omitempty" db:"segment_chord_voicing_id"`
	StartAtSegmentMicros          int64   `json:"start_at_segment_micros" db:"start_at_segment_micros" validate:"gte=0"`
	LengthMicros                  *int64  `json:"length_micros,omitempty" db:"length_micros"`
	Amplitude                     float64 `json:"amplitude" db:"amplitude"`
	Tones                         string  `json:"tones" db:"tones"`
	Event                         string  `json:"event" db:"event"`
}

func (p SegmentChoiceArrangementPick) EntityID() string   { return p.ID }
func (p SegmentChoiceArrangementPick) SegmentRef() string { return p.SegmentID }
func (p SegmentChoiceArrangementPick) Kind() EntityKind   { return KindPick }

// SegmentChord is a chord symbol at a beat position
type SegmentChord struct {
	ID        string  `json:"id" db:"id"`
	SegmentID string  `json:"segment_id" db:"segment_id"`
	Name      string  `json:"name" db:"name" validate:"required"`
	Position  float64 `json:"position" db:"position" validate:"gte=0"`
}

func (c SegmentChord) EntityID() string   { return c.ID }
func (c SegmentChord) SegmentRef() string { return c.SegmentID }
func (c SegmentChord) Kind() EntityKind   { return KindChord }

// SegmentChordVoicing is the note list of a chord for one instrument type
type SegmentChordVoicing struct {
	ID             string         `json:"id" db:"id"`
	SegmentID      string         `json:"segment_id" db:"segment_id"`
	SegmentChordID string         `json:"segment_chord_id" db:"segment_chord_id" validate:"required"`
	Type           InstrumentType `json:"type" db:"type" validate:"required"`
	Notes          string         `json:"notes" db:"notes"`
}

func (v SegmentChordVoicing) EntityID() string   { return v.ID }
func (v SegmentChordVoicing) SegmentRef() string { return v.SegmentID }
func (v SegmentChordVoicing) Kind() EntityKind   { return KindChordVoicing }

type SegmentMeme struct {
	ID        string `json:"id" db:"id"`
	SegmentID string `json:"segment_id" db:"segment_id"`
	Name      string `json:"name" db:"name" validate:"required"`
}

func (m SegmentMeme) EntityID() string   { return m.ID }
func (m SegmentMeme) SegmentRef() string { return m.SegmentID }
func (m SegmentMeme) Kind() EntityKind   { return KindMeme }

type MessageType string

const (
	MessageTypeDebug   MessageType = "Debug"
	MessageTypeInfo    MessageType = "Info"
	MessageTypeWarning MessageType = "Warning"
	MessageTypeError   MessageType = "Error"
)

type SegmentMessage struct {
	ID        string      `json:"id" db:"id"`
	SegmentID string      `json:"segment_id" db:"segment_id"`
	Type      MessageType `json:"type" db:"type" validate:"required"`
	Body      string      `json:"body" db:"body"`
}

func (m SegmentMessage) EntityID() string   { return m.ID }
func (m SegmentMessage) SegmentRef() string { return m.SegmentID }
func (m SegmentMessage) Kind() EntityKind   { return KindMessage }

// SegmentMeta is a free-form persisted note scoped to a segment
type SegmentMeta struct {
	ID        string `json:"id" db:"id"`
	SegmentID string `json:"segment_id" db:"segment_id"`
	Key       string `json:"key" db:"key" validate:"required"`
	Value     string `json:"value" db:"value"`
}

func (m SegmentMeta) EntityID() string   { return m.ID }
func (m SegmentMeta) SegmentRef() string { return m.SegmentID }
func (m SegmentMeta) Kind() EntityKind   { return KindMeta }
