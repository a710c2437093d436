package domain

import (
	"slices"
	"time"
)

type SegmentType string

const (
	SegmentTypePending   SegmentType = "Pending"
	SegmentTypeInitial   SegmentType = "Initial"
	SegmentTypeContinue  SegmentType = "Continue"
	SegmentTypeNextMain  SegmentType = "NextMain"
	SegmentTypeNextMacro SegmentType = "NextMacro"
)

type SegmentState string

const (
	SegmentStatePlanned  SegmentState = "Planned"
	SegmentStateCrafting SegmentState = "Crafting"
	SegmentStateCrafted  SegmentState = "Crafted"
	SegmentStateDubbing  SegmentState = "Dubbing"
	SegmentStateDubbed   SegmentState = "Dubbed"
	SegmentStateFailed   SegmentState = "Failed"
)

var segmentTransitions = map[SegmentState][]SegmentState{
	SegmentStatePlanned:  {SegmentStatePlanned, SegmentStateCrafting},
	SegmentStateCrafting: {SegmentStateCrafting, SegmentStateCrafted, SegmentStateDubbing, SegmentStateFailed, SegmentStatePlanned},
	SegmentStateCrafted:  {SegmentStateCrafted, SegmentStateDubbing},
	SegmentStateDubbing:  {SegmentStateDubbing, SegmentStateDubbed, SegmentStateFailed},
	SegmentStateDubbed:   {SegmentStateDubbed},
	SegmentStateFailed:   {SegmentStateFailed},
}

// AllowedSegmentTransitions returns the states reachable from the given one.
func AllowedSegmentTransitions(from SegmentState) []SegmentState {
	return slices.Clone(segmentTransitions[from])
}

// ValidateSegmentTransition returns a privilege error if to is not reachable.
func ValidateSegmentTransition(from, to SegmentState) error {
	allowed := segmentTransitions[from]
	if !slices.Contains(allowed, to) {
		return TransitionError(to, allowed)
	}
	return nil
}

// IsSealed reports whether a segment in this state no longer accepts crafted content
func (s SegmentState) IsSealed() bool {
	return s == SegmentStateDubbed || s == SegmentStateFailed
}

// Segment is one fixed-duration slice of a chain
type Segment struct {
	ID                 string       `json:"id" db:"id" validate:"required"`
	ChainID            string       `json:"chain_id" db:"chain_id" validate:"required"`
	Offset             int          `json:"offset" db:"segment_offset" validate:"gte=0"`
	Type               SegmentType  `json:"type" db:"type" validate:"required"`
	State              SegmentState `json:"state" db:"state" validate:"required"`
	BeginAt            time.Time    `json:"begin_at" db:"begin_at" validate:"required"`
	EndAt              *time.Time   `json:"end_at,omitempty" db:"end_at"`
	BeginAtChainMicros int64        `json:"begin_at_chain_micros" db:"begin_at_chain_micros"`
	DurationMicros     *int64       `json:"duration_micros,omitempty" db:"duration_micros"`
	Total              int          `json:"total" db:"total"`
	Intensity          float64      `json:"intensity" db:"intensity"`
	Tempo              float64      `json:"tempo" db:"tempo"`
	Key                string       `json:"key" db:"key_name"`
	StorageKey         string       `json:"storage_key" db:"storage_key"`
	Delta              int          `json:"delta" db:"delta"`
	WaveformPreroll    float64      `json:"waveform_preroll" db:"waveform_preroll"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at" db:"updated_at"`
}

// EndMicros is the chain-relative end of the segment, if its duration is known
func (s *Segment) EndMicros() (int64, bool) {
	if s.DurationMicros == nil {
		return 0, false
	}
	return s.BeginAtChainMicros + *s.DurationMicros, true
}

// SetDuration records the crafted duration and derives the end time
func (s *Segment) SetDuration(micros int64) {
	s.DurationMicros = &micros
	end := s.BeginAt.Add(time.Duration(micros) * time.Microsecond)
	s.EndAt = &end
}

// Clone returns a copy safe to mutate without touching the stored value
func (s *Segment) Clone() *Segment {
	c := *s
	if s.EndAt != nil {
		end := *s.EndAt
		c.EndAt = &end
	}
	if s.DurationMicros != nil {
		d := *s.DurationMicros
		c.DurationMicros = &d
	}
	return &c
}
