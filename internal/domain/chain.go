package domain

import (
	"slices"
	"time"
)

type ChainType string

const (
	ChainTypeProduction ChainType = "Production"
	ChainTypePreview    ChainType = "Preview"
)

type ChainState string

const (
	ChainStateDraft     ChainState = "Draft"
	ChainStateReady     ChainState = "Ready"
	ChainStateFabricate ChainState = "Fabricate"
	ChainStateComplete  ChainState = "Complete"
	ChainStateFailed    ChainState = "Failed"
)

var chainTransitions = map[ChainState][]ChainState{
	ChainStateDraft:     {ChainStateDraft, ChainStateReady},
	ChainStateReady:     {ChainStateDraft, ChainStateReady, ChainStateFabricate},
	ChainStateFabricate: {ChainStateFabricate, ChainStateFailed, ChainStateComplete},
	ChainStateComplete:  {ChainStateComplete},
	ChainStateFailed:    {ChainStateFailed},
}

// AllowedChainTransitions returns the states reachable from the given one.
func AllowedChainTransitions(from ChainState) []ChainState {
	return slices.Clone(chainTransitions[from])
}

// ValidateChainTransition returns a privilege error if to is not reachable.
func ValidateChainTransition(from, to ChainState) error {
	allowed := chainTransitions[from]
	if !slices.Contains(allowed, to) {
		return TransitionError(to, allowed)
	}
	return nil
}

// Chain is a top-level fabrication job producing an ordered run of segments
type Chain struct {
	ID         string     `json:"id" db:"id" validate:"required"`
	AccountID  string     `json:"account_id" db:"account_id"`
	TemplateID string     `json:"template_id" db:"template_id"`
	Name       string     `json:"name" db:"name"`
	Type       ChainType  `json:"type" db:"type" validate:"required,oneof=Production Preview"`
	State      ChainState `json:"state" db:"state" validate:"required"`
	ShipKey    string     `json:"ship_key" db:"ship_key"`
	StartAt    *time.Time `json:"start_at,omitempty" db:"start_at"`
	StopAt     *time.Time `json:"stop_at,omitempty" db:"stop_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}
