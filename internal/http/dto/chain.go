package dto

import (
	"time"

	"github.com/cesargomez89/segmentcraft/internal/domain"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

type ChainResponse struct {
	ID         string `json:"id"`
	AccountID  string `json:"account_id,omitempty"`
	TemplateID string `json:"template_id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	State      string `json:"state"`
	ShipKey    string `json:"ship_key"`
	StartAt    string `json:"start_at,omitempty"`
	StopAt     string `json:"stop_at,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func NewChainResponse(c *domain.Chain) ChainResponse {
	resp := ChainResponse{
		ID:         c.ID,
		AccountID:  c.AccountID,
		TemplateID: c.TemplateID,
		Name:       c.Name,
		Type:       string(c.Type),
		State:      string(c.State),
		ShipKey:    c.ShipKey,
		CreatedAt:  c.CreatedAt.Format(timeLayout),
		UpdatedAt:  c.UpdatedAt.Format(timeLayout),
	}
	if c.StartAt != nil {
		resp.StartAt = c.StartAt.Format(timeLayout)
	}
	if c.StopAt != nil {
		resp.StopAt = c.StopAt.Format(timeLayout)
	}
	return resp
}

func NewChainResponses(chains []*domain.Chain) []ChainResponse {
	out := make([]ChainResponse, 0, len(chains))
	for _, c := range chains {
		out = append(out, NewChainResponse(c))
	}
	return out
}

// ChainRequest is the body of chain create and update calls. Absent fields
// leave the chain unchanged on update.
type ChainRequest struct {
	AccountID  *string `json:"account_id"`
	TemplateID *string `json:"template_id"`
	Name       *string `json:"name"`
	Type       *string `json:"type"`
	State      *string `json:"state"`
	ShipKey    *string `json:"ship_key"`
	StartAt    *string `json:"start_at"`
	StopAt     *string `json:"stop_at"`
}

func (r *ChainRequest) Validate() []ValidationError {
	var errs []ValidationError

	errs = append(errs, validateChainType(r.Type)...)
	errs = append(errs, validateChainState(r.State)...)
	errs = append(errs, validateShipKey(r.ShipKey)...)
	errs = append(errs, validateTimestamp("start_at", r.StartAt)...)
	errs = append(errs, validateTimestamp("stop_at", r.StopAt)...)
	errs = append(errs, validateStartStop(r.StartAt, r.StopAt)...)

	return errs
}

// ValidateCreate also requires the fields a new chain cannot do without.
func (r *ChainRequest) ValidateCreate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateRequired("name", deref(r.Name))...)
	if r.Type != nil && domain.ChainType(*r.Type) == domain.ChainTypeProduction {
		errs = append(errs, validateRequired("ship_key", deref(r.ShipKey))...)
	}
	return append(errs, r.Validate()...)
}

// ToChain builds the input for the chain service. Call Validate first;
// unparseable timestamps are ignored here.
func (r *ChainRequest) ToChain() *domain.Chain {
	c := &domain.Chain{
		AccountID:  deref(r.AccountID),
		TemplateID: deref(r.TemplateID),
		Name:       deref(r.Name),
		Type:       domain.ChainType(deref(r.Type)),
		State:      domain.ChainState(deref(r.State)),
		ShipKey:    deref(r.ShipKey),
	}
	c.StartAt = parseTime(r.StartAt)
	c.StopAt = parseTime(r.StopAt)
	return c
}

type ChainStateRequest struct {
	State string `json:"state"`
}

func (r *ChainStateRequest) Validate() []ValidationError {
	errs := validateRequired("state", r.State)
	return append(errs, validateChainState(&r.State)...)
}

type ReviveRequest struct {
	Reason string `json:"reason"`
}

type MacroOverrideRequest struct {
	ProgramID string `json:"program_id"`
}

func (r *MacroOverrideRequest) Validate() []ValidationError {
	return validateRequired("program_id", r.ProgramID)
}

type MemesOverrideRequest struct {
	Memes []string `json:"memes"`
}

func (r *MemesOverrideRequest) Validate() []ValidationError {
	return validateMemes(r.Memes)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parseTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
