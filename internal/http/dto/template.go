package dto

import (
	"github.com/cesargomez89/segmentcraft/internal/domain"
)

type TemplateResponse struct {
	ID      string                `json:"id"`
	Name    string                `json:"name"`
	ShipKey string                `json:"ship_key,omitempty"`
	Config  domain.TemplateConfig `json:"config"`
}

func NewTemplateResponse(t domain.Template) TemplateResponse {
	return TemplateResponse{
		ID:      t.ID,
		Name:    t.Name,
		ShipKey: t.ShipKey,
		Config:  t.Config,
	}
}

func NewTemplateResponses(templates []domain.Template) []TemplateResponse {
	out := make([]TemplateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, NewTemplateResponse(t))
	}
	return out
}
