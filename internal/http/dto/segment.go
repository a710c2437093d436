package dto

import (
	"github.com/cesargomez89/segmentcraft/internal/domain"
)

type SegmentResponse struct {
	ID                 string  `json:"id"`
	ChainID            string  `json:"chain_id"`
	Offset             int     `json:"offset"`
	Type               string  `json:"type"`
	State              string  `json:"state"`
	BeginAt            string  `json:"begin_at"`
	EndAt              string  `json:"end_at,omitempty"`
	BeginAtChainMicros int64   `json:"begin_at_chain_micros"`
	DurationMicros     *int64  `json:"duration_micros,omitempty"`
	Total              int     `json:"total"`
	Intensity          float64 `json:"intensity"`
	Tempo              float64 `json:"tempo"`
	Key                string  `json:"key"`
	StorageKey         string  `json:"storage_key"`
	Delta              int     `json:"delta"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

func NewSegmentResponse(s *domain.Segment) SegmentResponse {
	resp := SegmentResponse{
		ID:                 s.ID,
		ChainID:            s.ChainID,
		Offset:             s.Offset,
		Type:               string(s.Type),
		State:              string(s.State),
		BeginAt:            s.BeginAt.Format(timeLayout),
		BeginAtChainMicros: s.BeginAtChainMicros,
		DurationMicros:     s.DurationMicros,
		Total:              s.Total,
		Intensity:          s.Intensity,
		Tempo:              s.Tempo,
		Key:                s.Key,
		StorageKey:         s.StorageKey,
		Delta:              s.Delta,
		CreatedAt:          s.CreatedAt.Format(timeLayout),
		UpdatedAt:          s.UpdatedAt.Format(timeLayout),
	}
	if s.EndAt != nil {
		resp.EndAt = s.EndAt.Format(timeLayout)
	}
	return resp
}

func NewSegmentResponses(segs []*domain.Segment) []SegmentResponse {
	out := make([]SegmentResponse, 0, len(segs))
	for _, s := range segs {
		out = append(out, NewSegmentResponse(s))
	}
	return out
}

// SegmentDetailResponse is a segment with its child entities grouped by kind.
type SegmentDetailResponse struct {
	Segment  SegmentResponse                                `json:"segment"`
	Entities map[domain.EntityKind][]domain.SegmentEntity `json:"entities"`
}

func NewSegmentDetailResponse(s *domain.Segment, entities []domain.SegmentEntity) SegmentDetailResponse {
	grouped := make(map[domain.EntityKind][]domain.SegmentEntity)
	for _, e := range entities {
		grouped[e.Kind()] = append(grouped[e.Kind()], e)
	}
	return SegmentDetailResponse{Segment: NewSegmentResponse(s), Entities: grouped}
}

// SegmentPage is one page of a chain's segments.
type SegmentPage struct {
	Segments   []SegmentResponse `json:"segments"`
	Pagination *Pagination       `json:"pagination"`
}

type OffsetWindowRequest struct {
	From int
	To   int
}

func (r *OffsetWindowRequest) Validate() []ValidationError {
	return validateOffsetWindow(r.From, r.To)
}
