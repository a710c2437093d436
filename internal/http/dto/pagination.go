package dto

import (
	"math"

	"github.com/cesargomez89/segmentcraft/internal/constants"
)

type Pagination struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	TotalItems  int  `json:"total_items"`
	PageSize    int  `json:"page_size"`
	HasPrev     bool `json:"has_prev"`
	PrevPage    int  `json:"prev_page,omitempty"`
	HasNext     bool `json:"has_next"`
	NextPage    int  `json:"next_page,omitempty"`
}

func NewPagination(page, pageSize, total int) *Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > constants.MaxSegmentsPerPage {
		pageSize = constants.MaxSegmentsPerPage
	}

	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))
	if totalPages == 0 {
		totalPages = 1
	}

	if page > totalPages {
		page = totalPages
	}

	p := &Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		PageSize:    pageSize,
		HasPrev:     page > 1,
		HasNext:     page < totalPages,
	}
	if p.HasPrev {
		p.PrevPage = page - 1
	}
	if p.HasNext {
		p.NextPage = page + 1
	}
	return p
}

// Bounds returns the slice indices of the current page over TotalItems.
func (p *Pagination) Bounds() (int, int) {
	start := (p.CurrentPage - 1) * p.PageSize
	end := min(start+p.PageSize, p.TotalItems)
	return start, end
}
