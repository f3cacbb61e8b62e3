package http

import (
	"time"

	"github.com/nekogravitycat/space-reservation-backend/internal/pkg/request"
	"github.com/nekogravitycat/space-reservation-backend/internal/space"
)

// ListSpacesRequest defines query parameters for listing spaces.
type ListSpacesRequest struct {
	request.ListParams
	MinCapacity int    `form:"min_capacity" binding:"omitempty,min=1"`
	Keyword     string `form:"q"`
	SortBy      string `form:"sort_by" binding:"omitempty,oneof=name capacity created_at"`
}

type SpaceResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Capacity    int       `json:"capacity"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewResponse(s *space.Space) SpaceResponse {
	return SpaceResponse{
		ID:          s.ID,
		Name:        s.Name,
		Capacity:    s.Capacity,
		Description: s.Description,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

type CreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Capacity    int    `json:"capacity" binding:"required,min=1"`
	Description string `json:"description"`
}

type UpdateRequest struct {
	Name        *string `json:"name"`
	Capacity    *int    `json:"capacity" binding:"omitempty,min=1"`
	Description *string `json:"description"`
}
