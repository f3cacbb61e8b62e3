package http

import (
	"time"

	"github.com/nekogravitycat/space-reservation-backend/internal/comment"
	"github.com/nekogravitycat/space-reservation-backend/internal/pkg/request"
)

// ListCommentsRequest filters comments. Status is honoured for staff only.
type ListCommentsRequest struct {
	request.ListParams
	SpaceID string `form:"space_id" binding:"omitempty,uuid"`
	Status  string `form:"status" binding:"omitempty,oneof=pending approved annulled"`
}

type CreateCommentRequest struct {
	SpaceID string `json:"space_id" binding:"required,uuid"`
	Content string `json:"content" binding:"required"`
}

type CommentResponse struct {
	ID        string    `json:"id"`
	SpaceID   string    `json:"space_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewResponse(c *comment.Comment) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		SpaceID:   c.SpaceID,
		UserID:    c.UserID,
		Content:   c.Content,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
