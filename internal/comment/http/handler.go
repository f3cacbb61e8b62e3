package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/space-reservation-backend/internal/auth"
	"github.com/nekogravitycat/space-reservation-backend/internal/comment"
	"github.com/nekogravitycat/space-reservation-backend/internal/pkg/request"
	"github.com/nekogravitycat/space-reservation-backend/internal/pkg/response"
)

type Handler struct {
	service comment.Service
}

func NewHandler(service comment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(c *gin.Context) {
	var req ListCommentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	filter := comment.Filter{
		SpaceID:  req.SpaceID,
		Status:   comment.StatusApproved,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if auth.IsStaff(c) {
		filter.Status = comment.Status(req.Status)
	}

	comments, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]CommentResponse, len(comments))
	for i, cm := range comments {
		items[i] = NewResponse(cm)
	}
	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateCommentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	cm, err := h.service.Create(c.Request.Context(), comment.CreateRequest{
		SpaceID: body.SpaceID,
		UserID:  auth.GetUserID(c),
		Content: body.Content,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewResponse(cm))
}

func (h *Handler) Approve(c *gin.Context) {
	h.moderate(c, h.service.Approve)
}

func (h *Handler) Annul(c *gin.Context) {
	h.moderate(c, h.service.Annul)
}

func (h *Handler) moderate(c *gin.Context, action func(ctx context.Context, id string) (*comment.Comment, error)) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	cm, err := action(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewResponse(cm))
}
