package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/space-reservation-backend/internal/auth"
	"github.com/nekogravitycat/space-reservation-backend/internal/pkg/request"
	"github.com/nekogravitycat/space-reservation-backend/internal/pkg/response"
	"github.com/nekogravitycat/space-reservation-backend/internal/reservation"
)

type Handler struct {
	service reservation.Service
}

func NewHandler(service reservation.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(c *gin.Context) {
	var req ListReservationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	filter := reservation.Filter{
		OwnerID:   auth.GetUserID(c),
		SpaceID:   req.SpaceID,
		State:     reservation.State(req.State),
		From:      req.From,
		To:        req.To,
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: strings.ToUpper(req.SortOrder),
	}
	if auth.IsStaff(c) {
		filter.OwnerID = req.OwnerID
	}

	list, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]ReservationResponse, len(list))
	for i, r := range list {
		items[i] = NewResponse(r)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	r, err := h.service.GetByID(c.Request.Context(), req.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !auth.IsStaff(c) && r.OwnerID != auth.GetUserID(c) {
		writeError(c, reservation.ErrPermissionDenied)
		return
	}

	c.JSON(http.StatusOK, NewResponse(r))
}

func (h *Handler) Busy(c *gin.Context) {
	var req BusyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	intervals, err := h.service.Busy(c.Request.Context(), req.SpaceID, req.From, req.To)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := BusyResponse{SpaceID: req.SpaceID, Intervals: make([]IntervalResponse, len(intervals))}
	for i, iv := range intervals {
		resp.Intervals[i] = IntervalResponse{ReservationID: iv.ReservationID, StartTime: iv.Start, EndTime: iv.End}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateReservationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	r, err := h.service.Create(c.Request.Context(), reservation.CreateRequest{
		SpaceID:       body.SpaceID,
		OwnerID:       auth.GetUserID(c),
		StartTime:     body.StartTime,
		EndTime:       body.EndTime,
		OccupantCount: body.OccupantCount,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewResponse(r))
}

func (h *Handler) Update(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var body UpdateReservationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	r, err := h.service.Update(c.Request.Context(), uri.ID, reservation.UpdateRequest{
		SpaceID:       body.SpaceID,
		StartTime:     body.StartTime,
		EndTime:       body.EndTime,
		OccupantCount: body.OccupantCount,
	}, auth.GetUserID(c), auth.IsStaff(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(r))
}

func (h *Handler) Confirm(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	r, err := h.service.Confirm(c.Request.Context(), req.ID, auth.GetUserID(c), auth.IsStaff(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(r))
}

func (h *Handler) Cancel(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	if err := h.service.Cancel(c.Request.Context(), req.ID, auth.GetUserID(c), auth.IsStaff(c)); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Delete(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var q DeleteQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	err := h.service.Delete(c.Request.Context(), req.ID, auth.GetUserID(c), auth.IsStaff(c), q.Hard)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// writeError adds the conflicting ids or the refused transition to 409 responses.
func writeError(c *gin.Context, err error) {
	var conflict *reservation.ConflictError
	if errors.As(err, &conflict) {
		ids := conflict.ConflictingIDs
		if ids == nil {
			ids = []string{}
		}
		c.JSON(http.StatusConflict, ConflictResponse{
			Error:                     reservation.ErrTimeConflict.Message,
			ConflictingReservationIDs: ids,
		})
		return
	}

	var transition *reservation.InvalidTransitionError
	if errors.As(err, &transition) {
		c.JSON(http.StatusConflict, TransitionErrorResponse{
			Error:  transition.Error(),
			State:  string(transition.From),
			Action: string(transition.Action),
		})
		return
	}

	response.Error(c, err)
}
