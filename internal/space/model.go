package space

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/space-reservation-backend/internal/pkg/apperror"
)

var (
	ErrNotFound        = apperror.New(http.StatusNotFound, "space not found")
	ErrEmptyName       = apperror.New(http.StatusBadRequest, "name cannot be empty")
	ErrInvalidCapacity = apperror.New(http.StatusBadRequest, "capacity must be a positive integer")
	ErrInUse           = apperror.New(http.StatusConflict, "space still has reservations")
)

// Space represents a bookable physical room (e.g., Meeting Room 2B, Auditorium).
type Space struct {
	ID          string
	Name        string
	Capacity    int
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filter defines parameters for listing spaces.
type Filter struct {
	MinCapacity int
	Keyword     string
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
