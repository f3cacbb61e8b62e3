package comment

import (
	"fmt"
	"net/http"
	"time"

	"github.com/nekogravitycat/space-reservation-backend/internal/pkg/apperror"
)

var (
	ErrNotFound          = apperror.New(http.StatusNotFound, "comment not found")
	ErrContentRequired   = apperror.New(http.StatusBadRequest, "content is required")
	ErrContentTooLong    = apperror.New(http.StatusBadRequest, "content is too long")
	ErrSpaceNotFound     = apperror.New(http.StatusNotFound, "space not found")
	ErrInvalidTransition = apperror.New(http.StatusConflict, "invalid comment moderation transition")
)

const MaxContentLength = 2000

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusAnnulled Status = "annulled"
)

// Comment is user feedback about a space. Only approved comments are public.
type Comment struct {
	ID        string
	SpaceID   string
	UserID    string
	Content   string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Filter struct {
	SpaceID  string
	Status   Status
	Page     int
	PageSize int
}

// TransitionError reports a moderation action that the comment's status does not allow.
type TransitionError struct {
	From   Status
	Target Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move a %s comment to %s", e.From, e.Target)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// moderate returns the status after moving from to target. Repeating the current
// status is a no-op; approved and annulled are otherwise final.
func moderate(from, target Status) (changed bool, err error) {
	if from == target {
		return false, nil
	}
	if from == StatusPending && (target == StatusApproved || target == StatusAnnulled) {
		return true, nil
	}
	return false, &TransitionError{From: from, Target: target}
}
