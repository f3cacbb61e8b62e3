package comment

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/nekogravitycat/space-reservation-backend/internal/space"
)

type CreateRequest struct {
	SpaceID string
	UserID  string
	Content string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Comment, error)
	GetByID(ctx context.Context, id string) (*Comment, error)
	List(ctx context.Context, filter Filter) ([]*Comment, int, error)
	Approve(ctx context.Context, id string) (*Comment, error)
	Annul(ctx context.Context, id string) (*Comment, error)
}

// SpaceLookup checks that a commented space exists.
type SpaceLookup interface {
	GetByID(ctx context.Context, id string) (*space.Space, error)
}

type service struct {
	repo   Repository
	spaces SpaceLookup
}

func NewService(repo Repository, spaces SpaceLookup) Service {
	return &service{repo: repo, spaces: spaces}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Comment, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrContentRequired
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, ErrContentTooLong
	}
	if _, err := s.spaces.GetByID(ctx, req.SpaceID); err != nil {
		if errors.Is(err, space.ErrNotFound) {
			return nil, ErrSpaceNotFound
		}
		return nil, err
	}

	c := &Comment{
		SpaceID: req.SpaceID,
		UserID:  req.UserID,
		Content: content,
		Status:  StatusPending,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Comment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Comment, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Approve(ctx context.Context, id string) (*Comment, error) {
	return s.moderate(ctx, id, StatusApproved)
}

func (s *service) Annul(ctx context.Context, id string) (*Comment, error) {
	return s.moderate(ctx, id, StatusAnnulled)
}

// moderate moves the comment to target. The write is conditional on the status that was
// read; if another moderator got there first the decision is made again on the new status.
func (s *service) moderate(ctx context.Context, id string, target Status) (*Comment, error) {
	for {
		c, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		changed, err := moderate(c.Status, target)
		if err != nil {
			return nil, err
		}
		if !changed {
			return c, nil
		}

		from := c.Status
		c.Status = target
		updated, err := s.repo.UpdateStatus(ctx, c, from)
		if err != nil {
			return nil, err
		}
		if updated {
			return c, nil
		}
	}
}
