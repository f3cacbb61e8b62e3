package space

import (
	"context"
	"strings"
)

type CreateRequest struct {
	Name        string
	Capacity    int
	Description string
}

type UpdateRequest struct {
	Name        *string
	Capacity    *int
	Description *string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Space, error)
	GetByID(ctx context.Context, id string) (*Space, error)
	List(ctx context.Context, filter Filter) ([]*Space, int, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Space, error)
	Delete(ctx context.Context, id string) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Space, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrEmptyName
	}
	if req.Capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	sp := &Space{
		Name:        strings.TrimSpace(req.Name),
		Capacity:    req.Capacity,
		Description: req.Description,
	}

	if err := s.repo.Create(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Space, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Space, int, error) {
	return s.repo.List(ctx, filter)
}

// Update changes descriptive fields only. Lowering capacity does not touch
// existing reservations; the new limit applies to later creates and updates.
func (s *service) Update(ctx context.Context, id string, req UpdateRequest) (*Space, error) {
	sp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, ErrEmptyName
		}
		sp.Name = strings.TrimSpace(*req.Name)
	}
	if req.Capacity != nil {
		if *req.Capacity <= 0 {
			return nil, ErrInvalidCapacity
		}
		sp.Capacity = *req.Capacity
	}
	if req.Description != nil {
		sp.Description = *req.Description
	}

	if err := s.repo.Update(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
