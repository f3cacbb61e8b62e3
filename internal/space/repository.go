package space

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, s *Space) error
	GetByID(ctx context.Context, id string) (*Space, error)
	List(ctx context.Context, filter Filter) ([]*Space, int, error)
	Update(ctx context.Context, s *Space) error
	Delete(ctx context.Context, id string) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) Create(ctx context.Context, s *Space) error {
	const query = `
		INSERT INTO public.spaces (name, capacity, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query, s.Name, s.Capacity, s.Description).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create space failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Space, error) {
	const query = `
		SELECT id, name, capacity, description, created_at, updated_at
		FROM public.spaces
		WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)

	var s Space
	if err := row.Scan(&s.ID, &s.Name, &s.Capacity, &s.Description, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get space failed: %w", err)
	}
	return &s, nil
}

var sortColumns = map[string]string{
	"name":       "name",
	"capacity":   "capacity",
	"created_at": "created_at",
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Space, int, error) {
	var args []interface{}
	queryBase := `
		SELECT id, name, capacity, description, created_at, updated_at, count(*) OVER() as total_count
		FROM public.spaces
		WHERE 1=1
	`
	paramIndex := 1

	if filter.MinCapacity > 0 {
		queryBase += fmt.Sprintf(" AND capacity >= $%d", paramIndex)
		args = append(args, filter.MinCapacity)
		paramIndex++
	}
	if filter.Keyword != "" {
		queryBase += fmt.Sprintf(" AND name ILIKE $%d", paramIndex)
		args = append(args, "%"+filter.Keyword+"%")
		paramIndex++
	}

	orderBy, ok := sortColumns[filter.SortBy]
	if !ok {
		orderBy = "created_at"
	}
	orderDir := "DESC"
	if filter.SortOrder == "ASC" {
		orderDir = "ASC"
	}
	queryBase += " ORDER BY " + orderBy + " " + orderDir

	// Pagination
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	queryBase += fmt.Sprintf(" LIMIT $%d OFFSET $%d", paramIndex, paramIndex+1)
	args = append(args, filter.PageSize, offset)

	rows, err := r.pool.Query(ctx, queryBase, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list spaces failed: %w", err)
	}
	defer rows.Close()

	var result []*Space
	var total int

	for rows.Next() {
		var s Space
		if err := rows.Scan(
			&s.ID, &s.Name, &s.Capacity, &s.Description, &s.CreatedAt, &s.UpdatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan space failed: %w", err)
		}
		result = append(result, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate spaces failed: %w", err)
	}

	return result, total, nil
}

func (r *pgxRepository) Update(ctx context.Context, s *Space) error {
	const query = `
		UPDATE public.spaces
		SET name = $1, capacity = $2, description = $3, updated_at = now()
		WHERE id = $4
		RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, query, s.Name, s.Capacity, s.Description, s.ID).Scan(&s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update space failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM public.spaces WHERE id = $1`
	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrInUse
		}
		return fmt.Errorf("delete space failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
