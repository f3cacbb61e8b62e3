package reservation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	// Create inserts r and fills in its id and timestamps. An overlap with an active
	// reservation of the same space returns ErrTimeConflict.
	Create(ctx context.Context, r *Reservation) error
	GetByID(ctx context.Context, id string) (*Reservation, error)
	List(ctx context.Context, filter Filter) ([]*Reservation, int, error)
	// ListActive returns every pending and confirmed reservation, for rebuilding the interval index.
	ListActive(ctx context.Context) ([]*Reservation, error)
	// ListUnsynced returns up to limit active reservations without a calendar mirror, oldest change first.
	ListUnsynced(ctx context.Context, limit int) ([]*Reservation, error)
	// Overlapping returns the intervals of active reservations of the space that overlap
	// [start, end), ordered by start.
	Overlapping(ctx context.Context, spaceID string, start, end time.Time, excludeID string) ([]Interval, error)

	// Update persists the occupant count and state of r. The calendar columns are left
	// as stored and copied back into r, so a sync that committed meanwhile survives.
	Update(ctx context.Context, r *Reservation) error
	// UpdateUnsynced persists the interval, occupant count and state of r and drops its
	// calendar mirror, starting a new sync generation. The external event id the row
	// referenced, if any, is returned so it can be retracted.
	UpdateUnsynced(ctx context.Context, r *Reservation) (orphanedEventID string, err error)
	// MarkSynchronized records eventID only if the reservation is still active, not yet
	// synchronized and still in the given sync generation. It reports whether the row was updated.
	MarkSynchronized(ctx context.Context, id, eventID string, generation int) (bool, error)
	// Delete removes the row and returns the external event id it referenced, if any.
	Delete(ctx context.Context, id string) (orphanedEventID string, err error)
}

var reservationColumns = []string{
	"id", "space_id", "owner_id", "start_time", "end_time", "occupant_count",
	"status", "synchronized", "external_event_id", "sync_generation", "created_at", "updated_at",
}

var sortColumns = map[string]string{
	"start_time": "start_time",
	"end_time":   "end_time",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

type pgxRepository struct {
	pool *pgxpool.Pool
	psql squirrel.StatementBuilderType
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{
		pool: pool,
		psql: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *pgxRepository) Create(ctx context.Context, res *Reservation) error {
	query, args, err := r.psql.Insert("public.reservations").
		Columns("space_id", "owner_id", "start_time", "end_time", "occupant_count", "status").
		Values(res.SpaceID, res.OwnerID, res.StartTime, res.EndTime, res.OccupantCount, res.State).
		Suffix("RETURNING id, synchronized, sync_generation, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create reservation query failed: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).
		Scan(&res.ID, &res.Synchronized, &res.SyncGeneration, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return translateWriteError("create reservation", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Reservation, error) {
	query, args, err := r.psql.Select(reservationColumns...).
		From("public.reservations").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get reservation query failed: %w", err)
	}

	res, err := scanReservation(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isInvalidUUID(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get reservation failed: %w", err)
	}
	return res, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Reservation, int, error) {
	query := r.psql.Select(slices.Concat(reservationColumns, []string{"count(*) OVER() AS total_count"})...).
		From("public.reservations")

	if filter.OwnerID != "" {
		query = query.Where(squirrel.Eq{"owner_id": filter.OwnerID})
	}
	if filter.SpaceID != "" {
		query = query.Where(squirrel.Eq{"space_id": filter.SpaceID})
	}
	if filter.State != "" {
		query = query.Where(squirrel.Eq{"status": filter.State})
	}
	// Half-open intersection with [From, To)
	if filter.From != nil {
		query = query.Where(squirrel.Gt{"end_time": *filter.From})
	}
	if filter.To != nil {
		query = query.Where(squirrel.Lt{"start_time": *filter.To})
	}

	orderBy, ok := sortColumns[filter.SortBy]
	if !ok {
		orderBy = "start_time"
	}
	orderDir := "DESC"
	if filter.SortOrder == "asc" || filter.SortOrder == "ASC" {
		orderDir = "ASC"
	}
	query = query.OrderBy(orderBy+" "+orderDir, "id "+orderDir)

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize
	query = query.Limit(uint64(filter.PageSize)).Offset(uint64(offset))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list reservations query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations failed: %w", err)
	}
	defer rows.Close()

	var result []*Reservation
	var total int
	for rows.Next() {
		res, err := scanReservation(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan reservation failed: %w", err)
		}
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate reservations failed: %w", err)
	}
	return result, total, nil
}

func (r *pgxRepository) ListActive(ctx context.Context) ([]*Reservation, error) {
	query := r.psql.Select(reservationColumns...).
		From("public.reservations").
		Where(squirrel.NotEq{"status": StateCancelled}).
		OrderBy("space_id", "start_time")
	return r.collect(ctx, query, "list active reservations")
}

func (r *pgxRepository) ListUnsynced(ctx context.Context, limit int) ([]*Reservation, error) {
	if limit < 1 {
		limit = 100
	}
	query := r.psql.Select(reservationColumns...).
		From("public.reservations").
		Where(squirrel.NotEq{"status": StateCancelled}).
		Where(squirrel.Eq{"synchronized": false}).
		OrderBy("updated_at").
		Limit(uint64(limit))
	return r.collect(ctx, query, "list unsynced reservations")
}

func (r *pgxRepository) collect(ctx context.Context, query squirrel.SelectBuilder, op string) ([]*Reservation, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s query failed: %w", op, err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	defer rows.Close()

	var result []*Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation failed: %w", err)
		}
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	return result, nil
}

func (r *pgxRepository) Overlapping(ctx context.Context, spaceID string, start, end time.Time, excludeID string) ([]Interval, error) {
	query := r.psql.Select("id", "start_time", "end_time").
		From("public.reservations").
		Where(squirrel.Eq{"space_id": spaceID}).
		Where(squirrel.NotEq{"status": StateCancelled}).
		Where(squirrel.Lt{"start_time": end}).
		Where(squirrel.Gt{"end_time": start}).
		OrderBy("start_time")
	if excludeID != "" {
		query = query.Where(squirrel.NotEq{"id": excludeID})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build overlapping reservations query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("overlapping reservations failed: %w", err)
	}
	held, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Interval, error) {
		var iv Interval
		err := row.Scan(&iv.ReservationID, &iv.Start, &iv.End)
		return iv, err
	})
	if err != nil {
		return nil, fmt.Errorf("overlapping reservations failed: %w", err)
	}
	return held, nil
}

func (r *pgxRepository) Update(ctx context.Context, res *Reservation) error {
	query, args, err := r.psql.Update("public.reservations").
		Set("occupant_count", res.OccupantCount).
		Set("status", res.State).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": res.ID}).
		Suffix("RETURNING synchronized, external_event_id, sync_generation, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update reservation query failed: %w", err)
	}

	var eventID *string
	err = r.pool.QueryRow(ctx, query, args...).
		Scan(&res.Synchronized, &eventID, &res.SyncGeneration, &res.UpdatedAt)
	if err != nil {
		return translateWriteError("update reservation", err)
	}
	res.ExternalEventID = ""
	if eventID != nil {
		res.ExternalEventID = *eventID
	}
	return nil
}

func (r *pgxRepository) UpdateUnsynced(ctx context.Context, res *Reservation) (string, error) {
	var orphaned string
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var stored *string
		err := tx.QueryRow(ctx,
			`SELECT external_event_id FROM public.reservations WHERE id = $1 FOR UPDATE`, res.ID,
		).Scan(&stored)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock reservation failed: %w", err)
		}

		query, args, err := r.psql.Update("public.reservations").
			Set("start_time", res.StartTime).
			Set("end_time", res.EndTime).
			Set("occupant_count", res.OccupantCount).
			Set("status", res.State).
			Set("synchronized", false).
			Set("external_event_id", nil).
			Set("sync_generation", squirrel.Expr("sync_generation + 1")).
			Set("updated_at", squirrel.Expr("now()")).
			Where(squirrel.Eq{"id": res.ID}).
			Suffix("RETURNING sync_generation, updated_at").
			ToSql()
		if err != nil {
			return fmt.Errorf("build update reservation query failed: %w", err)
		}
		if err := tx.QueryRow(ctx, query, args...).Scan(&res.SyncGeneration, &res.UpdatedAt); err != nil {
			return translateWriteError("update reservation", err)
		}

		res.Synchronized = false
		res.ExternalEventID = ""
		if stored != nil {
			orphaned = *stored
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return orphaned, nil
}

func (r *pgxRepository) MarkSynchronized(ctx context.Context, id, eventID string, generation int) (bool, error) {
	query, args, err := r.psql.Update("public.reservations").
		Set("synchronized", true).
		Set("external_event_id", eventID).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{
			"id":              id,
			"synchronized":    false,
			"sync_generation": generation,
		}).
		Where(squirrel.NotEq{"status": StateCancelled}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build mark synchronized query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("mark reservation synchronized failed: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *pgxRepository) Delete(ctx context.Context, id string) (string, error) {
	query, args, err := r.psql.Delete("public.reservations").
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING external_event_id").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build delete reservation query failed: %w", err)
	}

	var stored *string
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&stored); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("delete reservation failed: %w", err)
	}
	if stored == nil {
		return "", nil
	}
	return *stored, nil
}

func scanReservation(row pgx.Row, extra ...any) (*Reservation, error) {
	var res Reservation
	var eventID *string
	dest := []any{
		&res.ID, &res.SpaceID, &res.OwnerID, &res.StartTime, &res.EndTime, &res.OccupantCount,
		&res.State, &res.Synchronized, &eventID, &res.SyncGeneration, &res.CreatedAt, &res.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if eventID != nil {
		res.ExternalEventID = *eventID
	}
	return &res, nil
}

// translateWriteError maps constraint violations onto domain errors.
func translateWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ExclusionViolation:
			return ErrTimeConflict
		case pgerrcode.ForeignKeyViolation, pgerrcode.InvalidTextRepresentation:
			return ErrSpaceNotFound
		case pgerrcode.CheckViolation:
			return ErrInvalidInput
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation
}
