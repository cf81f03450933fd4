package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fashionos/sponsor-crm/internal/entity"
)

// ErrEventNotFound is returned when no event matches.
var ErrEventNotFound = errors.New("event not found")

// EventsRepository reads events sponsors can be attached to.
type EventsRepository interface {
	List(ctx context.Context) ([]entity.Event, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Event, error)
}

// PGXEventsRepository implements EventsRepository with pgx.
type PGXEventsRepository struct {
	pool pgxPool
}

// NewPGXEventsRepository instantiates an events repository.
func NewPGXEventsRepository(pool pgxPool) *PGXEventsRepository {
	return &PGXEventsRepository{pool: pool}
}

// List returns events, upcoming first.
func (r *PGXEventsRepository) List(ctx context.Context) ([]entity.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, title, starts_at, venue, status FROM events ORDER BY starts_at DESC NULLS LAST, title`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]entity.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Get fetches an event by id.
func (r *PGXEventsRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Event, error) {
	event, err := scanEvent(r.pool.QueryRow(ctx, `SELECT id, title, starts_at, venue, status FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("query event: %w", err)
	}
	return event, nil
}

func scanEvent(row pgx.Row) (*entity.Event, error) {
	var (
		event    entity.Event
		startsAt sql.NullTime
		venue    sql.NullString
	)
	if err := row.Scan(&event.ID, &event.Title, &startsAt, &venue, &event.Status); err != nil {
		return nil, err
	}
	if startsAt.Valid {
		value := startsAt.Time
		event.StartsAt = &value
	}
	event.Venue = nullStringToPtr(venue)
	return &event, nil
}
