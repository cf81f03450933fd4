package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fashionos/sponsor-crm/internal/entity"
)

// InteractionsRepository persists the append-only relationship log of a sponsor.
type InteractionsRepository interface {
	ListBySponsor(ctx context.Context, sponsorID uuid.UUID, limit int) ([]entity.SponsorInteraction, error)
	Create(ctx context.Context, interaction entity.SponsorInteraction) (*entity.SponsorInteraction, error)
}

// PGXInteractionsRepository implements InteractionsRepository with pgx.
type PGXInteractionsRepository struct {
	pool pgxPool
}

// NewPGXInteractionsRepository instantiates an interactions repository.
func NewPGXInteractionsRepository(pool pgxPool) *PGXInteractionsRepository {
	return &PGXInteractionsRepository{pool: pool}
}

// ListBySponsor returns the most recent interactions first.
func (r *PGXInteractionsRepository) ListBySponsor(ctx context.Context, sponsorID uuid.UUID, limit int) ([]entity.SponsorInteraction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
        SELECT id, sponsor_id, kind, summary, author_id::text, occurred_at
        FROM sponsor_interactions
        WHERE sponsor_id = $1
        ORDER BY occurred_at DESC
        LIMIT $2
    `, sponsorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	interactions := make([]entity.SponsorInteraction, 0)
	for rows.Next() {
		var (
			item     entity.SponsorInteraction
			kind     string
			authorID sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.SponsorID, &kind, &item.Summary, &authorID, &item.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan interaction row: %w", err)
		}
		item.Kind = entity.InteractionKind(kind)
		if item.AuthorID, err = nullUUIDToPtr(authorID); err != nil {
			return nil, fmt.Errorf("parse author id: %w", err)
		}
		interactions = append(interactions, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return interactions, nil
}

// Create appends an interaction. A zero OccurredAt defaults to now.
func (r *PGXInteractionsRepository) Create(ctx context.Context, interaction entity.SponsorInteraction) (*entity.SponsorInteraction, error) {
	occurredAt := interaction.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	row := r.pool.QueryRow(ctx, `
        INSERT INTO sponsor_interactions (sponsor_id, kind, summary, author_id, occurred_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, occurred_at
    `, interaction.SponsorID, string(interaction.Kind), interaction.Summary, uuidOrNil(interaction.AuthorID), occurredAt)

	created := interaction
	if err := row.Scan(&created.ID, &created.OccurredAt); err != nil {
		return nil, fmt.Errorf("insert interaction: %w", err)
	}
	return &created, nil
}
