package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/fashionos/sponsor-crm/internal/entity"
)

// ActivationsRepository reads activations and ROI metrics recorded for a deal.
type ActivationsRepository interface {
	ListActivations(ctx context.Context, dealID uuid.UUID) ([]entity.SponsorActivation, error)
	ListROIMetrics(ctx context.Context, dealID uuid.UUID) ([]entity.SponsorROIMetric, error)
}

// PGXActivationsRepository implements ActivationsRepository with pgx.
type PGXActivationsRepository struct {
	pool pgxPool
}

// NewPGXActivationsRepository instantiates an activations repository.
func NewPGXActivationsRepository(pool pgxPool) *PGXActivationsRepository {
	return &PGXActivationsRepository{pool: pool}
}

// ListActivations returns the deal's activations in schedule order.
func (r *PGXActivationsRepository) ListActivations(ctx context.Context, dealID uuid.UUID) ([]entity.SponsorActivation, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, event_sponsor_id, title, kind, status, scheduled_at
        FROM sponsor_activations
        WHERE event_sponsor_id = $1
        ORDER BY scheduled_at NULLS LAST, title
    `, dealID)
	if err != nil {
		return nil, fmt.Errorf("list activations: %w", err)
	}
	defer rows.Close()

	activations := make([]entity.SponsorActivation, 0)
	for rows.Next() {
		var (
			item        entity.SponsorActivation
			scheduledAt sql.NullTime
		)
		if err := rows.Scan(&item.ID, &item.DealID, &item.Title, &item.Kind, &item.Status, &scheduledAt); err != nil {
			return nil, fmt.Errorf("scan activation row: %w", err)
		}
		if scheduledAt.Valid {
			value := scheduledAt.Time
			item.ScheduledAt = &value
		}
		activations = append(activations, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activations: %w", err)
	}
	return activations, nil
}

// ListROIMetrics returns the deal's recorded metrics, oldest first.
func (r *PGXActivationsRepository) ListROIMetrics(ctx context.Context, dealID uuid.UUID) ([]entity.SponsorROIMetric, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, event_sponsor_id, metric, value, recorded_at
        FROM sponsor_roi_metrics
        WHERE event_sponsor_id = $1
        ORDER BY recorded_at
    `, dealID)
	if err != nil {
		return nil, fmt.Errorf("list roi metrics: %w", err)
	}
	defer rows.Close()

	metrics := make([]entity.SponsorROIMetric, 0)
	for rows.Next() {
		var item entity.SponsorROIMetric
		if err := rows.Scan(&item.ID, &item.DealID, &item.Metric, &item.Value, &item.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan roi metric row: %w", err)
		}
		metrics = append(metrics, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roi metrics: %w", err)
	}
	return metrics, nil
}
