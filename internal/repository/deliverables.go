package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fashionos/sponsor-crm/internal/entity"
)

// ErrDeliverableNotFound is returned when no deliverable matches.
var ErrDeliverableNotFound = errors.New("deliverable not found")

// NewDeliverable is one row to stamp out during provisioning.
type NewDeliverable struct {
	Title   string
	Type    string
	Status  entity.DeliverableStatus
	DueDate time.Time
}

// ProvisionResult summarises a provisioning transaction.
type ProvisionResult struct {
	DealStatus entity.DealStatus
	Inserted   int
	Skipped    bool
}

// DeliverablesRepository persists sponsor deliverables.
type DeliverablesRepository interface {
	ListByDeal(ctx context.Context, dealID uuid.UUID) ([]entity.Deliverable, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Deliverable, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.DeliverableStatus, notes *string) (*entity.Deliverable, error)
	AttachAsset(ctx context.Context, id uuid.UUID, assetURL string, status entity.DeliverableStatus) (*entity.Deliverable, error)
	ProvisionForDeal(ctx context.Context, dealID uuid.UUID, items []NewDeliverable) (ProvisionResult, error)
}

// PGXDeliverablesRepository implements DeliverablesRepository with pgx.
type PGXDeliverablesRepository struct {
	pool pgxPool
}

// NewPGXDeliverablesRepository instantiates a deliverables repository.
func NewPGXDeliverablesRepository(pool pgxPool) *PGXDeliverablesRepository {
	return &PGXDeliverablesRepository{pool: pool}
}

const deliverableColumns = `id, event_sponsor_id, title, type, status, due_date, asset_url, notes, created_at, updated_at`

// ListByDeal returns a deal's deliverables ordered by due date.
func (r *PGXDeliverablesRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]entity.Deliverable, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+deliverableColumns+` FROM sponsor_deliverables WHERE event_sponsor_id = $1 ORDER BY due_date, title`, dealID)
	if err != nil {
		return nil, fmt.Errorf("list deliverables: %w", err)
	}
	defer rows.Close()

	items := make([]entity.Deliverable, 0)
	for rows.Next() {
		item, err := scanDeliverable(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deliverable row: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliverables: %w", err)
	}
	return items, nil
}

// Get fetches one deliverable.
func (r *PGXDeliverablesRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Deliverable, error) {
	item, err := scanDeliverable(r.pool.QueryRow(ctx, `SELECT `+deliverableColumns+` FROM sponsor_deliverables WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeliverableNotFound
		}
		return nil, fmt.Errorf("query deliverable: %w", err)
	}
	return item, nil
}

// UpdateStatus sets the workflow status, optionally replacing the reviewer notes.
func (r *PGXDeliverablesRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.DeliverableStatus, notes *string) (*entity.Deliverable, error) {
	set := setBuilder{}
	set.add("status", string(status))
	if notes != nil {
		set.add("notes", stringOrNil(notes))
	}
	clause, args, idx := set.build(id)
	query := fmt.Sprintf(`UPDATE sponsor_deliverables SET %s WHERE id = $%d RETURNING `+deliverableColumns, clause, idx)

	item, err := scanDeliverable(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeliverableNotFound
		}
		return nil, fmt.Errorf("update deliverable status: %w", err)
	}
	return item, nil
}

// AttachAsset records an uploaded asset URL together with the resulting status.
func (r *PGXDeliverablesRepository) AttachAsset(ctx context.Context, id uuid.UUID, assetURL string, status entity.DeliverableStatus) (*entity.Deliverable, error) {
	item, err := scanDeliverable(r.pool.QueryRow(ctx, `
        UPDATE sponsor_deliverables
        SET asset_url = $1, status = $2, updated_at = NOW()
        WHERE id = $3
        RETURNING `+deliverableColumns, assetURL, string(status), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeliverableNotFound
		}
		return nil, fmt.Errorf("attach deliverable asset: %w", err)
	}
	return item, nil
}

// ProvisionForDeal inserts the given deliverables for a deal in one transaction.
// The deal row is locked first; when the deal already owns deliverables nothing
// is written and the result reports Skipped.
func (r *PGXDeliverablesRepository) ProvisionForDeal(ctx context.Context, dealID uuid.UUID, items []NewDeliverable) (ProvisionResult, error) {
	var result ProvisionResult

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return result, fmt.Errorf("start provisioning tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	if err := tx.QueryRow(ctx, `SELECT status FROM event_sponsors WHERE id = $1 FOR UPDATE`, dealID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return result, ErrDealNotFound
		}
		return result, fmt.Errorf("lock deal: %w", err)
	}
	result.DealStatus = entity.DealStatus(status)

	var existing int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM sponsor_deliverables WHERE event_sponsor_id = $1`, dealID).Scan(&existing); err != nil {
		return result, fmt.Errorf("count deliverables: %w", err)
	}
	if existing > 0 || len(items) == 0 {
		result.Skipped = true
		return result, nil
	}

	values := make([]string, 0, len(items))
	args := make([]any, 0, len(items)*5)
	for _, item := range items {
		base := len(args)
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5))
		args = append(args, dealID, item.Title, item.Type, string(item.Status), item.DueDate)
	}

	cmd, err := tx.Exec(ctx, `
        INSERT INTO sponsor_deliverables (event_sponsor_id, title, type, status, due_date)
        VALUES `+strings.Join(values, ", ")+`
        ON CONFLICT (event_sponsor_id, title) DO NOTHING`, args...)
	if err != nil {
		return result, fmt.Errorf("insert deliverables: %w", err)
	}
	result.Inserted = int(cmd.RowsAffected())

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit provisioning tx: %w", err)
	}
	return result, nil
}

func scanDeliverable(row pgx.Row) (*entity.Deliverable, error) {
	var (
		item     entity.Deliverable
		status   string
		assetURL sql.NullString
		notes    sql.NullString
	)
	if err := row.Scan(
		&item.ID,
		&item.DealID,
		&item.Title,
		&item.Type,
		&status,
		&item.DueDate,
		&assetURL,
		&notes,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	item.Status = entity.DeliverableStatus(status)
	item.AssetURL = nullStringToPtr(assetURL)
	item.Notes = nullStringToPtr(notes)
	return &item, nil
}
