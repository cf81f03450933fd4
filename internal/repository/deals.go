package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fashionos/sponsor-crm/internal/entity"
)

var (
	// ErrDealNotFound is returned when no event_sponsors row matches.
	ErrDealNotFound = errors.New("deal not found")
	// ErrStatusConflict is returned when a deal no longer has the status a
	// transition was validated against.
	ErrStatusConflict = errors.New("deal status changed concurrently")
)

// DealFilter narrows deal listings.
type DealFilter struct {
	Statuses  []entity.DealStatus
	EventID   *uuid.UUID
	SponsorID *uuid.UUID
	OwnerID   *uuid.UUID
	Limit     int
	Offset    int
}

// DealInput carries the writable columns of a deal.
type DealInput struct {
	SponsorID   uuid.UUID
	EventID     uuid.UUID
	Status      entity.DealStatus
	Level       string
	CashValue   float64
	InKindValue float64
	ContractURL *string
}

// DealPatch updates a subset of deal columns. Status changes go through UpdateStatus.
type DealPatch struct {
	Level       *string
	CashValue   *float64
	InKindValue *float64
	ContractURL *string
}

// DealsRepository persists deals (event_sponsors rows).
type DealsRepository interface {
	List(ctx context.Context, filter DealFilter) ([]entity.Deal, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Deal, error)
	Create(ctx context.Context, input DealInput) (*entity.Deal, error)
	Update(ctx context.Context, id uuid.UUID, patch DealPatch) (*entity.Deal, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.DealStatus) (*entity.Deal, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListSignedWithoutDeliverables(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// PGXDealsRepository implements DealsRepository with pgx.
type PGXDealsRepository struct {
	pool pgxPool
}

// NewPGXDealsRepository instantiates a deals repository.
func NewPGXDealsRepository(pool pgxPool) *PGXDealsRepository {
	return &PGXDealsRepository{pool: pool}
}

const dealColumns = `d.id, d.sponsor_id, d.event_id, d.status, d.level, d.cash_value::float8, d.in_kind_value::float8,
        d.contract_url, d.revision, COALESCE(s.name, ''), COALESCE(e.title, ''), d.created_at, d.updated_at`

const dealJoins = `LEFT JOIN sponsor_profiles s ON s.id = d.sponsor_id
        LEFT JOIN events e ON e.id = d.event_id`

// List returns deals matching the filter, newest first.
func (r *PGXDealsRepository) List(ctx context.Context, filter DealFilter) ([]entity.Deal, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ` + dealColumns + ` FROM event_sponsors d ` + dealJoins)

	conditions := make([]string, 0)
	args := make([]any, 0)

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, string(status))
		}
		args = append(args, statuses)
		conditions = append(conditions, fmt.Sprintf("d.status = ANY($%d)", len(args)))
	}
	if filter.EventID != nil {
		args = append(args, *filter.EventID)
		conditions = append(conditions, fmt.Sprintf("d.event_id = $%d", len(args)))
	}
	if filter.SponsorID != nil {
		args = append(args, *filter.SponsorID)
		conditions = append(conditions, fmt.Sprintf("d.sponsor_id = $%d", len(args)))
	}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("s.owner_id = $%d", len(args)))
	}

	if len(conditions) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(conditions, " AND "))
	}
	query.WriteString(" ORDER BY d.created_at DESC")

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	defer rows.Close()

	deals := make([]entity.Deal, 0)
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deal row: %w", err)
		}
		deals = append(deals, *deal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deals: %w", err)
	}
	return deals, nil
}

// Get fetches a single deal.
func (r *PGXDealsRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Deal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM event_sponsors d `+dealJoins+` WHERE d.id = $1`, id)
	deal, err := scanDeal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDealNotFound
		}
		return nil, fmt.Errorf("query deal: %w", err)
	}
	return deal, nil
}

// Create inserts a deal. Status defaults to Lead.
func (r *PGXDealsRepository) Create(ctx context.Context, input DealInput) (*entity.Deal, error) {
	status := input.Status
	if status == "" {
		status = entity.DealLead
	}
	row := r.pool.QueryRow(ctx, `
        WITH d AS (
            INSERT INTO event_sponsors (sponsor_id, event_id, status, level, cash_value, in_kind_value, contract_url)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
            RETURNING *
        )
        SELECT `+dealColumns+` FROM d `+dealJoins,
		input.SponsorID, input.EventID, string(status), input.Level, input.CashValue, input.InKindValue, stringOrNil(input.ContractURL),
	)
	deal, err := scanDeal(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, fmt.Errorf("insert deal: unknown sponsor or event: %w", err)
		}
		return nil, fmt.Errorf("insert deal: %w", err)
	}
	return deal, nil
}

// Update patches non-status columns.
func (r *PGXDealsRepository) Update(ctx context.Context, id uuid.UUID, patch DealPatch) (*entity.Deal, error) {
	set := setBuilder{}
	if patch.Level != nil {
		set.add("level", *patch.Level)
	}
	if patch.CashValue != nil {
		set.add("cash_value", *patch.CashValue)
	}
	if patch.InKindValue != nil {
		set.add("in_kind_value", *patch.InKindValue)
	}
	if patch.ContractURL != nil {
		set.add("contract_url", stringOrNil(patch.ContractURL))
	}
	if set.empty() {
		return r.Get(ctx, id)
	}

	clause, args, idx := set.build(id)
	query := fmt.Sprintf(`
        WITH d AS (
            UPDATE event_sponsors SET %s, revision = revision + 1 WHERE id = $%d RETURNING *
        )
        SELECT `+dealColumns+` FROM d `+dealJoins, clause, idx)

	deal, err := scanDeal(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDealNotFound
		}
		return nil, fmt.Errorf("update deal: %w", err)
	}
	return deal, nil
}

// UpdateStatus moves a deal from one status to another and bumps the row revision.
// The write only applies while the row still has status from; a row that moved
// elsewhere in the meantime yields ErrStatusConflict.
func (r *PGXDealsRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.DealStatus) (*entity.Deal, error) {
	row := r.pool.QueryRow(ctx, `
        WITH d AS (
            UPDATE event_sponsors
            SET status = $1, revision = revision + 1, updated_at = NOW()
            WHERE id = $2 AND status = $3
            RETURNING *
        )
        SELECT `+dealColumns+` FROM d `+dealJoins, string(to), id, string(from))

	deal, err := scanDeal(row)
	if err == nil {
		return deal, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update deal status: %w", err)
	}

	var current string
	if err := r.pool.QueryRow(ctx, `SELECT status FROM event_sponsors WHERE id = $1`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDealNotFound
		}
		return nil, fmt.Errorf("read deal status: %w", err)
	}
	return nil, fmt.Errorf("%w: expected %s, found %s", ErrStatusConflict, from, current)
}

// Delete removes a deal and, by cascade, its deliverables.
func (r *PGXDealsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM event_sponsors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete deal: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrDealNotFound
	}
	return nil
}

// ListSignedWithoutDeliverables returns Signed deals that have no deliverables yet.
func (r *PGXDealsRepository) ListSignedWithoutDeliverables(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
        SELECT d.id FROM event_sponsors d
        WHERE d.status = $1
          AND NOT EXISTS (SELECT 1 FROM sponsor_deliverables x WHERE x.event_sponsor_id = d.id)
        ORDER BY d.updated_at
        LIMIT $2
    `, string(entity.DealSigned), limit)
	if err != nil {
		return nil, fmt.Errorf("list unprovisioned deals: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deal id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unprovisioned deals: %w", err)
	}
	return ids, nil
}

func scanDeal(row pgx.Row) (*entity.Deal, error) {
	var (
		deal        entity.Deal
		status      string
		contractURL sql.NullString
	)
	if err := row.Scan(
		&deal.ID,
		&deal.SponsorID,
		&deal.EventID,
		&status,
		&deal.Level,
		&deal.CashValue,
		&deal.InKindValue,
		&contractURL,
		&deal.Revision,
		&deal.SponsorName,
		&deal.EventTitle,
		&deal.CreatedAt,
		&deal.UpdatedAt,
	); err != nil {
		return nil, err
	}
	deal.Status = entity.DealStatus(status)
	deal.ContractURL = nullStringToPtr(contractURL)
	return &deal, nil
}
