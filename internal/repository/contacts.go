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

// ErrContactNotFound is returned when no sponsor contact matches.
var ErrContactNotFound = errors.New("contact not found")

// ContactInput carries the writable columns of a sponsor contact.
type ContactInput struct {
	Name      string
	Role      *string
	Email     *string
	Phone     *string
	IsPrimary bool
}

// ContactsRepository persists the people attached to a sponsor.
type ContactsRepository interface {
	ListBySponsor(ctx context.Context, sponsorID uuid.UUID) ([]entity.SponsorContact, error)
	Create(ctx context.Context, sponsorID uuid.UUID, input ContactInput) (*entity.SponsorContact, error)
	SetPrimary(ctx context.Context, sponsorID, contactID uuid.UUID) error
	Delete(ctx context.Context, sponsorID, contactID uuid.UUID) error
}

// PGXContactsRepository implements ContactsRepository with pgx.
type PGXContactsRepository struct {
	pool pgxPool
}

// NewPGXContactsRepository instantiates a contacts repository.
func NewPGXContactsRepository(pool pgxPool) *PGXContactsRepository {
	return &PGXContactsRepository{pool: pool}
}

const contactColumns = `id, sponsor_id, name, role, email, phone, is_primary, created_at`

// ListBySponsor returns contacts with the primary contact first.
func (r *PGXContactsRepository) ListBySponsor(ctx context.Context, sponsorID uuid.UUID) ([]entity.SponsorContact, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+contactColumns+` FROM sponsor_contacts WHERE sponsor_id = $1 ORDER BY is_primary DESC, name`, sponsorID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]entity.SponsorContact, 0)
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact row: %w", err)
		}
		contacts = append(contacts, *contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return contacts, nil
}

// Create inserts a contact. A primary contact demotes the previous one in the same transaction.
func (r *PGXContactsRepository) Create(ctx context.Context, sponsorID uuid.UUID, input ContactInput) (*entity.SponsorContact, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("start contact tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if input.IsPrimary {
		if _, err := tx.Exec(ctx, `UPDATE sponsor_contacts SET is_primary = FALSE WHERE sponsor_id = $1 AND is_primary`, sponsorID); err != nil {
			return nil, fmt.Errorf("demote primary contact: %w", err)
		}
	}

	contact, err := scanContact(tx.QueryRow(ctx, `
        INSERT INTO sponsor_contacts (sponsor_id, name, role, email, phone, is_primary)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING `+contactColumns,
		sponsorID, input.Name, stringOrNil(input.Role), stringOrNil(input.Email), stringOrNil(input.Phone), input.IsPrimary,
	))
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit contact tx: %w", err)
	}
	return contact, nil
}

// SetPrimary makes one contact the sponsor's only primary contact.
func (r *PGXContactsRepository) SetPrimary(ctx context.Context, sponsorID, contactID uuid.UUID) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("start set primary tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE sponsor_contacts SET is_primary = FALSE WHERE sponsor_id = $1 AND is_primary AND id <> $2`, sponsorID, contactID); err != nil {
		return fmt.Errorf("demote primary contact: %w", err)
	}
	cmd, err := tx.Exec(ctx, `UPDATE sponsor_contacts SET is_primary = TRUE WHERE sponsor_id = $1 AND id = $2`, sponsorID, contactID)
	if err != nil {
		return fmt.Errorf("promote contact: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrContactNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit set primary tx: %w", err)
	}
	return nil
}

// Delete removes a contact from a sponsor.
func (r *PGXContactsRepository) Delete(ctx context.Context, sponsorID, contactID uuid.UUID) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM sponsor_contacts WHERE sponsor_id = $1 AND id = $2`, sponsorID, contactID)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrContactNotFound
	}
	return nil
}

func scanContact(row pgx.Row) (*entity.SponsorContact, error) {
	var (
		contact entity.SponsorContact
		role    sql.NullString
		email   sql.NullString
		phone   sql.NullString
	)
	if err := row.Scan(&contact.ID, &contact.SponsorID, &contact.Name, &role, &email, &phone, &contact.IsPrimary, &contact.CreatedAt); err != nil {
		return nil, err
	}
	contact.Role = nullStringToPtr(role)
	contact.Email = nullStringToPtr(email)
	contact.Phone = nullStringToPtr(phone)
	return &contact, nil
}
