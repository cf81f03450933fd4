package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fashionos/sponsor-crm/internal/entity"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup criteria.
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailDuplicate = errors.New("email already exists")
)

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Role   string
	Search string
}

// UserInput carries the columns of a new account plus the sponsor profiles it owns.
type UserInput struct {
	Email        string
	PasswordHash string
	Role         string
	SponsorIDs   []uuid.UUID
}

// UserPatch is a partial account update. A nil SponsorIDs leaves ownership
// untouched; an empty non-nil slice releases every owned profile.
type UserPatch struct {
	Email        *string
	PasswordHash *string
	Role         *string
	SponsorIDs   []uuid.UUID
}

// UsersRepository declares persistence operations for users.
type UsersRepository interface {
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	List(ctx context.Context, filter UserFilter) ([]entity.User, error)
	Create(ctx context.Context, input UserInput) (*entity.User, error)
	Update(ctx context.Context, id uuid.UUID, patch UserPatch) (*entity.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PGXUsersRepository implements UsersRepository with pgx.
type PGXUsersRepository struct {
	pool pgxPool
}

// NewPGXUsersRepository instantiates a users repository.
func NewPGXUsersRepository(pool pgxPool) *PGXUsersRepository {
	return &PGXUsersRepository{pool: pool}
}

// owned sponsor profiles ride along as a text array so one scan covers the account
const userSelect = `SELECT u.id, u.email, u.password_hash, u.role, u.created_at, u.updated_at,
        ARRAY(SELECT sp.id::text FROM sponsor_profiles sp WHERE sp.owner_id = u.id ORDER BY sp.name)
    FROM users u`

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// FindByEmail fetches a user by email if present.
func (r *PGXUsersRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	user, err := findUser(ctx, r.pool, `u.email = $1`, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	return user, err
}

// FindByID retrieves a user by identifier.
func (r *PGXUsersRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	user, err := findUser(ctx, r.pool, `u.id = $1`, id)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("query user by id: %w", err)
	}
	return user, err
}

func findUser(ctx context.Context, q rowQuerier, where string, arg any) (*entity.User, error) {
	user, err := scanUser(q.QueryRow(ctx, userSelect+` WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// List returns users newest first, optionally narrowed to one role or an email fragment.
func (r *PGXUsersRepository) List(ctx context.Context, filter UserFilter) ([]entity.User, error) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if filter.Role != "" {
		args = append(args, filter.Role)
		conditions = append(conditions, fmt.Sprintf("u.role = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("u.email ILIKE $%d", len(args)))
	}

	query := userSelect
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY u.created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]entity.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// Create inserts the account and claims its sponsor profiles in one transaction.
func (r *PGXUsersRepository) Create(ctx context.Context, input UserInput) (*entity.User, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("start user tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id uuid.UUID
	err = tx.QueryRow(ctx, `
        INSERT INTO users (email, password_hash, role)
        VALUES ($1, $2, $3)
        RETURNING id
    `, input.Email, input.PasswordHash, input.Role).Scan(&id)
	if err != nil {
		if dup := duplicateEmail(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if len(input.SponsorIDs) > 0 {
		if err := linkSponsors(ctx, tx, id, input.SponsorIDs); err != nil {
			return nil, err
		}
	}

	user, err := findUser(ctx, tx, `u.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit user: %w", err)
	}
	return user, nil
}

// Update patches account columns and, when SponsorIDs is set, replaces the owned profiles.
func (r *PGXUsersRepository) Update(ctx context.Context, id uuid.UUID, patch UserPatch) (*entity.User, error) {
	set := &setBuilder{}
	if patch.Email != nil {
		set.add("email", *patch.Email)
	}
	if patch.PasswordHash != nil {
		set.add("password_hash", *patch.PasswordHash)
	}
	if patch.Role != nil {
		set.add("role", *patch.Role)
	}
	if set.empty() && patch.SponsorIDs == nil {
		return r.FindByID(ctx, id)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("start user tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if !set.empty() {
		clause, args, idx := set.build(id)
		var updated uuid.UUID
		err := tx.QueryRow(ctx, fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING id`, clause, idx), args...).Scan(&updated)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrUserNotFound
			}
			if dup := duplicateEmail(err); dup != nil {
				return nil, dup
			}
			return nil, fmt.Errorf("update user: %w", err)
		}
	} else if _, err := findUser(ctx, tx, `u.id = $1`, id); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("query user by id: %w", err)
	}

	if patch.SponsorIDs != nil {
		if err := linkSponsors(ctx, tx, id, patch.SponsorIDs); err != nil {
			return nil, err
		}
	}

	user, err := findUser(ctx, tx, `u.id = $1`, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("reload user: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit user: %w", err)
	}
	return user, nil
}

// Delete releases the account's sponsor profiles and removes it.
func (r *PGXUsersRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("start user tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE sponsor_profiles SET owner_id = NULL, updated_at = NOW() WHERE owner_id = $1`, id); err != nil {
		return fmt.Errorf("release sponsor profiles: %w", err)
	}
	cmd, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit user delete: %w", err)
	}
	return nil
}

// linkSponsors makes ids the exact set of profiles owned by userID. Every id
// must name an existing profile.
func linkSponsors(ctx context.Context, tx pgx.Tx, userID uuid.UUID, ids []uuid.UUID) error {
	keep := make([]string, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		keep = append(keep, id.String())
	}

	if _, err := tx.Exec(ctx, `
        UPDATE sponsor_profiles SET owner_id = NULL, updated_at = NOW()
        WHERE owner_id = $1 AND NOT (id::text = ANY($2))
    `, userID, keep); err != nil {
		return fmt.Errorf("release sponsor profiles: %w", err)
	}
	if len(keep) == 0 {
		return nil
	}

	cmd, err := tx.Exec(ctx, `
        UPDATE sponsor_profiles SET owner_id = $1, updated_at = NOW()
        WHERE id::text = ANY($2)
    `, userID, keep)
	if err != nil {
		return fmt.Errorf("link sponsor profiles: %w", err)
	}
	if cmd.RowsAffected() != int64(len(keep)) {
		return fmt.Errorf("%w: %d of %d profiles exist", ErrSponsorNotFound, cmd.RowsAffected(), len(keep))
	}
	return nil
}

func duplicateEmail(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName+pgErr.Message, "users_email_key") {
		return fmt.Errorf("%w: %v", ErrEmailDuplicate, pgErr)
	}
	return nil
}

func scanUser(row pgx.Row) (*entity.User, error) {
	var (
		user     entity.User
		sponsors []string
	)
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt, &sponsors); err != nil {
		return nil, err
	}
	user.SponsorIDs = make([]uuid.UUID, 0, len(sponsors))
	for _, raw := range sponsors {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse owned sponsor id: %w", err)
		}
		user.SponsorIDs = append(user.SponsorIDs, id)
	}
	return &user, nil
}
