package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fashionos/sponsor-crm/internal/entity"
)

var (
	// ErrPackageNotFound is returned when no sponsorship package matches.
	ErrPackageNotFound = errors.New("sponsorship package not found")
	// ErrPackageDuplicate is returned when a package name is already taken.
	ErrPackageDuplicate = errors.New("sponsorship package name already exists")
)

// PackageInput carries the writable columns of a sponsorship package.
type PackageInput struct {
	Name     string
	Price    float64
	Slots    int
	Template []entity.DeliverableTemplate
}

// PackagesRepository persists sponsorship packages.
type PackagesRepository interface {
	List(ctx context.Context) ([]entity.SponsorshipPackage, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.SponsorshipPackage, error)
	FindByName(ctx context.Context, name string) (*entity.SponsorshipPackage, error)
	Create(ctx context.Context, input PackageInput) (*entity.SponsorshipPackage, error)
	Update(ctx context.Context, id uuid.UUID, input PackageInput) (*entity.SponsorshipPackage, error)
	Upsert(ctx context.Context, input PackageInput) (*entity.SponsorshipPackage, bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PGXPackagesRepository implements PackagesRepository with pgx.
type PGXPackagesRepository struct {
	pool pgxPool
}

// NewPGXPackagesRepository instantiates a packages repository.
func NewPGXPackagesRepository(pool pgxPool) *PGXPackagesRepository {
	return &PGXPackagesRepository{pool: pool}
}

const packageColumns = `id, name, price::float8, slots, deliverables_template, created_at, updated_at`

// List returns every package ordered by price, most expensive first.
func (r *PGXPackagesRepository) List(ctx context.Context) ([]entity.SponsorshipPackage, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+packageColumns+` FROM sponsorship_packages ORDER BY price DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	defer rows.Close()

	packages := make([]entity.SponsorshipPackage, 0)
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan package row: %w", err)
		}
		packages = append(packages, *pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate packages: %w", err)
	}
	return packages, nil
}

// Get fetches a package by id.
func (r *PGXPackagesRepository) Get(ctx context.Context, id uuid.UUID) (*entity.SponsorshipPackage, error) {
	pkg, err := scanPackage(r.pool.QueryRow(ctx, `SELECT `+packageColumns+` FROM sponsorship_packages WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("query package: %w", err)
	}
	return pkg, nil
}

// FindByName matches a package name case-insensitively.
func (r *PGXPackagesRepository) FindByName(ctx context.Context, name string) (*entity.SponsorshipPackage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrPackageNotFound
	}
	pkg, err := scanPackage(r.pool.QueryRow(ctx, `SELECT `+packageColumns+` FROM sponsorship_packages WHERE LOWER(name) = LOWER($1)`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("query package by name: %w", err)
	}
	return pkg, nil
}

// Create inserts a new package.
func (r *PGXPackagesRepository) Create(ctx context.Context, input PackageInput) (*entity.SponsorshipPackage, error) {
	template, err := marshalTemplate(input.Template)
	if err != nil {
		return nil, err
	}
	pkg, err := scanPackage(r.pool.QueryRow(ctx, `
        INSERT INTO sponsorship_packages (name, price, slots, deliverables_template)
        VALUES ($1, $2, $3, $4::jsonb)
        RETURNING `+packageColumns, input.Name, input.Price, input.Slots, template))
	if err != nil {
		if isUniqueViolation(err, "sponsorship_packages_name_key") {
			return nil, fmt.Errorf("%w: %s", ErrPackageDuplicate, input.Name)
		}
		return nil, fmt.Errorf("insert package: %w", err)
	}
	return pkg, nil
}

// Update replaces all writable columns of a package.
func (r *PGXPackagesRepository) Update(ctx context.Context, id uuid.UUID, input PackageInput) (*entity.SponsorshipPackage, error) {
	template, err := marshalTemplate(input.Template)
	if err != nil {
		return nil, err
	}
	pkg, err := scanPackage(r.pool.QueryRow(ctx, `
        UPDATE sponsorship_packages
        SET name = $1, price = $2, slots = $3, deliverables_template = $4::jsonb, updated_at = NOW()
        WHERE id = $5
        RETURNING `+packageColumns, input.Name, input.Price, input.Slots, template, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		if isUniqueViolation(err, "sponsorship_packages_name_key") {
			return nil, fmt.Errorf("%w: %s", ErrPackageDuplicate, input.Name)
		}
		return nil, fmt.Errorf("update package: %w", err)
	}
	return pkg, nil
}

// Upsert inserts or updates a package keyed by its case-insensitive name.
// The boolean reports whether a new row was inserted.
func (r *PGXPackagesRepository) Upsert(ctx context.Context, input PackageInput) (*entity.SponsorshipPackage, bool, error) {
	template, err := marshalTemplate(input.Template)
	if err != nil {
		return nil, false, err
	}
	row := r.pool.QueryRow(ctx, `
        INSERT INTO sponsorship_packages (name, price, slots, deliverables_template)
        VALUES ($1, $2, $3, $4::jsonb)
        ON CONFLICT ((LOWER(name))) DO UPDATE SET
            price = EXCLUDED.price,
            slots = EXCLUDED.slots,
            deliverables_template = EXCLUDED.deliverables_template,
            updated_at = NOW()
        RETURNING `+packageColumns+`, xmax = 0`, input.Name, input.Price, input.Slots, template)

	var (
		pkg      entity.SponsorshipPackage
		raw      []byte
		inserted bool
	)
	if err := row.Scan(&pkg.ID, &pkg.Name, &pkg.Price, &pkg.Slots, &raw, &pkg.CreatedAt, &pkg.UpdatedAt, &inserted); err != nil {
		return nil, false, fmt.Errorf("upsert package %q: %w", input.Name, err)
	}
	if err := unmarshalTemplate(raw, &pkg); err != nil {
		return nil, false, err
	}
	return &pkg, inserted, nil
}

// Delete removes a package.
func (r *PGXPackagesRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM sponsorship_packages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete package: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrPackageNotFound
	}
	return nil
}

func scanPackage(row pgx.Row) (*entity.SponsorshipPackage, error) {
	var (
		pkg entity.SponsorshipPackage
		raw []byte
	)
	if err := row.Scan(&pkg.ID, &pkg.Name, &pkg.Price, &pkg.Slots, &raw, &pkg.CreatedAt, &pkg.UpdatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalTemplate(raw, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

func marshalTemplate(template []entity.DeliverableTemplate) (string, error) {
	if template == nil {
		template = []entity.DeliverableTemplate{}
	}
	payload, err := json.Marshal(template)
	if err != nil {
		return "", fmt.Errorf("encode deliverables template: %w", err)
	}
	return string(payload), nil
}

func unmarshalTemplate(raw []byte, pkg *entity.SponsorshipPackage) error {
	pkg.Template = []entity.DeliverableTemplate{}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &pkg.Template); err != nil {
		return fmt.Errorf("decode deliverables template for %q: %w", pkg.Name, err)
	}
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint || strings.Contains(pgErr.Message, constraint)
}
