package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fashionos/sponsor-crm/internal/entity"
)

// ErrSponsorNotFound is returned when no sponsor profile matches.
var ErrSponsorNotFound = errors.New("sponsor not found")

// SponsorFilter narrows sponsor listings.
type SponsorFilter struct {
	Search       string
	SponsorType  entity.SponsorType
	LeadCategory entity.LeadCategory
	OwnerID      *uuid.UUID
	Limit        int
	Offset       int
}

// SponsorInput carries the writable columns of a sponsor profile.
type SponsorInput struct {
	Name         string
	Industry     *string
	SponsorType  entity.SponsorType
	ContactEmail *string
	ContactPhone *string
	Website      *string
	SocialLinks  []string
	OwnerID      *uuid.UUID
}

// SponsorPatch updates a subset of sponsor columns.
type SponsorPatch struct {
	Name         *string
	Industry     *string
	SponsorType  *entity.SponsorType
	ContactEmail *string
	ContactPhone *string
	Website      *string
	SocialLinks  []string
	OwnerID      *uuid.UUID
}

// SponsorsRepository persists sponsor profiles.
type SponsorsRepository interface {
	List(ctx context.Context, filter SponsorFilter) ([]entity.SponsorProfile, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.SponsorProfile, error)
	Create(ctx context.Context, input SponsorInput) (*entity.SponsorProfile, error)
	Update(ctx context.Context, id uuid.UUID, patch SponsorPatch) (*entity.SponsorProfile, error)
	UpdateScore(ctx context.Context, id uuid.UUID, score int, category entity.LeadCategory) (*entity.SponsorProfile, error)
	UpdateBrandStory(ctx context.Context, id uuid.UUID, story string) (*entity.SponsorProfile, error)
}

// PGXSponsorsRepository implements SponsorsRepository with pgx.
type PGXSponsorsRepository struct {
	pool pgxPool
}

// NewPGXSponsorsRepository instantiates a sponsors repository.
func NewPGXSponsorsRepository(pool pgxPool) *PGXSponsorsRepository {
	return &PGXSponsorsRepository{pool: pool}
}

const sponsorColumns = `id, name, industry, sponsor_type, contact_email, contact_phone, website,
        lead_score, lead_category, brand_story, social_links, owner_id::text, created_at, updated_at`

// List retrieves sponsors matching the filter, best scored first.
func (r *PGXSponsorsRepository) List(ctx context.Context, filter SponsorFilter) ([]entity.SponsorProfile, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ` + sponsorColumns + ` FROM sponsor_profiles`)

	conditions := make([]string, 0)
	args := make([]any, 0)

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR industry ILIKE $%d)", len(args), len(args)))
	}
	if filter.SponsorType != "" {
		args = append(args, string(filter.SponsorType))
		conditions = append(conditions, fmt.Sprintf("sponsor_type = $%d", len(args)))
	}
	if filter.LeadCategory != "" {
		args = append(args, string(filter.LeadCategory))
		conditions = append(conditions, fmt.Sprintf("lead_category = $%d", len(args)))
	}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)))
	}

	if len(conditions) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(conditions, " AND "))
	}
	query.WriteString(" ORDER BY lead_score DESC NULLS LAST, name")

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
		return nil, fmt.Errorf("list sponsors: %w", err)
	}
	defer rows.Close()

	sponsors := make([]entity.SponsorProfile, 0)
	for rows.Next() {
		sponsor, err := scanSponsor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sponsor row: %w", err)
		}
		sponsors = append(sponsors, *sponsor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sponsors: %w", err)
	}
	return sponsors, nil
}

// Get fetches a sponsor by id.
func (r *PGXSponsorsRepository) Get(ctx context.Context, id uuid.UUID) (*entity.SponsorProfile, error) {
	sponsor, err := scanSponsor(r.pool.QueryRow(ctx, `SELECT `+sponsorColumns+` FROM sponsor_profiles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSponsorNotFound
		}
		return nil, fmt.Errorf("query sponsor: %w", err)
	}
	return sponsor, nil
}

// Create inserts a sponsor profile.
func (r *PGXSponsorsRepository) Create(ctx context.Context, input SponsorInput) (*entity.SponsorProfile, error) {
	sponsorType := input.SponsorType
	if sponsorType == "" {
		sponsorType = entity.SponsorTypeBrand
	}
	sponsor, err := scanSponsor(r.pool.QueryRow(ctx, `
        INSERT INTO sponsor_profiles (name, industry, sponsor_type, contact_email, contact_phone, website, social_links, owner_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING `+sponsorColumns,
		input.Name,
		stringOrNil(input.Industry),
		string(sponsorType),
		stringOrNil(input.ContactEmail),
		stringOrNil(input.ContactPhone),
		stringOrNil(input.Website),
		stringSliceOrEmpty(input.SocialLinks),
		uuidOrNil(input.OwnerID),
	))
	if err != nil {
		return nil, fmt.Errorf("insert sponsor: %w", err)
	}
	return sponsor, nil
}

// Update patches sponsor attributes.
func (r *PGXSponsorsRepository) Update(ctx context.Context, id uuid.UUID, patch SponsorPatch) (*entity.SponsorProfile, error) {
	set := setBuilder{}
	if patch.Name != nil {
		set.add("name", *patch.Name)
	}
	if patch.Industry != nil {
		set.add("industry", stringOrNil(patch.Industry))
	}
	if patch.SponsorType != nil {
		set.add("sponsor_type", string(*patch.SponsorType))
	}
	if patch.ContactEmail != nil {
		set.add("contact_email", stringOrNil(patch.ContactEmail))
	}
	if patch.ContactPhone != nil {
		set.add("contact_phone", stringOrNil(patch.ContactPhone))
	}
	if patch.Website != nil {
		set.add("website", stringOrNil(patch.Website))
	}
	if patch.SocialLinks != nil {
		set.add("social_links", patch.SocialLinks)
	}
	if patch.OwnerID != nil {
		set.add("owner_id", uuidOrNil(patch.OwnerID))
	}
	if set.empty() {
		return r.Get(ctx, id)
	}

	clause, args, idx := set.build(id)
	query := fmt.Sprintf(`UPDATE sponsor_profiles SET %s WHERE id = $%d RETURNING `+sponsorColumns, clause, idx)
	return r.updateReturning(ctx, "update sponsor", query, args...)
}

// UpdateScore persists an AI lead score and its category.
func (r *PGXSponsorsRepository) UpdateScore(ctx context.Context, id uuid.UUID, score int, category entity.LeadCategory) (*entity.SponsorProfile, error) {
	return r.updateReturning(ctx, "update sponsor score", `
        UPDATE sponsor_profiles SET lead_score = $1, lead_category = $2, updated_at = NOW()
        WHERE id = $3
        RETURNING `+sponsorColumns, score, string(category), id)
}

// UpdateBrandStory persists a generated brand story.
func (r *PGXSponsorsRepository) UpdateBrandStory(ctx context.Context, id uuid.UUID, story string) (*entity.SponsorProfile, error) {
	return r.updateReturning(ctx, "update sponsor brand story", `
        UPDATE sponsor_profiles SET brand_story = $1, updated_at = NOW()
        WHERE id = $2
        RETURNING `+sponsorColumns, story, id)
}

func (r *PGXSponsorsRepository) updateReturning(ctx context.Context, op, query string, args ...any) (*entity.SponsorProfile, error) {
	sponsor, err := scanSponsor(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSponsorNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sponsor, nil
}

func scanSponsor(row pgx.Row) (*entity.SponsorProfile, error) {
	var (
		sponsor      entity.SponsorProfile
		industry     sql.NullString
		sponsorType  string
		contactEmail sql.NullString
		contactPhone sql.NullString
		website      sql.NullString
		leadScore    sql.NullInt64
		leadCategory sql.NullString
		brandStory   sql.NullString
		ownerID      sql.NullString
	)
	if err := row.Scan(
		&sponsor.ID,
		&sponsor.Name,
		&industry,
		&sponsorType,
		&contactEmail,
		&contactPhone,
		&website,
		&leadScore,
		&leadCategory,
		&brandStory,
		&sponsor.SocialLinks,
		&ownerID,
		&sponsor.CreatedAt,
		&sponsor.UpdatedAt,
	); err != nil {
		return nil, err
	}

	sponsor.Industry = nullStringToPtr(industry)
	sponsor.SponsorType = entity.SponsorType(sponsorType)
	sponsor.ContactEmail = nullStringToPtr(contactEmail)
	sponsor.ContactPhone = nullStringToPtr(contactPhone)
	sponsor.Website = nullStringToPtr(website)
	sponsor.BrandStory = nullStringToPtr(brandStory)
	if leadScore.Valid {
		score := int(leadScore.Int64)
		sponsor.LeadScore = &score
	}
	if leadCategory.Valid {
		category := entity.LeadCategory(leadCategory.String)
		sponsor.LeadCategory = &category
	}
	if sponsor.SocialLinks == nil {
		sponsor.SocialLinks = []string{}
	}
	owner, err := nullUUIDToPtr(ownerID)
	if err != nil {
		return nil, fmt.Errorf("parse owner id: %w", err)
	}
	sponsor.OwnerID = owner
	return &sponsor, nil
}
