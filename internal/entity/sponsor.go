package entity

import (
	"time"

	"github.com/google/uuid"
)

// SponsorType classifies the kind of company behind a sponsor profile.
type SponsorType string

const (
	SponsorTypeBrand    SponsorType = "brand"
	SponsorTypeRetailer SponsorType = "retailer"
	SponsorTypeMedia    SponsorType = "media"
	SponsorTypeBeauty   SponsorType = "beauty"
	SponsorTypeTech     SponsorType = "tech"
	SponsorTypeOther    SponsorType = "other"
)

// Valid reports whether the sponsor type is part of the enumeration.
func (t SponsorType) Valid() bool {
	switch t {
	case SponsorTypeBrand, SponsorTypeRetailer, SponsorTypeMedia, SponsorTypeBeauty, SponsorTypeTech, SponsorTypeOther:
		return true
	}
	return false
}

// LeadCategory buckets a lead score.
type LeadCategory string

const (
	LeadCategoryHigh   LeadCategory = "High"
	LeadCategoryMedium LeadCategory = "Medium"
	LeadCategoryLow    LeadCategory = "Low"
)

// SponsorProfile represents a company or brand that may sponsor events.
type SponsorProfile struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"name"`
	Industry     *string       `json:"industry,omitempty"`
	SponsorType  SponsorType   `json:"sponsor_type"`
	ContactEmail *string       `json:"contact_email,omitempty"`
	ContactPhone *string       `json:"contact_phone,omitempty"`
	Website      *string       `json:"website,omitempty"`
	LeadScore    *int          `json:"lead_score,omitempty"`
	LeadCategory *LeadCategory `json:"lead_category,omitempty"`
	BrandStory   *string       `json:"brand_story,omitempty"`
	SocialLinks  []string      `json:"social_links"`
	OwnerID      *uuid.UUID    `json:"owner_id,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// SponsorContact is a person associated with a sponsor profile.
type SponsorContact struct {
	ID        uuid.UUID `json:"id"`
	SponsorID uuid.UUID `json:"sponsor_id"`
	Name      string    `json:"name"`
	Role      *string   `json:"role,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}

// InteractionKind enumerates relationship log entry types.
type InteractionKind string

const (
	InteractionEmail   InteractionKind = "email"
	InteractionCall    InteractionKind = "call"
	InteractionMeeting InteractionKind = "meeting"
	InteractionNote    InteractionKind = "note"
)

// Valid reports whether the kind is part of the enumeration.
func (k InteractionKind) Valid() bool {
	switch k {
	case InteractionEmail, InteractionCall, InteractionMeeting, InteractionNote:
		return true
	}
	return false
}

// SponsorInteraction is an append-only relationship history entry.
type SponsorInteraction struct {
	ID         uuid.UUID       `json:"id"`
	SponsorID  uuid.UUID       `json:"sponsor_id"`
	Kind       InteractionKind `json:"kind"`
	Summary    string          `json:"summary"`
	AuthorID   *uuid.UUID      `json:"author_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
