package dto

import "time"

// SponsorListQuery captures sponsor list filters from the query string.
type SponsorListQuery struct {
	Search   string `query:"search"`
	Type     string `query:"type"`
	Category string `query:"category"`
	Page     int    `query:"page"`
	PerPage  int    `query:"per_page"`
}

// SponsorRequest creates a sponsor profile.
type SponsorRequest struct {
	Name         string   `json:"name"`
	Industry     *string  `json:"industry,omitempty"`
	SponsorType  string   `json:"sponsor_type"`
	ContactEmail *string  `json:"contact_email,omitempty"`
	ContactPhone *string  `json:"contact_phone,omitempty"`
	Website      *string  `json:"website,omitempty"`
	SocialLinks  []string `json:"social_links,omitempty"`
	OwnerID      *string  `json:"owner_id,omitempty"`
}

// SponsorPatchRequest updates selected sponsor fields.
type SponsorPatchRequest struct {
	Name         *string   `json:"name,omitempty"`
	Industry     *string   `json:"industry,omitempty"`
	SponsorType  *string   `json:"sponsor_type,omitempty"`
	ContactEmail *string   `json:"contact_email,omitempty"`
	ContactPhone *string   `json:"contact_phone,omitempty"`
	Website      *string   `json:"website,omitempty"`
	SocialLinks  *[]string `json:"social_links,omitempty"`
	OwnerID      *string   `json:"owner_id,omitempty"`
}

// ContactRequest adds a person to a sponsor.
type ContactRequest struct {
	Name      string  `json:"name"`
	Role      *string `json:"role,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	IsPrimary bool    `json:"is_primary"`
}

// InteractionRequest appends to a sponsor's relationship history.
type InteractionRequest struct {
	Kind       string     `json:"kind"`
	Summary    string     `json:"summary"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}
