package dto

import "time"

// RegisterRequest captures self-service registration payloads.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserListQuery filters the admin user listing.
type UserListQuery struct {
	Role   string `query:"role"`
	Search string `query:"search"`
}

// CreateUserRequest is used by administrators to create new users. SponsorIDs
// names the sponsor profiles a sponsor-role account will own.
type CreateUserRequest struct {
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	Role       string   `json:"role"`
	SponsorIDs []string `json:"sponsor_ids,omitempty"`
}

// UpdateUserRequest captures administrator-triggered partial updates. A present
// sponsor_ids list replaces the owned profiles.
type UpdateUserRequest struct {
	Email      *string   `json:"email,omitempty"`
	Password   *string   `json:"password,omitempty"`
	Role       *string   `json:"role,omitempty"`
	SponsorIDs *[]string `json:"sponsor_ids,omitempty"`
}

// UserResponse represents user data returned to clients.
type UserResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	SponsorIDs []string  `json:"sponsor_ids"`
	CreatedAt  time.Time `json:"created_at"`
}
