package entity

import (
	"time"

	"github.com/google/uuid"
)

// Roles recognised by the API.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleSponsor  = "sponsor"
)

// User is an operator or sponsor-portal account. SponsorIDs lists the sponsor
// profiles a sponsor-role account owns.
type User struct {
	ID           uuid.UUID   `json:"id"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Role         string      `json:"role"`
	SponsorIDs   []uuid.UUID `json:"sponsor_ids"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

// IsSponsor reports whether the actor uses the self-service portal.
func (a Actor) IsSponsor() bool {
	return a.Role == RoleSponsor
}
