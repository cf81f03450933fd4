package entity

import (
	"time"

	"github.com/google/uuid"
)

// Event is a fashion event sponsors can be attached to. The table is owned by the
// events module; this service only reads it.
type Event struct {
	ID       uuid.UUID  `json:"id"`
	Title    string     `json:"title"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
	Venue    *string    `json:"venue,omitempty"`
	Status   string     `json:"status"`
}
