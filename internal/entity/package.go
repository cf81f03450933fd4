package entity

import (
	"time"

	"github.com/google/uuid"
)

// DeliverableTemplate describes one deliverable stamped out when a deal is signed.
type DeliverableTemplate struct {
	Title   string `json:"title" yaml:"title"`
	Type    string `json:"type" yaml:"type"`
	DueDays int    `json:"due_days" yaml:"due_days"`
}

// SponsorshipPackage is a reusable sponsorship tier.
type SponsorshipPackage struct {
	ID        uuid.UUID             `json:"id"`
	Name      string                `json:"name"`
	Price     float64               `json:"price"`
	Slots     int                   `json:"slots"`
	Template  []DeliverableTemplate `json:"deliverables_template"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}
