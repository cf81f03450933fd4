package entity

import (
	"time"

	"github.com/google/uuid"
)

// Deal is an event_sponsors row: the engagement between one sponsor and one event.
type Deal struct {
	ID          uuid.UUID  `json:"id"`
	SponsorID   uuid.UUID  `json:"sponsor_id"`
	EventID     uuid.UUID  `json:"event_id"`
	Status      DealStatus `json:"status"`
	Level       string     `json:"level"`
	CashValue   float64    `json:"cash_value"`
	InKindValue float64    `json:"in_kind_value"`
	ContractURL *string    `json:"contract_url,omitempty"`
	Revision    int64      `json:"revision"`
	SponsorName string     `json:"sponsor_name,omitempty"`
	EventTitle  string     `json:"event_title,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TotalValue is the combined cash and in-kind value of the deal.
func (d Deal) TotalValue() float64 {
	return d.CashValue + d.InKindValue
}

// SponsorActivation is an on-site or digital activation planned for a deal.
type SponsorActivation struct {
	ID          uuid.UUID  `json:"id"`
	DealID      uuid.UUID  `json:"event_sponsor_id"`
	Title       string     `json:"title"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// SponsorROIMetric is a single measured outcome for a deal.
type SponsorROIMetric struct {
	ID         uuid.UUID `json:"id"`
	DealID     uuid.UUID `json:"event_sponsor_id"`
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}
