package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DeliverableStatus tracks the progress of a sponsor obligation.
type DeliverableStatus string

const (
	DeliverableNotStarted    DeliverableStatus = "not_started"
	DeliverablePending       DeliverableStatus = "pending"
	DeliverableInProgress    DeliverableStatus = "in_progress"
	DeliverableUploaded      DeliverableStatus = "uploaded"
	DeliverablePendingReview DeliverableStatus = "pending_review"
	DeliverableApproved      DeliverableStatus = "approved"
	DeliverableBlocked       DeliverableStatus = "blocked"
)

var deliverableTransitions = map[DeliverableStatus][]DeliverableStatus{
	DeliverableNotStarted:    {DeliverablePending, DeliverableInProgress, DeliverableUploaded, DeliverableBlocked},
	DeliverablePending:       {DeliverableInProgress, DeliverableUploaded, DeliverableBlocked},
	DeliverableInProgress:    {DeliverablePending, DeliverableUploaded, DeliverableBlocked},
	DeliverableUploaded:      {DeliverablePendingReview, DeliverableApproved, DeliverableBlocked},
	DeliverablePendingReview: {DeliverableApproved, DeliverableBlocked},
	DeliverableApproved:      {},
	DeliverableBlocked:       {DeliverablePending, DeliverableInProgress, DeliverableUploaded},
}

// Valid reports whether the status is part of the enumeration.
func (s DeliverableStatus) Valid() bool {
	_, ok := deliverableTransitions[s]
	return ok
}

// Submitted reports whether an asset has been handed in for this status.
func (s DeliverableStatus) Submitted() bool {
	return s == DeliverableUploaded || s == DeliverablePendingReview || s == DeliverableApproved
}

// CanMoveTo checks the deliverable workflow.
func (s DeliverableStatus) CanMoveTo(next DeliverableStatus) error {
	if !next.Valid() {
		return fmt.Errorf("unknown deliverable status %q", next)
	}
	for _, allowed := range deliverableTransitions[s] {
		if allowed == next {
			return nil
		}
	}
	return fmt.Errorf("cannot move deliverable from %s to %s", s, next)
}

// Deliverable is a sponsor_deliverables row attached to exactly one deal.
type Deliverable struct {
	ID        uuid.UUID         `json:"id"`
	DealID    uuid.UUID         `json:"event_sponsor_id"`
	Title     string            `json:"title"`
	Type      string            `json:"type"`
	Status    DeliverableStatus `json:"status"`
	DueDate   time.Time         `json:"due_date"`
	AssetURL  *string           `json:"asset_url,omitempty"`
	Notes     *string           `json:"notes,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// AllSubmitted reports whether every deliverable in the set has been handed in.
// An empty set is never ready.
func AllSubmitted(items []Deliverable) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if !item.Status.Submitted() {
			return false
		}
	}
	return true
}
