// Package kanban translates board gestures into pipeline transitions.
package kanban

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/fashionos/sponsor-crm/internal/entity"
)

var (
	ErrUnknownColumn = errors.New("unknown board column")
	ErrNoDrag        = errors.New("no deal is being dragged")
	ErrDealNotFound  = errors.New("deal not on the board")
	ErrInvalidDrop   = errors.New("invalid drop")
)

// Columns are the board columns in display order.
var Columns = []entity.DealStatus{
	entity.DealLead,
	entity.DealQualified,
	entity.DealProposal,
	entity.DealNegotiating,
	entity.DealSigned,
}

// ColumnFor validates that status is a board column.
func ColumnFor(status entity.DealStatus) (entity.DealStatus, error) {
	for _, column := range Columns {
		if column == status {
			return column, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownColumn, status)
}

// PipelineStore is the subset of the pipeline store the board reads and drives.
type PipelineStore interface {
	Snapshot() []entity.Deal
	Get(id uuid.UUID) (entity.Deal, bool)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.DealStatus) (entity.Deal, error)
}

// Column is one lane of the board.
type Column struct {
	Status     entity.DealStatus `json:"status"`
	Deals      []entity.Deal     `json:"deals"`
	Count      int               `json:"count"`
	TotalValue float64           `json:"total_value"`
}

// Board is the grouped view of the pipeline.
type Board struct {
	Columns []Column `json:"columns"`
	Hidden  int      `json:"hidden"`
}

// BuildBoard groups deals into the fixed columns. Deals in other statuses only
// count towards Hidden.
func BuildBoard(deals []entity.Deal) Board {
	index := make(map[entity.DealStatus]int, len(Columns))
	board := Board{Columns: make([]Column, len(Columns))}
	for i, status := range Columns {
		index[status] = i
		board.Columns[i] = Column{Status: status, Deals: []entity.Deal{}}
	}
	for _, deal := range deals {
		i, ok := index[deal.Status]
		if !ok {
			board.Hidden++
			continue
		}
		col := &board.Columns[i]
		col.Deals = append(col.Deals, deal)
		col.Count++
		col.TotalValue += deal.TotalValue()
	}
	return board
}

// Session is one user's in-progress drag. It is safe for concurrent use.
type Session struct {
	store PipelineStore

	mu      sync.Mutex
	dragged uuid.UUID
	hovered entity.DealStatus
}

// NewSession creates an idle session.
func NewSession(store PipelineStore) *Session {
	return &Session{store: store}
}

// DragState describes the gesture in progress.
type DragState struct {
	DealID  *uuid.UUID        `json:"deal_id,omitempty"`
	Hovered entity.DealStatus `json:"hovered,omitempty"`
}

// State returns the current gesture.
func (s *Session) State() DragState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := DragState{Hovered: s.hovered}
	if s.dragged != uuid.Nil {
		id := s.dragged
		state.DealID = &id
	}
	return state
}

// DragStart remembers the dragged deal.
func (s *Session) DragStart(dealID uuid.UUID) error {
	if _, ok := s.store.Get(dealID); !ok {
		return ErrDealNotFound
	}
	s.mu.Lock()
	s.dragged = dealID
	s.hovered = ""
	s.mu.Unlock()
	return nil
}

// DragOver records the hovered column for highlighting. It has no effect on the store.
func (s *Session) DragOver(column entity.DealStatus) error {
	column, err := ColumnFor(column)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dragged == uuid.Nil {
		return ErrNoDrag
	}
	s.hovered = column
	return nil
}

// Cancel clears the gesture.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.dragged = uuid.Nil
	s.hovered = ""
	s.mu.Unlock()
}

// DropResult reports what a drop did.
type DropResult struct {
	Deal  entity.Deal `json:"deal"`
	Moved bool        `json:"moved"`
}

// Drop ends the gesture on a column. Dropping on the deal's own column does nothing;
// transitions the pipeline forbids are rejected before reaching the store.
func (s *Session) Drop(ctx context.Context, column entity.DealStatus) (DropResult, error) {
	column, err := ColumnFor(column)
	if err != nil {
		return DropResult{}, err
	}
	s.mu.Lock()
	dealID := s.dragged
	s.dragged = uuid.Nil
	s.hovered = ""
	s.mu.Unlock()
	if dealID == uuid.Nil {
		return DropResult{}, ErrNoDrag
	}
	return Move(ctx, s.store, dealID, column)
}

// Move applies a drop of dealID on column without a session.
func Move(ctx context.Context, store PipelineStore, dealID uuid.UUID, column entity.DealStatus) (DropResult, error) {
	deal, ok := store.Get(dealID)
	if !ok {
		return DropResult{}, ErrDealNotFound
	}
	if deal.Status == column {
		return DropResult{Deal: deal}, nil
	}
	if err := entity.CanTransition(deal.Status, column, entity.OriginManual).Error(); err != nil {
		return DropResult{Deal: deal}, fmt.Errorf("%w: %v", ErrInvalidDrop, err)
	}
	updated, err := store.UpdateStatus(ctx, dealID, column)
	if err != nil {
		return DropResult{Deal: updated}, err
	}
	return DropResult{Deal: updated, Moved: true}, nil
}

// Sessions keeps one drag session per user.
type Sessions struct {
	store PipelineStore

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessions creates an empty registry.
func NewSessions(store PipelineStore) *Sessions {
	return &Sessions{store: store, sessions: make(map[string]*Session)}
}

// For returns the session of a user, creating it on first use.
func (r *Sessions) For(user string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[user]
	if !ok {
		session = NewSession(r.store)
		r.sessions[user] = session
	}
	return session
}

// Board builds the current board from the store.
func (r *Sessions) Board() Board {
	return BuildBoard(r.store.Snapshot())
}
