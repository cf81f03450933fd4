// Package pipeline keeps the in-memory sponsorship pipeline: every deal with its
// confirmed status plus the optimistic transitions still waiting on the database.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/repository"
)

var (
	ErrDealNotLoaded        = errors.New("deal not loaded")
	ErrInvalidStatus        = errors.New("invalid deal status")
	ErrTransitionNotAllowed = errors.New("transition not allowed")
	ErrTransitionAborted    = errors.New("transition aborted after an earlier transition of the deal failed")
)

const (
	defaultDebounce     = 750 * time.Millisecond
	defaultWriteTimeout = 30 * time.Second
	refreshTimeout      = 30 * time.Second
)

// DealGateway is the subset of the deals repository the store needs.
type DealGateway interface {
	List(ctx context.Context, filter repository.DealFilter) ([]entity.Deal, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.DealStatus) (*entity.Deal, error)
}

// Enqueuer accepts deals that need deliverables provisioned.
type Enqueuer interface {
	Enqueue(dealID uuid.UUID)
}

// Options tune a Store. Zero values pick defaults.
type Options struct {
	Notifier     Notifier
	Provisioner  Enqueuer
	Debounce     time.Duration
	WriteTimeout time.Duration
}

type pendingTransition struct {
	from    entity.DealStatus
	to      entity.DealStatus
	prev    <-chan struct{}
	done    chan struct{}
	aborted bool
}

type dealState struct {
	confirmed entity.Deal
	pending   []*pendingTransition
	tail      <-chan struct{}
}

func (s *dealState) observable() entity.Deal {
	deal := s.confirmed
	if n := len(s.pending); n > 0 {
		deal.Status = s.pending[n-1].to
	}
	return deal
}

func (s *dealState) remove(pt *pendingTransition) {
	for i, candidate := range s.pending {
		if candidate == pt {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// discardFrom drops pt and every later transition, marking them aborted.
func (s *dealState) discardFrom(pt *pendingTransition) int {
	for i, candidate := range s.pending {
		if candidate != pt {
			continue
		}
		dropped := s.pending[i+1:]
		for _, later := range dropped {
			later.aborted = true
		}
		s.pending = s.pending[:i]
		return len(dropped)
	}
	return 0
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Store is the pipeline state store.
type Store struct {
	gateway      DealGateway
	notifier     Notifier
	provisioner  Enqueuer
	debounce     time.Duration
	writeTimeout time.Duration

	mu     sync.Mutex
	deals  map[uuid.UUID]*dealState
	order  []uuid.UUID
	loaded bool
	timer  *time.Timer
	closed bool

	obsMu     sync.RWMutex
	observers map[int]Observer
	nextObs   int
}

// NewStore creates an empty store. Call Load before serving reads.
func NewStore(gateway DealGateway, opts Options) *Store {
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	return &Store{
		gateway:      gateway,
		notifier:     opts.Notifier,
		provisioner:  opts.Provisioner,
		debounce:     opts.Debounce,
		writeTimeout: opts.WriteTimeout,
		deals:        make(map[uuid.UUID]*dealState),
		observers:    make(map[int]Observer),
	}
}

// Load fetches every deal. It is Refresh under another name for call sites that
// populate the store the first time.
func (s *Store) Load(ctx context.Context) error {
	return s.Refresh(ctx)
}

// Refresh refetches all deals and merges them into the confirmed layer. A fetched
// row never replaces a newer locally confirmed revision, and pending transitions
// survive the refresh.
func (s *Store) Refresh(ctx context.Context) error {
	rows, err := s.gateway.List(ctx, repository.DealFilter{})
	if err != nil {
		return fmt.Errorf("refresh deals: %w", err)
	}

	s.mu.Lock()
	seen := make(map[uuid.UUID]struct{}, len(rows))
	order := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		seen[row.ID] = struct{}{}
		order = append(order, row.ID)
		state, ok := s.deals[row.ID]
		if !ok {
			s.deals[row.ID] = &dealState{confirmed: row, tail: closedChan}
			continue
		}
		if row.Revision >= state.confirmed.Revision {
			state.confirmed = row
		}
	}
	for id, state := range s.deals {
		if _, ok := seen[id]; ok {
			continue
		}
		if len(state.pending) > 0 {
			order = append(order, id)
			continue
		}
		delete(s.deals, id)
	}
	s.order = order
	s.loaded = true
	s.mu.Unlock()

	s.publish(Event{Type: EventRefreshed})
	return nil
}

// ScheduleRefresh coalesces refresh requests arriving within the debounce window.
func (s *Store) ScheduleRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := s.Refresh(ctx); err != nil {
			log.Printf("pipeline: debounced refresh failed err=%v", err)
		}
	})
}

// Close stops pending debounced refreshes.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
}

// Loaded reports whether the first load completed.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Snapshot returns the observable deals in load order.
func (s *Store) Snapshot() []entity.Deal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Deal, 0, len(s.order))
	for _, id := range s.order {
		if state, ok := s.deals[id]; ok {
			out = append(out, state.observable())
		}
	}
	return out
}

// Get returns the observable deal.
func (s *Store) Get(id uuid.UUID) (entity.Deal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.deals[id]
	if !ok {
		return entity.Deal{}, false
	}
	return state.observable(), true
}

// Pending reports how many transitions of a deal are waiting on the database.
func (s *Store) Pending(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.deals[id]; ok {
		return len(state.pending)
	}
	return 0
}

// Upsert merges a deal written elsewhere (create, edit) into the confirmed layer.
func (s *Store) Upsert(deal entity.Deal) {
	s.mu.Lock()
	state, ok := s.deals[deal.ID]
	switch {
	case !ok:
		s.deals[deal.ID] = &dealState{confirmed: deal, tail: closedChan}
		s.order = append([]uuid.UUID{deal.ID}, s.order...)
	case deal.Revision >= state.confirmed.Revision:
		state.confirmed = deal
	}
	observed := s.deals[deal.ID].observable()
	s.mu.Unlock()

	s.publish(Event{Type: EventConfirmed, Deal: &observed})
}

// Remove drops a deleted deal.
func (s *Store) Remove(id uuid.UUID) {
	s.mu.Lock()
	delete(s.deals, id)
	for i, candidate := range s.order {
		if candidate == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.publish(Event{Type: EventRemoved, DealID: id})
}

// UpdateStatus applies a manual transition.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.DealStatus) (entity.Deal, error) {
	return s.Transition(ctx, id, status, entity.OriginManual)
}

type transitionResult struct {
	deal entity.Deal
	err  error
}

// Transition applies status optimistically and writes it through the gateway.
// Writes for one deal run in submission order; when one fails, it and every later
// transition of the deal are discarded and the deal falls back to its confirmed
// status. The write only lands while the stored row still has the status the
// transition was checked against; otherwise it fails with
// repository.ErrStatusConflict and the store refreshes. Moving to the current
// status is a no-op.
func (s *Store) Transition(ctx context.Context, id uuid.UUID, status entity.DealStatus, origin entity.TransitionOrigin) (entity.Deal, error) {
	if !status.Valid() {
		return entity.Deal{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	state, ok := s.deals[id]
	if !ok {
		s.mu.Unlock()
		return entity.Deal{}, ErrDealNotLoaded
	}
	current := state.observable()
	if current.Status == status {
		s.mu.Unlock()
		return current, nil
	}
	if guard := entity.CanTransition(current.Status, status, origin); !guard.Allowed {
		s.mu.Unlock()
		return current, fmt.Errorf("%w: %s", ErrTransitionNotAllowed, guard.Reason)
	}

	pt := &pendingTransition{from: current.Status, to: status, prev: state.tail, done: make(chan struct{})}
	state.pending = append(state.pending, pt)
	state.tail = pt.done
	optimistic := state.observable()
	s.mu.Unlock()

	s.publish(Event{Type: EventOptimistic, Deal: &optimistic, From: current.Status})

	result := make(chan transitionResult, 1)
	go s.write(context.WithoutCancel(ctx), id, current.Status, pt, result)

	select {
	case res := <-result:
		return res.deal, res.err
	case <-ctx.Done():
		return optimistic, ctx.Err()
	}
}

func (s *Store) write(ctx context.Context, id uuid.UUID, from entity.DealStatus, pt *pendingTransition, result chan<- transitionResult) {
	defer close(pt.done)
	<-pt.prev

	s.mu.Lock()
	state, ok := s.deals[id]
	if !ok || pt.aborted {
		var deal entity.Deal
		if ok {
			deal = state.observable()
		}
		s.mu.Unlock()
		result <- transitionResult{deal: deal, err: ErrTransitionAborted}
		s.publish(Event{Type: EventAborted, DealID: id, Deal: &deal})
		return
	}
	s.mu.Unlock()

	wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	updated, err := s.gateway.UpdateStatus(wctx, id, pt.from, pt.to)
	cancel()

	s.mu.Lock()
	state, ok = s.deals[id]
	if !ok {
		s.mu.Unlock()
		result <- transitionResult{err: ErrDealNotLoaded}
		return
	}
	if err != nil {
		dropped := state.discardFrom(pt)
		rolledBack := state.observable()
		s.mu.Unlock()

		log.Printf("pipeline: transition failed deal=%s from=%s to=%s discarded=%d err=%v", id, from, pt.to, dropped, err)
		s.notifier.Notify(Notification{Level: LevelError, DealID: id, Message: fmt.Sprintf("Failed to move deal to %s", pt.to), Err: err})
		s.publish(Event{Type: EventRolledBack, Deal: &rolledBack, From: pt.to, Error: err.Error()})
		if errors.Is(err, repository.ErrStatusConflict) {
			s.ScheduleRefresh()
		}
		result <- transitionResult{deal: rolledBack, err: err}
		return
	}

	confirmed := state.confirmed
	confirmed.Status = pt.to
	confirmed.Revision++
	if updated != nil && updated.Revision >= state.confirmed.Revision {
		confirmed = *updated
	}
	state.confirmed = confirmed
	state.remove(pt)
	observed := state.observable()
	s.mu.Unlock()

	s.notifier.Notify(Notification{Level: LevelSuccess, DealID: id, Message: fmt.Sprintf("Deal moved to %s", pt.to)})
	s.publish(Event{Type: EventConfirmed, Deal: &observed, From: from})

	if pt.to == entity.DealSigned && s.provisioner != nil {
		s.provisioner.Enqueue(id)
	}
	result <- transitionResult{deal: confirmed}
}
