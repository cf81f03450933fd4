package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fashionos/sponsor-crm/internal/entity"
	"github.com/fashionos/sponsor-crm/internal/realtime"
	"github.com/fashionos/sponsor-crm/internal/repository"
)

type stubGateway struct {
	mu         sync.Mutex
	rows       []entity.Deal
	listErr    error
	listCalls  int
	updates    []entity.DealStatus
	froms      []entity.DealStatus
	db         map[uuid.UUID]entity.DealStatus
	updateFunc func(ctx context.Context, id uuid.UUID, status entity.DealStatus) (*entity.Deal, error)
}

func (s *stubGateway) List(ctx context.Context, filter repository.DealFilter) ([]entity.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]entity.Deal(nil), s.rows...), nil
}

// UpdateStatus applies the write only while db (when set) still holds from.
func (s *stubGateway) UpdateStatus(ctx context.Context, id uuid.UUID, from, status entity.DealStatus) (*entity.Deal, error) {
	s.mu.Lock()
	s.updates = append(s.updates, status)
	s.froms = append(s.froms, from)
	if s.db != nil {
		if current := s.db[id]; current != from {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: expected %s, found %s", repository.ErrStatusConflict, from, current)
		}
		s.db[id] = status
	}
	fn := s.updateFunc
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, id, status)
	}
	return nil, nil
}

func (s *stubGateway) dbStatus(id uuid.UUID) entity.DealStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db[id]
}

func (s *stubGateway) setRows(rows ...entity.Deal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = rows
}

func (s *stubGateway) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func (s *stubGateway) listCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (r *recordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recordingNotifier) levels() []Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Level, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item.Level)
	}
	return out
}

type recordingEnqueuer struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (r *recordingEnqueuer) Enqueue(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func (r *recordingEnqueuer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func newDeal(status entity.DealStatus, revision int64) entity.Deal {
	return entity.Deal{ID: uuid.New(), SponsorID: uuid.New(), EventID: uuid.New(), Status: status, Level: "Gold", Revision: revision}
}

func loadedStore(t *testing.T, gateway *stubGateway, opts Options) *Store {
	t.Helper()
	store := NewStore(gateway, opts)
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestStore_UpdateStatusConfirms(t *testing.T) {
	deal := newDeal(entity.DealLead, 1)
	gateway := &stubGateway{rows: []entity.Deal{deal}}
	gateway.updateFunc = func(ctx context.Context, id uuid.UUID, status entity.DealStatus) (*entity.Deal, error) {
		updated := deal
		updated.Status = status
		updated.Revision = 2
		return &updated, nil
	}
	notifier := &recordingNotifier{}
	store := loadedStore(t, gateway, Options{Notifier: notifier})

	got, err := store.UpdateStatus(context.Background(), deal.ID, entity.DealQualified)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != entity.DealQualified || got.Revision != 2 {
		t.Fatalf("unexpected deal: %+v", got)
	}
	if current, _ := store.Get(deal.ID); current.Status != entity.DealQualified {
		t.Fatalf("expected observable Qualified, got %s", current.Status)
	}
	if store.Pending(deal.ID) != 0 {
		t.Fatalf("expected no pending transitions")
	}
	if levels := notifier.levels(); len(levels) != 1 || levels[0] != LevelSuccess {
		t.Fatalf("expected one success notification, got %v", levels)
	}
}

func TestStore_RollbackRestoresPreviousStatus(t *testing.T) {
	for _, start := range []entity.DealStatus{entity.DealLead, entity.DealProposal, entity.DealNegotiating} {
		t.Run(string(start), func(t *testing.T) {
			deal := newDeal(start, 4)
			remoteErr := errors.New("connection reset")
			gateway := &stubGateway{rows: []entity.Deal{deal}}
			gateway.updateFunc = func(ctx context.Context, id uuid.UUID, status entity.DealStatus) (*entity.Deal, error) {
				return nil, remoteErr
			}
			notifier := &recordingNotifier{}
			store := loadedStore(t, gateway, Options{Notifier: notifier})

			_, err := store.UpdateStatus(context.Background(), deal.ID, entity.DealSigned)
			if !errors.Is(err, remoteErr) {
				t.Fatalf("expected remote error, got %v", err)
			}
			current, _ := store.Get(deal.ID)
			if current.Status != start || current.Revision != 4 {
				t.Fatalf("expected rollback to %s rev 4, got %s rev %d", start, current.Status, current.Revision)
			}
			if levels := notifier.levels(); len(levels) != 1 || levels[0] != LevelError {
				t.Fatalf("expected one error notification, got %v", levels)
			}
		})
	}
}

func TestStore_SameStatusIsNoop(t *testing.T) {
	deal := newDeal(entity.DealSigned, 1)
	gateway := &stubGateway{rows: []entity.Deal{deal}}
	enqueuer := &recordingEnqueuer{}
	store := loadedStore(t, gateway, Options{Provisioner: enqueuer})

	got, err := store.UpdateStatus(context.Background(), deal.ID, entity.DealSigned)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != entity.DealSigned {
		t.Fatalf("unexpected deal: %+v", got)
	}
	if gateway.updateCount() != 0 || enqueuer.count() != 0 {
		t.Fatalf("expected no gateway call and no provisioning")
	}
}

func TestStore_GuardRejections(t *testing.T) {
	lead := newDeal(entity.DealLead, 1)
	signed := newDeal(entity.DealSigned, 1)
	gateway := &stubGateway{rows: []entity.Deal{lead, signed}}
	store := loadedStore(t, gateway, Options{})

	tests := map[string]struct {
		id      uuid.UUID
		status  entity.DealStatus
		wantErr error
	}{
		"lead to paid":               {id: lead.ID, status: entity.DealPaid, wantErr: ErrTransitionNotAllowed},
		"manual activation ready":    {id: signed.ID, status: entity.DealActivationReady, wantErr: ErrTransitionNotAllowed},
		"signed back to negotiating": {id: signed.ID, status: entity.DealNegotiating, wantErr: ErrTransitionNotAllowed},
		"unknown status":             {id: lead.ID, status: entity.DealStatus("Won"), wantErr: ErrInvalidStatus},
		"unknown deal":               {id: uuid.New(), status: entity.DealQualified, wantErr: ErrDealNotLoaded},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := store.UpdateStatus(context.Background(), tt.id, tt.status); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
	if gateway.updateCount() != 0 {
		t.Fatalf("rejected transitions must not reach the gateway")
	}
}

func TestStore_SystemTransitionToActivationReady(t *testing.T) {
	deal := newDeal(entity.DealSigned, 1)
	gateway := &stubGateway{rows: []entity.Deal{deal}}
	store := loadedStore(t, gateway, Options{})

	got, err := store.Transition(context.Background(), deal.ID, entity.DealActivationReady, entity.OriginSystem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != entity.DealActivationReady || got.Revision != 2 {
		t.Fatalf("unexpected deal: %+v", got)
	}
}

func TestStore_SignedEnqueuesProvisioningAfterConfirm(t *testing.T) {
	deal := newDeal(entity.DealNegotiating, 1)
	gateway := &stubGateway{rows: []entity.Deal{deal}}
	enqueuer := &recordingEnqueuer{}
	store := loadedStore(t, gateway, Options{Provisioner: enqueuer})

	if _, err := store.UpdateStatus(context.Background(), deal.ID, entity.DealSigned); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enqueuer.count() != 1 || enqueuer.ids[0] != deal.ID {
		t.Fatalf("expected deal to be enqueued once, got %v", enqueuer.ids)
	}

	failing := newDeal(entity.DealNegotiating, 1)
	gateway.setRows(deal, failing)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	gateway.updateFunc = func(ctx context.Context, id uuid.UUID, status entity.DealStatus) (*entity.Deal, error) {
		return nil, errors.New("timeout")
	}
	if _, err := store.UpdateStatus(context.Background(), failing.ID, entity.DealSigned); err == nil {
		t.Fatalf("expected failure")
	}
	if enqueuer.count() != 1 {
		t.Fatalf("failed transitions must not enqueue provisioning")
	}
}

func TestStore_FailedTransitionAbortsLaterOnes(t *testing.T) {
	deal := newDeal(entity.DealLead, 1)
	started := make(chan struct{})
	release := make(chan struct{})
	remoteErr := errors.New("write rejected")

	gateway := &stubGateway{rows: []entity.Deal{deal}}
	gateway.updateFunc = func(ctx context.Context, id uuid.UUID, status entity.DealStatus) (*entity.Deal, error) {
		close(started)
		<-release
		return nil, remoteErr
	}
	store := loadedStore(t, gateway, Options{})

	first := make(chan error, 1)
	go func() {
		_, err := store.UpdateStatus(context.Background(), deal.ID, entity.DealQualified)
		first <- err
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		_, err := store.UpdateStatus(context.Background(), deal.ID, entity.DealProposal)
		second <- err
	}()
	waitFor(t, "second transition to queue", func() bool { return store.Pending(deal.ID) == 2 })

	if current, _ := store.Get(deal.ID); current.Status != entity.DealProposal {
		t.Fatalf("expected optimistic Proposal, got %s", current.Status)
	}

	close(release)
	if err := <-first; !errors.Is(err, remoteErr) {
		t.Fatalf("expected first transition to fail with remote error, got %v", err)
	}
	if err := <-second; !errors.Is(err, ErrTransitionAborted) {
		t.Fatalf("expected second transition to be aborted, got %v", err)
	}

	current, _ := store.Get(deal.ID)
	if current.Status != entity.DealLead {
		t.Fatalf("expected final status Lead, got %s", current.Status)
	}
	if gateway.updateCount() != 1 {
		t.Fatalf("aborted transition must not reach the gateway, got %d calls", gateway.updateCount())
	}
}

func TestStore_TransitionsForOneDealRunInOrder(t *testing.T) {
	deal := newDeal(entity.DealLead, 1)
	gateway := &stubGateway{rows: []entity.Deal{deal}}
	release := make(chan struct{})
	gateway.updateFunc = func(ctx context.Context, id uuid.UUID, status entity.DealStatus) (*entity.Deal, error) {
		if status == entity.DealQualified {
			<-release
		}
		return nil, nil
	}
	store := loadedStore(t, gateway, Options{})

	done := make(chan struct{}, 2)
	go func() {
		store.UpdateStatus(context.Background(), deal.ID, entity.DealQualified)
		done <- struct{}{}
	}()
	waitFor(t, "first transition", func() bool { return store.Pending(deal.ID) == 1 })
	go func() {
		store.UpdateStatus(context.Background(), deal.ID, entity.DealProposal)
		done <- struct{}{}
	}()
	waitFor(t, "second transition", func() bool { return store.Pending(deal.ID) == 2 })

	if gateway.updateCount() != 1 {
		t.Fatalf("second write must wait for the first")
	}
	close(release)
	<-done
	<-done

	if gateway.updates[0] != entity.DealQualified || gateway.updates[1] != entity.DealProposal {
		t.Fatalf("unexpected write order: %v", gateway.updates)
	}
	if current, _ := store.Get(deal.ID); current.Status != entity.DealProposal || current.Revision != 3 {
		t.Fatalf("unexpected final deal: %+v", current)
	}
}

func TestStore_RefreshKeepsPendingAndNewerRevisions(t *testing.T) {
	deal := newDeal(entity.DealLead, 1)
	gateway := &stubGateway{rows: []entity.Deal{deal}}
	release := make(chan struct{})
	gateway.updateFunc = func(ctx context.Context, id uuid.UUID, status entity.DealStatus) (*entity.Deal, error) {
		<-release
		updated := deal
		updated.Status = status
		updated.Revision = 2
		return &updated, nil
	}
	store := loadedStore(t, gateway, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := store.UpdateStatus(context.Background(), deal.ID, entity.DealQualified)
		done <- err
	}()
	waitFor(t, "pending transition", func() bool { return store.Pending(deal.ID) == 1 })

	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if current, _ := store.Get(deal.ID); current.Status != entity.DealQualified {
		t.Fatalf("refresh clobbered pending transition: %s", current.Status)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if current, _ := store.Get(deal.ID); current.Status != entity.DealQualified || current.Revision != 2 {
		t.Fatalf("stale row replaced newer confirmed state: %+v", current)
	}

	newer := deal
	newer.Status = entity.DealProposal
	newer.Revision = 3
	gateway.setRows(newer)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if current, _ := store.Get(deal.ID); current.Status != entity.DealProposal {
		t.Fatalf("expected newer remote row to win, got %+v", current)
	}
}

func TestStore_RefreshDropsDeletedDeals(t *testing.T) {
	keep := newDeal(entity.DealLead, 1)
	gone := newDeal(entity.DealLead, 1)
	gateway := &stubGateway{rows: []entity.Deal{keep, gone}}
	store := loadedStore(t, gateway, Options{})

	gateway.setRows(keep)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, ok := store.Get(gone.ID); ok {
		t.Fatalf("expected deleted deal to be dropped")
	}
	if len(store.Snapshot()) != 1 {
		t.Fatalf("unexpected snapshot: %+v", store.Snapshot())
	}
}

func TestStore_CallerCancelDoesNotStrandPendingWrite(t *testing.T) {
	deal := newDeal(entity.DealLead, 1)
	gateway := &stubGateway{rows: []entity.Deal{deal}}
	release := make(chan struct{})
	var writeCtxErr error
	gateway.updateFunc = func(ctx context.Context, id uuid.UUID, status entity.DealStatus) (*entity.Deal, error) {
		<-release
		writeCtxErr = ctx.Err()
		return nil, nil
	}
	store := loadedStore(t, gateway, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := store.UpdateStatus(ctx, deal.ID, entity.DealQualified)
		result <- err
	}()
	waitFor(t, "pending transition", func() bool { return store.Pending(deal.ID) == 1 })

	cancel()
	if err := <-result; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected caller to observe cancellation, got %v", err)
	}
	close(release)
	waitFor(t, "write to settle", func() bool { return store.Pending(deal.ID) == 0 })

	if writeCtxErr != nil {
		t.Fatalf("remote write must run on a detached context, got %v", writeCtxErr)
	}
	if current, _ := store.Get(deal.ID); current.Status != entity.DealQualified {
		t.Fatalf("expected confirmed Qualified, got %s", current.Status)
	}
}

func TestStore_ScheduleRefreshDebounces(t *testing.T) {
	gateway := &stubGateway{rows: []entity.Deal{newDeal(entity.DealLead, 1)}}
	store := loadedStore(t, gateway, Options{Debounce: 20 * time.Millisecond})

	for i := 0; i < 5; i++ {
		store.HandleChange(realtime.Change{Table: DealsTable, Type: realtime.EventUpdate})
	}
	waitFor(t, "debounced refresh", func() bool { return gateway.listCount() == 2 })
	time.Sleep(60 * time.Millisecond)
	if gateway.listCount() != 2 {
		t.Fatalf("expected a single debounced refresh, got %d list calls", gateway.listCount()-1)
	}
}

func TestStore_WatchSubscribesToDeals(t *testing.T) {
	gateway := &stubGateway{}
	store := loadedStore(t, gateway, Options{Debounce: time.Millisecond})
	broker := realtime.NewBroker()

	handle, err := store.Watch(context.Background(), broker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer handle.Close()

	if delivered := broker.Dispatch(realtime.Change{Table: "sponsor_deliverables", Type: realtime.EventInsert}); delivered != 0 {
		t.Fatalf("expected deliverable changes to be ignored")
	}
	if delivered := broker.Dispatch(realtime.Change{Table: DealsTable, Type: realtime.EventUpdate}); delivered != 1 {
		t.Fatalf("expected deal change to be delivered")
	}
	waitFor(t, "refresh after change", func() bool { return gateway.listCount() == 2 })
}

func TestStore_WriteChecksStatusTheTransitionStartedFrom(t *testing.T) {
	deal := newDeal(entity.DealLead, 1)
	gateway := &stubGateway{rows: []entity.Deal{deal}, db: map[uuid.UUID]entity.DealStatus{deal.ID: entity.DealLead}}
	store := loadedStore(t, gateway, Options{})

	for _, status := range []entity.DealStatus{entity.DealQualified, entity.DealProposal} {
		if _, err := store.UpdateStatus(context.Background(), deal.ID, status); err != nil {
			t.Fatalf("move to %s: %v", status, err)
		}
	}

	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	if len(gateway.froms) != 2 || gateway.froms[0] != entity.DealLead || gateway.froms[1] != entity.DealQualified {
		t.Fatalf("unexpected expected-from statuses: %v", gateway.froms)
	}
	if gateway.db[deal.ID] != entity.DealProposal {
		t.Fatalf("expected stored Proposal, got %s", gateway.db[deal.ID])
	}
}

func TestStore_StaleViewCannotWriteForbiddenTransition(t *testing.T) {
	deal := newDeal(entity.DealNegotiating, 1)
	gateway := &stubGateway{rows: []entity.Deal{deal}}
	notifier := &recordingNotifier{}
	store := loadedStore(t, gateway, Options{Notifier: notifier, Debounce: time.Millisecond})

	// Another instance signs the deal; no change notification reaches this store.
	signed := deal
	signed.Status = entity.DealSigned
	signed.Revision = 2
	gateway.setRows(signed)
	gateway.mu.Lock()
	gateway.db = map[uuid.UUID]entity.DealStatus{deal.ID: entity.DealSigned}
	gateway.mu.Unlock()

	got, err := store.UpdateStatus(context.Background(), deal.ID, entity.DealLead)
	if !errors.Is(err, repository.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
	if got.Status != entity.DealNegotiating {
		t.Fatalf("expected rollback to Negotiating, got %s", got.Status)
	}
	if stored := gateway.dbStatus(deal.ID); stored != entity.DealSigned {
		t.Fatalf("stored status must stay Signed, got %s", stored)
	}
	if levels := notifier.levels(); len(levels) != 1 || levels[0] != LevelError {
		t.Fatalf("expected one error notification, got %v", levels)
	}

	waitFor(t, "refresh after conflict", func() bool {
		current, _ := store.Get(deal.ID)
		return current.Status == entity.DealSigned
	})
	if _, err := store.UpdateStatus(context.Background(), deal.ID, entity.DealLead); !errors.Is(err, ErrTransitionNotAllowed) {
		t.Fatalf("expected the refreshed view to reject Signed -> Lead, got %v", err)
	}
	if gateway.updateCount() != 1 {
		t.Fatalf("expected no further writes, got %d", gateway.updateCount())
	}
}

func TestStore_WatchRefreshesOnReconnect(t *testing.T) {
	gateway := &stubGateway{}
	store := loadedStore(t, gateway, Options{Debounce: time.Millisecond})
	broker := realtime.NewBroker()

	handle, err := store.Watch(context.Background(), broker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	broker.Connected()
	waitFor(t, "refresh after reconnect", func() bool { return gateway.listCount() == 2 })

	handle.Close()
	broker.Connected()
	time.Sleep(20 * time.Millisecond)
	if gateway.listCount() != 2 {
		t.Fatalf("expected a released watch to stop refreshing, got %d list calls", gateway.listCount())
	}
}

func TestStore_ResyncRefreshesPeriodically(t *testing.T) {
	gateway := &stubGateway{}
	store := loadedStore(t, gateway, Options{Debounce: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Resync(ctx, 5*time.Millisecond)
		close(done)
	}()

	waitFor(t, "periodic refreshes", func() bool { return gateway.listCount() >= 3 })
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("resync did not stop")
	}
}

func TestStore_ObserversSeeOptimisticThenConfirmed(t *testing.T) {
	deal := newDeal(entity.DealLead, 1)
	gateway := &stubGateway{rows: []entity.Deal{deal}}
	store := loadedStore(t, gateway, Options{})

	var mu sync.Mutex
	var events []EventType
	cancel := store.Subscribe(func(event Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event.Type)
	})
	defer cancel()

	if _, err := store.UpdateStatus(context.Background(), deal.ID, entity.DealQualified); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[0] != EventOptimistic || events[1] != EventConfirmed {
		t.Fatalf("unexpected events: %v", events)
	}
}

func TestStore_UpsertAndRemove(t *testing.T) {
	gateway := &stubGateway{}
	store := loadedStore(t, gateway, Options{})

	deal := newDeal(entity.DealLead, 2)
	store.Upsert(deal)
	stale := deal
	stale.Level = "Silver"
	stale.Revision = 1
	store.Upsert(stale)

	if current, ok := store.Get(deal.ID); !ok || current.Level != "Gold" {
		t.Fatalf("expected stale upsert to be ignored, got %+v", current)
	}
	store.Remove(deal.ID)
	if _, ok := store.Get(deal.ID); ok {
		t.Fatalf("expected deal to be removed")
	}
}
