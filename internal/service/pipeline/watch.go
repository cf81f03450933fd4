package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/fashionos/sponsor-crm/internal/realtime"
)

// DealsTable is the table whose changes invalidate the store.
const DealsTable = "event_sponsors"

// Watch subscribes to deal changes; each change, and each reconnect of the
// listener, schedules a debounced refresh. Callers release the subscription with
// Close on the returned handle.
func (s *Store) Watch(ctx context.Context, listener realtime.Listener) (*realtime.Handle, error) {
	sub := realtime.Subscription{Table: DealsTable, Event: realtime.EventAll, OnConnect: s.ScheduleRefresh}
	handle, err := listener.Subscribe(ctx, sub, s.HandleChange)
	if err != nil {
		return nil, fmt.Errorf("watch deals: %w", err)
	}
	return handle, nil
}

// HandleChange reacts to a realtime change of a deal row.
func (s *Store) HandleChange(change realtime.Change) {
	s.ScheduleRefresh()
}

// Resync schedules a refresh every interval until ctx is cancelled. It picks up
// writes from other instances when no listener runs or notifications were lost.
func (s *Store) Resync(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ScheduleRefresh()
		}
	}
}
