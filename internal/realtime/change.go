// Package realtime delivers row change notifications for the sponsor tables.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// EventType is the kind of row change.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	EventAll    EventType = "*"
)

// AnyTable subscribes to every table.
const AnyTable = "*"

// Change is one row change as emitted by the notify_table_change trigger.
type Change struct {
	Table           string         `json:"table"`
	Type            EventType      `json:"type"`
	CommitTimestamp time.Time      `json:"commit_timestamp"`
	Record          map[string]any `json:"record,omitempty"`
	OldRecord       map[string]any `json:"old_record,omitempty"`
}

// Row returns the new row image, or the old one for deletes.
func (c Change) Row() map[string]any {
	if c.Record != nil {
		return c.Record
	}
	return c.OldRecord
}

// DecodeChange parses a notification payload.
func DecodeChange(payload []byte) (Change, error) {
	var change Change
	if err := json.Unmarshal(payload, &change); err != nil {
		return Change{}, fmt.Errorf("decode change payload: %w", err)
	}
	if change.Table == "" {
		return Change{}, fmt.Errorf("decode change payload: missing table")
	}
	change.Type = EventType(strings.ToUpper(string(change.Type)))
	return change, nil
}

// Subscription selects the changes a handler receives.
type Subscription struct {
	Table  string
	Event  EventType
	Filter string
	// OnConnect, when set, runs after every (re)connect of the backend.
	OnConnect func()
}

func (s Subscription) validate() error {
	if strings.TrimSpace(s.Table) == "" {
		return fmt.Errorf("subscription table is required")
	}
	switch s.Event {
	case "", EventAll, EventInsert, EventUpdate, EventDelete:
		return nil
	}
	return fmt.Errorf("unsupported subscription event %q", s.Event)
}

// Handler receives matching changes on the listener's dispatch goroutine.
type Handler func(Change)

// Listener registers handlers for row changes.
type Listener interface {
	Subscribe(ctx context.Context, sub Subscription, handler Handler) (*Handle, error)
}

// Handle releases a subscription. Close is safe to call more than once.
type Handle struct {
	once    sync.Once
	release func()
	done    chan struct{}
}

func newHandle(release func()) *Handle {
	return &Handle{release: release, done: make(chan struct{})}
}

// Close unregisters the handler.
func (h *Handle) Close() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.release()
		close(h.done)
	})
}
