package pipeline

import (
	"log"

	"github.com/google/uuid"

	"github.com/fashionos/sponsor-crm/internal/entity"
)

// Level grades a user-facing notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is the user-facing outcome of a transition.
type Notification struct {
	Level   Level
	DealID  uuid.UUID
	Message string
	Err     error
}

// Notifier surfaces transition outcomes.
type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to the standard logger.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(n Notification) {
	if n.Err != nil {
		log.Printf("pipeline: notify level=%s deal=%s message=%q err=%v", n.Level, n.DealID, n.Message, n.Err)
		return
	}
	log.Printf("pipeline: notify level=%s deal=%s message=%q", n.Level, n.DealID, n.Message)
}

// EventType classifies store events delivered to observers.
type EventType string

const (
	EventOptimistic EventType = "optimistic"
	EventConfirmed  EventType = "confirmed"
	EventRolledBack EventType = "rolled_back"
	EventAborted    EventType = "aborted"
	EventRefreshed  EventType = "refreshed"
	EventRemoved    EventType = "removed"
)

// Event describes a change of the observable pipeline.
type Event struct {
	Type   EventType         `json:"type"`
	DealID uuid.UUID         `json:"deal_id,omitempty"`
	Deal   *entity.Deal      `json:"deal,omitempty"`
	From   entity.DealStatus `json:"from,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Observer receives store events. It must not block.
type Observer func(Event)

// Subscribe registers an observer and returns its cancel function.
func (s *Store) Subscribe(observer Observer) func() {
	s.obsMu.Lock()
	s.nextObs++
	id := s.nextObs
	s.observers[id] = observer
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Store) publish(event Event) {
	if event.Deal != nil && event.DealID == uuid.Nil {
		event.DealID = event.Deal.ID
	}
	s.obsMu.RLock()
	observers := make([]Observer, 0, len(s.observers))
	for _, observer := range s.observers {
		observers = append(observers, observer)
	}
	s.obsMu.RUnlock()

	for _, observer := range observers {
		observer(event)
	}
}
