package realtime

import (
	"context"
	"fmt"
	"log"
	"sync"
)

type subscriber struct {
	sub     Subscription
	filter  Filter
	handler Handler
}

func (s subscriber) matches(change Change) bool {
	if s.sub.Table != AnyTable && s.sub.Table != change.Table {
		return false
	}
	if s.sub.Event != "" && s.sub.Event != EventAll && s.sub.Event != change.Type {
		return false
	}
	return s.filter.Match(change.Row())
}

// Broker fans changes out to in-process subscribers.
type Broker struct {
	mu   sync.RWMutex
	next int
	subs map[int]subscriber
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]subscriber)}
}

// Subscribe registers a handler. The subscription is released when the
// returned handle is closed or ctx is cancelled, whichever happens first.
func (b *Broker) Subscribe(ctx context.Context, sub Subscription, handler Handler) (*Handle, error) {
	if handler == nil {
		return nil, fmt.Errorf("subscription handler is required")
	}
	if err := sub.validate(); err != nil {
		return nil, err
	}
	filter, err := ParseFilter(sub.Filter)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[id] = subscriber{sub: sub, filter: filter, handler: handler}
	b.mu.Unlock()

	handle := newHandle(func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	})

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				handle.Close()
			case <-handle.done:
			}
		}()
	}
	return handle, nil
}

// Dispatch delivers a change to every matching subscriber and returns how many received it.
func (b *Broker) Dispatch(change Change) int {
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.matches(change) {
			targets = append(targets, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, handler := range targets {
		b.safeCall(handler, change)
	}
	return len(targets)
}

// Connected runs the OnConnect hook of every subscription. Backends call it each
// time a connection is (re)established, since changes committed while it was
// down were never delivered.
func (b *Broker) Connected() {
	b.mu.RLock()
	hooks := make([]func(), 0, len(b.subs))
	for _, s := range b.subs {
		if s.sub.OnConnect != nil {
			hooks = append(hooks, s.sub.OnConnect)
		}
	}
	b.mu.RUnlock()

	for _, hook := range hooks {
		b.safeHook(hook)
	}
}

// Subscribers reports the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broker) safeCall(handler Handler, change Change) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("realtime: handler panic table=%s type=%s err=%v", change.Table, change.Type, rec)
		}
	}()
	handler(change)
}

func (b *Broker) safeHook(hook func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("realtime: connect hook panic err=%v", rec)
		}
	}()
	hook()
}
