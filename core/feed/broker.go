// Package feed is an in-process publish/subscribe channel per collection.
// Subscribers always receive the full current content of a collection, never a diff.
package feed

import (
	"sync"
	"time"
)

// Snapshot is the content of a collection after a committed change.
type Snapshot struct {
	Collection string      `json:"collection"`
	Version    uint64      `json:"version"`
	Items      interface{} `json:"items"`
	Time       time.Time   `json:"time"`
}

// Handler receives snapshots. It is called from the publisher's goroutine and must not block.
type Handler func(Snapshot)

// CancelFunc removes a subscription. It is safe to call more than once.
type CancelFunc func()

type subscription struct {
	id      uint64
	handler Handler
	// serializes deliveries to this subscriber and drops those after cancellation
	mu        sync.Mutex
	cancelled bool
	delivered uint64 // version of the last delivered snapshot
}

func (s *subscription) deliver(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || snap.Version <= s.delivered {
		return
	}
	s.delivered = snap.Version
	s.handler(snap)
}

type Broker struct {
	mu      sync.RWMutex
	nextID  uint64
	version uint64
	subs    map[string]map[uint64]*subscription
	last    map[string]Snapshot
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[uint64]*subscription),
		last: make(map[string]Snapshot),
	}
}

// Publish records items as the current content of the collection and delivers it to every subscriber.
func (b *Broker) Publish(collection string, items interface{}) {
	b.mu.Lock()
	b.version++
	snap := Snapshot{Collection: collection, Version: b.version, Items: items, Time: time.Now().UTC()}
	b.last[collection] = snap
	subs := make([]*subscription, 0, len(b.subs[collection]))
	for _, s := range b.subs[collection] {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.deliver(snap)
	}
}

// Subscribe registers fn for the collection. fn immediately receives the last published snapshot, if any.
func (b *Broker) Subscribe(collection string, fn Handler) CancelFunc {
	b.mu.Lock()
	b.nextID++
	s := &subscription{id: b.nextID, handler: fn}
	if b.subs[collection] == nil {
		b.subs[collection] = make(map[uint64]*subscription)
	}
	b.subs[collection][s.id] = s
	last, ok := b.last[collection]
	b.mu.Unlock()

	if ok {
		s.deliver(last)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[collection], s.id)
			b.mu.Unlock()

			s.mu.Lock()
			s.cancelled = true
			s.mu.Unlock()
		})
	}
}

// Last returns the last published snapshot of the collection.
func (b *Broker) Last(collection string) (Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap, ok := b.last[collection]
	return snap, ok
}

// Subscribers returns the number of live subscriptions on the collection.
func (b *Broker) Subscribers(collection string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[collection])
}
