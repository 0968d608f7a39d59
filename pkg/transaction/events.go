package transaction

import (
	"context"
	"strings"
	"sync"
	"time"

	"wallet-swap/pkg/types"
)

const defaultRecentLimit = 1024

// FinalizedEvent reports that a transaction or order reached a final status
type FinalizedEvent struct {
	ID      string
	ChainID types.ChainID
	Hash    string
	Status  Status
	Time    time.Time
}

// Events is the confirmation event source. Waiters register one-shot
// listeners by hash; recently finalized hashes are remembered so a waiter
// registering after the event still resolves.
type Events struct {
	mu      sync.Mutex
	waiters map[string][]chan FinalizedEvent
	recent  map[string]FinalizedEvent
	order   []string
	limit   int
	subs    map[int]func(FinalizedEvent)
	nextSub int
}

// NewEvents creates an event source
func NewEvents() *Events {
	return &Events{
		waiters: make(map[string][]chan FinalizedEvent),
		recent:  make(map[string]FinalizedEvent),
		limit:   defaultRecentLimit,
		subs:    make(map[int]func(FinalizedEvent)),
	}
}

func hashKey(hash string) string {
	return strings.ToLower(hash)
}

// Publish delivers ev to waiters on its hash and to all subscribers
func (e *Events) Publish(ev FinalizedEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	key := hashKey(ev.Hash)

	e.mu.Lock()
	if _, seen := e.recent[key]; !seen {
		e.order = append(e.order, key)
		if len(e.order) > e.limit {
			delete(e.recent, e.order[0])
			e.order = e.order[1:]
		}
	}
	e.recent[key] = ev
	waiters := e.waiters[key]
	delete(e.waiters, key)
	subs := make([]func(FinalizedEvent), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	for _, ch := range waiters {
		ch <- ev
	}
	for _, fn := range subs {
		fn(ev)
	}
}

// Await blocks until a finalize event for hash is observed or ctx is done
func (e *Events) Await(ctx context.Context, hash string) (FinalizedEvent, error) {
	key := hashKey(hash)

	e.mu.Lock()
	if ev, ok := e.recent[key]; ok {
		e.mu.Unlock()
		return ev, nil
	}
	ch := make(chan FinalizedEvent, 1)
	e.waiters[key] = append(e.waiters[key], ch)
	e.mu.Unlock()

	select {
	case ev := <-ch:
		return ev, nil
	case <-ctx.Done():
		e.removeWaiter(key, ch)
		return FinalizedEvent{}, ctx.Err()
	}
}

func (e *Events) removeWaiter(key string, ch chan FinalizedEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := e.waiters[key]
	for i, c := range list {
		if c == ch {
			e.waiters[key] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(e.waiters[key]) == 0 {
		delete(e.waiters, key)
	}
}

// Subscribe registers fn for every published event
func (e *Events) Subscribe(fn func(FinalizedEvent)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// Attach publishes an event whenever a record in store leaves the pending status
func (e *Events) Attach(store Store) func() {
	return store.Subscribe(func(c Change) {
		if c.Previous == nil || c.Previous.Status != StatusPending || !c.Current.Status.IsFinal() {
			return
		}
		hash := c.Current.EventHash()
		if hash == "" {
			return
		}
		e.Publish(FinalizedEvent{
			ID:      c.Current.ID,
			ChainID: c.Current.ChainID,
			Hash:    hash,
			Status:  c.Current.Status,
		})
	})
}
