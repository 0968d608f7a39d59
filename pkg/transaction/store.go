package transaction

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

var (
	ErrNotFound            = errors.New("transaction not found")
	ErrDuplicateID         = errors.New("transaction id already exists")
	ErrInvalidRecord       = errors.New("invalid transaction record")
	ErrNotOrder            = errors.New("transaction is not an order")
	ErrTerminalQueueStatus = errors.New("order queue status is terminal")
)

// Store is the source of truth for transaction and order records
type Store interface {
	Get(id string) (*Record, error)
	Add(rec *Record) error
	Update(id string, u Update) (*Record, error)
	List() []*Record
	Subscribe(fn func(Change)) (cancel func())
}

// Persister mirrors store writes to durable storage
type Persister interface {
	Load() ([]*Record, error)
	Save(rec *Record) error
	Close() error
}

// MemoryStore is a mutex-guarded Store with optional write-through persistence.
// Subscribers are called synchronously after the write lock is released.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]*Record
	seq       uint64
	persister Persister

	subMu   sync.RWMutex
	subs    map[int]func(Change)
	nextSub int

	logger *log.Entry
}

// NewStore creates a store, loading any records the persister already holds.
// A nil persister keeps records in memory only.
func NewStore(p Persister) (*MemoryStore, error) {
	s := &MemoryStore{
		records:   make(map[string]*Record),
		persister: p,
		subs:      make(map[int]func(Change)),
		logger:    log.WithField("component", "store"),
	}
	if p == nil {
		return s, nil
	}

	recs, err := p.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	for _, rec := range recs {
		s.records[rec.ID] = rec
	}
	return s, nil
}

// Get returns a copy of the record with the given id
func (s *MemoryStore) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.Clone(), nil
}

// Add inserts a new record. An existing id is never overwritten; ErrDuplicateID is returned instead.
func (s *MemoryStore) Add(rec *Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}
	if rec.Status == "" {
		return fmt.Errorf("%w: missing status", ErrInvalidRecord)
	}

	s.mu.Lock()
	if _, exists := s.records[rec.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
	}
	stored := rec.Clone()
	s.records[rec.ID] = stored
	s.seq++
	change := Change{Seq: s.seq, Current: stored.Clone()}
	s.persist(stored)
	s.mu.Unlock()

	s.notify(change)
	return nil
}

// Update merges u into the record. Status and QueueStatus are replaced wholesale;
// a terminal queue status can only move from submitted to submission_failed.
func (s *MemoryStore) Update(id string, u Update) (*Record, error) {
	s.mu.Lock()
	current, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := current.Clone()
	if u.QueueStatus != nil {
		if next.Order == nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrNotOrder, id)
		}
		if !canTransition(next.Order.QueueStatus, *u.QueueStatus) {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s is %s, cannot become %s",
				ErrTerminalQueueStatus, id, next.Order.QueueStatus, *u.QueueStatus)
		}
		next.Order.QueueStatus = *u.QueueStatus
	}
	if u.Status != nil {
		next.Status = *u.Status
	}
	if u.Hash != nil {
		next.Hash = *u.Hash
	}
	if u.Nonce != nil {
		n := *u.Nonce
		next.Nonce = &n
	}
	if u.TypeInfo != nil {
		next.TypeInfo = u.TypeInfo
	}
	if u.Receipt != nil {
		rc := *u.Receipt
		next.Receipt = &rc
	}

	s.records[id] = next
	s.seq++
	change := Change{Seq: s.seq, Previous: current, Current: next.Clone()}
	s.persist(next)
	s.mu.Unlock()

	s.notify(change)
	return next.Clone(), nil
}

// List returns copies of all records, oldest first
func (s *MemoryStore) List() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec.Clone())
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].AddedTime == recs[j].AddedTime {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].AddedTime < recs[j].AddedTime
	})
	return recs
}

// Subscribe registers fn for every subsequent change
func (s *MemoryStore) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Close releases the persister
func (s *MemoryStore) Close() error {
	if s.persister == nil {
		return nil
	}
	return s.persister.Close()
}

// persist must be called with mu held
func (s *MemoryStore) persist(rec *Record) {
	if s.persister == nil {
		return
	}
	if err := s.persister.Save(rec); err != nil {
		s.logger.WithError(err).WithField("id", rec.ID).Warn("failed to persist transaction")
	}
}

func (s *MemoryStore) notify(c Change) {
	s.subMu.RLock()
	subs := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range subs {
		fn(c)
	}
}
