package sequencer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wallet-swap/pkg/transaction"
	"wallet-swap/pkg/types"
)

const (
	timeout = time.Second
	tick    = 5 * time.Millisecond
)

// storeSender records pending transactions like transaction.Sender without a signer
type storeSender struct {
	store transaction.Store

	mu  sync.Mutex
	ids map[transaction.Type]string
}

func (s *storeSender) Send(ctx context.Context, p transaction.SendParams) (*transaction.Record, error) {
	rec := &transaction.Record{
		ID:        p.TxID,
		ChainID:   p.ChainID,
		Status:    transaction.StatusPending,
		TypeInfo:  p.TypeInfo,
		AddedTime: time.Now().UnixMilli(),
		From:      p.Account,
		Hash:      fmt.Sprintf("0x%s", p.TxID),
		Nonce:     p.Request.Nonce,
	}
	if err := s.store.Add(rec); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.ids == nil {
		s.ids = make(map[transaction.Type]string)
	}
	s.ids[p.TypeInfo.Type()] = p.TxID
	s.mu.Unlock()
	return rec, nil
}

func (s *storeSender) idFor(t transaction.Type) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids[t]
}

type countingIntake struct {
	mu    sync.Mutex
	calls int
}

func (c *countingIntake) Submit(ctx context.Context, req types.OrderRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

func (c *countingIntake) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
