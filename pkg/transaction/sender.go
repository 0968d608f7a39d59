package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"wallet-swap/pkg/types"
)

// SubmitOptions controls how a signed transaction is broadcast
type SubmitOptions struct {
	PrivateRPC bool
}

// Signer signs and broadcasts a transaction request, returning its hash
type Signer interface {
	Submit(ctx context.Context, chainID types.ChainID, account string, req types.TxRequest, opts SubmitOptions) (string, error)
}

// SendParams describes one on-chain submission
type SendParams struct {
	TxID       string
	ChainID    types.ChainID
	Account    string
	Request    types.TxRequest
	TypeInfo   TypeInfo
	PrivateRPC bool
}

// Sender submits through a Signer and records the pending transaction
type Sender struct {
	signer Signer
	store  Store
	now    func() time.Time
	logger *log.Entry
}

// NewSender creates a sender
func NewSender(signer Signer, store Store) *Sender {
	return &Sender{
		signer: signer,
		store:  store,
		now:    time.Now,
		logger: log.WithField("component", "sender"),
	}
}

// NewID generates a transaction id
func NewID() string {
	return uuid.New().String()
}

// Send broadcasts p.Request and adds a pending record for it
func (s *Sender) Send(ctx context.Context, p SendParams) (*Record, error) {
	if p.TxID == "" {
		p.TxID = NewID()
	}

	hash, err := s.signer.Submit(ctx, p.ChainID, p.Account, p.Request, SubmitOptions{PrivateRPC: p.PrivateRPC})
	if err != nil {
		return nil, fmt.Errorf("failed to submit %s transaction: %w", typeName(p.TypeInfo), err)
	}

	rec := &Record{
		ID:         p.TxID,
		ChainID:    p.ChainID,
		Status:     StatusPending,
		TypeInfo:   p.TypeInfo,
		AddedTime:  s.now().UnixMilli(),
		From:       p.Account,
		Hash:       hash,
		Nonce:      p.Request.Nonce,
		PrivateRPC: p.PrivateRPC,
	}
	if err := s.store.Add(rec); err != nil {
		// already broadcast, the submission itself succeeded
		s.logger.WithError(err).WithField("hash", hash).Error("failed to record transaction")
	}

	s.logger.WithFields(log.Fields{
		"id":    rec.ID,
		"type":  typeName(p.TypeInfo),
		"hash":  hash,
		"chain": p.ChainID,
	}).Info("transaction submitted")

	return rec.Clone(), nil
}

func typeName(info TypeInfo) Type {
	if info == nil {
		return TypeUnknown
	}
	return info.Type()
}
