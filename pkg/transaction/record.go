package transaction

import (
	"encoding/json"
	"time"

	"wallet-swap/pkg/types"
)

// Record is a transaction or order tracked by the store
type Record struct {
	ID         string        `json:"id"`
	ChainID    types.ChainID `json:"chainId"`
	Status     Status        `json:"status"`
	TypeInfo   TypeInfo      `json:"-"`
	AddedTime  int64         `json:"addedTime"`
	From       string        `json:"from"`
	Hash       string        `json:"hash,omitempty"`
	Nonce      *uint64       `json:"nonce,omitempty"`
	PrivateRPC bool          `json:"privateRpc,omitempty"`
	Receipt    *Receipt      `json:"receipt,omitempty"`
	Order      *Order        `json:"order,omitempty"`
}

// Receipt holds the inclusion details of a finalized transaction
type Receipt struct {
	BlockNumber   uint64 `json:"blockNumber"`
	GasUsed       uint64 `json:"gasUsed"`
	ConfirmedTime int64  `json:"confirmedTime"`
}

// Order carries the fields specific to UniswapX order records
type Order struct {
	OrderHash     string              `json:"orderHash"`
	Routing       types.Routing       `json:"routing"`
	QueueStatus   QueueStatus         `json:"queueStatus"`
	ApproveTxHash string              `json:"approveTxHash,omitempty"`
	WrapTxHash    string              `json:"wrapTxHash,omitempty"`
	Request       *types.OrderRequest `json:"request,omitempty"`
}

// IsOrder reports whether the record is an off-chain order
func (r *Record) IsOrder() bool {
	return r.Order != nil
}

// EventHash is the hash finalize events are keyed by
func (r *Record) EventHash() string {
	if r.Hash != "" {
		return r.Hash
	}
	if r.Order != nil {
		return r.Order.OrderHash
	}
	return ""
}

// Added returns AddedTime as a time.Time
func (r *Record) Added() time.Time {
	return time.UnixMilli(r.AddedTime)
}

// IsStale reports whether more than threshold has elapsed since the record was added
func (r *Record) IsStale(now time.Time, threshold time.Duration) bool {
	return now.Sub(r.Added()) > threshold
}

// Clone returns a copy that shares no mutable state with r
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Nonce != nil {
		n := *r.Nonce
		cp.Nonce = &n
	}
	if r.Receipt != nil {
		rc := *r.Receipt
		cp.Receipt = &rc
	}
	if r.Order != nil {
		o := *r.Order
		if r.Order.Request != nil {
			req := *r.Order.Request
			req.Quote = append(json.RawMessage(nil), r.Order.Request.Quote...)
			o.Request = &req
		}
		cp.Order = &o
	}
	return &cp
}

// Update is a partial record change. Nil fields leave the stored value untouched.
type Update struct {
	Status      *Status
	QueueStatus *QueueStatus
	Hash        *string
	Nonce       *uint64
	TypeInfo    TypeInfo
	Receipt     *Receipt
}

// WithStatus is shorthand for an Update that only sets the status
func WithStatus(s Status) Update {
	return Update{Status: &s}
}

// WithQueueStatus is shorthand for an Update that only sets the queue status
func WithQueueStatus(q QueueStatus) Update {
	return Update{QueueStatus: &q}
}

// Change is delivered to subscribers after every add or update
type Change struct {
	Seq      uint64
	Previous *Record
	Current  *Record
}
