package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"wallet-swap/pkg/telemetry"
	"wallet-swap/pkg/transaction"
	"wallet-swap/pkg/types"
)

const (
	// StalenessThreshold is how long after creation an order may still be submitted
	StalenessThreshold = 30 * time.Minute
	// SubmitGrace extends a detached Submit past the staleness threshold so the
	// stale verdict or the order POST can still be recorded
	SubmitGrace = 30 * time.Second
)

var (
	ErrApprovalFailed   = errors.New("approval transaction failed")
	ErrWrapFailed       = errors.New("wrap transaction failed")
	ErrStale            = errors.New("order is stale")
	ErrSubmissionFailed = errors.New("order submission failed")
	ErrNotWaiting       = errors.New("order is not waiting")
	ErrInFlight         = errors.New("order is already being submitted")
)

// Intake accepts signed orders
type Intake interface {
	Submit(ctx context.Context, req types.OrderRequest) error
}

// EventSource resolves once a transaction with the given hash is finalized
type EventSource interface {
	Await(ctx context.Context, hash string) (transaction.FinalizedEvent, error)
}

// Params describes an order to submit once its prerequisites are final
type Params struct {
	TxID          string
	ChainID       types.ChainID
	Account       string
	TypeInfo      transaction.TypeInfo
	Order         types.OrderRequest
	ApproveTxHash string
	WrapTxHash    string
	OnSubmit      func(orderHash string)
	OnFailure     func(err error)
}

// Outcome is the terminal state of a coordinator run
type Outcome struct {
	TxID        string
	OrderHash   string
	QueueStatus transaction.QueueStatus
}

// Coordinator submits orders after their approve and wrap transactions finalize
type Coordinator struct {
	store     transaction.Store
	events    EventSource
	intake    Intake
	sink      telemetry.Sink
	now       func() time.Time
	threshold time.Duration
	logger    *log.Entry

	inflight sync.Map
}

// NewCoordinator creates a coordinator; sink may be nil
func NewCoordinator(store transaction.Store, events EventSource, intake Intake, sink telemetry.Sink) *Coordinator {
	if sink == nil {
		sink = telemetry.Nop{}
	}
	return &Coordinator{
		store:     store,
		events:    events,
		intake:    intake,
		sink:      sink,
		now:       time.Now,
		threshold: StalenessThreshold,
		logger:    log.WithField("component", "order-coordinator"),
	}
}

// Submit records the order as waiting, then blocks until it reaches a terminal
// queue status. The returned error is one of the Err* values above on failure.
//
// Cancelling ctx does not abandon the order: the wait and the POST continue
// until the order would be stale plus SubmitGrace.
func (c *Coordinator) Submit(ctx context.Context, p Params) (Outcome, error) {
	if p.TxID == "" {
		p.TxID = transaction.NewID()
	}
	release, ok := c.claim(p.TxID)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrInFlight, p.TxID)
		if p.OnFailure != nil {
			p.OnFailure(err)
		}
		return Outcome{TxID: p.TxID}, err
	}
	defer release()

	rec := c.newRecord(p)
	if err := c.store.Add(rec); err != nil {
		err = fmt.Errorf("failed to record order: %w", err)
		if p.OnFailure != nil {
			p.OnFailure(err)
		}
		return Outcome{TxID: p.TxID}, err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.threshold-c.now().Sub(rec.Added())+SubmitGrace)
	defer cancel()
	return c.run(ctx, rec, p.OnSubmit, p.OnFailure)
}

func (c *Coordinator) newRecord(p Params) *transaction.Record {
	orderReq := p.Order
	return &transaction.Record{
		ID:        p.TxID,
		ChainID:   p.ChainID,
		Status:    transaction.StatusPending,
		TypeInfo:  p.TypeInfo,
		AddedTime: c.now().UnixMilli(),
		From:      p.Account,
		Order: &transaction.Order{
			OrderHash:     orderReq.OrderHash(),
			Routing:       orderReq.Routing,
			QueueStatus:   transaction.QueueWaiting,
			ApproveTxHash: p.ApproveTxHash,
			WrapTxHash:    p.WrapTxHash,
			Request:       &orderReq,
		},
	}
}

// claim marks id as running in this process. The returned func releases it.
func (c *Coordinator) claim(id string) (func(), bool) {
	if _, loaded := c.inflight.LoadOrStore(id, struct{}{}); loaded {
		return nil, false
	}
	return func() { c.inflight.Delete(id) }, true
}

// Resume continues a waiting order loaded from the store. Orders with a Submit
// or Resume still running in this process are rejected with ErrInFlight.
func (c *Coordinator) Resume(ctx context.Context, id string) (Outcome, error) {
	release, ok := c.claim(id)
	if !ok {
		return Outcome{TxID: id}, fmt.Errorf("%w: %s", ErrInFlight, id)
	}
	defer release()

	rec, err := c.store.Get(id)
	if err != nil {
		return Outcome{TxID: id}, err
	}
	if !rec.IsOrder() || rec.Order.QueueStatus != transaction.QueueWaiting || rec.Order.Request == nil {
		return Outcome{TxID: id}, fmt.Errorf("%w: %s", ErrNotWaiting, id)
	}
	return c.run(ctx, rec, nil, nil)
}

func (c *Coordinator) run(ctx context.Context, rec *transaction.Record, onSubmit func(string), onFailure func(error)) (Outcome, error) {
	order := rec.Order
	out := Outcome{TxID: rec.ID, OrderHash: order.OrderHash, QueueStatus: transaction.QueueWaiting}
	logger := c.logger.WithFields(log.Fields{"id": rec.ID, "order": order.OrderHash})

	fail := func(status transaction.QueueStatus, err error) (Outcome, error) {
		failed := transaction.StatusFailed
		if _, uerr := c.store.Update(rec.ID, transaction.Update{Status: &failed, QueueStatus: &status}); uerr != nil {
			logger.WithError(uerr).Error("failed to record order failure")
		}
		logger.WithError(err).WithField("queue_status", status).Warn("order not submitted")
		c.sink.Emit(telemetry.EventSubmissionFailed, map[string]any{
			"routing":      order.Routing,
			"order_hash":   order.OrderHash,
			"queue_status": status,
		})
		if onFailure != nil {
			onFailure(err)
		}
		out.QueueStatus = status
		return out, err
	}

	if err := c.awaitPrerequisites(ctx, order); err != nil {
		var pf *prerequisiteFailure
		if errors.As(err, &pf) {
			return fail(pf.status, pf.err)
		}
		// abandoned; the order stays waiting and is picked up on the next start
		logger.WithError(err).Warn("stopped waiting for order prerequisites")
		return out, err
	}

	if rec.IsStale(c.now(), c.threshold) {
		return fail(transaction.QueueStale, ErrStale)
	}

	// Optimistic: a crash before the POST resolves leaves a submitted record
	// that Tracker.Recover reconciles against the order service.
	if _, err := c.store.Update(rec.ID, transaction.WithQueueStatus(transaction.QueueSubmitted)); err != nil {
		return fail(transaction.QueueSubmissionFailed, fmt.Errorf("%w: %v", ErrSubmissionFailed, err))
	}
	out.QueueStatus = transaction.QueueSubmitted

	if err := c.intake.Submit(ctx, *order.Request); err != nil {
		return fail(transaction.QueueSubmissionFailed, fmt.Errorf("%w: %w", ErrSubmissionFailed, err))
	}

	c.sink.Emit(telemetry.EventOrderSubmitted, map[string]any{
		"routing":    order.Routing,
		"order_hash": order.OrderHash,
	})
	logger.Info("order submitted")
	if onSubmit != nil {
		onSubmit(order.OrderHash)
	}
	return out, nil
}

type prerequisiteFailure struct {
	status transaction.QueueStatus
	err    error
}

func (p *prerequisiteFailure) Error() string { return p.err.Error() }

// settled returns the status of a transaction with hash that is already final in
// the store, such as a prerequisite that confirmed before a restart
func (c *Coordinator) settled(hash string) (transaction.Status, bool) {
	for _, rec := range c.store.List() {
		if !rec.IsOrder() && strings.EqualFold(rec.Hash, hash) && rec.Status.IsFinal() {
			return rec.Status, true
		}
	}
	return "", false
}

// awaitPrerequisites waits for the approve and wrap transactions in whichever
// order they finalize. The first failure cancels the remaining waits.
func (c *Coordinator) awaitPrerequisites(ctx context.Context, order *transaction.Order) error {
	type prerequisite struct {
		hash   string
		status transaction.QueueStatus
		err    error
	}
	var prereqs []prerequisite
	if order.ApproveTxHash != "" {
		prereqs = append(prereqs, prerequisite{order.ApproveTxHash, transaction.QueueApprovalFailed, ErrApprovalFailed})
	}
	if order.WrapTxHash != "" {
		prereqs = append(prereqs, prerequisite{order.WrapTxHash, transaction.QueueWrapFailed, ErrWrapFailed})
	}
	if len(prereqs) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, pr := range prereqs {
		pr := pr
		g.Go(func() error {
			status, ok := c.settled(pr.hash)
			if !ok {
				ev, err := c.events.Await(gctx, pr.hash)
				if err != nil {
					return err
				}
				status = ev.Status
			}
			if status != transaction.StatusSuccess {
				return &prerequisiteFailure{status: pr.status, err: pr.err}
			}
			c.logger.WithField("hash", pr.hash).Debug("order prerequisite confirmed")
			return nil
		})
	}
	return g.Wait()
}
