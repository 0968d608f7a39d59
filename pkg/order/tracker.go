package order

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"wallet-swap/pkg/transaction"
)

// DefaultPollInterval is how often submitted orders are checked against the order service
const DefaultPollInterval = 15 * time.Second

// Service reports the order service's view of submitted orders
type Service interface {
	Orders(ctx context.Context, hashes []string) ([]State, error)
}

// Resumer continues a waiting order
type Resumer interface {
	Resume(ctx context.Context, id string) (Outcome, error)
}

// Tracker reconciles stored orders with the order service
type Tracker struct {
	store     transaction.Store
	resumer   Resumer
	service   Service
	interval  time.Duration
	now       func() time.Time
	threshold time.Duration
	logger    *log.Entry

	wg sync.WaitGroup
}

// NewTracker creates a tracker
func NewTracker(store transaction.Store, resumer Resumer, service Service, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Tracker{
		store:     store,
		resumer:   resumer,
		service:   service,
		interval:  interval,
		now:       time.Now,
		threshold: StalenessThreshold,
		logger:    log.WithField("component", "order-tracker"),
	}
}

// Recover handles orders left unfinished by a previous run. Waiting orders past
// the staleness threshold become stale, the rest are resumed in the background.
// Submitted orders the order service does not know become submission_failed.
func (t *Tracker) Recover(ctx context.Context) error {
	var submitted []*transaction.Record
	for _, rec := range t.store.List() {
		if !rec.IsOrder() || rec.Status != transaction.StatusPending {
			continue
		}
		switch rec.Order.QueueStatus {
		case transaction.QueueWaiting:
			if rec.IsStale(t.now(), t.threshold) {
				t.finish(rec, transaction.StatusFailed, transaction.QueueStale)
				continue
			}
			t.resume(ctx, rec.ID)
		case transaction.QueueSubmitted:
			submitted = append(submitted, rec)
		}
	}
	return t.reconcile(ctx, submitted, true)
}

// Wait blocks until every resumed order has finished
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) resume(ctx context.Context, id string) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		out, err := t.resumer.Resume(ctx, id)
		if errors.Is(err, ErrInFlight) {
			t.logger.WithField("id", id).Debug("order already running")
			return
		}
		if err != nil {
			t.logger.WithError(err).WithField("id", id).Warn("resumed order did not submit")
			return
		}
		t.logger.WithFields(log.Fields{"id": id, "queue_status": out.QueueStatus}).Info("resumed order")
	}()
}

// Poll maps the order service state of every submitted, pending order onto its record
func (t *Tracker) Poll(ctx context.Context) error {
	var submitted []*transaction.Record
	for _, rec := range t.store.List() {
		if rec.IsOrder() && rec.Status == transaction.StatusPending && rec.Order.QueueStatus == transaction.QueueSubmitted {
			submitted = append(submitted, rec)
		}
	}
	return t.reconcile(ctx, submitted, false)
}

// Run recovers once, then polls until ctx is cancelled
func (t *Tracker) Run(ctx context.Context) error {
	if err := t.Recover(ctx); err != nil {
		t.logger.WithError(err).Warn("order recovery failed")
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.Wait()
			return ctx.Err()
		case <-ticker.C:
			if err := t.Poll(ctx); err != nil {
				t.logger.WithError(err).Debug("order poll failed")
			}
		}
	}
}

func (t *Tracker) reconcile(ctx context.Context, recs []*transaction.Record, failUnknown bool) error {
	if len(recs) == 0 {
		return nil
	}
	hashes := make([]string, 0, len(recs))
	for _, rec := range recs {
		hashes = append(hashes, rec.Order.OrderHash)
	}
	states, err := t.service.Orders(ctx, hashes)
	if err != nil {
		return err
	}
	byHash := make(map[string]State, len(states))
	for _, s := range states {
		byHash[strings.ToLower(s.OrderHash)] = s
	}

	for _, rec := range recs {
		state, known := byHash[strings.ToLower(rec.Order.OrderHash)]
		if !known {
			if failUnknown {
				t.finish(rec, transaction.StatusFailed, transaction.QueueSubmissionFailed)
			}
			continue
		}
		if status, final := finalStatus(state.Status); final {
			t.finish(rec, status, "")
		}
	}
	return nil
}

func (t *Tracker) finish(rec *transaction.Record, status transaction.Status, queue transaction.QueueStatus) {
	u := transaction.WithStatus(status)
	if queue != "" {
		u.QueueStatus = &queue
	}
	if queue == "" {
		u.Receipt = &transaction.Receipt{ConfirmedTime: t.now().UnixMilli()}
	}
	if _, err := t.store.Update(rec.ID, u); err != nil {
		t.logger.WithError(err).WithField("id", rec.ID).Warn("failed to update order")
		return
	}
	t.logger.WithFields(log.Fields{
		"id":           rec.ID,
		"order":        rec.Order.OrderHash,
		"status":       status,
		"queue_status": queue,
	}).Info("order reconciled")
}

func finalStatus(s ServiceStatus) (transaction.Status, bool) {
	switch s {
	case ServiceFilled:
		return transaction.StatusSuccess, true
	case ServiceExpired, ServiceCancelled, ServiceError, ServiceInsufficientFunds:
		return transaction.StatusFailed, true
	}
	return transaction.StatusPending, false
}
