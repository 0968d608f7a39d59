package notification

import (
	"time"

	log "github.com/sirupsen/logrus"

	"wallet-swap/pkg/transaction"
)

// Presenter shows notifications to the user
type Presenter interface {
	Present(n Notification)
}

// Watcher turns store changes into notifications: one per finalized
// transaction and one per order that fails before submission
type Watcher struct {
	presenter Presenter
	now       func() time.Time
	logger    *log.Entry
}

// NewWatcher creates a watcher
func NewWatcher(p Presenter) *Watcher {
	return &Watcher{
		presenter: p,
		now:       time.Now,
		logger:    log.WithField("component", "notifications"),
	}
}

// Attach subscribes to store and returns the unsubscribe func
func (w *Watcher) Attach(store transaction.Store) func() {
	return store.Subscribe(w.handle)
}

func (w *Watcher) handle(c transaction.Change) {
	cur, prev := c.Current, c.Previous
	if prev == nil || cur == nil {
		return
	}

	if cur.IsOrder() && cur.Order.QueueStatus.IsFailure() && prev.Order.QueueStatus != cur.Order.QueueStatus {
		if n, ok := BuildOrderFailure(cur); ok {
			w.present(n)
		}
		return
	}

	if prev.Status != transaction.StatusPending || !cur.Status.IsFinal() {
		return
	}
	if cur.IsOrder() && cur.Order.QueueStatus.IsFailure() {
		return
	}
	if ShouldSuppress(cur, w.now()) {
		w.logger.WithField("id", cur.ID).Debug("notification suppressed")
		return
	}
	if n, ok := Build(cur); ok {
		w.present(n)
	}
}

func (w *Watcher) present(n Notification) {
	w.logger.WithFields(log.Fields{"id": n.TxID, "kind": n.Kind, "type": n.TxType}).Debug("notification")
	w.presenter.Present(n)
}
