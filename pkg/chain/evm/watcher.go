package evm

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	log "github.com/sirupsen/logrus"

	"wallet-swap/pkg/transaction"
)

// DefaultReceiptInterval is how often pending transactions are checked for receipts
const DefaultReceiptInterval = 4 * time.Second

// Watcher finalizes pending on-chain transactions from their receipts
type Watcher struct {
	clients  ClientProvider
	store    transaction.Store
	interval time.Duration
	now      func() time.Time
	logger   *log.Entry
}

// NewWatcher creates a receipt watcher
func NewWatcher(clients ClientProvider, store transaction.Store, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultReceiptInterval
	}
	return &Watcher{
		clients:  clients,
		store:    store,
		interval: interval,
		now:      time.Now,
		logger:   log.WithField("component", "receipt-watcher"),
	}
}

// Run polls until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.Poll(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll checks every pending transaction once and returns how many were finalized
func (w *Watcher) Poll(ctx context.Context) int {
	finalized := 0
	for _, rec := range w.store.List() {
		if rec.IsOrder() || rec.Status != transaction.StatusPending || rec.Hash == "" {
			continue
		}
		client, err := w.clients.Client(rec.ChainID)
		if err != nil {
			continue
		}

		receipt, err := client.TransactionReceipt(ctx, common.HexToHash(rec.Hash))
		if errors.Is(err, ethereum.NotFound) {
			continue
		}
		if err != nil {
			w.logger.WithError(err).WithField("hash", rec.Hash).Debug("receipt lookup failed")
			continue
		}

		status := transaction.StatusSuccess
		if receipt.Status != ethtypes.ReceiptStatusSuccessful {
			status = transaction.StatusFailed
		}
		update := transaction.WithStatus(status)
		update.Receipt = &transaction.Receipt{
			GasUsed:       receipt.GasUsed,
			ConfirmedTime: w.now().UnixMilli(),
		}
		if receipt.BlockNumber != nil {
			update.Receipt.BlockNumber = receipt.BlockNumber.Uint64()
		}
		if _, err := w.store.Update(rec.ID, update); err != nil {
			w.logger.WithError(err).WithField("id", rec.ID).Warn("failed to finalize transaction")
			continue
		}
		w.logger.WithFields(log.Fields{
			"id":     rec.ID,
			"hash":   rec.Hash,
			"status": status,
		}).Info("transaction finalized")
		finalized++
	}
	return finalized
}
