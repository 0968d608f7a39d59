package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"wallet-swap/config"
	"wallet-swap/pkg/chain/evm"
	"wallet-swap/pkg/derive"
	"wallet-swap/pkg/notification"
	"wallet-swap/pkg/order"
	"wallet-swap/pkg/parser"
	"wallet-swap/pkg/quote"
	"wallet-swap/pkg/sequencer"
	"wallet-swap/pkg/swap"
	"wallet-swap/pkg/telemetry"
	"wallet-swap/pkg/transaction"
	"wallet-swap/pkg/types"
)

// app wires every component for the commands that touch a chain
type app struct {
	cfg      *config.Config
	tokens   *parser.TokenList
	registry *prometheus.Registry
	sink     telemetry.Sink

	store  *transaction.MemoryStore
	events *transaction.Events

	clients   *evm.Clients
	signer    *evm.Signer
	nonces    *evm.NonceResolver
	receipts  *evm.Watcher
	balances  *evm.Balances
	sender    *transaction.Sender
	sequencer *sequencer.Sequencer

	quotes  *quote.Client
	fetcher *quote.Fetcher
	deriver *derive.Deriver
	builder *swap.Builder

	orders      *order.Client
	coordinator *order.Coordinator
	tracker     *order.Tracker

	stop    context.CancelFunc
	wg      sync.WaitGroup
	closers []func()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level: %w", err)
	}
	if !verbose {
		log.SetLevel(level)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*transaction.MemoryStore, error) {
	var p transaction.Persister
	switch cfg.StoreDriver {
	case "file":
		p = transaction.NewFilePersister(cfg.StorePath)
	case "bolt":
		bp, err := transaction.OpenBoltPersister(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		p = bp
	}
	store, err := transaction.NewStore(p)
	if err != nil {
		if p != nil {
			p.Close()
		}
		return nil, err
	}
	return store, nil
}

// newApp builds the full component graph. Nothing runs until start.
func newApp(cfg *config.Config) (*app, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	if err := cfg.RequireSigner(); err != nil {
		return nil, err
	}
	if len(cfg.Chains) == 0 {
		return nil, fmt.Errorf("no chains configured")
	}

	tokens, err := parser.NewTokenList(cfg.Tokens)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, tokens: tokens, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector())
	a.sink = telemetry.Multi{telemetry.NewLogSink(), telemetry.NewPrometheusSink(a.registry)}

	a.store, err = openStore(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := a.store.Close(); err != nil {
			log.WithError(err).Warn("failed to close store")
		}
	})

	a.events = transaction.NewEvents()
	a.closers = append(a.closers, a.events.Attach(a.store))

	a.clients, err = evm.Dial(cfg.Chains)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.clients.Close)

	a.signer, err = evm.NewSigner(a.clients, cfg.PrivateKeys...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.nonces = evm.NewNonceResolver(a.clients, a.store)
	a.receipts = evm.NewWatcher(a.clients, a.store, cfg.ReceiptInterval)
	a.balances = evm.NewBalances(a.clients)
	a.sender = transaction.NewSender(a.signer, a.store)

	a.quotes = quote.NewClient(cfg.TradingAPIURL, cfg.APIKey, quote.WithRateLimit(cfg.RateLimit))
	a.fetcher = quote.NewFetcher(a.quotes)
	a.deriver = derive.NewDeriver(a.fetcher, a.balances)
	a.builder = swap.NewBuilder(a.quotes, a.signer)

	a.orders = order.NewClient(cfg.OrderURL, cfg.APIKey)
	a.coordinator = order.NewCoordinator(a.store, a.events, a.orders, a.sink)
	a.tracker = order.NewTracker(a.store, a.coordinator, a.orders, cfg.PollInterval)

	a.sequencer = sequencer.New(a.nonces, a.sender, a.clients, a.coordinator, a.sink)
	return a, nil
}

// start launches the background loops and the startup order recovery sweep.
// The loops outlive ctx so an order already handed to the coordinator still
// sees its prerequisites finalize; Close stops them.
func (a *app) start(ctx context.Context, notify bool) {
	ctx, a.stop = context.WithCancel(context.WithoutCancel(ctx))
	if notify {
		watcher := notification.NewWatcher(notification.NewConsole(os.Stdout))
		a.closers = append(a.closers, watcher.Attach(a.store))
	}

	a.goRun(func() {
		if err := a.receipts.Run(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("receipt watcher stopped")
		}
	})
	a.goRun(func() { a.fetcher.Run(ctx) })
	a.goRun(func() {
		if err := a.tracker.Run(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("order tracker stopped")
		}
	})
}

func (a *app) goRun(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// account returns the configured account matching from, or the first one
func (a *app) account(from string) (string, error) {
	accounts := a.signer.Accounts()
	if from == "" {
		return accounts[0], nil
	}
	for _, acc := range accounts {
		if strings.EqualFold(acc, from) {
			return acc, nil
		}
	}
	return "", fmt.Errorf("no private key configured for %s", from)
}

// chain resolves the chain named by a flag or command, falling back to the default
func (a *app) chain(names ...string) (types.ChainID, error) {
	for _, name := range names {
		if name != "" {
			return types.ParseChain(name)
		}
	}
	return a.cfg.DefaultChain, nil
}

// Close stops the background loops, waits for them and releases resources
func (a *app) Close() {
	if a.stop != nil {
		a.stop()
	}
	a.wg.Wait()
	if a.tracker != nil {
		a.tracker.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
