package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"wallet-swap/pkg/types"
)

const (
	// DebounceWindow delays requests while the user is still typing
	DebounceWindow = 250 * time.Millisecond
	// StaleGrace is added to the poll interval to get the result TTL
	StaleGrace = 15 * time.Second
	// UnconnectedAddress stands in for the swapper when no account is set
	UnconnectedAddress = "0xAAAA44272dc658575Ba38f43C438447dDED45358"
)

// Service fetches quotes
type Service interface {
	Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error)
}

// Params are the inputs of a quote
type Params struct {
	Account                 string
	AmountSpecified         *types.CurrencyAmount
	OtherCurrency           *types.Currency
	TradeType               types.TradeType
	CustomSlippageTolerance *decimal.Decimal
	PollInterval            time.Duration
	RoutingPreference       RoutingPreference
}

// currencies returns (in, out) for the trade type
func (p *Params) currencies() (*types.Currency, *types.Currency) {
	var specified *types.Currency
	if p.AmountSpecified != nil {
		c := p.AmountSpecified.Currency
		specified = &c
	}
	if p.TradeType == types.ExactOutput {
		return p.OtherCurrency, specified
	}
	return specified, p.OtherCurrency
}

func sameAmount(a, b *types.CurrencyAmount) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Currency.Equal(b.Currency) && a.Raw.Cmp(b.Raw) == 0
}

func sameCurrency(a, b *types.Currency) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func sameSlippage(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (p *Params) equal(o *Params) bool {
	return o != nil &&
		p.Account == o.Account &&
		p.TradeType == o.TradeType &&
		p.PollInterval == o.PollInterval &&
		p.RoutingPreference == o.RoutingPreference &&
		sameAmount(p.AmountSpecified, o.AmountSpecified) &&
		sameCurrency(p.OtherCurrency, o.OtherCurrency) &&
		sameSlippage(p.CustomSlippageTolerance, o.CustomSlippageTolerance)
}

func (p *Params) skip() bool {
	in, out := p.currencies()
	return in == nil || out == nil || p.AmountSpecified.IsZero() || in.Equal(*out)
}

func (p *Params) pollInterval() time.Duration {
	if p.PollInterval > 0 {
		return p.PollInterval
	}
	if in, _ := p.currencies(); in != nil {
		return in.ChainID.BlockTime()
	}
	return types.FallbackL1BlockTime
}

func (p *Params) request() QuoteRequest {
	in, out := p.currencies()
	swapper := p.Account
	if swapper == "" {
		swapper = UnconnectedAddress
	}
	req := QuoteRequest{
		Type:              p.TradeType,
		Amount:            p.AmountSpecified.Raw.String(),
		Swapper:           swapper,
		TokenIn:           in.APIAddress(),
		TokenOut:          out.APIAddress(),
		TokenInChainID:    int64(in.ChainID),
		TokenOutChainID:   int64(out.ChainID),
		RoutingPreference: p.RoutingPreference,
	}
	if p.CustomSlippageTolerance != nil {
		s := p.CustomSlippageTolerance.InexactFloat64()
		req.SlippageTolerance = &s
	}
	return req
}

// Result is the fetcher's current view of the quote
type Result struct {
	Trade      *types.Trade
	Loading    bool
	Err        error
	IsFetching bool
}

// Fetcher keeps a quote fresh for the latest params
type Fetcher struct {
	svc      Service
	debounce time.Duration
	now      func() time.Time
	logger   *log.Entry

	mu         sync.Mutex
	pending    *Params
	timer      *time.Timer
	active     *Params
	generation uint64
	trade      *types.Trade
	fetchedAt  time.Time
	err        error
	loading    bool
	fetching   bool
	changed    chan struct{}
	refetch    chan struct{}
}

// NewFetcher creates a fetcher backed by svc
func NewFetcher(svc Service) *Fetcher {
	return &Fetcher{
		svc:      svc,
		debounce: DebounceWindow,
		now:      time.Now,
		logger:   log.WithField("component", "quote"),
		changed:  make(chan struct{}),
		refetch:  make(chan struct{}, 1),
	}
}

// Update replaces the quote params. Identical params are ignored; changes are
// debounced unless the amount moved to a different chain than the one pending
// or in effect.
func (f *Fetcher) Update(p Params) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p.equal(f.pending) || (f.pending == nil && p.equal(f.active)) {
		return
	}

	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}

	if p.AmountSpecified == nil || f.crossesChain(p) {
		f.pending = nil
		f.applyLocked(p)
		return
	}

	f.pending = &p
	f.loading = true
	f.timer = time.AfterFunc(f.debounce, f.flush)
	f.notifyLocked()
}

func (f *Fetcher) crossesChain(p Params) bool {
	chain := p.AmountSpecified.Currency.ChainID
	if f.pending != nil && f.pending.AmountSpecified != nil {
		return f.pending.AmountSpecified.Currency.ChainID != chain
	}
	if f.active != nil && f.active.AmountSpecified != nil {
		return f.active.AmountSpecified.Currency.ChainID != chain
	}
	return false
}

func (f *Fetcher) flush() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pending == nil {
		return
	}
	p := *f.pending
	f.pending = nil
	f.timer = nil
	f.applyLocked(p)
}

func (f *Fetcher) applyLocked(p Params) {
	f.active = &p
	f.generation++
	f.trade = nil
	f.err = nil
	f.fetching = false
	f.loading = !p.skip()
	f.notifyLocked()

	select {
	case f.refetch <- struct{}{}:
	default:
	}
}

func (f *Fetcher) notifyLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}

// Run polls the quote service until ctx is done
func (f *Fetcher) Run(ctx context.Context) {
	for {
		f.Refresh(ctx)

		f.mu.Lock()
		interval := types.FallbackL1BlockTime
		if f.active != nil {
			interval = f.active.pollInterval()
		}
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-f.refetch:
		case <-time.After(interval):
		}
	}
}

// Refresh performs one fetch for the params in effect
func (f *Fetcher) Refresh(ctx context.Context) {
	f.mu.Lock()
	if f.active == nil || f.active.skip() {
		f.mu.Unlock()
		return
	}
	gen := f.generation
	params := *f.active
	f.fetching = true
	f.notifyLocked()
	f.mu.Unlock()

	req := params.request()
	resp, err := f.svc.Quote(ctx, req)

	var trade *types.Trade
	if err == nil {
		trade, err = f.toTrade(resp, &params)
	} else {
		err = f.classify(err, req)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.generation {
		return
	}
	f.fetching = false
	f.loading = false
	f.err = err
	// a failed request keeps the last trade until its TTL runs out
	switch {
	case err == nil:
		f.trade = trade
		f.fetchedAt = f.now()
	case errors.Is(err, ErrNoRoute), errors.Is(err, ErrNoQuoteData):
		f.trade = nil
	}
	f.notifyLocked()
}

func (f *Fetcher) toTrade(resp *QuoteResponse, p *Params) (*types.Trade, error) {
	if !resp.HasQuote() {
		f.logger.WithField("requestId", requestID(resp)).Error("unexpected empty trading api response")
		return nil, ErrNoQuoteData
	}

	in, out := p.currencies()
	trade, err := TransformResponse(resp, TransformParams{
		CurrencyIn:        *in,
		CurrencyOut:       *out,
		TradeType:         p.TradeType,
		SlippageTolerance: p.CustomSlippageTolerance,
		Deadline:          f.now().Add(types.DefaultSwapValidity),
	})
	if err != nil {
		f.logger.WithError(err).Error("failed to transform quote")
		return nil, fmt.Errorf("%w: %v", ErrNoRoute, err)
	}
	if trade == nil || !ValidateTrade(trade, *in, *out, p.AmountSpecified) {
		return nil, ErrNoRoute
	}
	return trade, nil
}

func (f *Fetcher) classify(err error, req QuoteRequest) error {
	switch {
	case isNotFound(err):
		return ErrNoQuoteData
	case isRouteError(err):
		return fmt.Errorf("%w: %v", ErrNoRoute, err)
	}
	f.logger.WithError(err).WithFields(log.Fields{
		"tokenIn":  req.TokenIn,
		"tokenOut": req.TokenOut,
		"chain":    req.TokenInChainID,
	}).Warn("quote request failed")
	return err
}

// Result returns the current quote state. A trade older than the poll
// interval plus StaleGrace is dropped and reported as loading, also when
// later polls failed. Err and Trade may both be set.
func (f *Fetcher) Result() Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resultLocked()
}

func (f *Fetcher) resultLocked() Result {
	r := Result{
		Trade:      f.trade,
		Err:        f.err,
		Loading:    f.loading || f.pending != nil,
		IsFetching: f.fetching && !f.loading,
	}
	if f.trade != nil && f.active != nil {
		ttl := f.active.pollInterval() + StaleGrace
		if f.now().Sub(f.fetchedAt) > ttl {
			r.Trade = nil
			r.Loading = true
		}
	}
	return r
}

// WaitSettled blocks until the result is no longer loading
func (f *Fetcher) WaitSettled(ctx context.Context) (Result, error) {
	for {
		f.mu.Lock()
		r := f.resultLocked()
		changed := f.changed
		f.mu.Unlock()

		if !r.Loading {
			return r, nil
		}
		select {
		case <-ctx.Done():
			return r, ctx.Err()
		case <-changed:
		}
	}
}

func requestID(resp *QuoteResponse) string {
	if resp == nil {
		return ""
	}
	return resp.RequestID
}
