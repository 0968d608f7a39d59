package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/types"
)

var (
	eth  = types.ChainMainnet.NativeCurrency()
	usdc = types.Currency{ChainID: types.ChainMainnet, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Decimals: 6}
)

type mockService struct {
	mu        sync.Mutex
	requests  []QuoteRequest
	QuoteFunc func(req QuoteRequest) (*QuoteResponse, error)
}

func (m *mockService) Quote(_ context.Context, req QuoteRequest) (*QuoteResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.QuoteFunc(req)
}

func (m *mockService) calls() []QuoteRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]QuoteRequest(nil), m.requests...)
}

func classicResponse(req QuoteRequest) (*QuoteResponse, error) {
	body := fmt.Sprintf(`{"input":{"amount":"%s","token":"%s"},"output":{"amount":"2000000000","token":"%s"},"route":[[{}]],"slippage":0.5,"priceImpact":0.12}`,
		req.Amount, req.TokenIn, req.TokenOut)
	return &QuoteResponse{RequestID: "r", Routing: types.RoutingClassic, Quote: []byte(body)}, nil
}

func oneEth() *types.CurrencyAmount {
	amt, _ := types.ParseCurrencyAmount(eth, "1")
	return amt
}

func ethToUSDC() Params {
	other := usdc
	return Params{AmountSpecified: oneEth(), OtherCurrency: &other, TradeType: types.ExactInput}
}

func TestFetcherProducesTrade(t *testing.T) {
	svc := &mockService{QuoteFunc: classicResponse}
	f := NewFetcher(svc)
	f.debounce = time.Millisecond

	f.Update(ethToUSDC())
	assert.True(t, f.Result().Loading)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	res, err := f.WaitSettled(ctx)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.NotNil(t, res.Trade)
	assert.Equal(t, "2000000000", res.Trade.OutputAmount.Raw.String())
	assert.Equal(t, "0.5", res.Trade.SlippageTolerance.String())
	assert.Equal(t, "0.12", res.Trade.PriceImpact.String())

	req := svc.calls()[0]
	assert.Equal(t, UnconnectedAddress, req.Swapper)
	assert.Equal(t, types.NativeAddress, req.TokenIn)
	assert.Equal(t, "1000000000000000000", req.Amount)
	assert.Nil(t, req.SlippageTolerance)
}

func TestFetcherDebouncesSameChainUpdates(t *testing.T) {
	svc := &mockService{QuoteFunc: classicResponse}
	f := NewFetcher(svc)
	f.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	for _, v := range []string{"1", "1.5", "2"} {
		p := ethToUSDC()
		p.AmountSpecified, _ = types.ParseCurrencyAmount(eth, v)
		f.Update(p)
	}

	_, err := f.WaitSettled(ctx)
	require.NoError(t, err)

	calls := svc.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "2000000000000000000", calls[0].Amount)
}

func TestFetcherBypassesDebounceOnChainChange(t *testing.T) {
	f := NewFetcher(&mockService{QuoteFunc: classicResponse})
	f.debounce = time.Hour

	f.Update(ethToUSDC())
	require.NotNil(t, f.pending)

	baseEth := types.ChainBase.NativeCurrency()
	baseUSDC := types.Currency{ChainID: types.ChainBase, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Symbol: "USDC", Decimals: 6}
	amt, _ := types.ParseCurrencyAmount(baseEth, "1")
	f.Update(Params{AmountSpecified: amt, OtherCurrency: &baseUSDC, TradeType: types.ExactInput})

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Nil(t, f.pending)
	require.NotNil(t, f.active)
	assert.Equal(t, types.ChainBase, f.active.AmountSpecified.Currency.ChainID)
}

func TestFetcherClearsStaleTrade(t *testing.T) {
	f := NewFetcher(&mockService{QuoteFunc: classicResponse})
	f.debounce = 0
	clock := time.Unix(1_700_000_000, 0)
	f.now = func() time.Time { return clock }

	p := ethToUSDC()
	p.PollInterval = 10 * time.Second
	f.Update(p)
	f.flush()
	f.Refresh(context.Background())
	require.NotNil(t, f.Result().Trade)

	clock = clock.Add(24 * time.Second)
	assert.NotNil(t, f.Result().Trade)

	clock = clock.Add(2 * time.Second)
	res := f.Result()
	assert.Nil(t, res.Trade)
	assert.True(t, res.Loading)
}

func TestFetcherKeepsTradeThroughFailedPoll(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	var fail bool
	f := NewFetcher(&mockService{QuoteFunc: func(req QuoteRequest) (*QuoteResponse, error) {
		if fail {
			return nil, boom
		}
		return classicResponse(req)
	}})
	clock := time.Unix(1_700_000_000, 0)
	f.now = func() time.Time { return clock }

	p := ethToUSDC()
	p.PollInterval = 10 * time.Second
	f.Update(p)
	f.flush()
	f.Refresh(context.Background())
	require.NotNil(t, f.Result().Trade)

	fail = true
	clock = clock.Add(10 * time.Second)
	f.Refresh(context.Background())

	res := f.Result()
	assert.NotNil(t, res.Trade)
	assert.False(t, res.Loading)
	assert.ErrorIs(t, res.Err, boom)

	clock = clock.Add(10 * time.Second)
	f.Refresh(context.Background())
	assert.NotNil(t, f.Result().Trade)

	// 26s after the last good quote
	clock = clock.Add(6 * time.Second)
	res = f.Result()
	assert.Nil(t, res.Trade)
	assert.True(t, res.Loading)

	// recovers on the next good response
	fail = false
	f.Refresh(context.Background())
	res = f.Result()
	assert.NotNil(t, res.Trade)
	assert.NoError(t, res.Err)
}

func TestFetcherNoRouteClearsTrade(t *testing.T) {
	var noRoute bool
	f := NewFetcher(&mockService{QuoteFunc: func(req QuoteRequest) (*QuoteResponse, error) {
		if noRoute {
			return nil, &APIError{StatusCode: 400, Code: "QUOTE_ERROR"}
		}
		return classicResponse(req)
	}})
	f.Update(ethToUSDC())
	f.flush()
	f.Refresh(context.Background())
	require.NotNil(t, f.Result().Trade)

	noRoute = true
	f.Refresh(context.Background())
	res := f.Result()
	assert.Nil(t, res.Trade)
	assert.ErrorIs(t, res.Err, ErrNoRoute)
}

func TestFetcherErrors(t *testing.T) {
	tests := []struct {
		name string
		resp *QuoteResponse
		err  error
		want error
	}{
		{name: "empty response", resp: &QuoteResponse{}, want: ErrNoQuoteData},
		{name: "not found", err: &APIError{StatusCode: 404, Code: "ResourceNotFound"}, want: ErrNoQuoteData},
		{name: "no route", resp: &QuoteResponse{Routing: types.RoutingClassic, Quote: []byte(`{"route":[]}`)}, want: ErrNoRoute},
		{name: "route error code", err: &APIError{StatusCode: 400, Code: "QUOTE_ERROR"}, want: ErrNoRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFetcher(&mockService{QuoteFunc: func(QuoteRequest) (*QuoteResponse, error) { return tt.resp, tt.err }})
			f.Update(ethToUSDC())
			f.flush()
			f.Refresh(context.Background())

			res := f.Result()
			assert.Nil(t, res.Trade)
			assert.False(t, res.Loading)
			assert.ErrorIs(t, res.Err, tt.want)
		})
	}
}

func TestFetcherNetworkErrorPassesThrough(t *testing.T) {
	boom := errors.New("connection refused")
	f := NewFetcher(&mockService{QuoteFunc: func(QuoteRequest) (*QuoteResponse, error) { return nil, boom }})
	f.Update(ethToUSDC())
	f.flush()
	f.Refresh(context.Background())

	res := f.Result()
	assert.ErrorIs(t, res.Err, boom)
	assert.NotErrorIs(t, res.Err, ErrNoRoute)
}

func TestFetcherSkipsIncompleteParams(t *testing.T) {
	svc := &mockService{QuoteFunc: classicResponse}
	f := NewFetcher(svc)

	other := eth
	f.Update(Params{AmountSpecified: oneEth(), OtherCurrency: &other, TradeType: types.ExactInput})
	f.flush()
	f.Refresh(context.Background())

	f.Update(Params{OtherCurrency: &other})
	f.Refresh(context.Background())

	assert.Empty(t, svc.calls())
	assert.False(t, f.Result().Loading)
}

func TestFetcherExactOutputUsesOtherCurrencyAsInput(t *testing.T) {
	svc := &mockService{QuoteFunc: func(req QuoteRequest) (*QuoteResponse, error) {
		body := fmt.Sprintf(`{"input":{"amount":"500000000000000000"},"output":{"amount":"%s"},"route":[[{}]]}`, req.Amount)
		return &QuoteResponse{Routing: types.RoutingClassic, Quote: []byte(body)}, nil
	}}
	f := NewFetcher(svc)

	out, _ := types.ParseCurrencyAmount(usdc, "1000")
	other := eth
	f.Update(Params{AmountSpecified: out, OtherCurrency: &other, TradeType: types.ExactOutput, Account: "0xme"})
	f.flush()
	f.Refresh(context.Background())

	res := f.Result()
	require.NoError(t, res.Err)
	require.NotNil(t, res.Trade)
	assert.True(t, res.Trade.InputAmount.Currency.Equal(eth))
	assert.Equal(t, "0xme", svc.calls()[0].Swapper)
	assert.Equal(t, usdc.Address, svc.calls()[0].TokenOut)
}

func TestFetcherIgnoresIdenticalUpdate(t *testing.T) {
	svc := &mockService{QuoteFunc: classicResponse}
	f := NewFetcher(svc)
	f.Update(ethToUSDC())
	f.flush()
	f.Refresh(context.Background())
	gen := f.generation

	f.Update(ethToUSDC())
	assert.Nil(t, f.pending)
	assert.Equal(t, gen, f.generation)
	assert.NotNil(t, f.Result().Trade)
}
