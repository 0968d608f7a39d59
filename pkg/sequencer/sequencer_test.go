package sequencer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/order"
	"wallet-swap/pkg/telemetry"
	"wallet-swap/pkg/transaction"
	"wallet-swap/pkg/types"
)

const account = "0x1111111111111111111111111111111111111111"

var (
	dai  = types.Currency{ChainID: types.ChainMainnet, Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Symbol: "DAI", Decimals: 18}
	usdc = types.Currency{ChainID: types.ChainMainnet, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Decimals: 6}
)

type mockNonces struct {
	nonce   uint64
	err     error
	calls   int
	refresh []bool
}

func (m *mockNonces) Resolve(ctx context.Context, account string, chainID types.ChainID, forceRefresh bool) (uint64, error) {
	m.calls++
	m.refresh = append(m.refresh, forceRefresh)
	return m.nonce, m.err
}

type mockSender struct {
	mu     sync.Mutex
	sent   []transaction.SendParams
	failOn transaction.Type
}

func (m *mockSender) Send(ctx context.Context, p transaction.SendParams) (*transaction.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && p.TypeInfo.Type() == m.failOn {
		return nil, errors.New("signer rejected")
	}
	m.sent = append(m.sent, p)
	return &transaction.Record{ID: p.TxID, Hash: fmt.Sprintf("0x%s-%d", p.TypeInfo.Type(), *p.Request.Nonce)}, nil
}

type relays bool

func (r relays) SupportsPrivateRPC(types.ChainID) bool { return bool(r) }

type mockOrders struct {
	params []order.Params
}

func (m *mockOrders) Submit(ctx context.Context, p order.Params) (order.Outcome, error) {
	m.params = append(m.params, p)
	return order.Outcome{TxID: p.TxID, OrderHash: p.Order.OrderHash(), QueueStatus: transaction.QueueSubmitted}, nil
}

type recorded struct {
	submits  []string
	failures []error
}

func (r *recorded) callbacks() Callbacks {
	return Callbacks{
		OnSubmit:  func(hash string) { r.submits = append(r.submits, hash) },
		OnFailure: func(err error) { r.failures = append(r.failures, err) },
	}
}

func classicContext(t *testing.T, approve, wrap bool) *types.SwapTxContext {
	t.Helper()
	trade, err := types.NewTrade(types.TradeParams{
		Routing:           types.RoutingClassic,
		TradeType:         types.ExactInput,
		InputAmount:       types.NewCurrencyAmount(dai, big.NewInt(10000)),
		OutputAmount:      types.NewCurrencyAmount(usdc, big.NewInt(200000)),
		SlippageTolerance: decimal.NewFromFloat(0.5),
	})
	require.NoError(t, err)

	c := &types.SwapTxContext{
		Routing:   types.RoutingClassic,
		Trade:     trade,
		TxRequest: &types.TxRequest{ChainID: types.ChainMainnet, To: "0xrouter", Data: "0x0"},
	}
	if approve {
		c.ApproveTxRequest = &types.TxRequest{ChainID: types.ChainMainnet, To: dai.Address, Data: "0x0"}
	}
	if wrap {
		c.WrapTxRequest = &types.TxRequest{ChainID: types.ChainMainnet, To: "0xweth", Data: "0xd0e30db0", Value: "10000"}
	}
	return c
}

func orderContext(t *testing.T, approve, wrap bool) *types.SwapTxContext {
	t.Helper()
	trade, err := types.NewTrade(types.TradeParams{
		Routing:      types.RoutingDutchV2,
		TradeType:    types.ExactInput,
		InputAmount:  types.NewCurrencyAmount(types.ChainMainnet.NativeCurrency(), big.NewInt(1000)),
		OutputAmount: types.NewCurrencyAmount(usdc, big.NewInt(200000)),
	})
	require.NoError(t, err)

	c := &types.SwapTxContext{
		Routing:     types.RoutingDutchV2,
		Trade:       trade,
		OrderParams: &types.OrderRequest{Signature: "0xsig", Quote: json.RawMessage(`{"orderId":"0xMockOrderHash"}`), Routing: types.RoutingDutchV2},
	}
	if approve {
		c.ApproveTxRequest = &types.TxRequest{ChainID: types.ChainMainnet, To: "0xweth", Data: "0x0"}
	}
	if wrap {
		c.WrapTxRequest = &types.TxRequest{ChainID: types.ChainMainnet, To: "0xweth", Data: "0xd0e30db0", Value: "1000"}
	}
	return c
}

func nonces(sent []transaction.SendParams) []uint64 {
	out := make([]uint64, 0, len(sent))
	for _, p := range sent {
		out = append(out, *p.Request.Nonce)
	}
	return out
}

func TestApproveAndSwap_NoApproval(t *testing.T) {
	nonceSrc := &mockNonces{nonce: 1}
	sender := &mockSender{}
	sink := &telemetry.Recorder{}
	cb := &recorded{}
	s := New(nonceSrc, sender, relays(false), nil, sink)

	res, err := s.ApproveAndSwap(context.Background(), SwapParams{
		TxID: "1", Account: account, Context: classicContext(t, false, false), Callbacks: cb.callbacks(),
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []uint64{1}, nonces(sender.sent))
	assert.Equal(t, "1", sender.sent[0].TxID)
	assert.Equal(t, transaction.TypeSwap, sender.sent[0].TypeInfo.Type())
	assert.Equal(t, "0xswap-1", res.Hash)
	assert.Equal(t, []string{"0xswap-1"}, cb.submits)
	assert.Empty(t, cb.failures)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, telemetry.EventSwapSubmitted, events[0].Name)
	assert.Equal(t, "0xswap-1", events[0].Props["tx_hash"])
}

func TestApproveAndSwap_ApprovalIncrementsNonce(t *testing.T) {
	sender := &mockSender{}
	s := New(&mockNonces{nonce: 1}, sender, nil, nil, nil)

	res, err := s.ApproveAndSwap(context.Background(), SwapParams{
		TxID: "1", Account: account, Context: classicContext(t, true, false),
	})
	require.NoError(t, err)

	assert.Equal(t, []uint64{1, 2}, nonces(sender.sent))
	approve, ok := sender.sent[0].TypeInfo.(transaction.ApproveInfo)
	require.True(t, ok)
	assert.Equal(t, dai.Address, approve.TokenAddress)
	assert.Equal(t, types.Permit2Address, approve.Spender)
	assert.Equal(t, "1", approve.SwapTxID)
	assert.NotEqual(t, "1", sender.sent[0].TxID)
	assert.Equal(t, "0xapprove-1", res.ApproveHash)
}

func TestApproveAndSwap_ApprovalAndWrap(t *testing.T) {
	sender := &mockSender{}
	s := New(&mockNonces{nonce: 7}, sender, nil, nil, nil)

	_, err := s.ApproveAndSwap(context.Background(), SwapParams{
		TxID: "1", Account: account, Context: classicContext(t, true, true),
	})
	require.NoError(t, err)

	assert.Equal(t, []uint64{7, 8, 9}, nonces(sender.sent))
	assert.Equal(t, transaction.TypeApprove, sender.sent[0].TypeInfo.Type())
	assert.Equal(t, transaction.TypeWrap, sender.sent[1].TypeInfo.Type())
	assert.Equal(t, transaction.TypeSwap, sender.sent[2].TypeInfo.Type())
	assert.Equal(t, "1", transaction.ChainedSwapTxID(sender.sent[1].TypeInfo))
}

func TestApproveAndSwap_PrivateRPCDecidedOnce(t *testing.T) {
	tests := []struct {
		name      string
		protected bool
		supported bool
		want      bool
	}{
		{"protected and supported", true, true, true},
		{"protected, unsupported chain", true, false, false},
		{"unprotected", false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nonceSrc := &mockNonces{}
			sender := &mockSender{}
			s := New(nonceSrc, sender, relays(tt.supported), nil, nil)

			res, err := s.ApproveAndSwap(context.Background(), SwapParams{
				Account: account, Context: classicContext(t, true, false), SwapProtected: tt.protected,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.PrivateRPC)
			assert.Equal(t, []bool{tt.want}, nonceSrc.refresh)
			for _, p := range sender.sent {
				assert.Equal(t, tt.want, p.PrivateRPC)
			}
		})
	}
}

func TestApproveAndSwap_Failures(t *testing.T) {
	tests := []struct {
		name   string
		nonces *mockNonces
		failOn transaction.Type
		stage  Stage
		sent   int
	}{
		{"nonce", &mockNonces{err: errors.New("rpc down")}, "", StageNonce, 0},
		{"approval", &mockNonces{}, transaction.TypeApprove, StageApproval, 0},
		{"swap", &mockNonces{}, transaction.TypeSwap, StageSwap, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mockSender{failOn: tt.failOn}
			sink := &telemetry.Recorder{}
			cb := &recorded{}
			s := New(tt.nonces, sender, nil, nil, sink)

			_, err := s.ApproveAndSwap(context.Background(), SwapParams{
				Account: account, Context: classicContext(t, true, false), Callbacks: cb.callbacks(),
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSubmissionFailed)

			var subErr *SubmissionError
			require.ErrorAs(t, err, &subErr)
			assert.Equal(t, tt.stage, subErr.Stage)
			assert.Len(t, sender.sent, tt.sent)
			assert.Len(t, cb.failures, 1)
			assert.Empty(t, cb.submits)

			events := sink.Events()
			require.Len(t, events, 1)
			assert.Equal(t, telemetry.EventSubmissionFailed, events[0].Name)
		})
	}
}

func TestApproveAndSwap_InvalidContext(t *testing.T) {
	cb := &recorded{}
	s := New(&mockNonces{}, &mockSender{}, nil, nil, nil)
	c := classicContext(t, false, false)
	c.TxRequest = nil

	_, err := s.ApproveAndSwap(context.Background(), SwapParams{Account: account, Context: c, Callbacks: cb.callbacks()})
	assert.ErrorIs(t, err, types.ErrInvalidTxContext)
	assert.ErrorIs(t, err, ErrSubmissionFailed)
	assert.Len(t, cb.failures, 1)
}

func TestApproveAndSwap_OrderHandoff(t *testing.T) {
	sender := &mockSender{}
	orders := &mockOrders{}
	sink := &telemetry.Recorder{}
	s := New(&mockNonces{nonce: 4}, sender, nil, orders, sink)

	res, err := s.ApproveAndSwap(context.Background(), SwapParams{
		TxID: "1", Account: account, Context: orderContext(t, true, true),
	})
	require.NoError(t, err)

	assert.Equal(t, []uint64{4, 5}, nonces(sender.sent))
	require.Len(t, orders.params, 1)
	p := orders.params[0]
	assert.Equal(t, "0xapprove-4", p.ApproveTxHash)
	assert.Equal(t, "0xwrap-5", p.WrapTxHash)
	assert.Equal(t, "1", p.TxID)
	assert.Equal(t, "0xMockOrderHash", res.Hash)
	require.NotNil(t, res.Order)
	assert.Equal(t, transaction.QueueSubmitted, res.Order.QueueStatus)
	assert.Empty(t, sink.Events(), "order telemetry belongs to the coordinator")
}

func TestApproveAndSwap_OrderWithoutPrerequisitesSkipsNonce(t *testing.T) {
	nonceSrc := &mockNonces{}
	orders := &mockOrders{}
	s := New(nonceSrc, &mockSender{}, nil, orders, nil)

	_, err := s.ApproveAndSwap(context.Background(), SwapParams{Account: account, Context: orderContext(t, false, false)})
	require.NoError(t, err)
	assert.Equal(t, 0, nonceSrc.calls)
	require.Len(t, orders.params, 1)
	assert.Empty(t, orders.params[0].ApproveTxHash)
	assert.Empty(t, orders.params[0].WrapTxHash)
}

// The order is only posted once both prerequisite transactions finalize, and
// the stored order references the hashes the sequencer broadcast.
func TestApproveAndSwap_OrderWaitsForPrerequisites(t *testing.T) {
	store, err := transaction.NewStore(nil)
	require.NoError(t, err)
	events := transaction.NewEvents()
	events.Attach(store)

	intake := &countingIntake{}
	coord := order.NewCoordinator(store, events, intake, nil)
	sender := &storeSender{store: store}
	s := New(&mockNonces{nonce: 0}, sender, nil, coord, nil)

	txCtx := orderContext(t, true, true)
	done := make(chan Result, 1)
	go func() {
		res, err := s.ApproveAndSwap(context.Background(), SwapParams{TxID: "swap", Account: account, Context: txCtx})
		assert.NoError(t, err)
		done <- res
	}()

	assert.Eventually(t, func() bool {
		rec, err := store.Get("swap")
		return err == nil && rec.Order.QueueStatus == transaction.QueueWaiting
	}, timeout, tick)

	approveID, wrapID := sender.idFor(transaction.TypeApprove), sender.idFor(transaction.TypeWrap)
	_, err = store.Update(wrapID, transaction.WithStatus(transaction.StatusSuccess))
	require.NoError(t, err)
	assert.Equal(t, 0, intake.count())
	_, err = store.Update(approveID, transaction.WithStatus(transaction.StatusSuccess))
	require.NoError(t, err)

	res := <-done
	assert.Equal(t, 1, intake.count())
	rec, err := store.Get("swap")
	require.NoError(t, err)
	assert.Equal(t, transaction.QueueSubmitted, rec.Order.QueueStatus)
	assert.Equal(t, res.ApproveHash, rec.Order.ApproveTxHash)
	assert.Equal(t, res.WrapHash, rec.Order.WrapTxHash)
}

func TestWrap(t *testing.T) {
	sender := &mockSender{}
	sink := &telemetry.Recorder{}
	cb := &recorded{}
	s := New(&mockNonces{nonce: 3}, sender, nil, nil, sink)

	res, err := s.Wrap(context.Background(), WrapParams{
		Account: account, ChainID: types.ChainMainnet, WrapType: types.WrapTypeUnwrap,
		Amount: big.NewInt(5), Callbacks: cb.callbacks(),
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	info := sender.sent[0].TypeInfo.(transaction.WrapInfo)
	assert.True(t, info.Unwrapped)
	assert.Equal(t, "5", info.CurrencyAmountRaw)
	assert.Equal(t, []string{res.Hash}, cb.submits)
	assert.Equal(t, telemetry.EventWrapSubmitted, sink.Events()[0].Name)

	_, err = s.Wrap(context.Background(), WrapParams{Account: account, ChainID: types.ChainMainnet, WrapType: types.WrapTypeWrap})
	assert.ErrorIs(t, err, ErrSubmissionFailed)
}

func TestTransfer(t *testing.T) {
	sender := &mockSender{}
	s := New(&mockNonces{nonce: 2}, sender, nil, nil, nil)
	recipient := "0x2222222222222222222222222222222222222222"

	_, err := s.Transfer(context.Background(), TransferParams{
		Account: account, Recipient: recipient, Amount: types.NewCurrencyAmount(usdc, big.NewInt(7)),
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []uint64{2}, nonces(sender.sent))
	info := sender.sent[0].TypeInfo.(transaction.SendInfo)
	assert.Equal(t, recipient, info.Recipient)
	assert.Equal(t, usdc.Address, info.TokenAddress)
	assert.Equal(t, usdc.Address, sender.sent[0].Request.To)

	_, err = s.Transfer(context.Background(), TransferParams{Account: account, Recipient: recipient})
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, StageTransfer, subErr.Stage)
}

func TestSwapInfo(t *testing.T) {
	info := SwapInfo(classicContext(t, false, false).Trade)
	assert.Equal(t, dai.ID(), info.InputCurrencyID)
	assert.Equal(t, "10000", info.InputCurrencyAmountRaw)
	assert.Equal(t, "199000", info.MinimumOutputCurrencyAmountRaw)
	assert.Empty(t, info.MaximumInputCurrencyAmountRaw)
}
