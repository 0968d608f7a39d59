package evm

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/transaction"
	"wallet-swap/pkg/types"
)

type fakeClient struct {
	ChainClient

	mu          sync.Mutex
	nonce       uint64
	nonceCalls  int
	gasPrice    *big.Int
	gasEstimate uint64
	sent        []*ethtypes.Transaction
	receipts    map[common.Hash]*ethtypes.Receipt
	balance     *big.Int
	callResult  []byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		gasPrice:    big.NewInt(1_000_000_000),
		gasEstimate: 100_000,
		receipts:    make(map[common.Hash]*ethtypes.Receipt),
		balance:     new(big.Int),
	}
}

func (f *fakeClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonceCalls++
	return f.nonce, nil
}

func (f *fakeClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return f.gasEstimate, nil
}

func (f *fakeClient) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return f.callResult, nil
}

func (f *fakeClient) Close() {}

func (f *fakeClient) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestSigner(t *testing.T, clients *Clients) (*Signer, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	s, err := NewSigner(clients, hexutil.Encode(crypto.FromECDSA(key)))
	require.NoError(t, err)
	return s, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestSigner_SubmitUsesPinnedNonce(t *testing.T) {
	public := newFakeClient()
	public.nonce = 3
	clients := NewClients()
	clients.Set(types.ChainMainnet, public, nil)
	signer, account := newTestSigner(t, clients)

	req := types.TxRequest{To: "0x1111111111111111111111111111111111111111", Value: "0x10", GasLimit: "21000"}.WithNonce(7)
	hash, err := signer.Submit(context.Background(), types.ChainMainnet, account, req, transaction.SubmitOptions{})
	require.NoError(t, err)

	require.Len(t, public.sent, 1)
	tx := public.sent[0]
	assert.Equal(t, tx.Hash().Hex(), hash)
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(21000), tx.Gas())
	assert.Equal(t, int64(16), tx.Value().Int64())
	assert.Equal(t, 0, public.nonceCalls)

	from, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(big.NewInt(1)), tx)
	require.NoError(t, err)
	assert.Equal(t, account, from.Hex())
}

func TestSigner_SubmitEstimatesGasAndFetchesNonce(t *testing.T) {
	public := newFakeClient()
	public.nonce = 11
	clients := NewClients()
	clients.Set(types.ChainBase, public, nil)
	signer, account := newTestSigner(t, clients)

	_, err := signer.Submit(context.Background(), types.ChainBase, account, types.TxRequest{
		To:   "0x1111111111111111111111111111111111111111",
		Data: "0xd0e30db0",
	}, transaction.SubmitOptions{})
	require.NoError(t, err)

	require.Len(t, public.sent, 1)
	assert.Equal(t, uint64(11), public.sent[0].Nonce())
	assert.Equal(t, uint64(120_000), public.sent[0].Gas())
}

func TestSigner_PrivateRPC(t *testing.T) {
	public, private := newFakeClient(), newFakeClient()
	clients := NewClients()
	clients.Set(types.ChainMainnet, public, private)
	signer, account := newTestSigner(t, clients)

	req := types.TxRequest{To: "0x1111111111111111111111111111111111111111", GasLimit: "21000"}.WithNonce(0)
	_, err := signer.Submit(context.Background(), types.ChainMainnet, account, req, transaction.SubmitOptions{PrivateRPC: true})
	require.NoError(t, err)

	assert.Equal(t, 0, public.sentCount())
	assert.Equal(t, 1, private.sentCount())
	assert.True(t, clients.SupportsPrivateRPC(types.ChainMainnet))
	assert.False(t, clients.SupportsPrivateRPC(types.ChainBase))
}

func TestSigner_Errors(t *testing.T) {
	clients := NewClients()
	clients.Set(types.ChainMainnet, newFakeClient(), nil)
	signer, account := newTestSigner(t, clients)

	_, err := signer.Submit(context.Background(), types.ChainMainnet, "0x2222222222222222222222222222222222222222", types.TxRequest{To: account}, transaction.SubmitOptions{})
	assert.Error(t, err)

	_, err = signer.Submit(context.Background(), types.ChainArbitrum, account, types.TxRequest{To: account}, transaction.SubmitOptions{})
	assert.Error(t, err)

	_, err = signer.Submit(context.Background(), types.ChainMainnet, account, types.TxRequest{To: "nope"}, transaction.SubmitOptions{})
	assert.Error(t, err)

	_, err = NewSigner(clients, "not-a-key")
	assert.Error(t, err)
}

const permitJSON = `{
	"domain": {"name": "Permit2", "chainId": 1, "verifyingContract": "0x000000000022D473030F116dDEE9F6B43aC78BA3"},
	"types": {
		"PermitSingle": [
			{"name": "details", "type": "PermitDetails"},
			{"name": "spender", "type": "address"},
			{"name": "sigDeadline", "type": "uint256"}
		],
		"PermitDetails": [
			{"name": "token", "type": "address"},
			{"name": "amount", "type": "uint160"},
			{"name": "expiration", "type": "uint48"},
			{"name": "nonce", "type": "uint48"}
		]
	},
	"values": {
		"details": {
			"token": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			"amount": "1461501637330902918203684832716283019655932542975",
			"expiration": 1700000000,
			"nonce": 0
		},
		"spender": "0x3fC91A3afd70395Cd496C647d5a6CC9D4B2b7FAD",
		"sigDeadline": "1700000000"
	}
}`

func TestPermitTypedData(t *testing.T) {
	td, err := PermitTypedData(json.RawMessage(permitJSON), types.ChainMainnet)
	require.NoError(t, err)

	assert.Equal(t, "PermitSingle", td.PrimaryType)
	assert.Equal(t, "Permit2", td.Domain.Name)
	assert.Len(t, td.Types["EIP712Domain"], 3)
	details := td.Message["details"].(map[string]any)
	assert.Equal(t, "1700000000", details["expiration"])

	_, err = PermitTypedData(json.RawMessage(`{"domain":{}}`), types.ChainMainnet)
	assert.Error(t, err)
}

func TestSigner_SignTypedDataRecoversAccount(t *testing.T) {
	signer, account := newTestSigner(t, NewClients())

	sig, err := signer.SignTypedData(context.Background(), types.ChainMainnet, account, json.RawMessage(permitJSON))
	require.NoError(t, err)

	raw, err := hexutil.Decode(sig)
	require.NoError(t, err)
	require.Len(t, raw, 65)
	assert.Equal(t, byte(27), raw[64]&^1)

	td, err := PermitTypedData(json.RawMessage(permitJSON), types.ChainMainnet)
	require.NoError(t, err)
	hash, _, err := apitypes.TypedDataAndHash(td)
	require.NoError(t, err)

	raw[64] -= 27
	pub, err := crypto.SigToPub(hash, raw)
	require.NoError(t, err)
	assert.Equal(t, account, crypto.PubkeyToAddress(*pub).Hex())
}

func TestNonceResolver(t *testing.T) {
	public := newFakeClient()
	public.nonce = 5
	clients := NewClients()
	clients.Set(types.ChainMainnet, public, nil)
	store, err := transaction.NewStore(nil)
	require.NoError(t, err)

	account := "0x1111111111111111111111111111111111111111"
	r := NewNonceResolver(clients, store)

	n, err := r.Resolve(context.Background(), account, types.ChainMainnet, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)

	// cached within ttl
	_, err = r.Resolve(context.Background(), account, types.ChainMainnet, false)
	require.NoError(t, err)
	assert.Equal(t, 1, public.nonceCalls)

	_, err = r.Resolve(context.Background(), account, types.ChainMainnet, true)
	require.NoError(t, err)
	assert.Equal(t, 2, public.nonceCalls)

	// a locally pending tx the node has not seen yet
	nonce := uint64(8)
	require.NoError(t, store.Add(&transaction.Record{
		ID: "tx-1", ChainID: types.ChainMainnet, Status: transaction.StatusPending,
		TypeInfo: transaction.UnknownInfo{}, From: account, Hash: "0xabc", Nonce: &nonce,
		AddedTime: time.Now().UnixMilli(),
	}))
	n, err = r.Resolve(context.Background(), account, types.ChainMainnet, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), n)

	_, err = r.Resolve(context.Background(), "bad", types.ChainMainnet, false)
	assert.Error(t, err)
}

func TestNonceResolver_ConfirmedInsideCacheWindow(t *testing.T) {
	public := newFakeClient()
	public.nonce = 5
	clients := NewClients()
	clients.Set(types.ChainMainnet, public, nil)
	store, err := transaction.NewStore(nil)
	require.NoError(t, err)

	account := "0x1111111111111111111111111111111111111111"
	r := NewNonceResolver(clients, store)

	n, err := r.Resolve(context.Background(), account, types.ChainMainnet, false)
	require.NoError(t, err)
	require.Equal(t, uint64(5), n)

	for i, id := range []string{"approve", "swap"} {
		nonce := n + uint64(i)
		require.NoError(t, store.Add(&transaction.Record{
			ID: id, ChainID: types.ChainMainnet, Status: transaction.StatusPending,
			TypeInfo: transaction.UnknownInfo{}, From: account, Hash: "0x0" + id, Nonce: &nonce,
			AddedTime: time.Now().UnixMilli(),
		}))
	}
	for _, id := range []string{"approve", "swap"} {
		_, err := store.Update(id, transaction.WithStatus(transaction.StatusSuccess))
		require.NoError(t, err)
	}

	public.mu.Lock()
	public.nonce = 7
	public.mu.Unlock()

	n, err = r.Resolve(context.Background(), account, types.ChainMainnet, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)
	assert.Equal(t, 1, public.nonceCalls, "node nonce still served from cache")

	// another account on the same chain is unaffected
	n, err = r.Resolve(context.Background(), "0x2222222222222222222222222222222222222222", types.ChainMainnet, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)
}

func TestWatcher_Poll(t *testing.T) {
	public := newFakeClient()
	clients := NewClients()
	clients.Set(types.ChainMainnet, public, nil)
	store, err := transaction.NewStore(nil)
	require.NoError(t, err)

	add := func(id, hash string) {
		require.NoError(t, store.Add(&transaction.Record{
			ID: id, ChainID: types.ChainMainnet, Status: transaction.StatusPending,
			TypeInfo: transaction.UnknownInfo{}, From: "0x1111111111111111111111111111111111111111",
			Hash: hash, AddedTime: time.Now().UnixMilli(),
		}))
	}
	okHash := common.HexToHash("0x01")
	revertHash := common.HexToHash("0x02")
	add("ok", okHash.Hex())
	add("revert", revertHash.Hex())
	add("pending", common.HexToHash("0x03").Hex())

	public.receipts[okHash] = &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100), GasUsed: 21000}
	public.receipts[revertHash] = &ethtypes.Receipt{Status: ethtypes.ReceiptStatusFailed, BlockNumber: big.NewInt(101)}

	w := NewWatcher(clients, store, time.Second)
	assert.Equal(t, 2, w.Poll(context.Background()))

	rec, err := store.Get("ok")
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusSuccess, rec.Status)
	require.NotNil(t, rec.Receipt)
	assert.Equal(t, uint64(100), rec.Receipt.BlockNumber)

	rec, err = store.Get("revert")
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusFailed, rec.Status)

	rec, err = store.Get("pending")
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusPending, rec.Status)

	assert.Equal(t, 0, w.Poll(context.Background()))
}

func TestBalances(t *testing.T) {
	public := newFakeClient()
	public.balance = big.NewInt(42)
	public.callResult = common.LeftPadBytes(big.NewInt(1000).Bytes(), 32)
	clients := NewClients()
	clients.Set(types.ChainMainnet, public, nil)
	b := NewBalances(clients)
	account := "0x1111111111111111111111111111111111111111"

	native, err := b.Balance(context.Background(), account, types.ChainMainnet.NativeCurrency())
	require.NoError(t, err)
	assert.Equal(t, int64(42), native.Int64())

	weth, _ := types.ChainMainnet.WrappedNativeCurrency()
	token, err := b.Balance(context.Background(), account, weth)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), token.Int64())
}

func TestCalldata(t *testing.T) {
	data, err := ApproveCalldata(types.Permit2Address, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "0x095ea7b3", data[:10])

	data, err = TransferCalldata("0x1111111111111111111111111111111111111111", big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "0xa9059cbb", data[:10])

	assert.Equal(t, "0xd0e30db0", DepositCalldata())

	data, err = WithdrawCalldata(big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "0x2e1a7d4d", data[:10])

	_, err = TransferCalldata("bad", big.NewInt(1))
	assert.Error(t, err)
}
