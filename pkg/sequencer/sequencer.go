package sequencer

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	log "github.com/sirupsen/logrus"

	"wallet-swap/pkg/order"
	"wallet-swap/pkg/swap"
	"wallet-swap/pkg/telemetry"
	"wallet-swap/pkg/transaction"
	"wallet-swap/pkg/types"
)

// ErrSubmissionFailed matches every *SubmissionError
var ErrSubmissionFailed = errors.New("submission failed")

// Stage names the step of a sequence that failed
type Stage string

const (
	StageNonce    Stage = "nonce"
	StageApproval Stage = "approval"
	StageWrap     Stage = "wrap"
	StageSwap     Stage = "swap"
	StageTransfer Stage = "transfer"
	StageOrder    Stage = "order"
)

// SubmissionError reports which stage of a sequence failed
type SubmissionError struct {
	Stage Stage
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s submission failed: %v", e.Stage, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func (e *SubmissionError) Is(target error) bool { return target == ErrSubmissionFailed }

// NonceResolver returns the first nonce to use for an account
type NonceResolver interface {
	Resolve(ctx context.Context, account string, chainID types.ChainID, forceRefresh bool) (uint64, error)
}

// TxSender broadcasts a transaction and records it
type TxSender interface {
	Send(ctx context.Context, p transaction.SendParams) (*transaction.Record, error)
}

// RelaySupport reports whether a chain has a private relay configured
type RelaySupport interface {
	SupportsPrivateRPC(chainID types.ChainID) bool
}

// OrderSubmitter hands a signed order to the order coordinator
type OrderSubmitter interface {
	Submit(ctx context.Context, p order.Params) (order.Outcome, error)
}

// Callbacks report the terminal result of a sequence
type Callbacks struct {
	OnSubmit  func(hash string)
	OnFailure func(err error)
}

// SwapParams describes an approve-and-swap sequence
type SwapParams struct {
	TxID          string
	Account       string
	Context       *types.SwapTxContext
	SwapProtected bool
	Callbacks
}

// WrapParams describes a standalone wrap or unwrap
type WrapParams struct {
	TxID          string
	Account       string
	ChainID       types.ChainID
	WrapType      types.WrapType
	Amount        *big.Int
	SwapProtected bool
	Callbacks
}

// TransferParams describes a native or token send
type TransferParams struct {
	TxID          string
	Account       string
	Recipient     string
	Amount        *types.CurrencyAmount
	SwapProtected bool
	Callbacks
}

// Result holds the hashes produced by a sequence
type Result struct {
	TxID        string
	BaseNonce   uint64
	PrivateRPC  bool
	ApproveHash string
	WrapHash    string
	Hash        string
	Order       *order.Outcome
}

// Sequencer submits dependent transactions with consecutive nonces
type Sequencer struct {
	nonces NonceResolver
	sender TxSender
	relays RelaySupport
	orders OrderSubmitter
	sink   telemetry.Sink
	logger *log.Entry
}

// New creates a sequencer; relays, orders and sink may be nil
func New(nonces NonceResolver, sender TxSender, relays RelaySupport, orders OrderSubmitter, sink telemetry.Sink) *Sequencer {
	if sink == nil {
		sink = telemetry.Nop{}
	}
	return &Sequencer{
		nonces: nonces,
		sender: sender,
		relays: relays,
		orders: orders,
		sink:   sink,
		logger: log.WithField("component", "sequencer"),
	}
}

type step struct {
	stage Stage
	req   types.TxRequest
	info  transaction.TypeInfo
	txID  string
}

type sequence struct {
	txID      string
	account   string
	chainID   types.ChainID
	protected bool
	steps     []step
	event     string
	props     map[string]any
	cb        Callbacks
}

// ApproveAndSwap submits the optional approval, the optional wrap and then the
// swap at consecutive nonces. Orders are handed to the coordinator together
// with the approval and wrap hashes once those are broadcast.
func (s *Sequencer) ApproveAndSwap(ctx context.Context, p SwapParams) (Result, error) {
	txCtx := p.Context
	if txCtx == nil {
		return s.fail(Result{TxID: p.TxID}, p.Callbacks, StageSwap, fmt.Errorf("%w: missing tx context", types.ErrInvalidTxContext))
	}
	if err := txCtx.Validate(); err != nil {
		return s.fail(Result{TxID: p.TxID}, p.Callbacks, StageSwap, err)
	}
	if p.TxID == "" {
		p.TxID = transaction.NewID()
	}
	trade := txCtx.Trade
	chainID := trade.InputAmount.Currency.ChainID

	seq := sequence{
		txID:      p.TxID,
		account:   p.Account,
		chainID:   chainID,
		protected: p.SwapProtected,
		event:     telemetry.EventSwapSubmitted,
		props:     map[string]any{"routing": txCtx.Routing, "chain_id": int64(chainID)},
		cb:        p.Callbacks,
	}
	if txCtx.ApproveTxRequest != nil {
		seq.steps = append(seq.steps, step{
			stage: StageApproval,
			req:   *txCtx.ApproveTxRequest,
			info: transaction.ApproveInfo{
				TokenAddress: txCtx.ApproveTxRequest.To,
				Spender:      types.Permit2Address,
				SwapTxID:     p.TxID,
			},
			txID: transaction.NewID(),
		})
	}
	if txCtx.WrapTxRequest != nil {
		seq.steps = append(seq.steps, step{
			stage: StageWrap,
			req:   *txCtx.WrapTxRequest,
			info: transaction.WrapInfo{
				CurrencyAmountRaw: txCtx.WrapTxRequest.Value,
				SwapTxID:          p.TxID,
			},
			txID: transaction.NewID(),
		})
	}
	if txCtx.TxRequest != nil {
		seq.steps = append(seq.steps, step{
			stage: StageSwap,
			req:   *txCtx.TxRequest,
			info:  SwapInfo(trade),
			txID:  p.TxID,
		})
	}

	if !txCtx.Routing.IsUniswapX() {
		return s.run(ctx, seq)
	}

	// prerequisites only; success is reported by the coordinator
	prereqs := seq
	prereqs.cb = Callbacks{OnFailure: p.OnFailure}
	prereqs.event = ""
	res, err := s.run(ctx, prereqs)
	if err != nil {
		return res, err
	}
	if s.orders == nil {
		return s.fail(res, Callbacks{OnFailure: p.OnFailure}, StageOrder, errors.New("no order coordinator configured"))
	}

	outcome, err := s.orders.Submit(ctx, order.Params{
		TxID:          p.TxID,
		ChainID:       chainID,
		Account:       p.Account,
		TypeInfo:      SwapInfo(trade),
		Order:         *txCtx.OrderParams,
		ApproveTxHash: res.ApproveHash,
		WrapTxHash:    res.WrapHash,
		OnSubmit:      p.OnSubmit,
		OnFailure:     p.OnFailure,
	})
	res.Order = &outcome
	res.Hash = outcome.OrderHash
	return res, err
}

// Wrap submits a single wrap or unwrap
func (s *Sequencer) Wrap(ctx context.Context, p WrapParams) (Result, error) {
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return s.fail(Result{TxID: p.TxID}, p.Callbacks, StageWrap, types.ErrMissingAmounts)
	}
	req, err := swap.WrapRequest(p.ChainID, p.Account, p.WrapType, p.Amount)
	if err != nil {
		return s.fail(Result{TxID: p.TxID}, p.Callbacks, StageWrap, err)
	}
	if p.TxID == "" {
		p.TxID = transaction.NewID()
	}
	return s.run(ctx, sequence{
		txID:      p.TxID,
		account:   p.Account,
		chainID:   p.ChainID,
		protected: p.SwapProtected,
		steps: []step{{
			stage: StageWrap,
			req:   req,
			info: transaction.WrapInfo{
				Unwrapped:         p.WrapType == types.WrapTypeUnwrap,
				CurrencyAmountRaw: p.Amount.String(),
			},
			txID: p.TxID,
		}},
		event: telemetry.EventWrapSubmitted,
		props: map[string]any{"type": p.WrapType.String(), "chain_id": int64(p.ChainID)},
		cb:    p.Callbacks,
	})
}

// Transfer submits a single native or ERC-20 send
func (s *Sequencer) Transfer(ctx context.Context, p TransferParams) (Result, error) {
	req, err := swap.TransferRequest(p.Account, p.Recipient, p.Amount)
	if err != nil {
		return s.fail(Result{TxID: p.TxID}, p.Callbacks, StageTransfer, err)
	}
	if p.TxID == "" {
		p.TxID = transaction.NewID()
	}
	c := p.Amount.Currency
	return s.run(ctx, sequence{
		txID:      p.TxID,
		account:   p.Account,
		chainID:   c.ChainID,
		protected: p.SwapProtected,
		steps: []step{{
			stage: StageTransfer,
			req:   req,
			info: transaction.SendInfo{
				AssetType:         transaction.AssetCurrency,
				Recipient:         p.Recipient,
				TokenAddress:      c.APIAddress(),
				CurrencyAmountRaw: p.Amount.Raw.String(),
			},
			txID: p.TxID,
		}},
		event: telemetry.EventTransferSubmitted,
		props: map[string]any{"currency": c.ID(), "chain_id": int64(c.ChainID)},
		cb:    p.Callbacks,
	})
}

func (s *Sequencer) run(ctx context.Context, seq sequence) (Result, error) {
	res := Result{TxID: seq.txID}
	logger := s.logger.WithFields(log.Fields{"id": seq.txID, "chain": seq.chainID})

	// decided once per sequence
	res.PrivateRPC = seq.protected && s.relays != nil && s.relays.SupportsPrivateRPC(seq.chainID)

	if len(seq.steps) == 0 {
		return res, nil
	}

	nonce, err := s.nonces.Resolve(ctx, seq.account, seq.chainID, res.PrivateRPC)
	if err != nil {
		return s.fail(res, seq.cb, StageNonce, err)
	}
	res.BaseNonce = nonce

	for _, st := range seq.steps {
		req := st.req.WithNonce(nonce)
		if req.ChainID == 0 {
			req.ChainID = seq.chainID
		}
		rec, err := s.sender.Send(ctx, transaction.SendParams{
			TxID:       st.txID,
			ChainID:    seq.chainID,
			Account:    seq.account,
			Request:    req,
			TypeInfo:   st.info,
			PrivateRPC: res.PrivateRPC,
		})
		if err != nil {
			return s.fail(res, seq.cb, st.stage, err)
		}
		logger.WithFields(log.Fields{"stage": st.stage, "nonce": nonce, "hash": rec.Hash}).Debug("submitted")

		switch st.stage {
		case StageApproval:
			res.ApproveHash = rec.Hash
		case StageWrap:
			res.WrapHash = rec.Hash
		}
		res.Hash = rec.Hash
		nonce++
	}

	if seq.event != "" {
		props := map[string]any{"tx_hash": res.Hash, "private_rpc": res.PrivateRPC}
		for k, v := range seq.props {
			props[k] = v
		}
		s.sink.Emit(seq.event, props)
		if seq.cb.OnSubmit != nil {
			seq.cb.OnSubmit(res.Hash)
		}
	}
	return res, nil
}

func (s *Sequencer) fail(res Result, cb Callbacks, stage Stage, err error) (Result, error) {
	subErr := &SubmissionError{Stage: stage, Err: err}
	s.logger.WithError(err).WithFields(log.Fields{"id": res.TxID, "stage": stage}).Error("submission failed")
	s.sink.Emit(telemetry.EventSubmissionFailed, map[string]any{"stage": string(stage)})
	if cb.OnFailure != nil {
		cb.OnFailure(subErr)
	}
	return res, subErr
}

// SwapInfo describes a trade for the transaction record
func SwapInfo(trade *types.Trade) transaction.SwapInfo {
	info := transaction.SwapInfo{
		TradeType:                       trade.TradeType,
		InputCurrencyID:                 trade.InputAmount.Currency.ID(),
		OutputCurrencyID:                trade.OutputAmount.Currency.ID(),
		InputCurrencyAmountRaw:          trade.InputAmount.Raw.String(),
		ExpectedOutputCurrencyAmountRaw: trade.OutputAmount.Raw.String(),
		QuoteID:                         trade.RequestID,
	}
	if trade.TradeType == types.ExactOutput {
		info.MaximumInputCurrencyAmountRaw = trade.MaximumAmountIn().Raw.String()
	} else {
		info.MinimumOutputCurrencyAmountRaw = trade.MinimumAmountOut().Raw.String()
	}
	return info
}
