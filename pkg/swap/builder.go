package swap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	log "github.com/sirupsen/logrus"

	"wallet-swap/pkg/chain/evm"
	"wallet-swap/pkg/derive"
	"wallet-swap/pkg/quote"
	"wallet-swap/pkg/types"
)

var (
	ErrMissingPermitData = errors.New("order quote has no permit data to sign")
	ErrNoWrappedNative   = errors.New("chain has no wrapped native currency")
)

// TradingAPI is the part of the Trading API needed to turn a trade into transactions
type TradingAPI interface {
	CheckApproval(ctx context.Context, req quote.ApprovalRequest) (*quote.ApprovalResponse, error)
	Swap(ctx context.Context, req quote.SwapRequest) (*quote.SwapResponse, error)
}

// TypedDataSigner signs EIP-712 permit data
type TypedDataSigner interface {
	SignTypedData(ctx context.Context, chainID types.ChainID, account string, permitData json.RawMessage) (string, error)
}

// Builder assembles a SwapTxContext for a trade
type Builder struct {
	api    TradingAPI
	signer TypedDataSigner
	logger *log.Entry
}

// NewBuilder creates a builder
func NewBuilder(api TradingAPI, signer TypedDataSigner) *Builder {
	return &Builder{
		api:    api,
		signer: signer,
		logger: log.WithField("component", "swap-builder"),
	}
}

// Build checks approval and produces either the classic swap transaction or
// the signed order for the trade
func (b *Builder) Build(ctx context.Context, account string, trade *types.Trade) (*types.SwapTxContext, error) {
	if trade == nil {
		return nil, fmt.Errorf("%w: missing trade", types.ErrInvalidTxContext)
	}
	chainID := trade.InputAmount.Currency.ChainID

	txCtx := &types.SwapTxContext{
		Routing: trade.Routing,
		Trade:   trade,
	}

	approval, err := b.checkApproval(ctx, account, trade)
	if err != nil {
		return nil, err
	}
	if approval != nil && approval.Approval != nil {
		req := *approval.Approval
		req.ChainID = chainID
		txCtx.ApproveTxRequest = &req
	}

	if trade.IsUniswapX() {
		if err := b.buildOrder(ctx, account, trade, txCtx); err != nil {
			return nil, err
		}
		if approval != nil && approval.GasFee != "" {
			txCtx.GasFeeBreakdown = &types.GasFeeBreakdown{ApprovalCost: approval.GasFee}
		}
	} else {
		if err := b.buildClassic(ctx, account, trade, txCtx); err != nil {
			return nil, err
		}
	}

	if err := txCtx.Validate(); err != nil {
		return nil, err
	}

	b.logger.WithFields(log.Fields{
		"routing":  trade.Routing,
		"approval": txCtx.ApproveTxRequest != nil,
		"wrap":     txCtx.WrapTxRequest != nil,
	}).Debug("swap tx context built")
	return txCtx, nil
}

func (b *Builder) checkApproval(ctx context.Context, account string, trade *types.Trade) (*quote.ApprovalResponse, error) {
	currency, needed := derive.ApprovalCurrency(trade.Routing, trade.InputAmount.Currency)
	if !needed {
		return nil, nil
	}
	resp, err := b.api.CheckApproval(ctx, quote.ApprovalRequest{
		WalletAddress:  account,
		Token:          currency.APIAddress(),
		Amount:         trade.MaximumAmountIn().Raw.String(),
		ChainID:        int64(currency.ChainID),
		IncludeGasInfo: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check approval: %w", err)
	}
	return resp, nil
}

func (b *Builder) buildClassic(ctx context.Context, account string, trade *types.Trade, txCtx *types.SwapTxContext) error {
	req := quote.SwapRequest{
		Quote:    trade.Quote,
		Deadline: trade.Deadline,
	}
	if len(trade.PermitData) > 0 {
		sig, err := b.signer.SignTypedData(ctx, trade.InputAmount.Currency.ChainID, account, trade.PermitData)
		if err != nil {
			return fmt.Errorf("failed to sign permit: %w", err)
		}
		req.Signature = sig
		req.PermitData = trade.PermitData
	}

	resp, err := b.api.Swap(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to build swap transaction: %w", err)
	}
	tx := resp.Swap
	tx.ChainID = trade.InputAmount.Currency.ChainID
	txCtx.TxRequest = &tx
	txCtx.GasFee = resp.GasFee
	return nil
}

func (b *Builder) buildOrder(ctx context.Context, account string, trade *types.Trade, txCtx *types.SwapTxContext) error {
	if len(trade.PermitData) == 0 {
		return ErrMissingPermitData
	}
	chainID := trade.InputAmount.Currency.ChainID

	sig, err := b.signer.SignTypedData(ctx, chainID, account, trade.PermitData)
	if err != nil {
		return fmt.Errorf("failed to sign order: %w", err)
	}
	txCtx.OrderParams = &types.OrderRequest{
		Signature: sig,
		Quote:     trade.Quote,
		Routing:   trade.Routing,
	}

	// orders settle in the wrapped token
	if trade.InputAmount.Currency.IsNative {
		wrap, err := WrapRequest(chainID, account, types.WrapTypeWrap, trade.MaximumAmountIn().Raw)
		if err != nil {
			return err
		}
		txCtx.WrapTxRequest = &wrap
	}
	return nil
}

// WrapRequest builds a WETH deposit (wrap) or withdraw (unwrap) transaction
func WrapRequest(chainID types.ChainID, account string, wrapType types.WrapType, amount *big.Int) (types.TxRequest, error) {
	wrapped, ok := chainID.WrappedNativeCurrency()
	if !ok {
		return types.TxRequest{}, fmt.Errorf("%w: %s", ErrNoWrappedNative, chainID)
	}
	req := types.TxRequest{ChainID: chainID, From: account, To: wrapped.Address}

	switch wrapType {
	case types.WrapTypeWrap:
		req.Data = evm.DepositCalldata()
		req.Value = amount.String()
	case types.WrapTypeUnwrap:
		data, err := evm.WithdrawCalldata(amount)
		if err != nil {
			return types.TxRequest{}, err
		}
		req.Data = data
	default:
		return types.TxRequest{}, fmt.Errorf("not a wrap: %s", wrapType)
	}
	return req, nil
}

// TransferRequest builds a native send or an ERC-20 transfer
func TransferRequest(account, recipient string, amount *types.CurrencyAmount) (types.TxRequest, error) {
	if amount == nil || amount.IsZero() {
		return types.TxRequest{}, types.ErrMissingAmounts
	}
	c := amount.Currency
	if c.IsNative {
		return types.TxRequest{ChainID: c.ChainID, From: account, To: recipient, Value: amount.Raw.String()}, nil
	}
	data, err := evm.TransferCalldata(recipient, amount.Raw)
	if err != nil {
		return types.TxRequest{}, err
	}
	return types.TxRequest{ChainID: c.ChainID, From: account, To: c.Address, Data: data}, nil
}
