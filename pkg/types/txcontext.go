package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
)

// TxRequest is an unsigned EVM transaction as returned by the Trading API
type TxRequest struct {
	ChainID  ChainID `json:"chainId"`
	From     string  `json:"from,omitempty"`
	To       string  `json:"to"`
	Data     string  `json:"data,omitempty"`
	Value    string  `json:"value,omitempty"`
	GasLimit string  `json:"gasLimit,omitempty"`
	Nonce    *uint64 `json:"nonce,omitempty"`
}

// WithNonce returns a copy of the request pinned to nonce n
func (r TxRequest) WithNonce(n uint64) TxRequest {
	r.Nonce = &n
	return r
}

// ValueWei parses Value, accepting decimal or 0x-prefixed hex
func (r TxRequest) ValueWei() (*big.Int, error) {
	if r.Value == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(r.Value, 0)
	if !ok {
		return nil, fmt.Errorf("invalid tx value %q", r.Value)
	}
	return v, nil
}

// Gas parses GasLimit; zero means "estimate"
func (r TxRequest) Gas() (uint64, error) {
	if r.GasLimit == "" {
		return 0, nil
	}
	v, ok := new(big.Int).SetString(r.GasLimit, 0)
	if !ok || !v.IsUint64() {
		return 0, fmt.Errorf("invalid gas limit %q", r.GasLimit)
	}
	return v.Uint64(), nil
}

// OrderRequest is the signed order payload posted to the order intake endpoint
type OrderRequest struct {
	Signature string          `json:"signature"`
	Quote     json.RawMessage `json:"quote"`
	Routing   Routing         `json:"routing"`
}

// OrderHash returns quote.orderId
func (o OrderRequest) OrderHash() string {
	var q struct {
		OrderID string `json:"orderId"`
	}
	if len(o.Quote) == 0 || json.Unmarshal(o.Quote, &q) != nil {
		return ""
	}
	return q.OrderID
}

// GasFeeBreakdown itemizes the gas cost of a UniswapX submission
type GasFeeBreakdown struct {
	ApprovalCost string `json:"approvalCost,omitempty"`
	WrapCost     string `json:"wrapCost,omitempty"`
}

// SwapTxContext is everything needed to execute a trade, discriminated by Routing
type SwapTxContext struct {
	Routing          Routing
	Trade            *Trade
	ApproveTxRequest *TxRequest
	WrapTxRequest    *TxRequest

	// classic
	TxRequest *TxRequest
	GasFee    string

	// uniswapx
	OrderParams     *OrderRequest
	GasFeeBreakdown *GasFeeBreakdown
}

var (
	ErrInvalidTxContext = errors.New("invalid swap tx context")
)

// Validate checks that exactly one of TxRequest / OrderParams is populated for the routing
func (c *SwapTxContext) Validate() error {
	if c.Trade == nil {
		return fmt.Errorf("%w: missing trade", ErrInvalidTxContext)
	}
	if c.Routing.IsUniswapX() {
		if c.OrderParams == nil || c.TxRequest != nil {
			return fmt.Errorf("%w: %s routing requires order params only", ErrInvalidTxContext, c.Routing)
		}
		return nil
	}
	if c.Routing != RoutingClassic {
		return fmt.Errorf("%w: unknown routing %q", ErrInvalidTxContext, c.Routing)
	}
	if c.TxRequest == nil || c.OrderParams != nil {
		return fmt.Errorf("%w: classic routing requires a tx request only", ErrInvalidTxContext)
	}
	return nil
}
