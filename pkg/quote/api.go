package quote

import (
	"encoding/json"
	"fmt"

	"wallet-swap/pkg/types"
)

// RoutingPreference tells the Trading API which routings it may return
type RoutingPreference string

const (
	PreferenceBestPrice RoutingPreference = "BEST_PRICE"
	PreferenceClassic   RoutingPreference = "CLASSIC"
)

// QuoteRequest is the body of POST /quote
type QuoteRequest struct {
	Type              types.TradeType   `json:"type"`
	Amount            string            `json:"amount"`
	Swapper           string            `json:"swapper"`
	TokenIn           string            `json:"tokenIn"`
	TokenOut          string            `json:"tokenOut"`
	TokenInChainID    int64             `json:"tokenInChainId"`
	TokenOutChainID   int64             `json:"tokenOutChainId"`
	SlippageTolerance *float64          `json:"slippageTolerance,omitempty"`
	RoutingPreference RoutingPreference `json:"routingPreference,omitempty"`
}

// QuoteResponse is the body returned by POST /quote
type QuoteResponse struct {
	RequestID  string          `json:"requestId"`
	Routing    types.Routing   `json:"routing"`
	Quote      json.RawMessage `json:"quote"`
	PermitData json.RawMessage `json:"permitData,omitempty"`
}

// HasQuote reports whether the response carries a quote body
func (r *QuoteResponse) HasQuote() bool {
	return r != nil && len(r.Quote) > 0 && string(r.Quote) != "null"
}

// HasPermitData reports whether the quote needs an off-chain permit signature
func (r *QuoteResponse) HasPermitData() bool {
	return r != nil && len(r.PermitData) > 0 && string(r.PermitData) != "null"
}

type tokenAmount struct {
	Amount    string `json:"amount"`
	Token     string `json:"token"`
	Recipient string `json:"recipient,omitempty"`
}

type classicQuote struct {
	Input       tokenAmount       `json:"input"`
	Output      tokenAmount       `json:"output"`
	Swapper     string            `json:"swapper"`
	ChainID     int64             `json:"chainId"`
	Slippage    float64           `json:"slippage"`
	TradeType   types.TradeType   `json:"tradeType"`
	GasFee      string            `json:"gasFee"`
	Route       []json.RawMessage `json:"route"`
	PriceImpact float64           `json:"priceImpact"`
	QuoteID     string            `json:"quoteId"`
	BlockNumber string            `json:"blockNumber"`
}

type dutchAmount struct {
	StartAmount string `json:"startAmount"`
	EndAmount   string `json:"endAmount"`
	Token       string `json:"token"`
	Recipient   string `json:"recipient,omitempty"`
}

type dutchQuote struct {
	OrderID   string `json:"orderId"`
	OrderInfo *struct {
		ChainID  int64         `json:"chainId"`
		Swapper  string        `json:"swapper"`
		Deadline int64         `json:"deadline"`
		Input    dutchAmount   `json:"input"`
		Outputs  []dutchAmount `json:"outputs"`
	} `json:"orderInfo"`
	QuoteID           string  `json:"quoteId"`
	SlippageTolerance float64 `json:"slippageTolerance"`
}

// ApprovalRequest is the body of POST /check_approval
type ApprovalRequest struct {
	WalletAddress  string `json:"walletAddress"`
	Token          string `json:"token"`
	Amount         string `json:"amount"`
	ChainID        int64  `json:"chainId"`
	IncludeGasInfo bool   `json:"includeGasInfo,omitempty"`
}

// ApprovalResponse carries the approval transaction when one is needed
type ApprovalResponse struct {
	RequestID string           `json:"requestId"`
	Approval  *types.TxRequest `json:"approval"`
	Cancel    *types.TxRequest `json:"cancel,omitempty"`
	GasFee    string           `json:"gasFee,omitempty"`
}

// SwapRequest is the body of POST /swap
type SwapRequest struct {
	Quote      json.RawMessage `json:"quote"`
	Signature  string          `json:"signature,omitempty"`
	PermitData json.RawMessage `json:"permitData,omitempty"`
	Deadline   int64           `json:"deadline,omitempty"`
	Simulate   bool            `json:"simulateTransaction,omitempty"`
}

// SwapResponse carries the classic swap transaction
type SwapResponse struct {
	RequestID string          `json:"requestId"`
	Swap      types.TxRequest `json:"swap"`
	GasFee    string          `json:"gasFee,omitempty"`
}

// APIError is the Trading API error envelope
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"errorCode"`
	Detail     string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("trading api: %s (status %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("trading api: %s: %s (status %d)", e.Code, e.Detail, e.StatusCode)
}
