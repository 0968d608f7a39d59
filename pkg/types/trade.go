package types

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TradeType selects which side of a trade is fixed
type TradeType string

const (
	ExactInput  TradeType = "EXACT_INPUT"
	ExactOutput TradeType = "EXACT_OUTPUT"
)

// Routing identifies how a trade is executed
type Routing string

const (
	RoutingClassic  Routing = "CLASSIC"
	RoutingDutchV2  Routing = "DUTCH_V2"
	RoutingUniswapX Routing = "DUTCH_LIMIT"
)

// IsUniswapX reports whether the routing settles through a signed off-chain order
func (r Routing) IsUniswapX() bool {
	return r == RoutingDutchV2 || r == RoutingUniswapX
}

// WrapType describes a native <-> wrapped-native conversion
type WrapType int

const (
	WrapNotApplicable WrapType = iota
	WrapTypeWrap
	WrapTypeUnwrap
)

func (w WrapType) String() string {
	switch w {
	case WrapTypeWrap:
		return "wrap"
	case WrapTypeUnwrap:
		return "unwrap"
	default:
		return "not-applicable"
	}
}

// GetWrapType compares the input/output pair against the chain's native/wrapped-native pair
func GetWrapType(in, out *Currency) WrapType {
	if in == nil || out == nil || in.ChainID != out.ChainID {
		return WrapNotApplicable
	}
	if in.IsNative && out.IsWrappedNative() {
		return WrapTypeWrap
	}
	if in.IsWrappedNative() && out.IsNative {
		return WrapTypeUnwrap
	}
	return WrapNotApplicable
}

// DefaultSwapValidity is how long a quoted trade stays executable
const DefaultSwapValidity = 30 * time.Minute

var (
	ErrSameCurrency   = errors.New("input and output currency must differ")
	ErrMissingAmounts = errors.New("trade amounts are required")
)

// Trade is a priced exchange. Routing discriminates classic trades from UniswapX trades.
type Trade struct {
	Routing           Routing
	TradeType         TradeType
	InputAmount       *CurrencyAmount
	OutputAmount      *CurrencyAmount
	SlippageTolerance decimal.Decimal
	PriceImpact       decimal.Decimal
	Deadline          int64
	RequestID         string
	Quote             json.RawMessage
	PermitData        json.RawMessage
	BlockNumber       string
	GasFee            string
}

// TradeParams holds the fields needed to construct a Trade
type TradeParams struct {
	Routing           Routing
	TradeType         TradeType
	InputAmount       *CurrencyAmount
	OutputAmount      *CurrencyAmount
	SlippageTolerance decimal.Decimal
	PriceImpact       decimal.Decimal
	Deadline          int64
	RequestID         string
	Quote             json.RawMessage
	PermitData        json.RawMessage
	BlockNumber       string
	GasFee            string
}

// NewTrade validates params and builds an immutable trade
func NewTrade(p TradeParams) (*Trade, error) {
	if p.InputAmount == nil || p.OutputAmount == nil {
		return nil, ErrMissingAmounts
	}
	if p.InputAmount.Currency.Equal(p.OutputAmount.Currency) {
		return nil, ErrSameCurrency
	}
	return &Trade{
		Routing:           p.Routing,
		TradeType:         p.TradeType,
		InputAmount:       NewCurrencyAmount(p.InputAmount.Currency, p.InputAmount.Raw),
		OutputAmount:      NewCurrencyAmount(p.OutputAmount.Currency, p.OutputAmount.Raw),
		SlippageTolerance: p.SlippageTolerance,
		PriceImpact:       p.PriceImpact,
		Deadline:          p.Deadline,
		RequestID:         p.RequestID,
		Quote:             append(json.RawMessage(nil), p.Quote...),
		PermitData:        append(json.RawMessage(nil), p.PermitData...),
		BlockNumber:       p.BlockNumber,
		GasFee:            p.GasFee,
	}, nil
}

// WithSlippage returns a copy of the trade using the given tolerance (percent)
func (t *Trade) WithSlippage(tolerance decimal.Decimal) *Trade {
	cp := *t
	cp.SlippageTolerance = tolerance
	return &cp
}

// IsUniswapX reports whether the trade is filled by an off-chain order
func (t *Trade) IsUniswapX() bool {
	return t.Routing.IsUniswapX()
}

// MinimumAmountOut applies slippage to the output side of an exact-input trade
func (t *Trade) MinimumAmountOut() *CurrencyAmount {
	if t.TradeType == ExactOutput {
		return t.OutputAmount
	}
	factor := decimal.NewFromInt(100).Sub(t.SlippageTolerance).Div(decimal.NewFromInt(100))
	raw := decimal.NewFromBigInt(t.OutputAmount.Raw, 0).Mul(factor).Floor()
	return NewCurrencyAmount(t.OutputAmount.Currency, raw.BigInt())
}

// MaximumAmountIn applies slippage to the input side of an exact-output trade
func (t *Trade) MaximumAmountIn() *CurrencyAmount {
	if t.TradeType == ExactInput {
		return t.InputAmount
	}
	factor := decimal.NewFromInt(100).Add(t.SlippageTolerance).Div(decimal.NewFromInt(100))
	raw := decimal.NewFromBigInt(t.InputAmount.Raw, 0).Mul(factor).Ceil()
	return NewCurrencyAmount(t.InputAmount.Currency, raw.BigInt())
}

// ExecutionPrice is output per unit of input, in whole units
func (t *Trade) ExecutionPrice() decimal.Decimal {
	in := t.InputAmount.Decimal()
	if in.IsZero() {
		return decimal.Zero
	}
	return t.OutputAmount.Decimal().Div(in)
}

// IsExpired reports whether the trade deadline has passed
func (t *Trade) IsExpired(now time.Time) bool {
	return t.Deadline > 0 && now.Unix() > t.Deadline
}
