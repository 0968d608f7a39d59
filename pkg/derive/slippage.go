package derive

import (
	"errors"

	"github.com/shopspring/decimal"

	"wallet-swap/pkg/types"
)

// Slippage tolerances are percentages
var (
	MinAutoSlippageTolerance = decimal.RequireFromString("0.1")
	MaxAutoSlippageTolerance = decimal.RequireFromString("5.5")
	MaxCustomSlippage        = decimal.NewFromInt(20)

	autoSlippageCushion = decimal.RequireFromString("1.5")
)

var (
	ErrSlippageTooHigh = errors.New("slippage tolerance exceeds maximum")
	ErrSlippageInvalid = errors.New("slippage tolerance must be positive")
)

// AutoSlippage computes a tolerance for a trade when the user has not set one
type AutoSlippage func(trade *types.Trade) decimal.Decimal

// DefaultAutoSlippage scales the quoted price impact and clamps it to the auto range.
// UniswapX trades keep the tolerance they were quoted with.
func DefaultAutoSlippage(trade *types.Trade) decimal.Decimal {
	if trade == nil {
		return MaxAutoSlippageTolerance
	}
	if trade.IsUniswapX() {
		return trade.SlippageTolerance
	}
	s := trade.PriceImpact.Abs().Mul(autoSlippageCushion)
	if s.LessThan(MinAutoSlippageTolerance) {
		return MinAutoSlippageTolerance
	}
	if s.GreaterThan(MaxAutoSlippageTolerance) {
		return MaxAutoSlippageTolerance
	}
	return s
}

// ValidateSlippage checks a user-entered tolerance
func ValidateSlippage(s decimal.Decimal) error {
	if !s.IsPositive() {
		return ErrSlippageInvalid
	}
	if s.GreaterThan(MaxCustomSlippage) {
		return ErrSlippageTooHigh
	}
	return nil
}
