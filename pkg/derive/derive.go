package derive

import (
	"context"
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"wallet-swap/pkg/quote"
	"wallet-swap/pkg/types"
)

// CurrencyField selects a side of the swap form
type CurrencyField string

const (
	FieldInput  CurrencyField = "input"
	FieldOutput CurrencyField = "output"
)

var ErrIncompleteSwapInfo = errors.New("swap info is incomplete")

// FormState is the raw user input of the swap form
type FormState struct {
	Account                 string
	Input                   *types.Currency
	Output                  *types.Currency
	ExactCurrencyField      CurrencyField
	ExactAmountToken        string
	CustomSlippageTolerance *decimal.Decimal
	RoutingPreference       quote.RoutingPreference
	TxID                    string
}

// QuoteSource is the quote fetcher as seen by derivation
type QuoteSource interface {
	Update(p quote.Params)
	Result() quote.Result
}

// BalanceFetcher looks up on-chain balances
type BalanceFetcher interface {
	Balance(ctx context.Context, account string, currency types.Currency) (*big.Int, error)
}

// DerivedSwapInfo is the resolved state of the swap form
type DerivedSwapInfo struct {
	ChainID                 types.ChainID
	Account                 string
	InputCurrency           *types.Currency
	OutputCurrency          *types.Currency
	InputAmount             *types.CurrencyAmount
	OutputAmount            *types.CurrencyAmount
	InputBalance            *types.CurrencyAmount
	OutputBalance           *types.CurrencyAmount
	ExactCurrencyField      CurrencyField
	ExactAmountToken        string
	Trade                   quote.Result
	WrapType                types.WrapType
	AutoSlippageTolerance   decimal.Decimal
	CustomSlippageTolerance *decimal.Decimal
	TxID                    string
}

// SlippageTolerance is the custom tolerance if set, otherwise the auto tolerance
func (d DerivedSwapInfo) SlippageTolerance() decimal.Decimal {
	if d.CustomSlippageTolerance != nil {
		return *d.CustomSlippageTolerance
	}
	return d.AutoSlippageTolerance
}

// ReviewAmounts returns both sides of the swap, or ErrIncompleteSwapInfo when
// the form cannot be reviewed yet
func (d DerivedSwapInfo) ReviewAmounts() (*types.CurrencyAmount, *types.CurrencyAmount, error) {
	if d.InputCurrency == nil || d.OutputCurrency == nil || d.InputAmount.IsZero() || d.OutputAmount.IsZero() {
		return nil, nil, ErrIncompleteSwapInfo
	}
	if d.WrapType == types.WrapNotApplicable && d.Trade.Trade == nil {
		return nil, nil, ErrIncompleteSwapInfo
	}
	return d.InputAmount, d.OutputAmount, nil
}

// InsufficientBalance reports whether the input balance is known and below the input amount
func (d DerivedSwapInfo) InsufficientBalance() bool {
	if d.InputBalance == nil || d.InputAmount == nil {
		return false
	}
	return d.InputBalance.Raw.Cmp(d.InputAmount.Raw) < 0
}

// Deriver combines form state, quotes and balances
type Deriver struct {
	quotes       QuoteSource
	balances     BalanceFetcher
	autoSlippage AutoSlippage
	logger       *log.Entry
}

// NewDeriver creates a deriver; balances may be nil
func NewDeriver(quotes QuoteSource, balances BalanceFetcher) *Deriver {
	return &Deriver{
		quotes:       quotes,
		balances:     balances,
		autoSlippage: DefaultAutoSlippage,
		logger:       log.WithField("component", "derive"),
	}
}

// WithAutoSlippage replaces the auto slippage function
func (d *Deriver) WithAutoSlippage(fn AutoSlippage) *Deriver {
	d.autoSlippage = fn
	return d
}

// Derive resolves s. Missing pieces of the form produce nil fields, never an error.
func (d *Deriver) Derive(ctx context.Context, s FormState) DerivedSwapInfo {
	info := DerivedSwapInfo{
		Account:                 s.Account,
		InputCurrency:           s.Input,
		OutputCurrency:          s.Output,
		ExactCurrencyField:      s.ExactCurrencyField,
		ExactAmountToken:        s.ExactAmountToken,
		CustomSlippageTolerance: s.CustomSlippageTolerance,
		TxID:                    s.TxID,
		WrapType:                types.GetWrapType(s.Input, s.Output),
		AutoSlippageTolerance:   MaxAutoSlippageTolerance,
	}
	if info.ExactCurrencyField == "" {
		info.ExactCurrencyField = FieldInput
	}
	switch {
	case s.Input != nil:
		info.ChainID = s.Input.ChainID
	case s.Output != nil:
		info.ChainID = s.Output.ChainID
	}

	info.InputBalance = d.balance(ctx, s.Account, s.Input)
	info.OutputBalance = d.balance(ctx, s.Account, s.Output)

	exactCurrency, otherCurrency := s.Input, s.Output
	tradeType := types.ExactInput
	if info.ExactCurrencyField == FieldOutput {
		exactCurrency, otherCurrency = s.Output, s.Input
		tradeType = types.ExactOutput
	}

	var exactAmount *types.CurrencyAmount
	if exactCurrency != nil && s.ExactAmountToken != "" {
		amt, err := types.ParseCurrencyAmount(*exactCurrency, s.ExactAmountToken)
		if err != nil {
			d.logger.WithError(err).Debug("ignoring unparsable amount")
		} else {
			exactAmount = amt
		}
	}

	if info.WrapType != types.WrapNotApplicable {
		// wraps are 1:1 and never quoted
		d.quotes.Update(quote.Params{})
		if exactAmount != nil {
			info.InputAmount = types.NewCurrencyAmount(*s.Input, exactAmount.Raw)
			info.OutputAmount = types.NewCurrencyAmount(*s.Output, exactAmount.Raw)
		}
		return info
	}

	d.quotes.Update(quote.Params{
		Account:                 s.Account,
		AmountSpecified:         exactAmount,
		OtherCurrency:           otherCurrency,
		TradeType:               tradeType,
		CustomSlippageTolerance: s.CustomSlippageTolerance,
		RoutingPreference:       s.RoutingPreference,
	})
	info.Trade = d.quotes.Result()

	trade := info.Trade.Trade
	if trade != nil {
		info.AutoSlippageTolerance = d.autoSlippage(trade)
		if s.CustomSlippageTolerance == nil && !trade.IsUniswapX() {
			trade = trade.WithSlippage(info.AutoSlippageTolerance)
			info.Trade.Trade = trade
		}
	}

	if tradeType == types.ExactInput {
		info.InputAmount = exactAmount
		if trade != nil {
			info.OutputAmount = trade.OutputAmount
		}
	} else {
		info.OutputAmount = exactAmount
		if trade != nil {
			info.InputAmount = trade.InputAmount
		}
	}
	return info
}

func (d *Deriver) balance(ctx context.Context, account string, c *types.Currency) *types.CurrencyAmount {
	if d.balances == nil || account == "" || c == nil {
		return nil
	}
	raw, err := d.balances.Balance(ctx, account, *c)
	if err != nil {
		d.logger.WithError(err).WithField("currency", c.ID()).Warn("failed to fetch balance")
		return nil
	}
	return types.NewCurrencyAmount(*c, raw)
}

// ApprovalCurrency is the token that must be approved to trade input. Orders
// settle in the wrapped currency, so native input approves the wrapped token.
func ApprovalCurrency(routing types.Routing, input types.Currency) (types.Currency, bool) {
	if routing.IsUniswapX() {
		return input.Wrapped(), true
	}
	if input.IsNative {
		return types.Currency{}, false
	}
	return input, true
}
