package quote

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wallet-swap/pkg/types"
)

var (
	// ErrNoQuoteData means the Trading API returned nothing to build a trade from
	ErrNoQuoteData = errors.New("NO_QUOTE_DATA")
	// ErrNoRoute means a quote came back but it has no usable route
	ErrNoRoute = errors.New("QUOTE_ERROR")
)

// TransformParams describes the trade the quote was requested for
type TransformParams struct {
	CurrencyIn        types.Currency
	CurrencyOut       types.Currency
	TradeType         types.TradeType
	SlippageTolerance *decimal.Decimal
	Deadline          time.Time
}

// TransformResponse converts a quote response into a trade. A nil trade with
// a nil error means the quote exists but contains no route.
func TransformResponse(resp *QuoteResponse, p TransformParams) (*types.Trade, error) {
	if !resp.HasQuote() {
		return nil, ErrNoQuoteData
	}

	params := types.TradeParams{
		Routing:   resp.Routing,
		TradeType: p.TradeType,
		Deadline:  p.Deadline.Unix(),
		RequestID: resp.RequestID,
		Quote:     resp.Quote,
	}
	if resp.HasPermitData() {
		params.PermitData = resp.PermitData
	}

	var quoteSlippage float64
	switch {
	case resp.Routing == types.RoutingClassic:
		var q classicQuote
		if err := json.Unmarshal(resp.Quote, &q); err != nil {
			return nil, fmt.Errorf("failed to decode classic quote: %w", err)
		}
		if len(q.Route) == 0 || q.Input.Amount == "" || q.Output.Amount == "" {
			return nil, nil
		}
		in, err := types.ParseRawAmount(p.CurrencyIn, q.Input.Amount)
		if err != nil {
			return nil, err
		}
		out, err := types.ParseRawAmount(p.CurrencyOut, q.Output.Amount)
		if err != nil {
			return nil, err
		}
		params.InputAmount, params.OutputAmount = in, out
		params.PriceImpact = decimal.NewFromFloat(q.PriceImpact)
		params.BlockNumber = q.BlockNumber
		params.GasFee = q.GasFee
		quoteSlippage = q.Slippage

	case resp.Routing.IsUniswapX():
		var q dutchQuote
		if err := json.Unmarshal(resp.Quote, &q); err != nil {
			return nil, fmt.Errorf("failed to decode order quote: %w", err)
		}
		if q.OrderInfo == nil || len(q.OrderInfo.Outputs) == 0 || q.OrderID == "" {
			return nil, nil
		}
		in, err := types.ParseRawAmount(p.CurrencyIn, q.OrderInfo.Input.StartAmount)
		if err != nil {
			return nil, err
		}
		out, err := types.ParseRawAmount(p.CurrencyOut, q.OrderInfo.Outputs[0].StartAmount)
		if err != nil {
			return nil, err
		}
		params.InputAmount, params.OutputAmount = in, out
		quoteSlippage = q.SlippageTolerance

	default:
		return nil, nil
	}

	if p.SlippageTolerance != nil {
		params.SlippageTolerance = *p.SlippageTolerance
	} else {
		params.SlippageTolerance = decimal.NewFromFloat(quoteSlippage)
	}

	trade, err := types.NewTrade(params)
	if err != nil {
		return nil, nil
	}
	return trade, nil
}

// ValidateTrade checks the trade matches the requested currencies and exact amount
func ValidateTrade(trade *types.Trade, in, out types.Currency, exact *types.CurrencyAmount) bool {
	if trade == nil || exact == nil {
		return false
	}
	if !trade.InputAmount.Currency.Equal(in) || !trade.OutputAmount.Currency.Equal(out) {
		return false
	}
	side := trade.InputAmount
	if trade.TradeType == types.ExactOutput {
		side = trade.OutputAmount
	}
	return side.Raw.Cmp(exact.Raw) == 0
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

func isRouteError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && strings.EqualFold(apiErr.Code, ErrNoRoute.Error())
}
