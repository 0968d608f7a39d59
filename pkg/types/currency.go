package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// NativeAddress is the address the Trading API uses for a chain's native asset
const NativeAddress = "0x0000000000000000000000000000000000000000"

// Currency is a native asset or ERC-20 token on a specific chain
type Currency struct {
	ChainID  ChainID `json:"chainId" mapstructure:"chain_id"`
	Address  string  `json:"address" mapstructure:"address"`
	Symbol   string  `json:"symbol" mapstructure:"symbol"`
	Decimals uint8   `json:"decimals" mapstructure:"decimals"`
	IsNative bool    `json:"isNative,omitempty" mapstructure:"native"`
}

// ID returns "<chainId>-<address>" with the address lower-cased
func (c Currency) ID() string {
	addr := c.Address
	if c.IsNative || addr == "" {
		addr = NativeAddress
	}
	return fmt.Sprintf("%d-%s", int64(c.ChainID), strings.ToLower(addr))
}

// Equal compares currencies by ID
func (c Currency) Equal(other Currency) bool {
	return c.ID() == other.ID()
}

// APIAddress is the token address as expected by the Trading API
func (c Currency) APIAddress() string {
	if c.IsNative || c.Address == "" {
		return NativeAddress
	}
	return c.Address
}

// IsWrappedNative reports whether c is the wrapped native token of its chain
func (c Currency) IsWrappedNative() bool {
	wrapped, ok := c.ChainID.WrappedNativeCurrency()
	return ok && !c.IsNative && wrapped.Equal(c)
}

// Wrapped returns the wrapped native currency for native assets, otherwise c itself
func (c Currency) Wrapped() Currency {
	if !c.IsNative {
		return c
	}
	if wrapped, ok := c.ChainID.WrappedNativeCurrency(); ok {
		return wrapped
	}
	return c
}

// CurrencyAmount is a raw on-chain quantity of a currency
type CurrencyAmount struct {
	Currency Currency `json:"currency"`
	Raw      *big.Int `json:"raw"`
}

// NewCurrencyAmount creates a currency amount from a raw quantity
func NewCurrencyAmount(currency Currency, raw *big.Int) *CurrencyAmount {
	if raw == nil {
		raw = new(big.Int)
	}
	return &CurrencyAmount{Currency: currency, Raw: new(big.Int).Set(raw)}
}

// ParseCurrencyAmount converts a human-readable amount ("1.5") into raw units
func ParseCurrencyAmount(currency Currency, value string) (*CurrencyAmount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: must not be negative", value)
	}
	raw := d.Shift(int32(currency.Decimals))
	if !raw.Equal(raw.Truncate(0)) {
		return nil, fmt.Errorf("invalid amount %q: more than %d decimals", value, currency.Decimals)
	}
	return &CurrencyAmount{Currency: currency, Raw: raw.BigInt()}, nil
}

// ParseRawAmount parses a base-10 raw quantity as returned by the Trading API
func ParseRawAmount(currency Currency, raw string) (*CurrencyAmount, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid raw amount %q", raw)
	}
	return &CurrencyAmount{Currency: currency, Raw: v}, nil
}

// Decimal returns the amount in whole units
func (a *CurrencyAmount) Decimal() decimal.Decimal {
	if a == nil || a.Raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.Raw, -int32(a.Currency.Decimals))
}

// IsZero reports whether the amount is empty or zero
func (a *CurrencyAmount) IsZero() bool {
	return a == nil || a.Raw == nil || a.Raw.Sign() == 0
}

// String formats the amount with its symbol
func (a *CurrencyAmount) String() string {
	if a == nil {
		return "-"
	}
	return fmt.Sprintf("%s %s", a.Decimal().String(), a.Currency.Symbol)
}
