package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"wallet-swap/pkg/types"
)

// Token is a configured ERC20 token
type Token struct {
	Chain    string `mapstructure:"chain"`
	Symbol   string `mapstructure:"symbol"`
	Address  string `mapstructure:"address"`
	Decimals uint8  `mapstructure:"decimals"`
}

// TokenList resolves symbols to currencies per chain
type TokenList struct {
	byChain map[types.ChainID]map[string]types.Currency
}

// NewTokenList indexes tokens. The native and wrapped native currencies of every chain are always known.
func NewTokenList(tokens []Token) (*TokenList, error) {
	l := &TokenList{byChain: make(map[types.ChainID]map[string]types.Currency)}
	for _, t := range tokens {
		chainID, err := types.ParseChain(t.Chain)
		if err != nil {
			return nil, err
		}
		if !common.IsHexAddress(t.Address) {
			return nil, fmt.Errorf("invalid address for token %s: %s", t.Symbol, t.Address)
		}
		symbol := NormalizeTokenSymbol(t.Symbol)
		l.chain(chainID)[symbol] = types.Currency{
			ChainID:  chainID,
			Address:  common.HexToAddress(t.Address).Hex(),
			Symbol:   symbol,
			Decimals: t.Decimals,
		}
	}
	return l, nil
}

func (l *TokenList) chain(id types.ChainID) map[string]types.Currency {
	m, ok := l.byChain[id]
	if !ok {
		m = make(map[string]types.Currency)
		l.byChain[id] = m
	}
	return m
}

// Resolve returns the currency for symbol on chainID
func (l *TokenList) Resolve(chainID types.ChainID, symbol string) (types.Currency, error) {
	symbol = NormalizeTokenSymbol(symbol)

	native := chainID.NativeCurrency()
	if strings.EqualFold(native.Symbol, symbol) {
		return native, nil
	}
	if wrapped, ok := chainID.WrappedNativeCurrency(); ok && strings.EqualFold(wrapped.Symbol, symbol) {
		return wrapped, nil
	}
	if c, ok := l.byChain[chainID][symbol]; ok {
		return c, nil
	}
	return types.Currency{}, fmt.Errorf("unknown token %s on %s", symbol, chainID)
}

// Currencies returns every configured token on chainID, including native and wrapped native
func (l *TokenList) Currencies(chainID types.ChainID) []types.Currency {
	out := []types.Currency{chainID.NativeCurrency()}
	if wrapped, ok := chainID.WrappedNativeCurrency(); ok {
		out = append(out, wrapped)
	}
	symbols := make([]string, 0, len(l.byChain[chainID]))
	for symbol := range l.byChain[chainID] {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		out = append(out, l.byChain[chainID][symbol])
	}
	return out
}
