package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ChainID identifies an EVM network
type ChainID int64

const (
	ChainMainnet  ChainID = 1
	ChainOptimism ChainID = 10
	ChainPolygon  ChainID = 137
	ChainBase     ChainID = 8453
	ChainArbitrum ChainID = 42161
	ChainSepolia  ChainID = 11155111
)

// Fallback block times used to derive quote poll intervals
const (
	FallbackL1BlockTime = 12 * time.Second
	FallbackL2BlockTime = 3 * time.Second
)

// Permit2Address is the canonical Permit2 deployment, identical on every supported chain
const Permit2Address = "0x000000000022D473030F116dDEE9F6B43aC78BA3"

// ChainInfo describes static properties of a supported chain
type ChainInfo struct {
	ID                 ChainID
	Name               string
	NativeSymbol       string
	WrappedNative      string
	WrappedSymbol      string
	IsL2               bool
	SupportsPrivateRPC bool
}

var chains = map[ChainID]ChainInfo{
	ChainMainnet: {
		ID: ChainMainnet, Name: "mainnet", NativeSymbol: "ETH",
		WrappedNative: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", WrappedSymbol: "WETH",
		SupportsPrivateRPC: true,
	},
	ChainOptimism: {
		ID: ChainOptimism, Name: "optimism", NativeSymbol: "ETH",
		WrappedNative: "0x4200000000000000000000000000000000000006", WrappedSymbol: "WETH",
		IsL2: true,
	},
	ChainPolygon: {
		ID: ChainPolygon, Name: "polygon", NativeSymbol: "MATIC",
		WrappedNative: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", WrappedSymbol: "WMATIC",
		IsL2: true,
	},
	ChainBase: {
		ID: ChainBase, Name: "base", NativeSymbol: "ETH",
		WrappedNative: "0x4200000000000000000000000000000000000006", WrappedSymbol: "WETH",
		IsL2: true,
	},
	ChainArbitrum: {
		ID: ChainArbitrum, Name: "arbitrum", NativeSymbol: "ETH",
		WrappedNative: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", WrappedSymbol: "WETH",
		IsL2: true,
	},
	ChainSepolia: {
		ID: ChainSepolia, Name: "sepolia", NativeSymbol: "ETH",
		WrappedNative: "0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14", WrappedSymbol: "WETH",
	},
}

// LookupChain returns the static info for a chain
func LookupChain(id ChainID) (ChainInfo, bool) {
	info, ok := chains[id]
	return info, ok
}

// Chains returns every known chain id in ascending order
func Chains() []ChainID {
	ids := make([]ChainID, 0, len(chains))
	for id := range chains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ParseChain accepts a chain id or a chain name (e.g. "1", "mainnet", "base")
func ParseChain(s string) (ChainID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for id, info := range chains {
		if info.Name == s || fmt.Sprint(int64(id)) == s {
			return id, nil
		}
	}
	switch s {
	case "eth", "ethereum":
		return ChainMainnet, nil
	case "op":
		return ChainOptimism, nil
	case "arb":
		return ChainArbitrum, nil
	}
	return 0, fmt.Errorf("unsupported chain: %s", s)
}

// String returns the chain name, or the numeric id for unknown chains
func (c ChainID) String() string {
	if info, ok := chains[c]; ok {
		return info.Name
	}
	return fmt.Sprintf("chain-%d", int64(c))
}

// BlockTime returns the average block time used as the default poll interval
func (c ChainID) BlockTime() time.Duration {
	if info, ok := chains[c]; ok && info.IsL2 {
		return FallbackL2BlockTime
	}
	return FallbackL1BlockTime
}

// NativeCurrency returns the native asset of the chain
func (c ChainID) NativeCurrency() Currency {
	info := chains[c]
	symbol := info.NativeSymbol
	if symbol == "" {
		symbol = "ETH"
	}
	return Currency{ChainID: c, Address: NativeAddress, Symbol: symbol, Decimals: 18, IsNative: true}
}

// WrappedNativeCurrency returns the wrapped form of the native asset
func (c ChainID) WrappedNativeCurrency() (Currency, bool) {
	info, ok := chains[c]
	if !ok || info.WrappedNative == "" {
		return Currency{}, false
	}
	return Currency{ChainID: c, Address: info.WrappedNative, Symbol: info.WrappedSymbol, Decimals: 18}, true
}
