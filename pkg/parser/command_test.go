package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/types"
)

func TestParseSwapCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *SwapCommand
		wantErr bool
	}{
		{
			name:  "exact input",
			input: "swap 1 ETH to USDC",
			want:  &SwapCommand{Amount: "1", Input: "ETH", Output: "USDC", TradeType: types.ExactInput},
		},
		{
			name:  "without verb, lower case, chain",
			input: "  1.5 eth   to usdc on base ",
			want:  &SwapCommand{Amount: "1.5", Input: "ETH", Output: "USDC", TradeType: types.ExactInput, Chain: "base"},
		},
		{
			name:  "exact output",
			input: "swap ETH for 100 USDC",
			want:  &SwapCommand{Amount: "100", Input: "ETH", Output: "USDC", TradeType: types.ExactOutput},
		},
		{
			name:  "alias",
			input: "swap 2 ether to weth",
			want:  &SwapCommand{Amount: "2", Input: "ETH", Output: "WETH", TradeType: types.ExactInput},
		},
		{name: "missing amount", input: "swap ETH to USDC", wantErr: true},
		{name: "garbage", input: "hello", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSwapCommand(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSwapCommandValidate(t *testing.T) {
	cmd := &SwapCommand{Amount: "1", Input: "ETH", Output: "ETH"}
	assert.ErrorIs(t, cmd.Validate(), types.ErrSameCurrency)

	cmd.Output = "USDC"
	assert.NoError(t, cmd.Validate())

	cmd.Amount = ""
	assert.Error(t, cmd.Validate())
}

func TestParseSendCommand(t *testing.T) {
	got, err := ParseSendCommand("send 10 USDC to 0x00000000000000000000000000000000000000Ab on arb")
	require.NoError(t, err)
	assert.Equal(t, &SendCommand{
		Amount:    "10",
		Token:     "USDC",
		Recipient: "0x00000000000000000000000000000000000000ab",
		Chain:     "arb",
	}, got)

	_, err = ParseSendCommand("send 10 USDC to bob")
	assert.Error(t, err)
}

func TestParseWrapCommand(t *testing.T) {
	got, err := ParseWrapCommand("wrap 0.5 ETH")
	require.NoError(t, err)
	assert.Equal(t, &WrapCommand{Amount: "0.5"}, got)

	got, err = ParseWrapCommand("unwrap 2 on base")
	require.NoError(t, err)
	assert.Equal(t, &WrapCommand{Amount: "2", Unwrap: true, Chain: "base"}, got)

	_, err = ParseWrapCommand("wrap all")
	assert.Error(t, err)
}

func TestTokenList(t *testing.T) {
	list, err := NewTokenList([]Token{
		{Chain: "mainnet", Symbol: "usdc", Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Decimals: 6},
		{Chain: "mainnet", Symbol: "DAI", Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Decimals: 18},
	})
	require.NoError(t, err)

	usdc, err := list.Resolve(types.ChainMainnet, "USDC")
	require.NoError(t, err)
	assert.Equal(t, uint8(6), usdc.Decimals)
	assert.Equal(t, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", usdc.Address)

	eth, err := list.Resolve(types.ChainMainnet, "eth")
	require.NoError(t, err)
	assert.True(t, eth.IsNative)

	weth, err := list.Resolve(types.ChainMainnet, "WETH")
	require.NoError(t, err)
	assert.True(t, weth.IsWrappedNative())

	_, err = list.Resolve(types.ChainBase, "USDC")
	assert.Error(t, err)

	symbols := []string{}
	for _, c := range list.Currencies(types.ChainMainnet) {
		symbols = append(symbols, c.Symbol)
	}
	assert.Equal(t, []string{"ETH", "WETH", "DAI", "USDC"}, symbols)

	_, err = NewTokenList([]Token{{Chain: "mainnet", Symbol: "X", Address: "nope"}})
	assert.Error(t, err)
	_, err = NewTokenList([]Token{{Chain: "moon", Symbol: "X", Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F"}})
	assert.Error(t, err)
}
