package parser

import (
	"fmt"
	"regexp"
	"strings"

	"wallet-swap/pkg/types"
)

// SwapCommand is a parsed swap instruction
type SwapCommand struct {
	Amount    string
	Input     string
	Output    string
	TradeType types.TradeType
	Chain     string
}

// SendCommand is a parsed transfer instruction
type SendCommand struct {
	Amount    string
	Token     string
	Recipient string
	Chain     string
}

// WrapCommand is a parsed wrap or unwrap instruction
type WrapCommand struct {
	Amount string
	Unwrap bool
	Chain  string
}

var (
	exactInPattern  = regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9.]+)\s+TO\s+([A-Z0-9.]+)(?:\s+ON\s+([A-Z0-9-]+))?$`)
	exactOutPattern = regexp.MustCompile(`^([A-Z0-9.]+)\s+FOR\s+(\d+\.?\d*)\s+([A-Z0-9.]+)(?:\s+ON\s+([A-Z0-9-]+))?$`)
	sendPattern     = regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9.]+)\s+TO\s+(0X[0-9A-F]{40})(?:\s+ON\s+([A-Z0-9-]+))?$`)
	wrapPattern     = regexp.MustCompile(`^(WRAP|UNWRAP)\s+(\d+\.?\d*)(?:\s+[A-Z0-9.]+)?(?:\s+ON\s+([A-Z0-9-]+))?$`)
)

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 1 ETH to USDC"
//   - "1.5 ETH to USDC on base"
//   - "swap ETH for 100 USDC"
func ParseSwapCommand(command string) (*SwapCommand, error) {
	command = normalize(command)
	command = strings.TrimPrefix(command, "SWAP ")

	if m := exactInPattern.FindStringSubmatch(command); m != nil {
		return &SwapCommand{
			Amount:    m[1],
			Input:     NormalizeTokenSymbol(m[2]),
			Output:    NormalizeTokenSymbol(m[3]),
			TradeType: types.ExactInput,
			Chain:     strings.ToLower(m[4]),
		}, nil
	}
	if m := exactOutPattern.FindStringSubmatch(command); m != nil {
		return &SwapCommand{
			Amount:    m[2],
			Input:     NormalizeTokenSymbol(m[1]),
			Output:    NormalizeTokenSymbol(m[3]),
			TradeType: types.ExactOutput,
			Chain:     strings.ToLower(m[4]),
		}, nil
	}
	return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <token> to <token>' or 'swap <token> for <amount> <token>'")
}

// ParseSendCommand parses "send <amount> <token> to <address> [on <chain>]"
func ParseSendCommand(command string) (*SendCommand, error) {
	command = normalize(command)
	command = strings.TrimPrefix(command, "SEND ")

	m := sendPattern.FindStringSubmatch(command)
	if m == nil {
		return nil, fmt.Errorf("invalid send command format. Expected: 'send <amount> <token> to <0x address>'")
	}
	return &SendCommand{
		Amount:    m[1],
		Token:     NormalizeTokenSymbol(m[2]),
		Recipient: "0x" + strings.ToLower(m[3][2:]),
		Chain:     strings.ToLower(m[4]),
	}, nil
}

// ParseWrapCommand parses "wrap <amount> [on <chain>]" and "unwrap <amount> [on <chain>]"
func ParseWrapCommand(command string) (*WrapCommand, error) {
	m := wrapPattern.FindStringSubmatch(normalize(command))
	if m == nil {
		return nil, fmt.Errorf("invalid wrap command format. Expected: 'wrap <amount>' or 'unwrap <amount>'")
	}
	return &WrapCommand{
		Amount: m[2],
		Unwrap: m[1] == "UNWRAP",
		Chain:  strings.ToLower(m[3]),
	}, nil
}

// Validate checks that the command names two different tokens and an amount
func (c *SwapCommand) Validate() error {
	if c.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if c.Input == "" {
		return fmt.Errorf("source token is required")
	}
	if c.Output == "" {
		return fmt.Errorf("destination token is required")
	}
	if c.Input == c.Output {
		return types.ErrSameCurrency
	}
	return nil
}

func normalize(command string) string {
	return strings.Join(strings.Fields(strings.ToUpper(command)), " ")
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	aliases := map[string]string{
		"ETHER":  "ETH",
		"USDC.E": "USDC",
	}
	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}
	return symbol
}
