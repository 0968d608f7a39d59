package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/pkg/parser"
	"wallet-swap/pkg/types"
)

var (
	filterChain  string
	filterSymbol string
)

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens"},
	Short:   "List all known tokens",
	Long: `List the native, wrapped native and configured tokens of every chain.

You can filter tokens by chain or symbol.

Examples:
  wallet-swap list-tokens
  wallet-swap list-tokens --chain base
  wallet-swap list-tokens --symbol USDC`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterChain, "chain", "", "Filter by chain")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
}

type tokenOutput struct {
	Chain    string `json:"chain"`
	ChainID  int64  `json:"chain_id"`
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Native   bool   `json:"native,omitempty"`
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	list, err := parser.NewTokenList(cfg.Tokens)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	chains := types.Chains()
	if filterChain != "" {
		id, err := types.ParseChain(filterChain)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		chains = []types.ChainID{id}
	}

	var tokens []tokenOutput
	for _, chainID := range chains {
		for _, c := range list.Currencies(chainID) {
			if filterSymbol != "" && !strings.Contains(strings.ToUpper(c.Symbol), strings.ToUpper(filterSymbol)) {
				continue
			}
			tokens = append(tokens, tokenOutput{
				Chain:    chainID.String(),
				ChainID:  int64(chainID),
				Symbol:   c.Symbol,
				Address:  c.APIAddress(),
				Decimals: c.Decimals,
				Native:   c.IsNative,
			})
		}
	}

	if jsonOutput {
		printJSON(tokens)
		return
	}
	displayTokens(tokens)
}

func displayTokens(tokens []tokenOutput) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            KNOWN TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	tokensByChain := make(map[string][]tokenOutput)
	for _, token := range tokens {
		tokensByChain[token.Chain] = append(tokensByChain[token.Chain], token)
	}

	chains := make([]string, 0, len(tokensByChain))
	for chain := range tokensByChain {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	for _, chain := range chains {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 90))

		for _, token := range tokensByChain[chain] {
			fmt.Printf("  %-10s  %2d decimals  %s\n",
				color.YellowString(token.Symbol),
				token.Decimals,
				color.HiBlackString(token.Address))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d chains\n\n", len(tokens), len(chains))
}
