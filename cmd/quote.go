package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"wallet-swap/config"
	"wallet-swap/pkg/derive"
	"wallet-swap/pkg/parser"
	"wallet-swap/pkg/quote"
	"wallet-swap/pkg/types"
)

var (
	swapChain    string
	swapFrom     string
	swapSlippage string
	swapClassic  bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <token> to <token>",
	Short: "Get a swap quote without executing it",
	Long: `Fetch a quote from the Trading API and show the derived amounts.

Examples:
  wallet-swap quote 1 ETH to USDC
  wallet-swap quote ETH for 100 USDC --chain base
  wallet-swap quote 1000 USDC to ETH --slippage 0.5 --classic`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	addSwapFlags(quoteCmd)
}

func addSwapFlags(c *cobra.Command) {
	c.Flags().StringVar(&swapChain, "chain", "", "Chain to swap on (defaults to default_chain)")
	c.Flags().StringVar(&swapFrom, "from", "", "Account to swap from (defaults to the first configured key)")
	c.Flags().StringVar(&swapSlippage, "slippage", "", "Custom slippage tolerance in percent")
	c.Flags().BoolVar(&swapClassic, "classic", false, "Only accept classic (on-chain) routes")
}

// swapForm resolves a parsed swap command into form state
func swapForm(cfg *config.Config, tokens *parser.TokenList, chainID types.ChainID, account string, swapCmd *parser.SwapCommand) (derive.FormState, error) {
	in, err := tokens.Resolve(chainID, swapCmd.Input)
	if err != nil {
		return derive.FormState{}, err
	}
	out, err := tokens.Resolve(chainID, swapCmd.Output)
	if err != nil {
		return derive.FormState{}, err
	}

	form := derive.FormState{
		Account:                 account,
		Input:                   &in,
		Output:                  &out,
		ExactCurrencyField:      derive.FieldInput,
		ExactAmountToken:        swapCmd.Amount,
		CustomSlippageTolerance: cfg.Slippage,
		RoutingPreference:       cfg.RoutingPreference,
	}
	if swapCmd.TradeType == types.ExactOutput {
		form.ExactCurrencyField = derive.FieldOutput
	}
	if swapSlippage != "" {
		d, err := decimal.NewFromString(swapSlippage)
		if err != nil {
			return derive.FormState{}, err
		}
		form.CustomSlippageTolerance = &d
	}
	if form.CustomSlippageTolerance != nil {
		if err := derive.ValidateSlippage(*form.CustomSlippageTolerance); err != nil {
			return derive.FormState{}, err
		}
	}
	if swapClassic {
		form.RoutingPreference = quote.PreferenceClassic
	}
	return form, nil
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	swapReq, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err == nil {
		err = swapReq.Validate()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err == nil {
		err = cfg.RequireAPIKey()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	tokens, err := parser.NewTokenList(cfg.Tokens)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	chainID := cfg.DefaultChain
	if name := firstNonEmpty(swapChain, swapReq.Chain); name != "" {
		if chainID, err = types.ParseChain(name); err != nil {
			printError(err)
			os.Exit(1)
		}
	}

	form, err := swapForm(cfg, tokens, chainID, swapFrom, swapReq)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := quote.NewClient(cfg.TradingAPIURL, cfg.APIKey, quote.WithRateLimit(cfg.RateLimit))
	fetcher := quote.NewFetcher(client)
	go fetcher.Run(ctx)

	s := newSpinner("Fetching quote...", jsonOutput)
	info, err := settleSwapInfo(ctx, derive.NewDeriver(fetcher, nil), fetcher, form)
	s.Stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	out := newQuoteOutput(info)
	if jsonOutput {
		printJSON(out)
	} else {
		displayQuote(out)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
