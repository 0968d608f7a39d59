package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"wallet-swap/pkg/parser"
	"wallet-swap/pkg/types"
)

var wrapCmd = &cobra.Command{
	Use:   "wrap <amount> [on <chain>]",
	Short: "Wrap the native currency",
	Long: `Deposit the native currency into its wrapped token contract.

Examples:
  wallet-swap wrap 0.5
  wallet-swap wrap 1 ETH on base`,
	Args: cobra.MinimumNArgs(1),
	Run:  runWrap,
}

var unwrapCmd = &cobra.Command{
	Use:   "unwrap <amount> [on <chain>]",
	Short: "Unwrap the wrapped native token",
	Long: `Withdraw the native currency from its wrapped token contract.

Examples:
  wallet-swap unwrap 0.5
  wallet-swap unwrap 1 WETH on arbitrum`,
	Args: cobra.MinimumNArgs(1),
	Run:  runWrap,
}

func init() {
	for _, c := range []*cobra.Command{wrapCmd, unwrapCmd} {
		rootCmd.AddCommand(c)
		c.Flags().StringVar(&swapChain, "chain", "", "Chain to wrap on (defaults to default_chain)")
		c.Flags().StringVar(&swapFrom, "from", "", "Account to wrap from (defaults to the first configured key)")
		addSubmitFlags(c)
	}
}

func runWrap(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	wrapReq, err := parser.ParseWrapCommand(cmd.Name() + " " + strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	a, err := newApp(cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	code := func() int {
		account, err := a.account(swapFrom)
		if err != nil {
			printError(err)
			return 1
		}
		chainID, err := a.chain(swapChain, wrapReq.Chain)
		if err != nil {
			printError(err)
			return 1
		}
		amount, err := types.ParseCurrencyAmount(chainID.NativeCurrency(), wrapReq.Amount)
		if err != nil {
			printError(err)
			return 1
		}

		wrapType := types.WrapTypeWrap
		if wrapReq.Unwrap {
			wrapType = types.WrapTypeUnwrap
		}

		a.start(ctx, !jsonOutput)
		if !noConfirm && !jsonOutput && !confirm(fmt.Sprintf("Proceed with %s of %s?", wrapType, amount)) {
			return 0
		}
		return submitWrap(ctx, a, account, chainID, wrapType, amount.Raw, jsonOutput)
	}()
	cancel()
	a.Close()
	os.Exit(code)
}
