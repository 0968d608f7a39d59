package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/pkg/parser"
	"wallet-swap/pkg/sequencer"
	"wallet-swap/pkg/transaction"
	"wallet-swap/pkg/types"
)

var sendCmd = &cobra.Command{
	Use:   "send <amount> <token> to <address> [on <chain>]",
	Short: "Send native currency or tokens",
	Long: `Transfer the native currency or an ERC-20 token to another address.

Examples:
  wallet-swap send 0.1 ETH to 0x1234...
  wallet-swap send 10 USDC to 0x1234... on base`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&swapChain, "chain", "", "Chain to send on (defaults to default_chain)")
	sendCmd.Flags().StringVar(&swapFrom, "from", "", "Account to send from (defaults to the first configured key)")
	addSubmitFlags(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	sendReq, err := parser.ParseSendCommand(strings.Join(args, " "))
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
		chainID, err := a.chain(swapChain, sendReq.Chain)
		if err != nil {
			printError(err)
			return 1
		}
		currency, err := a.tokens.Resolve(chainID, sendReq.Token)
		if err != nil {
			printError(err)
			return 1
		}
		amount, err := types.ParseCurrencyAmount(currency, sendReq.Amount)
		if err != nil {
			printError(err)
			return 1
		}

		a.start(ctx, !jsonOutput)

		if balance, err := a.balances.Balance(ctx, account, currency); err == nil && balance.Cmp(amount.Raw) < 0 {
			printError(fmt.Errorf("insufficient %s balance: have %s", currency.Symbol, types.NewCurrencyAmount(currency, balance)))
			return 1
		}

		if !jsonOutput {
			fmt.Printf("\n  Send:  %s\n", color.YellowString(amount.String()))
			fmt.Printf("  To:    %s\n", color.CyanString(sendReq.Recipient))
			fmt.Printf("  Chain: %s\n", chainID)
		}
		if !noConfirm && !jsonOutput && !confirm("Proceed with transfer?") {
			return 0
		}

		s := newSpinner("Submitting...", jsonOutput)
		res, err := a.sequencer.Transfer(ctx, sequencer.TransferParams{
			TxID:          transaction.NewID(),
			Account:       account,
			Recipient:     sendReq.Recipient,
			Amount:        amount,
			SwapProtected: false,
			Callbacks:     submitCallbacks(s, jsonOutput),
		})
		s.Stop()
		return reportResult(ctx, a, res, err, jsonOutput)
	}()
	cancel()
	a.Close()
	os.Exit(code)
}
