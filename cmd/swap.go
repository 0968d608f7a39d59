package cmd

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/pkg/parser"
	"wallet-swap/pkg/sequencer"
	"wallet-swap/pkg/transaction"
	"wallet-swap/pkg/types"
)

const defaultWatchTimeout = 10 * time.Minute

var (
	noConfirm   bool
	waitTimeout time.Duration
	noWait      bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <token> to <token>",
	Short: "Quote and execute a token swap",
	Long: `Quote a swap, build its transactions and submit them.

Classic swaps submit the token approval (when needed) and the swap at
consecutive nonces. UniswapX orders submit the approval and wrap first and
the signed order once both have confirmed. Native-to-wrapped pairs are
executed as a wrap or unwrap.

Examples:
  wallet-swap swap 1 ETH to USDC
  wallet-swap swap 1000 USDC to ETH --chain base --slippage 0.5
  wallet-swap swap ETH for 100 USDC --yes
  wallet-swap swap 1 ETH to WETH`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)
	addSwapFlags(swapCmd)
	addSubmitFlags(swapCmd)
}

func addSubmitFlags(c *cobra.Command) {
	c.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	c.Flags().BoolVar(&noWait, "no-wait", false, "Return after submission without waiting for confirmation")
	c.Flags().DurationVar(&waitTimeout, "timeout", defaultWatchTimeout, "How long to wait for confirmation")
}

// signalContext is cancelled on SIGINT or SIGTERM. A second signal gets the
// default behaviour and exits the process.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}

func runSwap(cmd *cobra.Command, args []string) {
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
	code := executeSwap(ctx, a, swapReq, jsonOutput)
	cancel()
	a.Close()
	os.Exit(code)
}

func executeSwap(ctx context.Context, a *app, swapReq *parser.SwapCommand, jsonOutput bool) int {
	account, err := a.account(swapFrom)
	if err != nil {
		printError(err)
		return 1
	}
	chainID, err := a.chain(swapChain, swapReq.Chain)
	if err != nil {
		printError(err)
		return 1
	}
	form, err := swapForm(a.cfg, a.tokens, chainID, account, swapReq)
	if err != nil {
		printError(err)
		return 1
	}

	a.start(ctx, !jsonOutput)

	s := newSpinner("Fetching quote...", jsonOutput)
	info, err := settleSwapInfo(ctx, a.deriver, a.fetcher, form)
	s.Stop()
	if err != nil {
		printError(err)
		return 1
	}

	q := newQuoteOutput(info)
	if jsonOutput {
		printJSON(q)
	} else {
		displayQuote(q)
	}
	if _, _, err := info.ReviewAmounts(); err != nil {
		printError(err)
		return 1
	}
	if info.InsufficientBalance() {
		printError(fmt.Errorf("insufficient %s balance", info.InputCurrency.Symbol))
		return 1
	}
	if !noConfirm && !jsonOutput && !confirm("Proceed with swap?") {
		fmt.Println("\nSwap cancelled.")
		return 0
	}

	if info.WrapType != types.WrapNotApplicable {
		return submitWrap(ctx, a, account, chainID, info.WrapType, info.InputAmount.Raw, jsonOutput)
	}

	trade := info.Trade.Trade
	s = newSpinner("Building transactions...", jsonOutput)
	txCtx, err := a.builder.Build(ctx, account, trade)
	s.Stop()
	if err != nil {
		printError(err)
		return 1
	}

	s = newSpinner("Submitting...", jsonOutput)
	res, err := a.sequencer.ApproveAndSwap(ctx, sequencer.SwapParams{
		TxID:          transaction.NewID(),
		Account:       account,
		Context:       txCtx,
		SwapProtected: a.cfg.SwapProtection,
		Callbacks:     submitCallbacks(s, jsonOutput),
	})
	s.Stop()
	return reportResult(ctx, a, res, err, jsonOutput)
}

// submitCallbacks stops the spinner as soon as the sequence reports back
func submitCallbacks(s interface{ Stop() }, jsonOutput bool) sequencer.Callbacks {
	return sequencer.Callbacks{
		OnSubmit: func(hash string) {
			s.Stop()
			if !jsonOutput {
				color.Green("\n✓ Submitted %s", hash)
			}
		},
		OnFailure: func(error) {
			s.Stop()
		},
	}
}

func submitWrap(ctx context.Context, a *app, account string, chainID types.ChainID, wrapType types.WrapType, amount *big.Int, jsonOutput bool) int {
	s := newSpinner("Submitting...", jsonOutput)
	res, err := a.sequencer.Wrap(ctx, sequencer.WrapParams{
		TxID:          transaction.NewID(),
		Account:       account,
		ChainID:       chainID,
		WrapType:      wrapType,
		Amount:        amount,
		SwapProtected: a.cfg.SwapProtection,
		Callbacks:     submitCallbacks(s, jsonOutput),
	})
	s.Stop()
	return reportResult(ctx, a, res, err, jsonOutput)
}

// reportResult prints the submission outcome and optionally waits for the record to finalize
func reportResult(ctx context.Context, a *app, res sequencer.Result, err error, jsonOutput bool) int {
	if err != nil {
		if jsonOutput {
			printJSON(map[string]any{"id": res.TxID, "error": err.Error()})
		} else {
			printError(err)
		}
		return 1
	}

	if noWait {
		if jsonOutput {
			printJSON(res)
		} else {
			fmt.Println("\nYou can monitor the transaction using:")
			color.Cyan("  wallet-swap status %s\n", res.TxID)
		}
		return 0
	}

	rec, err := waitFinal(ctx, a.store, res.TxID, waitTimeout, jsonOutput)
	if err != nil {
		printError(err)
		return 1
	}
	if jsonOutput {
		printJSON(rec)
	} else {
		displayRecord(rec)
	}
	if rec.Status == transaction.StatusFailed {
		return 1
	}
	return 0
}

// waitFinal blocks until the record with id leaves pending
func waitFinal(ctx context.Context, store transaction.Store, id string, timeout time.Duration, jsonOutput bool) (*transaction.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan *transaction.Record, 1)
	unsubscribe := store.Subscribe(func(c transaction.Change) {
		if c.Current.ID == id && c.Current.Status.IsFinal() {
			select {
			case done <- c.Current:
			default:
			}
		}
	})
	defer unsubscribe()

	rec, err := store.Get(id)
	if err != nil {
		return nil, err
	}
	if rec.Status.IsFinal() {
		return rec, nil
	}

	s := newSpinner("Waiting for confirmation...", jsonOutput)
	defer s.Stop()
	select {
	case rec := <-done:
		return rec, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("transaction %s still pending: %w", id, ctx.Err())
	}
}
