package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"wallet-swap/pkg/derive"
	"wallet-swap/pkg/quote"
	"wallet-swap/pkg/transaction"
	"wallet-swap/pkg/types"
)

const quoteTimeout = 30 * time.Second

func newSpinner(suffix string, jsonOutput bool) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + suffix
	if !jsonOutput {
		s.Start()
	}
	return s
}

func printJSON(v any) {
	jsonData, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(jsonData))
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// settleSwapInfo derives the form, waits for the quote to settle and derives again
func settleSwapInfo(ctx context.Context, deriver *derive.Deriver, fetcher *quote.Fetcher, form derive.FormState) (derive.DerivedSwapInfo, error) {
	info := deriver.Derive(ctx, form)
	if info.WrapType != types.WrapNotApplicable {
		return info, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, quoteTimeout)
	defer cancel()
	res, err := fetcher.WaitSettled(waitCtx)
	if err != nil {
		return info, fmt.Errorf("timed out waiting for a quote: %w", err)
	}
	if res.Err != nil && res.Trade == nil {
		return info, res.Err
	}

	info = deriver.Derive(ctx, form)
	if info.Trade.Trade == nil {
		return info, quote.ErrNoRoute
	}
	return info, nil
}

type quoteOutput struct {
	Routing        string `json:"routing"`
	Chain          string `json:"chain"`
	Input          string `json:"input"`
	Output         string `json:"output"`
	MinimumOutput  string `json:"minimum_output,omitempty"`
	MaximumInput   string `json:"maximum_input,omitempty"`
	Slippage       string `json:"slippage_percent"`
	PriceImpact    string `json:"price_impact_percent,omitempty"`
	ExecutionPrice string `json:"execution_price,omitempty"`
	GasFee         string `json:"gas_fee_wei,omitempty"`
	Balance        string `json:"input_balance,omitempty"`
	Insufficient   bool   `json:"insufficient_balance"`
}

func newQuoteOutput(info derive.DerivedSwapInfo) quoteOutput {
	out := quoteOutput{
		Routing:      info.WrapType.String(),
		Chain:        info.ChainID.String(),
		Input:        info.InputAmount.String(),
		Output:       info.OutputAmount.String(),
		Slippage:     info.SlippageTolerance().String(),
		Insufficient: info.InsufficientBalance(),
	}
	if info.InputBalance != nil {
		out.Balance = info.InputBalance.String()
	}
	trade := info.Trade.Trade
	if trade == nil {
		return out
	}
	out.Routing = string(trade.Routing)
	out.PriceImpact = trade.PriceImpact.String()
	out.ExecutionPrice = trade.ExecutionPrice().StringFixed(6)
	out.GasFee = trade.GasFee
	if trade.TradeType == types.ExactInput {
		out.MinimumOutput = trade.MinimumAmountOut().String()
	} else {
		out.MaximumInput = trade.MaximumAmountIn().String()
	}
	return out
}

func displayQuote(q quoteOutput) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Routing:           %s\n", color.CyanString(q.Routing))
	fmt.Printf("  Chain:             %s\n", q.Chain)
	fmt.Printf("  From:              %s\n", color.YellowString(q.Input))
	fmt.Printf("  To:                ~%s\n", color.YellowString(q.Output))
	if q.MinimumOutput != "" {
		fmt.Printf("  Minimum Received:  %s\n", q.MinimumOutput)
	}
	if q.MaximumInput != "" {
		fmt.Printf("  Maximum Sent:      %s\n", q.MaximumInput)
	}
	if q.ExecutionPrice != "" {
		fmt.Printf("  Price:             %s\n", q.ExecutionPrice)
	}
	fmt.Printf("  Slippage:          %s%%\n", q.Slippage)
	if q.PriceImpact != "" {
		fmt.Printf("  Price Impact:      %s%%\n", q.PriceImpact)
	}
	if q.GasFee != "" {
		fmt.Printf("  Network Fee:       %s wei\n", q.GasFee)
	}
	if q.Balance != "" {
		fmt.Printf("  Balance:           %s\n", q.Balance)
	}
	if q.Insufficient {
		color.Red("\n  Insufficient balance for this swap")
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func statusColor(rec *transaction.Record) string {
	status := string(rec.Status)
	if rec.Order != nil && rec.Order.QueueStatus != "" {
		status = fmt.Sprintf("%s/%s", rec.Status, rec.Order.QueueStatus)
	}
	switch {
	case rec.Status == transaction.StatusSuccess:
		return color.GreenString(status)
	case rec.Status == transaction.StatusFailed:
		return color.RedString(status)
	default:
		return color.YellowString(status)
	}
}

func displayRecord(rec *transaction.Record) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                         TRANSACTION")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  ID:          %s\n", color.CyanString(rec.ID))
	if rec.TypeInfo != nil {
		fmt.Printf("  Type:        %s\n", rec.TypeInfo.Type())
	}
	fmt.Printf("  Status:      %s\n", statusColor(rec))
	fmt.Printf("  Chain:       %s\n", rec.ChainID)
	fmt.Printf("  From:        %s\n", rec.From)
	fmt.Printf("  Added:       %s\n", rec.Added().Format(time.RFC3339))
	if rec.Hash != "" {
		fmt.Printf("  Hash:        %s\n", rec.Hash)
	}
	if rec.Nonce != nil {
		fmt.Printf("  Nonce:       %d\n", *rec.Nonce)
	}
	if rec.PrivateRPC {
		fmt.Printf("  Private RPC: yes\n")
	}
	if o := rec.Order; o != nil {
		fmt.Printf("  Order Hash:  %s\n", o.OrderHash)
		fmt.Printf("  Routing:     %s\n", o.Routing)
		if o.ApproveTxHash != "" {
			fmt.Printf("  Approval:    %s\n", o.ApproveTxHash)
		}
		if o.WrapTxHash != "" {
			fmt.Printf("  Wrap:        %s\n", o.WrapTxHash)
		}
	}
	if r := rec.Receipt; r != nil {
		fmt.Printf("  Block:       %d\n", r.BlockNumber)
		fmt.Printf("  Gas Used:    %d\n", r.GasUsed)
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
