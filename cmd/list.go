package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/pkg/transaction"
)

var (
	listStatusFilter string
	listLimit        int
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "history"},
	Short:   "List tracked transactions and orders",
	Long: `List the transactions and orders in the local store, newest first.

Examples:
  wallet-swap list
  wallet-swap list --status pending
  wallet-swap list --limit 5 --json`,
	Run: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listStatusFilter, "status", "", "Filter by status (pending, success, failed)")
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of records to show (0 for all)")
}

func runList(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	store, err := openStore(cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer store.Close()

	all := store.List()
	recs := make([]*transaction.Record, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if listStatusFilter != "" && string(all[i].Status) != listStatusFilter {
			continue
		}
		recs = append(recs, all[i])
		if listLimit > 0 && len(recs) == listLimit {
			break
		}
	}

	if jsonOutput {
		printJSON(recs)
		return
	}

	if len(recs) == 0 {
		color.Yellow("No transactions found.\n")
		fmt.Println("\nStart with:")
		color.Cyan("  wallet-swap swap 1 ETH to USDC\n")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 110))
	color.Green("                                          TRANSACTIONS")
	fmt.Println(strings.Repeat("=", 110))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nID\tTYPE\tCHAIN\tSTATUS\tHASH\tADDED")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for _, rec := range recs {
		typ := "-"
		if rec.TypeInfo != nil {
			typ = string(rec.TypeInfo.Type())
		}
		if rec.IsOrder() {
			typ += " (order)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateString(rec.ID, 12), typ, rec.ChainID, statusColor(rec),
			truncateString(rec.EventHash(), 18), rec.Added().Format(time.DateTime))
	}

	w.Flush()
	fmt.Println("\n" + strings.Repeat("=", 110) + "\n")
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
