package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"wallet-swap/pkg/transaction"
)

var watchStatus bool

var statusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Check the status of a transaction or order",
	Long: `Show a tracked transaction or order by its id.

With --watch the receipt watcher and order tracker run until the record
is final.

Examples:
  wallet-swap status 6f1c...
  wallet-swap status 6f1c... --watch --timeout 5m`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Wait until the transaction is final")
	statusCmd.Flags().DurationVar(&waitTimeout, "timeout", defaultWatchTimeout, "How long to watch")
}

func runStatus(cmd *cobra.Command, args []string) {
	id := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if !watchStatus {
		store, err := openStore(cfg)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		defer store.Close()
		rec, err := store.Get(id)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		showRecord(rec, jsonOutput)
		return
	}

	a, err := newApp(cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	ctx, cancel := signalContext()
	a.start(ctx, false)
	rec, err := waitFinal(ctx, a.store, id, waitTimeout, jsonOutput)
	cancel()
	a.Close()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	showRecord(rec, jsonOutput)
}

func showRecord(rec *transaction.Record, jsonOutput bool) {
	if jsonOutput {
		printJSON(rec)
		return
	}
	displayRecord(rec)
}
