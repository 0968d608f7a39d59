package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/pkg/api"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the receipt watcher, order tracker and status API",
	Long: `Run in the foreground: watch pending transactions for receipts, recover and
poll UniswapX orders, print notifications and serve the read-only status API.

Endpoints:
  GET /healthz
  GET /metrics
  GET /transactions?status=&queue=&account=&chain=
  GET /transactions/{id}

Examples:
  wallet-swap serve
  wallet-swap serve --listen 0.0.0.0:9090`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Address to listen on (defaults to api.listen)")
}

func runServe(cmd *cobra.Command, args []string) {
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
	addr := firstNonEmpty(serveListen, cfg.APIListen)

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                      WALLET SWAP DAEMON")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("\n  Chains:   %d\n", len(a.clients.Chains()))
	fmt.Printf("  Accounts: %s\n", strings.Join(a.signer.Accounts(), ", "))
	fmt.Printf("  Status:   %s\n", color.CyanString("http://"+addr))
	fmt.Println("\nPress Ctrl+C to stop.")

	ctx, cancel := signalContext()
	a.start(ctx, true)
	err = api.NewServer(a.store, a.registry).Run(ctx, addr)
	if err == nil {
		color.Yellow("\nReceived shutdown signal. Stopping gracefully...")
	}
	cancel()
	a.Close()

	if err != nil {
		printError(err)
		os.Exit(1)
	}
	color.Green("\n✓ Daemon stopped successfully.")
}
