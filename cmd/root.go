package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// verbose overrides the configured log level
var verbose bool

var rootCmd = &cobra.Command{
	Use:   "wallet-swap",
	Short: "A CLI wallet for token swaps, wraps and transfers on EVM chains",
	Long: `wallet-swap quotes and executes token swaps through the Uniswap Trading API.
Classic swaps are broadcast with their approval and wrap transactions at
consecutive nonces; UniswapX orders are signed and submitted once their
prerequisite transactions have confirmed.

Examples:
  wallet-swap quote 1 ETH to USDC
  wallet-swap swap 1 ETH to USDC --chain base
  wallet-swap swap ETH for 100 USDC --yes
  wallet-swap wrap 0.5
  wallet-swap send 10 USDC to 0x1234...
  wallet-swap list
  wallet-swap status <id>
  wallet-swap serve`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ = cmd.Flags().GetBool("verbose")
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}
