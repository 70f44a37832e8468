package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != rootCmd {
			defaultHelp(cmd, args)
			return
		}
		// Help runs before PersistentPreRun, so colors() only sees parsed flags.
		c := colors()
		w := os.Stdout

		fmt.Fprintln(w, c.Header(" Push Node "))
		fmt.Fprintln(w, c.Description("Run a Push Chain validator node in Docker: setup, wallets, validator and monitoring."))
		fmt.Fprintln(w, c.Separator(50))
		fmt.Fprintln(w)

		fmt.Fprintln(w, c.SubHeader("USAGE"))
		fmt.Fprintf(w, "  %s <command> [flags]\n", "push-node")
		fmt.Fprintln(w)

		fmt.Fprintln(w, c.SubHeader("Quick Start"))
		fmt.Fprintln(w, c.FormatCommand("push-node start", "Start the node container (negotiates free ports)"))
		fmt.Fprintln(w, c.FormatCommand("push-node init [moniker]", "Initialize the node home"))
		fmt.Fprintln(w, c.FormatCommand("push-node configure", "Fetch genesis and write node settings"))
		fmt.Fprintln(w, c.FormatCommand("push-node status", "Show sync status"))
		fmt.Fprintln(w)

		fmt.Fprintln(w, c.SubHeader("Operations"))
		fmt.Fprintln(w, c.FormatCommand("push-node stop", "Stop and remove the node container"))
		fmt.Fprintln(w, c.FormatCommand("push-node restart", "Recreate the node container"))
		fmt.Fprintln(w, c.FormatCommand("push-node ports", "Show assigned host ports"))
		fmt.Fprintln(w, c.FormatCommand("push-node logs [-f]", "Show node logs"))
		fmt.Fprintln(w)

		fmt.Fprintln(w, c.SubHeader("Wallets"))
		fmt.Fprintln(w, c.FormatCommand("push-node create-wallet [name]", "Create a wallet (defaults to KEY_NAME)"))
		fmt.Fprintln(w, c.FormatCommand("push-node import-mnemonic [name]", "Recover a wallet from a mnemonic"))
		fmt.Fprintln(w, c.FormatCommand("push-node import-private-key [name]", "Import an Ethereum private key"))
		fmt.Fprintln(w, c.FormatCommand("push-node balance [wallet]", "Check wallet balance"))
		fmt.Fprintln(w, c.FormatCommand("push-node faucet [wallet]", "Show faucet funding details"))
		fmt.Fprintln(w)

		fmt.Fprintln(w, c.SubHeader("Validator"))
		fmt.Fprintln(w, c.FormatCommand("push-node register-validator [wallet] [moniker]", "Register this node as a validator"))
		fmt.Fprintln(w, c.FormatCommand("push-node edit-validator [wallet] <moniker>", "Change the validator moniker"))
		fmt.Fprintln(w, c.FormatCommand("push-node validator-status [wallet]", "Show on-chain validator status"))
		fmt.Fprintln(w)

		fmt.Fprintln(w, c.SubHeader("Flags"))
		fmt.Fprintln(w, c.FormatFlag("-o, --output", "text|json|yaml"))
		fmt.Fprintln(w, c.FormatFlag("--project-dir", "Directory holding docker-compose.yml and .env"))
		fmt.Fprintln(w, c.FormatFlag("--no-color, --no-emoji", "Plain output"))
		fmt.Fprintln(w)
	})
}
