package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pushchain/push-node-docker/internal/secret"
	"github.com/pushchain/push-node-docker/internal/validator"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "create-wallet [name]",
		Short: "Create a new wallet in the node keyring",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRunning(cmd.Context()); err != nil {
				return err
			}
			w, err := a.validator().CreateWallet(cmd.Context(), walletName(args, 0))
			if err != nil {
				return err
			}
			return printWallet(w, "Wallet created")
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "import-mnemonic [name]",
		Short: "Import a wallet from a mnemonic phrase",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mnemonic, err := secret.Require(secret.NewTerminal(), "Enter mnemonic: ", "mnemonic")
			if err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRunning(cmd.Context()); err != nil {
				return err
			}
			w, err := a.validator().ImportMnemonic(cmd.Context(), walletName(args, 0), mnemonic)
			if err != nil {
				return err
			}
			return printWallet(w, "Wallet imported")
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "import-private-key [name]",
		Short: "Import a wallet from an Ethereum-style private key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secret.Require(secret.NewTerminal(), "Enter private key (hex): ", "private key")
			if err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRunning(cmd.Context()); err != nil {
				return err
			}
			w, err := a.validator().ImportPrivateKey(cmd.Context(), walletName(args, 0), key)
			if err != nil {
				return err
			}
			return printWallet(w, "Wallet imported")
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "balance [wallet]",
		Short: "Show wallet balance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRunning(cmd.Context()); err != nil {
				return err
			}
			svc := a.validator()
			name := walletName(args, 0)
			addr, err := svc.Address(cmd.Context(), name)
			if err != nil {
				return err
			}
			bal, err := svc.Balance(cmd.Context(), addr)
			if err != nil {
				return err
			}
			p := getPrinter()
			res := map[string]string{"wallet": name, "address": addr, "amount": bal, "denom": a.cfg.Denom}
			return p.Result(res, func() {
				c := p.Colors
				p.Textf("%s\n", c.FormatKeyValue("Wallet", name))
				p.Textf("%s\n", c.FormatKeyValue("Address", addr))
				p.Textf("%s\n", c.FormatKeyValue("Balance", fmt.Sprintf("%s PC (%s %s)", validator.FormatTokens(bal), bal, a.cfg.Denom)))
			})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "faucet [wallet]",
		Short: "Show how to fund a wallet from the faucet",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRunning(cmd.Context()); err != nil {
				return err
			}
			info, err := a.validator().Faucet(cmd.Context(), walletName(args, 0))
			if err != nil {
				return err
			}
			p := getPrinter()
			return p.Result(info, func() {
				c := p.Colors
				p.Info("Request test tokens for this wallet at the faucet:")
				p.Textf("  %s\n", c.FormatKeyValue("Faucet", info.URL))
				p.Textf("  %s\n", c.FormatKeyValue("Address", info.Address))
				if info.EVMAddress != "" {
					p.Textf("  %s\n", c.FormatKeyValue("EVM Address", info.EVMAddress))
				}
			})
		},
	})
}

func printWallet(w validator.Wallet, msg string) error {
	p := getPrinter()
	return p.Result(w, func() {
		c := p.Colors
		p.Success(msg)
		p.Textf("%s\n", c.FormatKeyValue("Name", w.Name))
		p.Textf("%s\n", c.FormatKeyValue("Address", w.Address))
		if w.EVMAddress != "" {
			p.Textf("%s\n", c.FormatKeyValue("EVM Address", w.EVMAddress))
		}
		if w.Mnemonic != "" {
			p.Warn("Write down this mnemonic and keep it safe; it is the only way to recover the wallet:")
			p.Textf("\n  %s\n\n", c.Value(w.Mnemonic))
		}
	})
}
