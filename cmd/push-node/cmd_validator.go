package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pushchain/push-node-docker/internal/bootstrap"
	"github.com/pushchain/push-node-docker/internal/store"
	"github.com/pushchain/push-node-docker/internal/validator"
)

func init() {
	var regAmount, regCommission, regMinSelf string
	regCmd := &cobra.Command{
		Use:   "register-validator [wallet] [moniker]",
		Short: "Register this node as a validator",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRunning(cmd.Context()); err != nil {
				return err
			}
			moniker := ""
			if len(args) == 2 {
				moniker = args[1]
			}
			if moniker == "" {
				cfg, err := a.store.Load()
				if err != nil {
					return err
				}
				moniker = cfg.Moniker
			}
			if moniker == "" {
				moniker = bootstrap.DefaultMoniker
			}

			amount := regAmount
			if !cmd.Flags().Changed("amount") {
				amount = getenvDefault("STAKE_AMOUNT", regAmount)
			}
			name := walletName(args, 0)
			tx, err := a.validator().Register(cmd.Context(), validator.RegisterArgs{
				Moniker:           moniker,
				KeyName:           name,
				Amount:            amount,
				CommissionRate:    regCommission,
				MinSelfDelegation: regMinSelf,
			})
			if err != nil {
				return err
			}
			if err := a.store.Upsert(store.KeyMoniker, moniker); err != nil {
				return err
			}
			p := getPrinter()
			return p.Result(map[string]string{"txhash": tx, "moniker": moniker, "wallet": name}, func() {
				p.Success(fmt.Sprintf("Validator %q registered", moniker))
				p.Textf("%s\n", p.Colors.FormatKeyValue("Tx Hash", tx))
				p.Info("Check it with: push-node validator-status " + name)
			})
		},
	}
	regCmd.Flags().StringVar(&regAmount, "amount", validator.DefaultStake, "Self-delegation in base denom")
	regCmd.Flags().StringVar(&regCommission, "commission-rate", "0.10", "Commission rate")
	regCmd.Flags().StringVar(&regMinSelf, "min-self-delegation", "1", "Minimum self-delegation")
	rootCmd.AddCommand(regCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "edit-validator [wallet] [moniker]",
		Short: "Change the validator moniker",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRunning(cmd.Context()); err != nil {
				return err
			}
			// A single argument is the new moniker for the default wallet.
			name, moniker := walletName(nil, 0), args[0]
			if len(args) == 2 {
				name, moniker = args[0], args[1]
			}
			tx, err := a.validator().Edit(cmd.Context(), validator.EditArgs{KeyName: name, NewMoniker: moniker})
			if err != nil {
				return err
			}
			if err := a.store.Upsert(store.KeyMoniker, moniker); err != nil {
				return err
			}
			p := getPrinter()
			return p.Result(map[string]string{"txhash": tx, "moniker": moniker}, func() {
				p.Success(fmt.Sprintf("Validator moniker changed to %q", moniker))
				p.Textf("%s\n", p.Colors.FormatKeyValue("Tx Hash", tx))
			})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "validator-status [wallet]",
		Short: "Show on-chain validator status",
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
			valoper, err := svc.ValoperAddress(cmd.Context(), walletName(args, 0))
			if err != nil {
				return err
			}
			st, err := svc.Status(cmd.Context(), valoper)
			if err != nil {
				return err
			}
			p := getPrinter()
			return p.Result(st, func() {
				c := p.Colors
				if !st.IsValidator {
					p.Warn(fmt.Sprintf("%s is not registered as a validator; run push-node register-validator", valoper))
					return
				}
				icon := c.StatusIcon("success")
				if st.Status != "Bonded" {
					icon = c.StatusIcon("pending")
				}
				fmt.Fprintln(p.Writer(), c.Header(" VALIDATOR STATUS "))
				fmt.Fprintln(p.Writer(), c.Separator(44))
				p.Textf("%s %s\n", icon, c.FormatKeyValue("Status", st.Status))
				p.Textf("%s %s\n", c.StatusIcon("info"), c.FormatKeyValue("Moniker", st.Moniker))
				p.Textf("%s %s\n", c.StatusIcon("info"), c.FormatKeyValue("Operator", st.OperatorAddress))
				p.Textf("%s %s\n", c.StatusIcon("info"), c.FormatKeyValue("Tokens", validator.FormatTokens(st.Tokens)+" PC"))
				if st.Commission != "" {
					p.Textf("%s %s\n", c.StatusIcon("info"), c.FormatKeyValue("Commission", st.Commission))
				}
				jailed := c.StatusIcon("success")
				if st.Jailed {
					jailed = c.StatusIcon("error")
				}
				p.Textf("%s %s\n", jailed, c.FormatKeyValue("Jailed", fmt.Sprint(st.Jailed)))
			})
		},
	})
}
