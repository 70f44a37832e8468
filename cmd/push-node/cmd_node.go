package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pushchain/push-node-docker/internal/bootstrap"
	"github.com/pushchain/push-node-docker/internal/ports"
	"github.com/pushchain/push-node-docker/internal/process"
	"github.com/pushchain/push-node-docker/internal/store"
	"github.com/pushchain/push-node-docker/internal/ui"
)

func init() {
	var initOverwrite bool
	initCmd := &cobra.Command{
		Use:   "init [moniker]",
		Short: "Initialize the node home and moniker",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			moniker := ""
			if len(args) == 1 {
				moniker = args[0]
			}
			return handleInit(cmd.Context(), a, moniker, initOverwrite)
		},
	}
	initCmd.Flags().BoolVar(&initOverwrite, "overwrite", false, "Overwrite an existing node home")
	rootCmd.AddCommand(initCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "configure",
		Short: "Download genesis and apply seeds and service settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			return handleConfigure(cmd.Context(), a)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Negotiate host ports and start the node container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			res, err := a.sup.Start(cmd.Context(), process.StartOpts{})
			if err != nil {
				return err
			}
			return printStart(res, "Node container started")
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "restart",
		Short: "Restart the node container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			res, err := a.sup.Restart(cmd.Context(), process.StartOpts{})
			if err != nil {
				return err
			}
			return printStart(res, "Node container restarted")
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop the node container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			return handleStop(cmd.Context(), a)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show node sync status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			p := getPrinter()
			if p.Structured() {
				st, err := a.monitor(nil).Once(cmd.Context(), nil, nil)
				if err != nil {
					return err
				}
				return p.Result(st, func() {})
			}
			_, err = a.monitor(nil).Once(cmd.Context(), p.Writer(), p.Colors)
			return err
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "ports",
		Short: "Show persisted host ports and whether they are in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			return handlePorts(cmd.Context(), a)
		},
	})

	var logsTail int
	var logsFollow bool
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Show node container logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			return a.orch.Logs(cmd.Context(), a.cfg.ContainerName, logsTail, logsFollow, os.Stdout)
		},
	}
	logsCmd.Flags().IntVar(&logsTail, "tail", 100, "Number of lines to show from the end")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	rootCmd.AddCommand(logsCmd)
}

func handleInit(ctx context.Context, a *app, moniker string, overwrite bool) error {
	p := getPrinter()
	if _, _, err := a.sup.EnsureRunning(ctx, process.StartOpts{}); err != nil {
		return err
	}
	res, err := a.bootstrap().Init(ctx, bootstrap.Options{
		HomeDir:   a.cfg.HomeDir,
		ChainID:   a.cfg.ChainID,
		Moniker:   moniker,
		Overwrite: overwrite,
	})
	if err != nil {
		return err
	}
	return p.Result(res, func() {
		if res.AlreadyInitialized {
			p.Info(fmt.Sprintf("Node home %s already initialized (use --overwrite to reinitialize)", a.cfg.HomeDir))
		} else {
			p.Success(fmt.Sprintf("Node initialized with moniker %q", res.Moniker))
		}
		p.Info("Next: push-node configure")
	})
}

func handleConfigure(ctx context.Context, a *app) error {
	p := getPrinter()
	if _, _, err := a.sup.EnsureRunning(ctx, process.StartOpts{}); err != nil {
		return err
	}
	res, err := a.bootstrap().Configure(ctx, bootstrap.ConfigureOptions{
		HomeDir:         a.cfg.HomeDir,
		ChainID:         a.cfg.ChainID,
		KeyringBackend:  a.cfg.KeyringBackend,
		GenesisURL:      a.cfg.GenesisURL,
		Seeds:           a.cfg.Seeds,
		PersistentPeers: a.cfg.PersistentPeers,
	})
	if err != nil {
		return err
	}
	return p.Result(res, func() {
		if res.GenesisBytes > 0 {
			p.Success(fmt.Sprintf("Genesis installed (%d bytes)", res.GenesisBytes))
		}
		for _, s := range res.Settings {
			p.Success("Applied " + s)
		}
		p.Info("The node starts once configuration is complete; follow it with: push-node status")
	})
}

func handleStop(ctx context.Context, a *app) error {
	p := getPrinter()
	if err := a.sup.Stop(ctx); err != nil {
		if p.Structured() {
			_ = p.Result(map[string]any{"ok": false, "error": err.Error()}, func() {})
		}
		return err
	}
	return p.Result(map[string]any{"ok": true, "action": "stop"}, func() { p.Success("Node stopped") })
}

func printStart(res process.StartResult, msg string) error {
	p := getPrinter()
	return p.Result(res, func() {
		for _, w := range res.Warnings {
			p.Warn(w)
		}
		if res.Replaced {
			p.Info("Replaced the existing node container")
		}
		p.Success(msg)
		p.Textf("%s", portsTable(p.Colors, res.Assignment, nil))
		p.Info("Check progress: push-node status")
	})
}

type portRow struct {
	Role   string `json:"role" yaml:"role"`
	Port   int    `json:"port" yaml:"port"`
	InUse  bool   `json:"in_use" yaml:"in_use"`
	EnvKey string `json:"env_key" yaml:"env_key"`
}

func handlePorts(ctx context.Context, a *app) error {
	p := getPrinter()
	cfg, err := a.store.Load()
	if err != nil {
		return err
	}
	persisted := cfg.Persisted()
	oracle := ports.NewSocketOracle(ctx)

	current := ports.Assignment{}
	rows := make([]portRow, 0, len(ports.Roles))
	for _, r := range ports.Roles {
		port, ok := persisted[r]
		if !ok {
			continue
		}
		current[r] = port
		rows = append(rows, portRow{Role: string(r), Port: port, InUse: !oracle.Available(port), EnvKey: store.RoleKeys[r]})
	}
	return p.Result(rows, func() {
		if len(rows) == 0 {
			p.Info("No ports persisted yet; run push-node start")
			return
		}
		if err := oracle.Degraded(); err != nil {
			p.Warn(err.Error())
		}
		p.Textf("%s", portsTable(p.Colors, current, oracle))
	})
}

// portsTable renders the assignment; with an oracle it adds a listening column.
func portsTable(c *ui.ColorConfig, a ports.Assignment, oracle ports.Oracle) string {
	headers := []string{"ROLE", "PORT", "ENV"}
	if oracle != nil {
		headers = append(headers, "LISTENING")
	}
	var rows [][]string
	for _, r := range ports.Roles {
		port, ok := a[r]
		if !ok {
			continue
		}
		row := []string{string(r), strconv.Itoa(port), r.EnvKey()}
		if oracle != nil {
			row = append(row, strconv.FormatBool(!oracle.Available(port)))
		}
		rows = append(rows, row)
	}
	return ui.Table(c, headers, rows, nil)
}
