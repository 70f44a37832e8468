package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pushchain/push-node-docker/internal/config"
	"github.com/pushchain/push-node-docker/internal/ui"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// rootCmd wires the CLI surface using Cobra. Persistent flags are
// merged into the loaded config by loadCfg(). Subcommands implement the
// actual operations (init, start/stop, wallets, validator, status).
var rootCmd = &cobra.Command{
	Use:           "push-node",
	Short:         "Run a Push Chain validator node in Docker",
	Long:          "Initialize, configure, start and monitor a Push Chain validator node running in Docker.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return ui.ValidateFormat(flagOutput)
	},
}

var (
	flagOutput  string
	flagNoColor bool
	flagNoEmoji bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("home", "", "Node home directory inside the container (overrides HOME_DIR)")
	pf.String("bin", "", "Node binary inside the container (overrides PCHAIND)")
	pf.String("container", "", "Node container name (overrides CONTAINER_NAME)")
	pf.String("compose-file", "", "Compose file (overrides COMPOSE_FILE)")
	pf.String("project-dir", "", "Directory holding the compose file, .env and the node store")
	pf.String("store", "", "Node store file with ports and moniker (overrides STORE_FILE)")
	pf.String("chain-id", "", "Chain ID (overrides CHAIN_ID)")
	pf.String("log-level", "", "Log level: debug|info|warn|error")
	pf.String("log-format", "", "Log format: console|json")
	pf.StringVarP(&flagOutput, "output", "o", "text", "Output format: text|json|yaml")
	pf.BoolVar(&flagNoColor, "no-color", false, "Disable ANSI colors")
	pf.BoolVar(&flagNoEmoji, "no-emoji", false, "Disable emoji output")

	rootCmd.AddCommand(&cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(os.Stdout)
			case "zsh":
				return rootCmd.GenZshCompletion(os.Stdout)
			case "fish":
				return rootCmd.GenFishCompletion(os.Stdout, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unknown shell: %s", args[0])
			}
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run:   func(cmd *cobra.Command, args []string) { fmt.Println("push-node", version) },
	})
}

// Execute runs the root command and exits 1 on any error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		c := colors()
		fmt.Fprintln(os.Stderr, c.Error("✗"), err)
		stop()
		os.Exit(1)
	}
}

// loadCfg reads defaults, .env and environment via internal/config and then
// applies the persistent flags that were set.
func loadCfg() (config.Config, error) {
	return config.Load(rootCmd.PersistentFlags())
}

// colors returns the color config honoring --no-color and --no-emoji.
func colors() *ui.ColorConfig {
	c := ui.NewColorConfig()
	c.Enabled = c.Enabled && !flagNoColor
	c.EmojiEnabled = c.EmojiEnabled && !flagNoEmoji
	return c
}

// getPrinter returns a UI printer bound to the current --output flag.
func getPrinter() ui.Printer {
	return ui.NewPrinterTo(flagOutput, os.Stdout, colors())
}
