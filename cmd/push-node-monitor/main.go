// Command push-node-monitor reports the sync status of the node container,
// once or continuously, and can expose it as Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pushchain/push-node-docker/internal/config"
	"github.com/pushchain/push-node-docker/internal/container"
	"github.com/pushchain/push-node-docker/internal/logging"
	"github.com/pushchain/push-node-docker/internal/monitor"
	"github.com/pushchain/push-node-docker/internal/node"
	"github.com/pushchain/push-node-docker/internal/ui"
)

var (
	flagContinuous  bool
	flagInterval    time.Duration
	flagMetricsAddr string
	flagNoColor     bool
)

var rootCmd = &cobra.Command{
	Use:           "push-node-monitor",
	Short:         "Show Push node sync status",
	Long:          "Show the sync status of the Push node container once, or poll it with --continuous.",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), cmd)
	},
}

func init() {
	f := rootCmd.Flags()
	f.BoolVarP(&flagContinuous, "continuous", "c", false, "Poll status until interrupted")
	f.DurationVar(&flagInterval, "interval", monitor.DefaultInterval, "Poll interval in continuous mode")
	f.StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (continuous mode), e.g. :9464")
	f.BoolVar(&flagNoColor, "no-color", false, "Disable ANSI colors")
	f.String("container", "", "Node container name (overrides CONTAINER_NAME)")
	f.String("bin", "", "Node binary inside the container (overrides PCHAIND)")
	f.String("project-dir", "", "Directory holding the compose file and .env")
	f.String("log-level", "", "Log level: debug|info|warn|error")
	f.String("log-format", "", "Log format: console|json")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Out: os.Stderr})
	if err != nil {
		return err
	}

	colors := ui.NewColorConfig()
	colors.Enabled = colors.Enabled && !flagNoColor

	orch := container.New(container.ExecRunner{}, cfg.ComposePath(), cfg.ProjectDir, log)
	if err := orch.Available(ctx); err != nil {
		return err
	}
	bridge := node.NewBridge(orch, cfg.ContainerName, cfg.BinPath, log)

	reg := prometheus.NewRegistry()
	metrics := monitor.NewMetrics(reg)
	mon := monitor.New(bridge, metrics, log)

	if !flagContinuous {
		_, err := mon.Once(ctx, os.Stdout, colors)
		return err
	}

	if flagMetricsAddr != "" {
		reg.MustRegister(collectors.NewGoCollector())
		go serveMetrics(ctx, log, flagMetricsAddr, reg)
	}
	return mon.Run(ctx, monitor.Options{Interval: flagInterval, Out: os.Stdout, Colors: colors})
}

// serveMetrics runs the metrics endpoint until ctx is cancelled.
func serveMetrics(ctx context.Context, log zerolog.Logger, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics server failed")
	}
}
