// Package monitor polls the containerized node for its sync state.
package monitor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushchain/push-node-docker/internal/container"
	"github.com/pushchain/push-node-docker/internal/errors"
	"github.com/pushchain/push-node-docker/internal/logging"
	"github.com/pushchain/push-node-docker/internal/node"
	"github.com/pushchain/push-node-docker/internal/ui"
)

// DefaultInterval is the delay between polls in continuous mode.
const DefaultInterval = 10 * time.Second

// NetInfoURL is the node RPC endpoint queried for peers, as seen from inside the container.
const NetInfoURL = "http://localhost:26657/net_info"

// Bridge is the node access the monitor needs.
type Bridge interface {
	Exec(ctx context.Context, args ...string) (string, int, error)
	NodeOutput(ctx context.Context, stdin string, args ...string) (container.Output, error)
	Running(ctx context.Context) (bool, error)
	Container() string
}

// Monitor fetches and renders node status.
type Monitor struct {
	bridge  Bridge
	metrics *Metrics
	logger  zerolog.Logger
}

// New creates a monitor. metrics may be nil.
func New(bridge Bridge, metrics *Metrics, logger zerolog.Logger) *Monitor {
	return &Monitor{
		bridge:  bridge,
		metrics: metrics,
		logger:  logging.Component(logger, "monitor"),
	}
}

// FetchStatus queries the node once. Any failure to obtain usable data is a *RetrievalError.
func (m *Monitor) FetchStatus(ctx context.Context) (SyncStatus, error) {
	out, err := m.bridge.NodeOutput(ctx, "", "status")
	if err != nil {
		return SyncStatus{}, retrievalf(err, "status command could not run")
	}
	if out.ExitCode != 0 {
		return SyncStatus{}, retrievalf(nil, "status command exited with code %d", out.ExitCode)
	}
	// older node versions print status on stderr
	st, err := ParseStatus(node.Combined(out))
	if err != nil {
		return SyncStatus{}, err
	}

	raw, code, err := m.bridge.Exec(ctx, "curl", "-s", NetInfoURL)
	if err != nil {
		return SyncStatus{}, retrievalf(err, "net_info request could not run")
	}
	if code != 0 {
		return SyncStatus{}, retrievalf(nil, "net_info request exited with code %d", code)
	}
	if st.Peers, err = ParsePeers(raw); err != nil {
		return SyncStatus{}, err
	}
	return st, nil
}

// Once fetches and writes status to out.
func (m *Monitor) Once(ctx context.Context, out io.Writer, colors *ui.ColorConfig) (SyncStatus, error) {
	if err := m.ensureRunning(ctx); err != nil {
		return SyncStatus{}, err
	}
	st, err := m.FetchStatus(ctx)
	if err != nil {
		m.metrics.Failed()
		return SyncStatus{}, err
	}
	m.metrics.Observe(st)
	if out != nil {
		fmt.Fprint(out, RenderWith(colors, st))
	}
	return st, nil
}

// Options controls continuous mode.
type Options struct {
	Interval time.Duration // DefaultInterval when zero
	Out      io.Writer
	Colors   *ui.ColorConfig
}

// Run polls until ctx is cancelled. A stopped container ends the loop with an
// error; retrieval errors are reported and polling continues.
func (m *Monitor) Run(ctx context.Context, opts Options) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	if opts.Colors == nil {
		opts.Colors = ui.NewPlainColorConfig()
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		_, err := m.Once(ctx, out, opts.Colors)
		switch {
		case ctx.Err() != nil:
			return nil
		case err == nil:
		case errors.HasCode(err, errors.CodeRetrieval):
			m.logger.Warn().Err(err).Msg("status poll failed")
			fmt.Fprintf(out, "%s %s\n", opts.Colors.Warning("!"), err.Error())
		default:
			return err
		}

		fmt.Fprintf(out, "\nNext update in %s (Ctrl+C to stop)\n\n", interval)
		timer.Reset(interval)
	}
}

func (m *Monitor) ensureRunning(ctx context.Context) error {
	running, err := m.bridge.Running(ctx)
	if err != nil {
		return errors.WrapCode(err, errors.CodeCommand, "monitor.check", "failed to check node container")
	}
	if !running {
		return errors.Newf(errors.CodePrecondition, "monitor.check",
			"node container %q is not running; start it with 'push-node start'", m.bridge.Container())
	}
	return nil
}
