// Package node routes node CLI invocations into the running node container.
package node

import (
	"context"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pushchain/push-node-docker/internal/container"
	"github.com/pushchain/push-node-docker/internal/logging"
)

// Executor is the container capability the bridge needs.
type Executor interface {
	Exec(ctx context.Context, name string, stdin io.Reader, args ...string) (container.Output, error)
	IsRunning(ctx context.Context, name string) (bool, error)
}

// Runner is what node-level services consume. err means the command could not
// be run at all; a failing command is reported through exitCode.
type Runner interface {
	Exec(ctx context.Context, args ...string) (stdout string, exitCode int, err error)
	ExecInput(ctx context.Context, stdin string, args ...string) (stdout string, exitCode int, err error)
	Node(ctx context.Context, args ...string) (stdout string, exitCode int, err error)
	// NodeOutput runs the node binary and returns stdout and stderr. stdin may be empty.
	NodeOutput(ctx context.Context, stdin string, args ...string) (container.Output, error)
}

// Bridge executes commands inside one container.
type Bridge struct {
	exec      Executor
	container string
	bin       string
	logger    zerolog.Logger
}

// NewBridge creates a bridge for the named container running bin.
func NewBridge(exec Executor, containerName, bin string, logger zerolog.Logger) *Bridge {
	return &Bridge{
		exec:      exec,
		container: containerName,
		bin:       bin,
		logger:    logging.Component(logger, "node_bridge").With().Str("container", containerName).Logger(),
	}
}

// Container returns the target container name.
func (b *Bridge) Container() string { return b.container }

// Bin returns the node binary invoked by Node.
func (b *Bridge) Bin() string { return b.bin }

// Running reports whether the target container is running.
func (b *Bridge) Running(ctx context.Context) (bool, error) {
	return b.exec.IsRunning(ctx, b.container)
}

// Exec runs args in the container.
func (b *Bridge) Exec(ctx context.Context, args ...string) (string, int, error) {
	return b.run(ctx, nil, args)
}

// ExecInput runs args in the container with stdin attached.
func (b *Bridge) ExecInput(ctx context.Context, stdin string, args ...string) (string, int, error) {
	return b.run(ctx, strings.NewReader(stdin), args)
}

// Node runs the node binary with args.
func (b *Bridge) Node(ctx context.Context, args ...string) (string, int, error) {
	return b.run(ctx, nil, append([]string{b.bin}, args...))
}

// NodeOutput runs the node binary and returns the full output.
func (b *Bridge) NodeOutput(ctx context.Context, stdin string, args ...string) (container.Output, error) {
	var in io.Reader
	if stdin != "" {
		in = strings.NewReader(stdin)
	}
	return b.output(ctx, in, append([]string{b.bin}, args...))
}

func (b *Bridge) run(ctx context.Context, stdin io.Reader, args []string) (string, int, error) {
	out, err := b.output(ctx, stdin, args)
	if err != nil {
		return "", -1, err
	}
	return out.Stdout, out.ExitCode, nil
}

func (b *Bridge) output(ctx context.Context, stdin io.Reader, args []string) (container.Output, error) {
	out, err := b.exec.Exec(ctx, b.container, stdin, args...)
	if err != nil {
		return out, err
	}
	if out.ExitCode != 0 {
		b.logger.Debug().
			Str("cmd", strings.Join(args[:min(2, len(args))], " ")).
			Int("exit_code", out.ExitCode).
			Str("stderr", strings.TrimSpace(out.Stderr)).
			Msg("node command failed")
	}
	return out, nil
}

// Combined returns stdout, or stderr when stdout is empty. Several node
// commands print their result on stderr.
func Combined(out container.Output) string {
	if strings.TrimSpace(out.Stdout) != "" {
		return out.Stdout
	}
	return out.Stderr
}
