// Package container drives the docker CLI for the node's compose stack.
package container

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pushchain/push-node-docker/internal/errors"
	"github.com/pushchain/push-node-docker/internal/logging"
)

const dockerBin = "docker"

// Orchestrator wraps the docker and docker compose commands the tooling needs.
type Orchestrator struct {
	runner      Runner
	composeFile string
	projectDir  string
	logger      zerolog.Logger
}

// New creates an orchestrator for the compose stack at composeFile.
func New(runner Runner, composeFile, projectDir string, logger zerolog.Logger) *Orchestrator {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Orchestrator{
		runner:      runner,
		composeFile: composeFile,
		projectDir:  projectDir,
		logger:      logging.Component(logger, "orchestrator"),
	}
}

// Available verifies docker and the compose plugin can be used.
func (o *Orchestrator) Available(ctx context.Context) error {
	if _, err := o.runner.LookPath(dockerBin); err != nil {
		return errors.New(errors.CodePrecondition, "container.available",
			"docker is not installed or not on PATH; install Docker and retry").WithCause(err)
	}
	out, err := o.runner.Run(ctx, Command{Name: dockerBin, Args: []string{"compose", "version"}})
	if err != nil {
		return errors.WrapCode(err, errors.CodePrecondition, "container.available", "failed to run docker compose")
	}
	if out.ExitCode != 0 {
		return errors.New(errors.CodePrecondition, "container.available",
			"docker compose is not available; install the compose plugin and retry").
			WithContext("stderr", strings.TrimSpace(out.Stderr))
	}
	return nil
}

// List returns the names of containers (running or not) named exactly name.
func (o *Orchestrator) List(ctx context.Context, name string) ([]string, error) {
	out, err := o.docker(ctx, "container.list", "ps", "-a", "--filter", "name=^/"+name+"$", "--format", "{{.Names}}")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// Exists reports whether a container named name exists.
func (o *Orchestrator) Exists(ctx context.Context, name string) (bool, error) {
	names, err := o.List(ctx, name)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// IsRunning reports whether name is running. A missing container is not running.
func (o *Orchestrator) IsRunning(ctx context.Context, name string) (bool, error) {
	out, err := o.runner.Run(ctx, Command{
		Name: dockerBin,
		Args: []string{"inspect", "-f", "{{.State.Running}}", name},
	})
	if err != nil {
		return false, errors.WrapCode(err, errors.CodeCommand, "container.is_running", "failed to run docker inspect")
	}
	if out.ExitCode != 0 {
		return false, nil
	}
	return strings.TrimSpace(out.Stdout) == "true", nil
}

// Stop stops the named container.
func (o *Orchestrator) Stop(ctx context.Context, name string) error {
	_, err := o.docker(ctx, "container.stop", "stop", name)
	return err
}

// Remove removes the named container.
func (o *Orchestrator) Remove(ctx context.Context, name string) error {
	_, err := o.docker(ctx, "container.remove", "rm", "-f", name)
	return err
}

// ComposeUp starts the stack detached with env added to the compose environment.
func (o *Orchestrator) ComposeUp(ctx context.Context, env []string) error {
	_, err := o.run(ctx, "container.compose_up", Command{
		Name: dockerBin,
		Args: o.composeArgs("up", "-d"),
		Dir:  o.projectDir,
		Env:  env,
	})
	return err
}

// ComposeDown stops and removes the stack.
func (o *Orchestrator) ComposeDown(ctx context.Context) error {
	_, err := o.run(ctx, "container.compose_down", Command{
		Name: dockerBin,
		Args: o.composeArgs("down"),
		Dir:  o.projectDir,
	})
	return err
}

// CopyTo copies a host file into the container.
func (o *Orchestrator) CopyTo(ctx context.Context, name, src, dst string) error {
	_, err := o.docker(ctx, "container.copy", "cp", src, name+":"+dst)
	return err
}

// Exec runs args inside the container. stdin may be nil.
// Non-zero exits are returned in Output, not as errors.
func (o *Orchestrator) Exec(ctx context.Context, name string, stdin io.Reader, args ...string) (Output, error) {
	full := []string{"exec"}
	if stdin != nil {
		full = append(full, "-i")
	}
	full = append(full, name)
	full = append(full, args...)

	o.logger.Debug().Strs("args", redact(args)).Str("container", name).Msg("docker exec")
	out, err := o.runner.Run(ctx, Command{Name: dockerBin, Args: full, Stdin: stdin})
	if err != nil {
		return out, errors.WrapCode(err, errors.CodeCommand, "container.exec", "failed to run docker exec")
	}
	return out, nil
}

// Logs streams container logs to w.
func (o *Orchestrator) Logs(ctx context.Context, name string, tail int, follow bool, w io.Writer) error {
	args := []string{"logs", "--tail", fmt.Sprint(tail)}
	if follow {
		args = append(args, "-f")
	}
	args = append(args, name)
	_, err := o.run(ctx, "container.logs", Command{Name: dockerBin, Args: args, Stdout: w})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (o *Orchestrator) composeArgs(args ...string) []string {
	out := []string{"compose"}
	if o.composeFile != "" {
		out = append(out, "-f", o.composeFile)
	}
	return append(out, args...)
}

func (o *Orchestrator) docker(ctx context.Context, op string, args ...string) (string, error) {
	out, err := o.run(ctx, op, Command{Name: dockerBin, Args: args})
	return out.Stdout, err
}

// run executes c and turns a non-zero exit into a CodeCommand error.
func (o *Orchestrator) run(ctx context.Context, op string, c Command) (Output, error) {
	o.logger.Debug().Str("op", op).Strs("args", redact(c.Args)).Msg("docker")
	out, err := o.runner.Run(ctx, c)
	if err != nil {
		return out, errors.WrapCode(err, errors.CodeCommand, op, "failed to run docker")
	}
	if out.ExitCode != 0 {
		msg := strings.TrimSpace(out.Stderr)
		if msg == "" {
			msg = strings.TrimSpace(out.Stdout)
		}
		return out, errors.Newf(errors.CodeCommand, op, "docker %s exited with code %d: %s",
			strings.Join(c.Args[:min(2, len(c.Args))], " "), out.ExitCode, msg).
			WithContext("exit_code", out.ExitCode)
	}
	return out, nil
}

// secretArgs maps subcommands that take a secret positional argument to the
// offset of that argument after the subcommand.
var secretArgs = map[string]int{
	"unsafe-import-eth-key": 2, // <name> <private-key>
}

// redact returns args with secret positional arguments masked for logging.
func redact(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i, a := range out {
		if off, ok := secretArgs[a]; ok && i+off < len(out) {
			out[i+off] = "[REDACTED]"
		}
	}
	return out
}
