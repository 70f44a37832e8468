// Package process supervises the node container lifecycle: stopping any prior
// instance, negotiating host ports and bringing the compose stack up.
package process

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushchain/push-node-docker/internal/errors"
	"github.com/pushchain/push-node-docker/internal/logging"
	"github.com/pushchain/push-node-docker/internal/ports"
	"github.com/pushchain/push-node-docker/internal/store"
)

// DefaultGraceDelay lets the OS release sockets of a stopped container.
const DefaultGraceDelay = 3 * time.Second

// Orchestrator is the container capability the supervisor drives.
type Orchestrator interface {
	Available(ctx context.Context) error
	Exists(ctx context.Context, name string) (bool, error)
	IsRunning(ctx context.Context, name string) (bool, error)
	Stop(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
	ComposeUp(ctx context.Context, env []string) error
	ComposeDown(ctx context.Context) error
}

// OracleFactory builds a port oracle. It is called after any prior container is gone.
type OracleFactory func(ctx context.Context) ports.Oracle

// StartOpts tunes a start.
type StartOpts struct {
	// Defaults overrides the stock ports per role.
	Defaults map[ports.Role]int
}

// StartResult reports what Start did.
type StartResult struct {
	Assignment ports.Assignment `json:"ports" yaml:"ports"`
	Warnings   []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Replaced   bool             `json:"replaced_existing" yaml:"replaced_existing"`
}

// Supervisor manages the node container.
type Supervisor interface {
	Start(ctx context.Context, opts StartOpts) (StartResult, error)
	Stop(ctx context.Context) error
	Restart(ctx context.Context, opts StartOpts) (StartResult, error)
	IsRunning(ctx context.Context) (bool, error)
	EnsureRunning(ctx context.Context, opts StartOpts) (StartResult, bool, error)
}

// Options wires a supervisor.
type Options struct {
	Container    string
	GraceDelay   time.Duration
	Store        *store.Store
	Orchestrator Orchestrator
	Oracle       OracleFactory // SocketOracle when nil
	Logger       zerolog.Logger
}

type dockerSupervisor struct {
	opts   Options
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New returns a Supervisor for the compose-managed container.
func New(opts Options) Supervisor {
	if opts.Oracle == nil {
		opts.Oracle = func(ctx context.Context) ports.Oracle { return ports.NewSocketOracle(ctx) }
	}
	return &dockerSupervisor{
		opts:   opts,
		logger: logging.Component(opts.Logger, "supervisor"),
		sleep:  sleepCtx,
	}
}

func (s *dockerSupervisor) Start(ctx context.Context, opts StartOpts) (StartResult, error) {
	var res StartResult
	if err := s.opts.Orchestrator.Available(ctx); err != nil {
		return res, err
	}

	replaced, err := s.removeExisting(ctx)
	if err != nil {
		return res, err
	}
	res.Replaced = replaced

	cfg, err := s.opts.Store.Load()
	if err != nil {
		return res, err
	}

	defaults := opts.Defaults
	if defaults == nil {
		defaults = ports.Defaults()
	}
	alloc, err := ports.NewAllocator(s.opts.Oracle(ctx), s.opts.Logger).Allocate(defaults, cfg.Persisted())
	if err != nil {
		return res, err
	}
	res.Assignment = alloc.Assignment
	res.Warnings = alloc.Warnings

	pairs := make([][2]string, 0, len(ports.Roles))
	for _, role := range ports.Roles {
		pairs = append(pairs, [2]string{store.RoleKeys[role], strconv.Itoa(alloc.Assignment[role])})
	}
	if err := s.opts.Store.UpsertAll(pairs); err != nil {
		return res, err
	}

	// docker-compose.yml publishes the ports and names the container from these.
	env := append(alloc.Assignment.Env(), "CONTAINER_NAME="+s.opts.Container)
	if cfg.Moniker != "" {
		env = append(env, store.KeyMoniker+"="+cfg.Moniker)
	}
	s.logger.Info().Str("ports", alloc.Assignment.String()).Msg("starting node container")
	if err := s.opts.Orchestrator.ComposeUp(ctx, env); err != nil {
		return res, err
	}
	return res, nil
}

// removeExisting stops and removes a prior container and waits for its
// sockets to be released. It reports whether one existed.
func (s *dockerSupervisor) removeExisting(ctx context.Context) (bool, error) {
	name := s.opts.Container
	exists, err := s.opts.Orchestrator.Exists(ctx, name)
	if err != nil || !exists {
		return false, err
	}

	running, err := s.opts.Orchestrator.IsRunning(ctx, name)
	if err != nil {
		return true, err
	}
	if running {
		s.logger.Info().Str("container", name).Msg("stopping existing container")
		if err := s.opts.Orchestrator.Stop(ctx, name); err != nil {
			return true, err
		}
	}
	if err := s.opts.Orchestrator.Remove(ctx, name); err != nil {
		return true, err
	}

	delay := s.opts.GraceDelay
	if delay <= 0 {
		delay = DefaultGraceDelay
	}
	s.logger.Debug().Dur("delay", delay).Msg("waiting for ports to be released")
	if err := s.sleep(ctx, delay); err != nil {
		return true, err
	}
	return true, nil
}

func (s *dockerSupervisor) Stop(ctx context.Context) error {
	if err := s.opts.Orchestrator.Available(ctx); err != nil {
		return err
	}
	return s.opts.Orchestrator.ComposeDown(ctx)
}

func (s *dockerSupervisor) Restart(ctx context.Context, opts StartOpts) (StartResult, error) {
	// Start already replaces a running instance.
	return s.Start(ctx, opts)
}

func (s *dockerSupervisor) IsRunning(ctx context.Context) (bool, error) {
	return s.opts.Orchestrator.IsRunning(ctx, s.opts.Container)
}

// EnsureRunning starts the node only when it is not running. The bool reports
// whether a start happened.
func (s *dockerSupervisor) EnsureRunning(ctx context.Context, opts StartOpts) (StartResult, bool, error) {
	running, err := s.IsRunning(ctx)
	if err != nil {
		return StartResult{}, false, err
	}
	if running {
		return StartResult{}, false, nil
	}
	res, err := s.Start(ctx, opts)
	return res, err == nil, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return errors.WrapCode(ctx.Err(), errors.CodePrecondition, "process.wait", "interrupted while waiting for ports to be released")
	case <-t.C:
		return nil
	}
}
