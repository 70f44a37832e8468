package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/pushchain/push-node-docker/internal/bootstrap"
	"github.com/pushchain/push-node-docker/internal/config"
	"github.com/pushchain/push-node-docker/internal/container"
	"github.com/pushchain/push-node-docker/internal/errors"
	"github.com/pushchain/push-node-docker/internal/logging"
	"github.com/pushchain/push-node-docker/internal/monitor"
	"github.com/pushchain/push-node-docker/internal/node"
	"github.com/pushchain/push-node-docker/internal/process"
	"github.com/pushchain/push-node-docker/internal/store"
	"github.com/pushchain/push-node-docker/internal/validator"
)

// app bundles the services a command needs, all built from one config.
type app struct {
	cfg    config.Config
	log    zerolog.Logger
	store  *store.Store
	orch   *container.Orchestrator
	bridge *node.Bridge
	sup    process.Supervisor
}

func newApp() (*app, error) {
	cfg, err := loadCfg()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeConfig, "config.load", "invalid configuration")
	}
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Out: os.Stderr})
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeConfig, "logging.new", "invalid logging configuration")
	}

	st := store.New(cfg.StorePath())
	orch := container.New(container.ExecRunner{}, cfg.ComposePath(), cfg.ProjectDir, log)
	return &app{
		cfg:    cfg,
		log:    log,
		store:  st,
		orch:   orch,
		bridge: node.NewBridge(orch, cfg.ContainerName, cfg.BinPath, log),
		sup: process.New(process.Options{
			Container:    cfg.ContainerName,
			GraceDelay:   cfg.GraceDelay,
			Store:        st,
			Orchestrator: orch,
			Logger:       log,
		}),
	}, nil
}

func (a *app) validator() validator.Service {
	return validator.NewWith(a.bridge, validator.Options{
		HomeDir:   a.cfg.HomeDir,
		ChainID:   a.cfg.ChainID,
		Keyring:   a.cfg.KeyringBackend,
		Denom:     a.cfg.Denom,
		FaucetURL: a.cfg.FaucetURL,
		Logger:    a.log,
	})
}

func (a *app) bootstrap() bootstrap.Service {
	return bootstrap.New(bootstrap.Deps{
		Runner:    a.bridge,
		Copier:    a.orch,
		Container: a.cfg.ContainerName,
		Store:     a.store,
		Logger:    a.log,
	})
}

func (a *app) monitor(metrics *monitor.Metrics) *monitor.Monitor {
	return monitor.New(a.bridge, metrics, a.log)
}

// requireRunning fails with an actionable message when the node container is down.
func (a *app) requireRunning(ctx context.Context) error {
	if err := a.orch.Available(ctx); err != nil {
		return err
	}
	running, err := a.bridge.Running(ctx)
	if err != nil {
		return err
	}
	if !running {
		return errors.Newf(errors.CodePrecondition, "node.check",
			"node container %q is not running; run 'push-node start' first", a.cfg.ContainerName)
	}
	return nil
}

// walletName resolves the wallet argument, then KEY_NAME, then the default.
func walletName(args []string, idx int) string {
	if len(args) > idx && args[idx] != "" {
		return args[idx]
	}
	return getenvDefault("KEY_NAME", "validator-key")
}

// getenvDefault returns the environment value for k, or default d
// when k is not set.
func getenvDefault(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
