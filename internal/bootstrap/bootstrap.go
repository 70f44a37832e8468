// Package bootstrap prepares node state inside the container: the node home,
// the moniker, the genesis file and the seed and service settings.
package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/pushchain/push-node-docker/internal/errors"
	"github.com/pushchain/push-node-docker/internal/logging"
	"github.com/pushchain/push-node-docker/internal/node"
	"github.com/pushchain/push-node-docker/internal/ports"
	"github.com/pushchain/push-node-docker/internal/store"
)

// DefaultMoniker is used when neither an argument nor the store names one.
const DefaultMoniker = "push-validator"

// ReadyMarker, relative to the node home, is written once Configure has
// applied every setting. The compose entrypoint waits for it before starting the node.
const ReadyMarker = "config/.push-node-configured"

// DefaultMaxGenesisBytes caps the genesis download.
const DefaultMaxGenesisBytes = 512 << 20

// Copier copies a host file into a container.
type Copier interface {
	CopyTo(ctx context.Context, name, src, dst string) error
}

// Options configures Init.
type Options struct {
	HomeDir   string
	ChainID   string
	Moniker   string // falls back to the store, then DefaultMoniker
	Overwrite bool
}

// InitResult reports what Init did.
type InitResult struct {
	Moniker            string `json:"moniker" yaml:"moniker"`
	AlreadyInitialized bool   `json:"already_initialized" yaml:"already_initialized"`
}

// ConfigureOptions configures Configure.
type ConfigureOptions struct {
	HomeDir         string
	ChainID         string
	KeyringBackend  string
	GenesisURL      string // skipped when empty
	Seeds           string
	PersistentPeers string
}

// ConfigureResult lists the settings applied.
type ConfigureResult struct {
	GenesisBytes int      `json:"genesis_bytes,omitempty" yaml:"genesis_bytes,omitempty"`
	Settings     []string `json:"settings" yaml:"settings"`
}

// Service initializes and configures node state.
type Service interface {
	Init(ctx context.Context, opts Options) (InitResult, error)
	Configure(ctx context.Context, opts ConfigureOptions) (ConfigureResult, error)
}

// Deps wires a Service.
type Deps struct {
	Runner    node.Runner
	Copier    Copier
	Container string
	Store     *store.Store
	HTTP      *http.Client
	Logger    zerolog.Logger
	// Retries bounds genesis download attempts after the first; 3 when zero.
	Retries uint64
	// MaxGenesisBytes; DefaultMaxGenesisBytes when zero.
	MaxGenesisBytes int64
}

// New returns a bootstrap Service.
func New(d Deps) Service {
	if d.HTTP == nil {
		d.HTTP = &http.Client{Timeout: 60 * time.Second}
	}
	if d.Retries == 0 {
		d.Retries = 3
	}
	if d.MaxGenesisBytes <= 0 {
		d.MaxGenesisBytes = DefaultMaxGenesisBytes
	}
	return &svc{d: d, logger: logging.Component(d.Logger, "bootstrap")}
}

type svc struct {
	d      Deps
	logger zerolog.Logger
	// newBackOff is swapped in tests to avoid real delays.
	newBackOff func() backoff.BackOff
}

func (s *svc) Init(ctx context.Context, opts Options) (InitResult, error) {
	const op = "bootstrap.init"

	moniker := strings.TrimSpace(opts.Moniker)
	if moniker == "" {
		cfg, err := s.d.Store.Load()
		if err != nil {
			return InitResult{}, err
		}
		moniker = cfg.Moniker
	}
	if moniker == "" {
		moniker = DefaultMoniker
	}
	if err := s.d.Store.Upsert(store.KeyMoniker, moniker); err != nil {
		return InitResult{}, err
	}

	args := []string{"init", moniker, "--chain-id", opts.ChainID, "--home", opts.HomeDir}
	if opts.Overwrite {
		args = append(args, "--overwrite")
	}
	out, err := s.d.Runner.NodeOutput(ctx, "", args...)
	if err != nil {
		return InitResult{}, errors.WrapCode(err, errors.CodeCommand, op, "failed to run node init")
	}
	res := InitResult{Moniker: moniker}
	if out.ExitCode != 0 {
		combined := out.Stderr + out.Stdout
		if alreadyInitialized(combined) {
			s.logger.Info().Str("home", opts.HomeDir).Msg("node home already initialized")
			res.AlreadyInitialized = true
			return res, nil
		}
		return InitResult{}, errors.Newf(errors.CodeCommand, op, "node init failed: %s", strings.TrimSpace(combined)).
			WithContext("exit_code", out.ExitCode)
	}
	s.logger.Info().Str("moniker", moniker).Str("chain_id", opts.ChainID).Msg("node home initialized")
	return res, nil
}

func alreadyInitialized(output string) bool {
	o := strings.ToLower(output)
	return strings.Contains(o, "already exists") || strings.Contains(o, "already initialized")
}

func (s *svc) Configure(ctx context.Context, opts ConfigureOptions) (ConfigureResult, error) {
	var res ConfigureResult

	if opts.GenesisURL != "" {
		n, err := s.installGenesis(ctx, opts)
		if err != nil {
			return res, err
		}
		res.GenesisBytes = n
	}

	// The node listens on the stock ports inside the container; compose maps the host side.
	in := ports.Defaults()
	type setting struct{ file, key, value string }
	settings := []setting{
		{"config", "rpc.laddr", fmt.Sprintf("tcp://0.0.0.0:%d", in[ports.RPC])},
		{"app", "api.enable", "true"},
		{"app", "api.address", fmt.Sprintf("tcp://0.0.0.0:%d", in[ports.API])},
		{"app", "grpc.enable", "true"},
		{"app", "grpc.address", fmt.Sprintf("0.0.0.0:%d", in[ports.GRPC])},
		{"client", "chain-id", opts.ChainID},
		{"client", "keyring-backend", valueOr(opts.KeyringBackend, "test")},
	}
	if opts.Seeds != "" {
		settings = append([]setting{{"config", "p2p.seeds", opts.Seeds}}, settings...)
	}
	if opts.PersistentPeers != "" {
		settings = append([]setting{{"config", "p2p.persistent_peers", opts.PersistentPeers}}, settings...)
	}

	for _, st := range settings {
		if st.value == "" {
			continue
		}
		out, err := s.d.Runner.NodeOutput(ctx, "", "config", "set", st.file, st.key, st.value, "--home", opts.HomeDir)
		if err != nil {
			return res, errors.WrapCode(err, errors.CodeCommand, "bootstrap.configure", "failed to run node config")
		}
		if out.ExitCode != 0 {
			return res, errors.Newf(errors.CodeCommand, "bootstrap.configure", "setting %s %s failed: %s",
				st.file, st.key, strings.TrimSpace(out.Stderr+out.Stdout))
		}
		res.Settings = append(res.Settings, st.file+"."+st.key)
	}

	marker := path.Join(opts.HomeDir, ReadyMarker)
	_, code, err := s.d.Runner.Exec(ctx, "touch", marker)
	if err != nil {
		return res, errors.WrapCode(err, errors.CodeCommand, "bootstrap.configure", "failed to mark node configured")
	}
	if code != 0 {
		return res, errors.Newf(errors.CodeCommand, "bootstrap.configure", "touch %s exited with code %d", marker, code)
	}
	return res, nil
}

func (s *svc) installGenesis(ctx context.Context, opts ConfigureOptions) (int, error) {
	const op = "bootstrap.genesis"

	data, err := s.download(ctx, opts.GenesisURL)
	if err != nil {
		return 0, err
	}
	genesis, err := UnwrapGenesis(data)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp("", "genesis-*.json")
	if err != nil {
		return 0, errors.WrapCode(err, errors.CodeCommand, op, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(genesis); err != nil {
		tmp.Close()
		return 0, errors.WrapCode(err, errors.CodeCommand, op, "failed to write genesis")
	}
	if err := tmp.Close(); err != nil {
		return 0, errors.WrapCode(err, errors.CodeCommand, op, "failed to write genesis")
	}

	dst := path.Join(opts.HomeDir, "config", "genesis.json")
	if err := s.d.Copier.CopyTo(ctx, s.d.Container, filepath.Clean(tmp.Name()), dst); err != nil {
		return 0, err
	}
	s.logger.Info().Int("bytes", len(genesis)).Str("dst", dst).Msg("genesis installed")
	return len(genesis), nil
}

func (s *svc) download(ctx context.Context, url string) ([]byte, error) {
	const op = "bootstrap.genesis"

	var body []byte
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := s.d.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("genesis server returned %s", resp.Status)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("genesis server returned %s", resp.Status))
		}
		limit := s.d.MaxGenesisBytes
		body, err = io.ReadAll(io.LimitReader(resp.Body, limit+1))
		if err != nil {
			return err
		}
		if int64(len(body)) > limit {
			return backoff.Permanent(fmt.Errorf("genesis exceeds %d bytes", limit))
		}
		return nil
	}

	b := s.backOff()
	notify := func(err error, d time.Duration) {
		s.logger.Warn().Err(err).Dur("retry_in", d).Msg("genesis download failed")
	}
	if err := backoff.RetryNotify(attempt, backoff.WithContext(backoff.WithMaxRetries(b, s.d.Retries), ctx), notify); err != nil {
		return nil, errors.WrapCode(err, errors.CodeCommand, op, "failed to download genesis").WithContext("url", url)
	}
	return body, nil
}

func (s *svc) backOff() backoff.BackOff {
	if s.newBackOff != nil {
		return s.newBackOff()
	}
	return backoff.NewExponentialBackOff()
}

// UnwrapGenesis returns the genesis document, unwrapping a CometBFT RPC
// {"result":{"genesis":...}} envelope when present.
func UnwrapGenesis(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	var envelope struct {
		Result struct {
			Genesis json.RawMessage `json:"genesis"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errors.WrapCode(err, errors.CodeCommand, "bootstrap.genesis", "genesis is not valid JSON")
	}
	if len(envelope.Result.Genesis) > 0 {
		data = envelope.Result.Genesis
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapCode(err, errors.CodeCommand, "bootstrap.genesis", "genesis is not a JSON object")
	}
	if _, ok := doc["chain_id"]; !ok {
		return nil, errors.New(errors.CodeCommand, "bootstrap.genesis", "genesis has no chain_id")
	}
	return data, nil
}

func valueOr(v, d string) string {
	if strings.TrimSpace(v) == "" {
		return d
	}
	return v
}
