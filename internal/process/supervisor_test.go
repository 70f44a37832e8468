package process

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/push-node-docker/internal/errors"
	"github.com/pushchain/push-node-docker/internal/ports"
	"github.com/pushchain/push-node-docker/internal/store"
)

type fakeOrchestrator struct {
	available error
	exists    bool
	running   bool
	upErr     error
	calls     []string
	upEnv     []string
}

func (f *fakeOrchestrator) record(s string) { f.calls = append(f.calls, s) }

func (f *fakeOrchestrator) Available(context.Context) error {
	f.record("available")
	return f.available
}

func (f *fakeOrchestrator) Exists(context.Context, string) (bool, error) {
	f.record("exists")
	return f.exists, nil
}

func (f *fakeOrchestrator) IsRunning(context.Context, string) (bool, error) {
	f.record("is_running")
	return f.running, nil
}

func (f *fakeOrchestrator) Stop(context.Context, string) error {
	f.record("stop")
	f.running = false
	return nil
}

func (f *fakeOrchestrator) Remove(context.Context, string) error {
	f.record("remove")
	f.exists = false
	return nil
}

func (f *fakeOrchestrator) ComposeUp(_ context.Context, env []string) error {
	f.record("up")
	f.upEnv = env
	return f.upErr
}

func (f *fakeOrchestrator) ComposeDown(context.Context) error {
	f.record("down")
	return nil
}

type harness struct {
	sup    *dockerSupervisor
	orch   *fakeOrchestrator
	store  *store.Store
	slept  []time.Duration
	oracle ports.Oracle
}

func newHarness(t *testing.T, orch *fakeOrchestrator, oracle ports.Oracle) *harness {
	t.Helper()
	h := &harness{
		orch:   orch,
		store:  store.New(filepath.Join(t.TempDir(), "node.env")),
		oracle: oracle,
	}
	sup := New(Options{
		Container:    "push-node",
		GraceDelay:   3 * time.Second,
		Store:        h.store,
		Orchestrator: orch,
		Oracle: func(context.Context) ports.Oracle {
			orch.record("oracle")
			return h.oracle
		},
		Logger: zerolog.Nop(),
	}).(*dockerSupervisor)
	sup.sleep = func(_ context.Context, d time.Duration) error {
		orch.record("sleep")
		h.slept = append(h.slept, d)
		return nil
	}
	h.sup = sup
	return h
}

func TestStart_FreshHost(t *testing.T) {
	h := newHarness(t, &fakeOrchestrator{}, ports.Occupied())

	res, err := h.sup.Start(context.Background(), StartOpts{})
	require.NoError(t, err)

	assert.Equal(t, ports.Assignment{ports.P2P: 26656, ports.RPC: 26657, ports.API: 1317, ports.GRPC: 9090}, res.Assignment)
	assert.False(t, res.Replaced)
	assert.Empty(t, h.slept)
	assert.Equal(t, []string{"available", "exists", "oracle", "up"}, h.orch.calls)
	assert.Equal(t, []string{"P2P_PORT=26656", "RPC_PORT=26657", "API_PORT=1317", "GRPC_PORT=9090", "CONTAINER_NAME=push-node"}, h.orch.upEnv)

	cfg, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, 26656, cfg.P2PPort)
	assert.Equal(t, 9090, cfg.GRPCPort)
}

func TestStart_ReplacesExistingContainerBeforeProbing(t *testing.T) {
	h := newHarness(t, &fakeOrchestrator{exists: true, running: true}, ports.Occupied(26656))
	require.NoError(t, h.store.Upsert(store.KeyMoniker, "alpha"))

	res, err := h.sup.Start(context.Background(), StartOpts{})
	require.NoError(t, err)

	assert.True(t, res.Replaced)
	assert.Equal(t, []time.Duration{3 * time.Second}, h.slept)
	assert.Equal(t, []string{"available", "exists", "is_running", "stop", "remove", "sleep", "oracle", "up"}, h.orch.calls)
	assert.Equal(t, 26657, res.Assignment[ports.P2P])
	assert.Equal(t, 26658, res.Assignment[ports.RPC])
	assert.Contains(t, h.orch.upEnv, "MONIKER=alpha")

	data, err := os.ReadFile(h.store.Path())
	require.NoError(t, err)
	assert.Equal(t, "MONIKER=alpha\nP2P_PORT=26657\nRPC_PORT=26658\nAPI_PORT=1317\nGRPC_PORT=9090\n", string(data))
}

func TestStart_PersistedPortsReused(t *testing.T) {
	h := newHarness(t, &fakeOrchestrator{}, ports.Occupied(26656, 26657, 1317, 9090))
	require.NoError(t, h.store.UpsertAll([][2]string{
		{store.KeyP2PPort, "36656"}, {store.KeyRPCPort, "36657"},
		{store.KeyAPIPort, "2317"}, {store.KeyGRPCPort, "19090"},
	}))

	first, err := h.sup.Start(context.Background(), StartOpts{})
	require.NoError(t, err)
	second, err := h.sup.Start(context.Background(), StartOpts{})
	require.NoError(t, err)

	want := ports.Assignment{ports.P2P: 36656, ports.RPC: 36657, ports.API: 2317, ports.GRPC: 19090}
	assert.Equal(t, want, first.Assignment)
	assert.Equal(t, want, second.Assignment)
}

func TestStart_Failures(t *testing.T) {
	t.Run("docker missing aborts before mutation", func(t *testing.T) {
		orch := &fakeOrchestrator{available: errors.New(errors.CodePrecondition, "container.available", "docker is not installed")}
		h := newHarness(t, orch, ports.Occupied())

		_, err := h.sup.Start(context.Background(), StartOpts{})
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodePrecondition))
		assert.Equal(t, []string{"available"}, orch.calls)
		_, statErr := os.Stat(h.store.Path())
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("exhausted ports are fatal and nothing starts", func(t *testing.T) {
		orch := &fakeOrchestrator{}
		h := newHarness(t, orch, ports.FuncOracle(func(int) bool { return false }))

		_, err := h.sup.Start(context.Background(), StartOpts{})
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeResourceExhausted))
		assert.NotContains(t, orch.calls, "up")
	})

	t.Run("compose failure surfaces", func(t *testing.T) {
		orch := &fakeOrchestrator{upErr: fmt.Errorf("compose exploded")}
		h := newHarness(t, orch, ports.Occupied())

		_, err := h.sup.Start(context.Background(), StartOpts{})
		assert.EqualError(t, err, "compose exploded")
	})
}

func TestEnsureRunning(t *testing.T) {
	orch := &fakeOrchestrator{running: true}
	h := newHarness(t, orch, ports.Occupied())

	_, started, err := h.sup.EnsureRunning(context.Background(), StartOpts{})
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, []string{"is_running"}, orch.calls)

	orch.running = false
	orch.calls = nil
	_, started, err = h.sup.EnsureRunning(context.Background(), StartOpts{})
	require.NoError(t, err)
	assert.True(t, started)
	assert.Contains(t, orch.calls, "up")
}

func TestStop(t *testing.T) {
	orch := &fakeOrchestrator{}
	h := newHarness(t, orch, ports.Occupied())

	require.NoError(t, h.sup.Stop(context.Background()))
	assert.Equal(t, []string{"available", "down"}, orch.calls)
}

func TestSleepCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, sleepCtx(ctx, time.Hour))
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))
}
