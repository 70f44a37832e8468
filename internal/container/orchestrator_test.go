package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/push-node-docker/internal/errors"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, c Command) (Output, error) {
	args := m.Called(strings.Join(append([]string{c.Name}, c.Args...), " "), c)
	return args.Get(0).(Output), args.Error(1)
}

func (m *mockRunner) LookPath(file string) (string, error) {
	args := m.Called(file)
	return args.String(0), args.Error(1)
}

func newTestOrchestrator(r Runner) *Orchestrator {
	return New(r, "docker-compose.yml", "/srv/node", zerolog.Nop())
}

func TestAvailable(t *testing.T) {
	testCases := []struct {
		name    string
		setup   func(r *mockRunner)
		wantErr bool
	}{
		{
			name: "docker and compose present",
			setup: func(r *mockRunner) {
				r.On("LookPath", "docker").Return("/usr/bin/docker", nil)
				r.On("Run", "docker compose version", mock.Anything).Return(Output{Stdout: "v2.27.0"}, nil)
			},
		},
		{
			name: "docker missing",
			setup: func(r *mockRunner) {
				r.On("LookPath", "docker").Return("", fmt.Errorf("not found"))
			},
			wantErr: true,
		},
		{
			name: "compose plugin missing",
			setup: func(r *mockRunner) {
				r.On("LookPath", "docker").Return("/usr/bin/docker", nil)
				r.On("Run", "docker compose version", mock.Anything).Return(Output{ExitCode: 1, Stderr: "unknown command"}, nil)
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := &mockRunner{}
			tc.setup(r)

			err := newTestOrchestrator(r).Available(context.Background())
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.CodePrecondition))
				assert.True(t, errors.IsFatal(err))
			} else {
				require.NoError(t, err)
			}
			r.AssertExpectations(t)
		})
	}
}

func TestExistsAndIsRunning(t *testing.T) {
	r := &mockRunner{}
	r.On("Run", "docker ps -a --filter name=^/push-node$ --format {{.Names}}", mock.Anything).
		Return(Output{Stdout: "push-node\n"}, nil)
	r.On("Run", "docker inspect -f {{.State.Running}} push-node", mock.Anything).
		Return(Output{Stdout: "true\n"}, nil)
	r.On("Run", "docker inspect -f {{.State.Running}} ghost", mock.Anything).
		Return(Output{ExitCode: 1, Stderr: "No such object"}, nil)

	o := newTestOrchestrator(r)
	ctx := context.Background()

	exists, err := o.Exists(ctx, "push-node")
	require.NoError(t, err)
	assert.True(t, exists)

	running, err := o.IsRunning(ctx, "push-node")
	require.NoError(t, err)
	assert.True(t, running)

	running, err = o.IsRunning(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, running)
}

func TestComposeUpPassesEnv(t *testing.T) {
	r := &mockRunner{}
	env := []string{"P2P_PORT=26657", "RPC_PORT=26658"}
	r.On("Run", "docker compose -f docker-compose.yml up -d", mock.MatchedBy(func(c Command) bool {
		return c.Dir == "/srv/node" && assert.ObjectsAreEqual(env, c.Env)
	})).Return(Output{}, nil)

	require.NoError(t, newTestOrchestrator(r).ComposeUp(context.Background(), env))
	r.AssertExpectations(t)
}

func TestCommandFailure(t *testing.T) {
	r := &mockRunner{}
	r.On("Run", "docker stop push-node", mock.Anything).
		Return(Output{ExitCode: 1, Stderr: "Error response from daemon: conflict"}, nil)

	err := newTestOrchestrator(r).Stop(context.Background(), "push-node")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeCommand))
	assert.Contains(t, err.Error(), "conflict")
}

func TestExecUsesInteractiveFlagForStdin(t *testing.T) {
	r := &mockRunner{}
	r.On("Run", "docker exec push-node pchaind status", mock.Anything).
		Return(Output{Stdout: "{}"}, nil)
	r.On("Run", "docker exec -i push-node pchaind keys add w --recover", mock.MatchedBy(func(c Command) bool {
		return c.Stdin != nil
	})).Return(Output{ExitCode: 2}, nil)

	o := newTestOrchestrator(r)
	ctx := context.Background()

	out, err := o.Exec(ctx, "push-node", nil, "pchaind", "status")
	require.NoError(t, err)
	assert.Equal(t, "{}", out.Stdout)

	out, err = o.Exec(ctx, "push-node", strings.NewReader("words\n"), "pchaind", "keys", "add", "w", "--recover")
	require.NoError(t, err, "non-zero exit is not a run error")
	assert.Equal(t, 2, out.ExitCode)
	r.AssertExpectations(t)
}

func TestCopyTo(t *testing.T) {
	r := &mockRunner{}
	r.On("Run", "docker cp /tmp/genesis.json push-node:/root/.pchain/config/genesis.json", mock.Anything).
		Return(Output{}, nil)

	err := newTestOrchestrator(r).CopyTo(context.Background(), "push-node", "/tmp/genesis.json", "/root/.pchain/config/genesis.json")
	require.NoError(t, err)
}

func TestLogsStreamsToWriter(t *testing.T) {
	r := &mockRunner{}
	var buf bytes.Buffer
	r.On("Run", "docker logs --tail 50 push-node", mock.MatchedBy(func(c Command) bool {
		return c.Stdout == io.Writer(&buf)
	})).Run(func(args mock.Arguments) {
		c := args.Get(1).(Command)
		_, _ = c.Stdout.Write([]byte("line\n"))
	}).Return(Output{}, nil)

	require.NoError(t, newTestOrchestrator(r).Logs(context.Background(), "push-node", 50, false, &buf))
	assert.Equal(t, "line\n", buf.String())
}

func TestExecRunner(t *testing.T) {
	var r ExecRunner
	ctx := context.Background()

	out, err := r.Run(ctx, Command{Name: "sh", Args: []string{"-c", "echo out; echo err >&2; exit 3"}})
	require.NoError(t, err)
	assert.Equal(t, "out\n", out.Stdout)
	assert.Equal(t, "err\n", out.Stderr)
	assert.Equal(t, 3, out.ExitCode)

	out, err = r.Run(ctx, Command{Name: "sh", Args: []string{"-c", "cat; echo $EXTRA"}, Stdin: strings.NewReader("in\n"), Env: []string{"EXTRA=yes"}})
	require.NoError(t, err)
	assert.Equal(t, "in\nyes\n", out.Stdout)

	_, err = r.Run(ctx, Command{Name: "definitely-not-a-binary-xyz"})
	assert.Error(t, err)
}

func TestExecRedactsPrivateKeyInLogs(t *testing.T) {
	const key = "abababababababababababababababababababababababababababababababab"
	var buf bytes.Buffer
	r := &mockRunner{}
	r.On("Run", "docker exec push-node pchaind keys unsafe-import-eth-key w "+key+" --home /root/.pchain", mock.Anything).
		Return(Output{}, nil)
	o := New(r, "docker-compose.yml", "/srv/node", zerolog.New(&buf).Level(zerolog.DebugLevel))

	_, err := o.Exec(context.Background(), "push-node", nil,
		"pchaind", "keys", "unsafe-import-eth-key", "w", key, "--home", "/root/.pchain")
	require.NoError(t, err)

	r.AssertExpectations(t)
	assert.Contains(t, buf.String(), "docker exec")
	assert.Contains(t, buf.String(), "[REDACTED]")
	assert.NotContains(t, buf.String(), key)
}

func TestRedact(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want []string
	}{
		{"no secret", []string{"keys", "show", "w"}, []string{"keys", "show", "w"}},
		{"private key", []string{"keys", "unsafe-import-eth-key", "w", "deadbeef", "--home", "h"},
			[]string{"keys", "unsafe-import-eth-key", "w", "[REDACTED]", "--home", "h"}},
		{"truncated", []string{"unsafe-import-eth-key", "w"}, []string{"unsafe-import-eth-key", "w"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := append([]string(nil), tc.args...)
			assert.Equal(t, tc.want, redact(tc.args))
			assert.Equal(t, in, tc.args, "input must not be modified")
		})
	}
}
