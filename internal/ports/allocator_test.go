package ports

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/push-node-docker/internal/errors"
)

func assertDistinct(t *testing.T, a Assignment) {
	t.Helper()
	seen := make(map[int]Role)
	for r, p := range a {
		if other, dup := seen[p]; dup {
			t.Fatalf("port %d assigned to both %s and %s", p, other, r)
		}
		seen[p] = r
	}
}

func TestAllocate_DefaultsWhenFree(t *testing.T) {
	res, err := Allocate(Defaults(), nil, Occupied())
	require.NoError(t, err)

	assert.Equal(t, Assignment{P2P: 26656, RPC: 26657, API: 1317, GRPC: 9090}, res.Assignment)
	assert.Empty(t, res.Warnings)
}

func TestAllocate_Scenarios(t *testing.T) {
	testCases := []struct {
		name      string
		defaults  map[Role]int
		persisted map[Role]int
		occupied  []int
		want      Assignment
	}{
		{
			name:     "p2p default occupied shifts p2p and rpc",
			defaults: Defaults(),
			occupied: []int{26656},
			want:     Assignment{P2P: 26657, RPC: 26658, API: 1317, GRPC: 9090},
		},
		{
			name:     "p2p and next port occupied",
			defaults: Defaults(),
			occupied: []int{26656, 26657},
			want:     Assignment{P2P: 26658, RPC: 26659, API: 1317, GRPC: 9090},
		},
		{
			name:      "persisted used when defaults taken",
			defaults:  Defaults(),
			persisted: map[Role]int{P2P: 36656, RPC: 36657, API: 2317, GRPC: 19090},
			occupied:  []int{26656, 26657, 1317, 9090},
			want:      Assignment{P2P: 36656, RPC: 36657, API: 2317, GRPC: 19090},
		},
		{
			name:      "default preferred over persisted",
			defaults:  Defaults(),
			persisted: map[Role]int{P2P: 36656, RPC: 36657, API: 2317, GRPC: 19090},
			want:      Assignment{P2P: 26656, RPC: 26657, API: 1317, GRPC: 9090},
		},
		{
			name:      "persisted occupied falls back to probe",
			defaults:  Defaults(),
			persisted: map[Role]int{API: 2317},
			occupied:  []int{1317, 2317, 1318},
			want:      Assignment{P2P: 26656, RPC: 26657, API: 1319, GRPC: 9090},
		},
		{
			name:      "persisted value claimed by earlier role is skipped",
			defaults:  Defaults(),
			persisted: map[Role]int{RPC: 26657},
			occupied:  []int{26656},
			want:      Assignment{P2P: 26657, RPC: 26658, API: 1317, GRPC: 9090},
		},
		{
			name:     "coinciding p2p and rpc defaults",
			defaults: map[Role]int{P2P: 26656, RPC: 26656, API: 1317, GRPC: 9090},
			want:     Assignment{P2P: 26656, RPC: 26657, API: 1317, GRPC: 9090},
		},
		{
			name:     "coinciding defaults with occupied p2p",
			defaults: map[Role]int{P2P: 26656, RPC: 26656, API: 1317, GRPC: 9090},
			occupied: []int{26656, 26657},
			want:     Assignment{P2P: 26658, RPC: 26659, API: 1317, GRPC: 9090},
		},
		{
			name:     "later role collides with earlier claim",
			defaults: map[Role]int{P2P: 26656, RPC: 26657, API: 26657, GRPC: 26657},
			want:     Assignment{P2P: 26656, RPC: 26657, API: 26658, GRPC: 26659},
		},
		{
			name:     "missing defaults use stock values",
			defaults: map[Role]int{P2P: 30000},
			want:     Assignment{P2P: 30000, RPC: 26657, API: 1317, GRPC: 9090},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Allocate(tc.defaults, tc.persisted, Occupied(tc.occupied...))
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Assignment)
			assertDistinct(t, res.Assignment)
		})
	}
}

func TestAllocate_OnlyFreePortAfterP2PDefault(t *testing.T) {
	// 26657 is the sole free port near the P2P default.
	oracle := FuncOracle(func(p int) bool {
		switch {
		case p == 26657:
			return true
		case p >= 26656 && p <= 26700:
			return false
		}
		return true
	})

	res, err := Allocate(Defaults(), nil, oracle)
	require.NoError(t, err)
	assert.Equal(t, 26657, res.Assignment[P2P])
	assert.Greater(t, res.Assignment[RPC], 26657)
	assert.Equal(t, 26701, res.Assignment[RPC])
	assertDistinct(t, res.Assignment)
}

func TestAllocate_WithinProbeWindow(t *testing.T) {
	// Every default is taken; persisted state is empty.
	occupied := []int{26656, 26657, 1317, 9090, 1318, 9091, 9092}
	res, err := Allocate(Defaults(), nil, Occupied(occupied...))
	require.NoError(t, err)

	stock := Defaults()
	for _, r := range Roles {
		p := res.Assignment[r]
		assert.GreaterOrEqual(t, p, stock[r], r)
		assert.LessOrEqual(t, p, stock[r]+ProbeSpan+1, r)
		assert.True(t, Occupied(occupied...).Available(p), r)
	}
	assertDistinct(t, res.Assignment)
}

func TestAllocate_Idempotent(t *testing.T) {
	oracle := Occupied(26656)

	first, err := Allocate(Defaults(), nil, oracle)
	require.NoError(t, err)

	second, err := Allocate(Defaults(), first.Assignment, oracle)
	require.NoError(t, err)
	assert.True(t, first.Assignment.Equal(second.Assignment))
}

func TestAllocate_Exhausted(t *testing.T) {
	// Every port in the API window is busy.
	oracle := FuncOracle(func(p int) bool { return p < 1317 || p > 1317+ProbeSpan })

	_, err := Allocate(Defaults(), map[Role]int{API: 1400}, oracle)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeResourceExhausted))
	assert.True(t, errors.IsFatal(err))
	assert.Contains(t, err.Error(), "API")
	assert.Contains(t, err.Error(), "1317-1417")
}

func TestAllocate_ProbeBoundInclusive(t *testing.T) {
	last := 9090 + ProbeSpan
	oracle := FuncOracle(func(p int) bool { return p < 9090 || p >= last })

	res, err := Allocate(Defaults(), nil, oracle)
	require.NoError(t, err)
	assert.Equal(t, last, res.Assignment[GRPC])
}

func TestAllocate_NeverSelectsInvalidPort(t *testing.T) {
	defaults := map[Role]int{P2P: 65535, RPC: 65535, API: 1317, GRPC: 9090}

	_, err := Allocate(defaults, nil, Occupied())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeResourceExhausted))
	assert.Contains(t, err.Error(), "RPC")
}

func TestAllocate_DegradedOracleWarns(t *testing.T) {
	oracle := NewSocketOracleFrom(context.Background(), func(context.Context, string) ([]gnet.ConnectionStat, error) {
		return nil, fmt.Errorf("permission denied")
	})

	alloc := NewAllocator(oracle, zerolog.Nop())
	res, err := alloc.Allocate(Defaults(), nil)
	require.NoError(t, err)
	assert.Equal(t, Assignment{P2P: 26656, RPC: 26657, API: 1317, GRPC: 9090}, res.Assignment)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "permission denied")
}

func TestSocketOracle(t *testing.T) {
	list := func(_ context.Context, kind string) ([]gnet.ConnectionStat, error) {
		assert.Equal(t, "tcp", kind)
		return []gnet.ConnectionStat{
			{Status: "LISTEN", Laddr: gnet.Addr{IP: "0.0.0.0", Port: 26656}},
			{Status: "LISTEN", Laddr: gnet.Addr{IP: "::", Port: 26656}},
			{Status: "ESTABLISHED", Laddr: gnet.Addr{IP: "127.0.0.1", Port: 1317}},
			{Status: "LISTEN", Laddr: gnet.Addr{IP: "127.0.0.1", Port: 9090}},
		}, nil
	}

	o := NewSocketOracleFrom(context.Background(), list)
	require.NoError(t, o.Degraded())
	assert.Equal(t, 2, o.Listening())
	assert.False(t, o.Available(26656))
	assert.False(t, o.Available(9090))
	assert.True(t, o.Available(1317))
	assert.True(t, o.Available(26657))
}

func TestAssignment_Env(t *testing.T) {
	a := Assignment{GRPC: 9090, P2P: 26656, API: 1317, RPC: 26657}
	assert.Equal(t, []string{"P2P_PORT=26656", "RPC_PORT=26657", "API_PORT=1317", "GRPC_PORT=9090"}, a.Env())
	assert.Equal(t, "P2P=26656 RPC=26657 API=1317 GRPC=9090", a.String())
}

func TestAllocator_LogsComponent(t *testing.T) {
	var buf bytes.Buffer
	a := NewAllocator(Occupied(), zerolog.New(&buf).Level(zerolog.DebugLevel))

	_, err := a.Allocate(Defaults(), nil)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"component":"port_allocator"`)
	assert.Contains(t, buf.String(), `"source":"default"`)
}
