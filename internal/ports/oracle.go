package ports

import (
	"context"
	"fmt"

	gnet "github.com/shirou/gopsutil/v3/net"
)

// Oracle answers whether a host port is free to bind.
type Oracle interface {
	Available(port int) bool
}

// DegradedOracle is implemented by oracles that may be unable to inspect the
// host. A non-nil Degraded means every answer is a guess.
type DegradedOracle interface {
	Oracle
	Degraded() error
}

// FuncOracle adapts a function to Oracle.
type FuncOracle func(port int) bool

func (f FuncOracle) Available(port int) bool { return f(port) }

// StaticOracle treats the listed ports as occupied and everything else as free.
type StaticOracle map[int]bool

func (s StaticOracle) Available(port int) bool { return !s[port] }

// Occupied builds a StaticOracle from ports.
func Occupied(ports ...int) StaticOracle {
	s := make(StaticOracle, len(ports))
	for _, p := range ports {
		s[p] = true
	}
	return s
}

// ConnectionsFunc lists host connections; gopsutil's ConnectionsWithContext in production.
type ConnectionsFunc func(ctx context.Context, kind string) ([]gnet.ConnectionStat, error)

// SocketOracle answers from a snapshot of the host's listening TCP sockets.
type SocketOracle struct {
	listening map[int]struct{}
	err       error
}

// NewSocketOracle snapshots listening sockets through gopsutil.
func NewSocketOracle(ctx context.Context) *SocketOracle {
	return NewSocketOracleFrom(ctx, gnet.ConnectionsWithContext)
}

// NewSocketOracleFrom snapshots listening sockets through list. When list
// fails the oracle is degraded and reports every port as available.
func NewSocketOracleFrom(ctx context.Context, list ConnectionsFunc) *SocketOracle {
	o := &SocketOracle{listening: make(map[int]struct{})}

	conns, err := list(ctx, "tcp")
	if err != nil {
		o.err = fmt.Errorf("cannot read listening sockets: %w", err)
		return o
	}
	for _, c := range conns {
		if c.Status == "LISTEN" {
			o.listening[int(c.Laddr.Port)] = struct{}{}
		}
	}
	return o
}

func (o *SocketOracle) Available(port int) bool {
	if o.err != nil {
		return true
	}
	_, busy := o.listening[port]
	return !busy
}

func (o *SocketOracle) Degraded() error { return o.err }

// Listening returns the number of distinct listening ports seen.
func (o *SocketOracle) Listening() int { return len(o.listening) }
