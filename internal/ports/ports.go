// Package ports negotiates the host ports a node publishes. Roles are
// resolved in a fixed priority order against one claimed set so the final
// assignment is pairwise distinct by construction.
package ports

import (
	"fmt"
	"sort"
	"strings"
)

// Role is a network-facing node service.
type Role string

const (
	P2P  Role = "P2P"
	RPC  Role = "RPC"
	API  Role = "API"
	GRPC Role = "GRPC"
)

// Roles lists every role in allocation priority order.
var Roles = []Role{P2P, RPC, API, GRPC}

// EnvKey is the variable name the compose stack and the store use for the role.
func (r Role) EnvKey() string { return string(r) + "_PORT" }

// Defaults returns the stock port per role.
func Defaults() map[Role]int {
	return map[Role]int{
		P2P:  26656,
		RPC:  26657,
		API:  1317,
		GRPC: 9090,
	}
}

// ProbeSpan bounds the linear search: base through base+ProbeSpan inclusive.
const ProbeSpan = 100

const (
	minPort = 1
	maxPort = 65535
)

// Assignment maps every role to a distinct host port.
type Assignment map[Role]int

// Env renders the assignment as KEY=VALUE pairs in role order.
func (a Assignment) Env() []string {
	out := make([]string, 0, len(a))
	for _, r := range Roles {
		if p, ok := a[r]; ok {
			out = append(out, fmt.Sprintf("%s=%d", r.EnvKey(), p))
		}
	}
	return out
}

// Equal reports whether both assignments hold the same ports.
func (a Assignment) Equal(b Assignment) bool {
	if len(a) != len(b) {
		return false
	}
	for r, p := range a {
		if b[r] != p {
			return false
		}
	}
	return true
}

func (a Assignment) String() string {
	parts := make([]string, 0, len(a))
	for _, r := range Roles {
		if p, ok := a[r]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", r, p))
		}
	}
	// roles outside Roles, if any, sorted for stable output
	var extra []string
	for r, p := range a {
		if !known(r) {
			extra = append(extra, fmt.Sprintf("%s=%d", r, p))
		}
	}
	sort.Strings(extra)
	return strings.Join(append(parts, extra...), " ")
}

func known(r Role) bool {
	for _, k := range Roles {
		if k == r {
			return true
		}
	}
	return false
}

func validPort(p int) bool { return p >= minPort && p <= maxPort }
