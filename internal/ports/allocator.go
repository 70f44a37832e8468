package ports

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pushchain/push-node-docker/internal/errors"
	"github.com/pushchain/push-node-docker/internal/logging"
)

// Result is the outcome of an allocation.
type Result struct {
	Assignment Assignment
	// Warnings carry non-fatal caveats, such as a degraded oracle.
	Warnings []string
}

// Source records why a port was chosen.
type Source string

const (
	FromDefault   Source = "default"
	FromPersisted Source = "persisted"
	FromProbe     Source = "probe"
)

// Allocator resolves ports for every role against an Oracle.
type Allocator struct {
	oracle Oracle
	logger zerolog.Logger
}

// NewAllocator creates an allocator.
func NewAllocator(oracle Oracle, logger zerolog.Logger) *Allocator {
	return &Allocator{
		oracle: oracle,
		logger: logging.Component(logger, "port_allocator"),
	}
}

// Allocate resolves ports with a silent logger.
func Allocate(defaults, persisted map[Role]int, oracle Oracle) (Result, error) {
	return NewAllocator(oracle, zerolog.Nop()).Allocate(defaults, persisted)
}

// Allocate picks a port per role in Roles order. Missing defaults fall back to
// Defaults(); persisted may be nil. The only failure is an exhausted probe window.
func (a *Allocator) Allocate(defaults, persisted map[Role]int) (Result, error) {
	var res Result
	if d, ok := a.oracle.(DegradedOracle); ok {
		if err := d.Degraded(); err != nil {
			msg := fmt.Sprintf("port availability could not be verified (%v); assuming requested ports are free", err)
			res.Warnings = append(res.Warnings, msg)
			a.logger.Warn().Err(err).Msg("port oracle degraded, allocating optimistically")
		}
	}

	stock := Defaults()
	claimed := make(map[int]Role, len(Roles))
	res.Assignment = make(Assignment, len(Roles))

	free := func(p int) bool {
		if !validPort(p) {
			return false
		}
		if _, taken := claimed[p]; taken {
			return false
		}
		return a.oracle.Available(p)
	}

	for _, role := range Roles {
		def, ok := defaults[role]
		if !ok {
			def = stock[role]
		}

		port, src, err := a.pick(role, def, persisted[role], a.base(role, def, defaults, stock, res.Assignment), free)
		if err != nil {
			return Result{}, err
		}
		claimed[port] = role
		res.Assignment[role] = port

		a.logger.Debug().
			Str("role", string(role)).
			Int("port", port).
			Int("default", def).
			Str("source", string(src)).
			Msg("port selected")
	}
	return res, nil
}

func (a *Allocator) pick(role Role, def, persisted, base int, free func(int) bool) (int, Source, error) {
	if free(def) {
		return def, FromDefault, nil
	}
	if persisted != 0 && free(persisted) {
		return persisted, FromPersisted, nil
	}
	limit := base + ProbeSpan
	for p := base; p <= limit; p++ {
		if free(p) {
			return p, FromProbe, nil
		}
	}
	return 0, "", errors.Newf(errors.CodeResourceExhausted, "ports.allocate",
		"no available port for %s in range %d-%d; free a port in this range and retry", role, base, limit).
		WithContext("role", string(role)).
		WithContext("range_start", base).
		WithContext("range_end", limit)
}

// base is where the linear probe starts. RPC starts one past the chosen P2P
// port whenever its default collides with the P2P default or with the port P2P
// actually received.
func (a *Allocator) base(role Role, def int, defaults, stock map[Role]int, chosen Assignment) int {
	if role != RPC {
		return def
	}
	p2pDefault, ok := defaults[P2P]
	if !ok {
		p2pDefault = stock[P2P]
	}
	p2p, ok := chosen[P2P]
	if !ok {
		return def
	}
	if def == p2pDefault || def == p2p {
		return p2p + 1
	}
	return def
}
