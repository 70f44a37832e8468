// Package store persists the node's negotiated ports and moniker in a
// line-oriented KEY=VALUE file next to the compose stack.
package store

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/pushchain/push-node-docker/internal/errors"
	"github.com/pushchain/push-node-docker/internal/ports"
)

// Store keys.
const (
	KeyP2PPort  = "P2P_PORT"
	KeyRPCPort  = "RPC_PORT"
	KeyAPIPort  = "API_PORT"
	KeyGRPCPort = "GRPC_PORT"
	KeyMoniker  = "MONIKER"
)

// RoleKeys maps each port role to the store key that persists it.
var RoleKeys = map[ports.Role]string{
	ports.P2P:  KeyP2PPort,
	ports.RPC:  KeyRPCPort,
	ports.API:  KeyAPIPort,
	ports.GRPC: KeyGRPCPort,
}

// NodeConfig is the typed view of the store. Zero means unset.
type NodeConfig struct {
	P2PPort  int
	RPCPort  int
	APIPort  int
	GRPCPort int
	Moniker  string
}

// Persisted returns the ports that are set, keyed by role.
func (c NodeConfig) Persisted() map[ports.Role]int {
	out := make(map[ports.Role]int, 4)
	for role, port := range map[ports.Role]int{
		ports.P2P:  c.P2PPort,
		ports.RPC:  c.RPCPort,
		ports.API:  c.APIPort,
		ports.GRPC: c.GRPCPort,
	} {
		if port > 0 {
			out[role] = port
		}
	}
	return out
}

// Store is a KEY=VALUE file. It is meant for a single process; no locking.
type Store struct {
	path string
}

// New returns a store backed by path. The file need not exist.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Values returns every key/value pair in the file. A missing file is empty.
func (s *Store) Values() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeConfig, "store.values", "failed to read store")
	}
	values, err := godotenv.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeConfig, "store.values", "failed to parse store").
			WithContext("path", s.path)
	}
	return values, nil
}

// Load reads the typed config. Unparseable port values are a config error.
func (s *Store) Load() (NodeConfig, error) {
	values, err := s.Values()
	if err != nil {
		return NodeConfig{}, err
	}

	var cfg NodeConfig
	for _, f := range []struct {
		key string
		dst *int
	}{
		{KeyP2PPort, &cfg.P2PPort},
		{KeyRPCPort, &cfg.RPCPort},
		{KeyAPIPort, &cfg.APIPort},
		{KeyGRPCPort, &cfg.GRPCPort},
	} {
		raw, ok := values[f.key]
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		port, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || port < 1 || port > 65535 {
			return NodeConfig{}, errors.Newf(errors.CodeConfig, "store.load", "invalid %s value %q", f.key, raw).
				WithContext("path", s.path)
		}
		*f.dst = port
	}
	cfg.Moniker = values[KeyMoniker]
	return cfg, nil
}

// Upsert sets key to value, replacing the first existing assignment in place
// or appending one. All other lines are written back unchanged.
func (s *Store) Upsert(key, value string) error {
	return s.UpsertAll([][2]string{{key, value}})
}

// UpsertAll applies several upserts in one rewrite, in order.
func (s *Store) UpsertAll(pairs [][2]string) error {
	for _, p := range pairs {
		if err := validKey(p[0]); err != nil {
			return err
		}
		if strings.ContainsAny(p[1], "\r\n") {
			return errors.Newf(errors.CodeValidation, "store.upsert", "value for %s must be a single line", p[0])
		}
		if _, ok := encodeValue(p[1]); !ok {
			return errors.Newf(errors.CodeValidation, "store.upsert", "value for %s cannot be stored: %q", p[0], p[1])
		}
	}

	data, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.WrapCode(err, errors.CodeConfig, "store.upsert", "failed to read store")
	}

	lines := splitLines(data)
	for _, p := range pairs {
		value, _ := encodeValue(p[1])
		line := p[0] + "=" + value
		// The parser keeps the last assignment, so later duplicates are dropped.
		var kept []string
		found := false
		for _, l := range lines {
			if lineKey(l) != p[0] {
				kept = append(kept, l)
				continue
			}
			if !found {
				kept = append(kept, line)
				found = true
			}
		}
		if !found {
			kept = append(kept, line)
		}
		lines = kept
	}

	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return s.write(buf.Bytes())
}

func (s *Store) write(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapCode(err, errors.CodeConfig, "store.write", "failed to create store directory")
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return errors.WrapCode(err, errors.CodeConfig, "store.write", "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.WrapCode(err, errors.CodeConfig, "store.write", "failed to write store")
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapCode(err, errors.CodeConfig, "store.write", "failed to write store")
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.WrapCode(err, errors.CodeConfig, "store.write", "failed to set store permissions")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.WrapCode(err, errors.CodeConfig, "store.write", "failed to replace store")
	}
	return nil
}

// encodeValue quotes v so godotenv.Parse returns it unchanged. Single quotes
// are literal; double quotes need \, " and $ escaped. ok is false for the few
// values neither form can carry.
func encodeValue(v string) (string, bool) {
	if !strings.ContainsAny(v, " \t#$'\"\\`") {
		return v, true
	}
	if strings.HasSuffix(v, "\\") {
		return "", false
	}
	if !strings.Contains(v, "'") {
		return "'" + v + "'", true
	}
	if strings.HasSuffix(v, `"`) {
		return "", false
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`)
	return `"` + r.Replace(v) + `"`, true
}

func splitLines(data []byte) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimSuffix(sc.Text(), "\r"))
	}
	return lines
}

// lineKey returns the key assigned on l, or "" for comments and blanks.
func lineKey(l string) string {
	t := strings.TrimSpace(l)
	if t == "" || strings.HasPrefix(t, "#") {
		return ""
	}
	t = strings.TrimPrefix(t, "export ")
	i := strings.IndexAny(t, "=:")
	if i <= 0 {
		return ""
	}
	return strings.TrimSpace(t[:i])
}

func validKey(k string) error {
	if k == "" {
		return errors.New(errors.CodeValidation, "store.upsert", "key must not be empty")
	}
	for _, r := range k {
		if !(r == '_' || r == '.' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return errors.New(errors.CodeValidation, "store.upsert", fmt.Sprintf("invalid key %q", k))
		}
	}
	return nil
}
