package monitor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/pushchain/push-node-docker/internal/errors"
)

// SyncStatus is one snapshot of the node's sync state. Never persisted.
type SyncStatus struct {
	Height          int64     `json:"height" yaml:"height"`
	CatchingUp      bool      `json:"catching_up" yaml:"catching_up"`
	LatestBlockTime time.Time `json:"latest_block_time" yaml:"latest_block_time"`
	NodeID          string    `json:"node_id" yaml:"node_id"`
	Moniker         string    `json:"moniker" yaml:"moniker"`
	Peers           int       `json:"peers" yaml:"peers"`
}

// RetrievalError reports a status call that produced no usable data.
// It is recoverable: callers polling in a loop report it and try again.
type RetrievalError struct {
	Reason string
	Cause  error
}

func (e *RetrievalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to retrieve node status: %s: %v", e.Reason, e.Cause)
	}
	return "failed to retrieve node status: " + e.Reason
}

// Unwrap exposes the error as CodeRetrieval to the errors package.
func (e *RetrievalError) Unwrap() error {
	return errors.New(errors.CodeRetrieval, "monitor.fetch", e.Reason).WithCause(e.Cause)
}

func retrievalf(cause error, format string, args ...interface{}) *RetrievalError {
	return &RetrievalError{Reason: fmt.Sprintf(format, args...), Cause: cause}
}

// ParseStatus decodes `status` output. Both the snake_case and the legacy
// CamelCase layouts are accepted.
func ParseStatus(raw string) (SyncStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SyncStatus{}, retrievalf(nil, "empty status output")
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return SyncStatus{}, retrievalf(err, "malformed status output")
	}
	if result, ok := doc["result"].(map[string]interface{}); ok {
		doc = result
	}

	syncInfo, ok := section(doc, "sync_info", "SyncInfo")
	if !ok {
		return SyncStatus{}, retrievalf(nil, "status output has no sync_info")
	}
	nodeInfo, ok := section(doc, "node_info", "NodeInfo")
	if !ok {
		return SyncStatus{}, retrievalf(nil, "status output has no node_info")
	}

	var (
		st  SyncStatus
		err error
	)
	v, ok := syncInfo["latest_block_height"]
	if !ok {
		return SyncStatus{}, retrievalf(nil, "missing latest_block_height")
	}
	if st.Height, err = cast.ToInt64E(v); err != nil || st.Height < 0 {
		return SyncStatus{}, retrievalf(err, "invalid latest_block_height %v", v)
	}

	v, ok = syncInfo["catching_up"]
	if !ok {
		return SyncStatus{}, retrievalf(nil, "missing catching_up")
	}
	if st.CatchingUp, err = cast.ToBoolE(v); err != nil {
		return SyncStatus{}, retrievalf(err, "invalid catching_up %v", v)
	}

	v, ok = syncInfo["latest_block_time"]
	if !ok {
		return SyncStatus{}, retrievalf(nil, "missing latest_block_time")
	}
	if st.LatestBlockTime, err = cast.ToTimeE(v); err != nil {
		return SyncStatus{}, retrievalf(err, "invalid latest_block_time %v", v)
	}

	if st.NodeID = cast.ToString(nodeInfo["id"]); st.NodeID == "" {
		return SyncStatus{}, retrievalf(nil, "missing node id")
	}
	st.Moniker = cast.ToString(nodeInfo["moniker"])
	return st, nil
}

// ParsePeers decodes the peer count from a net_info response.
func ParsePeers(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, retrievalf(nil, "empty net_info output")
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return 0, retrievalf(err, "malformed net_info output")
	}
	if result, ok := doc["result"].(map[string]interface{}); ok {
		doc = result
	}
	v, ok := doc["n_peers"]
	if !ok {
		if peers, isList := doc["peers"].([]interface{}); isList {
			return len(peers), nil
		}
		return 0, retrievalf(nil, "missing n_peers")
	}
	n, err := cast.ToIntE(v)
	if err != nil || n < 0 {
		return 0, retrievalf(err, "invalid n_peers %v", v)
	}
	return n, nil
}

func section(doc map[string]interface{}, keys ...string) (map[string]interface{}, bool) {
	for _, k := range keys {
		if m, ok := doc[k].(map[string]interface{}); ok {
			return m, true
		}
	}
	return nil, false
}
