package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/pushchain/push-node-docker/internal/ui"
)

// Render formats status as plain text.
func Render(s SyncStatus) string {
	return RenderWith(ui.NewPlainColorConfig(), s)
}

// RenderWith formats status using c for styling.
func RenderWith(c *ui.ColorConfig, s SyncStatus) string {
	if c == nil {
		c = ui.NewPlainColorConfig()
	}
	var b strings.Builder

	b.WriteString(c.Header(" PUSH NODE STATUS ") + "\n")
	b.WriteString(c.Separator(44) + "\n")
	fmt.Fprintf(&b, "%s %s\n", c.StatusIcon("info"), c.FormatKeyValue("Moniker", orUnknown(s.Moniker)))
	fmt.Fprintf(&b, "%s %s\n", c.StatusIcon("info"), c.FormatKeyValue("Node ID", orUnknown(s.NodeID)))
	fmt.Fprintf(&b, "%s %s\n", c.StatusIcon("info"), c.FormatKeyValue("Block Height", fmt.Sprint(s.Height)))

	if s.CatchingUp {
		fmt.Fprintf(&b, "%s %s\n", c.StatusIcon("syncing"), c.FormatKeyValue("Sync", "Node is still syncing with the network"))
	} else {
		fmt.Fprintf(&b, "%s %s\n", c.StatusIcon("synced"), c.FormatKeyValue("Sync", "Node is fully synced"))
	}

	fmt.Fprintf(&b, "%s %s\n", c.StatusIcon("info"), c.FormatKeyValue("Peers", fmt.Sprint(s.Peers)))
	if s.Peers == 0 {
		fmt.Fprintf(&b, "%s %s\n", c.StatusIcon("warning"),
			c.Warning("Warning: no peers connected; check seeds, persistent peers and the P2P port"))
	}

	latest := "unknown"
	if !s.LatestBlockTime.IsZero() {
		latest = s.LatestBlockTime.UTC().Format(time.RFC3339)
	}
	fmt.Fprintf(&b, "%s %s\n", c.StatusIcon("info"), c.FormatKeyValue("Latest Block", latest))
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
