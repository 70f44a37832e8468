package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Theme is the palette used when colors are enabled.
type Theme struct {
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color
	Muted   lipgloss.Color
}

// DefaultTheme follows the Push brand colors.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#DD44B9"),
	Accent:  lipgloss.Color("#8B5CF6"),
	Success: lipgloss.Color("#22C55E"),
	Warning: lipgloss.Color("#EAB308"),
	Error:   lipgloss.Color("#EF4444"),
	Info:    lipgloss.Color("#38BDF8"),
	Muted:   lipgloss.Color("#6B7280"),
}

// ColorConfig styles terminal text. With Enabled false every helper returns
// its input unstyled, and with EmojiEnabled false icons fall back to ASCII.
type ColorConfig struct {
	Enabled      bool
	EmojiEnabled bool
	Theme        Theme
}

// NewColorConfig enables colors only for a terminal stdout without NO_COLOR set.
func NewColorConfig() *ColorConfig {
	enabled := os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stdout.Fd()))
	return &ColorConfig{
		Enabled:      enabled,
		EmojiEnabled: enabled && os.Getenv("NO_EMOJI") == "",
		Theme:        DefaultTheme,
	}
}

// NewPlainColorConfig never styles output.
func NewPlainColorConfig() *ColorConfig {
	return &ColorConfig{Theme: DefaultTheme}
}

func (c *ColorConfig) render(s string, style lipgloss.Style) string {
	if c == nil || !c.Enabled {
		return s
	}
	return style.Render(s)
}

func (c *ColorConfig) fg(col lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(col)
}

// Header renders a section title.
func (c *ColorConfig) Header(s string) string {
	return c.render(s, lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(c.Theme.Primary))
}

// SubHeader renders a group title.
func (c *ColorConfig) SubHeader(s string) string {
	return c.render(s, c.fg(c.Theme.Accent).Bold(true))
}

// Separator returns a horizontal rule of n characters.
func (c *ColorConfig) Separator(n int) string {
	if n <= 0 {
		return ""
	}
	ch := "─"
	if c == nil || !c.EmojiEnabled {
		ch = "-"
	}
	return c.render(strings.Repeat(ch, n), c.fg(c.Theme.Muted))
}

func (c *ColorConfig) Success(s string) string { return c.render(s, c.fg(c.Theme.Success).Bold(true)) }
func (c *ColorConfig) Warning(s string) string { return c.render(s, c.fg(c.Theme.Warning).Bold(true)) }
func (c *ColorConfig) Error(s string) string   { return c.render(s, c.fg(c.Theme.Error).Bold(true)) }
func (c *ColorConfig) Info(s string) string    { return c.render(s, c.fg(c.Theme.Info)) }

// Label renders a field name.
func (c *ColorConfig) Label(s string) string { return c.render(s, c.fg(c.Theme.Muted).Bold(true)) }

// Value renders a field value.
func (c *ColorConfig) Value(s string) string { return c.render(s, lipgloss.NewStyle().Bold(true)) }

// Command renders a command name.
func (c *ColorConfig) Command(s string) string { return c.render(s, c.fg(c.Theme.Primary).Bold(true)) }

// Description renders help text.
func (c *ColorConfig) Description(s string) string { return c.render(s, c.fg(c.Theme.Muted)) }

// FormatKeyValue renders "Key: value" with the key styled as a label.
func (c *ColorConfig) FormatKeyValue(key, value string) string {
	return c.Label(key+":") + " " + c.Value(value)
}

// FormatCommand renders a padded command name followed by its description.
func (c *ColorConfig) FormatCommand(name, desc string) string {
	return "  " + padRight(c.Command(name), 22) + " " + c.Description(desc)
}

// FormatFlag renders a padded flag followed by its description.
func (c *ColorConfig) FormatFlag(flag, desc string) string {
	return "  " + padRight(c.Info(flag), 22) + " " + c.Description(desc)
}

// StatusIcon returns a colored icon for a state keyword.
func (c *ColorConfig) StatusIcon(state string) string {
	emoji := c != nil && c.EmojiEnabled
	pick := func(e, plain string) string {
		if emoji {
			return e
		}
		return plain
	}
	switch strings.ToLower(state) {
	case "running", "online", "success", "synced", "ok":
		return c.Success(pick("●", "[ok]"))
	case "syncing", "catching_up", "pending":
		return c.Warning(pick("◐", "[..]"))
	case "warning", "warn":
		return c.Warning(pick("⚠", "[!]"))
	case "stopped", "offline", "error", "failed":
		return c.Error(pick("○", "[x]"))
	default:
		return c.Info(pick("•", "[-]"))
	}
}

// padRight pads s to width visible cells, ignoring ANSI sequences.
func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
