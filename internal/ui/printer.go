package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ValidateFormat rejects unknown --output values.
func ValidateFormat(format string) error {
	switch format {
	case FormatText, FormatJSON, FormatYAML:
		return nil
	}
	return fmt.Errorf("invalid output format %q (use text, json or yaml)", format)
}

// Printer centralizes output formatting for commands.
// - Respects --output (text|json|yaml)
// - Uses ColorConfig for styling when printing text
type Printer struct {
	format string
	out    io.Writer
	Colors *ColorConfig
}

func NewPrinter(format string) Printer {
	return Printer{format: format, out: os.Stdout, Colors: NewColorConfig()}
}

// NewPrinterTo writes to out with the given colors.
func NewPrinterTo(format string, out io.Writer, colors *ColorConfig) Printer {
	if colors == nil {
		colors = NewPlainColorConfig()
	}
	return Printer{format: format, out: out, Colors: colors}
}

// Structured reports whether output is machine-readable.
func (p Printer) Structured() bool { return p.format == FormatJSON || p.format == FormatYAML }

// Writer returns the destination writer.
func (p Printer) Writer() io.Writer { return p.out }

// Textf prints formatted text.
func (p Printer) Textf(format string, a ...any) { fmt.Fprintf(p.out, format, a...) }

// JSON pretty-prints v.
func (p Printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML prints v as a YAML document.
func (p Printer) YAML(v any) error {
	enc := yaml.NewEncoder(p.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// Result prints v in the structured format, or calls text for text output.
func (p Printer) Result(v any, text func()) error {
	switch p.format {
	case FormatJSON:
		return p.JSON(v)
	case FormatYAML:
		return p.YAML(v)
	}
	text()
	return nil
}

// Success prints a success line with themed prefix.
func (p Printer) Success(msg string) { fmt.Fprintln(p.out, p.Colors.Success("✓"), msg) }

// Info prints an informational line.
func (p Printer) Info(msg string) { fmt.Fprintln(p.out, p.Colors.Info("ℹ"), msg) }

// Warn prints a warning line.
func (p Printer) Warn(msg string) { fmt.Fprintln(p.out, p.Colors.Warning("!"), msg) }

// Error prints an error line.
func (p Printer) Error(msg string) { fmt.Fprintln(p.out, p.Colors.Error("✗"), msg) }

// Header prints a section header.
func (p Printer) Header(title string) { fmt.Fprintln(p.out, p.Colors.Header(" "+title+" ")) }

// Separator prints a themed separator line of n characters.
func (p Printer) Separator(n int) { fmt.Fprintln(p.out, p.Colors.Separator(n)) }
