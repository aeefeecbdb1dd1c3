package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Printer centralizes output formatting for commands.
// - Respects --output (text|json|yaml)
// - Uses ColorConfig for styling when printing text
type Printer struct {
	format string
	out    io.Writer
	quiet  bool
	Colors *ColorConfig
}

func (p Printer) w() io.Writer {
	if p.out == nil {
		return os.Stdout
	}
	return p.out
}

// Writer returns the destination of the printer.
func (p Printer) Writer() io.Writer { return p.w() }

// Format returns the selected output format.
func (p Printer) Format() string {
	if p.format == "" {
		return "text"
	}
	return p.format
}

// Structured reports whether output is machine readable (json or yaml).
func (p Printer) Structured() bool {
	return p.format == "json" || p.format == "yaml"
}

// Textf prints formatted text (always text path).
func (p Printer) Textf(format string, a ...any) { fmt.Fprintf(p.w(), format, a...) }

// JSON pretty-prints a JSON value.
func (p Printer) JSON(v any) {
	enc := json.NewEncoder(p.w())
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// YAML prints v as a YAML document.
func (p Printer) YAML(v any) {
	enc := yaml.NewEncoder(p.w())
	enc.SetIndent(2)
	_ = enc.Encode(v)
	_ = enc.Close()
}

// Data prints v in the structured format selected by --output. It returns
// false in text mode so the caller can render text instead.
func (p Printer) Data(v any) bool {
	switch p.format {
	case "json":
		p.JSON(v)
	case "yaml":
		p.YAML(v)
	default:
		return false
	}
	return true
}

func (p Printer) line(icon, plain string, color func(string) string, msg string) {
	if p.quiet {
		return
	}
	prefix := plain
	if p.Colors.EmojiEnabled {
		prefix = icon
	}
	fmt.Fprintln(p.w(), color(prefix), msg)
}

// Success prints a success line with themed prefix.
func (p Printer) Success(msg string) { p.line("✓", "[OK]", p.Colors.Success, msg) }

// Info prints an informational line.
func (p Printer) Info(msg string) { p.line("ℹ", "[INFO]", p.Colors.Info, msg) }

// Warn prints a warning line.
func (p Printer) Warn(msg string) { p.line("!", "[WARN]", p.Colors.Warning, msg) }

// Error prints an error line. Errors are shown even in quiet mode.
func (p Printer) Error(msg string) {
	prefix := "[ERR]"
	if p.Colors.EmojiEnabled {
		prefix = "✗"
	}
	fmt.Fprintln(p.w(), p.Colors.Error(prefix), msg)
}

// Header prints a section header.
func (p Printer) Header(title string) {
	fmt.Fprintln(p.w(), p.Colors.Header(" "+title+" "))
}

// Section prints a section header with separator
func (p Printer) Section(title string) {
	fmt.Fprintln(p.w())
	fmt.Fprintln(p.w(), p.Colors.SubHeader(title))
	fmt.Fprintln(p.w(), p.Colors.Separator(40))
}

// KeyValueLine prints a key-value pair with proper formatting
func (p Printer) KeyValueLine(key, value, colorType string) {
	var coloredValue string
	switch colorType {
	case "blue":
		coloredValue = p.Colors.Info(value)
	case "yellow":
		coloredValue = p.Colors.Warning(value)
	case "green":
		coloredValue = p.Colors.Success(value)
	case "red":
		coloredValue = p.Colors.Error(value)
	case "dim":
		coloredValue = p.Colors.Description(value)
	default:
		coloredValue = p.Colors.Value(value)
	}
	fmt.Fprintf(p.w(), "%s %s\n", p.Colors.Label(key+":"), coloredValue)
}
