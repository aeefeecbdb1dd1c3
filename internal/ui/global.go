package ui

import "io"

// Config holds the output switches given on the command line.
type Config struct {
	NoColor bool
	NoEmoji bool
	// NonInteractive suppresses anything that needs a user at the screen,
	// such as opening the release page.
	NonInteractive bool
	Quiet          bool
}

var global Config

// InitGlobal records cfg for printers and color configs created later.
func InitGlobal(cfg Config) { global = cfg }

// GetGlobal returns the switches set by InitGlobal.
func GetGlobal() Config { return global }

// NewColorConfigFromGlobal returns the environment's color config narrowed
// by --no-color and --no-emoji.
func NewColorConfigFromGlobal() *ColorConfig {
	c := NewColorConfig()
	if global.NoColor {
		c.Enabled = false
	}
	if global.NoEmoji {
		c.EmojiEnabled = false
	}
	return c
}

// NewPrinterTo returns a Printer writing to w, or stdout when w is nil.
func NewPrinterTo(format string, w io.Writer, colors *ColorConfig) Printer {
	if colors == nil {
		colors = NewColorConfig()
	}
	return Printer{format: format, out: w, Colors: colors, quiet: global.Quiet}
}
