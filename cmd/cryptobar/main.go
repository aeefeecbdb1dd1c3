package main

import "github.com/cmalf/cryptobar/internal/ui"

func main() {
	// Must run before lipgloss or bubbletea query the terminal.
	ui.InitTerminal()

	Execute()
}
