package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
)

var terminalOnce sync.Once

// modesOff are the private modes a bubbletea program may leave enabled.
var modesOff = []string{
	"\033[?1004l", // focus events
	"\033[?1003l", // any-event mouse
	"\033[?1000l", // button mouse
	"\033[?1006l", // SGR mouse encoding
	"\033[?25h",   // cursor visible
}

// InitTerminal must run before lipgloss or bubbletea touch the terminal.
// A preset COLORFGBG stops termenv from sending an OSC 11 background query
// whose reply would otherwise land in our output.
func InitTerminal() {
	terminalOnce.Do(func() {
		if os.Getenv("COLORFGBG") == "" {
			_ = os.Setenv("COLORFGBG", "0;15")
		}
		if stdoutIsTerminal() {
			fmt.Fprint(os.Stdout, modesOff[0])
			time.Sleep(20 * time.Millisecond)
			drainStdin(150 * time.Millisecond)
		}
	})
}

// ResetTerminalAfterTUI restores terminal modes after the dashboard exits
// and discards replies the terminal sent late.
func ResetTerminalAfterTUI() {
	if !stdoutIsTerminal() {
		return
	}
	fmt.Fprint(os.Stdout, strings.Join(modesOff, "")+"\r")
	time.Sleep(30 * time.Millisecond)
	drainStdin(150 * time.Millisecond)
}

func stdoutIsTerminal() bool { return term.IsTerminal(int(os.Stdout.Fd())) }

// drainStdin discards terminal input for d. Piped stdin is never read.
func drainStdin(d time.Duration) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	if err := syscall.SetNonblock(fd, true); err != nil {
		return
	}
	defer func() { _ = syscall.SetNonblock(fd, false) }()

	buf := make([]byte, 256)
	for deadline := time.Now().Add(d); time.Now().Before(deadline); {
		if n, _ := os.Stdin.Read(buf); n <= 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
}
