package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// ProgressBar renders download progress from fractions in [0,1]. When the
// artifact size is known, byte counts, speed and ETA are shown as well.
type ProgressBar struct {
	out        io.Writer
	size       int64
	fraction   float64
	startTime  time.Time
	lastUpdate time.Time
	isTTY      bool
	lastPct    float64 // for non-TTY threshold updates
	colors     *ColorConfig
	indent     string
	now        func() time.Time
}

// NewProgressBar creates a progress bar for an artifact of size bytes
// (0 when unknown).
func NewProgressBar(out io.Writer, size int64) *ProgressBar {
	if out == nil {
		out = os.Stdout
	}

	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	if isTTY {
		// Disable focus reporting (CSI ? 1004 l) so ^[[I/^[[O do not leak
		// into the bar.
		fmt.Fprint(out, "\033[?1004l")
		drainStdin(30 * time.Millisecond)
	}

	return &ProgressBar{
		out:       out,
		size:      size,
		startTime: time.Now(),
		isTTY:     isTTY,
		lastPct:   -1,
		colors:    NewColorConfigFromGlobal(),
		indent:    "  ",
		now:       time.Now,
	}
}

// SetIndent sets the indentation prefix for the progress bar output.
func (p *ProgressBar) SetIndent(indent string) {
	p.indent = indent
}

// Set records a new fraction and redraws.
func (p *ProgressBar) Set(fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	p.fraction = fraction

	// Max 10 redraws per second on a TTY
	now := p.now()
	if p.isTTY && now.Sub(p.lastUpdate) < 100*time.Millisecond && fraction < 1 {
		return
	}
	p.lastUpdate = now

	pct := fraction * 100
	if p.isTTY {
		p.renderTTY(pct)
		return
	}
	// Non-TTY: print at 10% intervals
	threshold := float64(int(pct/10) * 10)
	if threshold > p.lastPct {
		p.lastPct = threshold
		fmt.Fprintf(p.out, "%sDownloading... %.0f%%\n", p.indent, threshold)
	}
}

func (p *ProgressBar) renderTTY(pct float64) {
	width := 80
	if f, ok := p.out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	barWidth := min(max(width-56-len(p.indent), 10), 40)
	filled := min(max(int(pct/100*float64(barWidth)), 0), barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	if pct >= 100 {
		bar = p.colors.Apply(p.colors.Theme.Complete, bar)
	} else {
		bar = p.colors.Apply(p.colors.Theme.Progress, bar)
	}

	stats := ""
	if p.size > 0 {
		done := int64(p.fraction * float64(p.size))
		elapsed := p.now().Sub(p.startTime).Seconds()
		var speed float64
		if elapsed > 0 {
			speed = float64(done) / elapsed
		}
		eta := "--"
		if p.fraction >= 1 {
			eta = "0s"
		} else if speed > 0 {
			eta = formatDuration(float64(p.size-done) / speed)
		}
		stats = fmt.Sprintf("   %s/%s   %s   ETA %s", FormatBytes(done), FormatBytes(p.size), FormatSpeed(speed), eta)
	}

	// \033[K clears the rest of the line
	fmt.Fprintf(p.out, "\r%s[%s] %5.1f%%%s\033[K", p.indent, bar, pct, stats)
}

// formatDuration formats seconds into a human-readable duration string.
func formatDuration(seconds float64) string {
	if seconds < 0 {
		return "--"
	}
	if seconds < 60 {
		return fmt.Sprintf("%.0fs", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm%ds", int(seconds)/60, int(seconds)%60)
	}
	return fmt.Sprintf("%dh%dm", int(seconds)/3600, (int(seconds)%3600)/60)
}

// Finish completes the progress bar and moves to the next line.
func (p *ProgressBar) Finish() {
	if p.isTTY {
		p.renderTTY(p.fraction * 100)
		fmt.Fprintln(p.out)
		drainStdin(30 * time.Millisecond)
		return
	}
	if p.fraction >= 1 && p.lastPct < 100 {
		fmt.Fprintf(p.out, "%sDownloading... 100%%\n", p.indent)
	}
}
