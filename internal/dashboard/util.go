package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Percent formats a fraction in [0,1] with at most one decimal.
func Percent(fraction float64) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	s := fmt.Sprintf("%.1f", fraction*100)
	s = strings.TrimSuffix(s, ".0")
	return s + "%"
}

// DurationShort formats d with at most two units, e.g. "45s", "3m", "2h5m".
func DurationShort(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		h, m := int(d.Hours()), int(d.Minutes())%60
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh%dm", h, m)
	}
	days, h := int(d.Hours())/24, int(d.Hours())%24
	if h == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd%dh", days, h)
}

// HumanBytes formats a byte count using binary units.
func HumanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}

// Icons switch between symbols and plain ASCII.
type Icons struct {
	OK      string
	Warn    string
	Err     string
	Active  string
	Pending string
}

func NewIcons(noEmoji bool) Icons {
	if noEmoji {
		return Icons{OK: "[OK]", Warn: "[!]", Err: "[X]", Active: "[..]", Pending: "[ ]"}
	}
	return Icons{OK: "✓", Warn: "⚠", Err: "✗", Active: "●", Pending: "○"}
}

// innerWidth is the content width of a bordered box with horizontal padding pad.
func innerWidth(total, pad int) int {
	w := total - 2 - 2*pad
	if w < 1 {
		w = 1
	}
	return w
}

func FormatTitle(title string, width int) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		Width(width).
		Align(lipgloss.Center).
		Render(strings.ToUpper(title))
}

// box renders content inside the rounded border every panel uses.
func box(content string, w, h int) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Padding(0, 1)
	cw := w - 2
	if cw < 0 {
		cw = 0
	}
	style = style.Width(cw)
	if h > 2 {
		style = style.Height(h - 2)
	}
	return style.Render(content)
}
