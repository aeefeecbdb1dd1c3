package dashboard

import (
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// System shows host resources an update depends on.
type System struct {
	panel
	data Data
}

func NewSystem() *System {
	return &System{panel: panel{id: "system", title: "System", minW: 28, minH: 10}}
}

func (c *System) Update(msg tea.Msg, data Data) (Component, tea.Cmd) {
	c.data = data
	return c, nil
}

func (c *System) View(w, h int) string {
	content := c.content(innerWidth(w, 1))
	return c.cachedRender(content, w, h, func() string { return box(content, w, h) })
}

func (c *System) content(inner int) string {
	lines := []string{FormatTitle(c.Title(), inner)}
	snap := c.data.Metrics
	if snap.CollectedAt.IsZero() {
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("Collecting…"))
		return strings.Join(lines, "\n")
	}

	sys := snap.System
	lines = append(lines, fmt.Sprintf("CPU: %s", Percent(sys.CPUPercent/100)))
	if sys.MemTotal > 0 {
		lines = append(lines, fmt.Sprintf("Memory: %s of %s",
			Percent(float64(sys.MemUsed)/float64(sys.MemTotal)), HumanBytes(sys.MemTotal)))
	}
	for _, d := range sys.Disks {
		label := truncate(filepath.Base(d.Path), 14)
		lines = append(lines, fmt.Sprintf("%s: %s free", label, HumanBytes(d.Free)))
	}
	return strings.Join(lines, "\n")
}
