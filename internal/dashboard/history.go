package dashboard

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cmalf/cryptobar/internal/update"
)

// History lists recent state transitions, newest last.
type History struct {
	panel
	data Data
}

func NewHistory() *History {
	return &History{panel: panel{id: "history", title: "Activity", minW: 30, minH: 5}}
}

func (c *History) Update(msg tea.Msg, data Data) (Component, tea.Cmd) {
	c.data = data
	return c, nil
}

func (c *History) View(w, h int) string {
	content := c.content(innerWidth(w, 1), h-3)
	return c.cachedRender(content, w, h, func() string { return box(content, w, h) })
}

func (c *History) content(inner, rows int) string {
	lines := []string{FormatTitle(c.Title(), inner)}
	entries := c.data.History
	if len(entries) == 0 {
		return lines[0] + "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("No activity yet")
	}
	if rows < 1 {
		rows = 1
	}
	if len(entries) > rows {
		entries = entries[len(entries)-rows:]
	}
	ts := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	for _, e := range entries {
		text := e.State.String()
		if f, ok := e.State.(update.Failed); ok && f.Err != nil {
			text += " (" + f.Err.Error() + ")"
		}
		lines = append(lines, ts.Render(e.At.Format("15:04:05"))+" "+truncate(text, inner-9))
	}
	return strings.Join(lines, "\n")
}
