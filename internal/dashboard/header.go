package dashboard

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Header shows what is being updated and the wall clock.
type Header struct {
	panel
	data Data
}

func NewHeader() *Header {
	return &Header{panel: panel{id: "header", title: "CryptoBar Updater", minW: 30, minH: 3}}
}

func (c *Header) Update(msg tea.Msg, data Data) (Component, tea.Cmd) {
	c.data = data
	return c, nil
}

func (c *Header) View(w, h int) string {
	content := c.content()
	return c.cachedRender(content, w, h, func() string {
		return lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1).
			Width(max(w-2, 0)).
			Render(content)
	})
}

func (c *Header) content() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Render(c.Title())

	info := c.data.Info
	repo := "—"
	if info.Owner != "" && info.Repo != "" {
		repo = info.Owner + "/" + info.Repo
	}
	version := info.CurrentVersion
	if version == "" {
		version = "unknown"
	}
	clock := ""
	if !c.data.Now.IsZero() {
		clock = c.data.Now.Format("15:04:05")
	}
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	return fmt.Sprintf("%s  %s  %s  %s", title,
		dim.Render("repo "+repo),
		dim.Render("installed "+version),
		dim.Render(clock))
}
