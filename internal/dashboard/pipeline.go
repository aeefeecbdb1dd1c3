package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cmalf/cryptobar/internal/update"
)

type stageStatus int

const (
	stagePending stageStatus = iota
	stageActive
	stageOK
	stageFailed
	stageSkipped
)

var stageNames = []string{"Check", "Download", "Install", "Relaunch"}

// Pipeline shows the stages of the current attempt and the download bar.
type Pipeline struct {
	panel
	data  Data
	icons Icons
	bar   progress.Model
}

func NewPipeline(noEmoji bool) *Pipeline {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	if noEmoji {
		bar = progress.New(progress.WithSolidFill("39"), progress.WithoutPercentage(),
			progress.WithFillCharacters('=', ' '))
	}
	return &Pipeline{
		panel: panel{id: "pipeline", title: "Update", minW: 34, minH: 10},
		icons: NewIcons(noEmoji),
		bar:   bar,
	}
}

func (c *Pipeline) Update(msg tea.Msg, data Data) (Component, tea.Cmd) {
	c.data = data
	return c, nil
}

func (c *Pipeline) View(w, h int) string {
	content := c.content(innerWidth(w, 1))
	return c.cachedRender(content, w, h, func() string { return box(content, w, h) })
}

func (c *Pipeline) content(inner int) string {
	lines := []string{FormatTitle(c.Title(), inner)}

	for i, st := range stageStatuses(c.data.History) {
		lines = append(lines, fmt.Sprintf("%s %s", c.icon(st), stageNames[i]))
	}
	lines = append(lines, "")

	state := c.data.State
	if state == nil {
		state = update.Idle{}
	}
	if d, ok := state.(update.Downloading); ok {
		c.bar.Width = max(inner-7, 5)
		lines = append(lines, fmt.Sprintf("%s %6s", c.bar.ViewAs(d.Fraction), Percent(d.Fraction)))
	}

	status := describe(state)
	if update.IsActive(state) && !c.data.Since.IsZero() && !c.data.Now.IsZero() {
		status += "  (" + DurationShort(c.data.Now.Sub(c.data.Since)) + ")"
	}
	lines = append(lines, c.statusStyle(state).Render(truncate(status, inner)))
	return strings.Join(lines, "\n")
}

func (c *Pipeline) icon(s stageStatus) string {
	switch s {
	case stageActive:
		return c.icons.Active
	case stageOK:
		return c.icons.OK
	case stageFailed:
		return c.icons.Err
	case stageSkipped:
		return "-"
	default:
		return c.icons.Pending
	}
}

func (c *Pipeline) statusStyle(s update.State) lipgloss.Style {
	switch s.Phase() {
	case update.PhaseDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	case update.PhaseFailed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	}
}

func describe(s update.State) string {
	switch v := s.(type) {
	case update.Idle:
		return "Idle"
	case update.Checking:
		return "Checking for updates…"
	case update.Downloading:
		return "Downloading installer"
	case update.Installing:
		return "Installing update…"
	case update.Done:
		return v.Message
	case update.Failed:
		return "Failed: " + v.Message
	default:
		return s.String()
	}
}

// stageStatuses derives the four stage markers from the transitions of the
// latest attempt, which starts at the last Checking state.
func stageStatuses(history []Transition) []stageStatus {
	out := make([]stageStatus, len(stageNames))

	start := -1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].State.Phase() == update.PhaseChecking {
			start = i
			break
		}
	}
	if start < 0 {
		return out
	}

	reached := update.PhaseChecking
	var doneSeen bool
	var last update.State
	for _, t := range history[start:] {
		p := t.State.Phase()
		if update.IsActive(t.State) && p > reached {
			reached = p
		}
		if p == update.PhaseDone {
			doneSeen = true
		}
		last = t.State
	}
	// stage index of the furthest active phase
	cur := int(reached - update.PhaseChecking)

	for i := 0; i < cur; i++ {
		out[i] = stageOK
	}

	switch last.Phase() {
	case update.PhaseChecking, update.PhaseDownloading, update.PhaseInstalling:
		out[cur] = stageActive
	case update.PhaseDone:
		if reached == update.PhaseInstalling {
			out[2], out[3] = stageOK, stageOK
		} else {
			out[cur] = stageOK
			for i := cur + 1; i < len(out); i++ {
				out[i] = stageSkipped
			}
		}
	case update.PhaseFailed:
		if doneSeen && reached == update.PhaseInstalling {
			out[2], out[3] = stageOK, stageFailed
		} else {
			out[cur] = stageFailed
		}
	}
	return out
}
