package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cmalf/cryptobar/internal/metrics"
	"github.com/cmalf/cryptobar/internal/update"
)

const (
	defaultRefresh     = 2 * time.Second
	defaultHistorySize = 50
	collectTimeout     = 3 * time.Second
	stopTimeout        = 2 * time.Second
)

type keyMap struct {
	Run  key.Binding
	Help key.Binding
	Quit key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Run}, {k.Help, k.Quit}}
}

func newKeyMap(canRun bool) keyMap {
	k := keyMap{
		Run: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "check for updates"),
		),
		Help: key.NewBinding(
			key.WithKeys("?", "h"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
	k.Run.SetEnabled(canRun)
	return k
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitForState(ch <-chan update.State) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return stateMsg{state: s, at: time.Now()}
	}
}

// Dashboard is the bubbletea model following one update pipeline.
type Dashboard struct {
	opts     Options
	registry *Registry
	layout   *Layout
	keys     keyMap
	help     help.Model
	spinner  spinner.Model

	data          Data
	width, height int
	streamClosed  bool

	ctx    context.Context
	cancel context.CancelFunc
	// inflight is the attempt started last; it outlives the program when
	// the user quits mid-attempt.
	inflight *attempt
}

type attempt struct {
	done chan struct{}
	err  error
}

// New returns a Dashboard for opts. Its attempts run under a context that
// quitting cancels.
func New(opts Options) *Dashboard {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = defaultRefresh
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = defaultHistorySize
	}

	registry := NewRegistry()
	registry.Register(NewHeader())
	registry.Register(NewPipeline(opts.NoEmoji))
	registry.Register(NewSystem())
	registry.Register(NewHistory())

	layout := NewLayout(registry, []string{"header", "pipeline"},
		Row{IDs: []string{"header"}, MinHeight: 3},
		Row{IDs: []string{"pipeline", "system"}, Weights: []int{3, 2}, MinHeight: 10},
		Row{IDs: []string{"history"}, MinHeight: 5},
	)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ctx, cancel := context.WithCancel(context.Background())
	return &Dashboard{
		opts:     opts,
		registry: registry,
		layout:   layout,
		keys:     newKeyMap(opts.Run != nil),
		help:     help.New(),
		spinner:  sp,
		data:     Data{Info: opts.Info, State: update.Idle{}, Now: time.Now()},
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (m *Dashboard) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		waitForState(m.opts.States),
		tickCmd(m.opts.RefreshInterval),
		m.collectCmd(),
	}
	if m.opts.RunOnStart {
		cmds = append(cmds, m.startRun())
	}
	return tea.Batch(cmds...)
}

func (m *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case stateMsg:
		m.record(msg.state, msg.at)
		cmds := m.registry.UpdateAll(msg, m.data)
		cmds = append(cmds, waitForState(m.opts.States))
		return m, tea.Batch(cmds...)

	case streamClosedMsg:
		m.streamClosed = true
		return m, nil

	case tickMsg:
		m.data.Now = time.Time(msg)
		m.registry.UpdateAll(msg, m.data)
		return m, tea.Batch(tickCmd(m.opts.RefreshInterval), m.collectCmd())

	case metricsMsg:
		m.data.Metrics = metrics.Snapshot(msg)
		m.registry.UpdateAll(msg, m.data)
		return m, nil

	case attemptDoneMsg:
		m.data.Running = false
		m.data.LastErr = msg.err
		m.keys.Run.SetEnabled(m.opts.Run != nil)
		m.registry.UpdateAll(msg, m.data)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Run):
		return m, m.startRun()
	}
	return m, nil
}

func (m *Dashboard) startRun() tea.Cmd {
	if m.opts.Run == nil || m.data.Running {
		return nil
	}
	m.data.Running = true
	m.data.LastErr = nil
	m.keys.Run.SetEnabled(false)
	a := &attempt{done: make(chan struct{})}
	m.inflight = a
	run, ctx := m.opts.Run, m.ctx
	return func() tea.Msg {
		a.err = run(ctx)
		close(a.done)
		return attemptDoneMsg{err: a.err}
	}
}

func (m *Dashboard) collectCmd() tea.Cmd {
	if m.opts.Collector == nil {
		return nil
	}
	c, parent := m.opts.Collector, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, collectTimeout)
		defer cancel()
		return metricsMsg(c.Collect(ctx))
	}
}

// record appends s to the history. Consecutive download samples replace
// each other so progress does not flood the list.
func (m *Dashboard) record(s update.State, at time.Time) {
	if m.data.State == nil || m.data.State.Phase() != s.Phase() {
		m.data.Since = at
	}
	m.data.State = s
	m.data.Now = at

	h := m.data.History
	if n := len(h); n > 0 && h[n-1].State.Phase() == update.PhaseDownloading && s.Phase() == update.PhaseDownloading {
		h[n-1] = Transition{At: at, State: s}
	} else {
		h = append(h, Transition{At: at, State: s})
	}
	if len(h) > m.opts.HistorySize {
		h = append([]Transition(nil), h[len(h)-m.opts.HistorySize:]...)
	}
	m.data.History = h
}

// State returns the latest state the dashboard has seen.
func (m *Dashboard) State() update.State {
	return m.data.State
}

// Err returns the error of the last attempt started from the dashboard.
func (m *Dashboard) Err() error {
	return m.data.LastErr
}

// Wait cancels a running attempt, blocks until it has returned and yields
// its error. Without an attempt in flight it returns Err.
func (m *Dashboard) Wait() error {
	m.cancel()
	if a := m.inflight; a != nil {
		<-a.done
		return a.err
	}
	return m.Err()
}

func (m *Dashboard) View() string {
	if m.width <= 0 || m.height <= 1 {
		return ""
	}

	footer := m.footer()
	placement := m.layout.Compute(m.width, m.height-lipgloss.Height(footer))

	byRow := make(map[int][]Cell)
	for _, cell := range placement.Cells {
		byRow[cell.Y] = append(byRow[cell.Y], cell)
	}
	ys := make([]int, 0, len(byRow))
	for y := range byRow {
		ys = append(ys, y)
	}
	sort.Ints(ys)

	var rows []string
	for _, y := range ys {
		cells := byRow[y]
		sort.Slice(cells, func(i, j int) bool { return cells[i].X < cells[j].X })
		var views []string
		for _, cell := range cells {
			if comp := m.registry.Get(cell.ID); comp != nil {
				views = append(views, comp.View(cell.W, cell.H))
			}
		}
		if len(views) > 0 {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, views...))
		}
	}

	out := lipgloss.JoinVertical(lipgloss.Left, rows...)
	if placement.Warning != "" {
		out += fmt.Sprintf("\n%s %s", NewIcons(m.opts.NoEmoji).Warn, placement.Warning)
	}
	return lipgloss.JoinVertical(lipgloss.Left, out, footer)
}

func (m *Dashboard) footer() string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	var status string
	switch {
	case m.data.Running || update.IsActive(m.data.State):
		status = m.spinner.View() + " " + dim.Render("update in progress")
	case m.data.LastErr != nil && !errors.Is(m.data.LastErr, update.ErrUpdateInProgress):
		status = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("Last attempt failed: " + m.data.LastErr.Error())
	case m.data.LastErr != nil:
		status = dim.Render("Another update is already running")
	case m.streamClosed:
		status = dim.Render("Updater stopped")
	}
	helpView := m.help.View(m.keys)
	if status == "" {
		return helpView
	}
	return lipgloss.JoinVertical(lipgloss.Left, status, helpView)
}

// Run shows the dashboard until the user quits or ctx ends. It returns the
// error of the last attempt the dashboard started, after that attempt has
// finished.
func Run(ctx context.Context, opts Options) error {
	m := New(opts)
	progOpts := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts.ProgramOptions...)
	p := tea.NewProgram(m, progOpts...)

	exited := make(chan struct{})
	if opts.OnStart != nil {
		opts.OnStart(func() {
			select {
			case <-exited:
				return
			default:
			}
			p.Kill()
			select {
			case <-exited:
			case <-time.After(stopTimeout):
			}
		})
	}

	_, err := p.Run()
	close(exited)
	if werr := m.Wait(); err == nil {
		return werr
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
