package dashboard

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cmalf/cryptobar/internal/metrics"
	"github.com/cmalf/cryptobar/internal/update"
)

// stateMsg carries one state read from the pipeline stream.
type stateMsg struct {
	state update.State
	at    time.Time
}

// streamClosedMsg reports that the pipeline stream ended.
type streamClosedMsg struct{}

type tickMsg time.Time

type metricsMsg metrics.Snapshot

// attemptDoneMsg reports the result of an attempt started from the dashboard.
type attemptDoneMsg struct {
	err error
}

// Transition is one observed pipeline state.
type Transition struct {
	At    time.Time
	State update.State
}

// Info describes the installation being updated.
type Info struct {
	Owner          string
	Repo           string
	CurrentVersion string
	AppPath        string
}

// Data is everything the panels render.
type Data struct {
	Info    Info
	State   update.State
	Since   time.Time
	History []Transition
	Metrics metrics.Snapshot
	Now     time.Time
	Running bool
	LastErr error
}

// SnapshotCollector is implemented by *metrics.Collector.
type SnapshotCollector interface {
	Collect(ctx context.Context) metrics.Snapshot
}

// Options configure a Dashboard.
type Options struct {
	Info   Info
	States <-chan update.State
	// Run starts one update attempt. Nil disables the run key.
	Run        func(ctx context.Context) error
	RunOnStart bool
	Collector  SnapshotCollector
	// RefreshInterval drives the clock and metrics refresh.
	RefreshInterval time.Duration
	HistorySize     int
	NoEmoji         bool
	// OnStart receives a function that stops the program and waits until
	// the terminal has been restored.
	OnStart func(stop func())
	// ProgramOptions are appended to the defaults (alt screen, ctx).
	ProgramOptions []tea.ProgramOption
}
