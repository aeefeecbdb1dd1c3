package update

import "fmt"

// Phase identifies the variant of a State.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseChecking
	PhaseDownloading
	PhaseInstalling
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseChecking:
		return "checking"
	case PhaseDownloading:
		return "downloading"
	case PhaseInstalling:
		return "installing"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is one pipeline state. The set of implementations is closed:
// Idle, Checking, Downloading, Installing, Done and Failed.
type State interface {
	Phase() Phase
	String() string
	isState()
}

// Idle means no attempt is running.
type Idle struct{}

// Checking means the latest release is being fetched.
type Checking struct{}

// Downloading carries the download fraction in [0,1].
type Downloading struct {
	Fraction float64
}

// Installing means the downloaded image is being installed.
type Installing struct{}

// Done is a successful terminal state.
type Done struct {
	Message string
}

// Failed is an unsuccessful terminal state. Message is safe to show to
// users; Err keeps the cause for logs.
type Failed struct {
	Message string
	Err     error
}

func (Idle) Phase() Phase        { return PhaseIdle }
func (Checking) Phase() Phase    { return PhaseChecking }
func (Downloading) Phase() Phase { return PhaseDownloading }
func (Installing) Phase() Phase  { return PhaseInstalling }
func (Done) Phase() Phase        { return PhaseDone }
func (Failed) Phase() Phase      { return PhaseFailed }

func (Idle) String() string          { return "idle" }
func (Checking) String() string      { return "checking" }
func (s Downloading) String() string { return fmt.Sprintf("downloading %.0f%%", s.Fraction*100) }
func (Installing) String() string    { return "installing" }
func (s Done) String() string        { return "done: " + s.Message }
func (s Failed) String() string      { return "failed: " + s.Message }

func (Idle) isState()        {}
func (Checking) isState()    {}
func (Downloading) isState() {}
func (Installing) isState()  {}
func (Done) isState()        {}
func (Failed) isState()      {}

// IsActive reports whether s belongs to an attempt still in flight.
func IsActive(s State) bool {
	switch s.Phase() {
	case PhaseChecking, PhaseDownloading, PhaseInstalling:
		return true
	default:
		return false
	}
}
