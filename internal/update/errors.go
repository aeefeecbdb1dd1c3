package update

import (
	"errors"
	"fmt"
)

var (
	ErrFetchFailed         = errors.New("fetch failed")
	ErrAssetNotFound       = errors.New("update asset not found")
	ErrDownloadFailed      = errors.New("download failed")
	ErrInstallStepFailed   = errors.New("install step failed")
	ErrInstallStepTimedOut = errors.New("install step timed out")
	ErrRelaunchFailed      = errors.New("relaunch failed")
	ErrUpdateInProgress    = errors.New("an update is already in progress")
)

// InstallStep names one step of the disk image installation.
type InstallStep string

const (
	StepMountDir InstallStep = "mountdir"
	StepAttach   InstallStep = "attach"
	StepLocate   InstallStep = "locate"
	StepRemove   InstallStep = "remove"
	StepCopy     InstallStep = "copy"
	StepXattr    InstallStep = "xattr"
	StepDetach   InstallStep = "detach"
)

// InstallStepError reports which install step failed and how.
// ExitCode is -1 when the step did not produce an exit status.
type InstallStepError struct {
	Step     InstallStep
	ExitCode int
	TimedOut bool
	Err      error
}

func (e *InstallStepError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("install step %s timed out", e.Step)
	case e.ExitCode >= 0:
		return fmt.Sprintf("install step %s failed with exit code %d", e.Step, e.ExitCode)
	case e.Err != nil:
		return fmt.Sprintf("install step %s failed: %v", e.Step, e.Err)
	default:
		return fmt.Sprintf("install step %s failed", e.Step)
	}
}

func (e *InstallStepError) Unwrap() error { return e.Err }

// Is lets callers match with ErrInstallStepFailed or ErrInstallStepTimedOut.
func (e *InstallStepError) Is(target error) bool {
	if target == ErrInstallStepTimedOut {
		return e.TimedOut
	}
	return target == ErrInstallStepFailed
}
