package update

import (
	"context"
	"os/exec"
)

// CommandRunner abstracts exec.Command calls for testability.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner is the production implementation of CommandRunner.
type ExecRunner struct{}

// Run executes name and returns its stdout. A non-zero exit surfaces as
// *exec.ExitError.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// DetachedRunner runs commands in a new session so they survive the exit of
// the calling process and its terminal.
type DetachedRunner struct{}

func (DetachedRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = detachedProcAttr()
	return cmd.Output()
}

// exitCoder is implemented by *exec.ExitError.
type exitCoder interface {
	ExitCode() int
}
