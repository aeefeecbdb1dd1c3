package update

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cmalf/cryptobar/internal/logger"
)

const defaultOpen = "/usr/bin/open"

// InstanceTerminator stops running copies of an executable, other than the
// current process.
type InstanceTerminator interface {
	TerminateOthers(ctx context.Context, executable string) error
}

// Relauncher starts the freshly installed bundle and ends the current
// process.
type Relauncher struct {
	OpenPath   string
	Runner     CommandRunner
	Terminator InstanceTerminator
	// Exit ends the current process. Nil leaves the process running.
	Exit func(code int)
}

// NewRelauncher returns a Relauncher that exits through os.Exit.
func NewRelauncher(runner CommandRunner, terminator InstanceTerminator) *Relauncher {
	if runner == nil {
		runner = DetachedRunner{}
	}
	return &Relauncher{
		OpenPath:   defaultOpen,
		Runner:     runner,
		Terminator: terminator,
		Exit:       os.Exit,
	}
}

// Relaunch opens appPath as a new instance and then exits. Failures match
// ErrRelaunchFailed and leave the current process alive.
func (r *Relauncher) Relaunch(ctx context.Context, appPath string) error {
	if _, err := os.Stat(appPath); err != nil {
		return fmt.Errorf("%w: %w", ErrRelaunchFailed, err)
	}

	if r.Terminator != nil {
		name := strings.TrimSuffix(filepath.Base(appPath), filepath.Ext(appPath))
		if err := r.Terminator.TerminateOthers(ctx, name); err != nil {
			logger.WarnKV(ctx, "Could not stop running instances", "executable", name, "error", err)
		}
	}

	open := r.OpenPath
	if open == "" {
		open = defaultOpen
	}
	if _, err := r.Runner.Run(ctx, open, "-n", appPath); err != nil {
		return fmt.Errorf("%w: %w", ErrRelaunchFailed, err)
	}

	logger.InfoKV(ctx, "Relaunched application", "path", appPath)

	if r.Exit != nil {
		_ = logger.FromContext(ctx).Sync()
		r.Exit(0)
	}
	return nil
}
