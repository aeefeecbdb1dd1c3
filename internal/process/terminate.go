package process

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	ps "github.com/mitchellh/go-ps"

	"github.com/cmalf/cryptobar/internal/logger"
)

const (
	defaultGracePeriod = 5 * time.Second
	pollInterval       = 200 * time.Millisecond
)

// Terminator stops processes by executable name: SIGTERM first, SIGKILL
// for those still alive after the grace period.
type Terminator struct {
	Grace time.Duration

	processes func() ([]ps.Process, error)
	signal    func(pid int, sig syscall.Signal) error
	alive     func(pid int) bool
	self      int
}

// NewTerminator returns a Terminator working on the real process table.
func NewTerminator() *Terminator {
	return &Terminator{
		Grace:     defaultGracePeriod,
		processes: ps.Processes,
		signal:    syscall.Kill,
		alive:     Alive,
		self:      os.Getpid(),
	}
}

// TerminateOthers stops every process whose executable name is executable,
// except the current one.
func (t *Terminator) TerminateOthers(ctx context.Context, executable string) error {
	list, err := t.processes()
	if err != nil {
		return err
	}

	var pids []int
	for _, p := range list {
		if p.Pid() == t.self || p.Executable() != executable {
			continue
		}
		pids = append(pids, p.Pid())
	}
	if len(pids) == 0 {
		return nil
	}

	var result *multierror.Error
	var signalled []int
	for _, pid := range pids {
		logger.InfoKV(ctx, "Stopping running instance", "executable", executable, "pid", pid)
		if err := t.signal(pid, syscall.SIGTERM); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		signalled = append(signalled, pid)
	}

	deadline := time.Now().Add(t.Grace)
	for len(signalled) > 0 && time.Now().Before(deadline) {
		remaining := signalled[:0]
		for _, pid := range signalled {
			if t.alive(pid) {
				remaining = append(remaining, pid)
			}
		}
		signalled = remaining
		if len(signalled) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return multierror.Append(result, ctx.Err()).ErrorOrNil()
		case <-time.After(pollInterval):
		}
	}

	for _, pid := range signalled {
		if !t.alive(pid) {
			continue
		}
		logger.WarnKV(ctx, "Instance ignored SIGTERM, killing", "pid", pid)
		if err := t.signal(pid, syscall.SIGKILL); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
