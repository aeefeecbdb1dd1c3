// Package process guards against concurrent updater runs and stops other
// running copies of the application.
package process

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ps "github.com/mitchellh/go-ps"
)

// ErrLocked is returned by Acquire while another live process holds the lock.
var ErrLocked = errors.New("another update is running")

// Lock is a PID file held by the current process.
type Lock struct {
	path string
	pid  int
}

// Acquire creates the PID file at path. A file naming a process that is no
// longer running is stale and gets replaced.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	pid := os.Getpid()

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(pid))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("write pid file: %w", errors.Join(werr, cerr))
			}
			return &Lock{path: path, pid: pid}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}

		if holder, ok := ReadPID(path); ok && holder != pid {
			return nil, fmt.Errorf("%w (pid %d, lock %s)", ErrLocked, holder, path)
		}
		// Stale or our own leftover.
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w (lock %s)", ErrLocked, path)
}

// Release removes the PID file if it still names this process.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	b, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(b)) != strconv.Itoa(l.pid) {
		return nil
	}
	return os.Remove(l.path)
}

// Path returns the PID file path.
func (l *Lock) Path() string { return l.path }

// ReadPID returns the PID stored at path if that process is alive.
func ReadPID(path string) (int, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	txt := strings.TrimSpace(string(b))
	if txt == "" {
		return 0, false
	}
	pid, err := strconv.Atoi(txt)
	if err != nil {
		return 0, false
	}
	if Alive(pid) {
		return pid, true
	}
	return 0, false
}

// Alive reports whether a process with pid exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := ps.FindProcess(pid)
	return err == nil && p != nil
}
