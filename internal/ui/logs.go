package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nxadm/tail"
)

// LogOptions configures FollowLog.
type LogOptions struct {
	Path   string
	Lines  int  // trailing lines to show first; 0 shows the whole file
	Follow bool // keep streaming new lines until ctx is done
	Poll   bool // poll for changes instead of kqueue/inotify
}

// FollowLog prints the updater log to out and, with Follow, streams new
// lines across log rotation until ctx is cancelled.
func FollowLog(ctx context.Context, out io.Writer, opts LogOptions) error {
	if opts.Follow {
		// The first update run creates the file.
		waitForFile(ctx, opts.Path, 5*time.Second)
	} else if _, err := os.Stat(opts.Path); err != nil {
		return fmt.Errorf("log file: %w", err)
	}

	cfg := tail.Config{
		Follow:    opts.Follow,
		ReOpen:    opts.Follow,
		MustExist: !opts.Follow,
		Poll:      opts.Poll,
		Logger:    tail.DiscardingLogger,
	}
	if opts.Lines > 0 {
		offset, err := tailOffset(opts.Path, opts.Lines)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		cfg.Location = &tail.SeekInfo{Offset: offset, Whence: io.SeekStart}
	}

	t, err := tail.TailFile(opts.Path, cfg)
	if err != nil {
		return fmt.Errorf("failed to tail log: %w", err)
	}
	defer t.Cleanup()
	defer func() { _ = t.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok || line == nil {
				return nil
			}
			if line.Err != nil {
				return line.Err
			}
			fmt.Fprintln(out, line.Text)
		}
	}
}

// tailOffset returns the byte offset where the last n lines of path begin.
func tailOffset(path string, n int) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if size == 0 {
		return 0, nil
	}

	const chunk = 4096
	buf := make([]byte, chunk)
	newlines := 0
	pos := size
	// A trailing newline ends the last line rather than starting a new one.
	skipLast := true
	for pos > 0 {
		readSize := int64(chunk)
		if pos < readSize {
			readSize = pos
		}
		pos -= readSize
		if _, err := f.ReadAt(buf[:readSize], pos); err != nil && err != io.EOF {
			return 0, err
		}
		for i := readSize - 1; i >= 0; i-- {
			if buf[i] != '\n' {
				skipLast = false
				continue
			}
			if skipLast {
				skipLast = false
				continue
			}
			newlines++
			if newlines == n {
				return pos + i + 1, nil
			}
		}
	}
	return 0, nil
}

// waitForFile polls until path exists or ctx ends.
func waitForFile(ctx context.Context, path string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
	return false
}
