package ui

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "updater.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTailOffset(t *testing.T) {
	path := writeLog(t, "one\ntwo\nthree\n")
	tests := []struct {
		n    int
		want int64
	}{
		{1, 8},
		{2, 4},
		{3, 0},
		{10, 0},
	}
	for _, tt := range tests {
		got, err := tailOffset(path, tt.n)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("tailOffset(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestFollowLog_LastLines(t *testing.T) {
	path := writeLog(t, "one\ntwo\nthree\nfour")
	var buf bytes.Buffer
	if err := FollowLog(context.Background(), &buf, LogOptions{Path: path, Lines: 2}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "three\nfour\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFollowLog_MissingFile(t *testing.T) {
	err := FollowLog(context.Background(), &bytes.Buffer{}, LogOptions{Path: filepath.Join(t.TempDir(), "none.log")})
	if err == nil {
		t.Error("expected error for missing log file")
	}
}

func TestFollowLog_Follow(t *testing.T) {
	path := writeLog(t, "first\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- FollowLog(ctx, out, LogOptions{Path: path, Follow: true, Poll: true}) }()

	waitFor := func(want string) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if strings.Contains(out.String(), want) {
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
		t.Fatalf("timed out waiting for %q, got %q", want, out.String())
	}
	waitFor("first\n")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString("second\n")
	_ = f.Close()
	waitFor("second\n")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("FollowLog() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("FollowLog did not return after cancel")
	}
}
