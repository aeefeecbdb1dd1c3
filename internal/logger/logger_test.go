package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   zapcore.Level
		wantOK bool
	}{
		{"debug", zapcore.DebugLevel, true},
		{"INFO", zapcore.InfoLevel, true},
		{"", zapcore.InfoLevel, true},
		{"warning", zapcore.WarnLevel, true},
		{" error ", zapcore.ErrorLevel, true},
		{"verbose", zapcore.InfoLevel, false},
	}
	for _, tt := range tests {
		got, ok := ParseLogLevel(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseLogLevel(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	if FromContext(context.Background()) != Logger() {
		t.Error("expected global logger for empty context")
	}
}

func TestWithKVWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(zapcore.DebugLevel, &buf)
	ctx := ToContext(context.Background(), l)
	ctx = WithKV(ctx, "tag", "v2.0.0")

	InfoKV(ctx, "release fetched", "assets", 2)
	_ = FromContext(ctx).Sync()

	out := buf.String()
	for _, want := range []string{"release fetched", "v2.0.0", "assets"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}

func TestInitWritesFile(t *testing.T) {
	prev := Logger()
	defer SetLogger(prev)

	path := filepath.Join(t.TempDir(), "logs", "updater.log")
	var console bytes.Buffer
	closeFn, err := Init(Options{Level: "info", FilePath: path, Console: &console})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	Infof(context.Background(), "hello %s", "file")
	closeFn()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("log file = %q, want message", string(data))
	}
	if !strings.Contains(console.String(), "hello file") {
		t.Errorf("console = %q, want message", console.String())
	}
}
