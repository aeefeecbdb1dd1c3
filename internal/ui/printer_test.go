package ui

import (
	"bytes"
	"strings"
	"testing"
)

func plainColors() *ColorConfig {
	return &ColorConfig{Enabled: false, EmojiEnabled: false, Theme: DefaultTheme()}
}

func TestPrinter_Lines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterTo("text", &buf, plainColors())

	p.Success("installed v2.0.0")
	p.Info("checking")
	p.Warn("slow network")
	p.Error("failed")
	p.KeyValueLine("Latest", "2.0.0", "green")

	want := "[OK] installed v2.0.0\n[INFO] checking\n[WARN] slow network\n[ERR] failed\nLatest: 2.0.0\n"
	if buf.String() != want {
		t.Errorf("output:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestPrinter_Quiet(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterTo("text", &buf, plainColors())
	p.quiet = true

	p.Success("hidden")
	p.Info("hidden")
	p.Error("shown")

	if buf.String() != "[ERR] shown\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestPrinter_Data(t *testing.T) {
	type payload struct {
		Current string `json:"current" yaml:"current"`
		Latest  string `json:"latest" yaml:"latest"`
	}
	v := payload{Current: "1.5.2", Latest: "2.0.0"}

	tests := []struct {
		format string
		want   string
		ok     bool
	}{
		{"json", "{\n  \"current\": \"1.5.2\",\n  \"latest\": \"2.0.0\"\n}\n", true},
		{"yaml", "current: 1.5.2\nlatest: 2.0.0\n", true},
		{"text", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			p := NewPrinterTo(tt.format, &buf, plainColors())
			if ok := p.Data(v); ok != tt.ok {
				t.Fatalf("Data() = %v, want %v", ok, tt.ok)
			}
			if buf.String() != tt.want {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
			if p.Structured() != tt.ok {
				t.Errorf("Structured() = %v", p.Structured())
			}
		})
	}
}

func TestColorConfig_Disabled(t *testing.T) {
	c := plainColors()
	if got := c.Success("ok"); got != "ok" {
		t.Errorf("Success() = %q", got)
	}
	c.Enabled = true
	if got := c.Error("bad"); !strings.HasPrefix(got, BrightRed) || !strings.HasSuffix(got, Reset) {
		t.Errorf("Error() = %q", got)
	}
	if got := c.Value("plain"); got != "plain" {
		t.Errorf("Value() with empty theme color = %q", got)
	}
}

func TestStatusIcon(t *testing.T) {
	c := plainColors()
	tests := map[string]string{
		"done":        "[OK]",
		"downloading": "[..]",
		"failed":      "[ERR]",
		"warning":     "[WARN]",
		"idle":        "[ ]",
	}
	for status, want := range tests {
		if got := c.StatusIcon(status); got != want {
			t.Errorf("StatusIcon(%q) = %q, want %q", status, got, want)
		}
	}
	c.EmojiEnabled = true
	if got := c.StatusIcon("done"); got != "✓" {
		t.Errorf("StatusIcon(done) with emoji = %q", got)
	}
}

func TestTable(t *testing.T) {
	out := Table(plainColors(), []string{"KEY", "VALUE"}, [][]string{
		{"auto_check", "true"},
		{"interval", "Monthly"},
	}, nil)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if lines[0] != "KEY        VALUE  " {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != strings.Repeat("-", 18) {
		t.Errorf("separator = %q", lines[1])
	}
	if lines[3] != "interval   Monthly" {
		t.Errorf("row = %q", lines[3])
	}
}
