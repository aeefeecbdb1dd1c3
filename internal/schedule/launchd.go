// Package schedule installs a launchd agent that runs the automatic update
// check at login and periodically afterwards.
package schedule

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cmalf/cryptobar/internal/files"
	"github.com/cmalf/cryptobar/internal/logger"
	"github.com/cmalf/cryptobar/internal/update"
)

const (
	// Label identifies the agent to launchctl.
	Label = "io.github.cmalf.cryptobar.autoupdate"

	DefaultInterval = time.Hour
	launchctlPath   = "/bin/launchctl"
)

// Options describe the agent to install.
type Options struct {
	// Executable is the updater binary launchd runs.
	Executable string
	// HomeDir is passed as --home so the agent sees the same settings.
	HomeDir string
	// LogPath receives the agent's stdout and stderr.
	LogPath string
	// Interval between runs. The auto command still honours the user's
	// check interval, so this only bounds how late a due check can start.
	Interval time.Duration
}

// Status reports whether the agent plist is present.
type Status struct {
	Installed bool   `json:"installed" yaml:"installed"`
	PlistPath string `json:"plist_path" yaml:"plist_path"`
	Label     string `json:"label" yaml:"label"`
}

// Agent manages the launchd plist under ~/Library/LaunchAgents.
type Agent struct {
	PlistPath string
	Runner    update.CommandRunner
}

// NewAgent returns an Agent for the current user's LaunchAgents directory.
func NewAgent(runner update.CommandRunner) (*Agent, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if runner == nil {
		runner = update.ExecRunner{}
	}
	return &Agent{
		PlistPath: filepath.Join(home, "Library", "LaunchAgents", Label+".plist"),
		Runner:    runner,
	}, nil
}

// Install writes the plist and loads it. Reinstalling with identical options
// is a no-op; changed options replace the loaded agent.
func (a *Agent) Install(ctx context.Context, opts Options) (changed bool, err error) {
	if opts.Executable == "" {
		return false, errors.New("executable path is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	plist := renderPlist(opts)

	existing, err := os.ReadFile(a.PlistPath)
	if err == nil && bytes.Equal(existing, plist) {
		return false, nil
	}
	if err == nil {
		// drop the old definition before loading the new one
		a.unload(ctx)
	}

	if err := files.WriteAtomic(a.PlistPath, plist, 0o644); err != nil {
		return false, fmt.Errorf("write launch agent: %w", err)
	}
	if out, err := a.Runner.Run(ctx, launchctlPath, "load", "-w", a.PlistPath); err != nil {
		return true, fmt.Errorf("launchctl load: %w (%s)", err, bytes.TrimSpace(out))
	}
	logger.InfoKV(ctx, "Launch agent installed", "plist", a.PlistPath, "interval", opts.Interval)
	return true, nil
}

// Uninstall unloads the agent and removes its plist. It is a no-op when the
// agent is not installed.
func (a *Agent) Uninstall(ctx context.Context) (bool, error) {
	if !a.Installed() {
		return false, nil
	}
	a.unload(ctx)
	if err := os.Remove(a.PlistPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("remove launch agent: %w", err)
	}
	logger.InfoKV(ctx, "Launch agent removed", "plist", a.PlistPath)
	return true, nil
}

// Installed reports whether the plist exists.
func (a *Agent) Installed() bool {
	_, err := os.Stat(a.PlistPath)
	return err == nil
}

// Status returns the agent's install state.
func (a *Agent) Status() Status {
	return Status{Installed: a.Installed(), PlistPath: a.PlistPath, Label: Label}
}

func (a *Agent) unload(ctx context.Context) {
	if _, err := a.Runner.Run(ctx, launchctlPath, "unload", a.PlistPath); err != nil {
		logger.DebugKV(ctx, "launchctl unload failed", "plist", a.PlistPath, "error", err)
	}
}

func renderPlist(opts Options) []byte {
	args := []string{opts.Executable, "auto"}
	if opts.HomeDir != "" {
		args = append(args, "--home", opts.HomeDir)
	}

	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>` + Label + `</string>
    <key>ProgramArguments</key>
    <array>
`)
	for _, arg := range args {
		fmt.Fprintf(&b, "        <string>%s</string>\n", escape(arg))
	}
	b.WriteString(`    </array>
    <key>StartInterval</key>
    <integer>` + strconv.Itoa(int(opts.Interval/time.Second)) + `</integer>
    <key>RunAtLoad</key>
    <true/>
`)
	if opts.LogPath != "" {
		fmt.Fprintf(&b, "    <key>StandardOutPath</key>\n    <string>%s</string>\n", escape(opts.LogPath))
		fmt.Fprintf(&b, "    <key>StandardErrorPath</key>\n    <string>%s</string>\n", escape(opts.LogPath))
	}
	b.WriteString("</dict>\n</plist>\n")
	return b.Bytes()
}

func escape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
