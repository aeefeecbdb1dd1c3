package main

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cmalf/cryptobar/internal/config"
	"github.com/cmalf/cryptobar/internal/logger"
	"github.com/cmalf/cryptobar/internal/metrics"
	"github.com/cmalf/cryptobar/internal/process"
	"github.com/cmalf/cryptobar/internal/settings"
	"github.com/cmalf/cryptobar/internal/ui"
	"github.com/cmalf/cryptobar/internal/update"
)

// Deps holds the collaborators of the command handlers. Everything is
// built in newDeps; tests assemble their own.
type Deps struct {
	Cfg        config.Config
	Settings   *settings.Store
	Releases   update.ReleaseFetcher
	Downloader update.ArtifactDownloader
	Installer  update.AppInstaller
	Relauncher update.AppRelauncher
	Browser    update.BrowserOpener
	Runner     update.CommandRunner
	Collector  *metrics.Collector
	Printer    ui.Printer
	Output     io.Writer
	// LockPath guards against concurrent update runs. Empty disables it.
	LockPath string
	// BuildVersion is the last resort when the bundle version is unknown.
	BuildVersion string

	mu      sync.Mutex
	cleanup []func()
}

// newDeps wires the production components for cfg.
func newDeps(cfg config.Config, out io.Writer) *Deps {
	runner := update.ExecRunner{}
	d := &Deps{
		Cfg:          cfg,
		Settings:     settings.NewStore(cfg.SettingsPath()),
		Releases:     update.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout),
		Downloader:   update.NewDownloader(cfg.DownloadDir),
		Runner:       runner,
		Collector:    metrics.New(cfg.DownloadDir, cfg.InstallDir),
		Printer:      getPrinter(out),
		Output:       out,
		LockPath:     cfg.LockPath(),
		BuildVersion: Version,
	}
	d.Installer = update.NewInstaller(update.InstallerConfig{
		AppName:     cfg.AppName,
		InstallDir:  cfg.InstallDir,
		StepTimeout: cfg.StepTimeout,
	}, runner)

	relauncher := update.NewRelauncher(update.DetachedRunner{}, process.NewTerminator())
	relauncher.Exit = d.exit
	d.Relauncher = relauncher

	g := ui.GetGlobal()
	d.Browser = ui.Browser{Runner: runner, Disabled: g.NonInteractive}
	return d
}

// setupLogging sends logs to the configured file, and to stderr unless the
// output is structured or quiet.
func setupLogging(cfg config.Config) (func(), error) {
	var console io.Writer = os.Stderr
	if flagQuiet || flagOutput != "text" {
		console = io.Discard
	}
	return logger.Init(logger.Options{
		Level:    cfg.LogLevel,
		FilePath: cfg.LogFile,
		Console:  console,
	})
}

// onExit registers fn to run before the process exits on relaunch.
func (d *Deps) onExit(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleanup = append(d.cleanup, fn)
}

func (d *Deps) runCleanup() {
	d.mu.Lock()
	fns := d.cleanup
	d.cleanup = nil
	d.mu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

func (d *Deps) exit(code int) {
	d.runCleanup()
	os.Exit(code)
}

// currentVersion resolves the installed version: the bundle's
// CFBundleShortVersionString, then the configured version, then the
// version this binary was built as.
func (d *Deps) currentVersion(ctx context.Context) string {
	if d.Runner != nil {
		v, err := update.BundleVersion(ctx, d.Runner, d.Cfg.AppPath())
		if err == nil {
			return v
		}
		logger.DebugKV(ctx, "Bundle version unavailable", "app", d.Cfg.AppPath(), "error", err)
	}
	if v := strings.TrimSpace(d.Cfg.CurrentVersion); v != "" {
		return v
	}
	return d.BuildVersion
}
