package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cmalf/cryptobar/internal/dashboard"
	"github.com/cmalf/cryptobar/internal/exitcodes"
	"github.com/cmalf/cryptobar/internal/logger"
	"github.com/cmalf/cryptobar/internal/process"
	"github.com/cmalf/cryptobar/internal/ui"
	"github.com/cmalf/cryptobar/internal/update"
)

type updateOpts struct {
	checkOnly    bool
	autoDownload bool
	noRelaunch   bool
	dashboard    bool
}

// updateReport is the structured result of an update run.
type updateReport struct {
	CurrentVersion  string `json:"current_version" yaml:"current_version"`
	LatestVersion   string `json:"latest_version,omitempty" yaml:"latest_version,omitempty"`
	UpdateAvailable bool   `json:"update_available" yaml:"update_available"`
	ReleaseURL      string `json:"release_url,omitempty" yaml:"release_url,omitempty"`
	Installer       string `json:"installer,omitempty" yaml:"installer,omitempty"`
	State           string `json:"state,omitempty" yaml:"state,omitempty"`
}

func newUpdateCmd() *cobra.Command {
	var opts updateOpts
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for and install the latest CryptoBar release",
		Long: `Check GitHub for the latest CryptoBar release and, when it is newer than the
installed app, download its disk image, install the app and relaunch it.

Without auto-download the release page is opened instead.

Examples:
  cryptobar update                  # Check, then install if auto-download is on
  cryptobar update --check          # Only report whether an update exists
  cryptobar update --auto-download  # Install without opening the release page
  cryptobar update --dashboard      # Follow the update in a live view`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg()
			if err != nil {
				return err
			}
			closeLog, err := setupLogging(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			d := newDeps(cfg, cmd.OutOrStdout())
			d.onExit(closeLog)
			return runUpdate(cmd.Context(), d, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.checkOnly, "check", false, "Only check, never download or install")
	cmd.Flags().BoolVar(&opts.autoDownload, "auto-download", false, "Install without asking, regardless of settings")
	cmd.Flags().BoolVar(&opts.noRelaunch, "no-relaunch", false, "Do not restart the app after installing")
	cmd.Flags().BoolVar(&opts.dashboard, "dashboard", false, "Show a live dashboard while updating")
	return cmd
}

// runUpdate performs one update run under the update lock.
func runUpdate(ctx context.Context, d *Deps, opts updateOpts) error {
	if d.LockPath != "" {
		lock, err := process.Acquire(d.LockPath)
		if err != nil {
			if errors.Is(err, process.ErrLocked) {
				return exitcodes.WrapError(exitcodes.PreconditionFailed, "another cryptobar update is running", err)
			}
			return fmt.Errorf("acquire update lock: %w", err)
		}
		release := func() { _ = lock.Release() }
		d.onExit(release)
		defer release()
	}

	current := d.currentVersion(ctx)
	logger.InfoKV(ctx, "Starting update run", "current", current, "check_only", opts.checkOnly)

	if opts.checkOnly {
		return runCheckOnly(ctx, d, current)
	}
	return runPipeline(ctx, d, opts, current)
}

func runCheckOnly(ctx context.Context, d *Deps, current string) error {
	p := d.Printer
	if !p.Structured() {
		p.Info("Checking for updates...")
	}
	res, err := update.Check(ctx, d.Releases, d.Cfg.Owner, d.Cfg.Repo, current)
	if recErr := d.Settings.RecordCheck(time.Now()); recErr != nil {
		logger.WarnKV(ctx, "Could not record check time", "error", recErr)
	}
	if err != nil {
		return updateError(err, d.Cfg.AppPath(), p)
	}

	report := updateReport{
		CurrentVersion:  res.CurrentVersion,
		LatestVersion:   res.LatestVersion,
		UpdateAvailable: res.UpdateAvailable,
	}
	if res.Release != nil {
		report.ReleaseURL = res.Release.HTMLURL
		if asset, ok := update.PickInstaller(res.Release); ok {
			report.Installer = asset.Name
		}
	}
	if p.Data(report) {
		return nil
	}

	if !res.UpdateAvailable {
		p.Success(fmt.Sprintf("Already up to date (%s)", current))
		return nil
	}
	p.Info(fmt.Sprintf("Update available: %s → %s", res.CurrentVersion, res.LatestVersion))
	if report.ReleaseURL != "" {
		p.KeyValueLine("Release", report.ReleaseURL, "dim")
	}
	if len(res.Release.Assets) > 0 {
		fmt.Fprintln(p.Writer())
		fmt.Fprint(p.Writer(), assetTable(p.Colors, res.Release.Assets, report.Installer))
	}
	p.Info("Run 'cryptobar update --auto-download' to install")
	return nil
}

// assetTable lists release assets, marking the one that would be installed.
func assetTable(c *ui.ColorConfig, assets []update.Asset, installer string) string {
	rows := make([][]string, 0, len(assets))
	for _, a := range assets {
		size, mark := "-", ""
		if a.Size > 0 {
			size = ui.FormatBytes(a.Size)
		}
		if a.Name == installer {
			mark = "installer"
		}
		rows = append(rows, []string{a.Name, size, mark})
	}
	return ui.Table(c, []string{"ASSET", "SIZE", ""}, rows, nil)
}

func runPipeline(ctx context.Context, d *Deps, opts updateOpts, current string) error {
	p := d.Printer
	deps := update.Deps{
		Releases:   d.Releases,
		Downloader: d.Downloader,
		Installer:  d.Installer,
		Browser:    d.Browser,
		Recorder:   d.Settings,
	}
	// the dashboard shows outcomes itself
	if !opts.dashboard {
		deps.Notifier = ui.NoticePrinter{P: p}
	}
	if !opts.noRelaunch {
		deps.Relauncher = d.Relauncher
	}
	orch := update.New(deps, update.Options{
		Owner:          d.Cfg.Owner,
		Repo:           d.Cfg.Repo,
		CurrentVersion: current,
		AutoDownload:   autoDownloadFunc(ctx, d, opts.autoDownload),
		RelaunchDelay:  d.Cfg.RelaunchDelay,
	})
	defer orch.Close()

	var err error
	if opts.dashboard {
		err = runDashboard(ctx, d, orch, current)
	} else {
		states, unsubscribe := orch.Subscribe(16)
		done := make(chan struct{})
		go func() {
			defer close(done)
			renderStates(states, p, d.Output)
		}()
		err = orch.CheckAndApply(ctx)
		unsubscribe()
		<-done
	}
	if err != nil {
		return updateError(err, d.Cfg.AppPath(), p)
	}

	if werr := orch.WaitRelaunch(ctx); werr != nil {
		return updateError(werr, d.Cfg.AppPath(), p)
	}

	p.Data(updateReport{CurrentVersion: current, State: orch.State().String()})
	return nil
}

// autoDownloadFunc reads the auto-download setting at each attempt unless
// forced on.
func autoDownloadFunc(ctx context.Context, d *Deps, force bool) func() bool {
	return func() bool {
		if force {
			return true
		}
		st, err := d.Settings.Load()
		if err != nil {
			logger.WarnKV(ctx, "Could not read settings", "error", err)
			return false
		}
		return st.AutoDownload
	}
}

func runDashboard(ctx context.Context, d *Deps, orch *update.Orchestrator, current string) error {
	states, unsubscribe := orch.Subscribe(32)
	defer unsubscribe()

	err := dashboard.Run(ctx, dashboard.Options{
		Info: dashboard.Info{
			Owner:          d.Cfg.Owner,
			Repo:           d.Cfg.Repo,
			CurrentVersion: current,
			AppPath:        d.Cfg.AppPath(),
		},
		States:     states,
		Run:        orch.CheckAndApply,
		RunOnStart: true,
		Collector:  d.Collector,
		NoEmoji:    ui.GetGlobal().NoEmoji,
		OnStart:    releaseTerminalOnExit(d, ui.ResetTerminalAfterTUI),
	})
	ui.ResetTerminalAfterTUI()
	return err
}

// releaseTerminalOnExit makes an exit during the dashboard, such as the
// relaunch, stop the program and restore the terminal first.
func releaseTerminalOnExit(d *Deps, reset func()) func(stop func()) {
	return func(stop func()) {
		d.onExit(func() {
			stop()
			reset()
		})
	}
}

// renderStates prints pipeline progress until states is closed.
func renderStates(states <-chan update.State, p ui.Printer, out io.Writer) {
	var bar *ui.ProgressBar
	finishBar := func() {
		if bar != nil {
			bar.Finish()
			bar = nil
		}
	}
	defer finishBar()

	for s := range states {
		if p.Structured() {
			continue
		}
		switch v := s.(type) {
		case update.Checking:
			p.Info("Checking for updates...")
		case update.Downloading:
			if bar == nil {
				p.Info("Downloading update...")
				bar = ui.NewProgressBar(out, 0)
			}
			bar.Set(v.Fraction)
		case update.Installing:
			finishBar()
			p.Info("Installing...")
		case update.Done, update.Failed:
			finishBar()
		}
	}
}

// updateError shows err to the user and maps it to an exit code.
func updateError(err error, appPath string, p ui.Printer) error {
	code := exitCodeFor(err)
	if p.Structured() {
		return exitcodes.WrapError(code, "update failed", err)
	}
	ui.PrintError(p.Writer(), p.Colors, ui.ErrorForUpdate(err, appPath))
	return silentErr{err: exitcodes.WrapError(code, "update failed", err)}
}

func exitCodeFor(err error) int {
	var stepErr *update.InstallStepError
	switch {
	case errors.Is(err, context.Canceled):
		return exitcodes.Cancelled
	case errors.Is(err, update.ErrUpdateInProgress), errors.Is(err, process.ErrLocked):
		return exitcodes.PreconditionFailed
	case errors.Is(err, update.ErrFetchFailed), errors.Is(err, update.ErrDownloadFailed):
		return exitcodes.NetworkError
	case errors.Is(err, update.ErrAssetNotFound):
		return exitcodes.ValidationError
	case errors.As(err, &stepErr), errors.Is(err, update.ErrInstallStepFailed),
		errors.Is(err, update.ErrInstallStepTimedOut), errors.Is(err, update.ErrRelaunchFailed):
		return exitcodes.ProcessError
	default:
		return exitcodes.CodeForError(err)
	}
}
