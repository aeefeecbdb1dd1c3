package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cmalf/cryptobar/internal/config"
	"github.com/cmalf/cryptobar/internal/exitcodes"
	"github.com/cmalf/cryptobar/internal/metrics"
	"github.com/cmalf/cryptobar/internal/process"
	"github.com/cmalf/cryptobar/internal/ui"
	"github.com/cmalf/cryptobar/internal/update"
)

const (
	minFreeBytes   = 500 << 20
	doctorAPITimer = 10 * time.Second
)

// requiredTools are the programs the install and relaunch steps execute.
var requiredTools = []string{
	"/usr/bin/hdiutil",
	"/usr/bin/ditto",
	"/usr/bin/xattr",
	"/usr/bin/open",
	"/usr/bin/defaults",
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks for the updater",
		Long: `Checks everything an update depends on:
- macOS tools used to mount, copy and relaunch
- the installed app and its version
- write access and free space
- reachability of the GitHub release API`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg()
			if err != nil {
				return err
			}
			d := newDeps(cfg, cmd.OutOrStdout())
			return runDoctor(cmd.Context(), d, defaultDoctorEnv())
		},
	}
}

type checkResult struct {
	Name    string   `json:"name" yaml:"name"`
	Status  string   `json:"status" yaml:"status"` // pass, warn or fail
	Message string   `json:"message" yaml:"message"`
	Details []string `json:"details,omitempty" yaml:"details,omitempty"`
}

// doctorEnv holds the host lookups used by the checks.
type doctorEnv struct {
	stat      func(name string) (os.FileInfo, error)
	freeSpace func(path string) (uint64, error)
	lockPID   func(path string) (int, bool)
}

func defaultDoctorEnv() doctorEnv {
	return doctorEnv{
		stat:      os.Stat,
		freeSpace: metrics.DiskFree,
		lockPID:   process.ReadPID,
	}
}

func runDoctor(ctx context.Context, d *Deps, env doctorEnv) error {
	results := []checkResult{
		checkTools(env),
		checkInstalledApp(ctx, d, env),
		checkWritable(d.Cfg.InstallDir),
		checkDiskSpace(d.Cfg, env),
		checkMemory(ctx, d.Collector),
		checkLock(d.LockPath, env),
		checkReleaseAPI(ctx, d),
	}

	p := d.Printer
	passed, warned, failed := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case "pass":
			passed++
		case "warn":
			warned++
		case "fail":
			failed++
		}
	}

	if !p.Data(map[string]any{"checks": results, "passed": passed, "warnings": warned, "failed": failed}) {
		c := p.Colors
		w := p.Writer()
		fmt.Fprintln(w, c.Header(" CRYPTOBAR UPDATER CHECK "))
		fmt.Fprintln(w)
		for _, r := range results {
			printCheck(w, r, c)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, c.Separator(60))
		summary := fmt.Sprintf("Checks: %d passed, %d warnings, %d failed", passed, warned, failed)
		switch {
		case failed > 0:
			fmt.Fprintln(w, c.Error(c.StatusIcon("failed")+" "+summary))
		case warned > 0:
			fmt.Fprintln(w, c.Warning(c.StatusIcon("warning")+" "+summary))
		default:
			fmt.Fprintln(w, c.Success(c.StatusIcon("ok")+" "+summary))
		}
	}

	if failed > 0 {
		return silentErr{err: exitcodes.NewErrorf(exitcodes.ValidationError, "%d checks failed", failed)}
	}
	return nil
}

func printCheck(w io.Writer, r checkResult, c *ui.ColorConfig) {
	var icon, msg string
	switch r.Status {
	case "pass":
		icon, msg = c.StatusIcon("ok"), c.Success(r.Message)
	case "warn":
		icon, msg = c.StatusIcon("warning"), c.Warning(r.Message)
	default:
		icon, msg = c.StatusIcon("failed"), c.Error(r.Message)
	}
	fmt.Fprintf(w, "%s %s: %s\n", icon, c.Label(r.Name), msg)
	for _, detail := range r.Details {
		fmt.Fprintf(w, "  %s %s\n", c.Description("→"), detail)
	}
}

func checkTools(env doctorEnv) checkResult {
	r := checkResult{Name: "System tools"}
	var missing []string
	for _, tool := range requiredTools {
		if _, err := env.stat(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		r.Status = "fail"
		r.Message = fmt.Sprintf("%d of %d tools missing", len(missing), len(requiredTools))
		r.Details = append(missing, "Updates can only be installed on macOS")
		return r
	}
	r.Status = "pass"
	r.Message = "hdiutil, ditto, xattr, open and defaults available"
	return r
}

func checkInstalledApp(ctx context.Context, d *Deps, env doctorEnv) checkResult {
	r := checkResult{Name: "Installed app"}
	app := d.Cfg.AppPath()
	if _, err := env.stat(app); err != nil {
		r.Status = "warn"
		r.Message = fmt.Sprintf("%s not found", app)
		r.Details = []string{"The first update installs it; check app-name and install-dir otherwise"}
		return r
	}
	r.Status = "pass"
	r.Message = fmt.Sprintf("%s (version %s)", app, d.currentVersion(ctx))
	return r
}

func checkWritable(dir string) checkResult {
	r := checkResult{Name: "Install directory"}
	f, err := os.CreateTemp(dir, ".cryptobar-check-*")
	if err != nil {
		r.Status = "fail"
		r.Message = fmt.Sprintf("Cannot write to %s", dir)
		r.Details = []string{fmt.Sprintf("Error: %v", err), "Run as a user allowed to modify " + dir}
		return r
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	r.Status = "pass"
	r.Message = fmt.Sprintf("%s is writable", dir)
	return r
}

func checkDiskSpace(cfg config.Config, env doctorEnv) checkResult {
	r := checkResult{Name: "Disk space"}
	// the download dir may not exist yet
	path := cfg.DownloadDir
	for path != filepath.Dir(path) {
		if _, err := env.stat(path); err == nil {
			break
		}
		path = filepath.Dir(path)
	}
	free, err := env.freeSpace(path)
	if err != nil {
		r.Status = "warn"
		r.Message = "Could not check free space"
		r.Details = []string{fmt.Sprintf("Error: %v", err)}
		return r
	}
	r.Message = fmt.Sprintf("%s free at %s", ui.FormatBytes(int64(free)), path)
	if free < minFreeBytes {
		r.Status = "warn"
		r.Details = []string{fmt.Sprintf("At least %s is recommended for downloading an update", ui.FormatBytes(minFreeBytes))}
		return r
	}
	r.Status = "pass"
	return r
}

func checkMemory(ctx context.Context, c *metrics.Collector) checkResult {
	r := checkResult{Name: "Memory"}
	if c == nil {
		r.Status = "warn"
		r.Message = "Not checked"
		return r
	}
	snap := c.Collect(ctx)
	if snap.System.MemTotal == 0 {
		r.Status = "warn"
		r.Message = "Could not read memory usage"
		return r
	}
	used := float64(snap.System.MemUsed) / float64(snap.System.MemTotal)
	r.Status = "pass"
	r.Message = fmt.Sprintf("%.0f%% of %s in use", used*100, ui.FormatBytes(int64(snap.System.MemTotal)))
	return r
}

func checkLock(path string, env doctorEnv) checkResult {
	r := checkResult{Name: "Update lock"}
	if path == "" {
		r.Status = "pass"
		r.Message = "Disabled"
		return r
	}
	if pid, ok := env.lockPID(path); ok {
		r.Status = "warn"
		r.Message = fmt.Sprintf("An update is running (pid %d)", pid)
		return r
	}
	r.Status = "pass"
	r.Message = "No update running"
	return r
}

func checkReleaseAPI(ctx context.Context, d *Deps) checkResult {
	r := checkResult{Name: "Release API"}
	ctx, cancel := context.WithTimeout(ctx, doctorAPITimer)
	defer cancel()

	release, err := d.Releases.FetchLatestRelease(ctx, d.Cfg.Owner, d.Cfg.Repo)
	if err != nil {
		r.Status = "fail"
		r.Message = fmt.Sprintf("Cannot fetch the latest release of %s/%s", d.Cfg.Owner, d.Cfg.Repo)
		r.Details = []string{fmt.Sprintf("Error: %v", err), "Check the network connection and api-base-url"}
		return r
	}
	asset, ok := update.PickInstaller(release)
	if !ok {
		r.Status = "warn"
		r.Message = fmt.Sprintf("Latest release %s has no .dmg installer", release.TagName)
		return r
	}
	r.Status = "pass"
	r.Message = fmt.Sprintf("Latest release %s (%s)", release.TagName, asset.Name)
	return r
}
