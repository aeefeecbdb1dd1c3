package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/cmalf/cryptobar/internal/exitcodes"
	"github.com/cmalf/cryptobar/internal/process"
	"github.com/cmalf/cryptobar/internal/settings"
	"github.com/cmalf/cryptobar/internal/ui"
	"github.com/cmalf/cryptobar/internal/update"
)

func TestRunUpdate_UpToDate(t *testing.T) {
	env := newTestEnv(t, "text")
	env.releases.release = testRelease("v1.2.0")

	if err := runUpdate(context.Background(), env.d, updateOpts{}); err != nil {
		t.Fatalf("runUpdate: %v", err)
	}

	out := env.out.String()
	if !strings.Contains(out, "You're up to date") {
		t.Errorf("output missing up-to-date notice:\n%s", out)
	}
	if len(env.downloader.urls) != 0 {
		t.Error("nothing should be downloaded")
	}
	st, err := env.d.Settings.Load()
	if err != nil {
		t.Fatal(err)
	}
	if st.LastCheck == 0 {
		t.Error("check time should be recorded")
	}
	if _, err := os.Stat(env.d.LockPath); !os.IsNotExist(err) {
		t.Error("lock file should be removed after the run")
	}
}

func TestRunUpdate_WithoutAutoDownloadOpensReleasePage(t *testing.T) {
	env := newTestEnv(t, "text")

	if err := runUpdate(context.Background(), env.d, updateOpts{}); err != nil {
		t.Fatalf("runUpdate: %v", err)
	}
	if len(env.browser.urls) != 1 || env.browser.urls[0] != env.releases.release.HTMLURL {
		t.Errorf("browser urls = %v", env.browser.urls)
	}
	if len(env.downloader.urls) != 0 {
		t.Error("nothing should be downloaded")
	}
	if !strings.Contains(env.out.String(), "Update available") {
		t.Errorf("output = %s", env.out.String())
	}
}

func TestRunUpdate_AutoDownloadInstallsAndRelaunches(t *testing.T) {
	env := newTestEnv(t, "text")

	if err := runUpdate(context.Background(), env.d, updateOpts{autoDownload: true}); err != nil {
		t.Fatalf("runUpdate: %v", err)
	}

	if len(env.downloader.urls) != 1 || env.downloader.urls[0] != "https://example.com/CryptoBar.dmg" {
		t.Errorf("downloaded %v", env.downloader.urls)
	}
	if len(env.installer.images) != 1 || env.installer.images[0] != env.downloader.path {
		t.Errorf("installed %v", env.installer.images)
	}
	if got := env.relauncher.calls(); len(got) != 1 || got[0] != env.d.Cfg.AppPath() {
		t.Errorf("relaunched %v", got)
	}

	out := env.out.String()
	for _, want := range []string{"Checking for updates", "Downloading update", "Installing", "Update installed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if len(env.browser.urls) != 0 {
		t.Error("release page should not open when installing")
	}
}

func TestRunUpdate_AutoDownloadFromSettings(t *testing.T) {
	env := newTestEnv(t, "text")
	if _, err := env.d.Settings.Update(func(s *settings.Settings) error {
		s.AutoDownload = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := runUpdate(context.Background(), env.d, updateOpts{}); err != nil {
		t.Fatalf("runUpdate: %v", err)
	}
	if len(env.installer.images) != 1 {
		t.Error("settings should enable the install")
	}
}

func TestRunUpdate_NoRelaunch(t *testing.T) {
	env := newTestEnv(t, "text")

	if err := runUpdate(context.Background(), env.d, updateOpts{autoDownload: true, noRelaunch: true}); err != nil {
		t.Fatalf("runUpdate: %v", err)
	}
	if len(env.installer.images) != 1 {
		t.Error("update should be installed")
	}
	if got := env.relauncher.calls(); len(got) != 0 {
		t.Errorf("relaunched %v", got)
	}
}

func TestRunUpdate_Failures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(env *testEnv)
		wantCode int
		wantText string
	}{
		{
			name:     "fetch failed",
			setup:    func(env *testEnv) { env.releases.release, env.releases.err = nil, errMock },
			wantCode: exitcodes.NetworkError,
			wantText: "Could not check for updates",
		},
		{
			name: "no installer asset",
			setup: func(env *testEnv) {
				env.releases.release.Assets = env.releases.release.Assets[:1]
			},
			wantCode: exitcodes.ValidationError,
			wantText: "has no installer",
		},
		{
			name:     "download failed",
			setup:    func(env *testEnv) { env.downloader.err = errMock },
			wantCode: exitcodes.NetworkError,
			wantText: "Downloading the update failed",
		},
		{
			name: "install step failed",
			setup: func(env *testEnv) {
				env.installer.err = &update.InstallStepError{Step: update.StepCopy, ExitCode: 1, Err: errMock}
			},
			wantCode: exitcodes.ProcessError,
			wantText: "Installing the update failed",
		},
		{
			name:     "relaunch failed",
			setup:    func(env *testEnv) { env.relauncher.err = errMock },
			wantCode: exitcodes.ProcessError,
			wantText: "could not be relaunched",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "text")
			tt.setup(env)

			err := runUpdate(context.Background(), env.d, updateOpts{autoDownload: true})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := exitcodes.CodeForError(err); got != tt.wantCode {
				t.Errorf("exit code = %d, want %d (err %v)", got, tt.wantCode, err)
			}
			var se silentErr
			if !errors.As(err, &se) {
				t.Error("text mode errors should be reported already")
			}
			if out := env.out.String(); !strings.Contains(out, tt.wantText) {
				t.Errorf("output missing %q:\n%s", tt.wantText, out)
			}
		})
	}
}

func TestRunUpdate_Locked(t *testing.T) {
	env := newTestEnv(t, "text")
	// the parent process is alive and is not us
	if err := os.WriteFile(env.d.LockPath, []byte(strconv.Itoa(os.Getppid())), 0o644); err != nil {
		t.Fatal(err)
	}

	err := runUpdate(context.Background(), env.d, updateOpts{})
	if !errors.Is(err, process.ErrLocked) {
		t.Fatalf("err = %v, want ErrLocked", err)
	}
	if got := exitcodes.CodeForError(err); got != exitcodes.PreconditionFailed {
		t.Errorf("exit code = %d", got)
	}
	if env.releases.calls != 0 {
		t.Error("no check should run while locked")
	}
}

func TestRunUpdate_CheckOnlyJSON(t *testing.T) {
	env := newTestEnv(t, "json")

	if err := runUpdate(context.Background(), env.d, updateOpts{checkOnly: true}); err != nil {
		t.Fatalf("runUpdate: %v", err)
	}

	var report updateReport
	if err := json.Unmarshal([]byte(env.out.String()), &report); err != nil {
		t.Fatalf("decode %q: %v", env.out.String(), err)
	}
	want := updateReport{
		CurrentVersion:  "1.2.0",
		LatestVersion:   "1.3.0",
		UpdateAvailable: true,
		ReleaseURL:      env.releases.release.HTMLURL,
		Installer:       "CryptoBar.dmg",
	}
	if report != want {
		t.Errorf("report = %+v, want %+v", report, want)
	}
	if len(env.downloader.urls) != 0 || len(env.browser.urls) != 0 {
		t.Error("check only must not download or open the browser")
	}
	if st, _ := env.d.Settings.Load(); st.LastCheck == 0 {
		t.Error("check time should be recorded")
	}
}

func TestRunUpdate_CheckOnlyText(t *testing.T) {
	env := newTestEnv(t, "text")
	env.releases.release = testRelease("1.2")

	if err := runUpdate(context.Background(), env.d, updateOpts{checkOnly: true}); err != nil {
		t.Fatalf("runUpdate: %v", err)
	}
	if !strings.Contains(env.out.String(), "Already up to date (1.2.0)") {
		t.Errorf("output = %s", env.out.String())
	}
}

func TestCurrentVersionFallbacks(t *testing.T) {
	env := newTestEnv(t, "text")
	ctx := context.Background()

	if got := env.d.currentVersion(ctx); got != "1.2.0" {
		t.Errorf("configured version: got %q", got)
	}
	env.d.Cfg.CurrentVersion = ""
	if got := env.d.currentVersion(ctx); got != "0.0.1" {
		t.Errorf("build version: got %q", got)
	}
	env.d.Runner = runnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("2.0.1\n"), nil
	})
	if got := env.d.currentVersion(ctx); got != "2.0.1" {
		t.Errorf("bundle version: got %q", got)
	}
}

type runnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func (f runnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{context.Canceled, exitcodes.Cancelled},
		{update.ErrUpdateInProgress, exitcodes.PreconditionFailed},
		{fmt.Errorf("x: %w", process.ErrLocked), exitcodes.PreconditionFailed},
		{fmt.Errorf("%w: boom", update.ErrFetchFailed), exitcodes.NetworkError},
		{update.ErrDownloadFailed, exitcodes.NetworkError},
		{update.ErrAssetNotFound, exitcodes.ValidationError},
		{&update.InstallStepError{Step: update.StepAttach}, exitcodes.ProcessError},
		{update.ErrRelaunchFailed, exitcodes.ProcessError},
		{errMock, exitcodes.GeneralError},
	}
	for _, tt := range tests {
		if got := exitCodeFor(tt.err); got != tt.want {
			t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRenderStates(t *testing.T) {
	out := &syncBuffer{}
	p := ui.NewPrinterTo("text", out, plainColors())

	states := make(chan update.State, 8)
	for _, s := range []update.State{
		update.Idle{},
		update.Checking{},
		update.Downloading{Fraction: 0},
		update.Downloading{Fraction: 0.5},
		update.Downloading{Fraction: 1},
		update.Installing{},
		update.Done{Message: "installed v1.3.0"},
	} {
		states <- s
	}
	close(states)
	renderStates(states, p, out)

	got := out.String()
	for _, want := range []string{"Checking for updates", "Downloading update", "Installing"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Count(got, "Downloading update") != 1 {
		t.Error("download header should print once")
	}
}

func TestRenderStates_StructuredIsSilent(t *testing.T) {
	out := &syncBuffer{}
	states := make(chan update.State, 2)
	states <- update.Checking{}
	states <- update.Installing{}
	close(states)
	renderStates(states, ui.NewPrinterTo("json", out, plainColors()), out)
	if out.String() != "" {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestRunUpdate_CheckOnlyListsAssets(t *testing.T) {
	env := newTestEnv(t, "text")
	env.releases.release.Assets[1].Size = 12 << 20

	if err := runUpdate(context.Background(), env.d, updateOpts{checkOnly: true}); err != nil {
		t.Fatalf("runUpdate: %v", err)
	}

	out := env.out.String()
	for _, want := range []string{"Update available: 1.2.0 → 1.3.0", "ASSET", "CryptoBar.zip", "installer"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAssetTable(t *testing.T) {
	assets := []update.Asset{
		{Name: "CryptoBar.dmg", Size: 2048},
		{Name: "notes.txt"},
	}
	lines := strings.Split(strings.TrimSpace(assetTable(plainColors(), assets, "CryptoBar.dmg")), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines: %q", len(lines), lines)
	}
	if !strings.Contains(lines[2], "installer") || strings.Contains(lines[3], "installer") {
		t.Errorf("installer mark misplaced: %q", lines)
	}
	if !strings.Contains(lines[3], "-") {
		t.Errorf("unknown size should show '-': %q", lines[3])
	}
}

func TestReleaseTerminalOnExit(t *testing.T) {
	env := newTestEnv(t, "text")
	var order []string
	env.d.onExit(func() { order = append(order, "earlier") })

	hook := releaseTerminalOnExit(env.d, func() { order = append(order, "reset") })
	hook(func() { order = append(order, "stop") })
	if len(order) != 0 {
		t.Fatalf("hook ran before exit: %v", order)
	}

	env.d.runCleanup()
	if got := strings.Join(order, ","); got != "stop,reset,earlier" {
		t.Errorf("cleanup order = %s, want stop,reset,earlier", got)
	}
}
