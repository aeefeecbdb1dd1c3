package update

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeExitError struct{ code int }

func (e *fakeExitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e *fakeExitError) ExitCode() int { return e.code }

// fakeRunner records commands and dispatches them by tool base name.
type fakeRunner struct {
	mu       sync.Mutex
	calls    [][]string
	handlers map[string]func(ctx context.Context, args []string) ([]byte, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	h := f.handlers[filepath.Base(name)]
	f.mu.Unlock()
	if h == nil {
		return nil, nil
	}
	return h(ctx, args)
}

func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = strings.Join(c, " ")
	}
	return out
}

// newImageRunner simulates hdiutil and ditto: attach places an app bundle
// at the mountpoint and ditto copies a marker file to the target.
func newImageRunner(t *testing.T) *fakeRunner {
	t.Helper()
	return &fakeRunner{handlers: map[string]func(context.Context, []string) ([]byte, error){
		"hdiutil": func(_ context.Context, args []string) ([]byte, error) {
			if args[0] == "attach" {
				app := filepath.Join(args[5], DefaultAppName)
				if err := os.MkdirAll(filepath.Join(app, "Contents"), 0o755); err != nil {
					return nil, err
				}
				return nil, os.WriteFile(filepath.Join(app, "Contents", "Info.plist"), []byte("new"), 0o644)
			}
			if args[0] == "detach" {
				return nil, os.RemoveAll(filepath.Join(args[1], DefaultAppName))
			}
			return nil, nil
		},
		"ditto": func(_ context.Context, args []string) ([]byte, error) {
			dst := args[2]
			if err := os.MkdirAll(filepath.Join(dst, "Contents"), 0o755); err != nil {
				return nil, err
			}
			data, err := os.ReadFile(filepath.Join(args[1], "Contents", "Info.plist"))
			if err != nil {
				return nil, err
			}
			return nil, os.WriteFile(filepath.Join(dst, "Contents", "Info.plist"), data, 0o644)
		},
	}}
}

func newTestInstaller(t *testing.T, runner CommandRunner) (*Installer, string, string) {
	t.Helper()
	installDir := t.TempDir()
	tempDir := t.TempDir()
	in := NewInstaller(InstallerConfig{InstallDir: installDir, TempDir: tempDir}, runner)
	in.newID = func() string { return "1234" }
	return in, installDir, tempDir
}

func TestInstall_Success(t *testing.T) {
	runner := newImageRunner(t)
	in, installDir, tempDir := newTestInstaller(t, runner)

	old := filepath.Join(installDir, DefaultAppName, "Contents")
	if err := os.MkdirAll(old, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(old, "stale"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	dest, err := in.Install(context.Background(), "/tmp/CryptoBar.dmg")
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	wantDest := filepath.Join(installDir, DefaultAppName)
	if dest != wantDest {
		t.Errorf("dest = %q, want %q", dest, wantDest)
	}
	if _, err := os.Stat(filepath.Join(dest, "Contents", "stale")); !os.IsNotExist(err) {
		t.Error("previous bundle contents were not removed")
	}
	data, err := os.ReadFile(filepath.Join(dest, "Contents", "Info.plist"))
	if err != nil || string(data) != "new" {
		t.Errorf("installed bundle content = %q, %v", data, err)
	}

	mount := filepath.Join(tempDir, "CryptoBarMount-1234")
	want := []string{
		"/usr/bin/hdiutil attach /tmp/CryptoBar.dmg -nobrowse -quiet -mountpoint " + mount,
		"/usr/bin/ditto -rsrc " + filepath.Join(mount, DefaultAppName) + " " + wantDest,
		"/usr/bin/xattr -dr com.apple.quarantine " + wantDest,
		"/usr/bin/hdiutil detach " + mount + " -quiet",
	}
	got := runner.commands()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("commands:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}

	if _, err := os.Stat(mount); !os.IsNotExist(err) {
		t.Error("mount directory was not removed after detach")
	}
}

func TestInstall_StepFailures(t *testing.T) {
	tests := []struct {
		name       string
		failTool   string
		failArg    string
		err        error
		wantStep   InstallStep
		wantCode   int
		wantDetach bool
	}{
		{name: "attach fails", failTool: "hdiutil", failArg: "attach", err: &fakeExitError{code: 1}, wantStep: StepAttach, wantCode: 1, wantDetach: false},
		{name: "copy fails", failTool: "ditto", err: &fakeExitError{code: 2}, wantStep: StepCopy, wantCode: 2, wantDetach: true},
		{name: "xattr fails", failTool: "xattr", err: &fakeExitError{code: 1}, wantStep: StepXattr, wantCode: 1, wantDetach: true},
		{name: "tool missing", failTool: "ditto", err: errors.New("executable file not found"), wantStep: StepCopy, wantCode: -1, wantDetach: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newImageRunner(t)
			inner := runner.handlers[tt.failTool]
			runner.handlers[tt.failTool] = func(ctx context.Context, args []string) ([]byte, error) {
				if tt.failArg == "" || args[0] == tt.failArg {
					return nil, tt.err
				}
				if inner != nil {
					return inner(ctx, args)
				}
				return nil, nil
			}
			in, _, _ := newTestInstaller(t, runner)

			dest, err := in.Install(context.Background(), "/tmp/CryptoBar.dmg")
			if err == nil {
				t.Fatal("Install() expected error")
			}
			if dest != "" {
				t.Errorf("dest = %q, want empty", dest)
			}
			if !errors.Is(err, ErrInstallStepFailed) {
				t.Errorf("error %v does not match ErrInstallStepFailed", err)
			}

			var stepErr *InstallStepError
			if !errors.As(err, &stepErr) {
				t.Fatalf("error %T is not *InstallStepError", err)
			}
			if stepErr.Step != tt.wantStep {
				t.Errorf("Step = %q, want %q", stepErr.Step, tt.wantStep)
			}
			if stepErr.ExitCode != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", stepErr.ExitCode, tt.wantCode)
			}

			cmds := runner.commands()
			detached := strings.Contains(cmds[len(cmds)-1], " detach ")
			if detached != tt.wantDetach {
				t.Errorf("detached = %v, want %v (commands: %v)", detached, tt.wantDetach, cmds)
			}
		})
	}
}

func TestInstall_MissingBundleDetaches(t *testing.T) {
	runner := &fakeRunner{}
	in, _, _ := newTestInstaller(t, runner)

	_, err := in.Install(context.Background(), "/tmp/Empty.dmg")
	var stepErr *InstallStepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepLocate {
		t.Fatalf("Install() error = %v, want locate step error", err)
	}

	cmds := runner.commands()
	if len(cmds) != 2 || !strings.Contains(cmds[1], "detach") {
		t.Errorf("commands = %v, want attach then detach", cmds)
	}
}

func TestInstall_StepTimeout(t *testing.T) {
	runner := newImageRunner(t)
	runner.handlers["xattr"] = func(ctx context.Context, _ []string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	in, _, _ := newTestInstaller(t, runner)
	in.cfg.StepTimeout = 50 * time.Millisecond

	_, err := in.Install(context.Background(), "/tmp/CryptoBar.dmg")
	if !errors.Is(err, ErrInstallStepTimedOut) {
		t.Fatalf("Install() error = %v, want ErrInstallStepTimedOut", err)
	}
	var stepErr *InstallStepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepXattr || stepErr.ExitCode != -1 {
		t.Errorf("step error = %+v", stepErr)
	}

	cmds := runner.commands()
	if !strings.Contains(cmds[len(cmds)-1], "detach") {
		t.Errorf("image not detached after timeout: %v", cmds)
	}
}

func TestInstall_CancelledDuringCopyStillDetaches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := newImageRunner(t)
	runner.handlers["ditto"] = func(ctx context.Context, _ []string) ([]byte, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	in, _, tempDir := newTestInstaller(t, runner)

	dest, err := in.Install(ctx, "/tmp/CryptoBar.dmg")
	if dest != "" {
		t.Errorf("dest = %q, want empty", dest)
	}
	if !errors.Is(err, ErrInstallStepFailed) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Install() error = %v, want ErrInstallStepFailed wrapping context.Canceled", err)
	}
	var stepErr *InstallStepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepCopy || stepErr.TimedOut {
		t.Errorf("step error = %+v", stepErr)
	}

	mount := filepath.Join(tempDir, "CryptoBarMount-1234")
	cmds := runner.commands()
	if last := cmds[len(cmds)-1]; last != "/usr/bin/hdiutil detach "+mount+" -quiet" {
		t.Errorf("image not detached after cancel: %v", cmds)
	}
	if _, err := os.Stat(mount); !os.IsNotExist(err) {
		t.Error("mount directory was not removed after detach")
	}
}

func TestInstall_DetachFailureIsReported(t *testing.T) {
	runner := newImageRunner(t)
	attach := runner.handlers["hdiutil"]
	runner.handlers["hdiutil"] = func(ctx context.Context, args []string) ([]byte, error) {
		if args[0] == "detach" {
			return nil, &fakeExitError{code: 16}
		}
		return attach(ctx, args)
	}
	in, _, _ := newTestInstaller(t, runner)

	dest, err := in.Install(context.Background(), "/tmp/CryptoBar.dmg")
	if dest != "" {
		t.Errorf("dest = %q, want empty", dest)
	}
	var stepErr *InstallStepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepDetach || stepErr.ExitCode != 16 {
		t.Fatalf("Install() error = %v, want detach step error", err)
	}
}

func TestInstall_DetachFailureCombinesWithStepFailure(t *testing.T) {
	runner := newImageRunner(t)
	attach := runner.handlers["hdiutil"]
	runner.handlers["hdiutil"] = func(ctx context.Context, args []string) ([]byte, error) {
		if args[0] == "detach" {
			return nil, &fakeExitError{code: 16}
		}
		return attach(ctx, args)
	}
	runner.handlers["ditto"] = func(context.Context, []string) ([]byte, error) {
		return nil, &fakeExitError{code: 1}
	}
	in, _, _ := newTestInstaller(t, runner)

	_, err := in.Install(context.Background(), "/tmp/CryptoBar.dmg")
	if err == nil {
		t.Fatal("Install() expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "copy") || !strings.Contains(msg, "detach") {
		t.Errorf("error = %q, want both copy and detach failures", msg)
	}
}

func TestInstallStepError_Error(t *testing.T) {
	tests := []struct {
		err  *InstallStepError
		want string
	}{
		{&InstallStepError{Step: StepAttach, ExitCode: 1}, "install step attach failed with exit code 1"},
		{&InstallStepError{Step: StepXattr, ExitCode: -1, TimedOut: true}, "install step xattr timed out"},
		{&InstallStepError{Step: StepLocate, ExitCode: -1, Err: errors.New("missing")}, "install step locate failed: missing"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
	if errors.Is(&InstallStepError{Step: StepCopy, ExitCode: 1}, ErrInstallStepTimedOut) {
		t.Error("non-timeout step error matched ErrInstallStepTimedOut")
	}
}

func TestBundleVersion(t *testing.T) {
	runner := &fakeRunner{handlers: map[string]func(context.Context, []string) ([]byte, error){
		"defaults": func(context.Context, []string) ([]byte, error) { return []byte("1.5.2\n"), nil },
	}}
	v, err := BundleVersion(context.Background(), runner, "/Applications/CryptoBar.app")
	if err != nil || v != "1.5.2" {
		t.Fatalf("BundleVersion() = %q, %v", v, err)
	}
	want := "/usr/bin/defaults read /Applications/CryptoBar.app/Contents/Info CFBundleShortVersionString"
	if got := runner.commands()[0]; got != want {
		t.Errorf("command = %q, want %q", got, want)
	}

	runner.handlers["defaults"] = func(context.Context, []string) ([]byte, error) { return nil, &fakeExitError{code: 1} }
	if _, err := BundleVersion(context.Background(), runner, "/Applications/CryptoBar.app"); err == nil {
		t.Error("BundleVersion() expected error")
	}
}
