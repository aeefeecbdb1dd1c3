package update

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/cmalf/cryptobar/internal/logger"
)

const (
	DefaultAppName     = "CryptoBar.app"
	DefaultInstallDir  = "/Applications"
	DefaultStepTimeout = 5 * time.Minute

	defaultHdiutil = "/usr/bin/hdiutil"
	defaultDitto   = "/usr/bin/ditto"
	defaultXattr   = "/usr/bin/xattr"

	quarantineAttr = "com.apple.quarantine"
)

// InstallerConfig locates the bundle and the tools used to install it.
type InstallerConfig struct {
	AppName     string
	InstallDir  string
	TempDir     string
	StepTimeout time.Duration
	HdiutilPath string
	DittoPath   string
	XattrPath   string
}

func (c InstallerConfig) withDefaults() InstallerConfig {
	if c.AppName == "" {
		c.AppName = DefaultAppName
	}
	if c.InstallDir == "" {
		c.InstallDir = DefaultInstallDir
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = DefaultStepTimeout
	}
	if c.HdiutilPath == "" {
		c.HdiutilPath = defaultHdiutil
	}
	if c.DittoPath == "" {
		c.DittoPath = defaultDitto
	}
	if c.XattrPath == "" {
		c.XattrPath = defaultXattr
	}
	return c
}

// Installer copies the application bundle out of a disk image into the
// install directory.
type Installer struct {
	cfg    InstallerConfig
	runner CommandRunner
	newID  func() string
}

// NewInstaller returns an Installer. A nil runner executes real processes.
func NewInstaller(cfg InstallerConfig, runner CommandRunner) *Installer {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Installer{
		cfg:    cfg.withDefaults(),
		runner: runner,
		newID:  uuid.NewString,
	}
}

// AppPath is where the bundle gets installed.
func (in *Installer) AppPath() string {
	return filepath.Join(in.cfg.InstallDir, in.cfg.AppName)
}

// Install mounts imagePath, replaces the installed bundle with the one in
// the image, clears the quarantine attribute and detaches the image. Once
// the image is attached it is detached on every return path. Failures are
// *InstallStepError values, combined with the detach failure if both occur.
func (in *Installer) Install(ctx context.Context, imagePath string) (dest string, err error) {
	ctx = logger.WithName(ctx, "installer")

	prefix := strings.TrimSuffix(in.cfg.AppName, filepath.Ext(in.cfg.AppName))
	mountDir := filepath.Join(in.cfg.TempDir, prefix+"Mount-"+in.newID())
	if err := os.MkdirAll(mountDir, 0o755); err != nil {
		return "", &InstallStepError{Step: StepMountDir, ExitCode: -1, Err: err}
	}

	if err := in.run(ctx, StepAttach, in.cfg.HdiutilPath,
		"attach", imagePath, "-nobrowse", "-quiet", "-mountpoint", mountDir); err != nil {
		_ = os.Remove(mountDir)
		return "", err
	}
	logger.InfoKV(ctx, "Disk image attached", "image", imagePath, "mountpoint", mountDir)

	defer func() {
		// Detach even when the caller's context is already cancelled.
		derr := in.run(context.WithoutCancel(ctx), StepDetach, in.cfg.HdiutilPath, "detach", mountDir, "-quiet")
		if derr != nil {
			logger.ErrorKV(ctx, "Failed to detach disk image", "mountpoint", mountDir, "error", derr)
			if err == nil {
				err = derr
			} else {
				err = multierror.Append(err, derr)
			}
			dest = ""
			return
		}
		_ = os.Remove(mountDir)
	}()

	src := filepath.Join(mountDir, in.cfg.AppName)
	if _, serr := os.Stat(src); serr != nil {
		return "", &InstallStepError{Step: StepLocate, ExitCode: -1, Err: serr}
	}

	target := in.AppPath()
	if rerr := os.RemoveAll(target); rerr != nil {
		return "", &InstallStepError{Step: StepRemove, ExitCode: -1, Err: rerr}
	}

	if err := in.run(ctx, StepCopy, in.cfg.DittoPath, "-rsrc", src, target); err != nil {
		return "", err
	}
	if err := in.run(ctx, StepXattr, in.cfg.XattrPath, "-dr", quarantineAttr, target); err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Application installed", "path", target)
	return target, nil
}

func (in *Installer) run(ctx context.Context, step InstallStep, name string, args ...string) error {
	stepCtx, cancel := context.WithTimeout(ctx, in.cfg.StepTimeout)
	defer cancel()

	logger.DebugKV(ctx, "Running install step", "step", step, "cmd", name, "args", args)

	_, err := in.runner.Run(stepCtx, name, args...)
	if err == nil {
		return nil
	}

	if errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return &InstallStepError{Step: step, ExitCode: -1, TimedOut: true, Err: err}
	}

	var ec exitCoder
	if errors.As(err, &ec) && ec.ExitCode() >= 0 {
		return &InstallStepError{Step: step, ExitCode: ec.ExitCode(), Err: err}
	}
	return &InstallStepError{Step: step, ExitCode: -1, Err: fmt.Errorf("%s: %w", filepath.Base(name), err)}
}
