package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cmalf/cryptobar/internal/exitcodes"
	"github.com/cmalf/cryptobar/internal/schedule"
	"github.com/cmalf/cryptobar/internal/ui"
	"github.com/cmalf/cryptobar/internal/update"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage the launchd agent that runs 'cryptobar auto'",
	}

	var every time.Duration
	install := &cobra.Command{
		Use:   "install",
		Short: "Run the automatic update check at login and periodically",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg()
			if err != nil {
				return err
			}
			agent, err := schedule.NewAgent(update.ExecRunner{})
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			return scheduleInstall(cmd.Context(), agent, getPrinter(cmd.OutOrStdout()), schedule.Options{
				Executable: exe,
				HomeDir:    cfg.HomeDir,
				LogPath:    filepath.Join(filepath.Dir(cfg.LogFile), "auto.log"),
				Interval:   every,
			})
		},
	}
	install.Flags().DurationVar(&every, "every", schedule.DefaultInterval, "How often launchd starts the check")

	cmd.AddCommand(install,
		&cobra.Command{
			Use:   "remove",
			Short: "Remove the launchd agent",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				agent, err := schedule.NewAgent(update.ExecRunner{})
				if err != nil {
					return err
				}
				return scheduleRemove(cmd.Context(), agent, getPrinter(cmd.OutOrStdout()))
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show whether the launchd agent is installed",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				agent, err := schedule.NewAgent(update.ExecRunner{})
				if err != nil {
					return err
				}
				scheduleStatus(agent, getPrinter(cmd.OutOrStdout()))
				return nil
			},
		},
	)
	return cmd
}

func scheduleInstall(ctx context.Context, agent *schedule.Agent, p ui.Printer, opts schedule.Options) error {
	if opts.Interval < 0 || (opts.Interval > 0 && opts.Interval < time.Minute) {
		return exitcodes.InvalidArgsErrorf("--every must be at least 1m")
	}
	changed, err := agent.Install(ctx, opts)
	if err != nil {
		return exitcodes.WrapError(exitcodes.ProcessError, "install launch agent", err)
	}
	if p.Data(agent.Status()) {
		return nil
	}
	if !changed {
		p.Info("Launch agent already installed")
		return nil
	}
	p.Success("Automatic update checks scheduled")
	p.KeyValueLine("Agent", agent.PlistPath, "dim")
	return nil
}

func scheduleRemove(ctx context.Context, agent *schedule.Agent, p ui.Printer) error {
	removed, err := agent.Uninstall(ctx)
	if err != nil {
		return exitcodes.WrapError(exitcodes.ProcessError, "remove launch agent", err)
	}
	if p.Data(agent.Status()) {
		return nil
	}
	if !removed {
		p.Info("Launch agent not installed")
		return nil
	}
	p.Success("Launch agent removed")
	return nil
}

func scheduleStatus(agent *schedule.Agent, p ui.Printer) {
	st := agent.Status()
	if p.Data(st) {
		return
	}
	state := "not installed"
	if st.Installed {
		state = "installed"
	}
	p.KeyValueLine("Launch agent", state, "")
	p.KeyValueLine("Plist", st.PlistPath, "dim")
}
