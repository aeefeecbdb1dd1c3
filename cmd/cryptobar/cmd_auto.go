package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cmalf/cryptobar/internal/logger"
)

func newAutoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auto",
		Short: "Run the scheduled update check if it is due",
		Long: `Run an update when automatic checks are enabled and the configured interval
has passed since the last check. Meant to be called at login or from launchd.`,
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
			return runAuto(cmd.Context(), d, time.Now())
		},
	}
}

type skipReport struct {
	Ran    bool   `json:"ran" yaml:"ran"`
	Reason string `json:"reason" yaml:"reason"`
}

func runAuto(ctx context.Context, d *Deps, now time.Time) error {
	st, err := d.Settings.Load()
	if err != nil {
		return err
	}

	var reason string
	switch {
	case !st.AutoCheck:
		reason = "automatic update checks are disabled"
	case !st.IsDue(now):
		reason = fmt.Sprintf("next %s check not due yet (last check %s)",
			st.Interval, st.LastCheckTime().Format(time.RFC3339))
	}
	if reason != "" {
		logger.InfoKV(ctx, "Skipping automatic update check", "reason", reason)
		if !d.Printer.Data(skipReport{Reason: reason}) {
			d.Printer.Info("Skipped: " + reason)
		}
		return nil
	}
	return runUpdate(ctx, d, updateOpts{})
}
