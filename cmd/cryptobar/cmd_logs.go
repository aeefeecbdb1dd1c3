package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cmalf/cryptobar/internal/exitcodes"
	"github.com/cmalf/cryptobar/internal/ui"
)

func newLogsCmd() *cobra.Command {
	var (
		follow bool
		lines  int
		poll   bool
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the updater log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg()
			if err != nil {
				return err
			}
			return handleLogs(cmd.Context(), cmd.OutOrStdout(), ui.LogOptions{
				Path:   cfg.LogFile,
				Lines:  lines,
				Follow: follow,
				Poll:   poll,
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show (0 for all)")
	cmd.Flags().BoolVar(&poll, "poll", false, "Poll for changes instead of using file events")
	return cmd
}

func handleLogs(ctx context.Context, out io.Writer, opts ui.LogOptions) error {
	if opts.Lines < 0 {
		return exitcodes.InvalidArgsErrorf("--lines must not be negative")
	}
	err := ui.FollowLog(ctx, out, opts)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, os.ErrNotExist):
		return exitcodes.PreconditionErrorf("no log file at %s yet; run 'cryptobar update' first", opts.Path)
	default:
		return err
	}
}
