package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cmalf/cryptobar/internal/config"
	"github.com/cmalf/cryptobar/internal/exitcodes"
	"github.com/cmalf/cryptobar/internal/logger"
	"github.com/cmalf/cryptobar/internal/ui"
)

// Version information, set via -ldflags during build.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var (
	flagHome           string
	flagOutput         string
	flagLogLevel       string
	flagQuiet          bool
	flagNoColor        bool
	flagNoEmoji        bool
	flagNonInteractive bool
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cryptobar",
		Short:         "CryptoBar updater",
		Long:          "Check for, download and install CryptoBar updates from GitHub releases.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch flagOutput {
			case "text", "json", "yaml":
			default:
				return exitcodes.InvalidArgsErrorf("invalid --output %q (use text|json|yaml)", flagOutput)
			}
			ui.InitGlobal(ui.Config{
				NoColor:        flagNoColor,
				NoEmoji:        flagNoEmoji,
				NonInteractive: flagNonInteractive,
				Quiet:          flagQuiet,
			})
			// lipgloss reads NO_COLOR
			if flagNoColor {
				_ = os.Setenv("NO_COLOR", "1")
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flagHome, "home", "", "Updater home directory (overrides CRYPTOBAR_HOME)")
	pf.StringVarP(&flagOutput, "output", "o", "text", "Output format: text|json|yaml")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "Minimal output")
	pf.BoolVar(&flagNoColor, "no-color", false, "Disable ANSI colors")
	pf.BoolVar(&flagNoEmoji, "no-emoji", false, "Disable emoji output")
	pf.BoolVar(&flagNonInteractive, "non-interactive", false, "Never prompt or open a browser")

	cmd.AddCommand(
		newUpdateCmd(),
		newAutoCmd(),
		newScheduleCmd(),
		newSettingsCmd(),
		newLogsCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)
	cmd.AddCommand(newCompletionCmd(cmd))
	return cmd
}

// Execute runs the root command with a context cancelled on SIGINT or
// SIGTERM and exits with the code mapped from the returned error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		reportError(os.Stderr, err)
		os.Exit(exitcodes.CodeForError(err))
	}
}

func reportError(w io.Writer, err error) {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(w, "Interrupted")
		return
	}
	var se silentErr
	if errors.As(err, &se) {
		return
	}
	if flagOutput == "json" || flagOutput == "yaml" {
		ui.NewPrinterTo(flagOutput, w, nil).Data(map[string]any{"ok": false, "error": err.Error()})
		return
	}
	fmt.Fprintln(w, ui.NewColorConfigFromGlobal().Error(err.Error()))
}

// silentErr carries an exit code for failures already shown to the user.
type silentErr struct {
	err error
}

func (e silentErr) Error() string { return e.err.Error() }
func (e silentErr) Unwrap() error { return e.err }

// loadCfg loads config.yaml and env overrides, then applies persistent flags.
func loadCfg() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if flagHome != "" {
		cfg, err = config.LoadFrom(flagHome)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, exitcodes.WrapError(exitcodes.InvalidArgs, "invalid configuration", err)
	}
	if flagLogLevel != "" {
		if _, ok := logger.ParseLogLevel(flagLogLevel); !ok {
			return cfg, exitcodes.InvalidArgsErrorf("invalid --log-level %q", flagLogLevel)
		}
		cfg.LogLevel = flagLogLevel
	}
	return cfg, nil
}

func getPrinter(out io.Writer) ui.Printer {
	return ui.NewPrinterTo(flagOutput, out, ui.NewColorConfigFromGlobal())
}
