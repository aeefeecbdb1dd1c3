package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cmalf/cryptobar/internal/exitcodes"
	"github.com/cmalf/cryptobar/internal/settings"
	"github.com/cmalf/cryptobar/internal/ui"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change update preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show update preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg()
			if err != nil {
				return err
			}
			return showSettings(settings.NewStore(cfg.SettingsPath()), getPrinter(cmd.OutOrStdout()))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "set <key> <value>",
		Short:     "Change one preference (auto_check, auto_download, interval)",
		Args:      cobra.ExactArgs(2),
		ValidArgs: settings.Keys,
		Example: `  cryptobar settings set interval Weekly
  cryptobar settings set auto_download true`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg()
			if err != nil {
				return err
			}
			return setSetting(settings.NewStore(cfg.SettingsPath()), getPrinter(cmd.OutOrStdout()), args[0], args[1])
		},
	})
	return cmd
}

func showSettings(store *settings.Store, p ui.Printer) error {
	st, err := store.Load()
	if err != nil {
		return err
	}
	if p.Data(st) {
		return nil
	}

	last := "never"
	if t := st.LastCheckTime(); !t.IsZero() {
		last = t.Local().Format("Jan 02 2006, 15:04 MST")
	}
	p.Header("Update settings")
	p.KeyValueLine("auto_check", strconv.FormatBool(st.AutoCheck), "")
	p.KeyValueLine("auto_download", strconv.FormatBool(st.AutoDownload), "")
	p.KeyValueLine("interval", string(st.Interval), "")
	p.KeyValueLine("last_check", last, "dim")
	p.KeyValueLine("file", store.Path(), "dim")
	return nil
}

func setSetting(store *settings.Store, p ui.Printer, key, value string) error {
	var invalid error
	st, err := store.Update(func(s *settings.Settings) error {
		invalid = s.Set(key, value)
		return invalid
	})
	if invalid != nil {
		return exitcodes.WrapError(exitcodes.InvalidArgs, "settings", invalid)
	}
	if err != nil {
		return err
	}
	if !p.Data(st) {
		p.Success(fmt.Sprintf("%s updated", key))
	}
	return nil
}
