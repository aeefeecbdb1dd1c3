package ui

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cmalf/cryptobar/internal/update"
)

const openCommand = "/usr/bin/open"

// Browser opens web pages with the system handler.
type Browser struct {
	Runner update.CommandRunner
	// Disabled makes OpenURL a no-op, for headless runs.
	Disabled bool
}

// OpenURL implements update.BrowserOpener. Only http and https URLs are opened.
func (b Browser) OpenURL(ctx context.Context, rawURL string) error {
	if b.Disabled {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("refusing to open %q", rawURL)
	}
	runner := b.Runner
	if runner == nil {
		runner = update.ExecRunner{}
	}
	_, err = runner.Run(ctx, openCommand, u.String())
	return err
}
