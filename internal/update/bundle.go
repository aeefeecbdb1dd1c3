package update

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

const defaultDefaults = "/usr/bin/defaults"

// BundleVersion reads CFBundleShortVersionString from the Info.plist of the
// bundle at appPath.
func BundleVersion(ctx context.Context, runner CommandRunner, appPath string) (string, error) {
	if runner == nil {
		runner = ExecRunner{}
	}
	// defaults expects the plist path without its extension.
	info := filepath.Join(appPath, "Contents", "Info")
	out, err := runner.Run(ctx, defaultDefaults, "read", info, "CFBundleShortVersionString")
	if err != nil {
		return "", fmt.Errorf("read bundle version of %s: %w", appPath, err)
	}
	v := strings.TrimSpace(string(out))
	if v == "" {
		return "", fmt.Errorf("bundle %s has no version", appPath)
	}
	return v, nil
}
