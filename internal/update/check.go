package update

import (
	"context"
	"strings"
)

// Check compares the current version with the latest release without
// downloading anything.
func Check(ctx context.Context, releases ReleaseFetcher, owner, repo, currentVersion string) (*CheckResult, error) {
	release, err := releases.FetchLatestRelease(ctx, owner, repo)
	if err != nil {
		return nil, wrapAs(err, ErrFetchFailed)
	}

	return &CheckResult{
		CurrentVersion:  strings.TrimPrefix(currentVersion, "v"),
		LatestVersion:   strings.TrimPrefix(release.TagName, "v"),
		UpdateAvailable: IsNewer(release.TagName, currentVersion),
		Release:         release,
	}, nil
}
