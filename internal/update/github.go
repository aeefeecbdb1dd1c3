package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cmalf/cryptobar/internal/logger"
)

const (
	DefaultAPIBaseURL = "https://api.github.com"
	DefaultUserAgent  = "CryptoBar-Updater"

	acceptHeader  = "application/vnd.github+json"
	installerExt  = ".dmg"
	latestRelPath = "/repos/%s/%s/releases/latest"

	httpTimeout = 30 * time.Second
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries the release host for release metadata.
type Client struct {
	BaseURL   string
	UserAgent string
	HTTP      HTTPDoer
}

// NewClient returns a Client for baseURL. An empty baseURL means GitHub.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	if timeout <= 0 {
		timeout = httpTimeout
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: DefaultUserAgent,
		HTTP:      &http.Client{Timeout: timeout},
	}
}

// FetchLatestRelease gets the latest published release of owner/repo.
// Every failure matches ErrFetchFailed.
func (c *Client) FetchLatestRelease(ctx context.Context, owner, repo string) (*Release, error) {
	if strings.TrimSpace(owner) == "" || strings.TrimSpace(repo) == "" {
		return nil, fmt.Errorf("%w: owner and repo are required", ErrFetchFailed)
	}

	endpoint := c.BaseURL + fmt.Sprintf(latestRelPath, url.PathEscape(owner), url.PathEscape(repo))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", c.UserAgent)

	logger.DebugKV(ctx, "Fetching latest release", "url", endpoint)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: no releases found for %s/%s", ErrFetchFailed, owner, repo)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GitHub API error: %s", ErrFetchFailed, resp.Status)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("%w: failed to parse release: %w", ErrFetchFailed, err)
	}
	if release.TagName == "" {
		return nil, fmt.Errorf("%w: release has no tag_name", ErrFetchFailed)
	}

	return &release, nil
}

// PickInstaller returns the first asset whose name ends with ".dmg".
func PickInstaller(release *Release) (*Asset, bool) {
	if release == nil {
		return nil, false
	}
	for i := range release.Assets {
		asset := &release.Assets[i]
		if strings.HasSuffix(asset.Name, installerExt) {
			return asset, true
		}
	}
	return nil, false
}
