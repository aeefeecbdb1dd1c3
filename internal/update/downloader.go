package update

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"github.com/cmalf/cryptobar/internal/logger"
	"github.com/cmalf/cryptobar/internal/metrics"
)

// Downloader streams release artifacts into Dir.
type Downloader struct {
	HTTP      HTTPDoer
	UserAgent string
	Dir       string
	// FreeSpace reports free bytes at a path. Nil skips the pre-flight check.
	FreeSpace func(path string) (uint64, error)
}

// NewDownloader returns a Downloader writing into dir. Downloads carry no
// client timeout; cancel through the context instead.
func NewDownloader(dir string) *Downloader {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Downloader{
		HTTP:      &http.Client{},
		UserAgent: DefaultUserAgent,
		Dir:       dir,
		FreeSpace: metrics.DiskFree,
	}
}

// Download fetches rawURL into Dir/<last path segment>, replacing any file
// already there. When the server announces a length, fractions in (0,1]
// are sent on progress in non-decreasing order. The caller owns progress
// and may pass nil. All failures match ErrDownloadFailed.
func (d *Downloader) Download(ctx context.Context, rawURL string, progress chan<- Progress) (string, error) {
	name, err := fileNameFromURL(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create download dir: %w", ErrDownloadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}

	resp, err := d.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s", ErrDownloadFailed, resp.Status)
	}

	total := resp.ContentLength
	if total > 0 && d.FreeSpace != nil {
		if free, ferr := d.FreeSpace(d.Dir); ferr == nil && free < uint64(total) {
			return "", fmt.Errorf("%w: need %d bytes in %s, %d free", ErrDownloadFailed, total, d.Dir, free)
		}
	}

	tmp, err := os.CreateTemp(d.Dir, "."+name+".*.part")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %w", ErrDownloadFailed, err)
	}
	tmpPath := tmp.Name()
	keep := false
	defer func() {
		if !keep {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	hasher := xxhash.New()
	reader := &progressReader{
		ctx:      ctx,
		reader:   io.TeeReader(resp.Body, hasher),
		total:    total,
		progress: progress,
	}

	written, err := io.Copy(tmp, reader)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	if total > 0 && written != total {
		return "", fmt.Errorf("%w: short body: got %d of %d bytes", ErrDownloadFailed, written, total)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: close temp file: %w", ErrDownloadFailed, err)
	}

	dest := filepath.Join(d.Dir, name)
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("%w: remove previous download: %w", ErrDownloadFailed, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("%w: move download into place: %w", ErrDownloadFailed, err)
	}
	keep = true

	logger.InfoKV(ctx, "Download complete",
		"path", dest,
		"bytes", written,
		"xxhash64", fmt.Sprintf("%016x", hasher.Sum64()),
	)

	return dest, nil
}

func fileNameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid download URL: %w", err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("invalid download URL: %s", rawURL)
	}
	return name, nil
}

// progressReader wraps a reader to report progress
type progressReader struct {
	ctx        context.Context
	reader     io.Reader
	total      int64
	downloaded int64
	last       float64
	progress   chan<- Progress
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.downloaded += int64(n)
	if pr.progress == nil || pr.total <= 0 || n == 0 {
		return n, err
	}

	fraction := float64(pr.downloaded) / float64(pr.total)
	if fraction > 1 {
		fraction = 1
	}
	if fraction <= pr.last {
		return n, err
	}
	pr.last = fraction

	select {
	case pr.progress <- Progress{Fraction: fraction}:
	case <-pr.ctx.Done():
		return n, pr.ctx.Err()
	}
	return n, err
}
