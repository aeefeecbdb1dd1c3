package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cmalf/cryptobar/internal/config"
	"github.com/cmalf/cryptobar/internal/settings"
	"github.com/cmalf/cryptobar/internal/ui"
	"github.com/cmalf/cryptobar/internal/update"
)

var errMock = errors.New("mock error")

// syncBuffer is written from the pipeline and the renderer goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeReleases struct {
	release *update.Release
	err     error
	calls   int
}

func (f *fakeReleases) FetchLatestRelease(ctx context.Context, owner, repo string) (*update.Release, error) {
	f.calls++
	return f.release, f.err
}

type fakeDownloader struct {
	path string
	err  error
	urls []string
}

func (f *fakeDownloader) Download(ctx context.Context, url string, progress chan<- update.Progress) (string, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return "", f.err
	}
	if progress != nil {
		progress <- update.Progress{Fraction: 0.5}
		progress <- update.Progress{Fraction: 1}
	}
	return f.path, nil
}

type fakeInstaller struct {
	dest   string
	err    error
	images []string
}

func (f *fakeInstaller) Install(ctx context.Context, imagePath string) (string, error) {
	f.images = append(f.images, imagePath)
	return f.dest, f.err
}

type fakeRelauncher struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (f *fakeRelauncher) Relaunch(ctx context.Context, appPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, appPath)
	return f.err
}

func (f *fakeRelauncher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

type fakeBrowser struct {
	urls []string
}

func (f *fakeBrowser) OpenURL(ctx context.Context, url string) error {
	f.urls = append(f.urls, url)
	return nil
}

func testRelease(tag string) *update.Release {
	return &update.Release{
		TagName: tag,
		HTMLURL: "https://github.com/acme/CryptoBar/releases/tag/" + tag,
		Assets: []update.Asset{
			{Name: "CryptoBar.zip", BrowserDownloadURL: "https://example.com/CryptoBar.zip"},
			{Name: "CryptoBar.dmg", BrowserDownloadURL: "https://example.com/CryptoBar.dmg"},
		},
	}
}

type testEnv struct {
	d          *Deps
	out        *syncBuffer
	releases   *fakeReleases
	downloader *fakeDownloader
	installer  *fakeInstaller
	relauncher *fakeRelauncher
	browser    *fakeBrowser
}

func plainColors() *ui.ColorConfig {
	return &ui.ColorConfig{Theme: ui.DefaultTheme()}
}

// newTestEnv wires Deps with fakes around an installed version 1.2.0.
func newTestEnv(t *testing.T, format string) *testEnv {
	t.Helper()
	home := t.TempDir()
	cfg := config.Config{
		HomeDir:        home,
		Owner:          "acme",
		Repo:           "CryptoBar",
		AppName:        "CryptoBar.app",
		InstallDir:     filepath.Join(home, "Applications"),
		DownloadDir:    filepath.Join(home, "downloads"),
		LogFile:        filepath.Join(home, "logs", "updater.log"),
		CurrentVersion: "1.2.0",
	}

	env := &testEnv{
		out:        &syncBuffer{},
		releases:   &fakeReleases{release: testRelease("v1.3.0")},
		downloader: &fakeDownloader{path: filepath.Join(home, "downloads", "CryptoBar.dmg")},
		installer:  &fakeInstaller{dest: cfg.AppPath()},
		relauncher: &fakeRelauncher{},
		browser:    &fakeBrowser{},
	}
	env.d = &Deps{
		Cfg:          cfg,
		Settings:     settings.NewStore(cfg.SettingsPath()),
		Releases:     env.releases,
		Downloader:   env.downloader,
		Installer:    env.installer,
		Relauncher:   env.relauncher,
		Browser:      env.browser,
		Printer:      ui.NewPrinterTo(format, env.out, plainColors()),
		Output:       env.out,
		LockPath:     cfg.LockPath(),
		BuildVersion: "0.0.1",
	}
	return env
}
