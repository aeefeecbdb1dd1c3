package update

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cmalf/cryptobar/internal/logger"
)

const DefaultRelaunchDelay = 600 * time.Millisecond

// ReleaseFetcher is implemented by *Client.
type ReleaseFetcher interface {
	FetchLatestRelease(ctx context.Context, owner, repo string) (*Release, error)
}

// ArtifactDownloader is implemented by *Downloader.
type ArtifactDownloader interface {
	Download(ctx context.Context, url string, progress chan<- Progress) (string, error)
}

// AppInstaller is implemented by *Installer.
type AppInstaller interface {
	Install(ctx context.Context, imagePath string) (string, error)
}

// AppRelauncher is implemented by *Relauncher.
type AppRelauncher interface {
	Relaunch(ctx context.Context, appPath string) error
}

// BrowserOpener shows a release page to the user.
type BrowserOpener interface {
	OpenURL(ctx context.Context, url string) error
}

// CheckRecorder persists the time of the last update check.
type CheckRecorder interface {
	RecordCheck(at time.Time) error
}

// NoticeLevel classifies a Notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeCritical
)

// Notice is the user-facing summary of an attempt. It never carries
// low-level error detail.
type Notice struct {
	Level NoticeLevel
	Title string
	Body  string
}

// Notifier presents notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// Deps are the collaborators of an Orchestrator. Relauncher, Browser,
// Recorder and Notifier are optional.
type Deps struct {
	Releases   ReleaseFetcher
	Downloader ArtifactDownloader
	Installer  AppInstaller
	Relauncher AppRelauncher
	Browser    BrowserOpener
	Recorder   CheckRecorder
	Notifier   Notifier
}

// Options configure one Orchestrator.
type Options struct {
	Owner          string
	Repo           string
	CurrentVersion string
	// AutoDownload is consulted on every attempt. Nil means disabled.
	AutoDownload  func() bool
	RelaunchDelay time.Duration
}

// Orchestrator runs the check → download → install → relaunch pipeline
// and owns its state. At most one attempt runs at a time.
type Orchestrator struct {
	deps Deps
	opts Options
	now  func() time.Time

	mu      sync.Mutex
	state   State
	subs    map[int]chan State
	nextSub int
	pending *relaunchTask
	// last relaunch scheduled by the most recent attempt, kept after it ran.
	last *relaunchTask
}

type relaunchTask struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// New returns an Orchestrator in the Idle state.
func New(deps Deps, opts Options) *Orchestrator {
	if opts.RelaunchDelay < 0 {
		opts.RelaunchDelay = 0
	}
	return &Orchestrator{
		deps:  deps,
		opts:  opts,
		now:   time.Now,
		state: Idle{},
		subs:  make(map[int]chan State),
	}
}

// State returns the current pipeline state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe returns a stream of states starting with the current one, and
// a function that ends the subscription. A subscriber that falls behind
// loses its oldest queued states; the latest state is always delivered.
func (o *Orchestrator) Subscribe(buffer int) (<-chan State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State, buffer)

	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	ch <- o.state
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if _, ok := o.subs[id]; ok {
				delete(o.subs, id)
				close(ch)
			}
		})
	}
}

// CheckAndApply runs one update attempt to a terminal state. It returns
// ErrUpdateInProgress when an attempt or a scheduled relaunch is pending,
// nil for Done outcomes and the cause for Failed outcomes.
func (o *Orchestrator) CheckAndApply(ctx context.Context) error {
	if !o.begin() {
		return ErrUpdateInProgress
	}
	ctx = logger.WithName(ctx, "orchestrator")

	release, err := o.deps.Releases.FetchLatestRelease(ctx, o.opts.Owner, o.opts.Repo)
	o.recordCheck(ctx)
	if err != nil {
		return o.fail(ctx, "check failed", wrapAs(err, ErrFetchFailed))
	}

	tag := release.TagName
	ctx = logger.WithKV(ctx, "tag", tag, "current", o.opts.CurrentVersion)
	if pre := Prerelease(tag); pre != "" {
		logger.WarnKV(ctx, "Pre-release suffix is ignored when comparing versions", "prerelease", pre)
	}

	if !IsNewer(tag, o.opts.CurrentVersion) {
		logger.Info(ctx, "Already up to date")
		o.finish(Done{Message: "up to date"}, Notice{
			Level: NoticeInfo,
			Title: "You're up to date",
			Body:  "You already have the latest version of CryptoBar.",
		})
		return nil
	}

	asset, ok := PickInstaller(release)
	if !ok {
		return o.fail(ctx, "asset not found", fmt.Errorf("%w: release %s has no %s asset", ErrAssetNotFound, tag, installerExt))
	}

	if o.opts.AutoDownload == nil || !o.opts.AutoDownload() {
		if o.deps.Browser != nil && release.HTMLURL != "" {
			if err := o.deps.Browser.OpenURL(ctx, release.HTMLURL); err != nil {
				logger.WarnKV(ctx, "Could not open release page", "url", release.HTMLURL, "error", err)
			}
		}
		logger.InfoKV(ctx, "Update available", "page", release.HTMLURL)
		o.finish(Done{Message: "update available: " + tag}, Notice{
			Level: NoticeInfo,
			Title: "Update available",
			Body:  fmt.Sprintf("Update %s is available.", tag),
		})
		return nil
	}

	o.set(Downloading{Fraction: 0})
	imagePath, err := o.download(ctx, asset.BrowserDownloadURL)
	if err != nil {
		return o.fail(ctx, "download failed", wrapAs(err, ErrDownloadFailed))
	}

	o.set(Installing{})
	appPath, err := o.deps.Installer.Install(ctx, imagePath)
	if err != nil {
		return o.fail(ctx, "install failed", wrapAs(err, ErrInstallStepFailed))
	}

	start := o.installed(ctx, Done{Message: "installed " + tag}, appPath)
	o.notify(Notice{
		Level: NoticeInfo,
		Title: "Update installed",
		Body:  fmt.Sprintf("Installed %s. Relaunching…", tag),
	})
	start()
	return nil
}

// WaitRelaunch blocks until a scheduled relaunch has run or been
// cancelled and returns its error. It returns nil when the latest attempt
// scheduled no relaunch.
func (o *Orchestrator) WaitRelaunch(ctx context.Context) error {
	o.mu.Lock()
	task := o.last
	o.mu.Unlock()
	if task == nil {
		return nil
	}
	select {
	case <-task.done:
		return task.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels a scheduled relaunch, waits for it and ends all
// subscriptions.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	task := o.pending
	o.mu.Unlock()
	if task != nil {
		task.cancel()
		<-task.done
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for id, ch := range o.subs {
		delete(o.subs, id)
		close(ch)
	}
}

func (o *Orchestrator) begin() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if IsActive(o.state) || o.pending != nil {
		return false
	}
	if o.state.Phase() != PhaseIdle {
		o.publishLocked(Idle{})
	}
	o.last = nil
	o.publishLocked(Checking{})
	return true
}

func (o *Orchestrator) download(ctx context.Context, url string) (string, error) {
	progress := make(chan Progress)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for p := range progress {
			o.set(Downloading{Fraction: p.Fraction})
		}
	}()

	path, err := o.deps.Downloader.Download(ctx, url, progress)
	close(progress)
	<-forwarded
	return path, err
}

func (o *Orchestrator) recordCheck(ctx context.Context) {
	if o.deps.Recorder == nil {
		return
	}
	if err := o.deps.Recorder.RecordCheck(o.now()); err != nil {
		logger.WarnKV(ctx, "Could not record update check time", "error", err)
	}
}

func (o *Orchestrator) fail(ctx context.Context, message string, err error) error {
	logger.ErrorKV(ctx, "Update attempt failed", "stage", message, "error", err)

	title, body := "Update failed", "Update failed. Please try again later."
	if errors.Is(err, ErrAssetNotFound) {
		title, body = "Update asset not found", "No valid DMG file could be found for the update."
	}
	o.finish(Failed{Message: message, Err: err}, Notice{Level: NoticeCritical, Title: title, Body: body})
	return err
}

func (o *Orchestrator) finish(s State, n Notice) {
	o.set(s)
	o.notify(n)
}

func (o *Orchestrator) notify(n Notice) {
	if o.deps.Notifier != nil {
		o.deps.Notifier.Notify(n)
	}
}

// installed publishes done and registers the pending relaunch in one critical
// section, so no new attempt can begin between the two. The returned func
// starts the relaunch timer.
func (o *Orchestrator) installed(ctx context.Context, done Done, appPath string) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.publishLocked(done)
	if o.deps.Relauncher == nil {
		return func() {}
	}

	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	task := &relaunchTask{cancel: cancel, done: make(chan struct{})}
	o.pending = task
	o.last = task
	return func() { go o.relaunch(rctx, task, appPath) }
}

func (o *Orchestrator) relaunch(ctx context.Context, task *relaunchTask, appPath string) {
	defer func() {
		task.cancel()
		o.mu.Lock()
		if o.pending == task {
			o.pending = nil
		}
		o.mu.Unlock()
		close(task.done)
	}()

	timer := time.NewTimer(o.opts.RelaunchDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		task.err = ctx.Err()
		logger.Info(ctx, "Relaunch cancelled")
		return
	case <-timer.C:
	}

	if err := o.deps.Relauncher.Relaunch(ctx, appPath); err != nil {
		task.err = wrapAs(err, ErrRelaunchFailed)
		o.fail(ctx, "relaunch failed", task.err)
	}
}

func (o *Orchestrator) set(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.publishLocked(s)
}

func (o *Orchestrator) publishLocked(s State) {
	o.state = s
	for _, ch := range o.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		// Full: drop the oldest queued state so the newest gets through.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

func wrapAs(err, sentinel error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
