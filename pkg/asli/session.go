// pkg/asli/session.go

// Package asli provides lazy element locators over a remote browser driver.
// Nothing touches the browser until a value is used: Element and Elements only
// describe a search, and every chain is resolved again on demand. Single
// elements are cached and re-resolved transparently once they go stale.
package asli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/asli/internal/drivers"
	"github.com/xkilldash9x/asli/pkg/diagnostics"
	"github.com/xkilldash9x/asli/pkg/remote"
	"github.com/xkilldash9x/asli/pkg/wait"
)

// DefaultTimeout bounds Assure, Should and the visibility wait before actions.
const DefaultTimeout = 5 * time.Second

// DefaultScreenshotDir receives failure screenshots when none is configured.
const DefaultScreenshotDir = "logs"

// Config describes how a session launches its driver and how it waits.
type Config struct {
	Browser  remote.Browser
	Remote   bool
	Headless bool
	// Options is a driver specific options object. When set, Headless is ignored.
	Options         any
	CommandExecutor string
	ExecPath        string
	Args            []string
	// Extra is handed to the driver verbatim.
	Extra map[string]any

	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration

	ScreenshotDir      string
	DisableScreenshots bool

	Logger *zap.Logger
	// Launcher starts the driver. Defaults to the built-in drivers.
	Launcher remote.Launcher
}

type sessionState int

const (
	unlaunched sessionState = iota
	live
	closed
)

func (st sessionState) String() string {
	switch st {
	case live:
		return "live"
	case closed:
		return "closed"
	}
	return "unlaunched"
}

// Session is the root of every locator chain. It owns at most one driver handle,
// launched lazily by Open or injected with SetDriver.
type Session struct {
	mu     sync.Mutex
	cfg    Config
	state  sessionState
	handle remote.Handle
	gen    uint64

	logger   *zap.Logger
	recorder *diagnostics.Recorder
	poll     *wait.Poller
}

// NewSession validates cfg and returns an unlaunched session.
func NewSession(cfg Config) (*Session, error) {
	s := &Session{}
	if err := s.Configure(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// MustSession is NewSession that panics on an invalid configuration.
func MustSession(cfg Config) *Session {
	s, err := NewSession(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// Configure replaces the session settings. A live driver keeps running with the
// settings it was launched with; the new ones apply to the next launch.
func (s *Session) Configure(cfg Config) error {
	switch cfg.Browser {
	case "":
		cfg.Browser = remote.Chrome
	case remote.Chrome, remote.Firefox, remote.WebKit, remote.Static:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedBrowser, cfg.Browser)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ScreenshotDir == "" {
		cfg.ScreenshotDir = DefaultScreenshotDir
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Launcher == nil {
		cfg.Launcher = drivers.NewLauncher(logger)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.logger = logger.Named("session").With(zap.String("browser", string(cfg.Browser)))
	s.poll = wait.NewPoller(cfg.PollInterval)
	s.recorder = nil
	if !cfg.DisableScreenshots {
		s.recorder = diagnostics.NewRecorder(cfg.ScreenshotDir, logger)
	}
	return nil
}

// SetScreenshotFs redirects failure screenshots to fs.
func (s *Session) SetScreenshotFs(fs afero.Fs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorder != nil {
		s.recorder.Fs = fs
	}
}

// Name is the root of locator descriptions: "Remote" for remote drivers,
// otherwise the capitalized browser kind.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.Remote {
		return remote.Remote.Title()
	}
	return s.cfg.Browser.Title()
}

// Describe is the session name.
func (s *Session) Describe() string { return s.Name() }

func (s *Session) String() string { return "Browser " + s.Name() }

// Browser returns s. Sessions are the root of every chain.
func (s *Session) Browser() *Session { return s }

// IsLive reports whether the session currently holds a driver.
func (s *Session) IsLive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == live
}

// Timeout is the default wait for assertions and actions.
func (s *Session) Timeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Timeout
}

// BaseURL is prepended to relative URLs passed to Open.
func (s *Session) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.BaseURL
}

// SetBaseURL sets the prefix for relative URLs passed to Open.
func (s *Session) SetBaseURL(base string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.BaseURL = base
}

// Actual returns the live driver handle, or ErrSessionNotReady.
func (s *Session) Actual() (remote.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != live || s.handle == nil {
		return nil, remote.ErrSessionNotReady
	}
	return s.handle, nil
}

func (s *Session) finder() (remote.Finder, error) {
	return s.Actual()
}

// Open launches the driver if needed and navigates to url, resolved against
// the base URL.
func (s *Session) Open(url string) error {
	return s.OpenContext(context.Background(), url)
}

// OpenContext is Open with a context bounding the driver launch. Launch errors
// are returned as the driver reported them.
func (s *Session) OpenContext(ctx context.Context, url string) error {
	h, err := s.launch(ctx)
	if err != nil {
		return err
	}
	target := JoinURL(s.BaseURL(), url)
	s.log().Debug("Navigating.", zap.String("url", target))
	return h.Navigate(target)
}

func (s *Session) launch(ctx context.Context) (remote.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == live && s.handle != nil {
		return s.handle, nil
	}

	cfg := s.cfg
	opts := remote.LaunchOptions{
		Browser:         cfg.Browser,
		Remote:          cfg.Remote,
		Headless:        cfg.Headless,
		Options:         cfg.Options,
		CommandExecutor: cfg.CommandExecutor,
		ExecPath:        cfg.ExecPath,
		Args:            cfg.Args,
		Extra:           cfg.Extra,
	}
	s.logger.Info("Launching browser driver.",
		zap.Bool("remote", cfg.Remote), zap.Bool("headless", cfg.Headless))
	h, err := cfg.Launcher.Launch(ctx, opts)
	if err != nil {
		return nil, err
	}
	s.adopt(h)
	return h, nil
}

// adopt must be called with s.mu held.
func (s *Session) adopt(h remote.Handle) {
	s.handle = h
	s.state = live
	s.gen++
	register(s)
}

// SetDriver replaces the driver with h, quitting the current one first. The
// session is live afterwards without any launch.
func (s *Session) SetDriver(h remote.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == live && s.handle != nil && s.handle != h {
		if err := s.handle.Quit(); err != nil {
			s.logger.Warn("Failed to quit replaced driver.", zap.Error(err))
		}
	}
	s.adopt(h)
}

// CloseAll quits the driver with every window it owns. It is a no-op unless the
// session is live.
func (s *Session) CloseAll() error {
	s.mu.Lock()
	if s.state != live {
		s.mu.Unlock()
		return nil
	}
	h := s.handle
	s.handle = nil
	s.state = closed
	s.gen++
	s.mu.Unlock()

	unregister(s)
	s.log().Info("Closing browser driver.")
	if h == nil {
		return nil
	}
	return h.Quit()
}

// CloseWindow closes the current window only. The session stays live.
func (s *Session) CloseWindow() error {
	h, err := s.Actual()
	if err != nil {
		return err
	}
	return h.CloseWindow()
}

// AddCookie sets a cookie on the current page.
func (s *Session) AddCookie(c remote.Cookie) error {
	h, err := s.Actual()
	if err != nil {
		return err
	}
	return h.AddCookie(c)
}

// URL is the current page address, compared against the base URL.
func (s *Session) URL() (URL, error) {
	h, err := s.Actual()
	if err != nil {
		return URL{}, err
	}
	cur, err := h.CurrentURL()
	if err != nil {
		return URL{}, err
	}
	return URL{Path: cur, Base: s.BaseURL()}, nil
}

// Screenshot captures the current page as PNG.
func (s *Session) Screenshot() ([]byte, error) {
	h, err := s.Actual()
	if err != nil {
		return nil, err
	}
	return h.ScreenshotPNG()
}

// Element describes the first element matching a CSS selector. It fails with
// ErrSessionNotReady when the session is not live and never launches a driver.
func (s *Session) Element(css string) (*Element, error) {
	return s.ElementBy(remote.ByCSS(css))
}

// ElementBy is Element with an explicit selector.
func (s *Session) ElementBy(by remote.By) (*Element, error) {
	if _, err := s.Actual(); err != nil {
		return nil, err
	}
	return newElement(newSingle(by, s)), nil
}

// Elements describes every element matching a CSS selector. It fails with
// ErrSessionNotReady when the session is not live.
func (s *Session) Elements(css string) (*Collection, error) {
	return s.ElementsBy(remote.ByCSS(css))
}

// ElementsBy is Elements with an explicit selector.
func (s *Session) ElementsBy(by remote.By) (*Collection, error) {
	if _, err := s.Actual(); err != nil {
		return nil, err
	}
	return newCollection(newMultiple(by, s)), nil
}

// WaitFor polls p until it holds, failing with ErrTimeout after timeout. A zero
// timeout evaluates p once. Use s.Timeout() for the session default.
func (s *Session) WaitFor(p wait.Predicate, timeout time.Duration, description string) error {
	return s.guard(func() error {
		return s.poller().For(p, timeout, description)
	})
}

// Assure polls p until it holds, failing with the error matching severity. As
// with WaitFor, timeout is used as given.
func (s *Session) Assure(p wait.Predicate, timeout time.Duration, severity wait.Severity, description string) error {
	return s.guard(func() error {
		return s.poller().Assure(p, timeout, severity, description)
	})
}

// guard runs op and records a screenshot when it fails with a driver error, a
// timeout or a failed assertion.
func (s *Session) guard(op func() error) error {
	s.mu.Lock()
	rec := s.recorder
	s.mu.Unlock()
	if rec == nil {
		return op()
	}
	return rec.Guard(s, op)
}

func (s *Session) poller() *wait.Poller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poll
}

func (s *Session) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Session) log() *zap.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger
}
