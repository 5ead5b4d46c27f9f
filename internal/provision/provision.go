// internal/provision/provision.go

// Package provision locates browser binaries and installs playwright-managed
// browsers on demand.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/playwright-community/playwright-go"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/asli/pkg/remote"
)

// DefaultInstallTimeout bounds a playwright browser download.
const DefaultInstallTimeout = 5 * time.Minute

// ErrBrowserNotFound is returned when no binary exists and installing is disabled.
var ErrBrowserNotFound = errors.New("browser executable not found")

// Chrome binary names searched on PATH, in order.
var chromeNames = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
	"headless-shell",
}

// Playwright's chromium build inside its cache directory.
var playwrightChromeGlobs = []string{
	"~/.cache/ms-playwright/chromium-*/chrome-linux/chrome",
	"~/.cache/ms-playwright/chromium-*/chrome-linux64/chrome",
	"~/Library/Caches/ms-playwright/chromium-*/chrome-mac/Chromium.app/Contents/MacOS/Chromium",
}

// Provisioner finds or installs the browser for a kind.
type Provisioner struct {
	// ExecPath is an explicit binary; "~" is expanded.
	ExecPath string
	// AllowInstall permits downloading browsers through playwright.
	AllowInstall   bool
	InstallTimeout time.Duration

	Fs     afero.Fs
	Logger *zap.Logger

	lookPath func(string) (string, error)
	install  func(*playwright.RunOptions) error
}

// New returns a provisioner on the OS file system.
func New(execPath string, allowInstall bool, logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{
		ExecPath:       execPath,
		AllowInstall:   allowInstall,
		InstallTimeout: DefaultInstallTimeout,
		Fs:             afero.NewOsFs(),
		Logger:         logger.Named("provision"),
		lookPath:       exec.LookPath,
		install:        playwrightInstall,
	}
}

// Install makes the browser for kind available. The returned path is the
// binary to launch, or "" when the driver locates it itself.
func (p *Provisioner) Install(ctx context.Context, kind remote.Browser) (string, error) {
	switch kind {
	case remote.Static:
		return "", nil
	case remote.Chrome, "":
		return p.chrome(ctx)
	case remote.Firefox, remote.WebKit:
		if !p.AllowInstall {
			return "", nil
		}
		return "", p.playwrightInstall(ctx, string(kind))
	}
	return "", fmt.Errorf("%w: cannot provision %q", remote.ErrUnsupported, kind)
}

func (p *Provisioner) chrome(ctx context.Context) (string, error) {
	if p.ExecPath != "" {
		path, err := homedir.Expand(p.ExecPath)
		if err != nil {
			return "", fmt.Errorf("error expanding path %q: %w", p.ExecPath, err)
		}
		if _, err := p.Fs.Stat(path); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrBrowserNotFound, path, err)
		}
		return path, nil
	}

	lookPath := p.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	for _, name := range chromeNames {
		if path, err := lookPath(name); err == nil {
			p.Logger.Debug("Found chrome on PATH.", zap.String("path", path))
			return path, nil
		}
	}

	if path := p.cachedChrome(); path != "" {
		return path, nil
	}
	if !p.AllowInstall {
		return "", fmt.Errorf("%w: chrome (set browser.exec_path or enable browser.install)", ErrBrowserNotFound)
	}
	if err := p.playwrightInstall(ctx, "chromium"); err != nil {
		return "", err
	}
	if path := p.cachedChrome(); path != "" {
		return path, nil
	}
	return "", fmt.Errorf("%w: chromium was installed but its binary could not be located", ErrBrowserNotFound)
}

// cachedChrome returns the newest playwright chromium build, if any.
func (p *Provisioner) cachedChrome() string {
	for _, pattern := range playwrightChromeGlobs {
		expanded, err := homedir.Expand(pattern)
		if err != nil {
			continue
		}
		matches, err := afero.Glob(p.Fs, filepath.FromSlash(expanded))
		if err != nil || len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		return matches[len(matches)-1]
	}
	return ""
}

// playwrightInstall downloads one browser, bounded by InstallTimeout.
func (p *Provisioner) playwrightInstall(ctx context.Context, browser string) error {
	timeout := p.InstallTimeout
	if timeout <= 0 {
		timeout = DefaultInstallTimeout
	}
	installCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	install := p.install
	if install == nil {
		install = playwrightInstall
	}

	p.Logger.Info("Installing browser via playwright.", zap.String("browser", browser))
	done := make(chan error, 1)
	go func() {
		done <- install(&playwright.RunOptions{
			Browsers: []string{browser},
			Stdout:   io.Discard,
			Stderr:   io.Discard,
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to install %s: %w", browser, err)
		}
		return nil
	case <-installCtx.Done():
		return fmt.Errorf("timeout waiting for %s installation: %w", browser, installCtx.Err())
	}
}

// playwrightInstall adapts the variadic playwright.Install to the install hook's signature.
func playwrightInstall(opts *playwright.RunOptions) error { return playwright.Install(opts) }
