// pkg/remote/remote.go

// Package remote defines the capability boundary between the lazy locator core
// and a concrete browser driver. Drivers live under internal/drivers; tests and
// callers may supply their own implementations through Session.SetDriver.
package remote

import (
	"context"
	"strings"
)

// Browser identifies a driver family.
type Browser string

const (
	Chrome  Browser = "chrome"
	Firefox Browser = "firefox"
	WebKit  Browser = "webkit"
	// Static is the driverless HTTP implementation: no JavaScript, no layout.
	Static Browser = "static"
	// Remote is reported as the session name when a remote executor is used.
	Remote Browser = "remote"
)

// Title returns the capitalized kind, used as the root of locator descriptions.
func (b Browser) Title() string {
	if b == "" {
		return "Browser"
	}
	return strings.ToUpper(string(b[:1])) + string(b[1:])
}

// Point is an element position in CSS pixels.
type Point struct {
	X, Y float64
}

// Cookie is the subset of cookie fields every driver can set.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Finder resolves selectors. Handles search the whole document; element
// references search their own subtree.
type Finder interface {
	FindOne(by By) (ElementRef, error)
	FindAll(by By) ([]ElementRef, error)
}

// ElementRef is a resolved remote element.
type ElementRef interface {
	Finder

	Click() error
	Text() (string, error)
	// SetText clears the element and types text into it.
	SetText(text string) error
	IsDisplayed() (bool, error)
	// Position is the cheap probe used for staleness checks. It fails with
	// ErrStaleElement once the element is detached from the live document.
	Position() (Point, error)
	// Attribute reports present=false when the attribute is null.
	Attribute(name string) (value string, present bool, err error)
	TagName() (string, error)
	IsEnabled() (bool, error)
	IsSelected() (bool, error)
	Hover() error
}

// Handle is a live driver connection owning one or more windows.
type Handle interface {
	Finder

	Navigate(url string) error
	CurrentURL() (string, error)
	ScreenshotPNG() ([]byte, error)
	// CloseWindow closes only the current window or tab.
	CloseWindow() error
	AddCookie(c Cookie) error
	// Quit closes every window and releases the driver process.
	Quit() error
}

// LaunchOptions configures a driver launch.
type LaunchOptions struct {
	Browser  Browser
	Remote   bool
	Headless bool
	// Options is a driver-specific options object. When set, Headless is ignored.
	Options any
	// CommandExecutor is the remote endpoint (websocket or HTTP) in remote mode.
	CommandExecutor string
	// ExecPath points to a local browser or driver binary. Empty means auto-detect.
	ExecPath string
	// Args are command-line flags, "--name=value" or "--name".
	Args []string
	// Extra is passed through to the driver verbatim.
	Extra map[string]any
}

// Launcher starts drivers.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Handle, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, opts LaunchOptions) (Handle, error)

func (f LauncherFunc) Launch(ctx context.Context, opts LaunchOptions) (Handle, error) {
	return f(ctx, opts)
}
