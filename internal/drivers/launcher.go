// internal/drivers/launcher.go

// Package drivers routes launch requests to the concrete driver for each
// browser kind.
package drivers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/asli/internal/drivers/cdp"
	"github.com/xkilldash9x/asli/internal/drivers/pwdriver"
	"github.com/xkilldash9x/asli/internal/drivers/static"
	"github.com/xkilldash9x/asli/pkg/remote"
)

// Provisioner makes a browser binary available before a local launch.
type Provisioner interface {
	Install(ctx context.Context, kind remote.Browser) (string, error)
}

// Launcher dispatches on LaunchOptions.Browser:
//
//	chrome          chromedp (exec allocator, or remote allocator)
//	firefox, webkit playwright (launch, or connect)
//	static          HTTP client and parsed DOM
type Launcher struct {
	Logger *zap.Logger
	// Provisioner runs before local chrome, firefox and webkit launches. Optional.
	Provisioner Provisioner

	launchChrome     func(context.Context, remote.LaunchOptions, *zap.Logger) (remote.Handle, error)
	launchPlaywright func(context.Context, remote.LaunchOptions, *zap.Logger) (remote.Handle, error)
	launchStatic     func(context.Context, remote.LaunchOptions, *zap.Logger) (remote.Handle, error)
}

var _ remote.Launcher = (*Launcher)(nil)

// NewLauncher returns a launcher over the built-in drivers.
func NewLauncher(logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{
		Logger: logger,
		launchChrome: func(ctx context.Context, o remote.LaunchOptions, l *zap.Logger) (remote.Handle, error) {
			b, err := cdp.Launch(ctx, o, l)
			if err != nil {
				return nil, err
			}
			return b, nil
		},
		launchPlaywright: func(ctx context.Context, o remote.LaunchOptions, l *zap.Logger) (remote.Handle, error) {
			b, err := pwdriver.Launch(ctx, o, l)
			if err != nil {
				return nil, err
			}
			return b, nil
		},
		launchStatic: func(ctx context.Context, o remote.LaunchOptions, l *zap.Logger) (remote.Handle, error) {
			b, err := static.Launch(ctx, o, l)
			if err != nil {
				return nil, err
			}
			return b, nil
		},
	}
}

// Launch starts the driver for opts.Browser. Driver errors are returned as is.
func (l *Launcher) Launch(ctx context.Context, opts remote.LaunchOptions) (remote.Handle, error) {
	if opts.Browser == "" {
		opts.Browser = remote.Chrome
	}

	if l.Provisioner != nil && !opts.Remote && opts.Browser != remote.Static {
		path, err := l.Provisioner.Install(ctx, opts.Browser)
		if err != nil {
			return nil, err
		}
		if opts.ExecPath == "" {
			opts.ExecPath = path
		}
	}

	l.Logger.Debug("Dispatching launch.",
		zap.String("browser", string(opts.Browser)),
		zap.Bool("remote", opts.Remote),
		zap.Bool("headless", opts.Headless),
	)

	switch opts.Browser {
	case remote.Chrome:
		return l.launchChrome(ctx, opts, l.Logger)
	case remote.Firefox, remote.WebKit:
		return l.launchPlaywright(ctx, opts, l.Logger)
	case remote.Static:
		return l.launchStatic(ctx, opts, l.Logger)
	}
	return nil, fmt.Errorf("%w: no driver for browser %q", remote.ErrUnsupported, opts.Browser)
}
