// internal/drivers/cdp/browser.go

// Package cdp drives Chrome and Chromium over the DevTools protocol with
// chromedp. Elements are addressed by backend node id, which stays valid until
// the node is garbage collected; detached nodes report ErrStaleElement.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/asli/pkg/remote"
)

// Browser is a chromedp tab implementing remote.Handle.
type Browser struct {
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	quit   bool
}

var _ remote.Handle = (*Browser)(nil)

// ExecAllocatorOptions builds the local launch flags. A []chromedp.ExecAllocatorOption
// in opts.Options replaces the defaults; Args and Extra still apply.
func ExecAllocatorOptions(opts remote.LaunchOptions) []chromedp.ExecAllocatorOption {
	var out []chromedp.ExecAllocatorOption
	if custom, ok := opts.Options.([]chromedp.ExecAllocatorOption); ok && custom != nil {
		out = append(out, custom...)
	} else {
		out = []chromedp.ExecAllocatorOption{
			chromedp.NoSandbox,
			chromedp.DisableGPU,
			chromedp.Flag("enable-automation", true),
			chromedp.NoFirstRun,
			chromedp.NoDefaultBrowserCheck,
		}
		if opts.Headless {
			out = append(out, chromedp.Headless)
		}
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}

	for _, arg := range opts.Args {
		key, value, found := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if found {
			out = append(out, chromedp.Flag(key, value))
		} else {
			out = append(out, chromedp.Flag(key, true))
		}
	}
	for key, value := range opts.Extra {
		out = append(out, chromedp.Flag(key, value))
	}
	return out
}

// Launch starts Chrome locally, or attaches to opts.CommandExecutor (a
// DevTools websocket URL) in remote mode.
func Launch(ctx context.Context, opts remote.LaunchOptions, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("cdp")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The browser outlives the launch call.
	base := context.WithoutCancel(ctx)
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.Remote {
		if opts.CommandExecutor == "" {
			return nil, errors.New("remote chrome requires a command executor URL")
		}
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(base, opts.CommandExecutor)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(base, ExecAllocatorOptions(opts)...)
	}

	sugar := logger.Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Errorf),
	)

	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()
	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("failed to start chrome: %w", err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		<-started
		return nil, ctx.Err()
	}

	logger.Debug("Chrome started.", zap.Bool("remote", opts.Remote))
	return &Browser{
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// run executes fn against the tab, translating lifecycle state into driver errors.
func (b *Browser) run(fn func(ctx context.Context) error) error {
	b.mu.Lock()
	switch {
	case b.quit:
		b.mu.Unlock()
		return remote.ErrSessionNotReady
	case b.closed:
		b.mu.Unlock()
		return remote.ErrNoSuchWindow
	}
	ctx := b.browserCtx
	b.mu.Unlock()

	err := chromedp.Run(ctx, chromedp.ActionFunc(fn))
	if err != nil && ctx.Err() != nil {
		return remote.ErrSessionNotReady
	}
	return classify(err)
}

func (b *Browser) Navigate(url string) error {
	return b.run(func(ctx context.Context) error {
		return chromedp.Navigate(url).Do(ctx)
	})
}

func (b *Browser) CurrentURL() (string, error) {
	var u string
	err := b.run(func(ctx context.Context) error {
		return chromedp.Location(&u).Do(ctx)
	})
	return u, err
}

func (b *Browser) ScreenshotPNG() ([]byte, error) {
	var buf []byte
	err := b.run(func(ctx context.Context) error {
		return chromedp.CaptureScreenshot(&buf).Do(ctx)
	})
	return buf, err
}

// CloseWindow closes the tab. The browser stays up until Quit.
func (b *Browser) CloseWindow() error {
	if err := b.run(func(ctx context.Context) error { return page.Close().Do(ctx) }); err != nil {
		return err
	}
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *Browser) AddCookie(c remote.Cookie) error {
	return b.run(func(ctx context.Context) error {
		param := &network.CookieParam{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path}
		if c.Domain == "" {
			var u string
			if err := chromedp.Location(&u).Do(ctx); err != nil {
				return err
			}
			param.URL = u
		}
		return network.SetCookies([]*network.CookieParam{param}).Do(ctx)
	})
}

// Quit closes the browser, or detaches from it in remote mode. It is idempotent.
func (b *Browser) Quit() error {
	b.mu.Lock()
	if b.quit {
		b.mu.Unlock()
		return nil
	}
	b.quit = true
	b.mu.Unlock()

	err := chromedp.Cancel(b.browserCtx)
	b.browserCancel()
	b.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close chrome: %w", err)
	}
	return nil
}

func (b *Browser) FindOne(by remote.By) (remote.ElementRef, error) {
	refs, err := b.FindAll(by)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, remote.Wrap("find", &by, remote.ErrNoSuchElement)
	}
	return refs[0], nil
}

func (b *Browser) FindAll(by remote.By) ([]remote.ElementRef, error) {
	var refs []remote.ElementRef
	err := b.run(func(ctx context.Context) error {
		doc, exc, err := cdpruntime.Evaluate("document").Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("failed to resolve document: %s", exc.Text)
		}
		defer release(ctx, doc.ObjectID)
		refs, err = b.query(ctx, doc.ObjectID, by)
		return err
	})
	if err != nil {
		return nil, remote.Wrap("find", &by, err)
	}
	return refs, nil
}

// classify maps protocol errors onto the driver error vocabulary.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "No node with given id"),
		strings.Contains(msg, "Could not find node with given id"),
		strings.Contains(msg, "Node is detached"),
		strings.Contains(msg, "Cannot find context with specified id"):
		return fmt.Errorf("%w: %v", remote.ErrStaleElement, err)
	case strings.Contains(msg, "No target with given id"),
		strings.Contains(msg, "target closed"),
		errors.Is(err, chromedp.ErrInvalidTarget):
		return fmt.Errorf("%w: %v", remote.ErrNoSuchWindow, err)
	}
	return err
}
