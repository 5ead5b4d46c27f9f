// internal/drivers/pwdriver/browser.go

// Package pwdriver drives Firefox and WebKit through playwright-go. Each
// Browser owns a playwright driver process, one browser context and one page.
package pwdriver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/asli/pkg/remote"
)

// Browser is a playwright page implementing remote.Handle.
type Browser struct {
	logger *zap.Logger

	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext

	mu   sync.Mutex
	page playwright.Page
	quit bool
}

var _ remote.Handle = (*Browser)(nil)

// LaunchOptions maps launch options onto playwright. A
// playwright.BrowserTypeLaunchOptions in opts.Options is used as the base and
// opts.Extra is decoded over it, so snake_case keys such as slow_mo or
// firefox_user_prefs reach the matching playwright field.
func LaunchOptions(opts remote.LaunchOptions, logger *zap.Logger) playwright.BrowserTypeLaunchOptions {
	var out playwright.BrowserTypeLaunchOptions
	if custom, ok := opts.Options.(playwright.BrowserTypeLaunchOptions); ok {
		out = custom
	} else {
		out.Headless = playwright.Bool(opts.Headless)
	}

	if len(opts.Extra) > 0 {
		if err := decodeExtra(opts.Extra, &out); err != nil && logger != nil {
			logger.Warn("Failed to decode extra launch options.", zap.Error(err), zap.Any("extra", opts.Extra))
		}
	}

	if opts.ExecPath != "" {
		out.ExecutablePath = playwright.String(opts.ExecPath)
	}
	out.Args = append(out.Args, opts.Args...)
	return out
}

// decodeExtra decodes extra into out. Fields that decode are kept even when
// others fail.
func decodeExtra(extra map[string]any, out *playwright.BrowserTypeLaunchOptions) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			proxyFromString,
			millisFromDuration,
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		MatchName:        matchOptionName,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(extra)
}

// matchOptionName matches slow_mo, slowMo and SlowMo to the SlowMo field.
func matchOptionName(key, field string) bool {
	return strings.EqualFold(strings.ReplaceAll(key, "_", ""), field)
}

// proxyFromString lets proxy be given as a bare server URL.
func proxyFromString(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(playwright.Proxy{}) {
		return data, nil
	}
	return map[string]any{"server": data}, nil
}

// millisFromDuration converts durations, or strings like "2s", to the
// millisecond floats playwright expects.
func millisFromDuration(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Float64 {
		return data, nil
	}
	switch v := data.(type) {
	case time.Duration:
		return float64(v.Milliseconds()), nil
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return float64(d.Milliseconds()), nil
		}
	}
	return data, nil
}

// Launch starts the playwright driver and a firefox or webkit browser, or
// connects to a playwright server at opts.CommandExecutor in remote mode.
func Launch(ctx context.Context, opts remote.LaunchOptions, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("playwright")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run(&playwright.RunOptions{Stdout: io.Discard, Stderr: io.Discard})
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright driver: %w", err)
	}

	var bt playwright.BrowserType
	switch opts.Browser {
	case remote.Firefox:
		bt = pw.Firefox
	case remote.WebKit:
		bt = pw.WebKit
	case remote.Chrome:
		bt = pw.Chromium
	default:
		_ = pw.Stop()
		return nil, fmt.Errorf("%w: playwright cannot drive %q", remote.ErrUnsupported, opts.Browser)
	}

	var browser playwright.Browser
	if opts.Remote {
		if opts.CommandExecutor == "" {
			_ = pw.Stop()
			return nil, errors.New("remote playwright requires a command executor URL")
		}
		browser, err = bt.Connect(opts.CommandExecutor)
	} else {
		browser, err = bt.Launch(LaunchOptions(opts, logger))
	}
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch %s: %w", opts.Browser, err)
	}

	bctx, err := browser.NewContext()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	logger.Debug("Browser started.", zap.String("browser", string(opts.Browser)), zap.String("version", browser.Version()))
	return &Browser{logger: logger, pw: pw, browser: browser, context: bctx, page: page}, nil
}

// current returns the open page.
func (b *Browser) current() (playwright.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.quit:
		return nil, remote.ErrSessionNotReady
	case b.page == nil || b.page.IsClosed():
		return nil, remote.ErrNoSuchWindow
	}
	return b.page, nil
}

func (b *Browser) Navigate(url string) error {
	p, err := b.current()
	if err != nil {
		return err
	}
	_, err = p.Goto(url)
	return classify(err)
}

func (b *Browser) CurrentURL() (string, error) {
	p, err := b.current()
	if err != nil {
		return "", err
	}
	return p.URL(), nil
}

func (b *Browser) ScreenshotPNG() ([]byte, error) {
	p, err := b.current()
	if err != nil {
		return nil, err
	}
	buf, err := p.Screenshot()
	return buf, classify(err)
}

// CloseWindow closes the page. The browser stays up until Quit.
func (b *Browser) CloseWindow() error {
	p, err := b.current()
	if err != nil {
		return err
	}
	return classify(p.Close())
}

func (b *Browser) AddCookie(c remote.Cookie) error {
	p, err := b.current()
	if err != nil {
		return err
	}
	cookie := playwright.OptionalCookie{Name: c.Name, Value: c.Value}
	if c.Domain != "" {
		cookie.Domain = playwright.String(c.Domain)
		path := c.Path
		if path == "" {
			path = "/"
		}
		cookie.Path = playwright.String(path)
	} else {
		cookie.URL = playwright.String(p.URL())
	}
	return classify(b.context.AddCookies([]playwright.OptionalCookie{cookie}))
}

// Quit closes the browser and stops the driver. It is idempotent.
func (b *Browser) Quit() error {
	b.mu.Lock()
	if b.quit {
		b.mu.Unlock()
		return nil
	}
	b.quit = true
	b.mu.Unlock()

	return errors.Join(b.browser.Close(), b.pw.Stop())
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
	p, err := b.current()
	if err != nil {
		return nil, remote.Wrap("find", &by, err)
	}
	sel, err := Selector(by)
	if err != nil {
		return nil, remote.Wrap("find", &by, err)
	}
	handles, err := p.QuerySelectorAll(sel)
	if err != nil {
		return nil, remote.Wrap("find", &by, classify(err))
	}
	return b.wrap(handles), nil
}

func (b *Browser) wrap(handles []playwright.ElementHandle) []remote.ElementRef {
	refs := make([]remote.ElementRef, 0, len(handles))
	for _, h := range handles {
		refs = append(refs, &element{b: b, h: h})
	}
	return refs
}

// Selector renders by in playwright's engine-prefixed selector syntax.
func Selector(by remote.By) (string, error) {
	if err := by.Validate(); err != nil {
		return "", err
	}
	if by.Strategy == remote.StrategyXPath {
		return "xpath=" + by.Value, nil
	}
	css, _ := by.CSS()
	return "css=" + css, nil
}

// classify maps playwright errors onto the driver error vocabulary.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not attached to the DOM"),
		strings.Contains(msg, "Execution context was destroyed"),
		strings.Contains(msg, "JSHandle is disposed"),
		strings.Contains(msg, "Element is detached"):
		return fmt.Errorf("%w: %v", remote.ErrStaleElement, err)
	case strings.Contains(msg, "Target page, context or browser has been closed"),
		strings.Contains(msg, "Target closed"):
		return fmt.Errorf("%w: %v", remote.ErrNoSuchWindow, err)
	case strings.Contains(msg, "Unexpected token"),
		strings.Contains(msg, "is not a valid selector"),
		strings.Contains(msg, "Failed to parse selector"):
		return fmt.Errorf("%w: %v", remote.ErrInvalidSelector, err)
	}
	return err
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
