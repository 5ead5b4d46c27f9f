// internal/drivers/static/browser.go

// Package static is a driverless browser: pages are fetched over HTTP and
// parsed into a DOM that supports CSS and XPath lookups, link navigation,
// form filling and submission. It runs no JavaScript and has no layout, so
// positions are document order and screenshots are blank.
package static

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/asli/internal/network"
	"github.com/xkilldash9x/asli/pkg/remote"
)

// Screenshot dimensions of the blank page image.
const (
	ScreenshotWidth  = 1280
	ScreenshotHeight = 720
)

const blankURL = "about:blank"

// Browser is a single-window HTTP browser implementing remote.Handle.
type Browser struct {
	client *http.Client
	logger *zap.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	doc    *html.Node
	url    *url.URL
	// gen increments on every page load; element references from older
	// generations are stale.
	gen    uint64
	closed bool
	quit   bool
}

var _ remote.Handle = (*Browser)(nil)

// Launch starts a static browser. opts.Options may carry a *network.ClientConfig;
// remote mode is not supported.
func Launch(ctx context.Context, opts remote.LaunchOptions, logger *zap.Logger) (*Browser, error) {
	if opts.Remote {
		return nil, fmt.Errorf("%w: static browser cannot run remotely", remote.ErrUnsupported)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := network.NewDefaultClientConfig()
	if c, ok := opts.Options.(*network.ClientConfig); ok && c != nil {
		clientCfg = c
	}
	if clientCfg.Logger == nil {
		clientCfg.Logger = logger
	}
	client, err := network.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}
	return New(client, logger), nil
}

// New wraps an existing client. The client should carry a cookie jar.
func New(client *http.Client, logger *zap.Logger) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Browser{
		client: client,
		logger: logger.Named("static"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Navigate loads target, following redirects, and replaces the document.
func (b *Browser) Navigate(target string) error {
	u, err := b.resolve(target)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(b.ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request for '%s': %w", u, err)
	}
	return b.load(req)
}

func (b *Browser) load(req *http.Request) error {
	if err := b.usable(); err != nil {
		return err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if cur := b.currentURL(); cur != nil && req.Header.Get("Referer") == "" {
		req.Header.Set("Referer", cur.String())
	}

	b.logger.Debug("Executing request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b.logger.Warn("Request resulted in error status code",
			zap.Int("status", resp.StatusCode), zap.String("url", resp.Request.URL.String()))
	}

	var doc *html.Node
	if ct := strings.ToLower(resp.Header.Get("Content-Type")); ct == "" || strings.Contains(ct, "html") {
		doc, err = htmlquery.Parse(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to parse HTML response from '%s': %w", resp.Request.URL, err)
		}
	} else {
		b.logger.Debug("Response is not HTML, page is empty.", zap.String("content_type", ct))
		_, _ = io.Copy(io.Discard, resp.Body)
		doc = &html.Node{Type: html.DocumentNode}
	}

	b.mu.Lock()
	b.doc = doc
	b.url = resp.Request.URL
	b.gen++
	b.closed = false
	b.mu.Unlock()
	return nil
}

// resolve parses target against the current page.
func (b *Browser) resolve(target string) (*url.URL, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve URL '%s': %w", target, err)
	}
	if cur := b.currentURL(); cur != nil && !parsed.IsAbs() {
		return cur.ResolveReference(parsed), nil
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("initial navigation target must be an absolute URL: '%s'", target)
	}
	return parsed, nil
}

func (b *Browser) currentURL() *url.URL {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.url
}

func (b *Browser) usable() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.quit {
		return remote.ErrSessionNotReady
	}
	return nil
}

// page returns the live document and its generation.
func (b *Browser) page() (*html.Node, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.quit:
		return nil, 0, remote.ErrSessionNotReady
	case b.closed:
		return nil, 0, remote.ErrNoSuchWindow
	case b.doc == nil:
		return &html.Node{Type: html.DocumentNode}, b.gen, nil
	}
	return b.doc, b.gen, nil
}

// live reports whether an element of generation gen still belongs to the page.
func (b *Browser) live(gen uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.quit:
		return remote.ErrSessionNotReady
	case b.closed:
		return remote.ErrNoSuchWindow
	case gen != b.gen:
		return remote.ErrStaleElement
	}
	return nil
}

func (b *Browser) FindOne(by remote.By) (remote.ElementRef, error) {
	doc, gen, err := b.page()
	if err != nil {
		return nil, remote.Wrap("find", &by, err)
	}
	return findOne(b, doc, gen, by)
}

func (b *Browser) FindAll(by remote.By) ([]remote.ElementRef, error) {
	doc, gen, err := b.page()
	if err != nil {
		return nil, remote.Wrap("find", &by, err)
	}
	return findAll(b, doc, gen, by)
}

func (b *Browser) CurrentURL() (string, error) {
	if _, _, err := b.page(); err != nil {
		return "", err
	}
	if u := b.currentURL(); u != nil {
		return u.String(), nil
	}
	return blankURL, nil
}

// ScreenshotPNG renders a blank page-sized PNG; there is no layout to paint.
func (b *Browser) ScreenshotPNG() ([]byte, error) {
	if _, _, err := b.page(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, ScreenshotWidth, ScreenshotHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CloseWindow drops the page. Navigate opens a new one.
func (b *Browser) CloseWindow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.quit {
		return remote.ErrSessionNotReady
	}
	if b.closed {
		return remote.ErrNoSuchWindow
	}
	b.closed = true
	b.doc = nil
	b.url = nil
	b.gen++
	return nil
}

// AddCookie stores c for the current page, or for c.Domain when set.
func (b *Browser) AddCookie(c remote.Cookie) error {
	if _, _, err := b.page(); err != nil {
		return err
	}
	if b.client.Jar == nil {
		return fmt.Errorf("%w: client has no cookie jar", remote.ErrUnsupported)
	}
	target := b.currentURL()
	if c.Domain != "" {
		target = &url.URL{Scheme: "http", Host: strings.TrimPrefix(c.Domain, ".")}
		if cur := b.currentURL(); cur != nil {
			target.Scheme = cur.Scheme
		}
	}
	if target == nil {
		return fmt.Errorf("cannot set cookie %q without a page or domain", c.Name)
	}
	path := c.Path
	if path == "" {
		path = "/"
	}
	b.client.Jar.SetCookies(target, []*http.Cookie{{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: path}})
	return nil
}

// Quit drops the page and releases idle connections. It is idempotent.
func (b *Browser) Quit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.quit {
		return nil
	}
	b.quit = true
	b.doc = nil
	b.gen++
	b.cancel()
	b.client.CloseIdleConnections()
	return nil
}

// selectNodes runs a selector below root. XPath is evaluated relative to root; every
// other strategy is translated to CSS and matches descendants only.
func selectNodes(root *html.Node, by remote.By) ([]*html.Node, error) {
	if err := by.Validate(); err != nil {
		return nil, err
	}
	if by.Strategy == remote.StrategyXPath {
		nodes, err := htmlquery.QueryAll(root, by.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", remote.ErrInvalidSelector, err)
		}
		out := nodes[:0]
		for _, n := range nodes {
			if n.Type == html.ElementNode {
				out = append(out, n)
			}
		}
		return out, nil
	}

	css, _ := by.CSS()
	matcher, err := cascadia.Compile(css)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrInvalidSelector, err)
	}
	return goquery.NewDocumentFromNode(root).FindMatcher(matcher).Nodes, nil
}

func findOne(b *Browser, root *html.Node, gen uint64, by remote.By) (remote.ElementRef, error) {
	nodes, err := selectNodes(root, by)
	if err != nil {
		return nil, remote.Wrap("find", &by, err)
	}
	if len(nodes) == 0 {
		return nil, remote.Wrap("find", &by, remote.ErrNoSuchElement)
	}
	return &element{b: b, node: nodes[0], gen: gen}, nil
}

func findAll(b *Browser, root *html.Node, gen uint64, by remote.By) ([]remote.ElementRef, error) {
	nodes, err := selectNodes(root, by)
	if err != nil {
		return nil, remote.Wrap("find", &by, err)
	}
	out := make([]remote.ElementRef, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{b: b, node: n, gen: gen})
	}
	return out, nil
}
