// Package browser renders web pages with headless Chrome.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Page is the rendered state of a URL after scripts have run.
type Page struct {
	URL    string   `json:"url"`
	HTML   string   `json:"html"`
	Images []string `json:"images"`
}

// Options configures a Renderer.
type Options struct {
	Headless  bool
	Bin       string        // Chrome binary; empty lets rod locate or download one
	Timeout   time.Duration // per render
	CacheSize int           // rendered pages kept per URL; 0 disables caching
}

// Renderer lazily launches one Chrome instance and renders pages in fresh tabs.
type Renderer struct {
	mu       sync.Mutex
	opts     Options
	launcher *launcher.Launcher
	browser  *rod.Browser
	cache    *lru.Cache[string, Page]
	fetch    func(ctx context.Context, url string) (Page, error)
	logger   *zap.Logger
}

// New creates a Renderer. Chrome is not started until the first Render.
func New(opts Options, logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	r := &Renderer{opts: opts, logger: logger}
	if opts.CacheSize > 0 {
		c, err := lru.New[string, Page](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("render cache: %w", err)
		}
		r.cache = c
	}
	r.fetch = r.renderWithChrome
	return r, nil
}

// Render returns the rendered HTML and absolute image URLs of url.
// Successful renders are cached; failures are not.
func (r *Renderer) Render(ctx context.Context, url string) (Page, error) {
	if url == "" {
		return Page{}, errors.New("url is required")
	}
	if r.cache != nil {
		if p, ok := r.cache.Get(url); ok {
			r.logger.Debug("render cache hit", zap.String("url", url))
			return p, nil
		}
	}

	start := time.Now()
	p, err := r.fetch(ctx, url)
	if err != nil {
		return Page{}, err
	}
	r.logger.Debug("page rendered",
		zap.String("url", url),
		zap.Int("html_bytes", len(p.HTML)),
		zap.Int("images", len(p.Images)),
		zap.Duration("took", time.Since(start)),
	)
	if r.cache != nil {
		r.cache.Add(url, p)
	}
	return p, nil
}

// Close shuts Chrome down if it was started.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	if r.launcher != nil {
		r.launcher.Cleanup()
		r.launcher = nil
	}
	return err
}

func (r *Renderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().
		Headless(r.opts.Headless).
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check")
	if r.opts.Bin != "" {
		l = l.Bin(r.opts.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch Chrome: %w", err)
	}
	r.logger.Info("Chrome launched", zap.String("cdp", controlURL), zap.Bool("headless", r.opts.Headless))

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect to Chrome: %w", err)
	}
	r.launcher = l
	r.browser = b
	return b, nil
}

func (r *Renderer) renderWithChrome(ctx context.Context, url string) (Page, error) {
	b, err := r.ensureBrowser()
	if err != nil {
		return Page{}, err
	}

	tab, err := b.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return Page{}, fmt.Errorf("open tab: %w", err)
	}
	// Close with a fresh context so the tab is released even after a timeout.
	defer func() { _ = tab.Context(context.Background()).Close() }()

	page := tab.Timeout(r.opts.Timeout)
	if err := page.Navigate(url); err != nil {
		return Page{}, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return Page{}, fmt.Errorf("wait load: %w", err)
	}
	// Quiz pages often fill the DOM from scripts after load.
	if err := page.WaitStable(300 * time.Millisecond); err != nil {
		r.logger.Debug("page did not settle", zap.String("url", url), zap.Error(err))
	}

	html, err := page.HTML()
	if err != nil {
		return Page{}, fmt.Errorf("read html: %w", err)
	}

	out := Page{URL: url, HTML: html, Images: []string{}}
	if info, err := page.Info(); err == nil && info != nil && info.URL != "" {
		out.URL = info.URL
	}

	imgs, err := page.Elements("img")
	if err != nil {
		return out, nil
	}
	seen := make(map[string]struct{}, len(imgs))
	for _, el := range imgs {
		// The src property is resolved to an absolute URL by the browser.
		v, err := el.Property("src")
		if err != nil {
			continue
		}
		src := v.Str()
		if src == "" {
			continue
		}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		out.Images = append(out.Images, src)
	}
	return out, nil
}
