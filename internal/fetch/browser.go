package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BrowserConfig configures the headless browser strategy.
type BrowserConfig struct {
	// Bin is the Chromium binary. Empty lets the launcher find or download one.
	Bin       string
	Timeout   time.Duration
	Idle      time.Duration
	UserAgent string
}

// annotateImages records each image's natural size as data attributes so the
// serialized DOM carries rendered dimensions.
const annotateImages = `() => {
	for (const img of document.querySelectorAll('img')) {
		img.setAttribute('data-natural-width', String(img.naturalWidth || 0));
		img.setAttribute('data-natural-height', String(img.naturalHeight || 0));
	}
	return document.images.length;
}`

// BrowserFetcher renders posts in a shared headless Chromium. The process is
// launched on first use; every fetch gets its own incognito context.
type BrowserFetcher struct {
	cfg BrowserConfig

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewBrowserFetcher returns a browser strategy. Nothing is launched until the
// first Fetch.
func NewBrowserFetcher(cfg BrowserConfig) *BrowserFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Idle <= 0 {
		cfg.Idle = 500 * time.Millisecond
	}
	return &BrowserFetcher{cfg: cfg}
}

func (f *BrowserFetcher) Name() string { return "browser" }

func (f *BrowserFetcher) ensure() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser != nil {
		return f.browser, nil
	}

	l := launcher.New().Headless(true).Set("no-sandbox").Set("disable-gpu")
	if f.cfg.Bin != "" {
		l = l.Bin(f.cfg.Bin)
	}
	// The process outlives the request that launched it, so it is not bound
	// to the request context.
	controlURL, err := l.Launch()
	if err != nil {
		return nil, eris.Wrap(err, "browser: launch")
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, eris.Wrap(err, "browser: connect")
	}

	zap.L().Info("browser: launched", zap.String("control_url", controlURL))
	f.launcher = l
	f.browser = b
	return b, nil
}

// Fetch navigates to url, waits for the network to go idle and returns the
// serialized DOM.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	b, err := f.ensure()
	if err != nil {
		return nil, err
	}

	incognito, err := b.Incognito()
	if err != nil {
		return nil, eris.Wrap(err, "browser: incognito context")
	}
	defer func() {
		if err := incognito.Close(); err != nil {
			zap.L().Debug("browser: close context", zap.Error(err))
		}
	}()

	raw, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, eris.Wrap(err, "browser: new page")
	}
	// Close through the unbound page so it still runs after ctx expires.
	defer func() {
		if err := raw.Close(); err != nil {
			zap.L().Debug("browser: close page", zap.Error(err))
		}
	}()
	page := raw.Context(ctx)

	if f.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: f.cfg.UserAgent}); err != nil {
			zap.L().Debug("browser: set user agent", zap.Error(err))
		}
	}

	wait := page.WaitRequestIdle(f.cfg.Idle, nil, nil, nil)
	if err := page.Navigate(url); err != nil {
		return nil, eris.Wrapf(err, "browser: navigate %s", url)
	}
	wait()
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "browser: wait for idle")
	}

	if _, err := page.Eval(annotateImages); err != nil {
		return nil, eris.Wrap(err, "browser: annotate images")
	}

	html, err := page.HTML()
	if err != nil {
		return nil, eris.Wrap(err, "browser: serialize dom")
	}

	if bt := DetectBlock(nil, []byte(html)); bt != BlockNone {
		return nil, eris.Wrapf(ErrBlocked, "browser: %s", bt)
	}

	return &Page{URL: url, HTML: html, Mode: ModeDOM, Strategy: f.Name()}, nil
}

// Close shuts down the shared browser process, if one was launched.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	f.launcher.Kill()
	f.launcher.Cleanup()
	f.browser, f.launcher = nil, nil
	return eris.Wrap(err, "browser: close")
}
