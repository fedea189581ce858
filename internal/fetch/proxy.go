package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/SquizAI/recipies01/internal/resilience"
)

// ProxyConfig configures the relay strategy.
type ProxyConfig struct {
	// BaseURL is the relay endpoint; the target is passed as ?url=.
	BaseURL   string
	Timeout   time.Duration
	RPS       float64
	UserAgent string
	MaxBytes  int64
}

// ProxyFetcher retrieves raw markup through a public CORS relay.
type ProxyFetcher struct {
	cfg     ProxyConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewProxyFetcher returns a relay strategy with its own rate limiter.
func NewProxyFetcher(cfg ProxyConfig) *ProxyFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 2
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 5 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}
	return &ProxyFetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), 1),
	}
}

func (f *ProxyFetcher) Name() string { return "proxy" }

// Fetch asks the relay for the post's markup.
func (f *ProxyFetcher) Fetch(ctx context.Context, target string) (*Page, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "proxy: rate limit wait")
	}

	relay, err := url.Parse(f.cfg.BaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "proxy: parse relay url")
	}
	q := relay.Query()
	q.Set("url", target)
	relay.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, relay.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "proxy: create request")
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "proxy: request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes))
	if err != nil {
		return nil, eris.Wrap(err, "proxy: read body")
	}

	if bt := DetectBlock(resp, body); bt != BlockNone {
		return nil, eris.Wrapf(ErrBlocked, "proxy: %s (status %d)", bt, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		err := eris.Errorf("proxy: status %d", resp.StatusCode)
		if resilience.TransientStatus(resp.StatusCode) {
			return nil, resilience.Transient(err, resp.StatusCode)
		}
		return nil, err
	}
	if len(body) == 0 {
		return nil, eris.New("proxy: empty body")
	}

	return &Page{URL: target, HTML: string(body), Mode: ModeMarkup, Strategy: f.Name()}, nil
}
