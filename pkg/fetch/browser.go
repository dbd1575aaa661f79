package fetch

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/video-analitics/queuesorter/pkg/logger"
)

const defaultTabTimeout = 60 * time.Second

// BrowserFetcher renders pages in a shared headless Chrome. Tabs are opened
// one at a time since retrieval is sequential anyway.
type BrowserFetcher struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	urlTemplate   string
	settle        time.Duration
	mu            sync.Mutex
}

type BrowserOption func(*BrowserFetcher)

func WithBrowserURLTemplate(tpl string) BrowserOption {
	return func(b *BrowserFetcher) {
		b.urlTemplate = tpl
	}
}

// WithSettleDelay waits after the body is ready so late scripts can finish.
func WithSettleDelay(d time.Duration) BrowserOption {
	return func(b *BrowserFetcher) {
		b.settle = d
	}
}

func NewBrowserFetcher(ctx context.Context, opts ...BrowserOption) (*BrowserFetcher, error) {
	b := &BrowserFetcher{}
	for _, opt := range opts {
		opt(b)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execAllocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	b.allocCancel = allocCancel
	b.browserCtx = browserCtx
	b.browserCancel = browserCancel

	logger.Log.Info().Dur("settle", b.settle).Msg("browser fetcher started")
	return b, nil
}

func (b *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	defer tabCancel()

	timeout := defaultTabTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	tabTimeoutCtx, tabTimeoutCancel := context.WithTimeout(tabCtx, timeout)
	defer tabTimeoutCancel()

	// stop the tab if the caller goes away
	stop := context.AfterFunc(ctx, tabTimeoutCancel)
	defer stop()

	var html string
	tasks := chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetBlockedURLs([]string{
				"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg", "*.ico",
				"*.mp4", "*.webm",
				"*.woff", "*.woff2", "*.ttf",
				"*google-analytics*", "*googletagmanager*",
			}).Do(ctx)
		}),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if b.settle > 0 {
		tasks = append(tasks, chromedp.Sleep(b.settle))
	}
	tasks = append(tasks, chromedp.OuterHTML("html", &html))

	if err := chromedp.Run(tabTimeoutCtx, tasks); err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}

	logger.Log.Debug().Str("url", url).Int("html_len", len(html)).Msg("page rendered")
	return []byte(html), nil
}

func (b *BrowserFetcher) FetchItem(ctx context.Context, id string) ([]byte, error) {
	if b.urlTemplate == "" {
		return nil, fmt.Errorf("no detail url template configured")
	}
	return b.Fetch(ctx, ItemURL(b.urlTemplate, id))
}

func (b *BrowserFetcher) Close() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	logger.Log.Info().Msg("browser fetcher closed")
}

// execAllocatorOptions works both locally and inside the headless-shell image.
func execAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("js-flags", "--max-old-space-size=512"),
		chromedp.Flag("window-size", "1280,1024"),
		chromedp.UserAgent(defaultUserAgent),
	)

	chromePaths := []string{
		"/headless-shell/headless-shell",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range chromePaths {
		if _, err := os.Stat(p); err == nil {
			opts = append(opts, chromedp.ExecPath(p))
			break
		}
	}

	return opts
}
