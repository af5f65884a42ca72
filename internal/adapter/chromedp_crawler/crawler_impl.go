package chromedp_crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/user/jobscraper-service/internal/adapter/htmlpage"
	"github.com/user/jobscraper-service/internal/repository"
	"go.uber.org/zap"
)

// expandScript opens collapsed descriptions and scrolls result lists so
// lazily rendered cards are in the DOM. It returns the number of buttons
// clicked.
const expandScript = `(() => {
  window.scrollTo(0, document.body.scrollHeight);
  document.querySelectorAll('.jobs-search-results-list, .scaffold-layout__list, .scaffold-layout__list > div')
    .forEach(el => { el.scrollTop = el.scrollHeight; });
  let n = 0;
  document.querySelectorAll('button.show-more-less-html__button--more, button.jobs-description__footer-button, button[aria-label*="see more" i]')
    .forEach(b => { b.click(); n++; });
  return n;
})()`

const settleDelay = 700 * time.Millisecond

// Options configures the browser sessions handed to runs.
type Options struct {
	Headless        bool
	ProfileDir      string // persistent profile, keeps the login between runs
	BlockImages     bool
	PageLoadTimeout time.Duration
	AcceptLanguage  string
	Identities      *IdentityRotator
}

// SessionFactory starts one Chrome instance per run.
type SessionFactory struct {
	opts   Options
	logger *zap.Logger
}

// NewSessionFactory creates a BrowserFactory backed by chromedp.
func NewSessionFactory(opts Options, logger *zap.Logger) repository.BrowserFactory {
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = 30 * time.Second
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = "en-US,en;q=0.9"
	}
	if opts.Identities == nil {
		opts.Identities = NewIdentityRotator(nil, nil)
	}
	return &SessionFactory{opts: opts, logger: logger}
}

// Open launches Chrome and returns a session exclusively owned by the caller.
func (f *SessionFactory) Open(ctx context.Context) (repository.Browser, error) {
	proxy, userAgent := f.opts.Identities.Next()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.opts.Headless),
		chromedp.Flag("disable-gpu", f.opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
	)
	if proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(proxy))
	}
	if f.opts.ProfileDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(f.opts.ProfileDir))
	}
	if f.opts.BlockImages {
		allocOpts = append(allocOpts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	sugar := f.logger.Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Warnf),
	)

	// The first Run starts the browser; abort it if the caller gives up.
	stop := context.AfterFunc(ctx, browserCancel)
	err := chromedp.Run(browserCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": f.opts.AcceptLanguage}),
	)
	stop()
	if err != nil {
		browserCancel()
		allocCancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("start browser: %w", err)
	}

	f.logger.Info("browser session started",
		zap.Bool("headless", f.opts.Headless),
		zap.Bool("proxy", proxy != ""),
		zap.String("profile_dir", f.opts.ProfileDir),
	)
	return &session{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		timeout:       f.opts.PageLoadTimeout,
		logger:        f.logger,
	}, nil
}

// session is a single Chrome tab reused for every page of a run.
type session struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	timeout       time.Duration
	logger        *zap.Logger
}

func (s *session) Load(ctx context.Context, url string) (repository.PageHandle, error) {
	if s.browserCtx.Err() != nil {
		return nil, repository.ErrSessionLost
	}

	tctx, cancel := context.WithTimeout(s.browserCtx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	var location, title, html string
	err := chromedp.Run(tctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(expandContent),
		chromedp.Location(&location),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, classifyLoadError(s.browserCtx, ctx, tctx, url, err)
	}

	s.logger.Debug("page loaded",
		zap.String("url", url),
		zap.String("location", location),
		zap.String("title", title),
		zap.Duration("duration", time.Since(start)),
	)
	page, err := htmlpage.New(location, html)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", repository.ErrNavigationFailed, url, err)
	}
	return page, nil
}

// Close shuts Chrome down gracefully, then kills the process if needed.
func (s *session) Close() error {
	defer s.allocCancel()
	defer s.browserCancel()
	if err := chromedp.Cancel(s.browserCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

func expandContent(ctx context.Context) error {
	var clicked int
	if err := chromedp.Evaluate(expandScript, &clicked).Do(ctx); err != nil {
		// Pages without expandable sections still load.
		return nil
	}
	return chromedp.Sleep(settleDelay).Do(ctx)
}

// classifyLoadError maps a failed chromedp run onto the repository errors.
func classifyLoadError(browserCtx, callerCtx, loadCtx context.Context, url string, err error) error {
	switch {
	case browserCtx.Err() != nil, errors.Is(err, chromedp.ErrInvalidContext):
		return fmt.Errorf("%w: %v", repository.ErrSessionLost, err)
	case callerCtx.Err() != nil:
		return callerCtx.Err()
	case errors.Is(loadCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s", repository.ErrCrawlTimeout, url)
	default:
		return fmt.Errorf("%w: %s: %w", repository.ErrNavigationFailed, url, err)
	}
}
