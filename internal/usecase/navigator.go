package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/user/jobscraper-service/internal/repository"
	"github.com/user/jobscraper-service/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NavigatorConfig controls retries and interstitial handling.
type NavigatorConfig struct {
	MaxAttempts         int
	BaseDelay           time.Duration // doubled after every failed attempt
	RatePerSec          float64       // navigation ceiling, 0 disables it
	VerificationTimeout time.Duration
	// Interstitial markers, matched case-insensitively against the final
	// URL and the document title.
	URLMarkers   []string
	TitleMarkers []string
}

// DefaultNavigatorConfig returns the retry policy used in production.
func DefaultNavigatorConfig() NavigatorConfig {
	return NavigatorConfig{
		MaxAttempts:         3,
		BaseDelay:           1500 * time.Millisecond,
		RatePerSec:          0.5,
		VerificationTimeout: 5 * time.Minute,
		URLMarkers:          []string{"/checkpoint", "/challenge", "/authwall", "/uas/login", "/login"},
		TitleMarkers:        []string{"security verification", "security check", "sign in", "log in"},
	}
}

// VerificationGate lets a human clear a login or verification wall.
type VerificationGate interface {
	// AwaitClearance blocks until the wall at url is reported cleared or ctx ends.
	AwaitClearance(ctx context.Context, url string) error
}

// Navigator loads pages through a browser session with bounded retries.
// It does not own the session.
type Navigator struct {
	browser repository.Browser
	cfg     NavigatorConfig
	limiter *rate.Limiter
	gate    VerificationGate
	logger  *zap.Logger
}

// NewNavigator wraps browser. gate may be nil, in which case verification
// walls are reported immediately.
func NewNavigator(browser repository.Browser, cfg NavigatorConfig, gate VerificationGate, logger *zap.Logger) *Navigator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.VerificationTimeout <= 0 {
		cfg.VerificationTimeout = DefaultNavigatorConfig().VerificationTimeout
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return &Navigator{
		browser: browser,
		cfg:     cfg,
		limiter: limiter,
		gate:    gate,
		logger:  logger,
	}
}

// Navigate returns the rendered page at url.
//
// Load failures are retried up to MaxAttempts times with doubling delay and
// then reported as ErrNavigationFailed. A verification wall is never
// retried: the navigator waits for the gate (bounded by
// VerificationTimeout), loads the page once more, and otherwise reports
// ErrVerificationRequired. ErrSessionLost and cancellation return at once.
func (n *Navigator) Navigate(ctx context.Context, url string) (repository.PageHandle, error) {
	page, err := n.loadWithRetry(ctx, url)
	if err != nil {
		return nil, err
	}
	if !n.isInterstitial(page) {
		return page, nil
	}

	metrics.NavigationErrors.WithLabelValues("verification").Inc()
	n.logger.Warn("verification wall detected", zap.String("url", url), zap.String("landed_on", page.URL()))
	if n.gate == nil {
		return nil, fmt.Errorf("%w: redirected to %s", repository.ErrVerificationRequired, page.URL())
	}
	if err := n.awaitClearance(ctx, url); err != nil {
		return nil, err
	}

	page, err = n.loadWithRetry(ctx, url)
	if err != nil {
		return nil, err
	}
	if n.isInterstitial(page) {
		return nil, fmt.Errorf("%w: wall still present at %s after clearance", repository.ErrVerificationRequired, page.URL())
	}
	return page, nil
}

func (n *Navigator) loadWithRetry(ctx context.Context, url string) (repository.PageHandle, error) {
	var lastErr error
	for attempt := 1; attempt <= n.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := n.cfg.BaseDelay << (attempt - 2)
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
		}
		if err := n.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}

		page, err := n.browser.Load(ctx, url)
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, repository.ErrSessionLost) {
			metrics.NavigationErrors.WithLabelValues("session_lost").Inc()
			return nil, err
		}

		errType := "navigation"
		if errors.Is(err, repository.ErrCrawlTimeout) {
			errType = "timeout"
		}
		metrics.NavigationErrors.WithLabelValues(errType).Inc()
		n.logger.Warn("page load failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", n.cfg.MaxAttempts),
			zap.Error(err),
		)
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", repository.ErrNavigationFailed, url, n.cfg.MaxAttempts, lastErr)
}

func (n *Navigator) awaitClearance(ctx context.Context, url string) error {
	wctx, cancel := context.WithTimeout(ctx, n.cfg.VerificationTimeout)
	defer cancel()

	err := n.gate.AwaitClearance(wctx, url)
	switch {
	case err == nil:
		n.logger.Info("verification cleared", zap.String("url", url))
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: not cleared within %s", repository.ErrVerificationRequired, n.cfg.VerificationTimeout)
	default:
		return err
	}
}

func (n *Navigator) isInterstitial(page repository.PageHandle) bool {
	u := strings.ToLower(page.URL())
	for _, m := range n.cfg.URLMarkers {
		if strings.Contains(u, m) {
			return true
		}
	}
	title := strings.ToLower(page.Title())
	for _, m := range n.cfg.TitleMarkers {
		if strings.HasPrefix(title, m) {
			return true
		}
	}
	return false
}
