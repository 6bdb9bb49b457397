package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"forum-watch/internal/config"
	"forum-watch/internal/observability"
)

// RodFetcher получает HTML через headless Chrome, когда таблица
// раздела дорисовывается скриптами
type RodFetcher struct {
	cfg         *config.Config
	logger      *observability.Logger
	launcher    *launcher.Launcher
	browser     *rod.Browser
	robotsCache *RobotsCache
	getRobots   robotsGetter
	rateLimiter *RateLimiter
}

func NewRodFetcher(cfg *config.Config, logger *observability.Logger) (*RodFetcher, error) {
	l := launcher.New().Headless(true)
	if cfg.Rod.ChromePath != "" {
		l = l.Bin(cfg.Rod.ChromePath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	logger.Info("Headless browser started", "control_url", controlURL)

	return &RodFetcher{
		cfg:         cfg,
		logger:      logger,
		launcher:    l,
		browser:     browser,
		robotsCache: NewRobotsCache(cfg.GetRobotsCacheTTL()),
		getRobots: restyRobotsGetter(resty.New().
			SetTimeout(cfg.GetTotalTimeout()).
			SetLogger(&restyLogger{logger: logger}).
			SetHeader("User-Agent", cfg.HTTP.UserAgent)),
		rateLimiter: NewRateLimiter(cfg.RateLimit.RPM, cfg.RateLimit.Burst),
	}, nil
}

func (r *RodFetcher) Fetch(ctx context.Context, urlStr string) (*FetchResponse, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	// Браузер подчиняется тем же правилам robots.txt, что и HTTP-клиент
	if r.cfg.Robots.Enabled {
		if err := r.robotsCache.Check(ctx, parsedURL, r.cfg.HTTP.UserAgent, r.getRobots); err != nil {
			return nil, err
		}
	}

	if err := r.rateLimiter.Wait(ctx, parsedURL.Host); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	page, err := r.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			r.logger.Warn("Failed to close page", "error", err.Error())
		}
	}()

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      r.cfg.HTTP.UserAgent,
		AcceptLanguage: r.cfg.HTTP.AcceptLanguage,
	}); err != nil {
		return nil, fmt.Errorf("failed to set user agent: %w", err)
	}

	timed := page.Timeout(r.cfg.GetRodPageTimeout())
	defer timed.CancelTimeout()

	if err := timed.Navigate(urlStr); err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	waitPage := page.Timeout(r.cfg.GetRodWaitLoadTimeout())
	defer waitPage.CancelTimeout()

	if err := waitPage.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load failed: %w", err)
	}

	if delay := r.cfg.GetRodLazyLoadDelay(); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	html, err := timed.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read page HTML: %w", err)
	}

	finalURL := urlStr
	if info, err := timed.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	return &FetchResponse{
		StatusCode: 200,
		Body:       []byte(html),
		URL:        finalURL,
	}, nil
}

// Close закрывает браузер и завершает процесс Chrome
func (r *RodFetcher) Close() error {
	err := r.browser.Close()
	r.launcher.Kill()
	return err
}
