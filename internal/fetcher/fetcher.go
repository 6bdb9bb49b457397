package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"

	"forum-watch/internal/config"
	"forum-watch/internal/observability"
)

type Fetcher struct {
	client      *resty.Client
	cfg         *config.Config
	logger      *observability.Logger
	robotsCache *RobotsCache
	getRobots   robotsGetter
	rateLimiter *RateLimiter
}

type FetchResponse struct {
	StatusCode int
	Body       []byte // UTF-8
	URL        string
	Headers    http.Header
}

func NewFetcher(cfg *config.Config, logger *observability.Logger) *Fetcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.GetConnectTimeout(),
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: cfg.GetConnectTimeout(),
		MaxIdleConns:        cfg.HTTP.MaxIdleConnections,
		MaxIdleConnsPerHost: cfg.HTTP.MaxIdleConnectionsPerHost,
		IdleConnTimeout:     cfg.GetIdleConnectionTimeout(),
	}

	f := &Fetcher{
		cfg:         cfg,
		logger:      logger,
		robotsCache: NewRobotsCache(cfg.GetRobotsCacheTTL()),
		rateLimiter: NewRateLimiter(cfg.RateLimit.RPM, cfg.RateLimit.Burst),
	}

	f.client = resty.New().
		SetTransport(transport).
		SetTimeout(cfg.GetTotalTimeout()).
		SetLogger(&restyLogger{logger: logger}).
		SetHeader("User-Agent", cfg.HTTP.UserAgent).
		SetHeader("Accept-Language", cfg.HTTP.AcceptLanguage).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetRetryCount(cfg.HTTP.MaxRetries).
		SetRetryWaitTime(cfg.GetBackoffMin()).
		SetRetryMaxWaitTime(cfg.GetBackoffMax()).
		SetRetryAfter(f.retryAfter).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			// Retry on network errors, 5xx or 429
			if err != nil {
				return true
			}
			return resp.StatusCode() >= 500 || resp.StatusCode() == http.StatusTooManyRequests
		})

	// Без повторов: robots.txt не критичен
	f.getRobots = restyRobotsGetter(resty.New().
		SetTransport(transport).
		SetTimeout(cfg.GetTotalTimeout()).
		SetLogger(&restyLogger{logger: logger}).
		SetHeader("User-Agent", cfg.HTTP.UserAgent))

	return f
}

// Fetch скачивает страницу с учётом robots.txt, лимита и повторов
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*FetchResponse, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if f.cfg.Robots.Enabled {
		if err := f.robotsCache.Check(ctx, parsedURL, f.cfg.HTTP.UserAgent, f.getRobots); err != nil {
			return nil, err
		}
	}

	if err := f.rateLimiter.Wait(ctx, parsedURL.Host); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	resp, err := f.client.R().SetContext(ctx).Get(urlStr)
	if err != nil {
		return nil, fmt.Errorf("fetch failed after %d retries: %w", f.cfg.HTTP.MaxRetries, err)
	}

	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("fetch failed after %d retries: unexpected status %d", f.cfg.HTTP.MaxRetries, resp.StatusCode())
	}

	contentType := resp.Header().Get("Content-Type")
	body, err := decodeBody(resp.Body(), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode body: %w", err)
	}

	finalURL := urlStr
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		finalURL = resp.RawResponse.Request.URL.String()
	}

	f.logger.Debug("Response received",
		"url", finalURL,
		"status", resp.StatusCode(),
		"content_type", contentType,
		"attempts", resp.Request.Attempt,
		"body_bytes", len(body),
		"elapsed", resp.Time().String(),
	)

	return &FetchResponse{
		StatusCode: resp.StatusCode(),
		Body:       body,
		URL:        finalURL,
		Headers:    resp.Header(),
	}, nil
}

func (f *Fetcher) retryAfter(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
	attempt := 1
	if resp != nil && resp.Request != nil {
		attempt = resp.Request.Attempt
	}
	backoff := f.calculateBackoff(attempt)
	f.logger.Warn("Retrying request", "attempt", attempt, "backoff", backoff.String())
	return backoff, nil
}

func (f *Fetcher) calculateBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	minMS := f.cfg.Backoff.MinMS
	maxMS := f.cfg.Backoff.MaxMS
	jitterPct := f.cfg.Backoff.JitterPct

	// Exponential backoff: min * 2^(attempt-1)
	exponential := maxMS
	if attempt <= 30 {
		exponential = minMS * (1 << uint(attempt-1))
	}
	if exponential > maxMS || exponential <= 0 {
		exponential = maxMS
	}

	// Apply jitter: ±jitterPct%
	jitterRange := float64(exponential) * float64(jitterPct) / 100
	jitter := (rand.Float64() - 0.5) * 2 * jitterRange
	finalMS := float64(exponential) + jitter

	if finalMS < float64(minMS) {
		finalMS = float64(minMS)
	}

	return time.Duration(math.Max(finalMS, 0)) * time.Millisecond
}

// decodeBody переводит тело в UTF-8 по Content-Type и <meta charset>
func decodeBody(body []byte, contentType string) ([]byte, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(reader)
}

// restyLogger направляет внутренние сообщения resty в наш логгер
type restyLogger struct {
	logger *observability.Logger
}

func (l *restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error("resty: " + fmt.Sprintf(format, v...))
}

func (l *restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn("resty: " + fmt.Sprintf(format, v...))
}

func (l *restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug("resty: " + fmt.Sprintf(format, v...))
}
