package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/temoto/robotstxt"
)

// robotsGetter скачивает robots.txt: статус и тело
type robotsGetter func(ctx context.Context, robotsURL string) (int, []byte, error)

// restyRobotsGetter читает robots.txt клиентом без повторов
func restyRobotsGetter(client *resty.Client) robotsGetter {
	return func(ctx context.Context, robotsURL string) (int, []byte, error) {
		resp, err := client.R().SetContext(ctx).Get(robotsURL)
		if err != nil {
			return 0, nil, err
		}
		return resp.StatusCode(), resp.Body(), nil
	}
}

type RobotsCache struct {
	cache map[string]*robotsEntry
	ttl   time.Duration
	mu    sync.RWMutex
}

type robotsEntry struct {
	data      *robotstxt.RobotsData
	expiresAt time.Time
}

func NewRobotsCache(ttl time.Duration) *RobotsCache {
	return &RobotsCache{
		cache: make(map[string]*robotsEntry),
		ttl:   ttl,
	}
}

// IsAllowed проверяет путь target для userAgent. Если robots.txt
// недоступен по сети, запрос разрешается.
func (rc *RobotsCache) IsAllowed(ctx context.Context, target *url.URL, userAgent string, get robotsGetter) (bool, error) {
	host := target.Host

	rc.mu.RLock()
	cached, exists := rc.cache[host]
	rc.mu.RUnlock()

	if exists && time.Now().Before(cached.expiresAt) {
		return testPath(cached.data, target, userAgent), nil
	}

	robotsURL := (&url.URL{Scheme: target.Scheme, Host: host, Path: "/robots.txt"}).String()
	status, body, err := get(ctx, robotsURL)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// Network error: assume allowed, не кэшируем
		return true, nil
	}

	// 4xx -> всё разрешено, 5xx -> всё запрещено
	data, err := robotstxt.FromStatusAndBytes(status, body)
	if err != nil {
		// Битый robots.txt трактуем как отсутствующий
		data, _ = robotstxt.FromStatusAndBytes(404, nil)
	}

	rc.mu.Lock()
	rc.cache[host] = &robotsEntry{
		data:      data,
		expiresAt: time.Now().Add(rc.ttl),
	}
	rc.mu.Unlock()

	return testPath(data, target, userAgent), nil
}

// Check возвращает ошибку, если robots.txt запрещает target
func (rc *RobotsCache) Check(ctx context.Context, target *url.URL, userAgent string, get robotsGetter) error {
	allowed, err := rc.IsAllowed(ctx, target, userAgent, get)
	if err != nil {
		return fmt.Errorf("robots.txt check failed: %w", err)
	}
	if !allowed {
		return fmt.Errorf("URL disallowed by robots.txt: %s", target.String())
	}
	return nil
}

func testPath(data *robotstxt.RobotsData, target *url.URL, userAgent string) bool {
	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}
	return data.TestAgent(path, userAgent)
}
