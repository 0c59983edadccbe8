package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/util"
	"github.com/ppiankov/veracity/internal/worker"
)

// ErrDisallowed is returned when robots.txt forbids a request
var ErrDisallowed = errors.New("disallowed by robots.txt")

// retryBackoff is the first retry delay; it doubles per attempt
var retryBackoff = 500 * time.Millisecond

// sleepFunc pauses between retries (injectable for tests)
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Fetcher performs polite JSON GETs on behalf of HTTP-backed providers:
// robots.txt is honoured, requests are rate limited per host, and transient
// failures are retried with exponential backoff
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxBytes   int64
	maxRetries int
	robots     *util.RobotsChecker
	limiter    *worker.Limiter
}

// NewFetcher builds a fetcher from the HTTP and rate limiting configuration
func NewFetcher(httpCfg model.HTTPConfig, rl model.RateLimitConfig) *Fetcher {
	client := util.NewHTTPClient(httpCfg)
	f := &Fetcher{
		client:     client,
		userAgent:  httpCfg.UserAgent,
		maxBytes:   httpCfg.MaxBodyBytes,
		maxRetries: httpCfg.MaxRetries,
		limiter:    worker.NewLimiter(rl.RequestsPerSecond, rl.BurstSize),
	}
	if httpCfg.RespectRobots {
		f.robots = util.NewRobotsChecker(client, httpCfg.UserAgent)
	}
	if f.maxBytes <= 0 {
		f.maxBytes = 2_000_000
	}
	return f
}

// GetJSON fetches rawURL and decodes the body into v
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, v any) error {
	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
		}
		if delay > 0 {
			if u, err := url.Parse(rawURL); err == nil {
				f.limiter.SetHostDelay(u.Host, delay)
			}
		}
	}

	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepFunc(ctx, retryBackoff<<uint(attempt-1)); err != nil {
				return err
			}
		}
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return err
		}

		body, retry, err := f.get(ctx, rawURL)
		if err == nil {
			if err := json.Unmarshal(body, v); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return lastErr
}

// get performs one request and reports whether a failure is worth retrying
func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, isTransient(err), fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	return body, false, nil
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
