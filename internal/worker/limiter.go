package worker

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter rate-limits outbound requests per host. Hosts may additionally
// carry a minimum spacing, typically a robots.txt crawl delay.
type Limiter struct {
	mu           sync.RWMutex
	hosts        map[string]*hostLimit
	defaultRate  rate.Limit
	defaultBurst int
}

type hostLimit struct {
	limiter *rate.Limiter
	delay   time.Duration
}

// NewLimiter creates a limiter allowing requestsPerSecond per host.
// A non-positive rate disables limiting.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &Limiter{
		hosts:        make(map[string]*hostLimit),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// Wait blocks until a request to rawURL's host is permitted
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}
	limiter, delay := l.get(host)
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", host, err)
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil
}

// Allow reports whether a request may proceed now without waiting
func (l *Limiter) Allow(rawURL string) bool {
	host, err := hostOf(rawURL)
	if err != nil {
		return false
	}
	limiter, _ := l.get(host)
	return limiter.Allow()
}

// SetHostRate overrides the rate for one host
func (l *Limiter) SetHostRate(host string, requestsPerSecond float64, burst int) {
	if burst <= 0 {
		burst = l.defaultBurst
	}
	host = normalizeHost(host)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entry(host).limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// SetHostDelay enforces a fixed pause after each permitted request to host
func (l *Limiter) SetHostDelay(host string, delay time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entry(normalizeHost(host)).delay = delay
}

func (l *Limiter) get(host string) (*rate.Limiter, time.Duration) {
	l.mu.RLock()
	h, ok := l.hosts[host]
	if ok {
		defer l.mu.RUnlock()
		return h.limiter, h.delay
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	h = l.entry(host)
	return h.limiter, h.delay
}

// entry returns the host's limits, creating defaults. Callers hold the write lock.
func (l *Limiter) entry(host string) *hostLimit {
	if h, ok := l.hosts[host]; ok {
		return h
	}
	h := &hostLimit{limiter: rate.NewLimiter(l.defaultRate, l.defaultBurst)}
	l.hosts[host] = h
	return h
}

func hostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("URL %q has no host", rawURL)
	}
	return normalizeHost(parsed.Host), nil
}

func normalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(host)
}
