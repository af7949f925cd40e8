// Package httpclient provides the shared tuned HTTP client and a per-host
// concurrency limiter used for all upstream traffic.
package httpclient

import (
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16
)

var defaultClient = &http.Client{
	Timeout: DefaultTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	},
}

// Default returns the shared client used by the loader, resolver and probe.
func Default() *http.Client {
	return defaultClient
}

// WithTimeout returns a client with the given timeout sharing the default
// transport settings.
func WithTimeout(timeout time.Duration) *http.Client {
	t, ok := defaultClient.Transport.(*http.Transport)
	if !ok {
		return &http.Client{Timeout: timeout}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: t.Clone(),
	}
}

// HostSemaphore is a process-global per-host concurrency limiter. All
// callers in the process share the same semaphore for a given host, so a
// burst of cache misses for different accounts on the same panel cannot
// stampede the upstream.
//
//	release := httpclient.GlobalHostSem.Acquire(rawURL)
//	defer release()
type HostSemaphore struct {
	mu    sync.Mutex
	sems  map[string]chan struct{}
	limit int
}

// GlobalHostSem caps concurrent requests per upstream host across the whole
// process. Six listing fetches per load fit inside one slot refill cycle.
var GlobalHostSem = NewHostSemaphore(6)

func NewHostSemaphore(concurrency int) *HostSemaphore {
	if concurrency < 1 {
		concurrency = 1
	}
	return &HostSemaphore{
		sems:  make(map[string]chan struct{}),
		limit: concurrency,
	}
}

// Acquire blocks until a slot is available for the host of rawURL and
// returns a release func.
func (h *HostSemaphore) Acquire(rawURL string) func() {
	sem := h.semFor(rawURL)
	sem <- struct{}{}
	return func() { <-sem }
}

func (h *HostSemaphore) semFor(rawURL string) chan struct{} {
	key := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		key = u.Scheme + "://" + u.Host
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sems[key]
	if !ok {
		s = make(chan struct{}, h.limit)
		h.sems[key] = s
	}
	return s
}
