// Package xtream talks to Xtream-Codes-compatible panels: the player_api
// JSON endpoints, the get.php playlist fallback, and per-series episode
// lookups. Everything downstream of this package only sees normalized
// catalog types.
package xtream

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/snapetech/xtreamcat/internal/config"
	"github.com/snapetech/xtreamcat/internal/httpclient"
	"github.com/snapetech/xtreamcat/internal/metrics"
)

const (
	maxRetries     = 2
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	userAgent      = "xtreamcat/1.0"
)

// Client issues authenticated requests against one process-wide HTTP client.
// Per-series info calls are paced by a shared rate limiter so episode
// resolution bursts cannot hammer the panel.
type Client struct {
	http       *http.Client
	seriesRate *rate.Limiter
	log        logrus.FieldLogger
}

// NewClient returns a client using the shared transport with cfg timeouts.
func NewClient(cfg *config.Config, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		http:       httpclient.WithTimeout(cfg.FetchTimeout),
		seriesRate: rate.NewLimiter(rate.Limit(cfg.SeriesInfoRate), 1),
		log:        log,
	}
}

// apiURL builds the player_api URL for an account plus optional action and
// extra query parameters. Credentials are query-escaped to prevent
// injection from special characters.
func apiURL(a config.Account, action string, extra url.Values) string {
	u := a.BaseURL + "/player_api.php?username=" + url.QueryEscape(a.Username) + "&password=" + url.QueryEscape(a.Password)
	if action != "" {
		u += "&action=" + action
	}
	for k, vs := range extra {
		for _, v := range vs {
			u += "&" + k + "=" + url.QueryEscape(v)
		}
	}
	return u
}

// retryableStatus returns true for 429, 423, 408 and 5xx.
func retryableStatus(code int) bool {
	if code == 429 || code == 423 || code == 408 {
		return true
	}
	return code >= 500 && code < 600
}

// parseRetryAfter parses Retry-After (seconds or HTTP-date); 0 if absent.
func parseRetryAfter(resp *http.Response) time.Duration {
	s := resp.Header.Get("Retry-After")
	if s == "" {
		return 0
	}
	if sec, err := strconv.Atoi(s); err == nil && sec > 0 {
		return min(time.Duration(sec)*time.Second, maxBackoff)
	}
	if t, err := http.ParseTime(s); err == nil {
		d := time.Until(t)
		if d < 0 {
			return initialBackoff
		}
		return min(d, maxBackoff)
	}
	return 0
}

// get fetches rawURL with retries on transient failures, honoring
// Retry-After and the per-host semaphore. The action label is only used for
// metrics and logs; rawURL carries credentials and is never logged raw.
func (c *Client) get(ctx context.Context, action, rawURL string) ([]byte, error) {
	var lastErr error
	backoff := initialBackoff
	for attempt := 0; attempt <= maxRetries; attempt++ {
		body, retryAfter, err := c.getOnce(ctx, rawURL)
		if err == nil {
			metrics.UpstreamRequests.WithLabelValues(action, "ok").Inc()
			return body, nil
		}
		lastErr = err
		var se statusError
		permanent := false
		if errors.As(err, &se) {
			permanent = !retryableStatus(int(se))
		}
		if permanent || attempt == maxRetries {
			break
		}
		wait := retryAfter
		if wait == 0 {
			wait = backoff
			if backoff < maxBackoff {
				backoff *= 2
			}
		}
		select {
		case <-ctx.Done():
			metrics.UpstreamRequests.WithLabelValues(action, "error").Inc()
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	metrics.UpstreamRequests.WithLabelValues(action, "error").Inc()
	return nil, fmt.Errorf("get %s: %w", config.Redacted(rawURL), lastErr)
}

func (c *Client) getOnce(ctx context.Context, rawURL string) (body []byte, retryAfter time.Duration, err error) {
	release := httpclient.GlobalHostSem.Acquire(rawURL)
	defer release()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	// Opting into explicit Accept-Encoding disables the transport's
	// transparent gzip, so both encodings are handled here.
	req.Header.Set("Accept-Encoding", "gzip, br")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, parseRetryAfter(resp), statusError(resp.StatusCode)
	}
	var r io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip":
		gz, gzErr := gzip.NewReader(resp.Body)
		if gzErr != nil {
			return nil, 0, gzErr
		}
		defer gz.Close()
		r = gz
	}
	body, err = io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return body, 0, nil
}

type statusError int

func (e statusError) Error() string {
	return "unexpected status: " + strconv.Itoa(int(e))
}
