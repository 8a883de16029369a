package internal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	pkgerrs "github.com/jamesprial/redditlatest/pkg/errors"
	"golang.org/x/time/rate"
)

// Client manages authenticated communication with the Reddit API.
type Client struct {
	client    *http.Client
	BaseURL   *url.URL
	UserAgent string
	token     string
	logger    *slog.Logger

	limiter        *rate.Limiter
	mu             sync.Mutex
	forceWaitUntil time.Time
}

// RateLimitConfig controls how requests are throttled before reaching Reddit.
type RateLimitConfig struct {
	// RequestsPerMinute caps steady-state throughput. Defaults to 60 if zero.
	RequestsPerMinute float64
	// Burst allows short spikes above the steady-state rate. Defaults to 10 if zero.
	Burst int
}

const (
	DefaultRequestsPerMinute = 60
	DefaultRateLimitBurst    = 10
	SecondsPerMinute         = 60.0
	ParseFloatBitSize        = 64

	// DefaultRateLimitWait is used when a 429 carries no usable timing header.
	DefaultRateLimitWait = 60 * time.Second

	maxErrorBodyBytes = 4096
)

// NewClient returns a new Reddit API client that sends authToken as a bearer token.
// If a nil httpClient is provided, http.DefaultClient will be used.
func NewClient(httpClient *http.Client, authToken string, baseURL string, userAgent string, rateCfg *RateLimitConfig, logger *slog.Logger) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, &pkgerrs.ClientError{Operation: "NewClient", Err: err}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	if rateCfg == nil {
		rateCfg = &RateLimitConfig{}
	}

	return &Client{
		client:    httpClient,
		BaseURL:   parsedURL,
		UserAgent: userAgent,
		token:     authToken,
		logger:    logger,
		limiter:   buildLimiter(*rateCfg),
	}, nil
}

// NewRequest creates an API request. A relative URL can be provided in path,
// in which case it is resolved relative to the BaseURL of the Client.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	u, err := c.BaseURL.Parse(path)
	if err != nil {
		return nil, &pkgerrs.ClientError{Operation: "NewRequest", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, &pkgerrs.ClientError{Operation: "NewRequest", Err: err}
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.UserAgent)

	return req, nil
}

// Do sends an API request and JSON decodes the body into v.
//
// Errors are typed: *errors.RequestError when no response arrived,
// *errors.RateLimitError for 429, *errors.APIError for other non-2xx statuses and
// *errors.ParseError when the body cannot be decoded.
func (c *Client) Do(req *http.Request, v any) (*http.Response, error) {
	target := req.URL.String()

	if err := c.waitForRateLimit(req.Context()); err != nil {
		return nil, &pkgerrs.RequestError{Operation: req.Method, URL: target, Message: "waiting for rate limit", Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: req.Method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	c.applyRateHeaders(resp)
	c.logger.Debug("reddit request",
		"method", req.Method,
		"url", target,
		"status", resp.StatusCode,
		"ratelimit_remaining", resp.Header.Get("X-Ratelimit-Remaining"),
	)

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
		return resp, &pkgerrs.RateLimitError{StatusCode: resp.StatusCode, Wait: retryWait(resp.Header, time.Now())}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, newAPIError(resp)
	}

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return resp, &pkgerrs.ParseError{Operation: req.Method + " " + req.URL.Path, Err: err}
		}
	}

	return resp, nil
}

// newAPIError builds an APIError, lifting Reddit's JSON error fields when present.
func newAPIError(resp *http.Response) error {
	apiErr := &pkgerrs.APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil || len(body) == 0 {
		return apiErr
	}

	var errObj struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Reason  string          `json:"reason"`
	}
	if json.Unmarshal(body, &errObj) == nil {
		if errObj.Message != "" {
			apiErr.Message = errObj.Message
		}
		apiErr.ErrorCode = errObj.Reason
	}
	return apiErr
}

// retryWait reads the server-advised delay from a throttled response.
// Retry-After (seconds or HTTP date) wins over X-Ratelimit-Reset. A header that
// parses is honored even when it says zero; only a missing or unreadable one
// falls back to DefaultRateLimitWait.
func retryWait(h http.Header, now time.Time) time.Duration {
	if retryAfter := h.Get("Retry-After"); retryAfter != "" {
		if wait, ok := headerSeconds(retryAfter); ok {
			return wait
		}
		if at, err := http.ParseTime(retryAfter); err == nil {
			return max(at.Sub(now), 0)
		}
	}

	if wait, ok := headerSeconds(h.Get("X-Ratelimit-Reset")); ok {
		return wait
	}

	return DefaultRateLimitWait
}

// headerSeconds parses a non-negative, finite count of seconds.
func headerSeconds(v string) (time.Duration, bool) {
	seconds, err := strconv.ParseFloat(v, ParseFloatBitSize)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func buildLimiter(cfg RateLimitConfig) *rate.Limiter {
	requestsPerMinute := cfg.RequestsPerMinute
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultRateLimitBurst
	}

	return rate.NewLimiter(rate.Limit(requestsPerMinute/SecondsPerMinute), burst)
}

func (c *Client) waitForRateLimit(ctx context.Context) error {
	if err := c.waitForForcedDelay(ctx); err != nil {
		return err
	}

	if c.limiter == nil {
		return nil
	}

	return c.limiter.Wait(ctx)
}

func (c *Client) waitForForcedDelay(ctx context.Context) error {
	for {
		c.mu.Lock()
		waitUntil := c.forceWaitUntil
		c.mu.Unlock()

		if waitUntil.IsZero() {
			return nil
		}

		now := time.Now()
		if !now.Before(waitUntil) {
			c.clearForcedDelay(waitUntil)
			return nil
		}

		timer := time.NewTimer(waitUntil.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			c.clearForcedDelay(waitUntil)
		}
	}
}

func (c *Client) clearForcedDelay(previous time.Time) {
	c.mu.Lock()
	if previous.Equal(c.forceWaitUntil) {
		c.forceWaitUntil = time.Time{}
	}
	c.mu.Unlock()
}

// applyRateHeaders defers the next request when Reddit reports the window is
// about to run dry. 429 responses are left to the caller's retry loop.
func (c *Client) applyRateHeaders(resp *http.Response) {
	if resp.StatusCode == http.StatusTooManyRequests {
		return
	}

	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.ParseFloat(retryAfter, ParseFloatBitSize); err == nil && seconds > 0 {
			c.deferRequests(time.Duration(seconds * float64(time.Second)))
		}
	}

	remainingHeader := resp.Header.Get("X-Ratelimit-Remaining")
	resetHeader := resp.Header.Get("X-Ratelimit-Reset")
	if remainingHeader == "" || resetHeader == "" {
		return
	}

	remaining, errRemaining := strconv.ParseFloat(remainingHeader, ParseFloatBitSize)
	resetSeconds, errReset := strconv.ParseFloat(resetHeader, ParseFloatBitSize)
	if errRemaining != nil || errReset != nil || resetSeconds <= 0 {
		return
	}

	if remaining <= 1 {
		c.deferRequests(time.Duration(resetSeconds * float64(time.Second)))
	}
}

func (c *Client) deferRequests(d time.Duration) {
	if d <= 0 {
		return
	}

	until := time.Now().Add(d)

	c.mu.Lock()
	if until.After(c.forceWaitUntil) {
		c.forceWaitUntil = until
	}
	c.mu.Unlock()
}
