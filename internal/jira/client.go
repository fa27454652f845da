// Package jira reads bug issues and their linked commits from a Jira server.
//
// Every request goes through a token bucket. Responses with status 429 or
// 5xx and transport failures are retried with exponential backoff, honouring
// Retry-After when the server sends it. When the retry budget is spent the
// client returns a critical error that aborts the run.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	dmerrors "github.com/rohankatakam/defectminer/internal/errors"
	"github.com/rohankatakam/defectminer/internal/logging"
)

// Config holds the connection and politeness settings for a Jira server
type Config struct {
	BaseURL        string
	User           string
	Token          string
	PageSize       int
	RateLimit      float64 // requests per second
	Burst          int
	MaxRetries     int
	Timeout        time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns settings that are gentle on issues.apache.org
func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://issues.apache.org/jira",
		PageSize:       50,
		RateLimit:      2,
		Burst:          1,
		MaxRetries:     8,
		Timeout:        30 * time.Second,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     2 * time.Minute,
	}
}

// Cache stores raw responses between runs. internal/cache provides a bbolt
// implementation.
type Cache interface {
	Get(bucket, key string) ([]byte, bool, error)
	Put(bucket, key string, value []byte) error
}

// Client talks to the Jira REST API
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cache   Cache
	logger  logrus.FieldLogger
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache enables response caching for issue details
func WithCache(cache Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithLogger sets the logger used for retry and progress messages
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient validates cfg and creates a client
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, dmerrors.ConfigError("jira base URL is required")
	}
	defaults := DefaultConfig()
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaults.RateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaults.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaults.MaxBackoff
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// retryableError marks a failure worth another attempt. When the server
// asked for a delay the RetryAfterError is part of the chain so backoff
// waits exactly that long.
type retryableError struct {
	status int
	err    error
	after  *backoff.RetryAfterError
}

func (e *retryableError) Error() string {
	if e.status != 0 {
		return fmt.Sprintf("status %d: %v", e.status, e.err)
	}
	return e.err.Error()
}

func (e *retryableError) Unwrap() []error {
	if e.after != nil {
		return []error{e.err, e.after}
	}
	return []error{e.err}
}

// do performs one logical request, retrying transient failures, and decodes
// the JSON body into out
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	url := c.cfg.BaseURL + path
	attempt := 0

	operation := func() (struct{}, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
		}

		data, err := c.send(ctx, method, url, payload)
		if err == nil {
			if jerr := json.Unmarshal(data, out); jerr != nil {
				err = &retryableError{err: dmerrors.ExternalErrorf(jerr, "malformed response from %s", url)}
			}
		}

		var re *retryableError
		if errors.As(err, &re) {
			c.logger.WithFields(logrus.Fields{
				"url":     url,
				"attempt": attempt,
			}).WithError(err).Warn("jira request failed")
		}
		return struct{}{}, err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.InitialBackoff
	eb.MaxInterval = c.cfg.MaxBackoff

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Unwrap()
		}
		var re *retryableError
		if errors.As(err, &re) {
			return dmerrors.RetriesExhausted(err, "%s %s failed after %d attempts", method, url, attempt)
		}
		return err
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.cfg.User != "" && c.cfg.Token != "":
		req.SetBasicAuth(c.cfg.User, c.cfg.Token)
	case c.cfg.Token != "":
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, &retryableError{err: dmerrors.NetworkErrorf(err, "%s %s", method, url)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{err: dmerrors.NetworkErrorf(err, "read body of %s", url)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		re := &retryableError{
			status: resp.StatusCode,
			err:    dmerrors.New(dmerrors.ErrorTypeExternal, dmerrors.SeverityMedium, "jira returned "+resp.Status),
		}
		if secs, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
			var ra *backoff.RetryAfterError
			if errors.As(backoff.RetryAfter(secs), &ra) {
				re.after = ra
			}
		}
		return nil, re
	case resp.StatusCode >= 400:
		msg := fmt.Sprintf("jira returned %s: %s", resp.Status, snippet(data))
		return nil, backoff.Permanent(dmerrors.New(dmerrors.ErrorTypeExternal, dmerrors.SeverityHigh, msg))
	}

	return data, nil
}

// retryAfter parses the delay-seconds form of Retry-After
func retryAfter(header string) (int, bool) {
	if header == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs < 0 {
		return 0, false
	}
	return secs, true
}

func snippet(data []byte) string {
	const max = 200
	s := strings.TrimSpace(string(data))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
