// Package upstream wraps outbound HTTP calls with pacing, a circuit breaker
// and the retry policy shared by every data source.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	apperrors "github.com/zipGajun/FAGA-DATA/internal/errors"
	"github.com/zipGajun/FAGA-DATA/internal/infrastructure"
	"github.com/zipGajun/FAGA-DATA/internal/retry"
)

// Config bundles HTTP client and resilience settings for one source.
type Config struct {
	Name              string
	Timeout           time.Duration
	Policy            retry.Policy
	RequestsPerSecond float64
	Burst             int
	BreakerFailures   uint32
	BreakerTimeout    time.Duration
}

// Rejection is implemented by errors that describe a refusal of one
// request (unknown series, bad symbol) rather than a failing source.
type Rejection interface {
	Rejected() bool
}

// IsRejected reports whether any error in err's chain is a rejection.
func IsRejected(err error) bool {
	var r Rejection
	return errors.As(err, &r) && r.Rejected()
}

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

// Rejected is true for 4xx statuses other than timeout and throttling.
func (e *StatusError) Rejected() bool {
	return e.Code >= 400 && e.Code < 500 &&
		e.Code != http.StatusRequestTimeout && e.Code != http.StatusTooManyRequests
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Client executes requests for one upstream source.
type Client struct {
	name    string
	http    *http.Client
	policy  retry.Policy
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	sleeper retry.Sleeper
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSleeper replaces the retry timer, mostly for tests.
func WithSleeper(s retry.Sleeper) Option {
	return func(c *Client) { c.sleeper = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records attempts and failures.
func WithMetrics(m *infrastructure.PipelineMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New builds a Client from cfg.
func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	c := &Client{
		name:    cfg.Name,
		http:    &http.Client{Timeout: timeout},
		policy:  cfg.Policy,
		limiter: rate.NewLimiter(limit, burst),
		sleeper: retry.TimerSleeper,
		logger:  infrastructure.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = infrastructure.WithComponent(c.logger, "upstream").With("source", cfg.Name)

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Rejections do not count toward tripping.
		IsSuccessful: func(err error) bool {
			return err == nil || IsRejected(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return c
}

// Name returns the source name.
func (c *Client) Name() string { return c.name }

// Do runs one logical call. Each attempt builds a fresh request, sends it,
// checks the status and hands the response to decode; a failure in any of
// those steps fails the attempt. Failures are retried under the policy.
// An open breaker or a cancelled context stops immediately. The returned
// error is an upstream-kind pipeline error.
func (c *Client) Do(ctx context.Context, what string, build func(ctx context.Context) (*http.Request, error), decode func(resp *http.Response) error) error {
	err := retry.Do(ctx, c.policy, func(ctx context.Context, attempt int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		c.metrics.RecordAttempt(ctx, c.name, attempt > 1)

		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.attempt(ctx, build, decode)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return retry.Permanent(fmt.Errorf("circuit breaker open: %w", err))
		}
		if err != nil && ctx.Err() != nil {
			return retry.Permanent(err)
		}
		return err
	}, retry.WithSleeper(c.sleeper), retry.OnRetry(func(attempt int, delay time.Duration, err error) {
		c.logger.WarnContext(ctx, "upstream call failed, retrying",
			slog.String("call", what),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))
	}))
	if err == nil {
		return nil
	}

	c.metrics.RecordFailure(ctx, c.name)
	c.logger.ErrorContext(ctx, "upstream call failed",
		slog.String("call", what),
		slog.String("error", err.Error()))
	return apperrors.NewUpstreamError(fmt.Sprintf("%s: %s failed", c.name, what), err).
		WithContext("source", c.name)
}

func (c *Client) attempt(ctx context.Context, build func(ctx context.Context) (*http.Request, error), decode func(resp *http.Response) error) error {
	req, err := build(ctx)
	if err != nil {
		return retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return decode(resp)
}
