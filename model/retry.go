package model

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/telemetry"
)

// RetryConfig controls RetryingClient's backoff schedule.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig makes up to 3 attempts (2 retries) with exponential backoff starting
// at 500ms, capped at 10s, plus jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}
}

// RetryingClient wraps a Client with exponential-backoff retry and
// tokens-per-minute pacing, and records request count, cumulative tokens,
// rolling latency, and error count through a telemetry.Metrics sink. Grounded
// on the teacher's AdaptiveRateLimiter, simplified to a process-local limiter
// since this runtime has no cluster-coordination component in its domain
// stack.
type RetryingClient struct {
	next    Client
	cfg     RetryConfig
	limiter *rate.Limiter
	metrics telemetry.Metrics
	name    string
}

// NewRetryingClient wraps next with retry-with-backoff and a tokens-per-
// minute limiter. metrics may be telemetry.NewNoopMetrics() when metrics
// collection is not needed.
func NewRetryingClient(name string, next Client, cfg RetryConfig, tokensPerMinute float64, metrics telemetry.Metrics) *RetryingClient {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultRetryConfig()
	}
	var limiter *rate.Limiter
	if tokensPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(tokensPerMinute/60.0), int(tokensPerMinute))
	}
	return &RetryingClient{next: next, cfg: cfg, limiter: limiter, metrics: metrics, name: name}
}

func (c *RetryingClient) GenerateContent(ctx context.Context, req *Request) (*Response, error) {
	if err := c.wait(ctx, req); err != nil {
		return nil, err
	}
	var resp *Response
	var err error
	start := time.Now()
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		resp, err = c.next.GenerateContent(ctx, req)
		if err == nil {
			break
		}
		if !c.retryable(err) || attempt == c.cfg.MaxAttempts-1 {
			break
		}
		if werr := c.backoffWait(ctx, attempt); werr != nil {
			err = werr
			break
		}
	}
	c.record(start, req, resp, err)
	return resp, err
}

// GenerateStreaming passes through without retry: partial output already
// delivered to the caller cannot be safely replayed.
func (c *RetryingClient) GenerateStreaming(ctx context.Context, req *Request) (Streamer, error) {
	if err := c.wait(ctx, req); err != nil {
		return nil, err
	}
	return c.next.GenerateStreaming(ctx, req)
}

func (c *RetryingClient) CountTokens(ctx context.Context, contents []event.Content) (int, error) {
	return c.next.CountTokens(ctx, contents)
}

func (c *RetryingClient) Capabilities() Capabilities { return c.next.Capabilities() }

func (c *RetryingClient) wait(ctx context.Context, req *Request) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.WaitN(ctx, estimateTokens(req))
}

func (c *RetryingClient) backoffWait(ctx context.Context, attempt int) error {
	delay := c.cfg.BaseDelay * time.Duration(math.Pow(2, float64(attempt)))
	if delay > c.cfg.MaxDelay {
		delay = c.cfg.MaxDelay
	}
	delay += time.Duration(rand.Int63n(int64(delay)/2 + 1))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryable reports whether err warrants another attempt. Network/timeout
// and rate-limit/unavailable provider errors are retryable; validation and
// auth errors are not since the request itself would fail again unchanged.
func (c *RetryingClient) retryable(err error) bool {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Retryable()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func (c *RetryingClient) record(start time.Time, req *Request, resp *Response, err error) {
	if c.metrics == nil {
		return
	}
	tags := []string{"model", c.name}
	c.metrics.IncCounter("model.requests", 1, tags...)
	c.metrics.RecordTimer("model.latency", time.Since(start), tags...)
	if err != nil {
		c.metrics.IncCounter("model.errors", 1, tags...)
		return
	}
	if resp != nil {
		c.metrics.IncCounter("model.tokens", float64(resp.Usage.TotalTokens), tags...)
	}
}

// estimateTokens is a cheap heuristic for the tokens-per-minute limiter: it
// sums the length of text parts and adds a fixed overhead buffer rather than
// invoking the provider's actual tokenizer on every call.
func estimateTokens(req *Request) int {
	chars := 0
	for _, c := range req.Contents {
		chars += len(c.Text())
	}
	if chars <= 0 {
		return 500
	}
	return chars/3 + 500
}

var _ Client = (*RetryingClient)(nil)
