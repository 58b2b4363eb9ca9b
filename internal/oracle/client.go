// Package oracle talks to the language model that drives framework
// generation, scheduling decisions and slot extraction. Every call is retried
// with exponential backoff and, once attempts are exhausted, reported as
// absent instead of failing the caller.
package oracle

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrUnsupported is returned by backends that cannot serve a request kind.
var ErrUnsupported = errors.New("not supported by backend")

// ErrEmptyResponse is returned when the backend answered without content.
var ErrEmptyResponse = errors.New("empty response")

// Backend is a single model provider. Implementations make exactly one
// request per call; retries and deadlines are applied by Client.
type Backend interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options tune the retry policy of a Client.
type Options struct {
	Attempts  int
	BaseDelay time.Duration
	Timeout   time.Duration
	RateLimit float64 // requests per second; 0 disables limiting
	Logger    *slog.Logger
}

// Client applies bounded retry, per-attempt timeouts and optional rate
// limiting on top of a Backend.
type Client struct {
	backend   Backend
	attempts  int
	baseDelay time.Duration
	timeout   time.Duration
	limiter   *rate.Limiter
	logger    *slog.Logger
}

func NewClient(backend Backend, opts Options) *Client {
	c := &Client{
		backend:   backend,
		attempts:  opts.Attempts,
		baseDelay: opts.BaseDelay,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
	}
	if c.attempts < 1 {
		c.attempts = 3
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return c
}

// Call sends prompt as the system message and query as the user message.
// ok is false when every attempt failed.
func (c *Client) Call(ctx context.Context, prompt, query string) (string, bool) {
	return retry(ctx, c, "call", func(ctx context.Context) (string, error) {
		out, err := c.backend.Complete(ctx, prompt, query)
		if err != nil {
			return "", err
		}
		out = strings.TrimSpace(out)
		if out == "" {
			return "", ErrEmptyResponse
		}
		return out, nil
	})
}

// Embed returns the embedding of text. ok is false when every attempt failed.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, bool) {
	return retry(ctx, c, "embed", func(ctx context.Context) ([]float32, error) {
		v, err := c.backend.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		if len(v) == 0 {
			return nil, ErrEmptyResponse
		}
		return v, nil
	})
}

func retry[T any](ctx context.Context, c *Client, op string, fn func(context.Context) (T, error)) (T, bool) {
	var zero T
	for attempt := range c.attempts {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return zero, false
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		v, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return v, true
		}

		if errors.Is(err, ErrUnsupported) {
			c.logger.Debug("oracle request unsupported", "op", op)
			return zero, false
		}
		c.logger.Warn("oracle attempt failed", "op", op, "attempt", attempt+1, "of", c.attempts, "error", err)

		if attempt < c.attempts-1 {
			backoff := time.Duration(float64(c.baseDelay) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return zero, false
			case <-time.After(backoff):
			}
		}
	}
	c.logger.Error("oracle unavailable", "op", op, "attempts", c.attempts)
	return zero, false
}
