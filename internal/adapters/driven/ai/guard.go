package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/logger"
)

// Retry defaults at the provider boundary.
const (
	DefaultMaxAttempts = 2
	DefaultBaseDelay   = 200 * time.Millisecond
	DefaultCallTimeout = 30 * time.Second
)

// Guard runs provider calls under a per-call timeout, an optional rate
// limit and a bounded retry of RetrievableErrors with exponential backoff.
// It is the only place in the codebase that retries.
type Guard struct {
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration
	limiter     *rate.Limiter
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewGuard builds a guard from provider limits, defaulting zero values.
func NewGuard(limits domain.ProviderLimits) *Guard {
	g := &Guard{
		timeout:     limits.Timeout,
		maxAttempts: limits.MaxAttempts,
		baseDelay:   DefaultBaseDelay,
		sleep:       sleepCtx,
	}
	if g.timeout <= 0 {
		g.timeout = DefaultCallTimeout
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = DefaultMaxAttempts
	}
	if limits.RequestsPerSecond > 0 {
		burst := int(limits.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(limits.RequestsPerSecond), burst)
	}
	return g
}

// Do runs fn, retrying retrievable failures.
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if g.limiter != nil {
			if werr := g.limiter.Wait(ctx); werr != nil {
				return fmt.Errorf("%s: rate limiter: %w", op, werr)
			}
		}

		err = g.call(ctx, op, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !domain.IsRetrievable(err) || attempt == g.maxAttempts {
			return err
		}

		delay := g.baseDelay << (attempt - 1)
		logger.Debug("retrying provider call", "op", op, "attempt", attempt, "delay", delay, "error", err)
		if serr := g.sleep(ctx, delay); serr != nil {
			return serr
		}
	}
	return err
}

func (g *Guard) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := fn(cctx)
	if err == nil || domain.IsRetrievable(err) || domain.IsFatal(err) {
		return err
	}
	if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || cctx.Err() != nil) {
		return domain.Retrievable(op, fmt.Errorf("timed out after %s: %w", g.timeout, err))
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.Retrievable(op, err)
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// GuardedEmbedding applies a Guard to every remote embedding call.
type GuardedEmbedding struct {
	inner driven.EmbeddingService
	guard *Guard
}

var _ driven.EmbeddingService = (*GuardedEmbedding)(nil)

// NewGuardedEmbedding wraps inner.
func NewGuardedEmbedding(inner driven.EmbeddingService, guard *Guard) *GuardedEmbedding {
	return &GuardedEmbedding{inner: inner, guard: guard}
}

// Embed embeds one text.
func (e *GuardedEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := e.guard.Do(ctx, "embed", func(ctx context.Context) error {
		var err error
		out, err = e.inner.Embed(ctx, text)
		return err
	})
	return out, err
}

// EmbedBatch embeds a batch of texts.
func (e *GuardedEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := e.guard.Do(ctx, "embed_batch", func(ctx context.Context) error {
		var err error
		out, err = e.inner.EmbedBatch(ctx, texts)
		return err
	})
	return out, err
}

// Dimensions returns the vector size.
func (e *GuardedEmbedding) Dimensions() int { return e.inner.Dimensions() }

// ModelName returns the model name.
func (e *GuardedEmbedding) ModelName() string { return e.inner.ModelName() }

// Ping checks connectivity under the guard's timeout, without retry.
func (e *GuardedEmbedding) Ping(ctx context.Context) error {
	return e.guard.call(ctx, "embed_ping", e.inner.Ping)
}

// Close closes the inner service.
func (e *GuardedEmbedding) Close() error { return e.inner.Close() }

// GuardedCompletion applies a Guard to every completion call.
type GuardedCompletion struct {
	inner driven.CompletionService
	guard *Guard
}

var _ driven.CompletionService = (*GuardedCompletion)(nil)

// NewGuardedCompletion wraps inner.
func NewGuardedCompletion(inner driven.CompletionService, guard *Guard) *GuardedCompletion {
	return &GuardedCompletion{inner: inner, guard: guard}
}

// Complete generates text.
func (c *GuardedCompletion) Complete(ctx context.Context, prompt string, opts driven.CompleteOptions) (string, error) {
	var out string
	err := c.guard.Do(ctx, "complete", func(ctx context.Context) error {
		var err error
		out, err = c.inner.Complete(ctx, prompt, opts)
		return err
	})
	return out, err
}

// ModelName returns the model name.
func (c *GuardedCompletion) ModelName() string { return c.inner.ModelName() }

// Ping checks connectivity under the guard's timeout, without retry.
func (c *GuardedCompletion) Ping(ctx context.Context) error {
	return c.guard.call(ctx, "complete_ping", c.inner.Ping)
}

// Close closes the inner service.
func (c *GuardedCompletion) Close() error { return c.inner.Close() }
