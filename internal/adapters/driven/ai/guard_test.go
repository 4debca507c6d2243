package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

func testGuard(limits domain.ProviderLimits) (*Guard, *[]time.Duration) {
	g := NewGuard(limits)
	var slept []time.Duration
	g.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return g, &slept
}

func TestNewGuard_Defaults(t *testing.T) {
	g := NewGuard(domain.ProviderLimits{})
	assert.Equal(t, DefaultCallTimeout, g.timeout)
	assert.Equal(t, DefaultMaxAttempts, g.maxAttempts)
	assert.Nil(t, g.limiter)

	g = NewGuard(domain.ProviderLimits{RequestsPerSecond: 0.5})
	require.NotNil(t, g.limiter)
	assert.Equal(t, 1, g.limiter.Burst())
}

func TestGuard_RetriesRetrievable(t *testing.T) {
	g, slept := testGuard(domain.ProviderLimits{MaxAttempts: 3})
	calls := 0

	err := g.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return domain.Retrievable("op", errors.New("busy"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, *slept)
}

func TestGuard_GivesUpAfterMaxAttempts(t *testing.T) {
	g, _ := testGuard(domain.ProviderLimits{})
	calls := 0

	err := g.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return domain.Retrievable("op", errors.New("busy"))
	})

	assert.True(t, domain.IsRetrievable(err))
	assert.Equal(t, 2, calls)
}

func TestGuard_NeverRetriesFatal(t *testing.T) {
	g, slept := testGuard(domain.ProviderLimits{MaxAttempts: 5})
	calls := 0

	err := g.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return domain.Fatal("op", errors.New("bad key"))
	})

	assert.True(t, domain.IsFatal(err))
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestGuard_TimeoutBecomesRetrievable(t *testing.T) {
	g, _ := testGuard(domain.ProviderLimits{Timeout: 10 * time.Millisecond, MaxAttempts: 1})

	err := g.Do(context.Background(), "op", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.True(t, domain.IsRetrievable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuard_ParentCancellationIsNotRetried(t *testing.T) {
	g, _ := testGuard(domain.ProviderLimits{MaxAttempts: 3})
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := g.Do(ctx, "op", func(context.Context) error {
		calls++
		cancel()
		return domain.Retrievable("op", errors.New("busy"))
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

type flakyCompletion struct{ failures int }

func (f *flakyCompletion) Complete(context.Context, string, driven.CompleteOptions) (string, error) {
	if f.failures > 0 {
		f.failures--
		return "", domain.Retrievable("fake", errors.New("429"))
	}
	return "done", nil
}
func (f *flakyCompletion) ModelName() string          { return "flaky" }
func (f *flakyCompletion) Ping(context.Context) error { return nil }
func (f *flakyCompletion) Close() error               { return nil }

func TestGuardedCompletion(t *testing.T) {
	g, _ := testGuard(domain.ProviderLimits{})
	c := NewGuardedCompletion(&flakyCompletion{failures: 1}, g)

	out, err := c.Complete(context.Background(), "p", driven.CompleteOptions{})
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, "flaky", c.ModelName())
	assert.NoError(t, c.Ping(context.Background()))
}
