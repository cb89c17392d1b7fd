package helpers_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"market-data-hub/src/helpers"

	"github.com/stretchr/testify/require"
)

func TestNoProviderErrorMatchesSentinels(t *testing.T) {
	t.Parallel()

	notFound := &helpers.NoProviderError{Kind: helpers.NoProviderSymbolNotFound, Operation: "get_quote", Symbol: "ZZZZ"}
	degraded := &helpers.NoProviderError{Kind: helpers.NoProviderDegraded, Operation: "get_quote", Symbol: "AAPL"}

	require.ErrorIs(t, notFound, helpers.ErrNoProvider)
	require.ErrorIs(t, notFound, helpers.ErrSymbolNotFound)
	require.NotErrorIs(t, notFound, helpers.ErrProvidersDegraded)

	require.ErrorIs(t, degraded, helpers.ErrProvidersDegraded)
	require.NotErrorIs(t, degraded, helpers.ErrSymbolNotFound)
}

func TestNoProviderErrorUnwrapsLastError(t *testing.T) {
	t.Parallel()

	last := helpers.NewRateLimitError("alpha", time.Minute, nil)
	err := fmt.Errorf("wrapped: %w", &helpers.NoProviderError{Kind: helpers.NoProviderDegraded, Last: last})

	var rl *helpers.RateLimitError
	require.ErrorAs(t, err, &rl)
	require.Equal(t, time.Minute, rl.RetryAfter)
	require.Equal(t, "alpha", rl.Provider)
}

func TestTagProvider(t *testing.T) {
	t.Parallel()

	// Arrange: an untagged taxonomy error as produced by the network layer
	err := fmt.Errorf("get: %w", helpers.NewRateLimitError("", 0, nil))

	// Act
	tagged := helpers.TagProvider(err, "yahoo")

	// Assert: the provider is set in place, the chain is kept
	var rl *helpers.RateLimitError
	require.ErrorAs(t, tagged, &rl)
	require.Equal(t, "yahoo", rl.Provider)

	plain := helpers.TagProvider(errors.New("boom"), "yahoo")
	var pe *helpers.ProviderError
	require.ErrorAs(t, plain, &pe)
	require.Equal(t, "yahoo", pe.Provider)

	require.ErrorIs(t, helpers.TagProvider(context.Canceled, "yahoo"), context.Canceled)
	require.NoError(t, helpers.TagProvider(nil, "yahoo"))
}

func TestRetryWithBackoff(t *testing.T) {
	t.Parallel()

	calls := 0
	err := helpers.RetryWithBackoff(t.Context(), nil, "flaky", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryWithBackoffStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := helpers.RetryWithBackoff(ctx, nil, "cancelled", 5, time.Hour, func() error {
		return errors.New("fail")
	})
	require.ErrorIs(t, err, context.Canceled)
}
