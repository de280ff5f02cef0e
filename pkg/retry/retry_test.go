package retry

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   2,
	}
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0

	err := Do(context.Background(), discard(), fastPolicy(3), func(_ context.Context) error {
		calls++

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesRetryableUntilSuccess(t *testing.T) {
	calls := 0

	err := Do(context.Background(), discard(), fastPolicy(3), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return MarkRetryable(errors.New("flaky"))
		}

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	cause := MarkRetryable(errors.New("always down"))

	err := Do(context.Background(), discard(), fastPolicy(2), func(_ context.Context) error {
		calls++

		return cause
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0

	err := Do(context.Background(), discard(), fastPolicy(5), func(_ context.Context) error {
		calls++

		return errors.New("unclassified")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoContextCancellationAbortsSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	policy := Policy{MaxRetries: 3, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2}

	err := Do(ctx, discard(), policy, func(_ context.Context) error {
		calls++
		cancel()

		return MarkRetryable(errors.New("try again"))
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDelayCappedAtMaxDelay(t *testing.T) {
	policy := Policy{
		MaxRetries:   10,
		InitialDelay: time.Second,
		MaxDelay:     4 * time.Second,
		Multiplier:   2,
	}

	assert.Equal(t, time.Second, policy.Delay(0))
	assert.Equal(t, 2*time.Second, policy.Delay(1))
	assert.Equal(t, 4*time.Second, policy.Delay(2))
	assert.Equal(t, 4*time.Second, policy.Delay(9))
}

func TestPolicyZeroValueGetsDefaults(t *testing.T) {
	p := Policy{}.withDefaults()

	assert.Equal(t, defaultMaxRetries, p.MaxRetries)
	assert.Equal(t, defaultInitialDelay, p.InitialDelay)
	assert.Equal(t, defaultMaxDelay, p.MaxDelay)
	assert.InEpsilon(t, defaultMultiplier, p.Multiplier, 0.001)
}

func TestIsRetryableClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"unclassified", errors.New("boom"), false},
		{"marked retryable", MarkRetryable(errors.New("boom")), true},
		{"marked permanent", MarkPermanent(errors.New("boom")), false},
		{"rate limited", ErrRateLimited, true},
		{"http 500", &HTTPError{StatusCode: 500}, true},
		{"http 503", &HTTPError{StatusCode: 503}, true},
		{"http 400", &HTTPError{StatusCode: 400}, false},
		{"http 404", &HTTPError{StatusCode: 404}, false},
		{"dns", &net.DNSError{Err: "no such host"}, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused", syscall.ECONNREFUSED, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}
