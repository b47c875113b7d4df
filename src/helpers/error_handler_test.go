package helpers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassificationSurvivesWrapping(t *testing.T) {
	base := NewNotFoundError("issuer %s not found", "ALK")
	wrapped := fmt.Errorf("fetch: %w", base)

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsTimeout(wrapped))
	assert.Equal(t, "fetch: issuer ALK not found", wrapped.Error())
}

func TestTimeoutMatchesDeadline(t *testing.T) {
	assert.True(t, IsTimeout(NewTimeoutError(nil, "wait for table")))
	assert.True(t, IsTimeout(fmt.Errorf("navigate: %w", context.DeadlineExceeded)))
	assert.False(t, IsTimeout(errors.New("boom")))
}

func TestCauseIsUnwrapped(t *testing.T) {
	cause := errors.New("chrome crashed")
	err := NewSessionFailureError(cause, "click submit")

	assert.True(t, IsSessionFailure(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "click submit: chrome crashed", err.Error())
}

func TestRetryWithBackoffEventuallySucceeds(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), nil, "flaky", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoffReturnsLastError(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), nil, "broken", 2, time.Millisecond, func() error {
		calls++
		return fmt.Errorf("attempt %d", calls)
	})
	assert.EqualError(t, err, "attempt 2")
}

func TestRetryWithBackoffStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, nil, "cancelled", 5, time.Hour, func() error {
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
