package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/blog-platform/internal/apperror"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, InitialDelay: time.Millisecond, Multiplier: 2}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), fastPolicy(), "test", func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, driver.ErrBadConn
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsAtMaxAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return fmt.Errorf("dial: %w", syscall.ECONNREFUSED)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)
	assert.Equal(t, 5, calls)
}

func TestRetry_DoesNotRetryDomainErrors(t *testing.T) {
	for _, domainErr := range []error{
		apperror.NotFound("blog", 1),
		apperror.ConflictMsg("User already registered."),
		apperror.ValidationFailed("title", "title is required"),
	} {
		calls := 0
		err := fastPolicy().Do(context.Background(), "test", func(ctx context.Context) error {
			calls++
			return domainErr
		})
		assert.ErrorIs(t, err, domainErr)
		assert.Equal(t, 1, calls, "error %v must not be retried", domainErr)
	}
}

func TestRetry_HonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, InitialDelay: time.Hour, Multiplier: 2}

	calls := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- policy.Do(ctx, "test", func(ctx context.Context) error {
			calls++
			return driver.ErrBadConn
		})
	}()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not stop after cancellation")
	}
}

func TestRetry_CustomClassifier(t *testing.T) {
	sentinel := errors.New("flaky")
	policy := fastPolicy()
	policy.Transient = func(err error) bool { return errors.Is(err, sentinel) }

	calls := 0
	err := policy.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return sentinel
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", driver.ErrBadConn, true},
		{"wrapped econnreset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"message only", errors.New("dial tcp 10.0.0.1:5432: connect: connection refused"), true},
		{"canceled", context.Canceled, false},
		{"not found", apperror.NotFound("user", 3), false},
		{"syntax", errors.New("syntax error at or near SELEC"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestContentRoundTrip(t *testing.T) {
	inputs := []string{
		`<p>Hello <strong>world</strong></p>`,
		`<script>alert("x")</script>`,
		`Fish &amp; chips & "quotes" 'single'`,
		`<img src="a.png" alt="ünïcødé">`,
		``,
	}
	for _, in := range inputs {
		encoded := EncodeContent(in)
		assert.NotContains(t, encoded, "<", "encoded form must not carry raw markup")
		assert.Equal(t, in, DecodeContent(encoded))
	}
}
