package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkey-go/mock"
	"go.uber.org/mock/gomock"
)

func newValkeyLimiterUnderTest(t *testing.T, limit int) (*ValkeyLimiter, *mock.Client) {
	t.Helper()
	client := mock.NewClient(gomock.NewController(t))
	limiter := NewValkeyLimiter(client, "test", limit)
	limiter.now = func() time.Time { return time.Unix(600, 0) }
	return limiter, client
}

func TestValkeyLimiterFirstHitSetsExpiry(t *testing.T) {
	limiter, client := newValkeyLimiterUnderTest(t, 2)
	ctx := context.Background()

	gomock.InOrder(
		client.EXPECT().Do(ctx, mock.Match("INCR", "test:1.2.3.4:10")).Return(mock.Result(mock.ValkeyInt64(1))),
		client.EXPECT().Do(ctx, mock.Match("EXPIRE", "test:1.2.3.4:10", "90")).Return(mock.Result(mock.ValkeyInt64(1))),
	)

	allowed, err := limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestValkeyLimiterRejectsOverLimit(t *testing.T) {
	limiter, client := newValkeyLimiterUnderTest(t, 2)
	ctx := context.Background()

	client.EXPECT().Do(ctx, mock.Match("INCR", "test:k:10")).Return(mock.Result(mock.ValkeyInt64(2)))
	allowed, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	require.True(t, allowed, "the limit itself is still allowed")

	client.EXPECT().Do(ctx, mock.Match("INCR", "test:k:10")).Return(mock.Result(mock.ValkeyInt64(3)))
	allowed, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestValkeyLimiterSurfacesErrors(t *testing.T) {
	limiter, client := newValkeyLimiterUnderTest(t, 2)
	ctx := context.Background()

	client.EXPECT().Do(ctx, mock.Match("INCR", "test:k:10")).Return(mock.ErrorResult(errors.New("connection reset")))
	_, err := limiter.Allow(ctx, "k")
	require.ErrorContains(t, err, "connection reset")

	gomock.InOrder(
		client.EXPECT().Do(ctx, mock.Match("INCR", "test:k:10")).Return(mock.Result(mock.ValkeyInt64(1))),
		client.EXPECT().Do(ctx, mock.Match("EXPIRE", "test:k:10", "90")).Return(mock.ErrorResult(errors.New("readonly replica"))),
	)
	_, err = limiter.Allow(ctx, "k")
	require.ErrorContains(t, err, "expire rate counter")
}

func TestValkeyWindowKey(t *testing.T) {
	limiter := NewValkeyLimiter(nil, "", 10)
	at := time.Unix(120, 0)
	require.Equal(t, "faq-search:ratelimit:1.2.3.4:2", limiter.windowKey("1.2.3.4", at))
	require.Equal(t, limiter.windowKey("k", at), limiter.windowKey("k", at.Add(59*time.Second)))
}
