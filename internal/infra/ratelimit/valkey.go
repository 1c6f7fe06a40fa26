package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyLimiter counts requests per key in fixed one-minute windows shared by every replica.
type ValkeyLimiter struct {
	client valkey.Client
	prefix string
	limit  int64
	now    func() time.Time
}

// NewValkeyLimiter allows up to requestsPerMinute calls per key and window.
func NewValkeyLimiter(client valkey.Client, prefix string, requestsPerMinute int) *ValkeyLimiter {
	if prefix == "" {
		prefix = "faq-search:ratelimit"
	}
	return &ValkeyLimiter{client: client, prefix: prefix, limit: int64(requestsPerMinute), now: time.Now}
}

// Allow increments the key's counter for the current window.
func (l *ValkeyLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowKey := l.windowKey(key, l.now())
	count, err := l.client.Do(ctx, l.client.B().Incr().Key(windowKey).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("increment rate counter: %w", err)
	}
	if count == 1 {
		// the window key outlives its minute slightly so late increments still expire
		if err := l.client.Do(ctx, l.client.B().Expire().Key(windowKey).Seconds(90).Build()).Error(); err != nil {
			return false, fmt.Errorf("expire rate counter: %w", err)
		}
	}
	return count <= l.limit, nil
}

func (l *ValkeyLimiter) windowKey(key string, now time.Time) string {
	return fmt.Sprintf("%s:%s:%d", l.prefix, key, now.Unix()/60)
}

var _ Limiter = (*ValkeyLimiter)(nil)
