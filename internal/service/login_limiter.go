package service

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const loginFailKeyPrefix = "login:fail:"

// LoginLimiter tracks failed login attempts per email in Redis. It is an
// internal policy of the credential verifier: a limited account surfaces the
// same generic failure as a wrong password, so callers cannot tell the two
// apart. The limiter fails open when Redis is unavailable.
type LoginLimiter struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

// NewLoginLimiter builds a limiter. A nil client disables limiting.
func NewLoginLimiter(client *redis.Client, maxAttempts int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{client: client, maxAttempts: maxAttempts, window: window}
}

// TooManyFailures reports whether the email has exceeded the failure budget
// within the current window.
func (l *LoginLimiter) TooManyFailures(ctx context.Context, email string) bool {
	if l == nil || l.client == nil || l.maxAttempts <= 0 {
		return false
	}
	count, err := l.client.Get(ctx, l.key(email)).Int()
	if err != nil {
		return false
	}
	return count >= l.maxAttempts
}

// RecordFailure increments the failure counter, starting the window on the
// first failure.
func (l *LoginLimiter) RecordFailure(ctx context.Context, email string) {
	if l == nil || l.client == nil {
		return
	}
	key := l.key(email)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return
	}
	if count == 1 && l.window > 0 {
		l.client.Expire(ctx, key, l.window)
	}
}

// Reset clears the failure counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, email string) {
	if l == nil || l.client == nil {
		return
	}
	l.client.Del(ctx, l.key(email))
}

func (l *LoginLimiter) key(email string) string {
	return loginFailKeyPrefix + strings.ToLower(email)
}
