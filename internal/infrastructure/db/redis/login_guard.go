package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxFailures   = 5
	defaultFailureWindow = 15 * time.Minute
)

// LoginGuard counts failed logins per email in a fixed window.
// Key format: login:fail:<email>
type LoginGuard struct {
	client      *redis.Client
	maxFailures int64
	window      time.Duration
}

// NewLoginGuard locks an email after 5 failures within 15 minutes.
func NewLoginGuard(client *redis.Client) *LoginGuard {
	return &LoginGuard{client: client, maxFailures: defaultMaxFailures, window: defaultFailureWindow}
}

// Locked reports whether email has reached the failure limit.
func (g *LoginGuard) Locked(ctx context.Context, email string) (bool, error) {
	n, err := g.client.Get(ctx, g.key(email)).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("login guard check: %w", err)
	}
	return n >= g.maxFailures, nil
}

// RecordFailure increments the counter. The window starts at the first failure.
func (g *LoginGuard) RecordFailure(ctx context.Context, email string) error {
	key := g.key(email)
	pipe := g.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, g.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("login guard record: %w", err)
	}
	return nil
}

func (g *LoginGuard) Reset(ctx context.Context, email string) error {
	if err := g.client.Del(ctx, g.key(email)).Err(); err != nil {
		return fmt.Errorf("login guard reset: %w", err)
	}
	return nil
}

func (g *LoginGuard) key(email string) string {
	return "login:fail:" + email
}
