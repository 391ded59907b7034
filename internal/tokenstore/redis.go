package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erazemk/izposoja/internal/auth"
)

// Redis keeps the token in a Redis key, expiring it together with the token.
type Redis struct {
	client *redis.Client
	key    string
	logger *slog.Logger
	now    func() time.Time
}

var _ Store = (*Redis)(nil)

// NewRedis returns a token store backed by client.
func NewRedis(client *redis.Client, key string, logger *slog.Logger) *Redis {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client: client,
		key:    key,
		logger: logger.With(slog.String("component", "tokenstore")),
		now:    time.Now,
	}
}

// Token returns the stored token, or "" if none is stored.
func (r *Redis) Token(ctx context.Context) (string, error) {
	token, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get token: %w", err)
	}
	return token, nil
}

// SetToken stores token. When the token carries an exp claim the key expires
// at the same moment; otherwise it is kept until deleted.
func (r *Redis) SetToken(ctx context.Context, token string) error {
	var ttl time.Duration
	if exp, err := auth.ExpiresAt(token); err == nil {
		ttl = exp.Sub(r.now())
		if ttl <= 0 {
			return r.DeleteToken(ctx)
		}
	}

	if err := r.client.Set(ctx, r.key, token, ttl).Err(); err != nil {
		return fmt.Errorf("redis set token: %w", err)
	}
	r.logger.DebugContext(ctx, "token stored", slog.Duration("ttl", ttl))
	return nil
}

// DeleteToken removes the stored token.
func (r *Redis) DeleteToken(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del token: %w", err)
	}
	return nil
}
