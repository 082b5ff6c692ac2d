package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sciencetopia/backend/pkg/config"
	"sciencetopia/backend/pkg/logger"
)

// RedisPublisher publishes JSON-encoded events on a redis pub/sub channel
type RedisPublisher struct {
	rdb     *goredis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisPublisher connects to addr and verifies the connection
func NewRedisPublisher(ctx context.Context, addr, channel string) (*RedisPublisher, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisPublisher{
		rdb:     rdb,
		channel: channel,
		logger:  logger.Named("notify"),
	}, nil
}

// Publish sends event to the channel
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("redis publisher not initialized")
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.logger.Debug("Event published",
		zap.String("kind", event.Kind),
		zap.String("subject", event.Subject),
		zap.Int("recipients", len(event.Recipients)),
	)
	return nil
}

// Close closes the redis client
func (p *RedisPublisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}

// FromConfig returns a redis publisher when REDIS_ADDR is set and Nop
// otherwise. The returned close function is always non-nil.
func FromConfig(ctx context.Context, cfg *config.Config) (Publisher, func() error, error) {
	if !cfg.NotificationsEnabled() {
		return Nop{}, func() error { return nil }, nil
	}
	p, err := NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisChannel)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}
