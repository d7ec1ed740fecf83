// Package notify delivers judge notifications to the mailer.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the notification stream settings
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

// RedisNotifier appends notifications to a Redis stream consumed by the mailer
type RedisNotifier struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisNotifier connects to Redis and verifies the connection
func NewRedisNotifier(ctx context.Context, cfg RedisConfig) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisNotifierFromClient(client, cfg.Stream, cfg.MaxLen), nil
}

// NewRedisNotifierFromClient wraps an existing client
func NewRedisNotifierFromClient(client *redis.Client, stream string, maxLen int64) *RedisNotifier {
	if stream == "" {
		stream = "judge-notifications"
	}
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisNotifier{client: client, stream: stream, maxLen: maxLen}
}

// Notify appends one message to the stream
func (n *RedisNotifier) Notify(ctx context.Context, recipient, message string) error {
	err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: n.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"recipient":  recipient,
			"message":    message,
			"created_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}

	slog.Debug("notification enqueued", "stream", n.stream, "recipient", recipient)
	return nil
}

// Stream returns the stream name
func (n *RedisNotifier) Stream() string {
	return n.stream
}

// Ping checks Redis connectivity
func (n *RedisNotifier) Ping(ctx context.Context) error {
	return n.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

// LogNotifier only logs notifications. Used when Redis is not configured.
type LogNotifier struct{}

// Notify logs the message
func (LogNotifier) Notify(_ context.Context, recipient, message string) error {
	slog.Info("notification", "recipient", recipient, "message", message)
	return nil
}
