package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the Redis-backed change feed
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// RedisPublisher publishes change notifications onto a Redis stream via XADD
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates and connects a new RedisPublisher
func NewRedisPublisher(cfg *RedisConfig) (*RedisPublisher, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.Username != "" {
		opts.Username = cfg.Username
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisPublisher{client: rdb}, nil
}

// Publish adds the change to the stream. Using '*' as the ID tells Redis to
// auto-generate a timestamp-based ID.
func (p *RedisPublisher) Publish(ctx context.Context, change Change) error {
	args := &redis.XAddArgs{
		Stream: StreamName,
		Values: map[string]interface{}{
			"table":       change.Table,
			"record_id":   change.RecordID,
			"action":      change.Action,
			"occurred_at": change.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to XADD to stream %s: %w", StreamName, err)
	}
	return nil
}

// Close gracefully closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Client returns the underlying Redis client so a StreamConsumer can share
// the connection
func (p *RedisPublisher) Client() *redis.Client {
	return p.client
}

// StreamConsumer reads change notifications from the Redis stream and
// dispatches them to a Feed
type StreamConsumer struct {
	client       *redis.Client
	feed         *Feed
	consumerName string
	claimMinIdle time.Duration
}

// NewStreamConsumer creates a new consumer and ensures the stream group
// exists. The group-create command is idempotent; '$' means only new messages
// are read and MKSTREAM creates the stream if missing.
func NewStreamConsumer(client *redis.Client, feed *Feed, consumerName string) (*StreamConsumer, error) {
	ctx := context.Background()

	err := client.XGroupCreateMkStream(ctx, StreamName, GroupName, "$").Err()
	if err != nil && !isBusyGroupError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &StreamConsumer{
		client:       client,
		feed:         feed,
		consumerName: consumerName,
		claimMinIdle: ClaimMinIdle,
	}, nil
}

// Start consumes change events in a blocking loop. Run in a goroutine; the
// loop exits when ctx is cancelled.
func (c *StreamConsumer) Start(ctx context.Context) {
	slog.Info("Starting change-feed stream consumer", "stream", StreamName, "consumer", c.consumerName)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Change-feed consumer shutting down")
			return
		default:
			// First reclaim any stuck messages, then read new ones
			c.claimPendingMessages(ctx)
			c.readNewMessages(ctx)
		}
	}
}

// readNewMessages blocks for new messages, dispatches them and acknowledges
func (c *StreamConsumer) readNewMessages(ctx context.Context) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    GroupName,
		Consumer: c.consumerName,
		Streams:  []string{StreamName, ">"},
		Count:    1,
		Block:    BlockTimeout,
	}).Result()
	if err != nil {
		// redis.Nil indicates a block timeout, which is normal
		if err == redis.Nil || ctx.Err() != nil {
			return
		}
		slog.Error("Failed to read from change-feed stream", "error", err)
		return
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			c.dispatchAndAck(ctx, msg)
		}
	}
}

// claimPendingMessages redelivers messages another consumer read but never
// acknowledged. A consumer that dies between dispatch and ack leaves its
// message in the group's pending-entries list; without this pass no instance
// would ever see it again.
func (c *StreamConsumer) claimPendingMessages(ctx context.Context) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: StreamName,
		Group:  GroupName,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   c.claimMinIdle,
	}).Result()
	if err != nil {
		if err == redis.Nil || ctx.Err() != nil {
			return
		}
		slog.Error("Failed to check pending change-feed messages", "error", err)
		return
	}

	for _, p := range pending {
		if p.Idle < c.claimMinIdle {
			continue
		}

		claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   StreamName,
			Group:    GroupName,
			Consumer: c.consumerName,
			MinIdle:  c.claimMinIdle,
			Messages: []string{p.ID},
		}).Result()
		if err != nil {
			slog.Error("Failed to claim change-feed message", "error", err, "message_id", p.ID)
			continue
		}

		slog.Info("Re-claimed idle change-feed message", "message_id", p.ID, "previous_consumer", p.Consumer)
		for _, msg := range claimed {
			c.dispatchAndAck(ctx, msg)
		}
	}
}

// dispatchAndAck delivers one message to the feed and acknowledges it
func (c *StreamConsumer) dispatchAndAck(ctx context.Context, msg redis.XMessage) {
	c.feed.Dispatch(parseChange(msg))
	if err := c.client.XAck(ctx, StreamName, GroupName, msg.ID).Err(); err != nil {
		slog.Error("Failed to ack change-feed message", "error", err, "message_id", msg.ID)
	}
}

// parseChange converts a stream message back into a Change
func parseChange(msg redis.XMessage) Change {
	change := Change{}
	if v, ok := msg.Values["table"].(string); ok {
		change.Table = v
	}
	if v, ok := msg.Values["record_id"].(string); ok {
		change.RecordID = v
	}
	if v, ok := msg.Values["action"].(string); ok {
		change.Action = v
	}
	if v, ok := msg.Values["occurred_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			change.OccurredAt = t
		}
	}
	return change
}

// isBusyGroupError checks for the BUSYGROUP error indicating the consumer
// group already exists
func isBusyGroupError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToUpper(err.Error()), "BUSYGROUP")
}
