package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestParseChange(t *testing.T) {
	occurred := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	change := parseChange(redis.XMessage{
		ID: "1-0",
		Values: map[string]interface{}{
			"table":       "listings",
			"record_id":   "lst_1",
			"action":      ActionUpdate,
			"occurred_at": occurred.Format(time.RFC3339Nano),
		},
	})

	assert.Equal(t, "listings", change.Table)
	assert.Equal(t, "lst_1", change.RecordID)
	assert.Equal(t, ActionUpdate, change.Action)
	assert.True(t, occurred.Equal(change.OccurredAt))

	// Missing or malformed fields degrade to zero values
	empty := parseChange(redis.XMessage{ID: "2-0", Values: map[string]interface{}{"occurred_at": "not-a-time"}})
	assert.Empty(t, empty.Table)
	assert.True(t, empty.OccurredAt.IsZero())
}

// TestStreamConsumer_ClaimsUnackedMessages verifies that a message read by a
// consumer that died before acknowledging is re-delivered by another consumer
// through the pending-claim pass.
func TestStreamConsumer_ClaimsUnackedMessages(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Redis tests not enabled (set TEST_REDIS_ADDR)")
	}

	ctx := context.Background()
	publisher, err := NewRedisPublisher(&RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer publisher.Close()
	client := publisher.Client()

	// Start from a clean stream
	client.Del(ctx, StreamName)

	feed := NewFeed()
	var refreshed []Change
	feed.Subscribe("listings", func(change Change) {
		refreshed = append(refreshed, change)
	})

	survivor, err := NewStreamConsumer(client, feed, "survivor")
	if err != nil {
		t.Fatalf("Failed to create consumer: %v", err)
	}
	survivor.claimMinIdle = 0

	err = publisher.Publish(ctx, Change{
		Table:      "listings",
		RecordID:   "lst_1",
		Action:     ActionUpdate,
		OccurredAt: time.Now(),
	})
	assert.NoError(t, err)

	// A consumer reads the message and dies before acknowledging it
	_, err = client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    GroupName,
		Consumer: "crashed",
		Streams:  []string{StreamName, ">"},
		Count:    1,
		Block:    time.Second,
	}).Result()
	assert.NoError(t, err)
	assert.Empty(t, refreshed)

	// The surviving consumer's claim pass redelivers and acknowledges it
	survivor.claimPendingMessages(ctx)

	assert.Len(t, refreshed, 1)
	assert.Equal(t, "lst_1", refreshed[0].RecordID)

	pending, err := client.XPending(ctx, StreamName, GroupName).Result()
	assert.NoError(t, err)
	assert.Zero(t, pending.Count)
}
