package queue

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster publishes messages on a Redis pub/sub channel.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
}

// NewRedisBroadcaster binds a broadcaster to channel.
func NewRedisBroadcaster(client *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, channel: channel}
}

// Broadcast publishes payload to every subscriber of the channel.
func (b *RedisBroadcaster) Broadcast(ctx context.Context, payload []byte) error {
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Channel returns the channel name.
func (b *RedisBroadcaster) Channel() string {
	return b.channel
}
