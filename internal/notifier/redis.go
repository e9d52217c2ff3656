package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel receives digests when no channel is configured.
const DefaultRedisChannel = "deal-finder:digests"

// RedisTransport publishes the digest as JSON on a pub/sub channel for
// downstream consumers.
type RedisTransport struct {
	client  *redis.Client
	channel string
}

// NewRedisTransport builds the transport.
func NewRedisTransport(client *redis.Client, channel string) *RedisTransport {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisTransport{client: client, channel: channel}
}

// Name implements Transport.
func (t *RedisTransport) Name() string { return TransportRedis }

// Send implements Transport.
func (t *RedisTransport) Send(ctx context.Context, d Digest) error {
	messageJSON, marshalErr := json.Marshal(d)
	if marshalErr != nil {
		return fmt.Errorf("marshal digest: %w", marshalErr)
	}

	if publishErr := t.client.Publish(ctx, t.channel, messageJSON).Err(); publishErr != nil {
		return fmt.Errorf("publish to %s: %w", t.channel, publishErr)
	}
	return nil
}
