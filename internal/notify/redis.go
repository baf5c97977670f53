package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
)

const channelPrefix = "batch:"

var _ Notifier = (*RedisNotifier)(nil)

// RedisNotifier publishes status payloads on a per-batch pub/sub channel.
// Subscribers that are not listening at publish time simply miss the message,
// matching the fire-and-forget contract.
type RedisNotifier struct {
	client *goredis.Client
}

func NewRedisNotifier(client *goredis.Client) (*RedisNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisNotifier{client: client}, nil
}

// ChannelName returns the pub/sub channel for a batch address.
func ChannelName(address string) string {
	return channelPrefix + strings.TrimSpace(address)
}

func (n *RedisNotifier) Send(ctx context.Context, address string, msg StatusMessage) error {
	if n == nil || n.client == nil {
		return fmt.Errorf("notifier is not initialized")
	}
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("address is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal status message: %w", err)
	}

	if err := n.client.Publish(ctx, ChannelName(address), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish status message: %w", err)
	}
	return nil
}
