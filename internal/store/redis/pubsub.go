// Package redis mirrors board events onto Redis pub/sub so read-only
// observers outside the process can follow a board.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// subscriptionBuffer is how many messages a subscriber may lag behind
// before go-redis starts dropping for it.
const subscriptionBuffer = 256

// PubSub wraps a Redis client for publishing and subscribing to board
// channels.
type PubSub struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, addr, password string, db int) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &PubSub{client: client}, nil
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (ps *PubSub) Ping(ctx context.Context) error {
	if err := ps.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Ping: %w", err)
	}
	return nil
}

func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ps.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Publish: %w", err)
	}
	return nil
}

// Subscribe streams payloads published on any of channels, in arrival
// order, until ctx ends or cleanup is called. The returned channel is
// closed when the stream stops.
func (ps *PubSub) Subscribe(ctx context.Context, channels ...string) (<-chan []byte, func(), error) {
	sub := ps.client.Subscribe(ctx, channels...)

	// One confirmation arrives per channel.
	for range channels {
		if _, err := sub.Receive(ctx); err != nil {
			_ = sub.Close()
			return nil, nil, fmt.Errorf("redis.PubSub.Subscribe: receive confirmation: %w", err)
		}
	}

	out := make(chan []byte)
	msgs := sub.Channel(redis.WithChannelSize(subscriptionBuffer))

	go func() {
		defer close(out)
		for msg := range msgs {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = sub.Close() }, nil
}

// BoardChannel returns the Redis channel name carrying a board's events.
func BoardChannel(boardID string) string {
	return "zenboard:board:" + boardID
}

// BoardsChannel returns the Redis channel name for process-wide events
// (board list changes).
func BoardsChannel() string {
	return "zenboard:boards"
}
