package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/betclaim/internal/domain"
)

// SignalBus implements domain.SignalBus using Redis Pub/Sub. Claim lifecycle
// events fan out here so API server instances can push them to websocket
// subscribers without polling the journal.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// Publish sends a raw byte payload to a Redis Pub/Sub channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe creates a Redis Pub/Sub subscription over one or more channels
// and returns a read-only channel of raw payloads plus a stop function.
// Calling stop, or cancelling the context, closes the subscription and the
// returned channel.
func (sb *SignalBus) Subscribe(ctx context.Context, channels ...string) (<-chan []byte, func(), error) {
	if len(channels) == 0 {
		return nil, nil, fmt.Errorf("redis: subscribe: no channels")
	}

	var pubsub *redis.PubSub
	if hasPattern(channels) {
		pubsub = sb.rdb.PSubscribe(ctx, channels...)
	} else {
		pubsub = sb.rdb.Subscribe(ctx, channels...)
	}

	// Verify the subscription is established by receiving the confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis: subscribe %s: %w", strings.Join(channels, ","), err)
	}

	subCtx, cancel := context.WithCancel(ctx)

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return out, cancel, nil
}

// hasPattern returns true when any channel includes glob-style wildcards, in
// which case PSubscribe must be used instead of Subscribe.
func hasPattern(channels []string) bool {
	for _, c := range channels {
		if strings.ContainsAny(c, "*?[") {
			return true
		}
	}
	return false
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)
