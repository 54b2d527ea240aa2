package messaging

import (
	"context"
	"encoding/json"

	cachepkg "github.com/pulsehub/pulse-engagement-hub/internal/infrastructure/persistence/redis"
)

// CachePubSubAdapter adapts the redis Cache to the PubSubClient interface.
type CachePubSubAdapter struct {
	cache *cachepkg.Cache
}

// NewCachePubSubAdapter creates an adapter over the shared Redis cache.
func NewCachePubSubAdapter(cache *cachepkg.Cache) *CachePubSubAdapter {
	return &CachePubSubAdapter{cache: cache}
}

// Publish sends a message to the channel.
func (a *CachePubSubAdapter) Publish(ctx context.Context, channel string, message interface{}) error {
	return a.cache.Publish(ctx, channel, message)
}

// Subscribe subscribes to the channel and streams payloads until ctx is done.
func (a *CachePubSubAdapter) Subscribe(ctx context.Context, channel string) (<-chan string, error) {
	sub := a.cache.Subscribe(ctx, channel)

	// Confirm the subscription before returning, so a dead Redis fails fast.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				// Cache.Publish JSON-encodes its argument; the bus passes a
				// string, so unwrap one level of encoding.
				payload := msg.Payload
				var unquoted string
				if err := json.Unmarshal([]byte(payload), &unquoted); err == nil {
					payload = unquoted
				}

				select {
				case out <- payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
