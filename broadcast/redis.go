package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis implements Broadcaster over Redis pub/sub. Group membership is
// whatever is subscribed to the group's channel at publish time.
type Redis struct {
	rdb *redis.Client
}

var _ Broadcaster = (*Redis)(nil)

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (b *Redis) Publish(ctx context.Context, group Group, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal logout event: %w", err)
	}
	if err := b.rdb.Publish(ctx, group.Channel(), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish logout event: %w", err)
	}
	return nil
}

// Subscribe delivers events published to the group until ctx is cancelled.
// It is the connectionable side of the broadcaster, used by real-time
// gateways holding client connections.
func (b *Redis) Subscribe(ctx context.Context, group Group) (<-chan Event, error) {
	sub := b.rdb.Subscribe(ctx, group.Channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to logout channel: %w", err)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
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
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}
