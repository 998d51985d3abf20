package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Hub is a thin pub/sub fan-out over Redis channels. It carries inserted-row
// events for messages and matches; durability stays with the database, the
// hub only pushes.
type Hub struct {
	client *redis.Client
	log    *slog.Logger
}

func NewHub(client *redis.Client, log *slog.Logger) *Hub {
	return &Hub{client: client, log: log}
}

// MessageChannel is the channel carrying inserted messages for one match.
func MessageChannel(matchID string) string {
	return fmt.Sprintf("messages:%s", matchID)
}

// MatchChannel is the channel carrying new matches for one user.
func MatchChannel(userID string) string {
	return fmt.Sprintf("matches:%s", userID)
}

// Publish marshals v to JSON and publishes it on the channel. Delivery is
// best-effort; subscribers that joined later never see the event.
func (h *Hub) Publish(ctx context.Context, channel string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return h.client.Publish(ctx, channel, payload).Err()
}

// Subscription is a live channel subscription. The caller owns it and must
// call Close when done; the hub never tears subscriptions down on its own.
type Subscription struct {
	ps   *redis.PubSub
	done chan struct{}
}

// Close tears the subscription down and stops its delivery goroutine.
func (s *Subscription) Close() error {
	close(s.done)
	return s.ps.Close()
}

// Subscribe opens a subscription on the channel and invokes cb once per
// published payload. cb runs on the subscription's own goroutine; callers
// that share state with it must synchronize on their side.
func (h *Hub) Subscribe(channel string, cb func(payload []byte)) *Subscription {
	ps := h.client.Subscribe(context.Background(), channel)
	sub := &Subscription{ps: ps, done: make(chan struct{})}

	go func() {
		ch := ps.Channel()
		for {
			select {
			case <-sub.done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				cb([]byte(msg.Payload))
			}
		}
	}()

	return sub
}

// SubscribeJSON decodes each payload into a fresh T before invoking cb.
// Undecodable payloads are logged and dropped.
func SubscribeJSON[T any](h *Hub, channel string, cb func(T)) *Subscription {
	return h.Subscribe(channel, func(payload []byte) {
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			h.log.Warn("dropping undecodable event", "channel", channel, "err", err)
			return
		}
		cb(v)
	})
}
