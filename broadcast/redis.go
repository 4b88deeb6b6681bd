package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "jotlet:group:"

// RedisBus relays published events through Redis pub/sub so every process
// serving sockets for a board receives them. Local subscribers are held in
// a Hub.
type RedisBus struct {
	client redis.UniversalClient
	local  *Hub
	pubsub *redis.PubSub
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewRedisBus subscribes to every board group channel and starts relaying.
// It returns once the subscription is confirmed by the server.
func NewRedisBus(ctx context.Context, client redis.UniversalClient, logger *slog.Logger) (*RedisBus, error) {
	ps := client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe to board groups: %w", err)
	}
	b := &RedisBus{
		client: client,
		local:  NewHub(),
		pubsub: ps,
		logger: logger.With("component", "redis_bus"),
		done:   make(chan struct{}),
	}
	go b.relay()
	return b, nil
}

func (b *RedisBus) Subscribe(ctx context.Context, group string, sub Subscriber) error {
	return b.local.Subscribe(ctx, group, sub)
}

func (b *RedisBus) Unsubscribe(ctx context.Context, group string, sub Subscriber) error {
	return b.local.Unsubscribe(ctx, group, sub)
}

func (b *RedisBus) Publish(ctx context.Context, group string, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, channelPrefix+group, payload).Err(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", evt.Kind, group, err)
	}
	return nil
}

func (b *RedisBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = b.pubsub.Close()
		<-b.done
	})
	return err
}

func (b *RedisBus) relay() {
	defer close(b.done)
	for msg := range b.pubsub.Channel() {
		group := strings.TrimPrefix(msg.Channel, channelPrefix)
		var evt Event
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			b.logger.Warn("Dropping malformed event", "group", group, "error", err)
			continue
		}
		if err := b.local.Publish(context.Background(), group, evt); err != nil {
			b.logger.Error("Failed to deliver relayed event", "group", group, "type", evt.Kind.String(), "error", err)
		}
	}
}
