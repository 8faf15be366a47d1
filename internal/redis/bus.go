package redisclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/notify"
)

const DefaultChannel = "clinic:queue_updates"

// Bus carries queue notifications over Redis Pub/Sub so every API instance
// can refresh its own websocket clients.
type Bus struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

func NewBus(client *redis.Client, channel string, logger zerolog.Logger) *Bus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Bus{client: client, channel: channel, logger: logger}
}

func (b *Bus) Publish(ctx context.Context, event notify.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", b.channel, err)
	}
	return nil
}

// Relay forwards every event on the channel to local until ctx is cancelled.
// It returns once the subscription is confirmed or fails.
func (b *Bus) Relay(ctx context.Context, local notify.Publisher) error {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	go func() {
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
				var ev notify.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed notification")
					continue
				}
				if err := local.Publish(ctx, ev); err != nil {
					b.logger.Warn().Err(err).Msg("local fan-out failed")
				}
			}
		}
	}()
	return nil
}
