package redisclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-frontdesk/internal/domain"
)

const DefaultChannel = "clinic:events"

// Publisher is the subset of *redis.Client the event publisher needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// EventPublisher forwards committed events to a Redis pub/sub channel so
// displays outside this process can follow the queue.
type EventPublisher struct {
	client  Publisher
	channel string
}

func NewEventPublisher(client Publisher, channel string) *EventPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &EventPublisher{client: client, channel: channel}
}

func (p *EventPublisher) Name() string { return "redis_publisher" }

func (p *EventPublisher) Handle(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}

// Subscribe decodes events published on channel until ctx is done.
func Subscribe(ctx context.Context, client *redis.Client, channel string) <-chan domain.Event {
	if channel == "" {
		channel = DefaultChannel
	}
	pubsub := client.Subscribe(ctx, channel)
	out := make(chan domain.Event, 100)

	go func() {
		defer func() {
			_ = pubsub.Close()
			close(out)
		}()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
