// README: Generic record-change notifications over Redis pub/sub. Replaces
// the hosted backend's change-subscription API with something any consumer
// can observe without vendor coupling.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"chomp/internal/logging"
)

// Event describes a record change. Kind names the record type ("order",
// "payment", "advertisement"), ID the record, Status its new state.
type Event struct {
	Kind   string    `json:"kind"`
	ID     string    `json:"id"`
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

type Broker struct {
	redis *redis.Client
}

func NewBroker(r *redis.Client) *Broker {
	return &Broker{redis: r}
}

func topicChannel(topic string) string {
	return "notify:" + topic
}

// Publish is fire-and-forget: a notification is a convenience, never part
// of the transaction that produced it.
func (b *Broker) Publish(ctx context.Context, topic string, e Event) {
	if b == nil || b.redis == nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := b.redis.Publish(ctx, topicChannel(topic), data).Err(); err != nil {
		logging.Log(logging.Fields{
			Component: "notify",
			Status:    "publish_failed",
			Error:     err.Error(),
		})
	}
}

// Observe subscribes to a topic and delivers decoded events until the
// context is cancelled or the returned stop function runs.
func (b *Broker) Observe(ctx context.Context, topic string) (<-chan Event, func()) {
	out := make(chan Event)
	if b == nil || b.redis == nil {
		close(out)
		return out, func() {}
	}
	sub := b.redis.Subscribe(ctx, topicChannel(topic))
	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, func() { _ = sub.Close() }
}
