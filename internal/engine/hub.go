package engine

import (
	"time"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/message"
	"github.com/kode4food/caravan/topic"

	"github.com/flumeworks/flume/pkg/api"
)

type (
	// Hub fans engine events out to subscribers. Every consumer created
	// from the hub receives all events published after it subscribes
	Hub struct {
		topic topic.Topic[*api.Event]
		prod  topic.Producer[*api.Event]
	}

	// EventConsumer consumes events from the hub
	EventConsumer = topic.Consumer[*api.Event]
)

// NewHub creates a new event hub
func NewHub() *Hub {
	t := caravan.NewTopic[*api.Event]()
	return &Hub{
		topic: t,
		prod:  t.NewProducer(),
	}
}

// Publish stamps an event with the current time if needed and emits it
func (h *Hub) Publish(ev *api.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	message.Send(h.prod, ev)
}

// NewConsumer returns a consumer that receives subsequently published
// events. Callers own the consumer and must Close it when done
func (h *Hub) NewConsumer() EventConsumer {
	return h.topic.NewConsumer()
}

// Close shuts down the hub's producer side
func (h *Hub) Close() {
	h.prod.Close()
}
