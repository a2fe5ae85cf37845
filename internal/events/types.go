package events

import "context"

// Consumer receives prediction events from the Bus.
type Consumer interface {
	// Name identifies the consumer in logs and must be unique per bus.
	Name() string

	// Consume handles a single event.
	Consume(ctx context.Context, ev PredictionCreated) error
}

// BusStats tracks event bus counters.
type BusStats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}
