package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
	"github.com/tphakala/trailcam-go/internal/logger"
)

// Default bus sizing.
const (
	DefaultBufferSize      = 1000
	DefaultWorkers         = 2
	DefaultConsumeTimeout  = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// BusConfig holds event bus configuration.
type BusConfig struct {
	BufferSize     int
	Workers        int
	ConsumeTimeout time.Duration
}

// DefaultBusConfig returns the default event bus configuration.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		BufferSize:     DefaultBufferSize,
		Workers:        DefaultWorkers,
		ConsumeTimeout: DefaultConsumeTimeout,
	}
}

// Bus delivers prediction events to consumers on worker goroutines so a slow
// broker never holds up an upload. Publishing never blocks: when the buffer
// is full the event is dropped and counted.
type Bus struct {
	eventChan chan PredictionCreated
	config    BusConfig

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	mu      sync.Mutex

	consumers []Consumer
	stats     BusStats
	log       logger.Logger
}

// NewBus creates a bus. Workers start with the first registered consumer.
func NewBus(config BusConfig, log logger.Logger) *Bus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBufferSize
	}
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.ConsumeTimeout <= 0 {
		config.ConsumeTimeout = DefaultConsumeTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		eventChan: make(chan PredictionCreated, config.BufferSize),
		config:    config,
		ctx:       ctx,
		cancel:    cancel,
		log:       log,
	}
}

// RegisterConsumer adds a consumer and starts the workers on first use.
func (b *Bus) RegisterConsumer(consumer Consumer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx.Err() != nil {
		return fmt.Errorf("event bus is shut down")
	}
	for _, existing := range b.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}

	b.consumers = append(b.consumers, consumer)
	b.log.Info("registered event consumer", logger.String("consumer", consumer.Name()))

	if !b.running.Swap(true) {
		b.log.Info("starting event bus workers", logger.Int("count", b.config.Workers))
		for i := range b.config.Workers {
			b.wg.Go(func() { b.worker(i) })
		}
	}
	return nil
}

// PublishPrediction queues the event for the registered consumers. It only
// fails when the event is dropped.
func (b *Bus) PublishPrediction(_ context.Context, img *entities.ImageMeta, rec *entities.PredictionRecord) error {
	if !b.TryPublish(NewPredictionCreated(img, rec)) {
		return fmt.Errorf("prediction event %d dropped", rec.ID)
	}
	return nil
}

// TryPublish attempts to queue ev without blocking.
// Returns true if the event was accepted, false if dropped.
// The running check and the send happen under mu so an accepted event is
// always in the buffer before Shutdown cancels the workers' drain.
func (b *Bus) TryPublish(ev PredictionCreated) bool {
	b.mu.Lock()
	if !b.running.Load() {
		b.mu.Unlock()
		return false
	}
	select {
	case b.eventChan <- ev:
		atomic.AddUint64(&b.stats.EventsReceived, 1)
		b.mu.Unlock()
		return true
	default:
		atomic.AddUint64(&b.stats.EventsDropped, 1)
		b.mu.Unlock()
	}

	b.log.Warn("event dropped due to full buffer",
		logger.Uint64("prediction_id", uint64(ev.PredictionID)))
	return false
}

func (b *Bus) worker(id int) {
	log := b.log.With(logger.Int("worker_id", id))
	log.Debug("worker started")

	for {
		select {
		case <-b.ctx.Done():
			b.drain(log)
			return
		case ev := <-b.eventChan:
			b.dispatch(ev, log)
		}
	}
}

// drain delivers whatever is still buffered at shutdown.
func (b *Bus) drain(log logger.Logger) {
	for {
		select {
		case ev := <-b.eventChan:
			b.dispatch(ev, log)
		default:
			return
		}
	}
}

// dispatch hands ev to every consumer, isolating panics per consumer.
func (b *Bus) dispatch(ev PredictionCreated, log logger.Logger) {
	b.mu.Lock()
	consumers := make([]Consumer, len(b.consumers))
	copy(consumers, b.consumers)
	b.mu.Unlock()

	for _, consumer := range consumers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&b.stats.ConsumerErrors, 1)
					log.Error("consumer panicked",
						logger.String("consumer", consumer.Name()),
						logger.Any("panic", r),
						logger.Uint64("prediction_id", uint64(ev.PredictionID)))
				}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), b.config.ConsumeTimeout)
			defer cancel()

			if err := consumer.Consume(ctx, ev); err != nil {
				atomic.AddUint64(&b.stats.ConsumerErrors, 1)
				log.Warn("consumer error",
					logger.String("consumer", consumer.Name()),
					logger.Uint64("prediction_id", uint64(ev.PredictionID)),
					logger.Error(err))
				return
			}
			atomic.AddUint64(&b.stats.EventsProcessed, 1)
		}()
	}
}

// Shutdown stops accepting events, lets the workers drain the buffer and
// waits up to timeout for them to finish.
func (b *Bus) Shutdown(timeout time.Duration) error {
	b.mu.Lock()
	b.running.Store(false)
	b.cancel()
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("event bus shutdown complete")
		return nil
	case <-time.After(timeout):
		b.log.Warn("event bus shutdown timeout exceeded", logger.Duration("timeout", timeout))
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// Close shuts the bus down with the default timeout.
func (b *Bus) Close() {
	_ = b.Shutdown(DefaultShutdownTimeout)
}

// Stats returns current counters.
func (b *Bus) Stats() BusStats {
	return BusStats{
		EventsReceived:  atomic.LoadUint64(&b.stats.EventsReceived),
		EventsProcessed: atomic.LoadUint64(&b.stats.EventsProcessed),
		EventsDropped:   atomic.LoadUint64(&b.stats.EventsDropped),
		ConsumerErrors:  atomic.LoadUint64(&b.stats.ConsumerErrors),
	}
}

var _ Publisher = (*Bus)(nil)
