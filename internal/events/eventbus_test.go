package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/trailcam-go/internal/logger"
)

// mockConsumer records consumed events.
type mockConsumer struct {
	name       string
	failWith   error
	panicOnUse bool
	block      chan struct{}

	count  atomic.Int32
	mu     sync.Mutex
	events []PredictionCreated
}

func (m *mockConsumer) Name() string { return m.name }

func (m *mockConsumer) Consume(ctx context.Context, ev PredictionCreated) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.panicOnUse {
		panic("consumer exploded")
	}
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	m.count.Add(1)
	return m.failWith
}

func (m *mockConsumer) ids() []uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint, 0, len(m.events))
	for _, ev := range m.events {
		ids = append(ids, ev.PredictionID)
	}
	return ids
}

func newTestBus(t *testing.T, cfg BusConfig) *Bus {
	t.Helper()
	b := NewBus(cfg, logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil))
	t.Cleanup(func() { _ = b.Shutdown(time.Second) })
	return b
}

func TestBus_DeliversToAllConsumers(t *testing.T) {
	b := newTestBus(t, BusConfig{BufferSize: 10, Workers: 1})
	first := &mockConsumer{name: "first"}
	second := &mockConsumer{name: "second"}
	require.NoError(t, b.RegisterConsumer(first))
	require.NoError(t, b.RegisterConsumer(second))

	rec := bearPrediction()
	require.NoError(t, b.PublishPrediction(t.Context(), nil, rec))

	require.Eventually(t, func() bool {
		return b.Stats().EventsProcessed == 2
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []uint{rec.ID}, first.ids())
	assert.Equal(t, []uint{rec.ID}, second.ids())

	stats := b.Stats()
	assert.Equal(t, uint64(1), stats.EventsReceived)
	assert.Zero(t, stats.EventsDropped)
}

func TestBus_DuplicateConsumer(t *testing.T) {
	b := newTestBus(t, DefaultBusConfig())
	require.NoError(t, b.RegisterConsumer(&mockConsumer{name: "mqtt"}))
	err := b.RegisterConsumer(&mockConsumer{name: "mqtt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestBus_NoConsumersDrops(t *testing.T) {
	b := newTestBus(t, DefaultBusConfig())
	assert.False(t, b.TryPublish(NewPredictionCreated(nil, bearPrediction())))
	assert.Error(t, b.PublishPrediction(t.Context(), nil, bearPrediction()))
}

func TestBus_FullBufferDrops(t *testing.T) {
	block := make(chan struct{})
	b := newTestBus(t, BusConfig{BufferSize: 1, Workers: 1})
	c := &mockConsumer{name: "slow", block: block}
	require.NoError(t, b.RegisterConsumer(c))

	// The worker picks up the first event and blocks; the second fills the buffer.
	require.True(t, b.TryPublish(PredictionCreated{PredictionID: 1}))
	require.Eventually(t, func() bool { return len(b.eventChan) == 0 }, time.Second, time.Millisecond)
	require.True(t, b.TryPublish(PredictionCreated{PredictionID: 2}))
	assert.False(t, b.TryPublish(PredictionCreated{PredictionID: 3}))

	close(block)
	require.Eventually(t, func() bool { return c.count.Load() == 2 }, time.Second, 5*time.Millisecond)

	stats := b.Stats()
	assert.Equal(t, uint64(2), stats.EventsReceived)
	assert.Equal(t, uint64(1), stats.EventsDropped)
}

func TestBus_ConsumerErrorsAndPanics(t *testing.T) {
	b := newTestBus(t, BusConfig{BufferSize: 10, Workers: 1})
	failing := &mockConsumer{name: "failing", failWith: fmt.Errorf("broker down")}
	panicking := &mockConsumer{name: "panicking", panicOnUse: true}
	healthy := &mockConsumer{name: "healthy"}
	require.NoError(t, b.RegisterConsumer(failing))
	require.NoError(t, b.RegisterConsumer(panicking))
	require.NoError(t, b.RegisterConsumer(healthy))

	require.True(t, b.TryPublish(PredictionCreated{PredictionID: 7}))

	require.Eventually(t, func() bool { return b.Stats().EventsProcessed == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), b.Stats().ConsumerErrors)
	assert.Equal(t, int32(1), healthy.count.Load())
}

func TestBus_ShutdownDrainsBuffer(t *testing.T) {
	block := make(chan struct{})
	b := NewBus(BusConfig{BufferSize: 10, Workers: 1}, logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil))
	c := &mockConsumer{name: "slow", block: block}
	require.NoError(t, b.RegisterConsumer(c))

	for i := range 3 {
		require.True(t, b.TryPublish(PredictionCreated{PredictionID: uint(i + 1)}))
	}
	close(block)

	require.NoError(t, b.Shutdown(time.Second))
	assert.Equal(t, int32(3), c.count.Load())
	assert.False(t, b.TryPublish(PredictionCreated{PredictionID: 4}), "closed bus accepts nothing")
	assert.Error(t, b.RegisterConsumer(&mockConsumer{name: "late"}))
}

func TestBus_ShutdownTimeout(t *testing.T) {
	block := make(chan struct{})
	b := NewBus(BusConfig{BufferSize: 1, Workers: 1, ConsumeTimeout: time.Second},
		logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil))
	require.NoError(t, b.RegisterConsumer(&mockConsumer{name: "stuck", block: block}))
	require.True(t, b.TryPublish(PredictionCreated{PredictionID: 1}))
	require.Eventually(t, func() bool { return len(b.eventChan) == 0 }, time.Second, time.Millisecond)

	err := b.Shutdown(10 * time.Millisecond)
	require.Error(t, err)

	close(block)
	require.NoError(t, b.Shutdown(time.Second))
}

func TestBus_MQTTConsumer(t *testing.T) {
	fc := &fakeClient{}
	p := newTestPublisher(t, fc, nil)
	require.NoError(t, p.Connect(t.Context()))

	b := newTestBus(t, BusConfig{BufferSize: 4, Workers: 1})
	require.NoError(t, b.RegisterConsumer(p))
	require.NoError(t, b.PublishPrediction(t.Context(), nil, bearPrediction()))

	require.Eventually(t, func() bool {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		return len(fc.messages) == 1
	}, time.Second, 5*time.Millisecond)

	fc.mu.Lock()
	payload := fc.messages[0].payload
	fc.mu.Unlock()

	var ev PredictionCreated
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, EventPredictionCreated, ev.Event)
	assert.Equal(t, uint(3), ev.PredictionID)
}

func TestBus_PublishDuringShutdownIsNeverStranded(t *testing.T) {
	for range 20 {
		b := NewBus(BusConfig{BufferSize: 64, Workers: 2}, logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil))
		c := &mockConsumer{name: "counter"}
		require.NoError(t, b.RegisterConsumer(c))

		var accepted atomic.Int32
		var wg sync.WaitGroup
		for p := range 4 {
			wg.Go(func() {
				for i := range 50 {
					if b.TryPublish(PredictionCreated{PredictionID: uint(p*100 + i + 1)}) {
						accepted.Add(1)
					}
				}
			})
		}
		require.NoError(t, b.Shutdown(time.Second))
		wg.Wait()

		stats := b.Stats()
		assert.Equal(t, uint64(accepted.Load()), stats.EventsReceived)
		assert.Equal(t, stats.EventsReceived, stats.EventsProcessed, "every accepted event reaches the consumer")
		assert.Equal(t, accepted.Load(), c.count.Load())
	}
}
