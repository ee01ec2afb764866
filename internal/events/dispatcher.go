package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nkiryanov/authkeeper/internal/logger"
)

const (
	DefaultBufferSize     = 256
	DefaultPublishTimeout = 5 * time.Second
)

type DispatcherConfig struct {
	BufferSize     int
	PublishTimeout time.Duration

	// Called for every event dropped because the buffer is full
	OnDrop func(Event)
}

// Dispatcher publishes events in background.
// Emit never blocks: when the buffer is full the event is dropped.
// Publish failures are logged and forgotten.
type Dispatcher struct {
	publisher Publisher
	logger    logger.Logger
	timeout   time.Duration
	onDrop    func(Event)

	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closeOnce sync.Once

	// Guards closed so no event is buffered after drain started
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(cfg DispatcherConfig, publisher Publisher, l logger.Logger) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	if cfg.OnDrop == nil {
		cfg.OnDrop = func(Event) {}
	}

	d := &Dispatcher{
		publisher: publisher,
		logger:    l.With("component", "dispatcher"),
		timeout:   cfg.PublishTimeout,
		onDrop:    cfg.OnDrop,
		ch:        make(chan Event, cfg.BufferSize),
		done:      make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.publish(event)
		case <-d.done:
			// Drain what is buffered already
			for {
				select {
				case event := <-d.ch:
					d.publish(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) publish(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.publisher.Publish(ctx, event); err != nil {
		d.logger.Error("Failed to publish event", "topic", event.Topic, "key", event.Key, "error", err)
	}
}

func (d *Dispatcher) Emit(_ context.Context, event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(event)
		return
	}

	select {
	case d.ch <- event:
	default:
		d.drop(event)
	}
}

func (d *Dispatcher) drop(event Event) {
	d.dropped.Add(1)
	d.onDrop(event)
	d.logger.Warn("Event dropped", "topic", event.Topic, "key", event.Key)
}

// Close stops accepting events and waits until buffered ones are published
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}
