package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
)

// Dispatcher buffers notifications and drains them to a Sink from a single
// background goroutine started by Run.
type Dispatcher struct {
	sink          Sink
	buffer        *ringBuffer
	wake          chan struct{}
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	sent          prometheus.Counter
	failed        prometheus.Counter
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithCapacity(n int) Option {
	return func(d *Dispatcher) {
		d.buffer = newRingBuffer(n)
	}
}

func WithBatchSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

func WithFlushInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.flushInterval = interval
		}
	}
}

// WithCounters attaches sent/failed counters; callers own their registration.
func WithCounters(sent, failed prometheus.Counter) Option {
	return func(d *Dispatcher) {
		d.sent = sent
		d.failed = failed
	}
}

func NewDispatcher(sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sink:          sink,
		buffer:        newRingBuffer(defaultBufferCapacity),
		wake:          make(chan struct{}, 1),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify enqueues n without blocking.
func (d *Dispatcher) Notify(_ context.Context, n Notification) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	d.buffer.enqueue(n)
	if d.buffer.len() >= d.batchSize {
		select {
		case d.wake <- struct{}{}:
		default:
		}
	}
}

// Run drains the buffer until ctx is cancelled, then flushes what is left with
// a short grace period.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			d.flush(drainCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			d.flush(ctx)
		case <-d.wake:
			d.flush(ctx)
		}
	}
}

func (d *Dispatcher) flush(ctx context.Context) {
	for {
		batch := d.buffer.dequeueBatch(d.batchSize)
		if len(batch) == 0 {
			return
		}
		if err := d.sink.Send(ctx, batch); err != nil {
			d.logger.ErrorContext(ctx, "notification batch dropped",
				"error", err,
				"batch_size", len(batch),
			)
			if d.failed != nil {
				d.failed.Add(float64(len(batch)))
			}
			continue
		}
		if d.sent != nil {
			d.sent.Add(float64(len(batch)))
		}
	}
}

// Pending returns the number of buffered notifications.
func (d *Dispatcher) Pending() int {
	return d.buffer.len()
}

// Dropped returns how many notifications were evicted by a full buffer.
func (d *Dispatcher) Dropped() int64 {
	return d.buffer.droppedCount()
}
