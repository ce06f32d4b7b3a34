package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const defaultDrainTimeout = 5 * time.Second

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events when the buffer is full instead of
	// blocking the emitting operation.
	DropIfFull bool
	// DrainTimeout bounds how long Close keeps delivering buffered events.
	// Events still queued afterwards are counted as dropped.
	DrainTimeout time.Duration
	Logger       *slog.Logger
}

// Dispatcher delivers events to a sink on a single background goroutine,
// in emission order.
type Dispatcher struct {
	cfg  Config
	sink Sink
	ch   chan Event

	// sinkCtx is handed to the sink and canceled once the drain deadline
	// passes, so a stalled sink cannot hold Close forever.
	sinkCtx    context.Context
	cancelSink context.CancelFunc

	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher returns nil when cfg is disabled. A nil *Dispatcher ignores
// every call.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	sinkCtx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:        cfg,
		sink:       sink,
		ch:         make(chan Event, cfg.BufferSize),
		sinkCtx:    sinkCtx,
		cancelSink: cancel,
		done:       make(chan struct{}),
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
			d.deliver(event)
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		default:
			return
		}
	}
}

// deliver drops instead of calling the sink once the drain deadline has
// canceled sinkCtx.
func (d *Dispatcher) deliver(event Event) {
	if d.sinkCtx.Err() != nil {
		d.dropped.Add(1)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.dropped.Add(1)
			d.cfg.Logger.Error("audit sink panicked", "event_type", event.EventType, "panic", r)
		}
	}()
	d.sink.Emit(d.sinkCtx, event)
}

// Emit queues event. With DropIfFull it never blocks; otherwise it waits
// for buffer space until ctx is done or the dispatcher closes.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.done:
	}
}

// Close stops accepting events, drains the buffer within DrainTimeout and
// waits for the worker. It is idempotent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)

		deadline := time.AfterFunc(d.cfg.DrainTimeout, d.cancelSink)
		d.wg.Wait()
		if !deadline.Stop() {
			d.cfg.Logger.Warn("audit drain timed out", "dropped", d.dropped.Load())
		}
		d.cancelSink()
	})
}

// Dropped reports events lost to a full buffer, a canceled emitter, a
// panicking sink or the drain deadline.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
