package audit

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
)

// Config controls how events are queued on their way to the sink.
//
// With DropIfFull an event that finds the queue full is counted as dropped
// and the caller continues. Without it the caller waits for space until its
// context is done, and a context that ends first also counts as a drop.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// Logger receives sink panics and the shutdown summary. Nil discards.
	Logger *slog.Logger
}

// Stats is a point-in-time view of dispatcher delivery.
type Stats struct {
	Delivered  uint64
	Dropped    uint64
	SinkPanics uint64
	Pending    int
}

// Dispatcher relays audit events to a [Sink] from one background goroutine,
// so a slow sink never runs on the submission path.
type Dispatcher struct {
	cfg    Config
	sink   Sink
	logger *slog.Logger
	queue  chan Event
	stop   chan struct{}
	wg     sync.WaitGroup

	delivered  atomic.Uint64
	sinkPanics atomic.Uint64
	dropped    atomic.Uint64

	dropMu      sync.Mutex
	droppedType map[string]uint64

	closed    atomic.Bool
	closeOnce sync.Once
	flushed   int
}

// NewDispatcher starts a dispatcher. It returns nil when cfg.Enabled is
// false; every method is safe on a nil *Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d := &Dispatcher{
		cfg:         cfg,
		sink:        sink,
		logger:      logger,
		queue:       make(chan Event, cfg.BufferSize),
		stop:        make(chan struct{}),
		droppedType: make(map[string]uint64),
	}

	d.wg.Add(1)
	go d.loop()

	return d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			d.flushed = d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() int {
	n := 0
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
			n++
		default:
			return n
		}
	}
}

// deliver hands one event to the sink. A panicking sink loses that event
// only; the loop keeps running.
func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.sinkPanics.Add(1)
			d.logger.Error("goFlag: audit sink panicked", "event_type", ev.EventType, "panic", r)
		}
	}()
	d.sink.Emit(context.Background(), ev)
	d.delivered.Add(1)
}

// Emit queues ev for delivery and reports whether it was accepted. Events
// emitted after Close are discarded without being counted.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) bool {
	if d == nil || d.closed.Load() {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- ev:
			return true
		case <-d.stop:
			return false
		default:
			d.drop(ev.EventType)
			return false
		}
	}

	select {
	case d.queue <- ev:
		return true
	case <-ctx.Done():
		d.drop(ev.EventType)
		return false
	case <-d.stop:
		return false
	}
}

func (d *Dispatcher) drop(eventType string) {
	d.dropped.Add(1)
	d.dropMu.Lock()
	d.droppedType[eventType]++
	d.dropMu.Unlock()
}

// Close stops accepting events, delivers everything still queued and
// returns how many events that final flush delivered. Later calls return
// the same count.
func (d *Dispatcher) Close() int {
	if d == nil {
		return 0
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.wg.Wait()

		s := d.Stats()
		d.logger.Info("goFlag: audit dispatcher closed",
			"delivered", s.Delivered,
			"dropped", s.Dropped,
			"flushed_on_close", d.flushed,
			"sink_panics", s.SinkPanics,
		)
	})
	return d.flushed
}

// Dropped returns the total number of dropped events.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// DroppedByType returns a copy of the drop counts keyed by event type.
func (d *Dispatcher) DroppedByType() map[string]uint64 {
	if d == nil {
		return map[string]uint64{}
	}
	d.dropMu.Lock()
	defer d.dropMu.Unlock()
	return maps.Clone(d.droppedType)
}

// Stats returns current delivery counters.
func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		Delivered:  d.delivered.Load(),
		Dropped:    d.dropped.Load(),
		SinkPanics: d.sinkPanics.Load(),
		Pending:    len(d.queue),
	}
}
