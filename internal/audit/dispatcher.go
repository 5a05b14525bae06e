package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// WriteTimeout bounds each sink write. Zero means no bound.
	WriteTimeout time.Duration
	// OnFailure is called from the dispatch goroutine when the sink rejects an event.
	OnFailure func(Event, error)
	// OnDrop is called when an event is discarded because the buffer is full,
	// the caller's context ended, or the dispatcher is closed.
	OnDrop func(Event)
}

// Dispatcher asynchronously forwards audit events to a sink.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

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

	d := &Dispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan Event, cfg.BufferSize),
		done: make(chan struct{}),
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
			d.write(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.write(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) write(event Event) {
	ctx := context.Background()
	if d.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.WriteTimeout)
		defer cancel()
	}
	if err := d.sink.Emit(ctx, event); err != nil {
		d.failed.Add(1)
		if d.cfg.OnFailure != nil {
			d.cfg.OnFailure(event, err)
		}
	}
}

// Emit queues event. It never reports sink errors; those go to OnFailure.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if d.closed.Load() {
		d.drop(event)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
			d.drop(event)
		default:
			d.drop(event)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.drop(event)
	case <-d.done:
		d.drop(event)
	}
}

func (d *Dispatcher) drop(event Event) {
	d.dropped.Add(1)
	if d.cfg.OnDrop != nil {
		d.cfg.OnDrop(event)
	}
}

// Close stops accepting events and waits until the buffer is drained.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
