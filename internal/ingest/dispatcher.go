// Package ingest drains change events into the entity cache, one FIFO queue
// per watched table. Events for the same table are applied in the order they
// were dequeued; events for different tables may be applied in parallel.
//
// Contract: callers must not invoke Submit concurrently for the same table.
// FIFO ordering relies on that external serialisation (in practice each
// change-feed subscription is the sole submitter for its table).
package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mhmod1992/workshop-engine/internal/model"
)

// Handler merges one validated change event into the cache. It is invoked
// from a queue worker; an error return is logged and counted, never
// propagated back into the event source.
type Handler func(ev model.ChangeEvent) error

type item struct {
	ev      model.ChangeEvent
	barrier chan struct{}
}

// Dispatcher owns the per-table queues and their workers.
type Dispatcher struct {
	cfg     Config
	handler Handler
	queues  map[string]chan item
	log     zerolog.Logger

	done   chan struct{} // closed in Stop()
	closed uint32        // 0 running, 1 closed

	wg sync.WaitGroup
}

// NewDispatcher constructs the dispatcher and starts one worker per table.
func NewDispatcher(tables []string, handler Handler, cfg Config, log zerolog.Logger) *Dispatcher {
	cfg.applyDefaults()

	d := &Dispatcher{
		cfg:     cfg,
		handler: handler,
		queues:  make(map[string]chan item, len(tables)),
		log:     log,
		done:    make(chan struct{}),
	}
	for _, table := range tables {
		ch := make(chan item, cfg.QueueSize)
		d.queues[table] = ch
		d.wg.Add(1)
		go d.runWorker(table, ch)
	}
	return d
}

// Submit enqueues ev on its table's queue.
//
//   - Returns nil on success.
//   - Returns ErrDispatcherClosed if the dispatcher is stopped.
//   - Returns ErrUnknownTable if ev.Table has no queue.
//   - Returns a *QueueFullError if the queue is still full after
//     EnqueueTimeout elapses.
//   - Returns ctx.Err() if the caller context is cancelled first.
func (d *Dispatcher) Submit(ctx context.Context, ev model.ChangeEvent) error {
	return d.enqueue(ctx, ev.Table, item{ev: ev})
}

// Barrier enqueues a no-op marker on the table's queue and waits until it is
// dequeued, guaranteeing every previously submitted event for that table has
// been applied.
func (d *Dispatcher) Barrier(ctx context.Context, table string) error {
	bar := make(chan struct{})
	if err := d.enqueue(ctx, table, item{barrier: bar}); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-bar:
		return nil
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, table string, it item) error {
	if atomic.LoadUint32(&d.closed) == 1 {
		return ErrDispatcherClosed
	}
	select {
	case <-d.done:
		return ErrDispatcherClosed
	default:
	}

	ch, ok := d.queues[table]
	if !ok {
		return ErrUnknownTable
	}

	timer := time.NewTimer(d.cfg.EnqueueTimeout)
	defer timer.Stop()

	select {
	case ch <- it:
		eventsSubmitted.WithLabelValues(table).Inc()
		return nil
	case <-d.done:
		return ErrDispatcherClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		queueFullTotal.WithLabelValues(table).Inc()
		return &QueueFullError{Table: table, Length: len(ch), Capacity: cap(ch)}
	}
}

// Stop signals every worker to drain its queue, waits for them to terminate,
// and returns. Idempotent and safe for concurrent use.
func (d *Dispatcher) Stop() {
	if !atomic.CompareAndSwapUint32(&d.closed, 0, 1) {
		return
	}
	close(d.done)
	d.wg.Wait()
	d.log.Debug().Msg("ingest: dispatcher stopped, all queues drained")
}

// Close lets Dispatcher satisfy io.Closer.
func (d *Dispatcher) Close() error {
	d.Stop()
	return nil
}

func (d *Dispatcher) runWorker(table string, ch <-chan item) {
	defer d.wg.Done()

	for {
		select {
		case it := <-ch:
			d.handle(table, it)
			queueDepth.WithLabelValues(table).Set(float64(len(ch)))
		case <-d.done:
			// Drain remaining events, preserving FIFO, then exit.
			for {
				select {
				case it := <-ch:
					d.handle(table, it)
				default:
					queueDepth.WithLabelValues(table).Set(0)
					return
				}
			}
		}
	}
}

// handle applies one queued item. Malformed events are dropped and logged;
// panics in the merge path are contained here so a bad event can never kill
// the table's subscription.
func (d *Dispatcher) handle(table string, it item) {
	if it.barrier != nil {
		close(it.barrier)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			eventsDropped.WithLabelValues(table).Inc()
			d.log.Error().Interface("panic", r).Str("table", table).Msg("ingest: merge panic recovered")
		}
	}()

	if err := it.ev.Validate(); err != nil {
		eventsDropped.WithLabelValues(table).Inc()
		d.log.Warn().Err(err).Str("table", table).Msg("ingest: dropping malformed change event")
		return
	}
	if err := d.handler(it.ev); err != nil {
		eventsDropped.WithLabelValues(table).Inc()
		d.log.Warn().Err(err).Str("table", table).Str("id", it.ev.ID).Msg("ingest: merge failed")
		return
	}
	eventsApplied.WithLabelValues(table).Inc()
}
