package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Deliverer performs the actual delivery of a single notification.
// Satisfied by *Store; kept as an interface so tests can inject failures.
type Deliverer interface {
	Deliver(n Notification) error
}

// Dispatcher is an in-process fire-and-forget Sink. Sends are queued on a
// buffered channel and delivered by a pool of worker goroutines. A full queue
// or a failing delivery is logged and dropped, never surfaced to the caller.
type Dispatcher struct {
	deliverer Deliverer
	queue     chan Notification
	done      chan struct{}
	workers   int
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with the given worker count and queue depth.
func NewDispatcher(deliverer Deliverer, workers, queueDepth int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 2
	}
	if queueDepth <= 0 {
		queueDepth = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		deliverer: deliverer,
		queue:     make(chan Notification, queueDepth),
		done:      make(chan struct{}),
		workers:   workers,
		logger:    logger,
	}
}

// Run starts the worker goroutines. It blocks until the context is cancelled,
// then drains the queue and waits for all workers to finish. The queue channel
// is never closed: an in-flight transition may still call Send while the HTTP
// server is shutting down, and such sends are dropped instead of panicking.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("notification dispatcher starting", "workers", d.workers, "queueDepth", cap(d.queue))

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func(workerID int) {
			defer d.wg.Done()
			d.workerLoop(workerID)
		}(i)
	}

	<-ctx.Done()
	close(d.done)
	d.wg.Wait()
	d.logger.Info("notification dispatcher stopped")
}

// Send queues a notification for delivery. It never blocks and never fails:
// when the queue is full or the dispatcher has stopped, the notification is
// dropped with a log line.
func (d *Dispatcher) Send(_ context.Context, n Notification) {
	select {
	case <-d.done:
		d.logger.Warn("notification dispatcher stopped, dropping",
			"userID", n.UserID, "type", n.Type)
		return
	default:
	}
	select {
	case d.queue <- n:
	default:
		d.logger.Warn("notification queue full, dropping",
			"userID", n.UserID, "type", n.Type)
	}
}

func (d *Dispatcher) workerLoop(workerID int) {
	for {
		select {
		case n := <-d.queue:
			d.deliver(workerID, n)
		case <-d.done:
			for {
				select {
				case n := <-d.queue:
					d.deliver(workerID, n)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(workerID int, n Notification) {
	if err := d.deliverer.Deliver(n); err != nil {
		d.logger.Error("notification delivery failed",
			"workerID", workerID,
			"userID", n.UserID,
			"type", n.Type,
			"error", err)
	}
}

// SyncSink delivers notifications inline. Used in tests and small deployments
// where the async dispatcher is not running.
type SyncSink struct {
	Deliverer Deliverer
	Logger    *slog.Logger
}

// Send delivers immediately, logging failures.
func (s SyncSink) Send(_ context.Context, n Notification) {
	if err := s.Deliverer.Deliver(n); err != nil {
		logger := s.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("notification delivery failed", "userID", n.UserID, "type", n.Type, "error", err)
	}
}

// Discard is a Sink that drops everything. Used in tests.
type Discard struct{}

// Send drops the notification.
func (Discard) Send(_ context.Context, _ Notification) {}
