package notify

import (
	"context"
	"log"
	"sync"
	"time"
)

// Dispatcher queues notifications and delivers them on a background
// goroutine, keeping network I/O off the request path. When the queue is
// full the notification is dropped: a missed email must never stall or
// fail a booking.
type Dispatcher struct {
	sink        Sink
	queue       chan Notification
	sendTimeout time.Duration
	wg          sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewDispatcher(sink Sink, queueSize int, sendTimeout time.Duration) *Dispatcher {
	d := &Dispatcher{
		sink:        sink,
		queue:       make(chan Notification, queueSize),
		sendTimeout: sendTimeout,
	}

	d.wg.Add(1)
	go d.worker()
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for n := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		if err := d.sink.Send(ctx, n); err != nil {
			log.Printf("notification %s to %s failed: %v", n.Kind, n.Recipient, err)
		}
		cancel()
	}
}

// Dispatch enqueues a notification without blocking. After Close it is a
// no-op apart from a log line.
func (d *Dispatcher) Dispatch(n Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		log.Printf("dispatcher closed, dropping %s to %s", n.Kind, n.Recipient)
		return
	}

	select {
	case d.queue <- n:
	default:
		log.Printf("notification queue full, dropping %s to %s", n.Kind, n.Recipient)
	}
}

// Close stops accepting notifications and waits for the queue to drain.
// Safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}
