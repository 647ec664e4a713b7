package notify

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Async runs a Sender on its own goroutine. Notify only queues the text, and when the queue is full
// the event is dropped. Send errors are logged
type Async struct {
	sender Sender
	queue  chan string
	logger *slog.Logger

	dropped atomic.Uint32
	wg      sync.WaitGroup
	once    sync.Once
}

// NewAsync starts the delivery goroutine. Close stops it after the queue is drained
func NewAsync(sender Sender, size int, logger *slog.Logger) *Async {
	if logger == nil {
		logger = slog.Default()
	}
	if size < 1 {
		size = 1
	}

	a := &Async{
		sender: sender,
		queue:  make(chan string, size),
		logger: logger.With("component", "notify"),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for text := range a.queue {
		err := a.sender.Send(text)
		if err != nil {
			a.logger.Warn("failed to deliver notification", "text", text, "error", err)
		}
	}
}

func (a *Async) Notify(text string) {
	select {
	case a.queue <- text:
	default:
		a.dropped.Add(1)
		a.logger.Warn("notification queue full, dropping", "text", text)
	}
}

// Dropped is the number of events that did not fit in the queue
func (a *Async) Dropped() int {
	return int(a.dropped.Load())
}

// Close waits for queued events to be delivered. Notify must not be called after Close
func (a *Async) Close() {
	a.once.Do(func() {
		close(a.queue)
	})
	a.wg.Wait()
}
