// Package notify delivers short status messages about the dispenser to the outside world. Delivery is
// best effort: a Notifier never blocks the control loop for long and never reports failure to it.
package notify

import (
	"log/slog"
)

// Notifier receives one human-readable event
type Notifier interface {
	Notify(text string)
}

// Sender is a transport that can fail, like a radio modem. Wrap it with Async to get a Notifier
type Sender interface {
	Send(text string) error
}

// Func adapts a function to a Notifier
type Func func(text string)

func (f Func) Notify(text string) { f(text) }

// Nop drops everything
type Nop struct{}

func (Nop) Notify(string) {}

// Multi fans an event out to every Notifier in order
func Multi(notifiers ...Notifier) Notifier {
	return multi(notifiers)
}

type multi []Notifier

func (m multi) Notify(text string) {
	for _, n := range m {
		n.Notify(text)
	}
}

// Log writes events to a slog.Logger at info level
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(text string) {
	l.logger.Info("event", "text", text)
}
