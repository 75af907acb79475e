// Package notify fans user-facing notifications out of the pipeline,
// exactly once per idempotency key.
package notify

import (
	"log/slog"

	"github.com/bakeline/ordersync/internal/dedup"
)

// Sink receives rendered notifications. Implementations are presentation
// concerns (toast, sound, badge); the pipeline only guarantees once-per-key
// delivery.
type Sink interface {
	Notify(key, message string)
}

// Dispatcher wraps a sink with its own bounded seen-set so a replayed event
// can re-enter the store's apply check without producing a second
// user-facing notification.
type Dispatcher struct {
	sink Sink
	seen *dedup.Set
}

func NewDispatcher(sink Sink, capacity int) *Dispatcher {
	return &Dispatcher{
		sink: sink,
		seen: dedup.NewSet(capacity),
	}
}

// Notify delivers the message unless the key was already notified. Reports
// whether the sink fired.
func (d *Dispatcher) Notify(key, message string) bool {
	if d.sink == nil {
		return false
	}
	if !d.seen.ShouldApply(key) {
		return false
	}
	d.sink.Notify(key, message)
	return true
}

// LogSink writes notifications to the structured log.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Notify(key, message string) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification", "key", key, "message", message)
}

type Notification struct {
	Key     string
	Message string
}

// ChanSink buffers notifications for a consumer loop, dropping the oldest
// when the consumer falls behind.
type ChanSink struct {
	ch chan Notification
}

func NewChanSink(buffer int) *ChanSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChanSink{ch: make(chan Notification, buffer)}
}

func (s *ChanSink) Notify(key, message string) {
	n := Notification{Key: key, Message: message}
	for {
		select {
		case s.ch <- n:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

func (s *ChanSink) Notifications() <-chan Notification { return s.ch }
