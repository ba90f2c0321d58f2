package bus

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process Bus. Publish delivers to subscribers directly; it
// is used in tests and when running against a file-based inventory.
type Local struct {
	pubMu sync.Mutex
	fan   *fanout
}

// NewLocal creates an in-process bus with the given per-subscriber queue size.
func NewLocal(queueSize int) *Local {
	return &Local{fan: newFanout(queueSize)}
}

// SetLogger sets the logger for recovered handler panics. Call before Subscribe.
func (l *Local) SetLogger(logger Logger) {
	l.fan.logger = logger
}

// Subscribe registers handler for events matching filter.
func (l *Local) Subscribe(_ context.Context, filter Filter, handler Handler) (Subscription, error) {
	return l.fan.add(filter, handler)
}

// Publish delivers ev to every matching subscriber, blocking while a
// subscriber's queue is full. Concurrent Publish calls are serialised.
// Returns the number of subscribers the event was queued for.
func (l *Local) Publish(ev Event) int {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	l.pubMu.Lock()
	defer l.pubMu.Unlock()
	return l.fan.dispatch(ev)
}

// Subscribers returns the number of active subscriptions.
func (l *Local) Subscribers() int {
	return l.fan.count()
}

// Close unsubscribes every subscriber.
func (l *Local) Close() {
	l.fan.close()
}
