package bus

import (
	"context"
	"errors"
)

// DefaultQueueSize is the per-subscriber queue length used when none is given.
const DefaultQueueSize = 256

var (
	// ErrNilHandler is returned by Subscribe when handler is nil.
	ErrNilHandler = errors.New("bus: handler is nil")

	// ErrClosed is returned by Subscribe after the bus is closed.
	ErrClosed = errors.New("bus: closed")
)

// Handler processes one event. Handlers for a subscription run one at a
// time, in delivery order, on a goroutine owned by that subscription. They
// should be short and must not block on long I/O.
type Handler func(Event)

// Subscription is the capability returned by Subscribe.
type Subscription interface {
	// ID identifies the subscription in logs.
	ID() string

	// Unsubscribe stops delivery. It is idempotent and safe to call at any
	// time except from the subscription's own handler. When it returns no
	// handler for this subscription is running.
	Unsubscribe() error
}

// Bus delivers host platform notifications to subscribers.
type Bus interface {
	Subscribe(ctx context.Context, filter Filter, handler Handler) (Subscription, error)
}

// Logger is the logging interface used by bus implementations.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
