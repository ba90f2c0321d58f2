package bus

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// fanout delivers events to subscribers through one bounded queue and one
// drain goroutine per subscriber.
//
// dispatch blocks while a matching subscriber's queue is full, so events
// are never dropped; a slow subscriber slows the publisher instead.
type fanout struct {
	queueSize int

	mu     sync.RWMutex
	subs   map[string]*subscriber
	order  []string // subscription ids in subscription order
	closed bool

	logger Logger
}

func newFanout(queueSize int) *fanout {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &fanout{
		queueSize: queueSize,
		subs:      make(map[string]*subscriber),
		logger:    noopLogger{},
	}
}

type subscriber struct {
	id      string
	match   matcher
	handler Handler
	queue   chan Event

	once    sync.Once
	done    chan struct{}
	stopped chan struct{}

	owner *fanout
}

func (f *fanout) add(filter Filter, handler Handler) (*subscriber, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}

	s := &subscriber{
		id:      uuid.NewString(),
		match:   filter.compile(),
		handler: handler,
		queue:   make(chan Event, f.queueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		owner:   f,
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	f.subs[s.id] = s
	f.order = append(f.order, s.id)
	f.mu.Unlock()

	go s.drain(f.logger)
	return s, nil
}

// dispatch enqueues ev for every matching subscriber. Calls must be
// serialised by the caller for per-entity order to hold.
func (f *fanout) dispatch(ev Event) int {
	f.mu.RLock()
	targets := make([]*subscriber, 0, len(f.order))
	for _, id := range f.order {
		if s := f.subs[id]; s.match.match(ev) {
			targets = append(targets, s)
		}
	}
	f.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		select {
		case s.queue <- ev:
			delivered++
		case <-s.done:
		}
	}
	return delivered
}

func (f *fanout) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.subs, id)
	for i, sid := range f.order {
		if sid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

func (f *fanout) count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// close unsubscribes everyone and refuses new subscriptions.
func (f *fanout) close() {
	f.mu.Lock()
	f.closed = true
	subs := make([]*subscriber, 0, len(f.subs))
	for _, id := range f.order {
		subs = append(subs, f.subs[id])
	}
	f.mu.Unlock()

	for _, s := range subs {
		_ = s.Unsubscribe() //nolint:errcheck // Unsubscribe never fails
	}
}

func (s *subscriber) ID() string { return s.id }

func (s *subscriber) Unsubscribe() error {
	s.once.Do(func() {
		s.owner.remove(s.id)
		close(s.done)
	})
	<-s.stopped
	return nil
}

func (s *subscriber) drain(logger Logger) {
	defer close(s.stopped)
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.queue:
			// Unsubscribe wins over queued events.
			select {
			case <-s.done:
				return
			default:
			}
			s.invoke(logger, ev)
		}
	}
}

func (s *subscriber) invoke(logger Logger, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("bus handler panic recovered",
				"subscription", s.id,
				"event_type", ev.Type,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	s.handler(ev)
}
