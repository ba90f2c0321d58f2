package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// collector gathers delivered events for assertions.
type collector struct {
	mu     sync.Mutex
	events []Event
	signal chan struct{}
}

func newCollector() *collector {
	return &collector{signal: make(chan struct{}, 1024)}
}

func (c *collector) handle(ev Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	c.signal <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) []Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		c.mu.Lock()
		got := len(c.events)
		c.mu.Unlock()
		if got >= n {
			break
		}
		select {
		case <-c.signal:
		case <-deadline:
			t.Fatalf("timeout: got %d events, want %d", got, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func stateEvent(entity string, seq int) Event {
	return Event{
		Type:     EventStateChanged,
		Domain:   "hue",
		EntityID: entity,
		Payload:  []byte(fmt.Sprintf(`{"seq":%d}`, seq)),
	}
}

func TestLocal_PreservesOrderUnderBackpressure(t *testing.T) {
	b := NewLocal(1)
	defer b.Close()

	c := newCollector()
	slow := func(ev Event) {
		time.Sleep(time.Millisecond)
		c.handle(ev)
	}
	if _, err := b.Subscribe(context.Background(), Filter{}, slow); err != nil {
		t.Fatal(err)
	}

	const n = 50
	for i := 0; i < n; i++ {
		if got := b.Publish(stateEvent("light.a", i)); got != 1 {
			t.Fatalf("Publish() delivered to %d subscribers, want 1", got)
		}
	}

	events := c.wait(t, n)
	for i, ev := range events {
		if want := fmt.Sprintf(`{"seq":%d}`, i); string(ev.Payload) != want {
			t.Fatalf("event %d payload = %s, want %s", i, ev.Payload, want)
		}
	}
}

func TestLocal_Filter(t *testing.T) {
	b := NewLocal(8)
	defer b.Close()

	tests := []struct {
		name   string
		filter Filter
		event  Event
		want   bool
	}{
		{"empty matches all", Filter{}, stateEvent("light.a", 0), true},
		{"entity in set", Filter{Entities: []string{"light.a"}}, stateEvent("light.a", 0), true},
		{"entity not in set", Filter{Entities: []string{"light.b"}}, stateEvent("light.a", 0), false},
		{"domain mismatch", Filter{Domains: []string{"zwave"}}, stateEvent("light.a", 0), false},
		{"type mismatch", Filter{Types: []EventType{EventDeviceLeft}}, stateEvent("light.a", 0), false},
		{"all fields match", Filter{Entities: []string{"light.a"}, Domains: []string{"hue"}, Types: []EventType{EventStateChanged}}, stateEvent("light.a", 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.compile().match(tt.event); got != tt.want {
				t.Errorf("match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLocal_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewLocal(8)
	defer b.Close()

	c := newCollector()
	sub, err := b.Subscribe(context.Background(), Filter{}, c.handle)
	if err != nil {
		t.Fatal(err)
	}

	b.Publish(stateEvent("light.a", 0))
	c.wait(t, 1)

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("second Unsubscribe() error = %v", err)
	}
	if b.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d after Unsubscribe", b.Subscribers())
	}

	if got := b.Publish(stateEvent("light.a", 1)); got != 0 {
		t.Errorf("Publish() after Unsubscribe delivered to %d", got)
	}
}

func TestLocal_UnsubscribeWhilePublisherBlocked(t *testing.T) {
	b := NewLocal(1)
	defer b.Close()

	release := make(chan struct{})
	sub, err := b.Subscribe(context.Background(), Filter{}, func(Event) { <-release })
	if err != nil {
		t.Fatal(err)
	}

	published := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			b.Publish(stateEvent("light.a", i))
		}
		close(published)
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	if err := sub.Unsubscribe(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-published:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher stayed blocked after Unsubscribe")
	}
}

func TestLocal_HandlerPanicRecovered(t *testing.T) {
	b := NewLocal(4)
	defer b.Close()

	c := newCollector()
	_, err := b.Subscribe(context.Background(), Filter{}, func(ev Event) {
		if string(ev.Payload) == `{"seq":0}` {
			panic("boom")
		}
		c.handle(ev)
	})
	if err != nil {
		t.Fatal(err)
	}

	b.Publish(stateEvent("light.a", 0))
	b.Publish(stateEvent("light.a", 1))

	if events := c.wait(t, 1); string(events[0].Payload) != `{"seq":1}` {
		t.Errorf("event after panic = %s", events[0].Payload)
	}
}

func TestLocal_SubscribeErrors(t *testing.T) {
	b := NewLocal(1)

	if _, err := b.Subscribe(context.Background(), Filter{}, nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("Subscribe(nil) error = %v, want ErrNilHandler", err)
	}

	b.Close()
	if _, err := b.Subscribe(context.Background(), Filter{}, func(Event) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe() after Close error = %v, want ErrClosed", err)
	}
}
