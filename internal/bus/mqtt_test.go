package bus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-forensics/internal/infrastructure/mqtt"
)

// fakeClient records broker subscriptions and lets tests inject messages.
type fakeClient struct {
	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	subscribeErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.handlers[topic] = handler
	return nil
}

func (f *fakeClient) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, topic)
	return nil
}

func (f *fakeClient) deliver(t *testing.T, pattern, topic, payload string) {
	t.Helper()
	f.mu.Lock()
	h, ok := f.handlers[pattern]
	f.mu.Unlock()
	if !ok {
		t.Fatalf("no broker subscription for %s", pattern)
	}
	if err := h(topic, []byte(payload)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
}

func TestDecodeMessage(t *testing.T) {
	topics := mqtt.Topics{}

	tests := []struct {
		name     string
		topic    string
		payload  string
		wantType EventType
		wantEnt  string
		wantDev  string
		wantErr  bool
	}{
		{"state", "graylogic/forensics/state/hue/light.kitchen", `{"state":"on","device_id":"d1"}`, EventStateChanged, "light.kitchen", "d1", false},
		{"joined", "graylogic/forensics/registry/hue/d2", `{"action":"joined"}`, EventDeviceJoined, "", "d2", false},
		{"left", "graylogic/forensics/registry/hue/d2", `{"action":"left"}`, EventDeviceLeft, "", "d2", false},
		{"bad action", "graylogic/forensics/registry/hue/d2", `{"action":"exploded"}`, "", "", "", true},
		{"bad json", "graylogic/forensics/state/hue/light.x", `{`, "", "", "", true},
		{"bad topic", "graylogic/other", `{}`, "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := decodeMessage(topics, tt.topic, []byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if ev.Type != tt.wantType || ev.EntityID != tt.wantEnt || ev.DeviceID != tt.wantDev || ev.Domain != "hue" {
				t.Errorf("event = %+v", ev)
			}
			if string(ev.Payload) != tt.payload {
				t.Errorf("payload = %s, want raw message", ev.Payload)
			}
			if ev.Timestamp.IsZero() {
				t.Error("timestamp not defaulted")
			}
		})
	}
}

func TestMQTTBus_DispatchesBrokerMessages(t *testing.T) {
	client := newFakeClient()
	b := NewMQTTBus(client, 1, 8)
	defer b.Close()

	c := newCollector()
	_, err := b.Subscribe(context.Background(), Filter{Entities: []string{"light.kitchen"}}, c.handle)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	states := mqtt.Topics{}.AllEntityStates()
	client.deliver(t, states, "graylogic/forensics/state/hue/light.hall", `{"state":"on"}`)
	client.deliver(t, states, "graylogic/forensics/state/hue/light.kitchen", `{"state":"on"}`)
	client.deliver(t, states, "graylogic/forensics/state/hue/light.kitchen", `{"state":"off"}`)

	events := c.wait(t, 2)
	if string(events[0].Payload) != `{"state":"on"}` || string(events[1].Payload) != `{"state":"off"}` {
		t.Errorf("events = %s, %s", events[0].Payload, events[1].Payload)
	}
}

func TestMQTTBus_AttachFailureIsRetriable(t *testing.T) {
	client := newFakeClient()
	client.subscribeErr = errors.New("broker down")
	b := NewMQTTBus(client, 1, 8)
	defer b.Close()

	if _, err := b.Subscribe(context.Background(), Filter{}, func(Event) {}); err == nil {
		t.Fatal("Subscribe() expected error while broker is down")
	}

	client.mu.Lock()
	client.subscribeErr = nil
	client.mu.Unlock()

	if _, err := b.Subscribe(context.Background(), Filter{}, func(Event) {}); err != nil {
		t.Fatalf("retry Subscribe() error = %v", err)
	}
}

func TestMQTTBus_CloseReleasesBroker(t *testing.T) {
	client := newFakeClient()
	b := NewMQTTBus(client, 1, 8)

	if _, err := b.Subscribe(context.Background(), Filter{}, func(Event) {}); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.handlers) != 0 {
		t.Errorf("broker subscriptions left after Close: %d", len(client.handlers))
	}
}

func TestMQTTBus_SubscribeAfterCloseLeavesBrokerAlone(t *testing.T) {
	client := newFakeClient()
	b := NewMQTTBus(client, 1, 8)

	if _, err := b.Subscribe(context.Background(), Filter{}, func(Event) {}); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := b.Subscribe(context.Background(), Filter{}, func(Event) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe() after Close error = %v, want ErrClosed", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.handlers) != 0 {
		t.Errorf("Subscribe() after Close re-created %d broker subscriptions", len(client.handlers))
	}
}
