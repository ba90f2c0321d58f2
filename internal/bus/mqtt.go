package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-forensics/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of mqtt.Client used by MQTTBus.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// registry change actions carried in registry topic payloads.
var registryActions = map[string]EventType{
	"joined":  EventDeviceJoined,
	"updated": EventDeviceUpdated,
	"left":    EventDeviceLeft,
}

// envelope is the part of a notification payload the bus itself reads.
type envelope struct {
	Action    string    `json:"action"`
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTBus is a Bus fed by the host platform's MQTT notifications.
//
// It holds one broker subscription per topic family and fans events out to
// local subscribers. paho delivers messages in order (ordered mode), so
// events for one entity reach each subscriber in publication order.
type MQTTBus struct {
	client MQTTClient
	qos    byte
	fan    *fanout
	topics mqtt.Topics

	mu       sync.Mutex
	attached bool
	closed   bool

	logger Logger
}

// NewMQTTBus creates a bus over client. Broker subscriptions are made on the
// first Subscribe.
func NewMQTTBus(client MQTTClient, qos byte, queueSize int) *MQTTBus {
	return &MQTTBus{
		client: client,
		qos:    qos,
		fan:    newFanout(queueSize),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger. Call before Subscribe.
func (b *MQTTBus) SetLogger(logger Logger) {
	b.logger = logger
	b.fan.logger = logger
}

// Subscribe registers handler for events matching filter. A failed broker
// subscription is returned and may be retried.
func (b *MQTTBus) Subscribe(_ context.Context, filter Filter, handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if err := b.attach(); err != nil {
		return nil, err
	}
	return b.fan.add(filter, handler)
}

func (b *MQTTBus) attach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.attached {
		return nil
	}

	states := b.topics.AllEntityStates()
	if err := b.client.Subscribe(states, b.qos, b.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", states, err)
	}

	changes := b.topics.AllRegistryChanges()
	if err := b.client.Subscribe(changes, b.qos, b.HandleMessage); err != nil {
		_ = b.client.Unsubscribe(states) //nolint:errcheck // Best effort, attach is retried
		return fmt.Errorf("subscribing to %s: %w", changes, err)
	}

	b.attached = true
	b.logger.Info("bus attached to broker", "topics", []string{states, changes})
	return nil
}

// HandleMessage decodes one broker message and dispatches it. It is the
// mqtt.MessageHandler registered for both topic families.
func (b *MQTTBus) HandleMessage(topic string, payload []byte) error {
	ev, err := decodeMessage(b.topics, topic, payload)
	if err != nil {
		return err
	}
	b.fan.dispatch(ev)
	return nil
}

func decodeMessage(topics mqtt.Topics, topic string, payload []byte) (Event, error) {
	kind, domain, id, ok := topics.ParseTopic(topic)
	if !ok {
		return Event{}, fmt.Errorf("bus: unrecognised topic %q", topic)
	}

	var env envelope
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &env); err != nil {
			return Event{}, fmt.Errorf("bus: decoding %s: %w", topic, err)
		}
	}

	ev := Event{
		Domain:    domain,
		Payload:   json.RawMessage(append([]byte(nil), payload...)),
		Timestamp: env.Timestamp,
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	switch kind {
	case "state":
		ev.Type = EventStateChanged
		ev.EntityID = id
		ev.DeviceID = env.DeviceID
	case "registry":
		t, ok := registryActions[env.Action]
		if !ok {
			return Event{}, fmt.Errorf("bus: unknown registry action %q on %s", env.Action, topic)
		}
		ev.Type = t
		ev.DeviceID = id
	}

	return ev, nil
}

// Close unsubscribes local subscribers and releases the broker subscriptions.
// Subscribe fails with ErrClosed afterwards.
func (b *MQTTBus) Close() error {
	b.fan.close()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if !b.attached {
		return nil
	}
	b.attached = false

	var firstErr error
	for _, topic := range []string{b.topics.AllEntityStates(), b.topics.AllRegistryChanges()} {
		if err := b.client.Unsubscribe(topic); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unsubscribing %s: %w", topic, err)
		}
	}
	return firstErr
}
