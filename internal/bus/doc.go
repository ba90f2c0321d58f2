// Package bus is the notification bus through which the core observes the
// host platform: entity state changes and device registry changes.
//
// Every subscriber gets a bounded queue drained by its own goroutine, so a
// subscription sees events in delivery order and a slow handler applies
// backpressure instead of losing events. Subscribe returns a Subscription
// whose Unsubscribe can be called at any time.
//
// Two implementations are provided: MQTTBus, fed by the broker topics
// graylogic/forensics/state/... and graylogic/forensics/registry/..., and
// Local, an in-process bus used in tests and file-driven runs.
package bus
