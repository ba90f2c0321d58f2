// Package mqtt provides MQTT client connectivity for the forensic readiness core.
//
// The host platform publishes entity state changes and device registry
// changes to the broker; the core subscribes to them to drive evidence
// collection and inventory maintenance.
//
//	Host platform → MQTT Broker → Forensic readiness core
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Subscription tracking and restoration after reconnect
//   - Last Will and Testament on graylogic/system/forensics/status
//   - Topic builders and parsing for graylogic/forensics/...
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllEntityStates(), 1,
//	    func(topic string, payload []byte) error {
//	        _, domain, entityID, _ := mqtt.Topics{}.ParseTopic(topic)
//	        ...
//	    })
//
// Message delivery is ordered (SetOrderMatters), so handlers observe
// messages for a topic in broker order.
package mqtt
