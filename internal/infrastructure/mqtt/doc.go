// Package mqtt provides MQTT broker connectivity for Customo Core.
//
// Physical robots speak MQTT. The core publishes the authoritative device
// state and every control command, and subscribes to the telemetry robots
// report about themselves (battery, location):
//
//	Customo Core ↔ MQTT Broker ↔ Robots
//
// This package manages:
//   - Connection with auto-reconnect and subscription restoration
//   - Publishing with QoS guarantees
//   - Wildcard subscriptions with panic-safe handlers
//   - Last Will and Testament (LWT) for offline detection
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllDeviceTelemetry(), 1,
//	    func(topic string, payload []byte) error {
//	        id, _, _ := topics.ParseDeviceTopic(topic)
//	        return handleTelemetry(id, payload)
//	    })
//
// # Security Considerations
//
//   - Enable TLS (mqtt.broker.tls) outside local development
//   - Robots should only hold broker credentials scoped to their own topics
package mqtt
