// Package mqtt provides MQTT client connectivity for automation-core.
//
// This package manages:
//   - Connection to the configured broker with explicit (bus-layer-driven) reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// automation-core uses MQTT as its bridge to sensors and actuators.
// Every device declares its own status_topic/command_topic in the device
// registry; this package only owns the connection and the fixed
// system-presence topic.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("home/sensors/lr/temp", 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.Publish("home/dev/ac_lr/set", []byte(`{"mode":"cool"}`), 1, false)
package mqtt
