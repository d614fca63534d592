// Package mqtt publishes launcher lifecycle events to an MQTT broker.
//
// The integration is optional and disabled by default. When enabled, the
// launcher announces itself on a retained status topic with a Last Will so
// other tools can tell a crash from a clean exit:
//
//	sim8085/launcher/status            retained online/offline
//	sim8085/launcher/backend           retained running/exited/stopped
//	sim8085/launcher/<session>/events  every lifecycle event as JSON
//
// Publisher implements events.Observer and never blocks the event bus; a
// missing broker costs at most the bounded connect timeout at startup.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT, bus.Session())
//	if errors.Is(err, mqtt.ErrDisabled) {
//	    // integration off
//	}
//	defer client.Close()
//	pub := mqtt.NewPublisher(client)
//	defer pub.Close()
//	bus.Subscribe("mqtt", pub)
package mqtt
