// Package mqtt provides the outbound MQTT transport for BotLink Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing device state-change notifications
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// BotLink uses MQTT purely as a fan-out channel: when a device reports a
// state change worth surfacing (a door opening, a switch toggling), the
// hub publishes a small JSON notification that downstream consumers
// (mobile push relays, dashboards) subscribe to. Device control never
// flows over MQTT; that stays on the device WebSocket link.
//
//	Device ↔ BotLink Core → MQTT Broker → Notification consumers
//
// MQTT is optional. When disabled in config the hub runs without it and
// notifications are dropped.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.PublishEvent("botlink/notify", payload)
package mqtt
