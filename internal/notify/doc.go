// Package notify delivers user-facing state-change notifications.
//
// Delivery is best-effort by design: the hub fires a notification and
// moves on. The MQTT-backed implementation publishes a small JSON
// message to a configured topic; when MQTT is disabled a Nop notifier
// is wired instead and notifications vanish silently.
package notify
