// Package device implements the device entity model: the polymorphic
// Checker/SwitchBot/RemoteBot variants, the registry that owns them,
// the factory that creates them from handshakes or persisted records,
// and the SQLite store behind it all.
//
// # Variants
//
// The variant set is closed. All three share the Device interface and
// the embedded base (identity, battery, transport binding, liveness);
// each adds its own state and runtime frame handling:
//
//   - Checker: door sensor, tracks open/close with a transition time.
//   - SwitchBot: two-channel relay, tracks per-channel state and names.
//   - RemoteBot: humidity/temperature sensor with an infrared blaster;
//     readings are transient and cleared on disconnect.
//
// # Ownership and concurrency
//
// The Registry is the single owner of device lifetime; nothing else
// holds device maps. Each device serializes its own mutation with a
// per-device mutex. Frames from a device's connection are applied in
// arrival order; a dashboard command racing a firmware report for the
// same device is last-write-wins.
//
// # Side effects
//
// State transitions fan out through the Env collaborators: persistence
// (fire-and-forget, at-most-once durable), observer broadcast, push
// notification and telemetry. A failing collaborator is logged and
// never interrupts protocol handling.
package device
