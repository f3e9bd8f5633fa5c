// Package hub owns the websocket front door.
//
// Every connection starts anonymous. Its first message decides what it
// becomes: a binary handshake frame binds it as a device transport, a
// JOIN_CLIENT JSON envelope binds it as a read-only observer. Anything
// else, or silence past the handshake timeout, closes it with a
// protocol error.
//
// Devices stream binary runtime frames that are fed to the device
// layer. Observers receive a full-state snapshot on join and
// incremental device snapshots afterwards; nothing they send after
// joining is interpreted.
//
// gorilla/websocket allows one concurrent writer per connection.
// Device writes are serialized by deviceConn's mutex; observer writes
// all flow through a single writePump goroutine per observer.
package hub
