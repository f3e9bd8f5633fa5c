package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/botlink-core/internal/device"
)

// Observer is a bound dashboard connection. Observers are read-only:
// after the join snapshot they just receive broadcasts.
type Observer struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Observers tracks bound observer connections and fans device
// snapshots out to them.
//
// Fan-out is best-effort: a slow or dead observer is skipped, never
// blocking delivery to the others. No retry, no cross-observer
// ordering guarantee.
type Observers struct {
	mu      sync.RWMutex
	clients map[*Observer]struct{}
	logger  Logger
}

// NewObservers creates an empty observer registry.
func NewObservers(logger Logger) *Observers {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Observers{
		clients: make(map[*Observer]struct{}),
		logger:  logger,
	}
}

// register adds a bound observer and starts its write pump. A non-nil
// hello payload is queued before the observer becomes visible to
// broadcasts, so it is always the first message delivered.
func (o *Observers) register(conn *websocket.Conn, sendBuffer int, ping time.Duration, hello []byte) *Observer {
	obs := &Observer{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	if hello != nil {
		obs.trySend(hello)
	}

	o.mu.Lock()
	o.clients[obs] = struct{}{}
	count := len(o.clients)
	o.mu.Unlock()

	if ping <= 0 {
		ping = readWindow / 2
	}
	go obs.writePump(ping)

	o.logger.Debug("observer joined", "id", obs.id, "observers", count)
	return obs
}

// unregister removes an observer. Only the goroutine that actually
// removes it from the map closes the send channel, preventing
// double-close panics during shutdown.
func (o *Observers) unregister(obs *Observer) {
	o.mu.Lock()
	_, existed := o.clients[obs]
	delete(o.clients, obs)
	count := len(o.clients)
	o.mu.Unlock()

	if existed {
		close(obs.send)
	}
	o.logger.Debug("observer left", "id", obs.id, "observers", count)
}

// BroadcastDevice pushes one device snapshot to every observer,
// serialized once.
func (o *Observers) BroadcastDevice(snapshot device.Snapshot) {
	data, err := json.Marshal(map[string]device.Snapshot{"device": snapshot})
	if err != nil {
		o.logger.Error("snapshot marshal failed", "id", snapshot.ID, "error", err)
		return
	}
	o.broadcast(data)
}

func (o *Observers) broadcast(data []byte) {
	o.mu.RLock()
	clients := make([]*Observer, 0, len(o.clients))
	for obs := range o.clients {
		clients = append(clients, obs)
	}
	o.mu.RUnlock()

	for _, obs := range clients {
		obs.trySend(data)
	}
}

// Count returns the number of bound observers.
func (o *Observers) Count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.clients)
}

// CloseAll disconnects every observer. Called on shutdown.
func (o *Observers) CloseAll() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for obs := range o.clients {
		close(obs.send)
		obs.conn.Close() //nolint:errcheck // Shutdown path
		delete(o.clients, obs)
	}
}

// trySend queues data for one observer. A full buffer or a closed
// channel drops the message for that observer only.
func (obs *Observer) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case obs.send <- data:
	default:
		// Observer buffer full, skip
	}
}

// writePump drains the send channel onto the websocket and pings the
// observer on an interval. Observers never send application messages,
// so without the pings a passive dashboard would run out its read
// window and be torn down.
func (obs *Observer) writePump(ping time.Duration) {
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		obs.conn.Close()
	}()

	for {
		select {
		case data, ok := <-obs.send:
			if !ok {
				// Send channel closed: say goodbye properly.
				obs.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // Best-effort close message
				return
			}
			obs.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck // Best-effort deadline
			if err := obs.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			obs.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck // Best-effort deadline
			if err := obs.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
