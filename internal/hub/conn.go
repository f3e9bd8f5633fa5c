package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds every outbound websocket write.
const writeTimeout = 10 * time.Second

// deviceConn adapts a gorilla websocket connection to the device
// layer's Conn interface. Writes are serialized with a mutex: gorilla
// allows only one concurrent writer per connection.
type deviceConn struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func newDeviceConn(conn *websocket.Conn) *deviceConn {
	return &deviceConn{conn: conn}
}

// Send writes one binary frame to the device.
func (c *deviceConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck // Best-effort deadline
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Close closes the transport. Closing twice is harmless.
func (c *deviceConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// IsOpen reports whether the transport can still be written to.
func (c *deviceConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// markClosed flags the transport after its read loop exits, so
// IsOpen() turns false even when the peer closed the socket.
func (c *deviceConn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
