package hub

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/botlink-core/internal/device"
	"github.com/nerrad567/botlink-core/internal/infrastructure/config"
	"github.com/nerrad567/botlink-core/internal/protocol"
)

// JoinMethod is the method field observers must send in their first
// message.
const JoinMethod = "JOIN_CLIENT"

// readWindow is the per-message read deadline once a connection is
// bound. Devices ping well inside it; a silent connection past it is
// torn down.
const readWindow = 5 * time.Minute

// Logger defines the logging interface used by the hub.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// TokenVerifier validates observer join credentials.
type TokenVerifier interface {
	VerifyAny(accessToken, refreshToken string) error
}

// joinEnvelope is the first message an observer sends.
type joinEnvelope struct {
	Method       string `json:"method"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// joinSnapshot is the full-state payload sent to an observer right
// after binding, before any incremental broadcast matters to it.
type joinSnapshot struct {
	Humidity      float64           `json:"humidity"`
	Temperature   float64           `json:"temperature"`
	CheckerList   []device.Snapshot `json:"checkerList"`
	SwitchBotList []device.Snapshot `json:"switchBotList"`
}

// Hub accepts websocket connections and routes each one's first
// message to either device handshake handling or observer join
// handling.
//
// State machine per connection:
//
//	AwaitingHello -> DeviceBound   (binary handshake frame)
//	AwaitingHello -> ObserverBound (JOIN_CLIENT JSON envelope)
//	any           -> Closed        (timeout, decode or auth failure)
type Hub struct {
	cfg       config.WebSocketConfig
	registry  *device.Registry
	factory   *device.Factory
	verifier  TokenVerifier
	observers *Observers
	logger    Logger
	upgrader  websocket.Upgrader
}

// New creates a hub. The observers registry it creates doubles as the
// device layer's Broadcaster: wire Observers() into the device Env.
func New(cfg config.WebSocketConfig, registry *device.Registry, factory *device.Factory, verifier TokenVerifier, logger Logger) *Hub {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Hub{
		cfg:       cfg,
		registry:  registry,
		factory:   factory,
		verifier:  verifier,
		observers: NewObservers(logger),
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				// Devices have no origin; dashboards are same-site.
				return true
			},
		},
	}
}

// Observers exposes the observer registry for broadcast wiring.
func (h *Hub) Observers() *Observers {
	return h.observers
}

// HandleWS upgrades an HTTP request and runs the connection state
// machine on its own goroutine.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	go h.run(conn, r.RemoteAddr)
}

// run reads the first message within the handshake timeout and binds
// the connection. Everything that can go wrong before binding closes
// the connection with a protocol error code.
func (h *Hub) run(conn *websocket.Conn, remote string) {
	conn.SetReadLimit(int64(h.cfg.MaxMessageSize))
	conn.SetReadDeadline(time.Now().Add(h.cfg.GetHandshakeTimeout())) //nolint:errcheck // Best-effort deadline

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		h.logger.Debug("connection closed before hello", "remote", remote, "error", err)
		conn.Close()
		return
	}

	switch {
	case msgType == websocket.BinaryMessage && len(data) > 0 && data[0] == protocol.OpHandshake:
		h.bindDevice(conn, data, remote)
	case msgType == websocket.TextMessage:
		h.bindObserver(conn, data, remote)
	default:
		h.logger.Error("invalid first websocket message", "remote", remote)
		closeWith(conn, websocket.CloseProtocolError, "invalid hello")
	}
}

// bindDevice decodes a handshake, resolves the device through the
// factory, acknowledges with the device id and enters the device read
// loop.
func (h *Hub) bindDevice(conn *websocket.Conn, data []byte, remote string) {
	hs, err := protocol.DecodeHandshake(data)
	if err != nil {
		h.logger.Error("handshake decode failed", "remote", remote, "error", err)
		closeWith(conn, websocket.CloseProtocolError, "bad handshake")
		return
	}

	d, created, err := h.factory.CreateOrGet(hs)
	if err != nil {
		h.logger.Error("handshake rejected", "remote", remote, "error", err)
		closeWith(conn, websocket.CloseProtocolError, "bad handshake")
		return
	}

	dc := newDeviceConn(conn)

	// Acknowledge with the device id before binding so the firmware
	// knows the hub accepted it.
	if err := dc.Send([]byte(d.ID())); err != nil {
		h.logger.Warn("handshake ack failed", "id", d.ID(), "error", err)
		dc.Close() //nolint:errcheck // Already failing
		return
	}

	d.Bind(dc, hs)
	h.logger.Debug("device bound", "id", d.ID(), "created", created, "remote", remote)

	h.deviceLoop(conn, dc, d)
}

// deviceLoop feeds runtime frames to the bound device until the
// connection dies. Keepalive pings refresh liveness without any
// broadcast.
func (h *Hub) deviceLoop(conn *websocket.Conn, dc *deviceConn, d device.Device) {
	conn.SetReadDeadline(time.Now().Add(readWindow)) //nolint:errcheck // Best-effort deadline
	conn.SetPingHandler(func(appData string) error {
		d.Touch()
		conn.SetReadDeadline(time.Now().Add(readWindow)) //nolint:errcheck // Best-effort deadline
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeTimeout))
	})

	for {
		msgType, frame, err := conn.ReadMessage()
		if err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(readWindow)) //nolint:errcheck // Best-effort deadline

		if msgType != websocket.BinaryMessage {
			continue
		}
		if err := d.HandleFrame(frame); err != nil {
			h.logger.Error("runtime frame rejected", "id", d.ID(), "error", err)
			closeWith(conn, websocket.CloseProtocolError, "bad frame")
			break
		}
	}

	dc.markClosed()
	conn.Close()

	// Only the currently bound transport clears state on close; a
	// replaced connection dying later must not wipe the new session.
	if d.Conn() == device.Conn(dc) {
		d.HandleClose()
	}
}

// bindObserver validates a JOIN_CLIENT envelope and binds the
// connection as a read-only observer.
func (h *Hub) bindObserver(conn *websocket.Conn, data []byte, remote string) {
	var env joinEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.Method != JoinMethod {
		h.logger.Error("invalid observer join", "remote", remote)
		closeWith(conn, websocket.CloseProtocolError, "invalid join")
		return
	}

	if err := h.verifier.VerifyAny(env.AccessToken, env.RefreshToken); err != nil {
		h.logger.Error("observer token rejected", "remote", remote, "error", err)
		closeWith(conn, websocket.CloseUnsupportedData, "missing or expired token")
		return
	}

	// Full-state snapshot first. register queues it before the
	// observer joins the broadcast set, so a concurrent device update
	// can never arrive ahead of it.
	snapshot, err := json.Marshal(h.buildJoinSnapshot())
	if err != nil {
		h.logger.Error("join snapshot marshal failed", "remote", remote, "error", err)
		snapshot = nil
	}
	obs := h.observers.register(conn, h.cfg.SendBuffer, h.cfg.GetPingInterval(), snapshot)

	h.observerLoop(conn, obs)
}

// observerLoop drains inbound messages from an observer. Observers
// are passive: everything they send after joining is discarded, the
// read just detects disconnect.
func (h *Hub) observerLoop(conn *websocket.Conn, obs *Observer) {
	conn.SetReadDeadline(time.Now().Add(readWindow)) //nolint:errcheck // Best-effort deadline
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWindow))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(readWindow)) //nolint:errcheck // Best-effort deadline
	}

	h.observers.unregister(obs)
}

// buildJoinSnapshot collects the full registry state for a fresh
// observer.
func (h *Hub) buildJoinSnapshot() joinSnapshot {
	snap := joinSnapshot{
		Humidity:      h.registry.HumidityAverage(),
		Temperature:   h.registry.TemperatureAverage(),
		CheckerList:   []device.Snapshot{},
		SwitchBotList: []device.Snapshot{},
	}
	for _, c := range h.registry.Checkers() {
		snap.CheckerList = append(snap.CheckerList, c.Snapshot())
	}
	for _, s := range h.registry.SwitchBots() {
		snap.SwitchBotList = append(snap.SwitchBotList, s.Snapshot())
	}
	return snap
}

// CloseAll gracefully closes every device connection and observer.
// Called on shutdown before the process exits.
func (h *Hub) CloseAll() {
	for _, d := range h.registry.All() {
		if conn := d.Conn(); conn != nil && conn.IsOpen() {
			conn.Close() //nolint:errcheck // Shutdown path
		}
	}
	h.observers.CloseAll()
}

// closeWith sends a close frame with a code and reason, then closes.
func closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeTimeout)
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline) //nolint:errcheck // Best-effort close
	conn.Close()
}
