package notify

import (
	"encoding/json"
	"time"
)

// Publisher is the transport surface the notifier needs. The MQTT
// client satisfies it.
type Publisher interface {
	PublishEvent(topic string, payload []byte) error
}

// Logger defines the logging interface used by the notifier.
type Logger interface {
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}

// Message is the JSON payload published for a state change.
type Message struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Icon      string    `json:"icon,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTNotifier publishes state-change notifications to a fixed topic.
// Downstream consumers (push relays, dashboards) subscribe there.
type MQTTNotifier struct {
	publisher Publisher
	topic     string
	logger    Logger
}

// NewMQTTNotifier creates a notifier publishing to topic.
func NewMQTTNotifier(publisher Publisher, topic string) *MQTTNotifier {
	return &MQTTNotifier{
		publisher: publisher,
		topic:     topic,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for delivery failures.
func (n *MQTTNotifier) SetLogger(logger Logger) {
	n.logger = logger
}

// NotifyStateChange publishes a notification, fire-and-forget. The
// publish happens on its own goroutine so a slow broker never stalls
// protocol handling; failures are logged and dropped.
func (n *MQTTNotifier) NotifyStateChange(title, body, icon string) {
	payload, err := json.Marshal(Message{
		Title:     title,
		Body:      body,
		Icon:      icon,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		n.logger.Error("notification marshal failed", "error", err)
		return
	}

	go func() {
		if err := n.publisher.PublishEvent(n.topic, payload); err != nil {
			n.logger.Error("notification publish failed", "title", title, "error", err)
		}
	}()
}

// Nop is a notifier that drops everything. Used when MQTT is disabled.
type Nop struct{}

func (Nop) NotifyStateChange(string, string, string) {}
