package notify

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type mockPublisher struct {
	mu       sync.Mutex
	payloads [][]byte
	topics   []string
	err      error
}

func (p *mockPublisher) PublishEvent(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return p.err
}

func (p *mockPublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func TestNotifyStateChangePublishes(t *testing.T) {
	pub := &mockPublisher{}
	n := NewMQTTNotifier(pub, "botlink/notify")

	n.NotifyStateChange("Front Door opened", "opened at 3:05 PM, battery: 70%", "door_open.png")
	waitFor(t, func() bool { return pub.published() == 1 }, "publish")

	pub.mu.Lock()
	defer pub.mu.Unlock()

	if pub.topics[0] != "botlink/notify" {
		t.Errorf("topic = %q, want %q", pub.topics[0], "botlink/notify")
	}

	var msg Message
	if err := json.Unmarshal(pub.payloads[0], &msg); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if msg.Title != "Front Door opened" || msg.Icon != "door_open.png" {
		t.Errorf("message = %+v", msg)
	}
	if msg.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestNotifyStateChangeSwallowsErrors(t *testing.T) {
	pub := &mockPublisher{err: errors.New("broker down")}
	n := NewMQTTNotifier(pub, "botlink/notify")

	// Must not panic or block; the error is logged and dropped.
	n.NotifyStateChange("title", "body", "")
	waitFor(t, func() bool { return pub.published() == 1 }, "publish attempt")
}

func TestNopNotifier(t *testing.T) {
	// Just must not panic.
	Nop{}.NotifyStateChange("title", "body", "icon")
}
