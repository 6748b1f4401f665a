package mqtt

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"facegate/config"
	"facegate/internal/capture"

	paho "github.com/eclipse/paho.mqtt.golang"
)

type doneToken struct{ done chan struct{} }

func newDoneToken() *doneToken {
	ch := make(chan struct{})
	close(ch)
	return &doneToken{done: ch}
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return nil }

type published struct {
	topic    string
	retained bool
	payload  interface{}
}

// fakeClient implements the parts of paho.Client the publisher touches.
type fakeClient struct {
	paho.Client
	mu        sync.Mutex
	connected bool
	messages  []published
}

func (f *fakeClient) Connect() paho.Token {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return newDoneToken()
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) Disconnect(uint) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
}

func (f *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) paho.Token {
	f.mu.Lock()
	f.messages = append(f.messages, published{topic: topic, retained: retained, payload: payload})
	f.mu.Unlock()
	return newDoneToken()
}

func withFakeClient(t *testing.T) *fakeClient {
	t.Helper()
	fake := &fakeClient{}
	orig := NewClientFunc
	NewClientFunc = func(*paho.ClientOptions) paho.Client { return fake }
	t.Cleanup(func() { NewClientFunc = orig })
	return fake
}

func TestNotifyPublishesEventJSON(t *testing.T) {
	fake := withFakeClient(t)
	c := NewClient(config.MQTTConfig{Enabled: true, Broker: "localhost", Port: 1883, TopicPrefix: "cams/"})
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	c.Notify(capture.Event{Type: capture.EventIdentify, Status: "success", Label: "alice"})

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fake.messages))
	}
	msg := fake.messages[0]
	if msg.topic != "cams/identify" {
		t.Errorf("unexpected topic %q", msg.topic)
	}
	if msg.retained {
		t.Error("events must not be retained")
	}
	var evt capture.Event
	if err := json.Unmarshal(msg.payload.([]byte), &evt); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if evt.Label != "alice" || evt.Status != "success" {
		t.Errorf("unexpected payload %+v", evt)
	}
}

func TestStopPublishesOfflineStatus(t *testing.T) {
	fake := withFakeClient(t)
	c := NewClient(config.MQTTConfig{Enabled: true, Broker: "localhost", Port: 1883})
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	c.Stop()

	if c.IsConnected() {
		t.Error("expected client to be disconnected")
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.messages) != 1 || fake.messages[0].topic != "facegate/status" || fake.messages[0].payload != "offline" {
		t.Errorf("unexpected messages %+v", fake.messages)
	}
}

func TestDisabledClientIsNoop(t *testing.T) {
	c := NewClient(config.MQTTConfig{Enabled: false})
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if c.IsConnected() {
		t.Error("disabled client must not report connected")
	}
	c.Notify(capture.Event{Type: capture.EventEnroll})
	c.Stop()
}

func TestPublishRetainRequiresConnection(t *testing.T) {
	c := NewClient(config.MQTTConfig{Enabled: true})
	if err := c.PublishRetain("x", "y"); err == nil {
		t.Error("expected error when not connected")
	}

	fake := withFakeClient(t)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := c.PublishRetain(c.Topic("state"), map[string]string{"a": "b"}); err != nil {
		t.Fatalf("PublishRetain failed: %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	msg := fake.messages[len(fake.messages)-1]
	if msg.topic != "facegate/state" || !msg.retained || string(msg.payload.([]byte)) != `{"a":"b"}` {
		t.Errorf("unexpected message %+v", msg)
	}
}
