package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nats-io/nats.go"

	session "github.com/koscakluka/ema-playback/core"
	"github.com/koscakluka/ema-playback/core/events"
	"github.com/koscakluka/ema-playback/core/segments"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu        sync.Mutex
	published []published
	handlers  map[string]nats.MsgHandler
	subErr    error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{subject: subject, data: data})
	return nil
}

func (c *fakeConn) Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	if c.subErr != nil {
		return nil, c.subErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers == nil {
		c.handlers = map[string]nats.MsgHandler{}
	}
	c.handlers[subject] = handler
	return nil, nil
}

type fakeSource struct {
	mu        sync.Mutex
	listeners []session.Listener
	actions   []string
}

func (s *fakeSource) ID() string { return "abc" }
func (s *fakeSource) Play()      { s.record("play") }
func (s *fakeSource) Pause()     { s.record("pause") }
func (s *fakeSource) Next()      { s.record("next") }
func (s *fakeSource) Prev()      { s.record("prev") }

func (s *fakeSource) record(action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
}

func (s *fakeSource) On(kind events.Kind, listener session.Listener) func() {
	if kind != events.KindAny {
		panic("expected a wildcard subscription")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
	index := len(s.listeners) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners[index] = nil
	}
}

func (s *fakeSource) emit(event events.Event) {
	s.mu.Lock()
	listeners := append([]session.Listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, listener := range listeners {
		if listener != nil {
			listener(event)
		}
	}
}

func TestAttachPublishesEvents(t *testing.T) {
	conn := &fakeConn{}
	source := &fakeSource{}
	relay := New(conn, "ema.session.", nil)

	detach, err := relay.Attach(source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	source.emit(events.NewSegmentBuffered(1, "seg-1", segments.ProviderRemote))
	source.emit(events.NewError(errors.New("offline")))
	detach()
	source.emit(events.NewEnd(2))

	if len(conn.published) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(conn.published))
	}
	if subject := conn.published[0].subject; subject != "ema.session.abc.events.segment-buffered" {
		t.Fatalf("expected segment-buffered subject, got %s", subject)
	}

	var buffered struct {
		Kind      string `json:"kind"`
		SessionID string `json:"sessionId"`
		Payload   struct {
			Index     int
			SegmentID string
			Provider  string
		} `json:"payload"`
	}
	if err := json.Unmarshal(conn.published[0].data, &buffered); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buffered.Kind != "segment-buffered" || buffered.SessionID != "abc" {
		t.Fatalf("expected envelope for session abc, got %+v", buffered)
	}
	if buffered.Payload.Index != 1 || buffered.Payload.SegmentID != "seg-1" || buffered.Payload.Provider != "remote" {
		t.Fatalf("expected payload of segment 1, got %+v", buffered.Payload)
	}

	var failure struct {
		Payload struct {
			Error string `json:"error"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(conn.published[1].data, &failure); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if failure.Payload.Error != "offline" {
		t.Fatalf("expected error message, got %q", failure.Payload.Error)
	}
}

func TestControlCommands(t *testing.T) {
	conn := &fakeConn{}
	source := &fakeSource{}
	relay := New(conn, "ema", nil)

	if _, err := relay.Attach(source); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	handler := conn.handlers["ema.abc.control"]
	if handler == nil {
		t.Fatalf("expected a control subscription")
	}

	handler(&nats.Msg{Data: []byte(`{"action":"play"}`)})
	handler(&nats.Msg{Data: []byte("next")})
	handler(&nats.Msg{Data: []byte(`{"action":"Pause"}`)})
	handler(&nats.Msg{Data: []byte("rewind")})

	expected := []string{"play", "next", "pause"}
	if len(source.actions) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, source.actions)
	}
	for i := range expected {
		if source.actions[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, source.actions)
		}
	}
}

func TestAttachFailsWithoutControlSubscription(t *testing.T) {
	relay := New(&fakeConn{subErr: errors.New("no permission")}, "ema", nil)
	if _, err := relay.Attach(&fakeSource{}); err == nil {
		t.Fatalf("expected error")
	}
}
