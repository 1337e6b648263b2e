// Package relay mirrors session events onto NATS so presentation layers in
// other processes can follow and control a session.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	session "github.com/koscakluka/ema-playback/core"
	"github.com/koscakluka/ema-playback/core/events"
	"github.com/koscakluka/ema-playback/internal/config"
)

// Conn is the part of a NATS connection the relay needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error)
}

type Relay struct {
	conn   Conn
	prefix string
	log    *slog.Logger
	close  func()
}

// Connect dials the configured NATS servers.
func Connect(ctx context.Context, cfg config.RelayConfig, log *slog.Logger) (*Relay, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url,
		nats.Name("ema-session"),
		nats.Timeout(cfg.ConnectTimeout()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	log.Info("connected to NATS", slog.String("servers", url))

	relay := New(conn, cfg.SubjectPrefix, log)
	relay.close = func() {
		if err := conn.Drain(); err != nil {
			log.Warn("failed to drain NATS connection", slog.String("error", err.Error()))
		}
		conn.Close()
	}
	return relay, nil
}

func New(conn Conn, prefix string, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{conn: conn, prefix: strings.TrimSuffix(prefix, "."), log: log}
}

func (r *Relay) Close() {
	if r == nil || r.close == nil {
		return
	}
	r.log.Info("closing NATS connection")
	r.close()
}

// EventSubject is where events of a session are published.
func (r *Relay) EventSubject(sessionID string, kind events.Kind) string {
	return fmt.Sprintf("%s.%s.events.%s", r.prefix, sessionID, kind)
}

// ControlSubject receives playback commands for a session.
func (r *Relay) ControlSubject(sessionID string) string {
	return fmt.Sprintf("%s.%s.control", r.prefix, sessionID)
}

// Controls is the part of a session that can be driven remotely.
type Controls interface {
	Play()
	Pause()
	Next()
	Prev()
}

// Source is a session whose events are relayed.
type Source interface {
	Controls
	ID() string
	On(kind events.Kind, listener session.Listener) (unsubscribe func())
}

// Attach publishes every event of s and applies commands received on its
// control subject. The returned func detaches the relay.
func (r *Relay) Attach(s Source) (detach func(), err error) {
	sessionID := s.ID()
	sub, err := r.conn.Subscribe(r.ControlSubject(sessionID), func(msg *nats.Msg) {
		r.handleControl(s, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to control subject: %w", err)
	}

	unsubscribe := s.On(events.KindAny, func(event events.Event) {
		r.publish(sessionID, event)
	})

	return func() {
		unsubscribe()
		if sub != nil {
			if err := sub.Unsubscribe(); err != nil {
				r.log.Warn("failed to unsubscribe control subject", slog.String("error", err.Error()))
			}
		}
	}, nil
}

type envelope struct {
	Kind      events.Kind     `json:"kind"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func (r *Relay) publish(sessionID string, event events.Event) {
	data, err := encode(sessionID, event)
	if err != nil {
		r.log.Warn("failed to encode event", slog.String("kind", string(event.Kind())), slog.String("error", err.Error()))
		return
	}
	if err := r.conn.Publish(r.EventSubject(sessionID, event.Kind()), data); err != nil {
		r.log.Warn("failed to publish event", slog.String("kind", string(event.Kind())), slog.String("error", err.Error()))
	}
}

func encode(sessionID string, event events.Event) ([]byte, error) {
	var payload any = event
	if e, ok := event.(events.Error); ok {
		message := ""
		if e.Err != nil {
			message = e.Err.Error()
		}
		payload = struct {
			Error string `json:"error"`
		}{Error: message}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Kind:      event.Kind(),
		SessionID: sessionID,
		Timestamp: event.Timestamp(),
		Payload:   raw,
	})
}

// Command is a control message.
type Command struct {
	Action string `json:"action"`
}

func (r *Relay) handleControl(s Controls, data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		// plain text commands are accepted too
		cmd.Action = strings.TrimSpace(string(data))
	}

	switch strings.ToLower(cmd.Action) {
	case "play":
		s.Play()
	case "pause":
		s.Pause()
	case "next":
		s.Next()
	case "prev":
		s.Prev()
	default:
		r.log.Warn("unknown control command", slog.String("action", cmd.Action))
	}
}
