package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/shaban/modhost-bridge/modhost"
)

// pubSocket is the narrow surface EventPublisher needs from zmq4.Socket.
type pubSocket interface {
	Send(zmq4.Msg) error
	Close() error
}

// EventPublisher is a thin wrapper over a PUB socket. It implements both
// modhost.EventSink and registry.EventPublisher structurally, so the same
// instance wires into both producers without either importing this package.
type EventPublisher struct {
	sock pubSocket
	warn func(format string, args ...interface{})
}

// NewEventPublisher binds a PUB socket at addr.
func NewEventPublisher(ctx context.Context, addr string) (*EventPublisher, error) {
	sock := zmq4.NewPub(ctx)
	if err := sock.Listen(addr); err != nil {
		return nil, fmt.Errorf("eventpublisher: listen %s: %w", addr, err)
	}
	return &EventPublisher{sock: sock}, nil
}

// SetWarnFunc installs a sink for best-effort publish failures.
func (p *EventPublisher) SetWarnFunc(fn func(string, ...interface{})) {
	p.warn = fn
}

// PublishEvent serializes {type, timestamp, data} and sends it on the PUB
// socket. A send failure is passed to the warn sink and also returned; the
// registry and feedback reader log it and carry on.
func (p *EventPublisher) PublishEvent(eventType string, data interface{}) error {
	body, err := json.Marshal(Envelope{
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("eventpublisher: marshal %s: %w", eventType, err)
	}
	if err := p.sock.Send(zmq4.NewMsg(body)); err != nil {
		if p.warn != nil {
			p.warn("eventpublisher: publish %s failed: %v", eventType, err)
		}
		return err
	}
	return nil
}

// Publish adapts a parsed feedback event to PublishEvent, letting this type
// serve as modhost.EventSink for the FeedbackReader.
func (p *EventPublisher) Publish(ev modhost.Event) error {
	return p.PublishEvent(string(ev.Kind), ev.Data)
}

// Close releases the underlying socket.
func (p *EventPublisher) Close() error {
	return p.sock.Close()
}
