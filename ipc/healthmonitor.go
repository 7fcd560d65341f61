package ipc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-zeromq/zmq4"

	"github.com/shaban/modhost-bridge/health"
)

// repSocket is the narrow surface CommandService/HealthMonitor need from
// zmq4.Socket.
type repSocket interface {
	Recv() (zmq4.Msg, error)
	Send(zmq4.Msg) error
	Close() error
}

type healthRequest struct {
	Action string `json:"action"`
}

// HealthMonitor answers health probes on its own dedicated REP socket, kept
// separate from CommandService so a stuck command handler never blocks the
// health check subscribers poll.
type HealthMonitor struct {
	sock   repSocket
	health *health.State
}

// NewHealthMonitor binds a REP socket at addr for health probes.
func NewHealthMonitor(ctx context.Context, addr string, h *health.State) (*HealthMonitor, error) {
	sock := zmq4.NewRep(ctx)
	if err := sock.Listen(addr); err != nil {
		return nil, fmt.Errorf("healthmonitor: listen %s: %w", addr, err)
	}
	return &HealthMonitor{sock: sock, health: h}, nil
}

// Run serves health requests until ctx is cancelled. ctx is checked between
// requests only; a Recv already blocked returns when the socket is closed
// or the context it was created with is cancelled.
func (m *HealthMonitor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		req, err := m.sock.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		resp := m.handle(req.Bytes())
		if err := m.sock.Send(zmq4.NewMsg(resp)); err != nil {
			continue
		}
	}
}

// handle is the pure request/response logic, kept separate from socket I/O
// for testability.
func (m *HealthMonitor) handle(body []byte) []byte {
	var req healthRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return mustJSON(errorResponse("Invalid JSON format"))
	}
	if req.Action != "health" {
		return mustJSON(errorResponse("Invalid health request"))
	}
	return mustJSON(m.health.Snapshot())
}

// Close releases the underlying socket.
func (m *HealthMonitor) Close() error {
	return m.sock.Close()
}

func mustJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":"internal encoding failure"}`)
	}
	return b
}
