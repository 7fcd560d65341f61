package modhost

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/shaban/modhost-bridge/health"
)

const maxResponseSize = 4096

// Client sends one text command at a time to mod-host's command port. It
// deliberately opens a fresh TCP connection per call: this trades latency
// for simplicity and robustness against half-open connections.
type Client struct {
	Host   string
	Port   int
	health *health.State
}

// NewClient creates a ModHostClient reporting connectivity into health.
func NewClient(host string, port int, h *health.State) *Client {
	return &Client{Host: host, Port: port, health: h}
}

// Send opens a socket, writes command+NUL, reads the reply (up to 4KiB or
// until a NUL byte), and returns the reply with its trailing NUL stripped.
func (c *Client) Send(ctx context.Context, command string, timeout time.Duration) (string, error) {
	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.health.UpdateCommandConnection(false)
		return "", fmt.Errorf("connect to mod-host at %s: %w", addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		c.health.UpdateCommandConnection(false)
		return "", fmt.Errorf("set deadline: %w", err)
	}

	if _, err := conn.Write(append([]byte(command), 0)); err != nil {
		c.health.UpdateCommandConnection(false)
		return "", fmt.Errorf("write command: %w", err)
	}

	resp, err := readUntilNUL(conn, maxResponseSize)
	if err != nil {
		c.health.UpdateCommandConnection(false)
		return "", fmt.Errorf("read response: %w", err)
	}

	c.health.UpdateCommandConnection(true)
	return resp, nil
}

func readUntilNUL(conn net.Conn, limit int) (string, error) {
	buf := make([]byte, limit)
	total := 0
	for total < limit {
		n, err := conn.Read(buf[total:])
		total += n
		if total > 0 {
			if idx := strings.IndexByte(string(buf[:total]), 0); idx >= 0 {
				return string(buf[:idx]), nil
			}
		}
		if err != nil {
			if total == 0 {
				return "", err
			}
			return strings.TrimRight(string(buf[:total]), "\x00"), nil
		}
	}
	return strings.TrimRight(string(buf[:total]), "\x00"), nil
}
