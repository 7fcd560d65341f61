package modhost

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"time"

	"github.com/shaban/modhost-bridge/health"
	"github.com/shaban/modhost-bridge/logging"
)

// EventSink receives parsed feedback events. ipc.EventPublisher implements it.
type EventSink interface {
	Publish(Event) error
}

const (
	minBackoff     = 100 * time.Millisecond
	maxBackoff     = 5 * time.Second
	dialTimeout    = 100 * time.Millisecond
	feedbackBuffer = 4096
)

// Reader owns the long-lived feedback socket. It reconnects with
// exponential backoff on any read or dial error and reassembles
// NUL-delimited records across arbitrary read boundaries.
type Reader struct {
	Host   string
	Port   int
	health *health.State
	sink   EventSink
	errs   logging.ErrorHandler
}

// NewReader creates a FeedbackReader publishing parsed events to sink.
func NewReader(host string, port int, h *health.State, sink EventSink, errs logging.ErrorHandler) *Reader {
	return &Reader{Host: host, Port: port, health: h, sink: sink, errs: errs}
}

// Run connects and reads until ctx is cancelled, reconnecting on failure
// with exponential backoff reset on every successful connection.
func (r *Reader) Run(ctx context.Context) {
	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := r.connect(ctx)
		if err != nil {
			r.health.UpdateFeedbackConnection(false)
			r.errs.HandleError(err)
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		r.health.UpdateFeedbackConnection(true)
		backoff = minBackoff
		readErr := r.readLoop(ctx, conn)
		conn.Close()
		r.health.UpdateFeedbackConnection(false)
		if readErr != nil {
			r.errs.HandleError(readErr)
		}

		if !sleepOrDone(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

func (r *Reader) connect(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
	resolved, err := net.DefaultResolver.LookupIPAddr(ctx, r.Host)
	if err == nil {
		for _, ip := range resolved {
			if ip.IP.To4() != nil {
				addr = net.JoinHostPort(ip.IP.String(), strconv.Itoa(r.Port))
				break
			}
		}
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
		tc.SetKeepAliveConfig(net.KeepAliveConfig{
			Enable:   true,
			Idle:     10 * time.Second,
			Interval: 5 * time.Second,
			Count:    3,
		})
	}
	return conn, nil
}

// readLoop reads until the connection errors or ctx is cancelled,
// accumulating bytes and splitting on NUL to recover records that span
// multiple reads.
func (r *Reader) readLoop(ctx context.Context, conn net.Conn) error {
	var acc bytes.Buffer
	buf := make([]byte, feedbackBuffer)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
			r.drainRecords(&acc)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (r *Reader) drainRecords(acc *bytes.Buffer) {
	for {
		data := acc.Bytes()
		idx := bytes.IndexByte(data, 0)
		if idx < 0 {
			return
		}
		line := string(data[:idx])
		acc.Next(idx + 1)
		if line == "" {
			continue
		}
		ev := Parse(line)
		if err := r.sink.Publish(ev); err != nil {
			r.errs.HandleError(err)
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	next := d * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
