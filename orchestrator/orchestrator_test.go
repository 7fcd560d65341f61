package orchestrator

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/shaban/modhost-bridge/config"
	"github.com/shaban/modhost-bridge/health"
	"github.com/shaban/modhost-bridge/internal/stub"
	"github.com/shaban/modhost-bridge/logging"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func startDummyModHost(t *testing.T) (cmdPort, feedbackPort int) {
	t.Helper()
	cmdL, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen cmd: %v", err)
	}
	fbL, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen feedback: %v", err)
	}
	t.Cleanup(func() { cmdL.Close(); fbL.Close() })

	accept := func(l net.Listener) {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}
	go accept(cmdL)
	go accept(fbL)

	return cmdL.Addr().(*net.TCPAddr).Port, fbL.Addr().(*net.TCPAddr).Port
}

func TestRunShutsDownCleanlyOnContextCancel(t *testing.T) {
	cmdPort, fbPort := startDummyModHost(t)

	cfg := config.Config{
		ModHostHost:         "127.0.0.1",
		ModHostPort:         cmdPort,
		ModHostFeedbackPort: fbPort,
		RepAddr:             "tcp://127.0.0.1:" + strconv.Itoa(freePort(t)),
		PubAddr:             "tcp://127.0.0.1:" + strconv.Itoa(freePort(t)),
		HealthAddr:          "tcp://127.0.0.1:" + strconv.Itoa(freePort(t)),
	}

	o := New(cfg, stub.NoopDiscovery{}, stub.NoopAudioSystem{}, logging.DefaultErrorHandler{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestPollConnectivityStopsOnCancel(t *testing.T) {
	cfg := config.Config{
		ModHostHost: "127.0.0.1",
		ModHostPort: freePort(t), // nothing listening
	}
	o := New(cfg, stub.NoopDiscovery{}, stub.NoopAudioSystem{}, logging.DefaultErrorHandler{})
	o.health = health.New(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		o.pollConnectivity(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pollConnectivity did not stop on context cancellation")
	}
}
