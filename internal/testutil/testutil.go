// Package testutil collects small helpers shared by the bridge's test
// suites: environment gating and a mock mod-host TCP server.
package testutil

import (
	"net"
	"os"
	"testing"
)

// SkipUnlessEnv skips the test unless the given env var equals the wanted value.
func SkipUnlessEnv(t *testing.T, key, want string) {
	t.Helper()
	if os.Getenv(key) != want {
		t.Skipf("skipped: set %s=%s to run", key, want)
	}
}

// IsCI reports whether running under common CI environments.
func IsCI() bool {
	return os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
}

// Listen opens a TCP listener on an ephemeral loopback port and registers
// its close with t.Cleanup.
func Listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln
}

// MockCommandServer starts a one-shot TCP server that reads a single
// NUL-framed request and replies with reply+NUL, mimicking mod-host's
// command socket. Returns the loopback host and assigned port.
func MockCommandServer(t *testing.T, reply string) (host string, port int) {
	t.Helper()
	ln := Listen(t)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		conn.Read(buf)
		conn.Write(append([]byte(reply), 0))
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}
