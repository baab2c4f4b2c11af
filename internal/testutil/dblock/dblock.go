// Package dblock serializes Postgres-backed tests across test binaries, which
// go test runs in parallel per package.
package dblock

import (
	"net"
	"os"
	"testing"
	"time"
)

const lockAddr = "127.0.0.1:45433"

// Acquire blocks until this process holds the lock and returns its release.
func Acquire() func() {
	for {
		ln, err := net.Listen("tcp", lockAddr)
		if err == nil {
			return func() { ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// DatabaseURL skips t unless DATABASE_URL is set. Otherwise it holds the lock
// until t finishes and returns the URL.
func DatabaseURL(t testing.TB) string {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
	release := Acquire()
	t.Cleanup(release)
	return url
}
