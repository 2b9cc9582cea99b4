package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/tturner/enipcfg/internal/logging"
)

func TestCollectReturnsOnceAllSocketsDead(t *testing.T) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	conn.Close() // reads now fail with a non-timeout error

	s := &Socket{primary: conn, log: logging.Nop()}

	start := time.Now()
	responses := s.Collect(context.Background(), 3*time.Second)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Collect ran %v with no live socket, want an early return", elapsed)
	}
	if len(responses) != 0 {
		t.Errorf("got %d responses from a dead socket, want 0", len(responses))
	}
}

func TestCollectHonorsCancellation(t *testing.T) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	s := &Socket{primary: conn, log: logging.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	s.Collect(ctx, 3*time.Second)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Collect ran %v after cancellation, want an early return", elapsed)
	}
}
