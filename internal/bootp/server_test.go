package bootp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/tturner/enipcfg/internal/config"
	"github.com/tturner/enipcfg/internal/logging"
	"github.com/tturner/enipcfg/internal/netdetect"
	"github.com/tturner/enipcfg/internal/session"
)

func testServer(t *testing.T, queue int) *Server {
	t.Helper()
	cfg := config.BootPConfig{SettleMs: 0, DisableDHCP: true, PendingQueue: queue}
	writeCfg := config.WriteConfig{ConnectTimeoutMs: 200, WriteTimeoutMs: 200}
	adapter := netdetect.Adapter{
		Name: "eth0",
		IP:   net.ParseIP("192.168.1.2"),
		Mask: net.CIDRMask(24, 32),
	}
	s := NewServer(adapter, cfg, session.NewWriter(writeCfg, logging.Nop(), nil), logging.Nop())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProcessDatagramQueuesRequest(t *testing.T) {
	s := testServer(t, 4)
	mac := testMAC(t)
	src := &net.UDPAddr{IP: net.IPv4zero, Port: 68}

	s.processDatagram(rawRequest(0x42, 0, mac), src)

	select {
	case req := <-s.Requests():
		if req.XID != 0x42 {
			t.Errorf("xid = 0x%X, want 0x42", req.XID)
		}
	default:
		t.Fatal("no request queued")
	}
}

func TestProcessDatagramDedupsPendingMAC(t *testing.T) {
	s := testServer(t, 4)
	mac := testMAC(t)

	s.processDatagram(rawRequest(1, 0, mac), nil)
	s.processDatagram(rawRequest(2, 0, mac), nil)

	if got := len(s.requests); got != 1 {
		t.Fatalf("queue holds %d requests, want 1 (repeat MAC dropped)", got)
	}

	// Resolving clears the pending mark, so the MAC can queue again.
	req := <-s.Requests()
	if _, err := s.Resolve(context.Background(), req, Decision{}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	s.processDatagram(rawRequest(3, 0, mac), nil)
	if got := len(s.requests); got != 1 {
		t.Errorf("queue holds %d requests after resolve, want 1", got)
	}
}

func TestProcessDatagramDropsMalformed(t *testing.T) {
	s := testServer(t, 4)
	s.processDatagram(make([]byte, 10), nil)
	if got := len(s.requests); got != 0 {
		t.Errorf("queue holds %d requests, want 0", got)
	}
}

func TestProcessDatagramQueueFull(t *testing.T) {
	s := testServer(t, 1)
	macA, _ := net.ParseMAC("aa:00:00:00:00:01")
	macB, _ := net.ParseMAC("aa:00:00:00:00:02")

	s.processDatagram(rawRequest(1, 0, macA), nil)
	s.processDatagram(rawRequest(2, 0, macB), nil)
	if got := len(s.requests); got != 1 {
		t.Fatalf("queue holds %d requests, want 1", got)
	}

	// The dropped MAC is unmarked and may try again later.
	<-s.Requests()
	s.processDatagram(rawRequest(3, 0, macB), nil)
	if got := len(s.requests); got != 1 {
		t.Errorf("queue holds %d requests, want 1 (dropped MAC retried)", got)
	}
}

func TestResolveSendsUnicastReply(t *testing.T) {
	s := testServer(t, 4)

	// Stand in for the device: a loopback listener on the reply port.
	client, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("listen client: %v", err)
	}
	defer client.Close()
	s.replyPort = client.LocalAddr().(*net.UDPAddr).Port

	server, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("listen server: %v", err)
	}
	s.conn = server

	req, err := ParseRequest(rawRequest(0x12345678, 0, testMAC(t)), nil)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}

	decision := Decision{
		Accept: true,
		Assignment: Assignment{
			IP:         net.ParseIP("127.0.0.1"),
			SubnetMask: net.CIDRMask(24, 32),
		},
	}

	result, err := s.Resolve(context.Background(), req, decision)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !result.ReplySent {
		t.Error("ReplySent = false")
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1500)
	n, _, err := client.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if n < minReplyLen {
		t.Errorf("reply length %d below minimum %d", n, minReplyLen)
	}
	if buf[0] != OpReply {
		t.Errorf("reply op = %d, want %d", buf[0], OpReply)
	}
}

func TestResolveDisableDHCPFailureKeepsAssignment(t *testing.T) {
	s := testServer(t, 4)

	client, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("listen client: %v", err)
	}
	defer client.Close()
	s.replyPort = client.LocalAddr().(*net.UDPAddr).Port

	server, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("listen server: %v", err)
	}
	s.conn = server

	// Nothing listens on the CIP port, so the follow-up write must fail
	// without invalidating the reply that was already sent.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen tcp: %v", err)
	}
	s.cipPort = ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	req, err := ParseRequest(rawRequest(0x99, 0, testMAC(t)), nil)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}

	result, err := s.Resolve(context.Background(), req, Decision{
		Accept:      true,
		DisableDHCP: true,
		Assignment: Assignment{
			IP:         net.ParseIP("127.0.0.1"),
			SubnetMask: net.CIDRMask(24, 32),
		},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !result.ReplySent {
		t.Error("ReplySent = false")
	}
	if result.DHCPDisabled {
		t.Error("DHCPDisabled = true with no device listening")
	}
	if result.DisableFailure == "" {
		t.Error("DisableFailure is empty")
	}
}

func TestResolveIgnoreSendsNothing(t *testing.T) {
	s := testServer(t, 4)

	req, err := ParseRequest(rawRequest(5, 0, testMAC(t)), nil)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}

	result, err := s.Resolve(context.Background(), req, Decision{Accept: false})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.ReplySent {
		t.Error("ReplySent = true for an ignored request")
	}
}
