package discovery

// Dual-socket UDP transport for ListIdentity broadcasts.
//
// The primary socket binds the adapter address with an OS-assigned ephemeral
// port so several tools (or several instances of this one) can scan at the
// same time. A secondary socket on the standard port 44818 is opened
// best-effort: some devices answer to the sender port, others insist on the
// registered port, and another tool may already own it.

import (
	"context"
	"net"
	"time"

	"github.com/tturner/enipcfg/internal/enip"
	"github.com/tturner/enipcfg/internal/logging"
	"github.com/tturner/enipcfg/internal/netdetect"
)

// pollInterval bounds one blocking read so cancellation and the scan window
// are honored promptly.
const pollInterval = 200 * time.Millisecond

// Response is one datagram collected during a scan window.
type Response struct {
	Payload []byte
	Source  *net.UDPAddr
}

// Socket owns the discovery socket pair for one adapter.
type Socket struct {
	adapter   netdetect.Adapter
	primary   *net.UDPConn
	secondary *net.UDPConn
	log       *logging.Logger
}

// OpenSocket binds the socket pair on the given adapter. Primary bind
// failure is fatal; secondary bind failure degrades to single-socket mode
// with a warning.
func OpenSocket(adapter netdetect.Adapter, log *logging.Logger) (*Socket, error) {
	primary, err := net.ListenUDP("udp4", &net.UDPAddr{IP: adapter.IP, Port: 0})
	if err != nil {
		return nil, err
	}

	s := &Socket{adapter: adapter, primary: primary, log: log}

	secondary, err := net.ListenUDP("udp4", &net.UDPAddr{IP: adapter.IP, Port: enip.Port})
	if err != nil {
		log.Warn("port %d unavailable (%v); continuing in single-socket mode", enip.Port, err)
	} else {
		s.secondary = secondary
	}

	return s, nil
}

// Close releases both sockets.
func (s *Socket) Close() {
	if s.primary != nil {
		s.primary.Close()
	}
	if s.secondary != nil {
		s.secondary.Close()
	}
}

// Broadcast sends packet to the limited broadcast address and to the
// subnet-directed broadcast. Devices and switches differ in which form they
// pass; sending both maximizes coverage. Duplicate replies are handled by
// the dedup in Collect.
func (s *Socket) Broadcast(packet []byte) error {
	targets := []net.IP{net.IPv4bcast}
	if directed := s.adapter.SubnetBroadcast(); directed != nil {
		targets = append(targets, directed)
	}

	var lastErr error
	sent := 0
	for _, ip := range targets {
		addr := &net.UDPAddr{IP: ip, Port: enip.Port}
		if _, err := s.primary.WriteToUDP(packet, addr); err != nil {
			s.log.Warn("broadcast to %s failed: %v", addr, err)
			lastErr = err
			continue
		}
		sent++
	}
	if sent == 0 {
		return lastErr
	}
	return nil
}

// Collect polls both sockets until the window elapses or ctx is cancelled,
// returning deduplicated responses. Read timeouts are the normal idle case
// and are never logged; other errors degrade only the failing socket.
func (s *Socket) Collect(ctx context.Context, window time.Duration) []Response {
	deadline := time.Now().Add(window)
	conns := []*net.UDPConn{s.primary}
	if s.secondary != nil {
		conns = append(conns, s.secondary)
	}
	dead := make([]bool, len(conns))
	live := len(conns)

	var responses []Response
	buf := make([]byte, 1500)

	for live > 0 && time.Now().Before(deadline) {
		if ctx.Err() != nil {
			break
		}
		for i, conn := range conns {
			if dead[i] {
				continue
			}
			conn.SetReadDeadline(time.Now().Add(pollInterval))
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue // expected between replies
				}
				s.log.Warn("discovery socket read failed: %v", err)
				dead[i] = true
				live--
				continue
			}
			payload := make([]byte, n)
			copy(payload, buf[:n])
			responses = append(responses, Response{Payload: payload, Source: addr})
		}
	}

	return dedupResponses(responses)
}

// dedupResponses drops responses whose (source, payload) pair was already
// seen. Both sockets hear the same reply when a device answers the standard
// port, and devices answer each broadcast form once.
func dedupResponses(responses []Response) []Response {
	seen := make(map[string]struct{}, len(responses))
	out := responses[:0]
	for _, r := range responses {
		key := r.Source.String() + "|" + string(r.Payload)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
