package bootp

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"
)

// rawRequest builds a minimal valid BOOTREQUEST.
func rawRequest(xid uint32, flags uint16, mac net.HardwareAddr) []byte {
	pkt := make([]byte, 300)
	pkt[0] = OpRequest
	pkt[1] = 1
	pkt[2] = 6
	binary.BigEndian.PutUint32(pkt[4:8], xid)
	binary.BigEndian.PutUint16(pkt[10:12], flags)
	copy(pkt[28:34], mac)
	return pkt
}

func testMAC(t *testing.T) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC("AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("parse MAC: %v", err)
	}
	return mac
}

func TestParseRequest(t *testing.T) {
	mac := testMAC(t)
	src := &net.UDPAddr{IP: net.ParseIP("0.0.0.0"), Port: 68}

	req, err := ParseRequest(rawRequest(0x12345678, FlagBroadcast, mac), src)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.XID != 0x12345678 {
		t.Errorf("xid = 0x%08X, want 0x12345678", req.XID)
	}
	if req.Flags != FlagBroadcast {
		t.Errorf("flags = 0x%04X, want 0x%04X", req.Flags, FlagBroadcast)
	}
	if !bytes.Equal(req.ClientMAC, mac) {
		t.Errorf("chaddr = %s, want %s", req.ClientMAC, mac)
	}
	if !req.WantsBroadcast() {
		t.Error("WantsBroadcast = false with broadcast flag set")
	}
}

func TestParseRequestMalformed(t *testing.T) {
	mac := testMAC(t)
	tests := []struct {
		name string
		data []byte
	}{
		{"too short", make([]byte, 100)},
		{"reply op", func() []byte {
			p := rawRequest(1, 0, mac)
			p[0] = OpReply
			return p
		}()},
		{"non-ethernet htype", func() []byte {
			p := rawRequest(1, 0, mac)
			p[1] = 6
			return p
		}()},
		{"wrong hlen", func() []byte {
			p := rawRequest(1, 0, mac)
			p[2] = 16
			return p
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRequest(tt.data, nil); err == nil {
				t.Error("ParseRequest accepted malformed packet")
			}
		})
	}
}

func TestBuildReplyEchoesRequest(t *testing.T) {
	mac := testMAC(t)
	req, err := ParseRequest(rawRequest(0x12345678, FlagBroadcast, mac), nil)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}

	assigned := Assignment{
		IP:         net.ParseIP("192.168.1.100"),
		SubnetMask: net.CIDRMask(24, 32),
		Router:     net.ParseIP("192.168.1.1"),
	}

	reply, err := BuildReply(req, assigned, net.ParseIP("192.168.1.2"))
	if err != nil {
		t.Fatalf("BuildReply: %v", err)
	}

	if reply[0] != OpReply {
		t.Errorf("op = %d, want %d", reply[0], OpReply)
	}
	if got := binary.BigEndian.Uint32(reply[4:8]); got != 0x12345678 {
		t.Errorf("xid = 0x%08X, want 0x12345678", got)
	}
	if got := binary.BigEndian.Uint16(reply[10:12]); got != FlagBroadcast {
		t.Errorf("flags = 0x%04X, want 0x%04X", got, FlagBroadcast)
	}
	if got := net.IP(reply[16:20]); !got.Equal(assigned.IP) {
		t.Errorf("yiaddr = %s, want %s", got, assigned.IP)
	}
	if got := net.IP(reply[20:24]); !got.Equal(net.ParseIP("192.168.1.2")) {
		t.Errorf("siaddr = %s, want 192.168.1.2", got)
	}
	if !bytes.Equal(reply[28:34], mac) {
		t.Errorf("chaddr = %s, want %s", net.HardwareAddr(reply[28:34]), mac)
	}

	if !bytes.Equal(reply[236:240], magicCookie[:]) {
		t.Errorf("magic cookie = % X", reply[236:240])
	}
	wantOptions := []byte{
		optSubnetMask, 4, 255, 255, 255, 0,
		optRouter, 4, 192, 168, 1, 1,
		optEnd,
	}
	if !bytes.Equal(reply[240:240+len(wantOptions)], wantOptions) {
		t.Errorf("options = % X, want % X", reply[240:240+len(wantOptions)], wantOptions)
	}

	if len(reply) < minReplyLen {
		t.Errorf("reply length %d below minimum %d", len(reply), minReplyLen)
	}
	for i := 240 + len(wantOptions); i < len(reply); i++ {
		if reply[i] != 0 {
			t.Errorf("padding byte %d is 0x%02X, want 0", i, reply[i])
			break
		}
	}
}

func TestBuildReplyWithoutRouter(t *testing.T) {
	mac := testMAC(t)
	req, err := ParseRequest(rawRequest(7, 0, mac), nil)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}

	reply, err := BuildReply(req, Assignment{
		IP:         net.ParseIP("10.0.0.20"),
		SubnetMask: net.CIDRMask(16, 32),
	}, net.ParseIP("10.0.0.1"))
	if err != nil {
		t.Fatalf("BuildReply: %v", err)
	}

	wantOptions := []byte{optSubnetMask, 4, 255, 255, 0, 0, optEnd}
	if !bytes.Equal(reply[240:240+len(wantOptions)], wantOptions) {
		t.Errorf("options = % X, want % X", reply[240:240+len(wantOptions)], wantOptions)
	}
}

func TestBuildReplyRejectsBadAssignment(t *testing.T) {
	req := Request{ClientMAC: testMAC(t)}
	if _, err := BuildReply(req, Assignment{IP: net.ParseIP("::1"), SubnetMask: net.CIDRMask(24, 32)}, nil); err == nil {
		t.Error("BuildReply accepted non-IPv4 assignment")
	}
	if _, err := BuildReply(req, Assignment{IP: net.ParseIP("10.0.0.1")}, nil); err == nil {
		t.Error("BuildReply accepted missing subnet mask")
	}
}
