// Package bootp bootstraps factory-default devices that have no usable IP
// address. It listens for BOOTREQUEST broadcasts, hands each request to the
// caller as a pending decision, and answers accepted requests with a
// BOOTREPLY carrying the assigned address.
package bootp

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

const (
	// OpRequest and OpReply are the BOOTP op codes.
	OpRequest uint8 = 1
	OpReply   uint8 = 2

	// ListenPort receives BOOTREQUEST broadcasts; ReplyPort receives our
	// BOOTREPLY answers.
	ListenPort = 68
	ReplyPort  = 67

	// FlagBroadcast asks for the reply to be broadcast instead of unicast.
	FlagBroadcast uint16 = 0x8000

	// fixedLen is the fixed BOOTP region before the vendor/options field.
	fixedLen = 236

	// minReplyLen pads replies to the classic minimum BOOTP frame size;
	// some bootloaders drop anything shorter.
	minReplyLen = 300
)

// magicCookie prefixes the DHCP-style options area.
var magicCookie = [4]byte{0x63, 0x82, 0x53, 0x63}

// Option codes used in replies.
const (
	optSubnetMask uint8 = 1
	optRouter     uint8 = 3
	optEnd        uint8 = 255
)

// Request is one parsed BOOTREQUEST.
type Request struct {
	XID       uint32
	Flags     uint16
	ClientMAC net.HardwareAddr
	Source    *net.UDPAddr
	Received  time.Time
}

// ParseRequest parses a BOOTREQUEST datagram. Only Ethernet requests
// (htype 1, hlen 6) are accepted; anything else is malformed here.
func ParseRequest(data []byte, source *net.UDPAddr) (Request, error) {
	if len(data) < fixedLen {
		return Request{}, fmt.Errorf("packet too short: %d bytes (minimum %d)", len(data), fixedLen)
	}
	if op := data[0]; op != OpRequest {
		return Request{}, fmt.Errorf("op %d is not BOOTREQUEST", op)
	}
	if htype := data[1]; htype != 1 {
		return Request{}, fmt.Errorf("hardware type %d is not Ethernet", htype)
	}
	if hlen := data[2]; hlen != 6 {
		return Request{}, fmt.Errorf("hardware address length %d, want 6", hlen)
	}

	mac := make(net.HardwareAddr, 6)
	copy(mac, data[28:34])

	return Request{
		XID:       binary.BigEndian.Uint32(data[4:8]),
		Flags:     binary.BigEndian.Uint16(data[10:12]),
		ClientMAC: mac,
		Source:    source,
		Received:  time.Now(),
	}, nil
}

// WantsBroadcast reports whether the request asked for a broadcast reply.
func (r Request) WantsBroadcast() bool {
	return r.Flags&FlagBroadcast != 0
}

// Assignment is the address handed to an accepted request.
type Assignment struct {
	IP         net.IP     // required, becomes YIADDR
	SubnetMask net.IPMask // required, option 1
	Router     net.IP     // optional, option 3
}

// BuildReply builds the BOOTREPLY for req: op 2, xid/flags/chaddr echoed
// unchanged, YIADDR the assigned address, SIADDR the replying server, then
// the options area (magic cookie, subnet mask, optional router, end marker),
// zero-padded to the minimum frame size.
func BuildReply(req Request, assigned Assignment, serverIP net.IP) ([]byte, error) {
	ip4 := assigned.IP.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("assigned address %s is not IPv4", assigned.IP)
	}
	if len(assigned.SubnetMask) != 4 {
		return nil, fmt.Errorf("subnet mask must be 4 bytes, got %d", len(assigned.SubnetMask))
	}

	reply := make([]byte, fixedLen, minReplyLen)
	reply[0] = OpReply
	reply[1] = 1 // htype Ethernet
	reply[2] = 6 // hlen
	binary.BigEndian.PutUint32(reply[4:8], req.XID)
	binary.BigEndian.PutUint16(reply[10:12], req.Flags)
	copy(reply[16:20], ip4) // yiaddr
	if server4 := serverIP.To4(); server4 != nil {
		copy(reply[20:24], server4) // siaddr
	}
	copy(reply[28:34], req.ClientMAC)

	reply = append(reply, magicCookie[:]...)
	reply = append(reply, optSubnetMask, 4)
	reply = append(reply, assigned.SubnetMask...)
	if router4 := assigned.Router.To4(); router4 != nil {
		reply = append(reply, optRouter, 4)
		reply = append(reply, router4...)
	}
	reply = append(reply, optEnd)

	for len(reply) < minReplyLen {
		reply = append(reply, 0)
	}
	return reply, nil
}
