package cip

// Set_Attribute_Single construction against the TCP/IP Interface Object,
// wrapped in Unconnected Send for delivery through the Connection Manager.
//
// Byte-order rule, preserved exactly: attribute payloads that carry IPv4
// addresses are big-endian (network order); every other integer in a CIP
// message (sizes, status words, service codes, Configuration Control) is
// little-endian.
//
// This package produces and consumes CIP payload bytes only. Encapsulation
// headers, CPF items and session handles belong to the caller.

import (
	"encoding/binary"
	"fmt"
	"net"
)

// CIP service codes used by the commissioning engine.
const (
	ServiceSetAttributeSingle uint8 = 0x10
	ServiceUnconnectedSend    uint8 = 0x52

	// Reply service codes carry the request code with the high bit set.
	replySetAttributeSingle uint8 = ServiceSetAttributeSingle | 0x80 // 0x90
	replyUnconnectedSend    uint8 = ServiceUnconnectedSend | 0x80    // 0xD2
)

// EPATH segment types (8-bit logical format).
const (
	segmentClass     uint8 = 0x20
	segmentInstance  uint8 = 0x24
	segmentAttribute uint8 = 0x30
)

// TCP/IP Interface Object addressing.
const (
	ClassTCPIPInterface    uint16 = 0xF5
	InstanceTCPIPInterface uint8  = 0x01
)

// Connection Manager addressing for Unconnected Send.
const (
	classConnectionManager    uint8 = 0x06
	instanceConnectionManager uint8 = 0x01
)

// Attribute identifies a settable attribute of the TCP/IP Interface Object.
type Attribute uint8

const (
	AttrConfigControl Attribute = 3  // Configuration Control (DINT, little-endian)
	AttrIPAddress     Attribute = 5  // IP address (4 bytes, network order)
	AttrSubnetMask    Attribute = 6  // Subnet mask (4 bytes, network order)
	AttrGateway       Attribute = 7  // Default gateway (4 bytes, network order)
	AttrHostname      Attribute = 8  // Hostname (length-prefixed ASCII, max 64)
	AttrDNSServer     Attribute = 10 // Primary DNS server (4 bytes, network order)
)

// Configuration Control values for attribute 3.
const (
	ConfigControlStatic uint32 = 0 // use stored static configuration
	ConfigControlBOOTP  uint32 = 1
	ConfigControlDHCP   uint32 = 2
)

// MaxHostnameLen is the longest hostname the TCP/IP Interface Object accepts.
const MaxHostnameLen = 64

// Name returns the conventional attribute name used in results and logs.
func (a Attribute) Name() string {
	switch a {
	case AttrConfigControl:
		return "ConfigurationControl"
	case AttrIPAddress:
		return "IPAddress"
	case AttrSubnetMask:
		return "SubnetMask"
	case AttrGateway:
		return "Gateway"
	case AttrHostname:
		return "Hostname"
	case AttrDNSServer:
		return "DNSServer"
	}
	return fmt.Sprintf("Attribute%d", uint8(a))
}

// EncodeIPv4 renders an address as the 4 network-order bytes the TCP/IP
// Interface Object expects.
func EncodeIPv4(ip net.IP) ([]byte, error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("not an IPv4 address: %s", ip)
	}
	out := make([]byte, 4)
	copy(out, ip4)
	return out, nil
}

// EncodeConfigControl renders a Configuration Control value as a
// little-endian DINT.
func EncodeConfigControl(value uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, value)
}

// EncodeHostname renders a hostname as a length-prefixed ASCII string,
// padded to an even byte count.
func EncodeHostname(name string) ([]byte, error) {
	if len(name) > MaxHostnameLen {
		return nil, fmt.Errorf("hostname %q exceeds %d bytes", name, MaxHostnameLen)
	}
	for i := 0; i < len(name); i++ {
		if name[i] > 0x7F {
			return nil, fmt.Errorf("hostname %q is not ASCII", name)
		}
	}
	out := binary.LittleEndian.AppendUint16(nil, uint16(len(name)))
	out = append(out, name...)
	if len(out)%2 != 0 {
		out = append(out, 0x00)
	}
	return out, nil
}

// attributeEPATH builds the logical path to one TCP/IP Interface attribute:
// class 0xF5, instance 1, attribute N. Path size is in 16-bit words; an odd
// byte count gets a zero pad.
func attributeEPATH(attr Attribute) []byte {
	epath := []byte{
		segmentClass, uint8(ClassTCPIPInterface),
		segmentInstance, InstanceTCPIPInterface,
		segmentAttribute, uint8(attr),
	}

	words := len(epath) / 2
	if len(epath)%2 != 0 {
		epath = append(epath, 0x00)
		words++
	}
	return append([]byte{uint8(words)}, epath...)
}

// BuildSetAttributeSingle builds the full CIP payload for writing one
// attribute: a Set_Attribute_Single request embedded in an Unconnected Send
// addressed through the Connection Manager and routed out the backplane-less
// default path (port 1, link 0).
func BuildSetAttributeSingle(attr Attribute, data []byte) []byte {
	embedded := []byte{ServiceSetAttributeSingle}
	embedded = append(embedded, attributeEPATH(attr)...)
	embedded = append(embedded, data...)

	msg := []byte{
		ServiceUnconnectedSend,
		0x02, // path size: 2 words
		segmentClass, classConnectionManager,
		segmentInstance, instanceConnectionManager,
		0x0A, // priority / time tick
		0x0E, // timeout ticks
	}
	msg = binary.LittleEndian.AppendUint16(msg, uint16(len(embedded)))
	msg = append(msg, embedded...)
	if len(embedded)%2 != 0 {
		msg = append(msg, 0x00) // pad to even before route path
	}
	msg = append(msg,
		0x01, // route path size: 1 word
		0x00, // reserved
		0x01, // port 1
		0x00, // link address 0
	)
	return msg
}
