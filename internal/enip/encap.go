package enip

// EtherNet/IP encapsulation header encoding and decoding.
//
// Every encapsulation integer is little-endian per the ODVA spec. Attribute
// payloads that carry IP addresses are big-endian, but that is a CIP-layer
// concern and lives in internal/cip.

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// Encapsulation command codes.
const (
	CommandNOP               uint16 = 0x0000
	CommandListServices      uint16 = 0x0004
	CommandListIdentity      uint16 = 0x0063
	CommandRegisterSession   uint16 = 0x0065
	CommandUnregisterSession uint16 = 0x0066
	CommandSendRRData        uint16 = 0x006F
)

// StatusSuccess is the only encapsulation status a healthy reply carries.
const StatusSuccess uint32 = 0x00000000

// HeaderSize is the fixed encapsulation header length in bytes.
const HeaderSize = 24

// EtherNet/IP registered TCP/UDP port.
const Port = 44818

// Header represents the 24-byte EtherNet/IP encapsulation header.
type Header struct {
	Command       uint16
	Length        uint16
	SessionHandle uint32
	Status        uint32
	SenderContext [8]byte
	Options       uint32
}

// Encode serializes the header followed by payload. Length is always taken
// from the payload, not from the struct field.
func Encode(h Header, payload []byte) []byte {
	packet := make([]byte, HeaderSize+len(payload))

	binary.LittleEndian.PutUint16(packet[0:2], h.Command)
	binary.LittleEndian.PutUint16(packet[2:4], uint16(len(payload)))
	binary.LittleEndian.PutUint32(packet[4:8], h.SessionHandle)
	binary.LittleEndian.PutUint32(packet[8:12], h.Status)
	copy(packet[12:20], h.SenderContext[:])
	binary.LittleEndian.PutUint32(packet[20:24], h.Options)
	copy(packet[HeaderSize:], payload)

	return packet
}

// Decode parses an encapsulation header and returns it with the trailing
// payload. Fails if the buffer cannot hold a full header.
func Decode(data []byte) (Header, []byte, error) {
	if len(data) < HeaderSize {
		return Header{}, nil, fmt.Errorf("packet too short: %d bytes (minimum %d)", len(data), HeaderSize)
	}

	var h Header
	h.Command = binary.LittleEndian.Uint16(data[0:2])
	h.Length = binary.LittleEndian.Uint16(data[2:4])
	h.SessionHandle = binary.LittleEndian.Uint32(data[4:8])
	h.Status = binary.LittleEndian.Uint32(data[8:12])
	copy(h.SenderContext[:], data[12:20])
	h.Options = binary.LittleEndian.Uint32(data[20:24])

	var payload []byte
	if len(data) > HeaderSize {
		payload = data[HeaderSize:]
	}

	return h, payload, nil
}

var contextCounter uint64

// NextSenderContext returns a fresh 8-byte sender context. Contexts are
// monotonic so concurrent requests never collide; a compliant peer echoes the
// value unchanged.
func NextSenderContext() [8]byte {
	var ctx [8]byte
	binary.LittleEndian.PutUint64(ctx[:], atomic.AddUint64(&contextCounter, 1))
	return ctx
}
