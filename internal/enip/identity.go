package enip

// ListIdentity response parsing.

import (
	"encoding/binary"
	"fmt"
	"net"
)

// IdentityItem is the CIP Identity item (type 0x000C) carried in a
// ListIdentity response.
type IdentityItem struct {
	EncapsVersion uint16
	SocketAddr    net.IP // sin_addr from the embedded sockaddr_in
	SocketPort    uint16
	VendorID      uint16
	DeviceType    uint16
	ProductCode   uint16
	RevisionMajor uint8
	RevisionMinor uint8
	Status        uint16
	SerialNumber  uint32
	ProductName   string
	State         uint8
}

// ParseListIdentity decodes a full ListIdentity response datagram (header
// included) and returns its identity items. Items of unknown types are
// skipped; a response that declares more data than it carries is an error.
func ParseListIdentity(data []byte) ([]IdentityItem, error) {
	header, payload, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if header.Command != CommandListIdentity {
		return nil, fmt.Errorf("unexpected command 0x%04X, want ListIdentity", header.Command)
	}
	if header.Status != StatusSuccess {
		return nil, fmt.Errorf("encapsulation status 0x%08X", header.Status)
	}

	items, err := DecodeCPF(payload)
	if err != nil {
		return nil, fmt.Errorf("ListIdentity items: %w", err)
	}

	var out []IdentityItem
	for _, item := range items {
		if item.TypeID != ItemIdentity {
			continue
		}
		identity, err := parseIdentityItem(item.Data)
		if err != nil {
			return nil, fmt.Errorf("identity item: %w", err)
		}
		out = append(out, identity)
	}
	return out, nil
}

// parseIdentityItem decodes the body of one identity item.
//
// Layout: encapsulation version (u16 LE), sockaddr_in (16 bytes, port and
// address in network order - the one big-endian island in the item), vendor,
// device type, product code (u16 LE each), revision (2 bytes), status word,
// serial (u32 LE), length-prefixed product name, state byte. Some firmware
// omits the trailing state byte; tolerate that.
func parseIdentityItem(data []byte) (IdentityItem, error) {
	const fixedPart = 2 + 16 + 2 + 2 + 2 + 2 + 2 + 4 + 1 // through the name length byte
	var item IdentityItem

	if len(data) < fixedPart {
		return item, fmt.Errorf("too short: %d bytes (minimum %d)", len(data), fixedPart)
	}

	item.EncapsVersion = binary.LittleEndian.Uint16(data[0:2])

	// sockaddr_in: family(2) port(2) addr(4) zero(8), port and addr big-endian.
	item.SocketPort = binary.BigEndian.Uint16(data[4:6])
	item.SocketAddr = net.IPv4(data[6], data[7], data[8], data[9]).To4()

	item.VendorID = binary.LittleEndian.Uint16(data[18:20])
	item.DeviceType = binary.LittleEndian.Uint16(data[20:22])
	item.ProductCode = binary.LittleEndian.Uint16(data[22:24])
	item.RevisionMajor = data[24]
	item.RevisionMinor = data[25]
	item.Status = binary.LittleEndian.Uint16(data[26:28])
	item.SerialNumber = binary.LittleEndian.Uint32(data[28:32])

	nameLen := int(data[32])
	offset := 33
	if offset+nameLen > len(data) {
		return item, fmt.Errorf("product name truncated: %d bytes declared, %d available", nameLen, len(data)-offset)
	}
	item.ProductName = string(data[offset : offset+nameLen])
	offset += nameLen

	if offset < len(data) {
		item.State = data[offset]
	}

	return item, nil
}

// FirmwareRevision renders the identity revision as "major.minor".
func (i IdentityItem) FirmwareRevision() string {
	return fmt.Sprintf("%d.%d", i.RevisionMajor, i.RevisionMinor)
}
