package enip

// Common Packet Format item handling for SendRRData.

import (
	"encoding/binary"
	"fmt"
)

// CPF item type IDs.
const (
	ItemNullAddress     uint16 = 0x0000
	ItemUnconnectedData uint16 = 0x00B2
	ItemIdentity        uint16 = 0x000C
)

// CPFItem is one item in a Common Packet Format list.
type CPFItem struct {
	TypeID uint16
	Data   []byte
}

// EncodeCPF serializes an item count followed by each item.
func EncodeCPF(items ...CPFItem) []byte {
	var out []byte
	out = binary.LittleEndian.AppendUint16(out, uint16(len(items)))
	for _, item := range items {
		out = binary.LittleEndian.AppendUint16(out, item.TypeID)
		out = binary.LittleEndian.AppendUint16(out, uint16(len(item.Data)))
		out = append(out, item.Data...)
	}
	return out
}

// DecodeCPF parses a Common Packet Format item list.
func DecodeCPF(data []byte) ([]CPFItem, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("CPF too short: %d bytes", len(data))
	}
	count := int(binary.LittleEndian.Uint16(data[0:2]))
	offset := 2

	items := make([]CPFItem, 0, count)
	for i := 0; i < count; i++ {
		if len(data) < offset+4 {
			return nil, fmt.Errorf("CPF item %d: truncated header at offset %d", i, offset)
		}
		typeID := binary.LittleEndian.Uint16(data[offset : offset+2])
		length := int(binary.LittleEndian.Uint16(data[offset+2 : offset+4]))
		offset += 4
		if len(data) < offset+length {
			return nil, fmt.Errorf("CPF item %d: %d data bytes declared, %d available", i, length, len(data)-offset)
		}
		items = append(items, CPFItem{TypeID: typeID, Data: data[offset : offset+length]})
		offset += length
	}
	return items, nil
}

// FindCPFItem returns the first item with the given type ID, or nil.
func FindCPFItem(items []CPFItem, typeID uint16) *CPFItem {
	for i := range items {
		if items[i].TypeID == typeID {
			return &items[i]
		}
	}
	return nil
}
