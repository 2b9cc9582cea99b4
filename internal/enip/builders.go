package enip

import (
	"encoding/binary"
	"fmt"
)

// BuildRegisterSession builds a RegisterSession packet.
// Data: protocol version 1, option flags 0.
func BuildRegisterSession(senderContext [8]byte) []byte {
	var data []byte
	data = binary.LittleEndian.AppendUint16(data, 1)
	data = binary.LittleEndian.AppendUint16(data, 0)

	return Encode(Header{
		Command:       CommandRegisterSession,
		SenderContext: senderContext,
	}, data)
}

// BuildUnregisterSession builds an UnregisterSession packet. No reply is
// expected; the peer just closes the connection.
func BuildUnregisterSession(sessionHandle uint32, senderContext [8]byte) []byte {
	return Encode(Header{
		Command:       CommandUnregisterSession,
		SessionHandle: sessionHandle,
		SenderContext: senderContext,
	}, nil)
}

// BuildListIdentity builds a ListIdentity packet. The session handle is
// always zero: ListIdentity is sessionless by definition.
func BuildListIdentity(senderContext [8]byte) []byte {
	return Encode(Header{
		Command:       CommandListIdentity,
		SenderContext: senderContext,
	}, nil)
}

// BuildSendRRData wraps a CIP payload in interface handle + timeout + CPF
// (Null Address item, Unconnected Data item) under a SendRRData header.
func BuildSendRRData(sessionHandle uint32, senderContext [8]byte, cipData []byte) []byte {
	var data []byte
	data = binary.LittleEndian.AppendUint32(data, 0) // interface handle, 0 = CIP
	data = binary.LittleEndian.AppendUint16(data, 0) // timeout, 0 = rely on CIP timeouts
	data = append(data, EncodeCPF(
		CPFItem{TypeID: ItemNullAddress},
		CPFItem{TypeID: ItemUnconnectedData, Data: cipData},
	)...)

	return Encode(Header{
		Command:       CommandSendRRData,
		SessionHandle: sessionHandle,
		SenderContext: senderContext,
	}, data)
}

// UnwrapSendRRData extracts the CIP payload from a SendRRData reply body
// (the bytes after the encapsulation header).
func UnwrapSendRRData(payload []byte) ([]byte, error) {
	if len(payload) < 6 {
		return nil, fmt.Errorf("SendRRData reply too short: %d bytes (minimum 6)", len(payload))
	}

	// Skip interface handle (4) and timeout (2).
	items, err := DecodeCPF(payload[6:])
	if err != nil {
		return nil, fmt.Errorf("SendRRData reply CPF: %w", err)
	}

	item := FindCPFItem(items, ItemUnconnectedData)
	if item == nil {
		return nil, fmt.Errorf("SendRRData reply missing Unconnected Data item")
	}
	return item.Data, nil
}
