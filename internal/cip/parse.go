package cip

import "fmt"

// WriteReply is the parsed outcome of one Set_Attribute_Single exchange.
type WriteReply struct {
	Success      bool
	StatusCode   uint8
	ErrorMessage string
}

// ParseSetAttributeReply parses the CIP payload of an Unconnected Send reply
// carrying an embedded Set_Attribute_Single reply.
//
// The layout is parsed at fixed offsets; a reply whose structure cannot be
// located deterministically is a parse failure, never an assumed success:
//
//	byte 0  reply service, must be 0xD2 (Unconnected Send | 0x80)
//	byte 1  reserved
//	byte 2  general status of the Unconnected Send itself
//	byte 3  additional status size in words
//	then    the embedded reply: byte 0 must be 0x90, byte 2 is the
//	        attribute-level status
func ParseSetAttributeReply(data []byte) (WriteReply, error) {
	if len(data) < 4 {
		return WriteReply{}, fmt.Errorf("reply too short: %d bytes (minimum 4)", len(data))
	}

	if data[0] != replyUnconnectedSend {
		return WriteReply{}, fmt.Errorf("unexpected reply service 0x%02X, want 0x%02X", data[0], replyUnconnectedSend)
	}

	// Non-zero status here means the Unconnected Send itself failed; there is
	// no embedded reply to look at.
	if status := data[2]; status != 0 {
		return WriteReply{
			StatusCode:   status,
			ErrorMessage: StatusText(status),
		}, nil
	}

	embeddedStart := 4 + 2*int(data[3])
	if len(data) < embeddedStart+4 {
		return WriteReply{}, fmt.Errorf("embedded reply truncated: need %d bytes, have %d", embeddedStart+4, len(data))
	}

	embedded := data[embeddedStart:]
	if embedded[0] != replySetAttributeSingle {
		return WriteReply{}, fmt.Errorf("unexpected embedded service 0x%02X, want 0x%02X", embedded[0], replySetAttributeSingle)
	}

	if status := embedded[2]; status != 0 {
		return WriteReply{
			StatusCode:   status,
			ErrorMessage: StatusText(status),
		}, nil
	}

	return WriteReply{Success: true}, nil
}
