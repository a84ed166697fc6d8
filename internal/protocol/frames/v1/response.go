package frames

import (
	"github.com/goodieshq/goprov/internal/protocol"
)

// BuildRPCResponse encodes a command and an ordered list of string fields
// into an RPC response payload:
//
//	[command:1][payload_len:1][field0_len:1][field0]...[checksum:1 if requested]
//
// payload_len counts the bytes between the header and the checksum. The
// buffer is sized exactly up front; a field longer than 255 bytes cannot be
// represented by the single length byte and yields ErrFieldTooLong.
func BuildRPCResponse(cmd protocol.Command, fields []string, addChecksum bool) ([]byte, error) {
	size := 2
	if addChecksum {
		size++
	}
	for _, f := range fields {
		if len(f) > 0xFF {
			return nil, protocol.ErrFieldTooLong
		}
		size += 1 + len(f)
	}

	payloadLen := size - 2
	if addChecksum {
		payloadLen--
	}
	if payloadLen > 0xFF {
		return nil, protocol.ErrPayloadTooLong
	}

	out := make([]byte, 0, size)
	out = append(out, byte(cmd), byte(payloadLen))
	for _, f := range fields {
		out = append(out, byte(len(f)))
		out = append(out, f...)
	}

	if addChecksum {
		out = append(out, protocol.Checksum(out))
	}
	return out, nil
}
