package frames

import (
	"github.com/goodieshq/goprov/internal/protocol"
)

// Frame is one complete serial frame recovered from the byte stream.
type Frame struct {
	Type    protocol.FrameType
	Payload []byte      // owned copy of the payload bytes
	RPC     *RPCCommand // set when Type is TypeRPC
}

// EncodeFrame builds an outbound serial frame around payload:
//
//	"IMPROV" + version + type + length + payload + checksum
//
// The trailing checksum is the 8-bit sum of every preceding byte.
func EncodeFrame(t protocol.FrameType, payload []byte) ([]byte, error) {
	if len(payload) > 0xFF {
		return nil, protocol.ErrPayloadTooLong
	}

	buf := make([]byte, 0, protocol.HeaderSize+len(payload)+1)
	buf = append(buf, protocol.Magic...)
	buf = append(buf, protocol.Version, byte(t), byte(len(payload)))
	buf = append(buf, payload...)
	buf = append(buf, protocol.Checksum(buf))
	return buf, nil
}
