package frames

import (
	"github.com/goodieshq/goprov/internal/protocol"
)

// RPCCommand is a decoded RPC frame payload. Data holds the length-prefixed
// segments in wire order for segmented commands (WifiSettings, Custom) and
// is empty for single-value commands.
type RPCCommand struct {
	Command protocol.Command
	Data    [][]byte
}

// ParseRPC decodes an RPC payload: [command][length][payload...][checksum?].
// The length byte counts only the payload; verifyChecksum selects whether
// the final byte is an 8-bit sum checksum to validate. Malformed input is
// reported as an error, never as a panic or out-of-bounds read.
func ParseRPC(data []byte, verifyChecksum bool) (*RPCCommand, error) {
	checksumOffset := 0
	if verifyChecksum {
		checksumOffset = 1
	}

	if len(data) < 2+checksumOffset {
		return nil, protocol.ErrShortFrame
	}

	cmd := protocol.Command(data[0])
	if int(data[1]) != len(data)-2-checksumOffset {
		return nil, protocol.ErrLengthMismatch
	}

	// Length is validated before the checksum, matching the wire spec's
	// precedence of failure modes.
	if verifyChecksum {
		if protocol.Checksum(data[:len(data)-1]) != data[len(data)-1] {
			return nil, protocol.ErrBadChecksum
		}
	}

	if cmd == protocol.CmdWifiSettings || cmd == protocol.CmdCustom {
		segments, err := parseSegments(data[2 : len(data)-checksumOffset])
		if err != nil {
			return nil, err
		}
		return &RPCCommand{Command: cmd, Data: segments}, nil
	}

	// Single-value commands carry no segments; any payload bytes are the
	// concern of the RPC handler, not this layer.
	return &RPCCommand{Command: cmd}, nil
}

// ParseRPCResult decodes a device RPC result payload: the same inner layout
// as an RPC command, but the payload is always a list of string fields.
func ParseRPCResult(payload []byte) (protocol.Command, []string, error) {
	if len(payload) < 2 {
		return 0, nil, protocol.ErrShortFrame
	}

	cmd := protocol.Command(payload[0])
	if int(payload[1]) != len(payload)-2 {
		return 0, nil, protocol.ErrLengthMismatch
	}

	segments, err := parseSegments(payload[2:])
	if err != nil {
		return 0, nil, err
	}

	fields := make([]string, len(segments))
	for i, seg := range segments {
		fields[i] = string(seg)
	}
	return cmd, fields, nil
}

// parseSegments walks [len:1][bytes:len] segments packed contiguously
// through the payload. Bounds are rechecked before every read and each
// segment is copied out, so the result does not alias the source buffer.
func parseSegments(payload []byte) ([][]byte, error) {
	var segments [][]byte

	pos := 0
	for pos < len(payload) {
		segLen := int(payload[pos])
		pos++

		if segLen > len(payload)-pos {
			return nil, protocol.ErrTruncatedSegment
		}

		seg := make([]byte, segLen)
		copy(seg, payload[pos:pos+segLen])
		segments = append(segments, seg)
		pos += segLen
	}

	return segments, nil
}
