package frames

import (
	"github.com/goodieshq/goprov/internal/protocol"
)

// Stream synchronizer state. The decoder walks these in order for every
// frame; any preamble or version mismatch drops it back to syncPreamble.
type syncState uint8

const (
	syncPreamble syncState = iota // magic bytes, stream positions 0-5
	syncVersion                   // version byte, position 6
	syncHeader                    // type + length bytes, positions 7-8
	syncPayload                   // payload bytes, positions 9 .. 8+len
	syncChecksum                  // trailing checksum byte
)

// FeedStatus reports the outcome of feeding one byte to a SyncDecoder.
type FeedStatus uint8

const (
	FeedMore          FeedStatus = iota // byte consumed, frame incomplete
	FeedFrame                           // complete RPC frame, Frame.RPC populated
	FeedSkipped                         // complete non-RPC frame, surfaced raw
	FeedDesync                          // preamble or version mismatch, decoder reset
	FeedChecksumError                   // frame checksum mismatch, decoder reset
)

// SyncDecoder recovers Improv frames from a noisy byte stream, one byte at a
// time. The zero value is ready to use. After FeedDesync the mismatching
// byte is discarded and the next byte is treated as stream position 0; after
// any completed or rejected frame the decoder is ready for the next preamble.
//
// The decoder never mutates caller buffers and holds no reference to them;
// surfaced frames own their payload copies.
type SyncDecoder struct {
	state   syncState
	buf     []byte
	dataLen int
}

// Feed consumes one byte. The returned Frame is non-nil only for FeedFrame
// and FeedSkipped.
func (d *SyncDecoder) Feed(b byte) (FeedStatus, *Frame) {
	switch d.state {
	case syncPreamble:
		if b != protocol.Magic[len(d.buf)] {
			d.reset()
			return FeedDesync, nil
		}
		d.buf = append(d.buf, b)
		if len(d.buf) == protocol.MagicSize {
			d.state = syncVersion
		}
		return FeedMore, nil

	case syncVersion:
		if b != protocol.Version {
			d.reset()
			return FeedDesync, nil
		}
		d.buf = append(d.buf, b)
		d.state = syncHeader
		return FeedMore, nil

	case syncHeader:
		// Type and length bytes are accepted unconditionally.
		d.buf = append(d.buf, b)
		if len(d.buf) == protocol.HeaderSize {
			d.dataLen = int(b)
			if d.dataLen == 0 {
				d.state = syncChecksum
			} else {
				d.state = syncPayload
			}
		}
		return FeedMore, nil

	case syncPayload:
		d.buf = append(d.buf, b)
		if len(d.buf) == protocol.HeaderSize+d.dataLen {
			d.state = syncChecksum
		}
		return FeedMore, nil

	case syncChecksum:
		// Sum of every byte received since position 0, truncated to 8 bits.
		if protocol.Checksum(d.buf) != b {
			d.reset()
			return FeedChecksumError, nil
		}

		frame := &Frame{
			Type:    protocol.FrameType(d.buf[protocol.MagicSize+1]),
			Payload: append([]byte(nil), d.buf[protocol.HeaderSize:]...),
		}
		d.reset()

		if frame.Type != protocol.TypeRPC {
			return FeedSkipped, frame
		}

		// A bare command byte with no inner length is legal on the stream
		// path; the outer checksum already validated it.
		if len(frame.Payload) == 1 {
			frame.RPC = &RPCCommand{Command: protocol.Command(frame.Payload[0])}
			return FeedFrame, frame
		}

		// Inner checksum verification is disabled: the outer frame checksum
		// already covered these bytes. An unparseable inner payload is
		// surfaced as CmdUnknown with no data.
		rpc, err := ParseRPC(frame.Payload, false)
		if err != nil {
			rpc = &RPCCommand{Command: protocol.CmdUnknown}
		}
		frame.RPC = rpc
		return FeedFrame, frame
	}

	d.reset()
	return FeedDesync, nil
}

func (d *SyncDecoder) reset() {
	d.state = syncPreamble
	d.buf = d.buf[:0]
	d.dataLen = 0
}
