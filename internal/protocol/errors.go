package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrShortFrame       = errors.New("frame too short")
	ErrLengthMismatch   = errors.New("declared length does not match frame size")
	ErrBadChecksum      = errors.New("checksum mismatch")
	ErrTruncatedSegment = errors.New("segment length exceeds remaining payload")
	ErrFieldTooLong     = errors.New("field exceeds 255 bytes")
	ErrPayloadTooLong   = errors.New("payload exceeds 255 bytes")
)

// RPCError is an error reported by the device in an ErrorState frame.
type RPCError struct {
	Code ErrorCode
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("device error: %s (0x%02X)", ErrorCodeToString(e.Code), uint8(e.Code))
}

// IsRPCError returns the device error code if err is an RPCError.
func IsRPCError(err error) (ErrorCode, bool) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code, true
	}
	return ErrorNone, false
}
