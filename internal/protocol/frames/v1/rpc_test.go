package frames

import (
	"testing"

	"github.com/goodieshq/goprov/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRPCRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		cmd    protocol.Command
		fields []string
	}{
		{"no fields", protocol.CmdGetCurrentState, nil},
		{"single field", protocol.CmdGetDeviceInfo, []string{"goprov"}},
		{"several fields", protocol.CmdGetDeviceInfo, []string{"goprov", "1.0.0", "ESP32", "kitchen-light"}},
		{"empty field", protocol.CmdGetWifiNetworks, []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := BuildRPCResponse(tt.cmd, tt.fields, true)
			require.NoError(t, err)

			cmd, err := ParseRPC(buf, true)
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, cmd.Command)
			assert.Empty(t, cmd.Data, "single-value commands carry no segments")
		})
	}
}

func TestParseRPCLengthMismatch(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		verify bool
	}{
		{"declared too long", []byte{0x02, 0x05, 0xAA}, false},
		{"declared too short", []byte{0x02, 0x00, 0xAA, 0xBB}, false},
		{"checksum offset ignored by sender", []byte{0x02, 0x02, 0xAA, 0xFF}, true},
		{"minimum size, bad length", []byte{0x02, 0x01}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRPC(tt.data, tt.verify)
			assert.ErrorIs(t, err, protocol.ErrLengthMismatch)
		})
	}
}

func TestParseRPCShortFrame(t *testing.T) {
	for _, data := range [][]byte{nil, {}, {0x01}} {
		_, err := ParseRPC(data, false)
		assert.ErrorIs(t, err, protocol.ErrShortFrame)
	}

	// With a trailing checksum expected, two bytes is still too short.
	_, err := ParseRPC([]byte{0x02, 0x00}, true)
	assert.ErrorIs(t, err, protocol.ErrShortFrame)
}

// Flipping any single bit of a checksummed frame must be detected: a flip in
// the length byte trips the length check, any other flip trips the checksum.
func TestParseRPCChecksumSensitivity(t *testing.T) {
	buf, err := BuildRPCResponse(protocol.CmdGetDeviceInfo, []string{"fw", "1.2.3"}, true)
	require.NoError(t, err)

	_, err = ParseRPC(buf, true)
	require.NoError(t, err)

	for i := range buf {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), buf...)
			mutated[i] ^= 1 << bit

			_, err := ParseRPC(mutated, true)
			if i == 1 {
				assert.ErrorIs(t, err, protocol.ErrLengthMismatch, "byte %d bit %d", i, bit)
			} else {
				assert.ErrorIs(t, err, protocol.ErrBadChecksum, "byte %d bit %d", i, bit)
			}
		}
	}
}

func TestParseRPCSegmentRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		cmd      protocol.Command
		segments []string
	}{
		{"wifi credentials", protocol.CmdWifiSettings, []string{"HomeWiFi", "hunter22"}},
		{"empty password", protocol.CmdWifiSettings, []string{"OpenNet", ""}},
		{"custom single segment", protocol.CmdCustom, []string{"ping"}},
		{"custom many segments", protocol.CmdCustom, []string{"a", "bb", "ccc", "dddd", ""}},
		{"no segments", protocol.CmdWifiSettings, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := BuildRPCResponse(tt.cmd, tt.segments, true)
			require.NoError(t, err)

			cmd, err := ParseRPC(buf, true)
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, cmd.Command)
			require.Len(t, cmd.Data, len(tt.segments))
			for i, want := range tt.segments {
				assert.Equal(t, []byte(want), cmd.Data[i], "segment %d", i)
			}
		})
	}
}

func TestParseRPCTruncatedSegment(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		// [cmd][len][seg_len overruns payload]
		{"segment overruns payload", []byte{0x01, 0x03, 0x05, 0xAA, 0xBB}},
		{"dangling length byte", []byte{0x01, 0x01, 0x01}},
		{"second segment truncated", []byte{0x01, 0x05, 0x02, 0xAA, 0xBB, 0x03, 0xCC}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRPC(tt.data, false)
			assert.ErrorIs(t, err, protocol.ErrTruncatedSegment)
		})
	}
}

// Parsed segments must be owned copies, not views into the input buffer.
func TestParseRPCSegmentsDoNotAliasInput(t *testing.T) {
	buf, err := BuildRPCResponse(protocol.CmdWifiSettings, []string{"net", "pw"}, false)
	require.NoError(t, err)

	cmd, err := ParseRPC(buf, false)
	require.NoError(t, err)

	for i := range buf {
		buf[i] = 0xEE
	}
	assert.Equal(t, []byte("net"), cmd.Data[0])
	assert.Equal(t, []byte("pw"), cmd.Data[1])
}

func TestParseRPCResult(t *testing.T) {
	payload, err := BuildRPCResponse(protocol.CmdGetDeviceInfo, []string{"goprov", "1.0.0"}, false)
	require.NoError(t, err)

	cmd, fields, err := ParseRPCResult(payload)
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdGetDeviceInfo, cmd)
	assert.Equal(t, []string{"goprov", "1.0.0"}, fields)
}

func TestParseRPCResultMalformed(t *testing.T) {
	_, _, err := ParseRPCResult([]byte{0x03})
	assert.ErrorIs(t, err, protocol.ErrShortFrame)

	_, _, err = ParseRPCResult([]byte{0x03, 0x09, 0x01, 0xAA})
	assert.ErrorIs(t, err, protocol.ErrLengthMismatch)

	_, _, err = ParseRPCResult([]byte{0x03, 0x02, 0x05, 0xAA})
	assert.ErrorIs(t, err, protocol.ErrTruncatedSegment)
}
