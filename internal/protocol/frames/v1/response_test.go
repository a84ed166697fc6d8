package frames

import (
	"strings"
	"testing"

	"github.com/goodieshq/goprov/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRPCResponseLayout(t *testing.T) {
	buf, err := BuildRPCResponse(protocol.CmdGetDeviceInfo, []string{"ab", "c"}, true)
	require.NoError(t, err)

	// [cmd][payload_len][2]['a']['b'][1]['c'][checksum]
	want := []byte{0x03, 0x05, 0x02, 'a', 'b', 0x01, 'c', 0x00}
	want[7] = protocol.Checksum(want[:7])
	assert.Equal(t, want, buf)
}

func TestBuildRPCResponseNoChecksum(t *testing.T) {
	buf, err := BuildRPCResponse(protocol.CmdGetCurrentState, nil, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x00}, buf)
}

func TestBuildRPCResponseEmptyFields(t *testing.T) {
	buf, err := BuildRPCResponse(protocol.CmdGetWifiNetworks, []string{}, true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x00, 0x04}, buf)

	cmd, fields, err := ParseRPCResult(buf[:2])
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdGetWifiNetworks, cmd)
	assert.Empty(t, fields)
}

func TestBuildRPCResponseFieldTooLong(t *testing.T) {
	_, err := BuildRPCResponse(protocol.CmdGetDeviceInfo, []string{strings.Repeat("x", 256)}, true)
	assert.ErrorIs(t, err, protocol.ErrFieldTooLong)

	// 254 bytes is the largest single field whose length prefix still fits
	// the one-byte payload length.
	buf, err := BuildRPCResponse(protocol.CmdCustom, []string{strings.Repeat("x", 254)}, true)
	require.NoError(t, err)
	assert.Equal(t, byte(255), buf[1])
}

func TestBuildRPCResponsePayloadTooLong(t *testing.T) {
	// Two fields that fit individually but overflow the payload length byte.
	fields := []string{strings.Repeat("a", 200), strings.Repeat("b", 200)}
	_, err := BuildRPCResponse(protocol.CmdCustom, fields, true)
	assert.ErrorIs(t, err, protocol.ErrPayloadTooLong)
}
