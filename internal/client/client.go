package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/goodieshq/goprov/internal/protocol"
	frames "github.com/goodieshq/goprov/internal/protocol/frames/v1"
	"github.com/goodieshq/goprov/internal/utils"
	"github.com/rs/zerolog/log"
)

// DeviceInfo holds the identity strings a device reports for GetDeviceInfo.
type DeviceInfo struct {
	Firmware string
	Version  string
	Hardware string
	Name     string
}

// Network is one scan result reported by the device.
type Network struct {
	SSID    string
	RSSI    int
	Secured bool
}

// Client drives an Improv device over any byte stream (serial port, TCP
// connection, pipe). Calls are synchronous request/response; the client is
// not safe for concurrent use.
type Client struct {
	rw      io.ReadWriter
	r       *bufio.Reader
	timeout time.Duration
	dec     frames.SyncDecoder
}

func New(rw io.ReadWriter, timeout *time.Duration) *Client {
	return &Client{
		rw:      rw,
		r:       bufio.NewReader(rw),
		timeout: utils.DefaultIfNil(timeout, 3*time.Second),
	}
}

// CurrentState queries the device's provisioning state.
func (c *Client) CurrentState(ctx context.Context) (protocol.State, error) {
	if err := c.send(protocol.CmdGetCurrentState, nil); err != nil {
		return protocol.StateStopped, err
	}

	for {
		f, err := c.nextFrame(ctx)
		if err != nil {
			return protocol.StateStopped, err
		}

		switch f.Type {
		case protocol.TypeCurrentState:
			if len(f.Payload) != 1 {
				return protocol.StateStopped, protocol.ErrLengthMismatch
			}
			return protocol.State(f.Payload[0]), nil
		case protocol.TypeErrorState:
			if err := deviceError(f.Payload); err != nil {
				return protocol.StateStopped, err
			}
		}
	}
}

// DeviceInfo queries the device identity strings.
func (c *Client) DeviceInfo(ctx context.Context) (*DeviceInfo, error) {
	fields, err := c.call(ctx, protocol.CmdGetDeviceInfo, nil)
	if err != nil {
		return nil, err
	}
	if len(fields) < 4 {
		return nil, fmt.Errorf("device info: expected 4 fields, got %d", len(fields))
	}

	return &DeviceInfo{
		Firmware: fields[0],
		Version:  fields[1],
		Hardware: fields[2],
		Name:     fields[3],
	}, nil
}

// ScanNetworks asks the device for visible networks. The device streams one
// result per network and terminates the list with an empty result.
func (c *Client) ScanNetworks(ctx context.Context) ([]Network, error) {
	if err := c.send(protocol.CmdGetWifiNetworks, nil); err != nil {
		return nil, err
	}

	var networks []Network
	for {
		fields, err := c.awaitResult(ctx, protocol.CmdGetWifiNetworks)
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			return networks, nil
		}
		if len(fields) < 3 {
			return nil, fmt.Errorf("network result: expected 3 fields, got %d", len(fields))
		}

		rssi, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("network result: bad RSSI %q: %w", fields[1], err)
		}
		networks = append(networks, Network{
			SSID:    fields[0],
			RSSI:    rssi,
			Secured: fields[2] == "YES",
		})
	}
}

// Provision sends Wi-Fi credentials and waits for the device to connect.
// Returns the redirect URL the device reports, which may be empty.
func (c *Client) Provision(ctx context.Context, ssid, password string) (string, error) {
	fields, err := c.call(ctx, protocol.CmdWifiSettings, []string{ssid, password})
	if err != nil {
		return "", err
	}
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], nil
}

// SendCustom issues an application-defined RPC and returns the result fields.
func (c *Client) SendCustom(ctx context.Context, data []string) ([]string, error) {
	return c.call(ctx, protocol.CmdCustom, data)
}

// call sends one RPC and waits for its result.
func (c *Client) call(ctx context.Context, cmd protocol.Command, fields []string) ([]string, error) {
	if err := c.send(cmd, fields); err != nil {
		return nil, err
	}
	return c.awaitResult(ctx, cmd)
}

func (c *Client) send(cmd protocol.Command, fields []string) error {
	payload, err := frames.BuildRPCResponse(cmd, fields, false)
	if err != nil {
		return fmt.Errorf("failed to build RPC payload: %w", err)
	}

	frame, err := frames.EncodeFrame(protocol.TypeRPC, payload)
	if err != nil {
		return fmt.Errorf("failed to encode RPC frame: %w", err)
	}

	if conn, ok := c.rw.(net.Conn); ok {
		conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	if _, err := c.rw.Write(frame); err != nil {
		return fmt.Errorf("failed to send RPC frame: %w", err)
	}

	log.Debug().Str("command", protocol.CommandToString(cmd)).Msg("RPC sent")
	return nil
}

// awaitResult reads frames until an RPC result for cmd arrives. ErrorState
// frames abort the wait; CurrentState frames and results for other commands
// are ignored.
func (c *Client) awaitResult(ctx context.Context, cmd protocol.Command) ([]string, error) {
	for {
		f, err := c.nextFrame(ctx)
		if err != nil {
			return nil, err
		}

		switch f.Type {
		case protocol.TypeRPCResult:
			got, fields, err := frames.ParseRPCResult(f.Payload)
			if err != nil {
				return nil, fmt.Errorf("failed to parse RPC result: %w", err)
			}
			if got == cmd {
				return fields, nil
			}
		case protocol.TypeErrorState:
			if err := deviceError(f.Payload); err != nil {
				return nil, err
			}
		case protocol.TypeCurrentState:
			if len(f.Payload) == 1 {
				log.Debug().
					Str("state", protocol.StateToString(protocol.State(f.Payload[0]))).
					Msg("Device state changed")
			}
		}
	}
}

// nextFrame feeds bytes from the stream into the synchronizer until a
// complete frame arrives.
func (c *Client) nextFrame(ctx context.Context) (*frames.Frame, error) {
	if conn, ok := c.rw.(net.Conn); ok {
		conn.SetReadDeadline(time.Now().Add(c.timeout))
	}

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		b, err := c.r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("failed to read stream: %w", err)
		}

		status, f := c.dec.Feed(b)
		switch status {
		case frames.FeedFrame, frames.FeedSkipped:
			return f, nil
		case frames.FeedChecksumError:
			return nil, protocol.ErrBadChecksum
		case frames.FeedDesync:
			log.Debug().Msg("Stream desynchronized, waiting for preamble")
		}
	}
}

// deviceError maps an ErrorState payload to an RPCError; ErrorNone clears it.
func deviceError(payload []byte) error {
	if len(payload) != 1 {
		return protocol.ErrLengthMismatch
	}
	code := protocol.ErrorCode(payload[0])
	if code == protocol.ErrorNone {
		return nil
	}
	return &protocol.RPCError{Code: code}
}
