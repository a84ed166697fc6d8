package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/goodieshq/goprov/internal/protocol"
	frames "github.com/goodieshq/goprov/internal/protocol/frames/v1"
	"github.com/goodieshq/goprov/internal/utils"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Info holds the identity strings returned for GetDeviceInfo, in wire order.
type Info struct {
	Firmware string
	Version  string
	Hardware string
	Name     string
}

// Network is one scan result reported for GetWifiNetworks.
type Network struct {
	SSID    string
	RSSI    int
	Secured bool
}

// Provisioner applies Wi-Fi credentials to the device. On success it returns
// the redirect URL to report to the host (may be empty).
type Provisioner func(ctx context.Context, ssid, password string) (redirectURL string, err error)

// Scanner lists the networks currently visible to the device.
type Scanner func(ctx context.Context) ([]Network, error)

// CustomHandler serves application-defined RPCs. It receives the raw data
// segments and returns the string fields for the result frame.
type CustomHandler func(ctx context.Context, data [][]byte) ([]string, error)

type AgentOpts struct {
	Info                 Info
	Provision            Provisioner
	Scan                 Scanner
	OnCustom             CustomHandler
	RequireAuthorization bool
}

// Agent is the device side of the Improv serial protocol: it owns one
// transport stream, recovers RPC frames from it, and answers them. One Agent
// serves one session.
type Agent struct {
	info        Info
	provision   Provisioner
	scan        Scanner
	onCustom    CustomHandler
	requireAuth bool

	mu          sync.Mutex
	state       protocol.State
	redirectURL string
	w           *bufio.Writer
}

func New(opts AgentOpts) *Agent {
	return &Agent{
		info:        opts.Info,                 // identity strings for GetDeviceInfo
		provision:   opts.Provision,            // credential callback
		scan:        opts.Scan,                 // network scan callback
		onCustom:    opts.OnCustom,             // application RPC hook
		requireAuth: opts.RequireAuthorization, // start in AwaitingAuthorization
		state:       protocol.StateStopped,
	}
}

// State returns the current provisioning state.
func (a *Agent) State() protocol.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Authorize flips the agent from AwaitingAuthorization to Authorized and
// announces the new state. Safe to call from another goroutine (e.g. a
// button-press handler); a no-op in any other state.
func (a *Agent) Authorize() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != protocol.StateAwaitingAuthorization {
		return nil
	}
	a.state = protocol.StateAuthorized
	return a.announceStateLocked()
}

// Run serves one session over rw until the stream ends or ctx is cancelled
// between bytes. The caller owns the transport and closes it to stop a
// blocked read.
func (a *Agent) Run(ctx context.Context, rw io.ReadWriter) error {
	r := bufio.NewReader(rw)

	a.mu.Lock()
	a.w = bufio.NewWriter(rw)
	if a.requireAuth {
		a.state = protocol.StateAwaitingAuthorization
	} else {
		a.state = protocol.StateAuthorized
	}
	err := a.announceStateLocked()
	a.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to announce initial state: %w", err)
	}

	session, err := utils.NewULID()
	if err != nil {
		return fmt.Errorf("failed to generate session ID: %w", err)
	}
	logger := log.With().Str("session_id", session.String()).Logger()
	logger.Debug().Str("state", protocol.StateToString(a.State())).Msg("Session started")

	var dec frames.SyncDecoder
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Debug().Msg("Stream closed")
				return nil
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}

		status, frame := dec.Feed(b)
		switch status {
		case frames.FeedMore:
		case frames.FeedDesync:
			logger.Debug().Msg("Stream desynchronized, waiting for preamble")
		case frames.FeedChecksumError:
			logger.Warn().Msg("Frame checksum mismatch")
			if err := a.sendError(protocol.ErrorInvalidRPC); err != nil {
				return err
			}
		case frames.FeedSkipped:
			logger.Debug().
				Str("type", protocol.FrameTypeToString(frame.Type)).
				Msg("Ignoring non-RPC frame")
		case frames.FeedFrame:
			if err := a.handleRPC(ctx, &logger, frame.RPC); err != nil {
				return err
			}
		}
	}
}

func (a *Agent) handleRPC(ctx context.Context, logger *zerolog.Logger, cmd *frames.RPCCommand) error {
	logger.Debug().Str("command", protocol.CommandToString(cmd.Command)).Msg("RPC received")

	switch cmd.Command {
	case protocol.CmdGetCurrentState:
		return a.handleGetCurrentState()
	case protocol.CmdGetDeviceInfo:
		return a.sendResult(protocol.CmdGetDeviceInfo,
			[]string{a.info.Firmware, a.info.Version, a.info.Hardware, a.info.Name})
	case protocol.CmdGetWifiNetworks:
		return a.handleGetWifiNetworks(ctx, logger)
	case protocol.CmdWifiSettings:
		return a.handleWifiSettings(ctx, logger, cmd.Data)
	case protocol.CmdCustom:
		return a.handleCustom(ctx, logger, cmd.Data)
	case protocol.CmdUnknown:
		// Inner payload did not parse.
		return a.sendError(protocol.ErrorInvalidRPC)
	default:
		logger.Warn().Uint8("command", uint8(cmd.Command)).Msg("Unrecognized RPC command")
		return a.sendError(protocol.ErrorUnknownRPC)
	}
}

func (a *Agent) handleGetCurrentState() error {
	a.mu.Lock()
	state := a.state
	url := a.redirectURL
	err := a.announceStateLocked()
	a.mu.Unlock()
	if err != nil {
		return err
	}

	// A provisioned device also reports where the host should be redirected.
	if state == protocol.StateProvisioned && url != "" {
		return a.sendResult(protocol.CmdGetCurrentState, []string{url})
	}
	return nil
}

func (a *Agent) handleGetWifiNetworks(ctx context.Context, logger *zerolog.Logger) error {
	var networks []Network
	if a.scan != nil {
		var err error
		networks, err = a.scan(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Network scan failed")
			return a.sendError(protocol.ErrorUnknown)
		}
	}

	for _, n := range networks {
		secured := "NO"
		if n.Secured {
			secured = "YES"
		}
		fields := []string{n.SSID, strconv.Itoa(n.RSSI), secured}
		if err := a.sendResult(protocol.CmdGetWifiNetworks, fields); err != nil {
			return err
		}
	}

	// An empty result terminates the list.
	return a.sendResult(protocol.CmdGetWifiNetworks, nil)
}

func (a *Agent) handleWifiSettings(ctx context.Context, logger *zerolog.Logger, data [][]byte) error {
	if len(data) < 2 {
		logger.Warn().Int("segments", len(data)).Msg("WifiSettings requires ssid and password segments")
		return a.sendError(protocol.ErrorInvalidRPC)
	}

	if a.State() == protocol.StateAwaitingAuthorization {
		logger.Warn().Msg("Provisioning rejected: not authorized")
		return a.sendError(protocol.ErrorNotAuthorized)
	}

	if a.provision == nil {
		return a.sendError(protocol.ErrorUnknown)
	}

	ssid := string(data[0])
	if err := a.setStateAndAnnounce(protocol.StateProvisioning); err != nil {
		return err
	}
	logger.Info().Str("ssid", ssid).Msg("Provisioning started")

	url, err := a.provision(ctx, ssid, string(data[1]))
	if err != nil {
		logger.Warn().Err(err).Str("ssid", ssid).Msg("Provisioning failed")
		if err := a.setStateAndAnnounce(protocol.StateAuthorized); err != nil {
			return err
		}
		return a.sendError(protocol.ErrorUnableToConnect)
	}

	a.mu.Lock()
	a.redirectURL = url
	a.mu.Unlock()

	if err := a.setStateAndAnnounce(protocol.StateProvisioned); err != nil {
		return err
	}
	logger.Info().Str("ssid", ssid).Str("redirect_url", url).Msg("Provisioning complete")

	var fields []string
	if url != "" {
		fields = []string{url}
	}
	return a.sendResult(protocol.CmdWifiSettings, fields)
}

func (a *Agent) handleCustom(ctx context.Context, logger *zerolog.Logger, data [][]byte) error {
	if a.onCustom == nil {
		return a.sendError(protocol.ErrorUnknownRPC)
	}

	fields, err := a.onCustom(ctx, data)
	if err != nil {
		logger.Error().Err(err).Msg("Custom RPC handler failed")
		return a.sendError(protocol.ErrorUnknown)
	}
	return a.sendResult(protocol.CmdCustom, fields)
}

func (a *Agent) setStateAndAnnounce(s protocol.State) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = s
	return a.announceStateLocked()
}

// announceStateLocked sends a CurrentState frame. Caller holds a.mu.
func (a *Agent) announceStateLocked() error {
	return a.writeFrameLocked(protocol.TypeCurrentState, []byte{byte(a.state)})
}

func (a *Agent) sendError(code protocol.ErrorCode) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writeFrameLocked(protocol.TypeErrorState, []byte{byte(code)})
}

func (a *Agent) sendResult(cmd protocol.Command, fields []string) error {
	payload, err := frames.BuildRPCResponse(cmd, fields, false)
	if err != nil {
		return fmt.Errorf("failed to build RPC result: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writeFrameLocked(protocol.TypeRPCResult, payload)
}

func (a *Agent) writeFrameLocked(t protocol.FrameType, payload []byte) error {
	if a.w == nil {
		return errors.New("agent is not running")
	}

	buf, err := frames.EncodeFrame(t, payload)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	if _, err := a.w.Write(buf); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	return a.w.Flush()
}
