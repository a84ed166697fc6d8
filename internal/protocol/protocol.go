package protocol

// 6-byte magic preamble at the start of each serial frame
const Magic = "IMPROV"

// MagicSize is the length of the magic preamble in bytes
const MagicSize = 6

// Improv serial protocol version
const Version byte = 0x01

// HeaderSize is magic + version + type + length
const HeaderSize = MagicSize + 3

// FrameType identifies the kind of serial frame
type FrameType uint8

const (
	TypeCurrentState FrameType = 0x01 // Device announces its provisioning state
	TypeErrorState   FrameType = 0x02 // Device reports an error code
	TypeRPC          FrameType = 0x03 // Host-to-device RPC command
	TypeRPCResult    FrameType = 0x04 // Device-to-host RPC result
)

func FrameTypeToString(t FrameType) string {
	switch t {
	case TypeCurrentState:
		return "CURRENT_STATE"
	case TypeErrorState:
		return "ERROR_STATE"
	case TypeRPC:
		return "RPC"
	case TypeRPCResult:
		return "RPC_RESULT"
	default:
		return "UNKNOWN"
	}
}

// Command identifies the kind of RPC frame
type Command uint8

const (
	CmdUnknown         Command = 0x00 // Reserved sentinel for unparseable frames
	CmdWifiSettings    Command = 0x01 // Provision Wi-Fi credentials (ssid + password segments)
	CmdGetCurrentState Command = 0x02 // Query current provisioning state
	CmdGetDeviceInfo   Command = 0x03 // Query device identity strings
	CmdGetWifiNetworks Command = 0x04 // Request a network scan
	CmdCustom          Command = 0x05 // Application-defined RPC (segmented payload)
	CmdBadChecksum     Command = 0xFF // Reserved sentinel for checksum failures
)

func CommandToString(c Command) string {
	switch c {
	case CmdWifiSettings:
		return "WIFI_SETTINGS"
	case CmdGetCurrentState:
		return "GET_CURRENT_STATE"
	case CmdGetDeviceInfo:
		return "GET_DEVICE_INFO"
	case CmdGetWifiNetworks:
		return "GET_WIFI_NETWORKS"
	case CmdCustom:
		return "CUSTOM"
	case CmdBadChecksum:
		return "BAD_CHECKSUM"
	default:
		return "UNKNOWN"
	}
}

// State is the device provisioning state carried in CurrentState frames
type State uint8

const (
	StateStopped               State = 0x00
	StateAwaitingAuthorization State = 0x01
	StateAuthorized            State = 0x02
	StateProvisioning          State = 0x03
	StateProvisioned           State = 0x04
)

func StateToString(s State) string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateAwaitingAuthorization:
		return "AWAITING_AUTHORIZATION"
	case StateAuthorized:
		return "AUTHORIZED"
	case StateProvisioning:
		return "PROVISIONING"
	case StateProvisioned:
		return "PROVISIONED"
	default:
		return "UNKNOWN"
	}
}

// ErrorCode is the device error carried in ErrorState frames
type ErrorCode uint8

const (
	ErrorNone            ErrorCode = 0x00
	ErrorInvalidRPC      ErrorCode = 0x01
	ErrorUnknownRPC      ErrorCode = 0x02
	ErrorUnableToConnect ErrorCode = 0x03
	ErrorNotAuthorized   ErrorCode = 0x04
	ErrorUnknown         ErrorCode = 0xFF
)

func ErrorCodeToString(e ErrorCode) string {
	switch e {
	case ErrorNone:
		return "NONE"
	case ErrorInvalidRPC:
		return "INVALID_RPC"
	case ErrorUnknownRPC:
		return "UNKNOWN_RPC"
	case ErrorUnableToConnect:
		return "UNABLE_TO_CONNECT"
	case ErrorNotAuthorized:
		return "NOT_AUTHORIZED"
	default:
		return "UNKNOWN"
	}
}
