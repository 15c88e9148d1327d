package protocol

import (
	"encoding/json"
	"time"
)

// MessageType defines the type of message being sent between client and server
type MessageType string

const (
	// Server -> Client message types
	MessageTypeInitialState      MessageType = "initial_state"
	MessageTypeDeviceChanged     MessageType = "device_changed"
	MessageTypeListenerState     MessageType = "listener_state"
	MessageTypeErrorNotification MessageType = "error_notification"
	MessageTypeCommandResult     MessageType = "command_result"

	// Client -> Server message types
	MessageTypeListDevices    MessageType = "list_devices"
	MessageTypeRefreshDevices MessageType = "refresh_devices"
	MessageTypeSetLevel       MessageType = "set_level"
	MessageTypeGetVersion     MessageType = "get_version"
)

// ErrorCode defines error codes for error messages
type ErrorCode string

// Client Request Related
const (
	ErrorCodeInvalidRequestFormat ErrorCode = "INVALID_REQUEST_FORMAT"
	ErrorCodeInvalidParameters    ErrorCode = "INVALID_PARAMETERS"
	ErrorCodeDeviceNotFound       ErrorCode = "DEVICE_NOT_FOUND"
)

// Gateway/Communication Related
const (
	ErrorCodeGatewayCommunicationError ErrorCode = "GATEWAY_COMMUNICATION_ERROR"
	ErrorCodeGatewayNoReply            ErrorCode = "GATEWAY_NO_REPLY"
	ErrorCodeInternalServerError       ErrorCode = "INTERNAL_SERVER_ERROR"
)

// Message is the base structure for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"requestId,omitempty"`
}

// SensorData is the decoded reading of a device, when its type is known.
// Exactly one group of fields is meaningful depending on Kind.
type SensorData struct {
	Kind        string   `json:"kind"` // "bool", "number" or "temp_humidity"
	On          *bool    `json:"on,omitempty"`
	Value       *float64 `json:"value,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Unit        string   `json:"unit,omitempty"`
}

// Device represents a QwikSwitch device as seen by bridge clients.
// Value carries the raw gateway string; Level and Reading are decoded
// views and are omitted when decoding is not possible.
type Device struct {
	ID      string      `json:"id"`
	Name    string      `json:"name,omitempty"`
	Type    string      `json:"type,omitempty"`
	Value   string      `json:"value,omitempty"`
	Level   *int        `json:"level,omitempty"`
	Reading *SensorData `json:"reading,omitempty"`
	Time    string      `json:"time,omitempty"`
	RSSI    string      `json:"rssi,omitempty"`
}

// Error represents an error in the WebSocket protocol
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// InitialStatePayload is the payload for the initial_state message
type InitialStatePayload struct {
	Devices           map[string]Device `json:"devices"`
	DimAdj            float64           `json:"dimAdj"`
	GatewayURL        string            `json:"gatewayUrl,omitempty"`
	ServerStartupTime time.Time         `json:"serverStartupTime"`
}

// DeviceChangedPayload is the payload for the device_changed message
type DeviceChangedPayload struct {
	Device Device `json:"device"`
}

// ListenerStatePayload is the payload for the listener_state message
type ListenerStatePayload struct {
	State string `json:"state"` // "idle", "running" or "stopping"
}

// ErrorNotificationPayload is the payload for the error_notification message
type ErrorNotificationPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// CommandResultPayload is the payload for the command_result message
type CommandResultPayload struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// ListDevicesPayload is the payload for the list_devices message
type ListDevicesPayload struct {
	// Empty payload
}

// RefreshDevicesPayload is the payload for the refresh_devices message.
// The server re-reads the device list from the gateway before replying.
type RefreshDevicesPayload struct {
	// Empty payload
}

// SetLevelPayload is the payload for the set_level message
type SetLevelPayload struct {
	Target string `json:"target"` // Device ID (e.g. "@0ac2f0")
	Level  int    `json:"level"`  // Requested level in percent (0-100)
}

// GetVersionPayload is the payload for the get_version message
type GetVersionPayload struct {
	// Empty payload
}

// ListDevicesData is the data for the command_result message replying to
// list_devices and refresh_devices requests
type ListDevicesData struct {
	Devices []Device `json:"devices"`
}

// SetLevelData is the data for the command_result message replying to a
// set_level request. Native is the value actually sent to the gateway
// after the dimmer curve was applied.
type SetLevelData struct {
	Target string `json:"target"`
	Level  int    `json:"level"`
	Native int    `json:"native"`
}

// VersionData is the data for the command_result message replying to a
// get_version request
type VersionData struct {
	Version string `json:"version"`
}

// CreateMessage creates a new Message with the given type and payload
func CreateMessage(msgType MessageType, payload interface{}, requestID string) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	msg := Message{
		Type:      msgType,
		Payload:   payloadBytes,
		RequestID: requestID,
	}

	return json.Marshal(msg)
}

// ParseMessage parses a JSON message into a Message struct
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ParsePayload parses the payload of a message into the given struct
func ParsePayload(msg *Message, payload interface{}) error {
	return json.Unmarshal(msg.Payload, payload)
}
