package log

import (
	"time"
)

// Event represents a stack event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the transport instance (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates data flow relative to the host.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Port is the serial port name or remote address of the channel.
	Port string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Line        *LineEvent        `cbor:"7,keyasint,omitempty"`  // Transport layer
	Exchange    *ExchangeEvent    `cbor:"8,keyasint,omitempty"`  // Protocol layer
	Operation   *OperationEvent   `cbor:"9,keyasint,omitempty"`  // Access layer
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"` // Channel state
	Error       *ErrorEventData   `cbor:"11,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionIn indicates data received from the device.
	DirectionIn Direction = 0
	// DirectionOut indicates data sent to the device.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer of the stack captured the event.
type Layer uint8

const (
	// LayerTransport is the line-oriented byte channel (raw lines).
	LayerTransport Layer = 0
	// LayerProtocol is the command/reply codec.
	LayerProtocol Layer = 1
	// LayerAccess is the register operation layer.
	LayerAccess Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerProtocol:
		return "PROTOCOL"
	case LayerAccess:
		return "ACCESS"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryLine indicates a raw line written or read.
	CategoryLine Category = 0
	// CategoryExchange indicates a command/reply exchange.
	CategoryExchange Category = 1
	// CategoryOperation indicates a register operation.
	CategoryOperation Category = 2
	// CategoryState indicates a channel state change.
	CategoryState Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryLine:
		return "LINE"
	case CategoryExchange:
		return "EXCHANGE"
	case CategoryOperation:
		return "OPERATION"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MaxLogLineSize is the maximum line length included in log events.
// Longer lines are truncated to bound trace file growth.
const MaxLogLineSize = 4096

// LineEvent captures one raw line at the transport layer.
type LineEvent struct {
	// Text is the line content without the trailing newline
	// (may be truncated for very long lines).
	Text string `cbor:"1,keyasint"`

	// Truncated indicates whether Text was truncated.
	Truncated bool `cbor:"2,keyasint,omitempty"`
}

// ExchangeEvent captures one command/reply exchange at the protocol layer.
type ExchangeEvent struct {
	// Command is the wire command line that was issued.
	Command string `cbor:"1,keyasint"`

	// Outcome is the exchange classification (SUCCESS/ERROR/TIMEOUT).
	Outcome string `cbor:"2,keyasint,omitempty"`

	// ErrorCode is the device-reported errno-style code, if any.
	ErrorCode *int `cbor:"3,keyasint,omitempty"`

	// Attempt is the 1-based attempt number under the retry policy.
	Attempt int `cbor:"4,keyasint,omitempty"`
}

// OperationEvent captures a register operation at the access layer.
type OperationEvent struct {
	// Op names the operation (read/write/read_struct/commit/...).
	Op string `cbor:"1,keyasint"`

	// Register is the register or struct prefix operated on.
	Register string `cbor:"2,keyasint,omitempty"`

	// Offset is the resolved absolute byte offset.
	Offset int `cbor:"3,keyasint,omitempty"`

	// Size is the resolved byte length.
	Size int `cbor:"4,keyasint,omitempty"`

	// Retries is the number of retries consumed by the operation.
	Retries int `cbor:"5,keyasint,omitempty"`
}

// StateChangeEvent captures channel lifecycle events
// (open, reconnect-on-timeout, close).
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the device error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what was being done.
	Context string `cbor:"4,keyasint,omitempty"`
}
