package log

import "time"

// Event is one captured protocol occurrence. Exactly one of Frame, Message,
// StateChange or Error is set. Keys are small integers on the wire.
type Event struct {
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID is a UUID per TCP connection or HTTP exchange.
	ConnectionID string `cbor:"2,keyasint"`

	Direction Direction `cbor:"3,keyasint"`
	Layer     Layer     `cbor:"4,keyasint"`
	Category  Category  `cbor:"5,keyasint"`

	// Transport is "tcp" or "http".
	Transport  string `cbor:"6,keyasint,omitempty"`
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// DeviceID is set once the client has learned it from device-id.
	DeviceID string `cbor:"8,keyasint,omitempty"`

	// CallID ties together every event of one Client operation, warm-up
	// included.
	CallID string `cbor:"9,keyasint,omitempty"`

	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

const unknownName = "UNKNOWN"

func enumName(names []string, v uint8) string {
	if int(v) < len(names) {
		return names[v]
	}
	return unknownName
}

// Direction is relative to the client: Out goes to the access point.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
)

var directionNames = []string{"IN", "OUT"}

func (d Direction) String() string { return enumName(directionNames, uint8(d)) }

// Layer is where an event was captured.
type Layer uint8

const (
	// LayerTransport carries raw socket or HTTP bytes.
	LayerTransport Layer = iota
	// LayerWire carries commands and decoded responses.
	LayerWire
	// LayerSession carries client session events such as the warm-up.
	LayerSession
)

var layerNames = []string{"TRANSPORT", "WIRE", "SESSION"}

func (l Layer) String() string { return enumName(layerNames, uint8(l)) }

// Category says which payload an event carries.
type Category uint8

const (
	CategoryMessage Category = iota
	CategoryState
	CategoryError
)

var categoryNames = []string{"MESSAGE", "STATE", "ERROR"}

func (c Category) String() string { return enumName(categoryNames, uint8(c)) }

// MaxFrameData caps the bytes stored per frame.
const MaxFrameData = 4096

// FrameEvent is one write or one received chunk.
type FrameEvent struct {
	// Size is the full length, even when Data was cut.
	Size      int    `cbor:"1,keyasint"`
	Data      []byte `cbor:"2,keyasint,omitempty"`
	Truncated bool   `cbor:"3,keyasint,omitempty"`
}

// NewFrameEvent copies data, keeping at most MaxFrameData bytes.
func NewFrameEvent(data []byte) *FrameEvent {
	kept := data
	if len(kept) > MaxFrameData {
		kept = kept[:MaxFrameData]
	}
	return &FrameEvent{
		Size:      len(data),
		Data:      append([]byte(nil), kept...),
		Truncated: len(kept) < len(data),
	}
}

// MessageEvent is a command as sent or a response as decoded.
type MessageEvent struct {
	Type    MessageType `cbor:"1,keyasint"`
	Command string      `cbor:"2,keyasint"`

	// BodySize is the serialized body length in bytes.
	BodySize int `cbor:"3,keyasint,omitempty"`

	// ResultCode is the response "r" field when the device sent one.
	ResultCode *int `cbor:"4,keyasint,omitempty"`

	// Payload is the JSON body with pwd, key and ek replaced.
	Payload any `cbor:"5,keyasint,omitempty"`

	// Duration is set on responses: time since the command was sent.
	Duration *time.Duration `cbor:"6,keyasint,omitempty"`
}

// MessageType separates commands from responses.
type MessageType uint8

const (
	MessageTypeRequest MessageType = iota
	MessageTypeResponse
)

var messageTypeNames = []string{"REQUEST", "RESPONSE"}

func (m MessageType) String() string { return enumName(messageTypeNames, uint8(m)) }

// StateChangeEvent records a per-call connection transition or a session
// transition.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity names what changed state.
type StateEntity uint8

const (
	StateEntityConnection StateEntity = iota
	StateEntitySession
)

var stateEntityNames = []string{"CONNECTION", "SESSION"}

func (s StateEntity) String() string { return enumName(stateEntityNames, uint8(s)) }

// ErrorEventData describes the failure that ended a call.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Code is the device result code for protocol-level rejections.
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context is the command being executed.
	Context string `cbor:"4,keyasint,omitempty"`

	// Kind classifies the failure, e.g. "timeout" or "transport".
	Kind string `cbor:"5,keyasint,omitempty"`
}
