package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Command names understood by the device.
const (
	CmdDeviceID    = "device-id"
	CmdScanAP      = "scan-ap"
	CmdConnectAP   = "connect-ap"
	CmdPublicKey   = "public-key"
	CmdSet         = "set"
	CmdConfigureAP = "configure-ap"
	CmdVersion     = "version"
)

// ClaimCodeKey is the set key holding the device claim code.
const ClaimCodeKey = "cc"

// Command is a named protocol command with an optional JSON body.
//
// The body is serialized once when the command is built; a Command is
// immutable afterwards and can be handed to a transport without copying.
type Command struct {
	name string
	body []byte
}

// NewCommand builds a command. A nil body (or one that serializes to JSON
// null) produces a body-less command.
func NewCommand(name string, body any) (Command, error) {
	if name == "" {
		return Command{}, ErrNoName
	}
	if strings.ContainsAny(name, "\n/ ") {
		return Command{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if body == nil {
		return Command{name: name}, nil
	}

	data, err := marshalBody(body)
	if err != nil {
		return Command{}, fmt.Errorf("failed to encode %s body: %w", name, err)
	}
	if string(data) == "null" {
		return Command{name: name}, nil
	}
	return Command{name: name, body: data}, nil
}

// MustCommand is like NewCommand but panics on error. It is intended for
// body-less commands with constant names.
func MustCommand(name string, body any) Command {
	cmd, err := NewCommand(name, body)
	if err != nil {
		panic(err)
	}
	return cmd
}

// marshalBody serializes a body without HTML escaping, so PEM blocks and
// SSIDs containing '<', '>' or '&' are sent byte-for-byte.
func marshalBody(body any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Name returns the command name.
func (c Command) Name() string {
	return c.name
}

// HasBody reports whether the command carries a body.
func (c Command) HasBody() bool {
	return len(c.body) > 0
}

// Body returns a copy of the serialized JSON body, or nil.
func (c Command) Body() []byte {
	if len(c.body) == 0 {
		return nil
	}
	return bytes.Clone(c.body)
}

// BodyLen returns the byte length of the serialized body.
func (c Command) BodyLen() int {
	return len(c.body)
}

// String returns the command name.
func (c Command) String() string {
	return c.name
}
