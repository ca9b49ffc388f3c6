package transport

import (
	"context"
	"errors"
	"net"
	"os"

	"github.com/softap-protocol/softap-go/pkg/wire"
)

// Kind identifies a transport driver.
type Kind string

const (
	// KindStream is the raw TCP stream transport.
	KindStream Kind = "tcp"

	// KindHTTP is the HTTP transport.
	KindHTTP Kind = "http"
)

// String returns the kind name.
func (k Kind) String() string {
	return string(k)
}

// Transport sends a command to the device and returns its response.
// Implemented by StreamTransport and HTTPTransport.
type Transport interface {
	// Send executes cmd and blocks until exactly one outcome is known.
	Send(ctx context.Context, cmd wire.Command) (*wire.Response, error)

	// Kind returns the transport kind.
	Kind() Kind
}

// maxResponseSize bounds a device reply on either transport.
const maxResponseSize = 1 << 20

// Transport errors.
var (
	// ErrTimeout indicates the call did not complete within its timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrTransport indicates a connection-level failure (refused, reset, DNS).
	ErrTransport = errors.New("transport failure")

	// ErrInvalidResponse indicates the device replied with malformed JSON
	// or with more than maxResponseSize bytes.
	ErrInvalidResponse = errors.New("invalid JSON received from device")

	// ErrIncompleteResponse indicates the device closed the connection
	// before a complete response was received.
	ErrIncompleteResponse = errors.New("connection closed before a complete response")
)

// Result is the terminal outcome of a call.
type Result struct {
	Response *wire.Response
	Err      error
}

// isTimeout reports whether err is a network or deadline timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// errorKind classifies err for protocol capture.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, ErrIncompleteResponse):
		return "incomplete_response"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "other"
	}
}
