// Package transport provides the two interchangeable drivers that carry
// SoftAP setup commands to the device.
//
// Both drivers implement Transport: they send exactly one command and
// resolve with exactly one outcome, either a decoded response or one of
// ErrTimeout, ErrTransport, ErrInvalidResponse or ErrIncompleteResponse.
//
// # Stream transport
//
// StreamTransport opens a fresh TCP connection for every call and writes the
// stream-framed command (see package wire). The device replies with a single
// JSON object and then closes the connection. Replies may arrive in several
// chunks; the driver accumulates them and attempts a decode after each one.
//
// The first call of a session is preceded by a throwaway device-id command
// with a short timeout that the client closes itself once the reply has been
// parsed. Devices keep the socket of their first reply half-open, so without
// this warm-up the first real command would hang until it timed out.
//
//	CONNECTING → CONNECTED → SENT → (DATA*) → CLOSED
//
// The call timeout starts when the dial begins. Once a reply has been
// parsed the timer is cleared and the same duration bounds the wait for the
// device to close the connection.
//
// # HTTP transport
//
// HTTPTransport issues one request per call (GET without a body, POST with
// one) with keep-alives disabled. The timeout covers the whole
// request/response cycle and the HTTP status code is not interpreted.
//
// # Protocol capture
//
// Both drivers emit pkg/log events: raw bytes at the transport layer,
// commands and responses at the wire layer, and per-connection state changes.
package transport
