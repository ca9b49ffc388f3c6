// Package wire defines the command and response formats of the SoftAP setup protocol.
//
// A command is a name plus an optional JSON body. The same command is carried
// over two transports with different framing:
//
// # Stream framing
//
// Over a raw TCP socket a command is written as three newline-separated
// header lines followed by the body:
//
//	<name>\n<body byte length>\n\n<body JSON>
//
// A command without a body is written as "<name>\n0\n\n". The length is the
// number of bytes of the serialized body, not the number of characters.
//
// # HTTP framing
//
// Over HTTP the command name becomes the request path. Commands without a
// body are sent as GET /<name>; commands with a body as POST /<name> with the
// JSON body as payload and Content-Type application/x-www-form-urlencoded,
// which keeps the request a "simple" cross-origin request (no preflight).
//
// # Responses
//
// The device answers with a single JSON object. The top-level "r" field is the
// result code: 0 means success, anything else is a failure. Not every command
// carries a result code (scan results and device identity do not).
package wire
