// Package log captures what a SoftAP client exchanges with an access point.
//
// Capture is separate from operational logging. The client's slog logger
// says what the program is doing; a capture records every frame, command,
// decoded response, state transition and failure so a setup session can be
// replayed after the fact.
//
// A capture sink is any Logger. softap.Config.ProtocolLogger accepts:
//
//	log.NewFileLogger("setup.aplog")           // binary capture file
//	log.NewSlogAdapter(logger)                 // debug lines on a slog.Logger
//	log.NewMultiLogger(fileLogger, slogAdapter) // both
//
// Events carry a Layer. Raw socket and HTTP bytes are LayerTransport frames,
// commands and responses are LayerWire messages, and per-call connection and
// warm-up transitions are LayerSession state changes.
//
// Capture files are a plain CBOR sequence of Event values with integer keys
// and the FileExtension suffix. Reader streams them back, optionally through
// a Filter; cmd/softap-log builds its view, filter, export and stats
// subcommands on it.
package log
