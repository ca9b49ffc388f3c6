package log

import (
	"context"
	"log/slog"
)

// SlogAdapter prints protocol events as debug records, for watching a
// provisioning session on the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log emits event at debug level with one attribute per populated field.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	attrs = appendNonEmpty(attrs, "transport", event.Transport)
	attrs = appendNonEmpty(attrs, "call_id", event.CallID)
	attrs = appendNonEmpty(attrs, "device_id", event.DeviceID)

	switch {
	case event.Frame != nil:
		attrs = append(attrs, frameAttrs(event.Frame)...)
	case event.Message != nil:
		attrs = append(attrs, messageAttrs(event.Message)...)
	case event.StateChange != nil:
		attrs = append(attrs, stateAttrs(event.StateChange)...)
	case event.Error != nil:
		attrs = append(attrs, errorAttrs(event.Error)...)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

func appendNonEmpty(attrs []slog.Attr, key, value string) []slog.Attr {
	if value == "" {
		return attrs
	}
	return append(attrs, slog.String(key, value))
}

func frameAttrs(f *FrameEvent) []slog.Attr {
	return []slog.Attr{slog.Int("frame_size", f.Size), slog.Bool("truncated", f.Truncated)}
}

func messageAttrs(m *MessageEvent) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("msg_type", m.Type.String()),
		slog.String("command", m.Command),
		slog.Int("body_size", m.BodySize),
	}
	if m.ResultCode != nil {
		attrs = append(attrs, slog.Int("result_code", *m.ResultCode))
	}
	if m.Duration != nil {
		attrs = append(attrs, slog.Duration("duration", *m.Duration))
	}
	return attrs
}

func stateAttrs(s *StateChangeEvent) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("entity", s.Entity.String()),
		slog.String("old_state", s.OldState),
		slog.String("new_state", s.NewState),
	}
	return appendNonEmpty(attrs, "reason", s.Reason)
}

func errorAttrs(e *ErrorEventData) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("error_layer", e.Layer.String()),
		slog.String("error_msg", e.Message),
	}
	attrs = appendNonEmpty(attrs, "error_context", e.Context)
	attrs = appendNonEmpty(attrs, "error_kind", e.Kind)
	if e.Code != nil {
		attrs = append(attrs, slog.Int("error_code", *e.Code))
	}
	return attrs
}

var _ Logger = (*SlogAdapter)(nil)
