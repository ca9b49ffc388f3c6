package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

// logOne runs event through a SlogAdapter backed by a JSON handler and
// returns the decoded record.
func logOne(t *testing.T, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	adapter.Log(event)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output %q is not a JSON record: %v", buf.String(), err)
	}
	return record
}

func TestSlogAdapterFields(t *testing.T) {
	code := -2
	rtt := 40 * time.Millisecond

	tests := []struct {
		name  string
		event Event
		want  map[string]any
	}{
		{
			name: "frame",
			event: Event{ConnectionID: "c1", Direction: DirectionOut, Layer: LayerTransport,
				Transport: "tcp", Frame: NewFrameEvent([]byte("version\n0\n\n"))},
			want: map[string]any{"conn_id": "c1", "direction": "OUT", "layer": "TRANSPORT",
				"transport": "tcp", "frame_size": float64(11), "truncated": false},
		},
		{
			name: "response",
			event: Event{ConnectionID: "c2", CallID: "call-9", DeviceID: "0a1b", Layer: LayerWire,
				Message: &MessageEvent{Type: MessageTypeResponse, Command: "set", BodySize: 8,
					ResultCode: &code, Duration: &rtt}},
			want: map[string]any{"call_id": "call-9", "device_id": "0a1b", "msg_type": "RESPONSE",
				"command": "set", "body_size": float64(8), "result_code": float64(-2)},
		},
		{
			name: "state",
			event: Event{Category: CategoryState, StateChange: &StateChangeEvent{
				Entity: StateEntitySession, OldState: "COLD", NewState: "WARM", Reason: "warm-up"}},
			want: map[string]any{"category": "STATE", "entity": "SESSION", "old_state": "COLD",
				"new_state": "WARM", "reason": "warm-up"},
		},
		{
			name: "error",
			event: Event{Category: CategoryError, Error: &ErrorEventData{
				Layer: LayerTransport, Message: "i/o timeout", Context: "scan-ap", Kind: "timeout"}},
			want: map[string]any{"category": "ERROR", "error_layer": "TRANSPORT",
				"error_msg": "i/o timeout", "error_context": "scan-ap", "error_kind": "timeout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := logOne(t, tt.event)
			if record["msg"] != "protocol" || record["level"] != "DEBUG" {
				t.Errorf("record header = %v/%v, want protocol/DEBUG", record["msg"], record["level"])
			}
			for k, v := range tt.want {
				if record[k] != v {
					t.Errorf("%s = %v, want %v", k, record[k], v)
				}
			}
		})
	}
}

func TestSlogAdapterOmitsEmptyOptionalFields(t *testing.T) {
	record := logOne(t, Event{ConnectionID: "c3", Frame: &FrameEvent{Size: 1}})

	for _, k := range []string{"transport", "call_id", "device_id", "command"} {
		if _, ok := record[k]; ok {
			t.Errorf("unexpected key %q in %v", k, record)
		}
	}
}

func TestSlogAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	adapter.Log(Event{ConnectionID: "quiet"})

	if buf.Len() != 0 {
		t.Errorf("debug event written at info level: %q", buf.String())
	}
}
