package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

var sessionStart = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

// provisioningCapture is a short session: a stream scan-ap call with its
// frames, then an HTTP set call rejected by the device.
func provisioningCapture() []Event {
	rejected := -1
	at := func(ms int) time.Time { return sessionStart.Add(time.Duration(ms) * time.Millisecond) }
	return []Event{
		{Timestamp: at(0), ConnectionID: "tcp-1", CallID: "scan", Transport: "tcp", Category: CategoryState,
			StateChange: &StateChangeEvent{NewState: "CONNECTING"}},
		{Timestamp: at(5), ConnectionID: "tcp-1", CallID: "scan", Transport: "tcp", Direction: DirectionOut,
			Frame: NewFrameEvent([]byte("scan-ap\n0\n\n"))},
		{Timestamp: at(6), ConnectionID: "tcp-1", CallID: "scan", Transport: "tcp", Direction: DirectionOut,
			Layer: LayerWire, Message: &MessageEvent{Command: "scan-ap"}},
		{Timestamp: at(90), ConnectionID: "tcp-1", CallID: "scan", Transport: "tcp", Direction: DirectionIn,
			Layer: LayerWire, DeviceID: "0a1b", Message: &MessageEvent{Type: MessageTypeResponse, Command: "scan-ap"}},
		{Timestamp: at(2000), ConnectionID: "http-1", CallID: "set", Transport: "http", Direction: DirectionOut,
			Layer: LayerWire, DeviceID: "0a1b", Message: &MessageEvent{Command: "set"}},
		{Timestamp: at(2100), ConnectionID: "http-1", CallID: "set", Transport: "http", Direction: DirectionIn,
			Layer: LayerWire, DeviceID: "0a1b", Category: CategoryError,
			Error: &ErrorEventData{Layer: LayerWire, Code: &rejected, Context: "set", Kind: "result_code"}},
	}
}

func writeCapture(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session"+FileExtension)
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func callIDs(t *testing.T, path string, filter Filter) []string {
	t.Helper()
	r, err := NewFilteredReader(path, filter)
	if err != nil {
		t.Fatalf("NewFilteredReader: %v", err)
	}
	defer r.Close()

	var ids []string
	for {
		e, err := r.Next()
		if err == io.EOF {
			return ids
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		ids = append(ids, e.CallID+"@"+e.Timestamp.Sub(sessionStart).String())
	}
}

func TestReaderFilters(t *testing.T) {
	path := writeCapture(t, provisioningCapture())

	wire := LayerWire
	out := DirectionOut
	errs := CategoryError
	from := sessionStart.Add(5 * time.Millisecond)
	until := sessionStart.Add(2 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"none", Filter{}, []string{"scan@0s", "scan@5ms", "scan@6ms", "scan@90ms", "set@2s", "set@2.1s"}},
		{"connection", Filter{ConnectionID: "http-1"}, []string{"set@2s", "set@2.1s"}},
		{"call and direction", Filter{CallID: "scan", Direction: &out}, []string{"scan@5ms", "scan@6ms"}},
		{"device", Filter{DeviceID: "0a1b"}, []string{"scan@90ms", "set@2s", "set@2.1s"}},
		{"transport and layer", Filter{Transport: "tcp", Layer: &wire}, []string{"scan@6ms", "scan@90ms"}},
		{"command skips non-message events", Filter{Command: "set"}, []string{"set@2s"}},
		{"category", Filter{Category: &errs}, []string{"set@2.1s"}},
		{"start inclusive end exclusive", Filter{TimeStart: &from, TimeEnd: &until}, []string{"scan@5ms", "scan@6ms", "scan@90ms"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := callIDs(t, path, tt.filter)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestReaderEmptyAndMissingFiles(t *testing.T) {
	path := writeCapture(t, nil)
	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next on empty capture = %v, want io.EOF", err)
	}

	if _, err := NewReader(filepath.Join(t.TempDir(), "missing"+FileExtension)); err == nil {
		t.Error("expected error for a missing capture file")
	}
}
