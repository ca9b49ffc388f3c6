package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/softap-protocol/softap-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.aplog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

// sessionEvents is a captured scan-ap call: state, frames and messages.
func sessionEvents() []log.Event {
	ts := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	code := 0
	rejected := -1
	dur := 12 * time.Millisecond
	base := func(offset time.Duration) log.Event {
		return log.Event{
			Timestamp:    ts.Add(offset),
			ConnectionID: "11112222-3333-4444-5555-666677778888",
			CallID:       "aaaabbbb-cccc",
			Transport:    "tcp",
			RemoteAddr:   "192.168.0.1:5609",
			DeviceID:     "0a1b2c",
		}
	}

	e1 := base(0)
	e1.Layer, e1.Category, e1.Direction = log.LayerTransport, log.CategoryState, log.DirectionOut
	e1.StateChange = &log.StateChangeEvent{Entity: log.StateEntityConnection, OldState: "IDLE", NewState: "CONNECTING"}

	e2 := base(time.Millisecond)
	e2.Layer, e2.Category, e2.Direction = log.LayerWire, log.CategoryMessage, log.DirectionOut
	e2.Message = &log.MessageEvent{Type: log.MessageTypeRequest, Command: "scan-ap"}

	e3 := base(2 * time.Millisecond)
	e3.Layer, e3.Category, e3.Direction = log.LayerTransport, log.CategoryMessage, log.DirectionOut
	e3.Frame = log.NewFrameEvent([]byte("scan-ap\n0\n\n"))

	e4 := base(14 * time.Millisecond)
	e4.Layer, e4.Category, e4.Direction = log.LayerWire, log.CategoryMessage, log.DirectionIn
	e4.Message = &log.MessageEvent{
		Type:       log.MessageTypeResponse,
		Command:    "scan-ap",
		BodySize:   14,
		ResultCode: &code,
		Duration:   &dur,
		Payload:    map[string]any{"r": 0, "scans": []any{}},
	}

	e5 := base(20 * time.Millisecond)
	e5.ConnectionID = "99990000-1111"
	e5.Transport = "http"
	e5.Layer, e5.Category, e5.Direction = log.LayerWire, log.CategoryMessage, log.DirectionIn
	e5.Message = &log.MessageEvent{Type: log.MessageTypeResponse, Command: "set", ResultCode: &rejected, Duration: &dur}

	e6 := base(30 * time.Millisecond)
	e6.Layer, e6.Category, e6.Direction = log.LayerTransport, log.CategoryError, log.DirectionIn
	e6.Error = &log.ErrorEventData{Layer: log.LayerTransport, Message: "request timed out", Kind: "timeout"}

	return []log.Event{e1, e2, e3, e4, e5, e6}
}
