// Package commands implements the softap-log CLI commands.
package commands

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/softap-protocol/softap-go/pkg/log"
)

// ViewFilter holds the subset of log.Filter that softap-log view exposes.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	Command   string
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{
		Layer:     f.Layer,
		Direction: f.Direction,
		Category:  f.Category,
		Command:   f.Command,
	}
}

// eventType returns the label of the event payload.
func eventType(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.Message != nil:
		return event.Message.Type.String()
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// detail is one indented "Label: value" line under an event header.
type detail struct{ label, value string }

func details(event log.Event) []detail {
	var out []detail
	add := func(label, format string, args ...any) {
		out = append(out, detail{label, fmt.Sprintf(format, args...)})
	}
	if event.CallID != "" {
		add("Call", "%s", shortenID(event.CallID))
	}
	if event.DeviceID != "" {
		add("Device", "%s", event.DeviceID)
	}

	switch {
	case event.Frame != nil:
		add("Size", "%d bytes", event.Frame.Size)
		if len(event.Frame.Data) > 0 {
			add("Data", "%s", frameData(event.Frame))
		}
	case event.Message != nil:
		m := event.Message
		add("Command", "%s", m.Command)
		if m.BodySize > 0 {
			add("Body", "%d bytes", m.BodySize)
		}
		if m.ResultCode != nil {
			add("Result", "%d", *m.ResultCode)
		}
		if m.Duration != nil {
			add("Duration", "%s", formatDuration(*m.Duration))
		}
		if m.Payload != nil {
			if b, err := json.Marshal(m.Payload); err == nil {
				add("Payload", "%s", b)
			}
		}
	case event.StateChange != nil:
		sc := event.StateChange
		add("Entity", "%s", sc.Entity)
		add("State", "%s -> %s", orDefault(sc.OldState, "?"), sc.NewState)
		if sc.Reason != "" {
			add("Reason", "%s", sc.Reason)
		}
	case event.Error != nil:
		e := event.Error
		add("Layer", "%s", e.Layer)
		add("Error", "%s", e.Message)
		if e.Kind != "" {
			add("Kind", "%s", e.Kind)
		}
		if e.Code != nil {
			add("Code", "%d", *e.Code)
		}
		if e.Context != "" {
			add("Context", "%s", e.Context)
		}
	}
	return out
}

// formatEvent writes a header line, the event's details and a blank line.
func formatEvent(w io.Writer, event log.Event) {
	fmt.Fprintf(w, "%s [conn:%s] %-4s %-3s %s %s\n",
		event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		shortenID(event.ConnectionID), orDefault(event.Transport, "-"),
		event.Direction, event.Layer, eventType(event))
	for _, d := range details(event) {
		fmt.Fprintf(w, "  %s: %s\n", d.label, d.value)
	}
	fmt.Fprintln(w)
}

// shortenID keeps the first eight characters, enough to tell UUIDs apart in
// one session.
func shortenID(id string) string {
	return id[:min(len(id), 8)]
}

// frameData renders printable frames as a quoted string and anything else
// as hex.
func frameData(frame *log.FrameEvent) string {
	var s string
	if isPrintable(frame.Data) {
		s = strconv.Quote(string(frame.Data))
	} else {
		s = hex.EncodeToString(frame.Data)
	}
	if frame.Truncated {
		s += " (truncated)"
	}
	return s
}

func isPrintable(data []byte) bool {
	for _, r := range string(data) {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
		case r < 0x20 || r == 0x7f || r == utf8.RuneError:
			return false
		}
	}
	return true
}

// formatDuration uses the largest unit below the value, three decimals.
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.3fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.3fms", float64(d)/float64(time.Millisecond))
	default:
		return fmt.Sprintf("%.3fus", float64(d)/float64(time.Microsecond))
	}
}

// forEach calls fn for every event in path matching filter.
func forEach(path string, filter log.Filter, fn func(log.Event) error) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read capture: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// RunView prints every event of the capture at path that passes filter.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	return forEach(path, filter.logFilter(), func(event log.Event) error {
		formatEvent(output, event)
		return nil
	})
}

// orDefault returns s, or def when s is empty (equivalent to cmp.Or, which
// needs Go 1.22).
func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}
