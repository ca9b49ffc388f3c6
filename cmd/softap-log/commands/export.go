package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/softap-protocol/softap-go/pkg/log"
	"gopkg.in/yaml.v3"
)

// exportRecord is the flattened form of an event used by the exporters.
type exportRecord struct {
	Timestamp    string `json:"timestamp" yaml:"timestamp"`
	ConnectionID string `json:"connection_id" yaml:"connection_id"`
	CallID       string `json:"call_id,omitempty" yaml:"call_id,omitempty"`
	Transport    string `json:"transport,omitempty" yaml:"transport,omitempty"`
	RemoteAddr   string `json:"remote_addr,omitempty" yaml:"remote_addr,omitempty"`
	DeviceID     string `json:"device_id,omitempty" yaml:"device_id,omitempty"`
	Direction    string `json:"direction" yaml:"direction"`
	Layer        string `json:"layer" yaml:"layer"`
	Category     string `json:"category" yaml:"category"`
	Type         string `json:"type" yaml:"type"`
	Command      string `json:"command,omitempty" yaml:"command,omitempty"`
	ResultCode   *int   `json:"result_code,omitempty" yaml:"result_code,omitempty"`
	DurationUS   *int64 `json:"duration_us,omitempty" yaml:"duration_us,omitempty"`
	FrameSize    *int   `json:"frame_size,omitempty" yaml:"frame_size,omitempty"`
	State        string `json:"state,omitempty" yaml:"state,omitempty"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Payload      any    `json:"payload,omitempty" yaml:"payload,omitempty"`
}

func toRecord(event log.Event) exportRecord {
	r := exportRecord{
		Timestamp:    event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		ConnectionID: event.ConnectionID,
		CallID:       event.CallID,
		Transport:    event.Transport,
		RemoteAddr:   event.RemoteAddr,
		DeviceID:     event.DeviceID,
		Direction:    event.Direction.String(),
		Layer:        event.Layer.String(),
		Category:     event.Category.String(),
		Type:         eventType(event),
	}
	switch {
	case event.Frame != nil:
		size := event.Frame.Size
		r.FrameSize = &size
	case event.Message != nil:
		r.Command = event.Message.Command
		r.ResultCode = event.Message.ResultCode
		r.Payload = event.Message.Payload
		if event.Message.Duration != nil {
			us := event.Message.Duration.Microseconds()
			r.DurationUS = &us
		}
	case event.StateChange != nil:
		r.State = event.StateChange.NewState
	case event.Error != nil:
		r.Error = event.Error.Message
		r.ErrorKind = event.Error.Kind
	}
	return r
}

// RunExport writes the capture at path as jsonl, csv or yaml to output, or
// to stdout when output is empty.
func RunExport(path, format, output string) error {
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return Export(path, format, w)
}

// Export writes the log file to w in the given format.
func Export(path, format string, w io.Writer) error {
	switch format {
	case "jsonl":
		return exportJSONL(path, w)
	case "csv":
		return exportCSV(path, w)
	case "yaml":
		return exportYAML(path, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv, yaml)", format)
	}
}

func exportJSONL(path string, w io.Writer) error {
	encoder := json.NewEncoder(w)
	return forEach(path, log.Filter{}, func(event log.Event) error {
		if err := encoder.Encode(toRecord(event)); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		return nil
	})
}

func exportYAML(path string, w io.Writer) error {
	var records []exportRecord
	err := forEach(path, log.Filter{}, func(event log.Event) error {
		records = append(records, toRecord(event))
		return nil
	})
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"events": records}); err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}
	return enc.Close()
}

func exportCSV(path string, w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"timestamp", "connection_id", "call_id", "transport", "direction", "layer", "category", "device_id", "type", "command", "result_code", "duration_us"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	err := forEach(path, log.Filter{}, func(event log.Event) error {
		r := toRecord(event)
		row := []string{
			r.Timestamp,
			r.ConnectionID,
			r.CallID,
			r.Transport,
			r.Direction,
			r.Layer,
			r.Category,
			r.DeviceID,
			r.Type,
			r.Command,
			optionalInt(r.ResultCode),
			"",
		}
		if r.DurationUS != nil {
			row[11] = strconv.FormatInt(*r.DurationUS, 10)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		return nil
	})
	cw.Flush()
	if err != nil {
		return err
	}
	return cw.Error()
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
