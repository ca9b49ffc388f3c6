package log

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events. Zero-valued fields do not constrain.
type Filter struct {
	ConnectionID string
	CallID       string
	DeviceID     string

	// Transport is "tcp" or "http".
	Transport string

	// Command keeps only message events for this command name.
	Command string

	Direction *Direction
	Layer     *Layer
	Category  *Category

	// TimeStart is inclusive, TimeEnd exclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time
}

func matchString(want, got string) bool { return want == "" || want == got }

// Matches reports whether event satisfies every criterion of f.
func (f *Filter) Matches(event Event) bool {
	if !matchString(f.ConnectionID, event.ConnectionID) ||
		!matchString(f.CallID, event.CallID) ||
		!matchString(f.DeviceID, event.DeviceID) ||
		!matchString(f.Transport, event.Transport) {
		return false
	}
	if f.Command != "" && (event.Message == nil || event.Message.Command != f.Command) {
		return false
	}
	if (f.Direction != nil && *f.Direction != event.Direction) ||
		(f.Layer != nil && *f.Layer != event.Layer) ||
		(f.Category != nil && *f.Category != event.Category) {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	return f.TimeEnd == nil || event.Timestamp.Before(*f.TimeEnd)
}

// Reader iterates over the events of a capture file without loading it
// whole.
type Reader struct {
	src    io.ReadCloser
	dec    *cbor.Decoder
	filter Filter
}

// NewReader opens a capture file and yields every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens a capture file and yields the events matching
// filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{src: f, dec: NewDecoder(f), filter: filter}, nil
}

// Next returns the next matching event, or io.EOF at the end of the file.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		err := r.dec.Decode(&event)
		switch {
		case errors.Is(err, io.EOF):
			return Event{}, io.EOF
		case err != nil:
			return Event{}, err
		case r.filter.Matches(event):
			return event, nil
		}
	}
}

// Close releases the file.
func (r *Reader) Close() error {
	return r.src.Close()
}
