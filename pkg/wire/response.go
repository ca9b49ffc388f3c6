package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ResultCodeField is the top-level response field holding the result code.
const ResultCodeField = "r"

// Response errors.
var (
	// ErrNoResultCode indicates a response without a result code where one is required.
	ErrNoResultCode = errors.New("no result code received")

	// ErrNonZeroCode indicates the device rejected the command.
	ErrNonZeroCode = errors.New("received non-zero response code")

	// ErrMissingField indicates a required response field is absent.
	ErrMissingField = errors.New("missing response field")
)

// Response is a decoded device response.
type Response struct {
	raw    []byte
	fields map[string]json.RawMessage
}

// Code returns the result code and whether the response carried one.
// A result code that is not an integer is reported as absent.
func (r *Response) Code() (int, bool) {
	raw, ok := r.fields[ResultCodeField]
	if !ok {
		return 0, false
	}
	var code int
	if err := json.Unmarshal(raw, &code); err != nil {
		return 0, false
	}
	return code, true
}

// Err returns ErrNonZeroCode if the response carries a non-zero result code.
// Responses without a result code are accepted.
func (r *Response) Err() error {
	if code, ok := r.Code(); ok && code != 0 {
		return fmt.Errorf("%w: %d", ErrNonZeroCode, code)
	}
	return nil
}

// RequireOK returns an error unless the response carries result code 0.
func (r *Response) RequireOK() error {
	code, ok := r.Code()
	if !ok {
		return ErrNoResultCode
	}
	if code != 0 {
		return fmt.Errorf("%w: %d", ErrNonZeroCode, code)
	}
	return nil
}

// Has reports whether the response carries the named field.
func (r *Response) Has(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// Field decodes the named field into v.
func (r *Response) Field(name string, v any) error {
	raw, ok := r.fields[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrMissingField, name)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode field %q: %w", name, err)
	}
	return nil
}

// StringField returns the named field if it is a JSON string, or "" otherwise.
func (r *Response) StringField(name string) string {
	var s string
	if err := r.Field(name, &s); err != nil {
		return ""
	}
	return s
}

// Map decodes the whole response into a generic map.
func (r *Response) Map() (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(r.raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Raw returns a copy of the raw response bytes.
func (r *Response) Raw() []byte {
	return bytes.Clone(r.raw)
}
