package wire

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// FormContentType is the content type asserted on POST requests. The body is
// JSON, but declaring it as a form keeps the request CORS-simple.
const FormContentType = "application/x-www-form-urlencoded"

// MaxBodySize bounds the body length accepted by ReadStreamCommand.
const MaxBodySize = 64 * 1024

// Codec errors.
var (
	// ErrNoName indicates a command without a name.
	ErrNoName = errors.New("command has no name")

	// ErrInvalidName indicates a name that cannot be framed.
	ErrInvalidName = errors.New("invalid command name")

	// ErrIncomplete indicates the buffer does not (yet) hold a complete JSON document.
	ErrIncomplete = errors.New("incomplete or malformed JSON response")

	// ErrNotObject indicates a JSON document that is not an object.
	ErrNotObject = errors.New("response is not a JSON object")

	// ErrMalformedFrame indicates a stream frame whose header cannot be parsed.
	ErrMalformedFrame = errors.New("malformed stream frame")
)

// EncodeStream encodes a command in stream framing:
// "<name>\n<body byte length>\n\n<body>".
func EncodeStream(cmd Command) []byte {
	var buf bytes.Buffer
	buf.Grow(len(cmd.name) + len(cmd.body) + 8)
	buf.WriteString(cmd.name)
	buf.WriteByte('\n')
	buf.WriteString(strconv.Itoa(len(cmd.body)))
	buf.WriteString("\n\n")
	buf.Write(cmd.body)
	return buf.Bytes()
}

// ReadStreamCommand reads one stream-framed command from r. It is the
// device-side counterpart of EncodeStream.
func ReadStreamCommand(r *bufio.Reader) (Command, error) {
	name, err := readLine(r)
	if err != nil {
		return Command{}, err
	}
	lengthLine, err := readLine(r)
	if err != nil {
		return Command{}, err
	}
	length, err := strconv.Atoi(lengthLine)
	if err != nil || length < 0 {
		return Command{}, fmt.Errorf("%w: bad length %q", ErrMalformedFrame, lengthLine)
	}
	if length > MaxBodySize {
		return Command{}, fmt.Errorf("%w: body length %d exceeds %d", ErrMalformedFrame, length, MaxBodySize)
	}
	blank, err := readLine(r)
	if err != nil {
		return Command{}, err
	}
	if blank != "" {
		return Command{}, fmt.Errorf("%w: missing header terminator", ErrMalformedFrame)
	}
	if name == "" {
		return Command{}, ErrNoName
	}

	cmd := Command{name: name}
	if length > 0 {
		cmd.body = make([]byte, length)
		if _, err := io.ReadFull(r, cmd.body); err != nil {
			return Command{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
		}
	}
	return cmd, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return "", fmt.Errorf("%w: truncated header", ErrMalformedFrame)
		}
		return "", err
	}
	return strings.TrimSuffix(line, "\n"), nil
}

// NewHTTPRequest builds the HTTP request carrying cmd. baseURL is the device
// root, e.g. "http://192.168.0.1:80".
func NewHTTPRequest(ctx context.Context, baseURL string, cmd Command) (*http.Request, error) {
	if cmd.name == "" {
		return nil, ErrNoName
	}
	url := strings.TrimRight(baseURL, "/") + "/" + cmd.name

	if !cmd.HasBody() {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(cmd.body))
	if err != nil {
		return nil, err
	}
	req.ContentLength = int64(len(cmd.body))
	req.Header.Set("Content-Type", FormContentType)
	return req, nil
}

// CommandFromHTTPRequest reconstructs the command carried by an HTTP request.
// It is the device-side counterpart of NewHTTPRequest.
func CommandFromHTTPRequest(req *http.Request) (Command, error) {
	name := strings.TrimPrefix(req.URL.Path, "/")
	if name == "" {
		return Command{}, ErrNoName
	}
	cmd := Command{name: name}
	if req.Body == nil || req.Method == http.MethodGet {
		return cmd, nil
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, MaxBodySize+1))
	if err != nil {
		return Command{}, err
	}
	if len(body) > MaxBodySize {
		return Command{}, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedFrame, MaxBodySize)
	}
	if len(body) > 0 {
		cmd.body = body
	}
	return cmd, nil
}

// Decode parses a complete response buffer. A buffer holding a truncated JSON
// document yields ErrIncomplete; stream readers use this to decide whether to
// keep accumulating.
func Decode(data []byte) (*Response, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %w", ErrNotObject, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrIncomplete, err)
	}
	if fields == nil {
		return nil, ErrNotObject
	}
	return &Response{raw: bytes.Clone(data), fields: fields}, nil
}

// EncodeResponse serializes a device response. Used by device simulators.
func EncodeResponse(v any) ([]byte, error) {
	return marshalBody(v)
}
