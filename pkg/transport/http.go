package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/softap-protocol/softap-go/pkg/log"
	"github.com/softap-protocol/softap-go/pkg/wire"
)

// DefaultHTTPPort is the device's HTTP port.
const DefaultHTTPPort = 80

// HTTPConfig configures an HTTPTransport.
type HTTPConfig struct {
	// BaseURL is the device root, e.g. "http://192.168.0.1:80".
	BaseURL string

	// Timeout bounds the whole request/response cycle (default: 8s).
	Timeout time.Duration

	// Socket options applied to the underlying TCP connections.
	Socket SocketOptions

	// Client overrides the HTTP client. When nil a client with keep-alives
	// disabled is built from Socket.
	Client *http.Client

	// ProtocolLogger receives protocol capture events (optional).
	ProtocolLogger log.Logger

	// Logger is the operational logger (optional).
	Logger *slog.Logger
}

// DefaultHTTPConfig returns the default HTTP configuration for the device at
// its gateway address.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		BaseURL: fmt.Sprintf("http://192.168.0.1:%d", DefaultHTTPPort),
		Timeout: DefaultTimeout,
		Socket:  DefaultSocketOptions(),
	}
}

// HTTPTransport sends each command as a single HTTP request.
// Calls are serialized; it is safe to share between goroutines.
type HTTPTransport struct {
	config HTTPConfig
	client *http.Client
	logger *slog.Logger
	plog   log.Logger
	mu     sync.Mutex
}

// NewHTTPTransport creates an HTTP transport.
func NewHTTPTransport(config HTTPConfig) (*HTTPTransport, error) {
	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("http transport: invalid base URL %q: %w", config.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("http transport: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("http transport: base URL has no host")
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	client := config.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				DialContext:       config.Socket.dialer(),
				DisableKeepAlives: true,
			},
		}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &HTTPTransport{
		config: config,
		client: client,
		logger: logger,
		plog:   log.OrNoop(config.ProtocolLogger),
	}, nil
}

// Kind returns KindHTTP.
func (t *HTTPTransport) Kind() Kind {
	return KindHTTP
}

// Send executes cmd as one HTTP request.
func (t *HTTPTransport) Send(ctx context.Context, cmd wire.Command) (*wire.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cl := newCallLog(ctx, t.plog, KindHTTP, t.config.BaseURL)

	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	req, err := wire.NewHTTPRequest(ctx, t.config.BaseURL, cmd)
	if err != nil {
		return nil, err
	}

	cl.request(cmd)
	cl.frame(log.DirectionOut, []byte(req.Method+" "+req.URL.Path))
	if cmd.HasBody() {
		cl.frame(log.DirectionOut, cmd.Body())
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, t.fail(cl, cmd, t.classify(ctx, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, t.fail(cl, cmd, t.classify(ctx, err))
	}
	cl.frame(log.DirectionIn, body)

	if resp.StatusCode != http.StatusOK {
		t.logger.Debug("non-200 status from device", "command", cmd.Name(), "status", resp.StatusCode)
	}

	decoded, err := wire.Decode(body)
	if err != nil {
		return nil, t.fail(cl, cmd, fmt.Errorf("%w: %s: %w", ErrInvalidResponse, cmd.Name(), err))
	}
	cl.response(cmd, decoded)
	return decoded, nil
}

// classify maps a client error onto the transport error kinds.
func (t *HTTPTransport) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) && !isTimeout(err) {
		return err
	}
	if isTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", ErrTimeout, t.config.BaseURL, t.config.Timeout)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func (t *HTTPTransport) fail(cl *callLog, cmd wire.Command, err error) error {
	layer := log.LayerTransport
	if errors.Is(err, ErrInvalidResponse) {
		layer = log.LayerWire
	}
	cl.failure(layer, cmd, err)
	return err
}

var _ Transport = (*HTTPTransport)(nil)
