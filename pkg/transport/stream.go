package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/softap-protocol/softap-go/pkg/log"
	"github.com/softap-protocol/softap-go/pkg/wire"
)

// Default stream transport settings.
const (
	DefaultStreamPort    = 5609
	DefaultTimeout       = 8 * time.Second
	DefaultWarmUpTimeout = 2 * time.Second
)

// readChunkSize is the read buffer size for stream replies.
const readChunkSize = 1024

// StreamConfig configures a StreamTransport.
type StreamConfig struct {
	// Address is the device address (host:port).
	Address string

	// Timeout bounds each call (default: 8s).
	Timeout time.Duration

	// WarmUpTimeout bounds the warm-up call (default: 2s).
	WarmUpTimeout time.Duration

	// Socket options applied to every connection.
	Socket SocketOptions

	// Dial overrides the dialer. Socket options are still applied to the
	// returned connection.
	Dial DialFunc

	// ProtocolLogger receives protocol capture events (optional).
	ProtocolLogger log.Logger

	// Logger is the operational logger (optional).
	Logger *slog.Logger
}

// DefaultStreamConfig returns the default stream configuration for the
// device at its gateway address.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Address:       net.JoinHostPort("192.168.0.1", fmt.Sprint(DefaultStreamPort)),
		Timeout:       DefaultTimeout,
		WarmUpTimeout: DefaultWarmUpTimeout,
		Socket:        DefaultSocketOptions(),
	}
}

// StreamTransport sends commands over per-call TCP connections.
// Calls are serialized; it is safe to share between goroutines.
type StreamTransport struct {
	config StreamConfig
	logger *slog.Logger
	plog   log.Logger

	mu       sync.Mutex
	warmedUp bool
}

// NewStreamTransport creates a stream transport.
func NewStreamTransport(config StreamConfig) (*StreamTransport, error) {
	if config.Address == "" {
		return nil, errors.New("stream transport: address is required")
	}
	if _, _, err := net.SplitHostPort(config.Address); err != nil {
		return nil, fmt.Errorf("stream transport: invalid address %q: %w", config.Address, err)
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.WarmUpTimeout <= 0 {
		config.WarmUpTimeout = DefaultWarmUpTimeout
	}
	if config.Dial == nil {
		d := &net.Dialer{}
		config.Dial = d.DialContext
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &StreamTransport{
		config: config,
		logger: logger,
		plog:   log.OrNoop(config.ProtocolLogger),
	}, nil
}

// Kind returns KindStream.
func (t *StreamTransport) Kind() Kind {
	return KindStream
}

// Address returns the device address.
func (t *StreamTransport) Address() string {
	return t.config.Address
}

// WarmedUp reports whether the session warm-up call has been issued.
func (t *StreamTransport) WarmedUp() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.warmedUp
}

// Send executes cmd. The first Send of a session is preceded by the warm-up
// call, whose outcome is discarded.
func (t *StreamTransport) Send(ctx context.Context, cmd wire.Command) (*wire.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.warmedUp {
		t.warmedUp = true
		t.warmUp(ctx)
	}
	return t.call(ctx, cmd, t.config.Timeout, false)
}

func (t *StreamTransport) warmUp(ctx context.Context) {
	warm := wire.MustCommand(wire.CmdDeviceID, nil)
	_, err := t.call(ctx, warm, t.config.WarmUpTimeout, true)
	reason := "ok"
	if err != nil {
		reason = err.Error()
		t.logger.Debug("warm-up call failed", "addr", t.config.Address, "error", err)
	}
	newCallLog(ctx, t.plog, KindStream, t.config.Address).
		state(log.StateEntitySession, "COLD", "WARM", reason)
}

func (t *StreamTransport) call(ctx context.Context, cmd wire.Command, timeout time.Duration, forceClose bool) (*wire.Response, error) {
	c := &streamCall{
		addr:       t.config.Address,
		dial:       t.config.Dial,
		socket:     t.config.Socket,
		cmd:        cmd,
		timeout:    timeout,
		forceClose: forceClose,
		log:        newCallLog(ctx, t.plog, KindStream, t.config.Address),
		logger:     t.logger,
		done:       newCompletion(),
	}
	return c.run(ctx)
}

var _ Transport = (*StreamTransport)(nil)

// streamCall is one command exchange over its own connection.
type streamCall struct {
	addr       string
	dial       DialFunc
	socket     SocketOptions
	cmd        wire.Command
	timeout    time.Duration
	forceClose bool
	log        *callLog
	logger     *slog.Logger
	done       *completion

	timer  *time.Timer
	cancel context.CancelFunc

	mu     sync.Mutex
	conn   net.Conn
	state  ConnectionState
	closed bool
}

func (c *streamCall) run(ctx context.Context) (*wire.Response, error) {
	dialCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel

	c.log.request(c.cmd)

	c.mu.Lock()
	c.timer = time.AfterFunc(c.timeout, func() {
		c.finish(Result{Err: fmt.Errorf("%w: %s to %s after %s", ErrTimeout, c.cmd.Name(), c.addr, c.timeout)})
	})
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		c.finish(Result{Err: err})
	})

	go c.exchange(dialCtx)

	r := <-c.done.wait()
	stop()
	c.stopTimer()
	c.teardown("")

	if r.Err != nil {
		c.log.failure(log.LayerTransport, c.cmd, r.Err)
		return nil, r.Err
	}
	c.log.response(c.cmd, r.Response)
	return r.Response, nil
}

// finish publishes r and tears the connection down if r won.
func (c *streamCall) finish(r Result) {
	if !c.done.resolve(r) {
		return
	}
	reason := "complete"
	if r.Err != nil {
		reason = r.Err.Error()
	}
	c.teardown(reason)
}

func (c *streamCall) stopTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
}

// teardown closes the connection and cancels a pending dial. Idempotent.
func (c *streamCall) teardown(reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancel()
	conn := c.conn
	old := c.state
	c.state = StateClosed
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.log.state(log.StateEntityConnection, old.String(), StateClosed.String(), reason)
}

// setState records a transition unless the call was already torn down.
func (c *streamCall) setState(s ConnectionState) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	old := c.state
	c.state = s
	c.mu.Unlock()

	c.log.state(log.StateEntityConnection, old.String(), s.String(), "")
	return true
}

// attach stores conn unless the call was already torn down.
func (c *streamCall) attach(conn net.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.conn = conn
	return true
}

func (c *streamCall) exchange(ctx context.Context) {
	if !c.setState(StateConnecting) {
		return
	}
	conn, err := c.dial(ctx, "tcp", c.addr)
	if err != nil {
		c.finish(Result{Err: fmt.Errorf("%w: dial %s: %w", ErrTransport, c.addr, err)})
		return
	}
	if !c.attach(conn) {
		conn.Close()
		return
	}
	if err := c.socket.apply(conn); err != nil {
		c.logger.Debug("failed to apply socket options", "addr", c.addr, "error", err)
	}
	if !c.setState(StateConnected) {
		return
	}

	frame := wire.EncodeStream(c.cmd)
	c.log.frame(log.DirectionOut, frame)
	if _, err := conn.Write(frame); err != nil {
		c.finish(Result{Err: fmt.Errorf("%w: write %s: %w", ErrTransport, c.cmd.Name(), err)})
		return
	}
	if !c.setState(StateSent) {
		return
	}
	c.read(conn)
}

// read accumulates reply chunks until the device closes the connection.
func (c *streamCall) read(conn net.Conn) {
	var (
		acc  []byte
		resp *wire.Response
		buf  = make([]byte, readChunkSize)
	)
	for {
		if resp != nil {
			conn.SetReadDeadline(time.Now().Add(c.timeout))
		}
		n, err := conn.Read(buf)
		if n > 0 {
			c.log.frame(log.DirectionIn, buf[:n])
			if resp == nil {
				acc = append(acc, buf[:n]...)
				if len(acc) > maxResponseSize {
					c.finish(Result{Err: fmt.Errorf("%w: %s: reply exceeds %d bytes", ErrInvalidResponse, c.cmd.Name(), maxResponseSize)})
					return
				}
				if r := decodeIfComplete(acc); r != nil {
					resp = r
					c.stopTimer()
					if c.forceClose {
						c.finish(Result{Response: resp})
						return
					}
				}
			}
		}
		if err == nil {
			continue
		}

		switch {
		case resp != nil && errors.Is(err, io.EOF):
			c.finish(Result{Response: resp})
		case isTimeout(err):
			c.finish(Result{Err: fmt.Errorf("%w: %s to %s: device did not close the connection", ErrTimeout, c.cmd.Name(), c.addr)})
		case errors.Is(err, io.EOF):
			c.finish(Result{Err: fmt.Errorf("%w: %s: %d bytes received", ErrIncompleteResponse, c.cmd.Name(), len(acc))})
		default:
			c.finish(Result{Err: fmt.Errorf("%w: read %s: %w", ErrTransport, c.cmd.Name(), err)})
		}
		return
	}
}

// decodeIfComplete returns the reply held in acc, or nil while it is still
// partial. Only data ending like a JSON object is parsed, so a reply that
// arrives in many chunks is not re-parsed after every one.
func decodeIfComplete(acc []byte) *wire.Response {
	trimmed := bytes.TrimRight(acc, " \t\r\n")
	if len(trimmed) == 0 || trimmed[len(trimmed)-1] != '}' {
		return nil
	}
	resp, err := wire.Decode(acc)
	if err != nil {
		return nil
	}
	return resp
}
