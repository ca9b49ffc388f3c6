package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/softap-protocol/softap-go/internal/devicesim"
	"github.com/softap-protocol/softap-go/pkg/log"
	"github.com/softap-protocol/softap-go/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSimDevice(t *testing.T) (*devicesim.Device, *devicesim.StreamServer) {
	t.Helper()
	d, err := devicesim.NewDevice("ABCDEF0123456789")
	require.NoError(t, err)
	srv, err := d.ListenStream("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return d, srv
}

func newStream(t *testing.T, addr string, timeout time.Duration) *StreamTransport {
	t.Helper()
	cfg := DefaultStreamConfig()
	cfg.Address = addr
	cfg.Timeout = timeout
	cfg.WarmUpTimeout = 300 * time.Millisecond
	tr, err := NewStreamTransport(cfg)
	require.NoError(t, err)
	return tr
}

// recordingLogger collects protocol events.
type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingLogger) Log(e log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingLogger) all() []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]log.Event(nil), r.events...)
}

// listenOnce accepts connections and hands each to handle.
func listenOnce(t *testing.T, handle func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handle(conn)
		}
	}()
	return ln.Addr().String()
}

func TestStreamWarmUpOncePerSession(t *testing.T) {
	d, srv := newSimDevice(t)
	tr := newStream(t, srv.Addr(), 2*time.Second)
	ctx := context.Background()

	assert.False(t, tr.WarmedUp())

	_, err := tr.Send(ctx, wire.MustCommand(wire.CmdScanAP, nil))
	require.NoError(t, err)
	assert.True(t, tr.WarmedUp())
	assert.Equal(t, []string{wire.CmdDeviceID, wire.CmdScanAP}, d.ReceivedNames())

	_, err = tr.Send(ctx, wire.MustCommand(wire.CmdVersion, nil))
	require.NoError(t, err)
	_, err = tr.Send(ctx, wire.MustCommand(wire.CmdSet, map[string]string{"k": "cc", "v": "1"}))
	require.NoError(t, err)

	assert.Equal(t, []string{wire.CmdDeviceID, wire.CmdScanAP, wire.CmdVersion, wire.CmdSet}, d.ReceivedNames())
	assert.Equal(t, 4, d.Connections(), "one connection per call")
}

func TestStreamWarmUpAbsorbsHalfOpenFirstConnection(t *testing.T) {
	d, srv := newSimDevice(t)
	d.SetBehavior(devicesim.Behavior{HalfOpenFirst: true})
	tr := newStream(t, srv.Addr(), time.Second)

	start := time.Now()
	resp, err := tr.Send(context.Background(), wire.MustCommand(wire.CmdVersion, nil))
	require.NoError(t, err)
	assert.NoError(t, resp.RequireOK())
	assert.Less(t, time.Since(start), time.Second, "forced close must not wait for the device")
}

func TestStreamWarmUpFailureIsIgnored(t *testing.T) {
	d, srv := newSimDevice(t)
	d.SetBehavior(devicesim.Behavior{Silent: map[string]bool{wire.CmdDeviceID: true}})
	tr := newStream(t, srv.Addr(), 2*time.Second)

	resp, err := tr.Send(context.Background(), wire.MustCommand(wire.CmdVersion, nil))
	require.NoError(t, err)
	assert.NoError(t, resp.RequireOK())
	assert.True(t, tr.WarmedUp())
}

func TestStreamAssemblesChunkedReply(t *testing.T) {
	d, srv := newSimDevice(t)
	d.SetBehavior(devicesim.Behavior{ChunkSize: 7, ChunkDelay: 5 * time.Millisecond})
	tr := newStream(t, srv.Addr(), 2*time.Second)

	resp, err := tr.Send(context.Background(), wire.MustCommand(wire.CmdScanAP, nil))
	require.NoError(t, err)

	var scans []devicesim.Network
	require.NoError(t, resp.Field("scans", &scans))
	assert.Len(t, scans, len(d.Networks))
}

func TestStreamTimeoutWithoutData(t *testing.T) {
	d, srv := newSimDevice(t)
	d.SetBehavior(devicesim.Behavior{Silent: map[string]bool{wire.CmdScanAP: true}})
	tr := newStream(t, srv.Addr(), 200*time.Millisecond)

	start := time.Now()
	_, err := tr.Send(context.Background(), wire.MustCommand(wire.CmdScanAP, nil))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.False(t, errors.Is(err, ErrTransport))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestStreamLateDataDoesNotProduceSecondResult(t *testing.T) {
	written := make(chan error, 1)
	addr := listenOnce(t, func(conn net.Conn) {
		defer conn.Close()
		cmd, err := wire.ReadStreamCommand(bufio.NewReader(conn))
		if err != nil {
			return
		}
		if cmd.Name() == wire.CmdDeviceID {
			conn.Write([]byte(`{"id":"x","c":"0"}`))
			return
		}
		time.Sleep(300 * time.Millisecond)
		_, err = conn.Write([]byte(`{"r":0}`))
		written <- err
	})

	c := &streamCall{
		addr:    addr,
		dial:    (&net.Dialer{}).DialContext,
		cmd:     wire.MustCommand(wire.CmdScanAP, nil),
		timeout: 100 * time.Millisecond,
		log:     newCallLog(context.Background(), nil, KindStream, addr),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		done:    newCompletion(),
	}

	_, err := c.run(context.Background())
	require.ErrorIs(t, err, ErrTimeout)

	<-written
	time.Sleep(50 * time.Millisecond)

	assert.False(t, c.done.resolve(Result{}), "a result was already published")
	select {
	case r := <-c.done.wait():
		t.Fatalf("unexpected second result: %+v", r)
	default:
	}
}

func TestStreamWaitsForDeviceClose(t *testing.T) {
	addr := listenOnce(t, func(conn net.Conn) {
		defer conn.Close()
		if _, err := wire.ReadStreamCommand(bufio.NewReader(conn)); err != nil {
			return
		}
		conn.Write([]byte(`{"r":0}`))
		time.Sleep(150 * time.Millisecond)
		conn.Write([]byte(`{"ignored":true}`))
	})
	tr := newStream(t, addr, 2*time.Second)

	start := time.Now()
	resp, err := tr.Send(context.Background(), wire.MustCommand(wire.CmdVersion, nil))
	require.NoError(t, err)
	assert.NoError(t, resp.RequireOK())
	assert.False(t, resp.Has("ignored"))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestStreamHeldOpenAfterReplyTimesOut(t *testing.T) {
	d, srv := newSimDevice(t)
	d.SetBehavior(devicesim.Behavior{HoldOpen: true})
	tr := newStream(t, srv.Addr(), 200*time.Millisecond)

	_, err := tr.Send(context.Background(), wire.MustCommand(wire.CmdVersion, nil))
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestStreamClosedWithUnparsedData(t *testing.T) {
	d, srv := newSimDevice(t)
	d.SetBehavior(devicesim.Behavior{Truncated: map[string]bool{wire.CmdScanAP: true}})
	tr := newStream(t, srv.Addr(), 2*time.Second)

	_, err := tr.Send(context.Background(), wire.MustCommand(wire.CmdScanAP, nil))
	assert.ErrorIs(t, err, ErrIncompleteResponse)
}

func TestStreamOversizedReplyIsRejected(t *testing.T) {
	addr := listenOnce(t, func(conn net.Conn) {
		defer conn.Close()
		cmd, err := wire.ReadStreamCommand(bufio.NewReader(conn))
		if err != nil {
			return
		}
		if cmd.Name() == wire.CmdDeviceID {
			conn.Write([]byte(`{"id":"x","c":"0"}`))
			return
		}
		conn.Write([]byte(`{"scans":[`))
		chunk := []byte(strings.Repeat(`{"ssid":"padding"},`, 1024))
		for {
			if _, err := conn.Write(chunk); err != nil {
				return
			}
		}
	})
	tr := newStream(t, addr, 5*time.Second)

	start := time.Now()
	_, err := tr.Send(context.Background(), wire.MustCommand(wire.CmdScanAP, nil))
	assert.ErrorIs(t, err, ErrInvalidResponse)
	assert.Less(t, time.Since(start), 5*time.Second, "the reply cap must end the call before the timeout")
}

func TestDecodeIfComplete(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{`{"r":0}`, true},
		{"{\"r\":0}\r\n", true},
		{`{"scans":[{"ssid":"a"}`, false},
		{`{"scans":[{"ssid":"a"},`, false},
		{`{"a":"}`, false},
		{``, false},
		{`[{"r":0}]`, false},
	}
	for _, tt := range tests {
		if got := decodeIfComplete([]byte(tt.in)) != nil; got != tt.want {
			t.Errorf("decodeIfComplete(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStreamConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	tr := newStream(t, addr, time.Second)
	_, err = tr.Send(context.Background(), wire.MustCommand(wire.CmdScanAP, nil))
	assert.ErrorIs(t, err, ErrTransport)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestStreamContextCancel(t *testing.T) {
	d, srv := newSimDevice(t)
	d.SetBehavior(devicesim.Behavior{Silent: map[string]bool{wire.CmdScanAP: true}})
	tr := newStream(t, srv.Addr(), 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(500*time.Millisecond, cancel)

	_, err := tr.Send(ctx, wire.MustCommand(wire.CmdScanAP, nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamCapturesProtocolEvents(t *testing.T) {
	_, srv := newSimDevice(t)
	rec := &recordingLogger{}

	cfg := DefaultStreamConfig()
	cfg.Address = srv.Addr()
	cfg.ProtocolLogger = rec
	tr, err := NewStreamTransport(cfg)
	require.NoError(t, err)

	_, err = tr.Send(context.Background(), wire.MustCommand(wire.CmdSet, map[string]string{"k": "cc", "v": "abc"}))
	require.NoError(t, err)

	var states []string
	var messages []string
	sessionWarm := false
	for _, e := range rec.all() {
		assert.Equal(t, "tcp", e.Transport)
		switch {
		case e.StateChange != nil && e.StateChange.Entity == log.StateEntitySession:
			sessionWarm = e.StateChange.NewState == "WARM"
		case e.StateChange != nil:
			states = append(states, e.StateChange.NewState)
		case e.Message != nil:
			messages = append(messages, e.Message.Type.String()+" "+e.Message.Command)
		}
	}

	assert.True(t, sessionWarm)
	assert.Contains(t, states, StateConnecting.String())
	assert.Contains(t, states, StateSent.String())
	assert.Contains(t, states, StateClosed.String())
	assert.Contains(t, messages, "REQUEST set")
	assert.Contains(t, messages, "RESPONSE set")
}

func TestNewStreamTransportValidation(t *testing.T) {
	_, err := NewStreamTransport(StreamConfig{})
	assert.Error(t, err)

	_, err = NewStreamTransport(StreamConfig{Address: "no-port"})
	assert.Error(t, err)

	tr, err := NewStreamTransport(StreamConfig{Address: "127.0.0.1:5609"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, tr.config.Timeout)
	assert.Equal(t, DefaultWarmUpTimeout, tr.config.WarmUpTimeout)
	assert.Equal(t, KindStream, tr.Kind())
}

func TestCompletionResolvesOnce(t *testing.T) {
	c := newCompletion()

	var wg sync.WaitGroup
	wins := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- c.resolve(Result{Err: ErrTimeout})
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for w := range wins {
		if w {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.ErrorIs(t, (<-c.wait()).Err, ErrTimeout)
}

func TestConnectionStateString(t *testing.T) {
	tests := []struct {
		state ConnectionState
		want  string
	}{
		{StateIdle, "IDLE"},
		{StateConnecting, "CONNECTING"},
		{StateConnected, "CONNECTED"},
		{StateSent, "SENT"},
		{StateClosed, "CLOSED"},
		{ConnectionState(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ConnectionState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
