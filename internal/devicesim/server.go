package devicesim

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/softap-protocol/softap-go/pkg/wire"
)

// StreamServer serves the stream protocol on a TCP listener.
type StreamServer struct {
	device   *Device
	listener net.Listener

	wg      sync.WaitGroup
	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closeCh chan struct{}
	once    sync.Once
}

// ListenStream starts serving the stream protocol on addr
// (e.g. "127.0.0.1:0").
func (d *Device) ListenStream(addr string) (*StreamServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &StreamServer{
		device:   d,
		listener: ln,
		conns:    make(map[net.Conn]struct{}),
		closeCh:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Addr returns the listen address.
func (s *StreamServer) Addr() string {
	return s.listener.Addr().String()
}

// Close stops the server and closes open connections.
func (s *StreamServer) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closeCh)
		err = s.listener.Close()
		s.mu.Lock()
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
	return err
}

func (s *StreamServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.device.mu.Lock()
		s.device.connections++
		first := s.device.connections == 1
		s.device.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn, first)
	}
}

func (s *StreamServer) serve(conn net.Conn, first bool) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	cmd, err := wire.ReadStreamCommand(bufio.NewReader(conn))
	if err != nil {
		return
	}

	b := s.device.currentBehavior()
	if b.Silent[cmd.Name()] {
		s.device.record(cmd)
		s.waitPeerClose(conn)
		return
	}

	reply := s.device.Handle(cmd)
	if b.Truncated[cmd.Name()] && len(reply) > 1 {
		reply = reply[:len(reply)/2]
	}
	if !s.write(conn, reply, b) {
		return
	}

	if b.HoldOpen || (b.HalfOpenFirst && first) {
		s.waitPeerClose(conn)
	}
}

func (s *StreamServer) write(conn net.Conn, reply []byte, b Behavior) bool {
	if b.ChunkSize <= 0 {
		_, err := conn.Write(reply)
		return err == nil
	}
	for len(reply) > 0 {
		n := min(b.ChunkSize, len(reply))
		if _, err := conn.Write(reply[:n]); err != nil {
			return false
		}
		reply = reply[n:]
		if len(reply) > 0 && b.ChunkDelay > 0 {
			select {
			case <-time.After(b.ChunkDelay):
			case <-s.closeCh:
				return false
			}
		}
	}
	return true
}

// waitPeerClose blocks until the client closes the connection or the server
// shuts down.
func (s *StreamServer) waitPeerClose(conn net.Conn) {

	io.Copy(io.Discard, conn)
}

// HTTPHandler returns a handler serving the HTTP protocol.
func (d *Device) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cmd, err := wire.CommandFromHTTPRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		b := d.currentBehavior()
		if b.Silent[cmd.Name()] {
			d.record(cmd)
			<-r.Context().Done()
			return
		}

		reply := d.Handle(cmd)
		if b.Truncated[cmd.Name()] && len(reply) > 1 {
			reply = reply[:len(reply)/2]
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(reply)
	})
}

// ListenHTTP starts an HTTP server for the device on addr and returns its
// base URL and a shutdown function.
func (d *Device) ListenHTTP(addr string) (string, func(context.Context) error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{Handler: d.HTTPHandler(), ReadHeaderTimeout: 5 * time.Second}
	go srv.Serve(ln)
	return "http://" + ln.Addr().String(), srv.Shutdown, nil
}
