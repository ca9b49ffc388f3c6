package transport

import (
	"context"
	"net"
)

// SocketOptions are applied to every TCP connection a driver opens.
type SocketOptions struct {
	// KeepAlive enables TCP keep-alive probes.
	KeepAlive bool

	// NoDelay disables Nagle's algorithm.
	NoDelay bool
}

// DefaultSocketOptions returns keep-alive and no-delay enabled.
func DefaultSocketOptions() SocketOptions {
	return SocketOptions{KeepAlive: true, NoDelay: true}
}

// apply sets the options on conn. Non-TCP connections are left untouched.
func (o SocketOptions) apply(conn net.Conn) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tc.SetNoDelay(o.NoDelay); err != nil {
		return err
	}
	return tc.SetKeepAlive(o.KeepAlive)
}

// DialFunc opens a network connection.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// dialer returns a DialFunc that dials TCP and applies the options.
func (o SocketOptions) dialer() DialFunc {
	d := &net.Dialer{}
	if !o.KeepAlive {
		d.KeepAlive = -1
	}
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		conn, err := d.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}
		if err := o.apply(conn); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
}
