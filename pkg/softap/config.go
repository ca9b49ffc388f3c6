package softap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/softap-protocol/softap-go/pkg/log"
	"github.com/softap-protocol/softap-go/pkg/transport"
)

// Protocol selects the transport used to reach the device.
type Protocol string

const (
	// ProtocolTCP uses the raw stream protocol.
	ProtocolTCP Protocol = "tcp"

	// ProtocolHTTP uses one HTTP request per command.
	ProtocolHTTP Protocol = "http"
)

// Default session settings.
const (
	DefaultHost    = "192.168.0.1"
	DefaultChannel = 6
	DefaultTimeout = transport.DefaultTimeout
)

// Configuration errors.
var (
	// ErrInvalidProtocol indicates a protocol other than tcp or http.
	ErrInvalidProtocol = errors.New("invalid protocol")

	// ErrInvalidConfig indicates an unusable session configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ParseProtocol converts a protocol name.
func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(s); p {
	case ProtocolTCP, ProtocolHTTP:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidProtocol, s)
}

// Config configures a Client.
type Config struct {
	// Host is the device address (default: 192.168.0.1).
	Host string

	// Port overrides the protocol default port (5609 tcp, 80 http).
	Port int

	// Protocol selects the transport (default: tcp).
	Protocol Protocol

	// KeepAlive enables TCP keep-alive on device connections.
	KeepAlive bool

	// NoDelay disables Nagle's algorithm on device connections.
	NoDelay bool

	// Timeout bounds each command (default: 8s).
	Timeout time.Duration

	// Channel is the default WiFi channel for Configure (default: 6).
	Channel int

	// Rand is the randomness source for credential encryption
	// (default: crypto/rand).
	Rand io.Reader

	// ProtocolLogger receives protocol capture events (optional).
	ProtocolLogger log.Logger

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Host:      DefaultHost,
		Protocol:  ProtocolTCP,
		KeepAlive: true,
		NoDelay:   true,
		Timeout:   DefaultTimeout,
		Channel:   DefaultChannel,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := ParseProtocol(string(c.Protocol)); err != nil {
		return err
	}
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	if c.Channel < 0 {
		return fmt.Errorf("%w: channel %d", ErrInvalidConfig, c.Channel)
	}
	return nil
}

// EffectivePort returns Port, or the protocol default when Port is zero.
func (c *Config) EffectivePort() int {
	if c.Port != 0 {
		return c.Port
	}
	if c.Protocol == ProtocolHTTP {
		return transport.DefaultHTTPPort
	}
	return transport.DefaultStreamPort
}

// Address returns host:port of the device.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.EffectivePort()))
}

func (c *Config) socketOptions() transport.SocketOptions {
	return transport.SocketOptions{KeepAlive: c.KeepAlive, NoDelay: c.NoDelay}
}

// newTransport builds the transport selected by the configuration.
func (c *Config) newTransport(logger *slog.Logger) (transport.Transport, error) {
	switch c.Protocol {
	case ProtocolHTTP:
		return transport.NewHTTPTransport(transport.HTTPConfig{
			BaseURL:        "http://" + c.Address(),
			Timeout:        c.Timeout,
			Socket:         c.socketOptions(),
			ProtocolLogger: c.ProtocolLogger,
			Logger:         logger,
		})
	default:
		return transport.NewStreamTransport(transport.StreamConfig{
			Address:        c.Address(),
			Timeout:        c.Timeout,
			WarmUpTimeout:  transport.DefaultWarmUpTimeout,
			Socket:         c.socketOptions(),
			ProtocolLogger: c.ProtocolLogger,
			Logger:         logger,
		})
	}
}
