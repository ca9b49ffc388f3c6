package softap

import (
	"errors"
	"testing"
	"time"

	"github.com/softap-protocol/softap-go/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, "192.168.0.1", c.Host)
	assert.Equal(t, ProtocolTCP, c.Protocol)
	assert.True(t, c.KeepAlive)
	assert.True(t, c.NoDelay)
	assert.Equal(t, 8*time.Second, c.Timeout)
	assert.Equal(t, 6, c.Channel)
	assert.Equal(t, 5609, c.EffectivePort())
	assert.NoError(t, c.Validate())

	c.Protocol = ProtocolHTTP
	assert.Equal(t, 80, c.EffectivePort())
	assert.Equal(t, "192.168.0.1:80", c.Address())

	c.Port = 8080
	assert.Equal(t, "192.168.0.1:8080", c.Address())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"bad protocol", func(c *Config) { c.Protocol = "udp" }, ErrInvalidProtocol},
		{"empty protocol", func(c *Config) { c.Protocol = "" }, ErrInvalidProtocol},
		{"no host", func(c *Config) { c.Host = "" }, ErrInvalidConfig},
		{"bad port", func(c *Config) { c.Port = 70000 }, ErrInvalidConfig},
		{"no timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidConfig},
		{"negative channel", func(c *Config) { c.Channel = -1 }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)
			err := c.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewClientSelectsTransport(t *testing.T) {
	c := DefaultConfig()
	client, err := NewClient(c)
	require.NoError(t, err)
	assert.Equal(t, transport.KindStream, client.Transport().Kind())

	c.Protocol = ProtocolHTTP
	client, err = NewClient(c)
	require.NoError(t, err)
	assert.Equal(t, transport.KindHTTP, client.Transport().Kind())

	c.Protocol = "serial"
	_, err = NewClient(c)
	assert.ErrorIs(t, err, ErrInvalidProtocol)
}

func TestParseProtocol(t *testing.T) {
	p, err := ParseProtocol("http")
	require.NoError(t, err)
	assert.Equal(t, ProtocolHTTP, p)

	_, err = ParseProtocol("HTTP")
	assert.ErrorIs(t, err, ErrInvalidProtocol)
}
