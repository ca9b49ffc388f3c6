package softap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/softap-protocol/softap-go/pkg/callcontext"
	"github.com/softap-protocol/softap-go/pkg/secure"
	"github.com/softap-protocol/softap-go/pkg/transport"
	"github.com/softap-protocol/softap-go/pkg/wire"
)

// ClaimCodeKey is the set key holding the device claim code.
const ClaimCodeKey = wire.ClaimCodeKey

// ScanResult is a network seen by the device.
type ScanResult struct {
	SSID     string `json:"ssid" yaml:"ssid"`
	RSSI     int    `json:"rssi" yaml:"rssi"`
	Security uint32 `json:"sec" yaml:"sec"`
	Channel  int    `json:"ch" yaml:"ch"`
	MDR      int    `json:"mdr,omitempty" yaml:"mdr,omitempty"`
}

// SecurityName returns the descriptor name of the network security, or the
// hexadecimal code when it is not in the table.
func (r ScanResult) SecurityName() string {
	if name, ok := SecurityLookup(r.Security); ok {
		return name
	}
	return fmt.Sprintf("0x%08x", r.Security)
}

// DeviceInfo is the identity reported by the device.
type DeviceInfo struct {
	// ID is the lower-cased device identifier.
	ID string `json:"id"`

	// Claimed reports whether the device has been claimed.
	Claimed bool `json:"claimed"`
}

// Client is a provisioning session with one device. Operations are
// serialized; a Client is safe to share between goroutines.
type Client struct {
	config    Config
	transport transport.Transport
	channel   *secure.Channel
	logger    *slog.Logger

	mu       sync.Mutex
	deviceID string
}

// NewClient validates config and creates a client with the transport it
// selects.
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger := loggerOrDiscard(config.Logger)
	t, err := config.newTransport(logger)
	if err != nil {
		return nil, err
	}
	return newClient(config, t, logger), nil
}

// NewClientWithTransport creates a client that sends commands over t.
func NewClientWithTransport(config Config, t transport.Transport) *Client {
	return newClient(config, t, loggerOrDiscard(config.Logger))
}

func newClient(config Config, t transport.Transport, logger *slog.Logger) *Client {
	return &Client{
		config:    config,
		transport: t,
		channel:   secure.NewChannel(config.Rand),
		logger:    logger,
	}
}

func loggerOrDiscard(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Transport returns the underlying transport.
func (c *Client) Transport() transport.Transport {
	return c.transport
}

// DeviceID returns the device ID cached by the last DeviceInfo call.
func (c *Client) DeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceID
}

// HasPublicKey reports whether the device public key has been fetched.
func (c *Client) HasPublicKey() bool {
	return c.channel.HasKey()
}

// RestorePublicKey caches a device key previously returned by PublicKey.
func (c *Client) RestorePublicKey(pemText string) error {
	return c.channel.Restore(pemText)
}

// Channel returns the secure channel holding the device public key.
func (c *Client) Channel() *secure.Channel {
	return c.channel
}

// send executes one command. The caller must hold c.mu.
func (c *Client) send(ctx context.Context, cmd wire.Command) (*wire.Response, error) {
	ctx, callID := callcontext.ContextWithNewCallID(ctx)
	if c.deviceID != "" {
		ctx = callcontext.ContextWithDeviceID(ctx, c.deviceID)
	}

	start := time.Now()
	resp, err := c.transport.Send(ctx, cmd)
	if err != nil {
		c.logger.Debug("command failed",
			"command", cmd.Name(),
			"call_id", callID,
			"duration", time.Since(start),
			"error", err)
		return nil, err
	}
	c.logger.Debug("command completed",
		"command", cmd.Name(),
		"call_id", callID,
		"duration", time.Since(start))
	return resp, nil
}

// Scan lists the networks visible to the device.
func (c *Client) Scan(ctx context.Context) ([]ScanResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.send(ctx, wire.MustCommand(wire.CmdScanAP, nil))
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	var scans []ScanResult
	if !resp.Has("scans") {
		return scans, nil
	}
	if err := resp.Field("scans", &scans); err != nil {
		return nil, err
	}
	return scans, nil
}

type connectBody struct {
	Index int `json:"idx"`
}

// Connect tells the device to join the network configured at index.
func (c *Client) Connect(ctx context.Context, index int) error {
	cmd, err := wire.NewCommand(wire.CmdConnectAP, connectBody{Index: index})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.send(ctx, cmd)
	if err != nil {
		return err
	}
	return resp.RequireOK()
}

// DeviceInfo retrieves the device identity and caches its ID.
func (c *Client) DeviceInfo(ctx context.Context) (*DeviceInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.send(ctx, wire.MustCommand(wire.CmdDeviceID, nil))
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	info := &DeviceInfo{
		ID:      strings.ToLower(resp.StringField("id")),
		Claimed: resp.StringField("c") == "1",
	}
	c.deviceID = info.ID
	c.logger.Debug("device identified", "device_id", info.ID, "claimed", info.Claimed)
	return info, nil
}

// PublicKey fetches and caches the device public key, returned as PEM.
func (c *Client) PublicKey(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, _ = callcontext.ContextWithNewCallID(ctx)
	if c.deviceID != "" {
		ctx = callcontext.ContextWithDeviceID(ctx, c.deviceID)
	}
	return c.channel.Fetch(ctx, c.transport)
}

type setBody struct {
	Key   string `json:"k"`
	Value string `json:"v"`
}

// Set stores a key/value setting on the device.
func (c *Client) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrMissingKey
	}
	cmd, err := wire.NewCommand(wire.CmdSet, setBody{Key: key, Value: value})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.send(ctx, cmd)
	if err != nil {
		return err
	}
	return resp.RequireOK()
}

// SetClaimCode stores the claim code on the device.
func (c *Client) SetClaimCode(ctx context.Context, code string) error {
	if code == "" {
		return ErrMissingClaimCode
	}
	return c.Set(ctx, ClaimCodeKey, code)
}

// Configure sends network credentials to the device. The device public key
// must have been fetched; all validation happens before any I/O.
func (c *Client) Configure(ctx context.Context, opts ConfigureOptions) error {
	body, err := c.buildConfigureBody(opts)
	if err != nil {
		return err
	}
	cmd, err := wire.NewCommand(wire.CmdConfigureAP, body)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.send(ctx, cmd)
	if err != nil {
		return err
	}
	if err := resp.RequireOK(); err != nil {
		return err
	}
	c.logger.Debug("network configured", "ssid", body.SSID, "security", body.Security, "index", body.Index)
	return nil
}

// Version returns the raw version response.
func (c *Client) Version(ctx context.Context) (*wire.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.send(ctx, wire.MustCommand(wire.CmdVersion, nil))
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}
