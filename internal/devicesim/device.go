// Package devicesim provides an in-process simulated SoftAP device serving
// the stream and HTTP setup protocols, for tests and local experiments.
package devicesim

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/softap-protocol/softap-go/pkg/wire"
)

// DefaultKeyBits is the RSA key size devices use. The public-key reply
// format depends on it (fixed 22-byte SubjectPublicKeyInfo prefix).
const DefaultKeyBits = 1024

// Network is a scan result advertised by the device.
type Network struct {
	SSID     string `json:"ssid"`
	RSSI     int    `json:"rssi"`
	Security uint32 `json:"sec"`
	Channel  int    `json:"ch"`
	MDR      int    `json:"mdr"`
}

// Configuration is a configure-ap body received by the device, with sealed
// fields decrypted.
type Configuration struct {
	// Body is the raw decoded command body.
	Body map[string]any

	// Password is the decrypted pwd field, if present.
	Password string

	// PrivateKey is the decrypted EAP-TLS private key, if present.
	PrivateKey string

	// DecryptErr records a failure to open a sealed field.
	DecryptErr error
}

// Behavior controls how the device misbehaves.
type Behavior struct {
	// HalfOpenFirst keeps the first stream connection open after replying,
	// until the client closes it.
	HalfOpenFirst bool

	// HoldOpen keeps every stream connection open after replying.
	HoldOpen bool

	// ChunkSize splits replies into chunks of this many bytes (0 = one write).
	ChunkSize int

	// ChunkDelay is the pause between chunks.
	ChunkDelay time.Duration

	// Silent lists commands the device never answers.
	Silent map[string]bool

	// Malformed lists commands answered with invalid JSON.
	Malformed map[string]bool

	// Truncated lists commands whose reply is cut short before closing.
	Truncated map[string]bool

	// ResultCodes overrides the result code for a command.
	ResultCodes map[string]int
}

// Device is a simulated SoftAP device.
type Device struct {
	// ID is the device identifier as reported (upper-case hex).
	ID string

	// Claimed is reported in the device-id reply.
	Claimed bool

	// Version is the firmware protocol version.
	Version int

	// Networks is returned by scan-ap.
	Networks []Network

	key *rsa.PrivateKey

	mu             sync.RWMutex
	behavior       Behavior
	received       []wire.Command
	settings       map[string]string
	connected      []int
	configurations []Configuration
	connections    int
}

// NewDevice creates a device with a fresh RSA key.
func NewDevice(id string) (*Device, error) {
	key, err := rsa.GenerateKey(rand.Reader, DefaultKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate device key: %w", err)
	}
	return &Device{
		ID:       id,
		Version:  2,
		key:      key,
		settings: make(map[string]string),
		Networks: []Network{
			{SSID: "home", RSSI: -42, Security: 0x00400004, Channel: 6, MDR: 54000},
			{SSID: "guest", RSSI: -71, Security: 0, Channel: 11, MDR: 54000},
			{SSID: "corp", RSSI: -60, Security: 0x02400004, Channel: 1, MDR: 54000},
		},
	}, nil
}

// PrivateKey returns the device key.
func (d *Device) PrivateKey() *rsa.PrivateKey {
	return d.key
}

// SetBehavior replaces the device behavior.
func (d *Device) SetBehavior(b Behavior) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.behavior = b
}

func (d *Device) currentBehavior() Behavior {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.behavior
}

// Received returns the commands received so far, in order.
func (d *Device) Received() []wire.Command {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]wire.Command, len(d.received))
	copy(out, d.received)
	return out
}

// ReceivedNames returns the names of the commands received so far.
func (d *Device) ReceivedNames() []string {
	cmds := d.Received()
	names := make([]string, len(cmds))
	for i, c := range cmds {
		names[i] = c.Name()
	}
	return names
}

// Setting returns a value stored by the set command.
func (d *Device) Setting(key string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.settings[key]
	return v, ok
}

// ConnectedIndexes returns the indexes received by connect-ap.
func (d *Device) ConnectedIndexes() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]int(nil), d.connected...)
}

// Configurations returns the configure-ap bodies received so far.
func (d *Device) Configurations() []Configuration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Configuration(nil), d.configurations...)
}

// Connections returns the number of stream connections accepted.
func (d *Device) Connections() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connections
}

func (d *Device) record(cmd wire.Command) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.received = append(d.received, cmd)
}

// Handle executes cmd and returns the encoded reply.
func (d *Device) Handle(cmd wire.Command) []byte {
	d.record(cmd)
	b := d.currentBehavior()
	if b.Malformed[cmd.Name()] {
		return []byte(`{"r":0,"broken"`)
	}

	reply := d.reply(cmd)
	if code, ok := b.ResultCodes[cmd.Name()]; ok {
		reply["r"] = code
	}
	data, err := wire.EncodeResponse(reply)
	if err != nil {
		return []byte(`{"r":-1}`)
	}
	return data
}

func (d *Device) reply(cmd wire.Command) map[string]any {
	var body map[string]any
	if cmd.HasBody() {
		if err := json.Unmarshal(cmd.Body(), &body); err != nil {
			return map[string]any{"r": -2}
		}
	}

	switch cmd.Name() {
	case wire.CmdDeviceID:
		claimed := "0"
		if d.Claimed {
			claimed = "1"
		}
		return map[string]any{"id": d.ID, "c": claimed}

	case wire.CmdScanAP:
		return map[string]any{"scans": d.Networks}

	case wire.CmdConnectAP:
		idx, _ := body["idx"].(float64)
		d.mu.Lock()
		d.connected = append(d.connected, int(idx))
		d.mu.Unlock()
		return map[string]any{"r": 0}

	case wire.CmdPublicKey:
		der, err := x509.MarshalPKIXPublicKey(&d.key.PublicKey)
		if err != nil {
			return map[string]any{"r": -1}
		}
		return map[string]any{"r": 0, "b": hex.EncodeToString(der)}

	case wire.CmdSet:
		k, _ := body["k"].(string)
		v, _ := body["v"].(string)
		if k == "" {
			return map[string]any{"r": -1}
		}
		d.mu.Lock()
		d.settings[k] = v
		d.mu.Unlock()
		return map[string]any{"r": 0}

	case wire.CmdConfigureAP:
		d.mu.Lock()
		d.configurations = append(d.configurations, d.open(body))
		d.mu.Unlock()
		return map[string]any{"r": 0}

	case wire.CmdVersion:
		return map[string]any{"r": 0, "v": d.Version}

	default:
		return map[string]any{"r": -1}
	}
}

// open decrypts the sealed fields of a configure-ap body.
func (d *Device) open(body map[string]any) Configuration {
	cfg := Configuration{Body: body}
	if pwd, ok := body["pwd"].(string); ok {
		plain, err := d.decryptRSA(pwd)
		if err != nil {
			cfg.DecryptErr = fmt.Errorf("pwd: %w", err)
		}
		cfg.Password = string(plain)
	}
	key, hasKey := body["key"].(string)
	ek, hasEK := body["ek"].(string)
	if hasKey && hasEK {
		plain, err := d.decryptHybrid(ek, key)
		if err != nil {
			cfg.DecryptErr = errors.Join(cfg.DecryptErr, fmt.Errorf("key: %w", err))
		}
		cfg.PrivateKey = string(plain)
	}
	return cfg
}

func (d *Device) decryptRSA(hexText string) ([]byte, error) {
	ct, err := hex.DecodeString(hexText)
	if err != nil {
		return nil, err
	}
	return rsa.DecryptPKCS1v15(nil, d.key, ct)
}

func (d *Device) decryptHybrid(wrappedHex, cipherHex string) ([]byte, error) {
	kiv, err := d.decryptRSA(wrappedHex)
	if err != nil {
		return nil, err
	}
	if len(kiv) != 32 {
		return nil, fmt.Errorf("unwrapped key material is %d bytes", len(kiv))
	}
	ct, err := hex.DecodeString(cipherHex)
	if err != nil {
		return nil, err
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext is not a whole number of blocks")
	}
	block, err := aes.NewCipher(kiv[:16])
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, kiv[16:32]).CryptBlocks(plain, ct)

	pad := int(plain[len(plain)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(plain) {
		return nil, errors.New("invalid padding")
	}
	return plain[:len(plain)-pad], nil
}
