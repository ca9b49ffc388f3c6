package secure

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/softap-protocol/softap-go/pkg/transport"
	"github.com/softap-protocol/softap-go/pkg/wire"
)

// KeyPrefixLen is the length of the DER SubjectPublicKeyInfo header the
// device prepends to its PKCS#1 public key.
const KeyPrefixLen = 22

// PublicKeyField is the public-key response field carrying the hex DER key.
const PublicKeyField = "b"

// Secure channel errors.
var (
	// ErrNoPublicKey indicates encryption was attempted before the device
	// public key was fetched.
	ErrNoPublicKey = errors.New("device public key has not been retrieved")

	// ErrMalformedKey indicates the device returned unusable key data.
	ErrMalformedKey = errors.New("malformed device public key")
)

// KeyMaterial is the 32-byte hybrid encryption secret: AES-128 key followed
// by the CBC initialization vector.
type KeyMaterial [32]byte

// Key returns the AES-128 key.
func (k KeyMaterial) Key() []byte { return k[:16] }

// IV returns the CBC initialization vector.
func (k KeyMaterial) IV() []byte { return k[16:] }

// NewKeyMaterial reads fresh key material from r (crypto/rand if nil).
func NewKeyMaterial(r io.Reader) (KeyMaterial, error) {
	if r == nil {
		r = rand.Reader
	}
	var k KeyMaterial
	if _, err := io.ReadFull(r, k[:]); err != nil {
		return KeyMaterial{}, fmt.Errorf("failed to generate key material: %w", err)
	}
	return k, nil
}

// HybridCiphertext is the output of HybridEncrypt. Both fields are hex.
type HybridCiphertext struct {
	// KeyIVWrapped is the RSA-wrapped key material.
	KeyIVWrapped string

	// Ciphertext is the AES-128-CBC encrypted payload.
	Ciphertext string
}

// Channel caches the device public key and performs encryption with it.
// It is safe for concurrent use.
type Channel struct {
	rand io.Reader

	mu  sync.RWMutex
	key *rsa.PublicKey
}

// NewChannel creates a channel without a key. A nil rand uses crypto/rand.
func NewChannel(r io.Reader) *Channel {
	if r == nil {
		r = rand.Reader
	}
	return &Channel{rand: r}
}

// Fetch retrieves the device public key over t, caches it and returns it as
// a PKIX PEM block.
func (c *Channel) Fetch(ctx context.Context, t transport.Transport) (string, error) {
	resp, err := t.Send(ctx, wire.MustCommand(wire.CmdPublicKey, nil))
	if err != nil {
		return "", err
	}
	if err := resp.RequireOK(); err != nil {
		return "", err
	}

	pub, err := ParseDevicePublicKey(resp.StringField(PublicKeyField))
	if err != nil {
		return "", err
	}
	c.SetPublicKey(pub)
	return ExportPublicKeyPEM(pub)
}

// SetPublicKey replaces the cached key.
func (c *Channel) SetPublicKey(pub *rsa.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = pub
}

// Restore caches a key saved earlier from Fetch's PEM output, so a known
// device needs no public-key round trip.
func (c *Channel) Restore(pemText string) error {
	pub, err := ParsePublicKeyPEM(pemText)
	if err != nil {
		return err
	}
	c.SetPublicKey(pub)
	return nil
}

// PublicKey returns the cached key, or nil.
func (c *Channel) PublicKey() *rsa.PublicKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key
}

// HasKey reports whether a key has been fetched.
func (c *Channel) HasKey() bool {
	return c.PublicKey() != nil
}

func (c *Channel) requireKey() (*rsa.PublicKey, error) {
	pub := c.PublicKey()
	if pub == nil {
		return nil, ErrNoPublicKey
	}
	return pub, nil
}

// SealPassword encrypts a short secret directly with the device key.
func (c *Channel) SealPassword(plaintext string) (string, error) {
	pub, err := c.requireKey()
	if err != nil {
		return "", err
	}
	ct, err := rsa.EncryptPKCS1v15(c.rand, pub, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("failed to seal password: %w", err)
	}
	return hex.EncodeToString(ct), nil
}

// HybridEncrypt encrypts plaintext with AES-128-CBC under kiv and wraps kiv
// with the device key. A nil kiv generates fresh material.
func (c *Channel) HybridEncrypt(plaintext []byte, kiv *KeyMaterial) (HybridCiphertext, error) {
	pub, err := c.requireKey()
	if err != nil {
		return HybridCiphertext{}, err
	}

	var material KeyMaterial
	if kiv != nil {
		material = *kiv
	} else if material, err = NewKeyMaterial(c.rand); err != nil {
		return HybridCiphertext{}, err
	}

	wrapped, err := rsa.EncryptPKCS1v15(c.rand, pub, material[:])
	if err != nil {
		return HybridCiphertext{}, fmt.Errorf("failed to wrap key material: %w", err)
	}

	block, err := aes.NewCipher(material.Key())
	if err != nil {
		return HybridCiphertext{}, fmt.Errorf("failed to create cipher: %w", err)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, material.IV()).CryptBlocks(ct, padded)

	return HybridCiphertext{
		KeyIVWrapped: hex.EncodeToString(wrapped),
		Ciphertext:   hex.EncodeToString(ct),
	}, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

// ParseDevicePublicKey decodes the hex key data of a public-key response.
func ParseDevicePublicKey(hexDER string) (*rsa.PublicKey, error) {
	der, err := hex.DecodeString(hexDER)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	if len(der) <= KeyPrefixLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedKey, len(der))
	}
	pub, err := x509.ParsePKCS1PublicKey(der[KeyPrefixLen:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	return pub, nil
}

// ExportPublicKeyPEM encodes pub as a PKIX "PUBLIC KEY" PEM block.
func ExportPublicKeyPEM(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// ParsePublicKeyPEM decodes a PEM block produced by ExportPublicKeyPEM.
func ParsePublicKeyPEM(data string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrMalformedKey)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrMalformedKey)
	}
	return pub, nil
}
