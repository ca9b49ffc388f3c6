package softap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/softap-protocol/softap-go/pkg/secure"
)

// ConfigureOptions describes the network a device should join.
type ConfigureOptions struct {
	// Index is the configuration slot (default 0).
	Index int

	// SSID of the network. Name is accepted as an alias.
	SSID string
	Name string

	// Security is a descriptor name or numeric code. Empty means open, in
	// which case Password is ignored.
	Security string

	// Password is sealed with the device public key before sending.
	Password string

	// Channel is parsed as an integer; empty uses the session channel.
	Channel string

	// EAP is the EAP type for enterprise security.
	EAP string

	// InnerIdentity is the PEAP identity. Username is accepted as an alias.
	InnerIdentity string
	Username      string

	// OuterIdentity is the optional anonymous identity.
	OuterIdentity string

	// ClientCertificate and PrivateKey are the EAP-TLS credentials (PEM).
	ClientCertificate string
	PrivateKey        string

	// CA is the optional root certificate (PEM). RootCA is accepted as an
	// alias.
	CA     string
	RootCA string

	// KeyMaterial fixes the hybrid encryption key and IV for the private
	// key. Nil generates fresh material.
	KeyMaterial *secure.KeyMaterial
}

// configureBody is the configure-ap command body.
type configureBody struct {
	Index         int     `json:"idx"`
	SSID          string  `json:"ssid"`
	Security      uint32  `json:"sec"`
	Channel       int     `json:"ch"`
	InnerIdentity string  `json:"ii,omitempty"`
	Certificate   string  `json:"crt,omitempty"`
	Key           string  `json:"key,omitempty"`
	EncryptedKey  string  `json:"ek,omitempty"`
	EAP           *uint32 `json:"eap,omitempty"`
	OuterIdentity string  `json:"oi,omitempty"`
	CA            string  `json:"ca,omitempty"`
	Password      string  `json:"pwd,omitempty"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// formatPEM trims surrounding whitespace and terminates with CRLF.
func formatPEM(s string) string {
	return strings.TrimSpace(s) + "\r\n"
}

func (c *Client) buildConfigureBody(opts ConfigureOptions) (*configureBody, error) {
	if !c.channel.HasKey() {
		return nil, fmt.Errorf("%w: %w", ErrValidation, secure.ErrNoPublicKey)
	}

	body := &configureBody{
		Index: opts.Index,
		SSID:  firstNonEmpty(opts.SSID, opts.Name),
	}
	if body.SSID == "" {
		return nil, ErrMissingSSID
	}

	password := opts.Password
	if strings.TrimSpace(opts.Security) == "" {
		password = ""
	} else {
		sec, err := SecurityValue(opts.Security)
		if err != nil {
			return nil, err
		}
		body.Security = sec
	}

	body.Channel = c.config.Channel
	if ch := strings.TrimSpace(opts.Channel); ch != "" {
		n, err := strconv.Atoi(ch)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidChannel, opts.Channel)
		}
		body.Channel = n
	}

	var privateKey string
	if IsEnterprise(body.Security) {
		if opts.EAP == "" {
			return nil, ErrMissingEAP
		}
		eap, err := EAPTypeValue(opts.EAP)
		if err != nil {
			return nil, err
		}
		switch eap {
		case EAPTypePEAP:
			body.InnerIdentity = firstNonEmpty(opts.InnerIdentity, opts.Username)
			if body.InnerIdentity == "" || password == "" {
				return nil, ErrPEAPCredentials
			}
		case EAPTypeTLS:
			if opts.ClientCertificate == "" || opts.PrivateKey == "" {
				return nil, ErrTLSCredentials
			}
			body.Certificate = formatPEM(opts.ClientCertificate)
			privateKey = formatPEM(opts.PrivateKey)
		}
		body.EAP = &eap
		body.OuterIdentity = opts.OuterIdentity
		if ca := firstNonEmpty(opts.CA, opts.RootCA); ca != "" {
			body.CA = formatPEM(ca)
		}
	}

	if privateKey != "" {
		enc, err := c.channel.HybridEncrypt([]byte(privateKey), opts.KeyMaterial)
		if err != nil {
			return nil, err
		}
		body.Key = enc.Ciphertext
		body.EncryptedKey = enc.KeyIVWrapped
	}
	if password != "" {
		sealed, err := c.channel.SealPassword(password)
		if err != nil {
			return nil, err
		}
		body.Password = sealed
	}
	return body, nil
}
