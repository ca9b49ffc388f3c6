package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProfile = `
networks:
  - name: office
    ssid: corp
    security: wpa2_enterprise
    eap: eap-tls
    outer_identity: anonymous
    client_certificate: certs/client.pem
    private_key: certs/client.key
    ca: certs/ca.pem
    index: 1
  - ssid: home
    security: wpa2_aes
    password_env: SOFTAP_TEST_HOME_PASSWORD
    channel: 11
  - ssid: cafe
`

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "certs"), 0755))
	for name, body := range map[string]string{
		"client.pem": "CERT",
		"client.key": "KEY",
		"ca.pem":     "CA",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "certs", name), []byte(body), 0600))
	}
	path := filepath.Join(dir, "networks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	f, err := Load(writeProfile(t, sampleProfile))
	require.NoError(t, err)

	assert.Equal(t, []string{"office", "home", "cafe"}, f.Names())
	assert.Nil(t, f.Find("missing"))

	home := f.Find("home")
	require.NotNil(t, home)
	require.NotNil(t, home.Channel)
	assert.Equal(t, 11, *home.Channel)
}

func TestOptionsReadsFileReferences(t *testing.T) {
	f, err := Load(writeProfile(t, sampleProfile))
	require.NoError(t, err)

	opts, err := f.Options(f.Find("office"))
	require.NoError(t, err)
	assert.Equal(t, "corp", opts.SSID)
	assert.Equal(t, 1, opts.Index)
	assert.Equal(t, "eap-tls", opts.EAP)
	assert.Equal(t, "anonymous", opts.OuterIdentity)
	assert.Equal(t, "CERT", opts.ClientCertificate)
	assert.Equal(t, "KEY", opts.PrivateKey)
	assert.Equal(t, "CA", opts.CA)
	assert.Empty(t, opts.Channel)
}

func TestOptionsPasswordFromEnvironment(t *testing.T) {
	f, err := Load(writeProfile(t, sampleProfile))
	require.NoError(t, err)

	_, err = f.Options(f.Find("home"))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "home", le.Network)

	t.Setenv("SOFTAP_TEST_HOME_PASSWORD", "hunter22")
	opts, err := f.Options(f.Find("home"))
	require.NoError(t, err)
	assert.Equal(t, "hunter22", opts.Password)
	assert.Equal(t, "11", opts.Channel)
}

func TestOptionsMissingReference(t *testing.T) {
	path := writeProfile(t, "networks:\n  - ssid: x\n    ca: nope.pem\n")
	f, err := Load(path)
	require.NoError(t, err)

	_, err = f.Options(f.Find("x"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid yaml", "networks: [\n"},
		{"empty", "networks: []\n"},
		{"missing ssid", "networks:\n  - security: open\n"},
		{"duplicate name", "networks:\n  - ssid: a\n  - name: a\n    ssid: b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), "")
			var le *LoadError
			assert.ErrorAs(t, err, &le)
		})
	}
}

func TestLoadErrorIncludesFile(t *testing.T) {
	path := writeProfile(t, "networks: []\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
