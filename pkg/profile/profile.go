// Package profile loads network profiles: YAML descriptions of the networks
// a device should be provisioned with.
//
// A profile file holds a list of networks:
//
//	networks:
//	  - name: office
//	    ssid: corp
//	    security: wpa2_enterprise
//	    eap: eap-tls
//	    client_certificate: certs/client.pem
//	    private_key: certs/client.key
//	    ca: certs/ca.pem
//	  - ssid: home
//	    security: wpa2_aes
//	    password_env: HOME_WIFI_PASSWORD
//
// Certificate and key fields name files, resolved relative to the profile
// file.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/softap-protocol/softap-go/pkg/softap"
	"gopkg.in/yaml.v3"
)

// File is a parsed profile file.
type File struct {
	Networks []Network `yaml:"networks"`

	// dir is the directory file references are resolved against.
	dir string
}

// Network is one network profile.
type Network struct {
	// Name identifies the profile; defaults to the SSID.
	Name string `yaml:"name,omitempty"`

	SSID     string `yaml:"ssid"`
	Security string `yaml:"security,omitempty"`
	Password string `yaml:"password,omitempty"`

	// PasswordEnv names an environment variable holding the password.
	PasswordEnv string `yaml:"password_env,omitempty"`

	Channel *int `yaml:"channel,omitempty"`
	Index   int  `yaml:"index,omitempty"`

	EAP           string `yaml:"eap,omitempty"`
	InnerIdentity string `yaml:"inner_identity,omitempty"`
	OuterIdentity string `yaml:"outer_identity,omitempty"`

	// File references.
	ClientCertificate string `yaml:"client_certificate,omitempty"`
	PrivateKey        string `yaml:"private_key,omitempty"`
	CA                string `yaml:"ca,omitempty"`
}

// LoadError describes a failure to load a profile.
type LoadError struct {
	File    string
	Network string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		b.WriteString(": ")
	}
	if e.Network != "" {
		fmt.Fprintf(&b, "network %q: ", e.Network)
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Parse parses profile YAML. File references resolve against dir.
func Parse(data []byte, dir string) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if len(f.Networks) == 0 {
		return nil, &LoadError{Message: "profile contains no networks"}
	}

	seen := make(map[string]bool)
	for i := range f.Networks {
		n := &f.Networks[i]
		if n.SSID == "" {
			return nil, &LoadError{Network: strconv.Itoa(i), Message: "ssid is required"}
		}
		if n.Name == "" {
			n.Name = n.SSID
		}
		if seen[n.Name] {
			return nil, &LoadError{Network: n.Name, Message: "duplicate profile name"}
		}
		seen[n.Name] = true
	}
	f.dir = dir
	return &f, nil
}

// Load reads and parses a profile file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	f, err := Parse(data, filepath.Dir(path))
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.File = path
		}
		return nil, err
	}
	return f, nil
}

// Find returns the network with the given name, or nil.
func (f *File) Find(name string) *Network {
	for i := range f.Networks {
		if f.Networks[i].Name == name {
			return &f.Networks[i]
		}
	}
	return nil
}

// Names returns the profile names in file order.
func (f *File) Names() []string {
	names := make([]string, len(f.Networks))
	for i, n := range f.Networks {
		names[i] = n.Name
	}
	return names
}

// Options converts a network profile to configure options, reading any
// referenced files.
func (f *File) Options(n *Network) (softap.ConfigureOptions, error) {
	opts := softap.ConfigureOptions{
		Index:         n.Index,
		SSID:          n.SSID,
		Security:      n.Security,
		Password:      n.Password,
		EAP:           n.EAP,
		InnerIdentity: n.InnerIdentity,
		OuterIdentity: n.OuterIdentity,
	}
	if n.Channel != nil {
		opts.Channel = strconv.Itoa(*n.Channel)
	}
	if n.PasswordEnv != "" {
		v, ok := os.LookupEnv(n.PasswordEnv)
		if !ok {
			return softap.ConfigureOptions{}, &LoadError{
				Network: n.Name,
				Message: fmt.Sprintf("environment variable %s is not set", n.PasswordEnv),
			}
		}
		opts.Password = v
	}

	var err error
	if opts.ClientCertificate, err = f.readRef(n, n.ClientCertificate); err != nil {
		return softap.ConfigureOptions{}, err
	}
	if opts.PrivateKey, err = f.readRef(n, n.PrivateKey); err != nil {
		return softap.ConfigureOptions{}, err
	}
	if opts.CA, err = f.readRef(n, n.CA); err != nil {
		return softap.ConfigureOptions{}, err
	}
	return opts, nil
}

func (f *File) readRef(n *Network, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &LoadError{Network: n.Name, Message: "failed to read " + ref, Cause: err}
	}
	return string(data), nil
}
