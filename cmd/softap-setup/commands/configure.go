package commands

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/softap-protocol/softap-go/pkg/persistence"
	"github.com/softap-protocol/softap-go/pkg/profile"
	"github.com/softap-protocol/softap-go/pkg/softap"
)

type configureFlags struct {
	profile  string
	network  string
	connect  bool
	certFile string
	keyFile  string
	caFile   string
	opts     softap.ConfigureOptions
}

func (r *Runner) configureFlagSet(cf *configureFlags) *flag.FlagSet {
	fs := r.flagSet("configure")
	fs.StringVar(&cf.profile, "profile", "", "Network profile file (YAML)")
	fs.StringVar(&cf.network, "network", "", "Profile network name (default: first in file)")
	fs.BoolVar(&cf.connect, "connect", false, "Join the network after configuring it")
	fs.IntVar(&cf.opts.Index, "index", 0, "Configuration slot")
	fs.StringVar(&cf.opts.SSID, "ssid", "", "Network SSID")
	fs.StringVar(&cf.opts.Security, "security", "", "Security type name or code (empty = open): "+strings.Join(softap.SecurityNames(), ", "))
	fs.StringVar(&cf.opts.Password, "password", "", "Network password")
	fs.StringVar(&cf.opts.Channel, "channel", "", "Network channel (default: session channel)")
	fs.StringVar(&cf.opts.EAP, "eap", "", "EAP type for enterprise security (peap, tls)")
	fs.StringVar(&cf.opts.InnerIdentity, "identity", "", "PEAP inner identity")
	fs.StringVar(&cf.opts.OuterIdentity, "outer-identity", "", "Anonymous outer identity")
	fs.StringVar(&cf.certFile, "cert", "", "EAP-TLS client certificate file (PEM)")
	fs.StringVar(&cf.keyFile, "key", "", "EAP-TLS private key file (PEM)")
	fs.StringVar(&cf.caFile, "ca", "", "Root CA certificate file (PEM)")
	return fs
}

// resolve builds the configure options. Explicitly set flags override the
// profile.
func (cf *configureFlags) resolve(fs *flag.FlagSet) (softap.ConfigureOptions, error) {
	opts := cf.opts
	if cf.profile != "" {
		file, err := profile.Load(cf.profile)
		if err != nil {
			return opts, err
		}
		n := &file.Networks[0]
		if cf.network != "" {
			if n = file.Find(cf.network); n == nil {
				return opts, fmt.Errorf("%w: network %q not in %s (have %s)",
					ErrUsage, cf.network, cf.profile, strings.Join(file.Names(), ", "))
			}
		}
		if opts, err = file.Options(n); err != nil {
			return opts, err
		}
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "index":
				opts.Index = cf.opts.Index
			case "ssid":
				opts.SSID = cf.opts.SSID
			case "security":
				opts.Security = cf.opts.Security
			case "password":
				opts.Password = cf.opts.Password
			case "channel":
				opts.Channel = cf.opts.Channel
			case "eap":
				opts.EAP = cf.opts.EAP
			case "identity":
				opts.InnerIdentity = cf.opts.InnerIdentity
			case "outer-identity":
				opts.OuterIdentity = cf.opts.OuterIdentity
			}
		})
	}

	files := []struct {
		path string
		dst  *string
	}{
		{cf.certFile, &opts.ClientCertificate},
		{cf.keyFile, &opts.PrivateKey},
		{cf.caFile, &opts.CA},
	}
	for _, f := range files {
		if f.path == "" {
			continue
		}
		data, err := os.ReadFile(f.path)
		if err != nil {
			return opts, fmt.Errorf("read %s: %w", f.path, err)
		}
		*f.dst = string(data)
	}
	return opts, nil
}

func (r *Runner) configure(ctx context.Context, args []string) error {
	var cf configureFlags
	fs := r.configureFlagSet(&cf)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: configure takes flags only, got %q", ErrUsage, fs.Arg(0))
	}

	opts, err := cf.resolve(fs)
	if err != nil {
		return err
	}
	if opts.SSID == "" {
		return fmt.Errorf("%w: configure requires -ssid or -profile", ErrUsage)
	}

	if !r.client.HasPublicKey() && !r.restoreKey(ctx) {
		pem, err := r.client.PublicKey(ctx)
		if err != nil {
			return fmt.Errorf("public-key: %w", err)
		}
		r.record(ctx, func(rec *persistence.DeviceRecord) {
			rec.PublicKeyPEM = pem
		})
	}

	if err := r.client.Configure(ctx, opts); err != nil {
		return fmt.Errorf("configure-ap: %w", err)
	}

	var security uint32
	if strings.TrimSpace(opts.Security) != "" {
		security, _ = softap.SecurityValue(opts.Security)
	}
	r.record(ctx, func(rec *persistence.DeviceRecord) {
		rec.SetNetwork(persistence.NetworkRecord{
			Index:        opts.Index,
			SSID:         opts.SSID,
			Security:     security,
			ConfiguredAt: time.Now(),
		})
	})

	if cf.connect {
		if err := r.client.Connect(ctx, opts.Index); err != nil {
			return fmt.Errorf("connect-ap: %w", err)
		}
	}

	if r.json {
		return r.printJSON(map[string]any{
			"index":     opts.Index,
			"ssid":      opts.SSID,
			"security":  security,
			"connected": cf.connect,
		})
	}
	name, ok := softap.SecurityLookup(security)
	if !ok {
		name = "0x" + strconv.FormatUint(uint64(security), 16)
	}
	fmt.Fprintf(r.out, "Configured %q (%s) in slot %d.\n", opts.SSID, name, opts.Index)
	if cf.connect {
		fmt.Fprintln(r.out, "Device is joining the network.")
	}
	return nil
}

// restoreKey loads the device key saved by an earlier session. It reports
// false when the key still has to be fetched from the device.
func (r *Runner) restoreKey(ctx context.Context) bool {
	if r.store == nil {
		return false
	}
	id := r.client.DeviceID()
	if id == "" {
		info, err := r.client.DeviceInfo(ctx)
		if err != nil {
			return false
		}
		id = info.ID
	}
	rec, err := r.store.Get(id)
	if err != nil || rec == nil || rec.PublicKeyPEM == "" {
		return false
	}
	if err := r.client.RestorePublicKey(rec.PublicKeyPEM); err != nil {
		log.Printf("Warning: stored public key for %s is unusable, fetching: %v", id, err)
		return false
	}
	return true
}
