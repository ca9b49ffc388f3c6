package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/softap-protocol/softap-go/pkg/persistence"
)

func (r *Runner) scan(ctx context.Context, args []string) error {
	fs := r.flagSet("scan")
	if err := fs.Parse(args); err != nil {
		return err
	}

	results, err := r.client.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if r.json {
		return r.printJSON(results)
	}
	if len(results) == 0 {
		fmt.Fprintln(r.out, "No networks found.")
		return nil
	}

	tw := newTable(r.out, "SSID", "SECURITY", "CHANNEL", "RSSI", "MDR")
	for _, n := range results {
		tw.row(n.SSID, n.SecurityName(), strconv.Itoa(n.Channel), strconv.Itoa(n.RSSI), strconv.Itoa(n.MDR))
	}
	return tw.flush()
}

func (r *Runner) connect(ctx context.Context, args []string) error {
	fs := r.flagSet("connect")
	if err := fs.Parse(args); err != nil {
		return err
	}

	index := 0
	if fs.NArg() > 0 {
		n, err := strconv.Atoi(fs.Arg(0))
		if err != nil || n < 0 {
			return fmt.Errorf("%w: connect [index]: invalid index %q", ErrUsage, fs.Arg(0))
		}
		index = n
	}

	if err := r.client.Connect(ctx, index); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if r.json {
		return r.printJSON(map[string]any{"index": index, "ok": true})
	}
	fmt.Fprintf(r.out, "Device is joining network %d.\n", index)
	return nil
}

func (r *Runner) info(ctx context.Context, args []string) error {
	fs := r.flagSet("info")
	if err := fs.Parse(args); err != nil {
		return err
	}

	info, err := r.client.DeviceInfo(ctx)
	if err != nil {
		return fmt.Errorf("device-id: %w", err)
	}
	r.record(ctx, func(rec *persistence.DeviceRecord) {
		rec.Claimed = info.Claimed
	})

	if r.json {
		return r.printJSON(info)
	}
	fmt.Fprintf(r.out, "Device ID: %s\n", info.ID)
	fmt.Fprintf(r.out, "Claimed:   %s\n", yesNo(info.Claimed))
	return nil
}

func (r *Runner) publicKey(ctx context.Context, args []string) error {
	fs := r.flagSet("public-key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pem, err := r.client.PublicKey(ctx)
	if err != nil {
		return fmt.Errorf("public-key: %w", err)
	}
	r.record(ctx, func(rec *persistence.DeviceRecord) {
		rec.PublicKeyPEM = pem
	})

	if r.json {
		return r.printJSON(map[string]string{"public_key": pem})
	}
	fmt.Fprint(r.out, pem)
	return nil
}

func (r *Runner) claim(ctx context.Context, args []string) error {
	fs := r.flagSet("claim")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: claim <code>", ErrUsage)
	}

	if err := r.client.SetClaimCode(ctx, fs.Arg(0)); err != nil {
		return fmt.Errorf("claim: %w", err)
	}
	r.record(ctx, func(rec *persistence.DeviceRecord) {
		rec.ClaimCodeSet = true
	})

	if r.json {
		return r.printJSON(map[string]any{"ok": true})
	}
	fmt.Fprintln(r.out, "Claim code stored.")
	return nil
}

func (r *Runner) set(ctx context.Context, args []string) error {
	fs := r.flagSet("set")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: set <key> <value>", ErrUsage)
	}

	key, value := fs.Arg(0), fs.Arg(1)
	if err := r.client.Set(ctx, key, value); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	if r.json {
		return r.printJSON(map[string]any{"key": key, "ok": true})
	}
	fmt.Fprintf(r.out, "Set %s.\n", key)
	return nil
}

func (r *Runner) version(ctx context.Context, args []string) error {
	fs := r.flagSet("version")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := r.client.Version(ctx)
	if err != nil {
		return fmt.Errorf("version: %w", err)
	}
	if r.json {
		fmt.Fprintln(r.out, string(resp.Raw()))
		return nil
	}

	m, err := resp.Map()
	if err != nil {
		return err
	}
	if v, ok := m["v"]; ok {
		fmt.Fprintf(r.out, "Protocol version: %v\n", v)
		return nil
	}
	fmt.Fprintln(r.out, string(resp.Raw()))
	return nil
}
