// Package commands implements the softap-setup subcommands on top of a
// softap.Client. The same Runner serves one-shot invocations and the
// interactive shell.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/softap-protocol/softap-go/pkg/persistence"
	"github.com/softap-protocol/softap-go/pkg/softap"
)

var (
	// ErrUnknownCommand is returned by Run for names it does not know.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrUsage indicates missing or malformed command arguments.
	ErrUsage = errors.New("usage")
)

// Command describes one subcommand.
type Command struct {
	Name    string
	Args    string
	Summary string
	run     func(r *Runner, ctx context.Context, args []string) error
}

var commandTable = []Command{
	{Name: "scan", Summary: "List the networks the device can see", run: (*Runner).scan},
	{Name: "connect", Args: "[index]", Summary: "Ask the device to join a configured network", run: (*Runner).connect},
	{Name: "info", Summary: "Show the device ID and claim flag", run: (*Runner).info},
	{Name: "public-key", Summary: "Fetch the device public key (PEM)", run: (*Runner).publicKey},
	{Name: "claim", Args: "<code>", Summary: "Store a claim code on the device", run: (*Runner).claim},
	{Name: "set", Args: "<key> <value>", Summary: "Store a key/value setting on the device", run: (*Runner).set},
	{Name: "configure", Args: "[flags]", Summary: "Send network credentials to the device", run: (*Runner).configure},
	{Name: "version", Summary: "Show the device protocol version", run: (*Runner).version},
	{Name: "devices", Summary: "List devices recorded in the state directory", run: (*Runner).devices},
}

// Commands returns the subcommands in display order.
func Commands() []Command {
	out := make([]Command, len(commandTable))
	copy(out, commandTable)
	return out
}

// Names returns the subcommand names in display order.
func Names() []string {
	names := make([]string, len(commandTable))
	for i, c := range commandTable {
		names[i] = c.Name
	}
	return names
}

func lookup(name string) (Command, bool) {
	for _, c := range commandTable {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

// Runner executes subcommands against a device.
type Runner struct {
	client *softap.Client
	out    io.Writer
	json   bool
	store  *persistence.DeviceStore
}

// NewRunner creates a runner writing human-readable output to out.
func NewRunner(client *softap.Client, out io.Writer) *Runner {
	if out == nil {
		out = os.Stdout
	}
	return &Runner{client: client, out: out}
}

// SetOutput replaces the output writer.
func (r *Runner) SetOutput(w io.Writer) { r.out = w }

// SetJSON switches between JSON and table output.
func (r *Runner) SetJSON(enabled bool) { r.json = enabled }

// JSON reports whether JSON output is enabled.
func (r *Runner) JSON() bool { return r.json }

// SetStore enables recording device state. A nil store disables it.
func (r *Runner) SetStore(store *persistence.DeviceStore) { r.store = store }

// Client returns the device client.
func (r *Runner) Client() *softap.Client { return r.client }

// Run executes the named subcommand.
func (r *Runner) Run(ctx context.Context, name string, args []string) error {
	cmd, ok := lookup(strings.ToLower(name))
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return cmd.run(r, ctx, args)
}

func (r *Runner) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(r.out)
	return fs
}

func (r *Runner) printJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// record applies fn to the stored record of the current device. Failures are
// logged; the device operation has already succeeded.
func (r *Runner) record(ctx context.Context, fn func(*persistence.DeviceRecord)) {
	if r.store == nil {
		return
	}
	id := r.client.DeviceID()
	if id == "" {
		info, err := r.client.DeviceInfo(ctx)
		if err != nil {
			log.Printf("Warning: cannot identify device, state not saved: %v", err)
			return
		}
		id = info.ID
	}
	if id == "" {
		log.Printf("Warning: device reported an empty ID, state not saved")
		return
	}
	if _, err := r.store.Update(id, fn); err != nil {
		log.Printf("Warning: failed to save device state: %v", err)
	}
}

func (r *Runner) devices(_ context.Context, args []string) error {
	if r.store == nil {
		return fmt.Errorf("%w: devices requires -state-dir", ErrUsage)
	}
	state, err := r.store.Load()
	if err != nil {
		return err
	}
	if r.json {
		return r.printJSON(state.Devices)
	}
	if len(state.Devices) == 0 {
		fmt.Fprintln(r.out, "No devices recorded.")
		return nil
	}

	sort.Slice(state.Devices, func(i, j int) bool {
		return state.Devices[i].DeviceID < state.Devices[j].DeviceID
	})
	tw := newTable(r.out, "DEVICE", "CLAIMED", "KEY", "NETWORKS", "LAST SEEN")
	for _, d := range state.Devices {
		ssids := make([]string, 0, len(d.Networks))
		for _, n := range d.Networks {
			ssids = append(ssids, fmt.Sprintf("%d:%s", n.Index, n.SSID))
		}
		tw.row(d.DeviceID, yesNo(d.Claimed), yesNo(d.PublicKeyPEM != ""),
			strings.Join(ssids, ","), d.LastSeenAt.Format("2006-01-02 15:04:05"))
	}
	return tw.flush()
}
