// Command softap-log is a tool for viewing and analyzing SoftAP protocol
// capture files.
//
// Capture files are written by softap-setup when run with the -protocol-log
// flag.
//
// Usage:
//
//	softap-log <command> [flags] <file.aplog>
//
// Commands:
//
//	view     View capture in human-readable format
//	export   Export capture to JSONL, CSV or YAML
//	filter   Filter capture and write to new file
//	stats    Show statistics about the capture
//
// Examples:
//
//	# View only wire-layer events
//	softap-log view -layer wire setup.aplog
//
//	# View all configure-ap exchanges
//	softap-log view -command configure-ap setup.aplog
//
//	# Export to YAML
//	softap-log export -format yaml setup.aplog
//
//	# Keep the events of one call
//	softap-log filter -call-id 3f1c2a9e-... -o call.aplog setup.aplog
//
//	# Show per-command timings and error counts
//	softap-log stats setup.aplog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/softap-protocol/softap-go/cmd/softap-log/commands"
)

const usage = `softap-log - SoftAP Protocol Capture Analyzer

Usage:
  softap-log <command> [flags] <file.aplog>

Commands:
  view     View capture in human-readable format
  export   Export capture to JSONL, CSV or YAML
  filter   Filter capture and write to new file
  stats    Show statistics about the capture

Use "softap-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// parseFile parses fs and returns the single log file argument.
func parseFile(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func newFlagSet(name, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "softap-log %s - %s\n\nUsage:\n  softap-log %s [flags] <file.aplog>\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}
	return fs
}

func runView(args []string) {
	fs := newFlagSet("view", "View capture in human-readable format")
	layer := fs.String("layer", "", "Filter by layer (transport, wire, session)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (message, state, error)")
	command := fs.String("command", "", "Filter by command name (e.g. scan-ap)")
	path := parseFile(fs, args)

	filter, err := commands.NewViewFilter(*layer, *direction, *category, *command)
	if err != nil {
		fail(err)
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := newFlagSet("export", "Export capture to JSONL, CSV or YAML")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv, yaml)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := parseFile(fs, args)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "Filter capture and write to new file")
	var opts commands.FilterOptions
	fs.StringVar(&opts.Output, "o", "", "Output file (required)")
	fs.StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&opts.CallID, "call-id", "", "Filter by call ID")
	fs.StringVar(&opts.DeviceID, "device-id", "", "Filter by device ID")
	fs.StringVar(&opts.Transport, "transport", "", "Filter by transport (tcp, http)")
	fs.StringVar(&opts.Command, "command", "", "Filter by command name")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, wire, session)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (message, state, error)")
	path := parseFile(fs, args)

	if opts.Output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunFilter(path, opts, os.Stdout); err != nil {
		fail(err)
	}
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show statistics about the capture")
	path := parseFile(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
