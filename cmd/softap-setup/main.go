// Command softap-setup provisions a device running a SoftAP setup server.
//
// Connect the host to the device's setup access point first. The device
// answers at its gateway address (192.168.0.1 by default).
//
// Usage:
//
//	softap-setup [flags] <command> [args]
//	softap-setup [flags] interactive
//
// Flags:
//
//	-host string          Device address (default "192.168.0.1")
//	-port int             Device port (default 5609 for tcp, 80 for http)
//	-protocol string      Transport: tcp or http (default "tcp")
//	-timeout duration     Per-request timeout (default 8s)
//	-channel int          Default network channel (default 6)
//	-keepalive            Enable TCP keep-alive (default true)
//	-nodelay              Disable Nagle's algorithm (default true)
//	-protocol-log string  File path for protocol event logging (CBOR format)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-state-dir string     Directory for the provisioned-device record
//	-json                 Print JSON instead of tables
//
// Commands:
//
//	scan                  - List the networks the device can see
//	connect [index]       - Ask the device to join a configured network
//	info                  - Show the device ID and claim flag
//	public-key            - Fetch the device public key (PEM)
//	claim <code>          - Store a claim code on the device
//	set <key> <value>     - Store a key/value setting on the device
//	configure [flags]     - Send network credentials to the device
//	version               - Show the device protocol version
//	devices               - List devices recorded in the state directory
//	interactive           - Start an interactive shell
//
// Examples:
//
//	# List networks over HTTP
//	softap-setup -protocol http scan
//
//	# Configure a WPA2 network and join it
//	softap-setup configure -ssid home -security wpa2_aes -password secret -connect
//
//	# Configure from a profile and remember the device
//	softap-setup -state-dir ~/.softap configure -profile networks.yaml -network office
//
//	# Capture the protocol exchange for softap-log
//	softap-setup -protocol-log setup.aplog interactive
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/softap-protocol/softap-go/cmd/softap-setup/commands"
	"github.com/softap-protocol/softap-go/cmd/softap-setup/interactive"
	aplog "github.com/softap-protocol/softap-go/pkg/log"
	"github.com/softap-protocol/softap-go/pkg/persistence"
	"github.com/softap-protocol/softap-go/pkg/softap"
)

// Config holds the command-line configuration.
type Config struct {
	Host        string
	Port        int
	Protocol    string
	Timeout     time.Duration
	Channel     int
	KeepAlive   bool
	NoDelay     bool
	ProtocolLog string
	LogLevel    string
	StateDir    string
	JSON        bool
}

var config Config

func init() {
	defaults := softap.DefaultConfig()

	flag.StringVar(&config.Host, "host", defaults.Host, "Device address")
	flag.IntVar(&config.Port, "port", 0, "Device port (default 5609 for tcp, 80 for http)")
	flag.StringVar(&config.Protocol, "protocol", string(defaults.Protocol), "Transport: tcp or http")
	flag.DurationVar(&config.Timeout, "timeout", defaults.Timeout, "Per-request timeout")
	flag.IntVar(&config.Channel, "channel", defaults.Channel, "Default network channel")
	flag.BoolVar(&config.KeepAlive, "keepalive", defaults.KeepAlive, "Enable TCP keep-alive")
	flag.BoolVar(&config.NoDelay, "nodelay", defaults.NoDelay, "Disable Nagle's algorithm")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.StateDir, "state-dir", "", "Directory for the provisioned-device record")
	flag.BoolVar(&config.JSON, "json", false, "Print JSON instead of tables")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n  softap-setup [flags] <command> [args]\n\nCommands:\n")
		for _, c := range commands.Commands() {
			usage := c.Name
			if c.Args != "" {
				usage += " " + c.Args
			}
			fmt.Fprintf(os.Stderr, "  %-20s - %s\n", usage, c.Summary)
		}
		fmt.Fprintf(os.Stderr, "  %-20s - %s\n\nFlags:\n", "interactive", "Start an interactive shell")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	setupLogging(config.LogLevel)

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	clientConfig, closeLog, err := buildClientConfig(&config)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	defer closeLog()

	client, err := softap.NewClient(clientConfig)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	runner := commands.NewRunner(client, os.Stdout)
	runner.SetJSON(config.JSON)
	if config.StateDir != "" {
		runner.SetStore(persistence.NewDeviceStoreInDir(config.StateDir))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	name, args := flag.Arg(0), flag.Args()[1:]
	if name == "interactive" || name == "shell" {
		runInteractive(ctx, cancel, runner)
		return
	}

	if err := runner.Run(ctx, name, args); err != nil {
		if errors.Is(err, commands.ErrUnknownCommand) {
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", name)
			flag.Usage()
			os.Exit(2)
		}
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		closeLog()
		os.Exit(1)
	}
}

func runInteractive(ctx context.Context, cancel context.CancelFunc, runner *commands.Runner) {
	shell, err := interactive.New(runner)
	if err != nil {
		log.Fatalf("Failed to create interactive shell: %v", err)
	}
	// Redirect log output through readline to avoid interfering with input
	log.SetOutput(shell.Stdout())
	shell.Run(ctx, cancel)
}

// buildClientConfig converts the flags into a client configuration. The
// returned function closes the protocol log, if one was opened.
func buildClientConfig(c *Config) (softap.Config, func(), error) {
	cfg := softap.DefaultConfig()
	protocol, err := softap.ParseProtocol(c.Protocol)
	if err != nil {
		return cfg, func() {}, err
	}

	cfg.Host = c.Host
	cfg.Port = c.Port
	cfg.Protocol = protocol
	cfg.Timeout = c.Timeout
	cfg.Channel = c.Channel
	cfg.KeepAlive = c.KeepAlive
	cfg.NoDelay = c.NoDelay
	cfg.Logger = newOperationalLogger(c.LogLevel)
	if err := cfg.Validate(); err != nil {
		return cfg, func() {}, err
	}

	if c.ProtocolLog == "" {
		return cfg, func() {}, nil
	}

	fileLogger, err := aplog.NewFileLogger(c.ProtocolLog)
	if err != nil {
		return cfg, func() {}, fmt.Errorf("failed to create protocol logger: %w", err)
	}
	cfg.ProtocolLogger = fileLogger
	if c.LogLevel == "debug" {
		cfg.ProtocolLogger = aplog.NewMultiLogger(fileLogger, aplog.NewSlogAdapter(cfg.Logger))
	}
	log.Printf("Protocol logging to: %s", c.ProtocolLog)

	return cfg, func() {
		if err := fileLogger.Close(); err != nil {
			log.Printf("Warning: failed to close protocol log: %v", err)
		}
	}, nil
}

func setupLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case "warn", "error":
		log.SetFlags(log.Ltime)
	}
}

// newOperationalLogger returns the slog logger handed to the client.
func newOperationalLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
