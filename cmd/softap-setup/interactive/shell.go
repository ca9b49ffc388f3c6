// Package interactive provides the interactive command-line interface
// for softap-setup.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/softap-protocol/softap-go/cmd/softap-setup/commands"
	"github.com/softap-protocol/softap-go/pkg/softap"
)

// ErrUnterminatedQuote is returned for a line ending inside a quote or after
// a trailing backslash.
var ErrUnterminatedQuote = errors.New("unterminated quote or escape")

// Shell runs softap-setup commands read from a terminal.
type Shell struct {
	runner *commands.Runner
	rl     *readline.Instance
	out    io.Writer
}

// New creates a shell attached to the terminal.
func New(runner *commands.Runner) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "softap> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	s := NewWithWriter(runner, rl.Stdout())
	s.rl = rl
	return s, nil
}

// NewWithWriter creates a shell without a terminal. Lines are passed to
// Execute directly.
func NewWithWriter(runner *commands.Runner, out io.Writer) *Shell {
	runner.SetOutput(out)
	return &Shell{runner: runner, out: out}
}

func completer() *readline.PrefixCompleter {
	securities := make([]readline.PrefixCompleterInterface, 0)
	for _, name := range softap.SecurityNames() {
		securities = append(securities, readline.PcItem(name))
	}

	items := []readline.PrefixCompleterInterface{
		readline.PcItem("help"),
		readline.PcItem("json"),
		readline.PcItem("quit"),
	}
	for _, name := range commands.Names() {
		if name == "configure" {
			items = append(items, readline.PcItem(name,
				readline.PcItem("-ssid"),
				readline.PcItem("-security", securities...),
				readline.PcItem("-password"),
				readline.PcItem("-profile"),
				readline.PcItem("-network"),
				readline.PcItem("-index"),
				readline.PcItem("-channel"),
				readline.PcItem("-eap", readline.PcItem("peap"), readline.PcItem("tls")),
				readline.PcItem("-connect"),
			))
			continue
		}
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

// Stdout returns a writer that properly coordinates with the readline input.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		quit, err := s.Execute(ctx, line)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
		if quit {
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs one input line. It reports whether the shell should exit.
func (s *Shell) Execute(ctx context.Context, line string) (bool, error) {
	parts, err := splitArgs(line)
	if err != nil {
		return false, err
	}
	if len(parts) == 0 {
		return false, nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "json":
		s.cmdJSON(args)
	case "quit", "exit", "q":
		return true, nil
	default:
		err := s.runner.Run(ctx, cmd, args)
		if errors.Is(err, commands.ErrUnknownCommand) {
			fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
			return false, nil
		}
		return false, err
	}
	return false, nil
}

func (s *Shell) cmdJSON(args []string) {
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "on", "true", "1":
			s.runner.SetJSON(true)
		case "off", "false", "0":
			s.runner.SetJSON(false)
		default:
			fmt.Fprintln(s.out, "Usage: json [on|off]")
			return
		}
	} else {
		s.runner.SetJSON(!s.runner.JSON())
	}
	state := "off"
	if s.runner.JSON() {
		state = "on"
	}
	fmt.Fprintf(s.out, "JSON output: %s\n", state)
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, "\nSoftAP Setup Commands:")
	for _, c := range commands.Commands() {
		usage := c.Name
		if c.Args != "" {
			usage += " " + c.Args
		}
		fmt.Fprintf(s.out, "  %-24s - %s\n", usage, c.Summary)
	}
	fmt.Fprintln(s.out, `
  General:
    json [on|off]            - Toggle JSON output
    help                     - Show this help
    quit                     - Exit

  Arguments may be quoted: configure -ssid "My Network" -security wpa2_aes`)
}

// splitArgs splits a line into words. Single and double quotes group words;
// a backslash escapes the next character outside single quotes.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}

	if quote != 0 || escaped {
		return nil, ErrUnterminatedQuote
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args, nil
}
