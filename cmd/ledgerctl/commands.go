package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"ledger-socket/src/config"
	"ledger-socket/src/logger"
	"ledger-socket/src/models"
	"ledger-socket/src/protocol"
	"ledger-socket/src/socket"

	"github.com/google/subcommands"
)

// settings holds the global flags shared by every command.
var settings struct {
	configPath string
	host       string
	port       int
}

// commands are the one-shot ledger commands.
var commands = []subcommands.Command{
	&verbCmd{verb: models.OpGet, args: []string{"cedula"}, synopsis: "show an account"},
	&verbCmd{verb: models.OpPut, args: []string{"cedula", "nombres", "apellidos", "saldo"}, synopsis: "create or overwrite an account"},
	&verbCmd{verb: models.OpAdd, args: []string{"cedula", "monto"}, synopsis: "increase a balance"},
	&verbCmd{verb: models.OpSub, args: []string{"cedula", "monto"}, synopsis: "decrease a balance if it covers the amount"},
}

// newClient builds a socket client from config, with -host and -port on top.
func newClient() (*socket.Client, error) {
	cfg, err := config.NewConfig(settings.configPath)
	if err != nil {
		return nil, err
	}
	if settings.host != "" {
		cfg.Gateway.SocketHost = settings.host
	}
	if settings.port != 0 {
		cfg.Gateway.SocketPort = settings.port
	}
	return socket.NewClient(cfg.MConfig, logger.NewLogger(cfg.MConfig, "ledgerctl")), nil
}

// -----------------------------------------------------------------------------
// verbCmd sends one protocol command and prints the response line.
// -----------------------------------------------------------------------------

type verbCmd struct {
	verb     string
	args     []string
	synopsis string
	out      io.Writer
}

func (c *verbCmd) Name() string     { return strings.ToLower(c.verb) }
func (c *verbCmd) Synopsis() string { return c.synopsis }
func (c *verbCmd) Usage() string {
	placeholders := make([]string, len(c.args))
	for i, a := range c.args {
		placeholders[i] = "<" + a + ">"
	}
	return fmt.Sprintf("ledgerctl %s %s\n\n  Sends %s to the socket server and prints the JSON reply.\n",
		c.Name(), strings.Join(placeholders, " "), protocol.Format(c.verb, placeholders...))
}

func (c *verbCmd) SetFlags(*flag.FlagSet) {}

func (c *verbCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != len(c.args) {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	for _, a := range f.Args() {
		if !protocol.ValidField(a) {
			fmt.Fprintf(os.Stderr, "argument %q must not contain ':' or line breaks\n", a)
			return subcommands.ExitUsageError
		}
	}

	client, err := newClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return c.run(ctx, client, f.Args())
}

func (c *verbCmd) run(ctx context.Context, client *socket.Client, args []string) subcommands.ExitStatus {
	out := c.out
	if out == nil {
		out = os.Stdout
	}

	line, err := client.Send(ctx, protocol.Format(c.verb, args...))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(out, line)

	resp, err := protocol.Decode(line)
	if err != nil || !resp.Ok {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// -----------------------------------------------------------------------------
// replCmd keeps one connection open and relays typed command lines.
// -----------------------------------------------------------------------------

type replCmd struct {
	in  io.Reader
	out io.Writer
}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "interactive prompt over one connection" }
func (*replCmd) Usage() string {
	return `ledgerctl repl

  Reads raw command lines from stdin, sends each over a single persistent
  connection and prints every reply. End with Ctrl+D.
`
}

func (*replCmd) SetFlags(*flag.FlagSet) {}

func (c *replCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	client, err := newClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return c.run(ctx, client)
}

func (c *replCmd) run(ctx context.Context, client *socket.Client) subcommands.ExitStatus {
	fmt.Fprintf(c.out, "Connecting to %s\n", client.Address())
	session, err := client.Open(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer session.Close()

	fmt.Fprintln(c.out, "Ready. Examples:")
	fmt.Fprintln(c.out, "  GET:1234567890")
	fmt.Fprintln(c.out, "  PUT:1234567890:Juan:Nieve:150.75")
	fmt.Fprintln(c.out, "  ADD:1234567890:50")
	fmt.Fprintln(c.out, "  SUB:1234567890:25")

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			break
		}
		cmd := strings.TrimSpace(scanner.Text())
		if cmd == "" {
			continue
		}

		line, err := session.Send(ctx, cmd)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		fmt.Fprintln(c.out, line)
	}
	fmt.Fprintln(c.out)

	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
