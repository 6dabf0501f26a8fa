// Command antns registers AntNS domains, edits their records, manages owner
// keys and runs the local DNS responder and HTTP proxy.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"antns/internal/platform/config"
	"antns/internal/platform/logger"
)

const usage = `usage: antns [-v] <command> <subcommand> [flags] [args]

commands:
  names register <domain>
  names lookup [--unverified] <domain>
  names history <domain>
  names list
  names export <domain>
  names import --key <hex> <domain>
  records list --name <domain>
  records add --name <domain> <type> <name> <value>
  records delete --name <domain> <index>
  records update --name <domain> <index> <type> <name> <value>
  records set-target --name <domain> <target>
  keys backup | restore | status
  server start [--dns-addr a] [--http-addr a] [--upstream url] [--ttl d]
`

var (
	errUsage = errors.New("invalid usage")
	// errEphemeralBackend refuses network commands that would write to, or
	// read from, a network that disappears with the process.
	errEphemeralBackend = errors.New("the memory backend forgets every domain when the command exits; set ANTNS_BACKEND to redis or postgres")
)

// networkCommands read or write registers and need a persistent backend.
var networkCommands = map[string]bool{
	"names register":     true,
	"names lookup":       true,
	"names history":      true,
	"records list":       true,
	"records add":        true,
	"records delete":     true,
	"records update":     true,
	"records set-target": true,
	"server start":       true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("antns", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	verbose := global.Bool("v", false, "verbose logging")
	if err := global.Parse(args); err != nil {
		return 2
	}
	args = global.Args()
	if len(args) < 2 && !(len(args) == 1 && args[0] == "help") {
		fmt.Fprint(stderr, usage)
		return 2
	}
	if args[0] == "help" {
		fmt.Fprint(stdout, usage)
		return 0
	}

	cfg, err := config.FromEnv()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}

	level := cfg.LogLevel
	if !*verbose && args[0] != "server" && os.Getenv("ANTNS_LOG_LEVEL") == "" {
		level = "warn"
	}
	log := logger.New(level, cfg.LogFormat)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer a.Close()

	if err := a.dispatch(ctx, args, stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "%v\n\n%s", err, usage)
			return 2
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) dispatch(ctx context.Context, args []string, out io.Writer) error {
	group, sub, rest := args[0], args[1], args[2:]
	var cmd func(context.Context, io.Writer, []string) error
	switch group + " " + sub {
	case "names register":
		cmd = a.namesRegister
	case "names lookup":
		cmd = a.namesLookup
	case "names history":
		cmd = a.namesHistory
	case "names list":
		cmd = a.namesList
	case "names export":
		cmd = a.namesExport
	case "names import":
		cmd = a.namesImport
	case "records list":
		cmd = a.recordsList
	case "records add":
		cmd = a.recordsAdd
	case "records delete":
		cmd = a.recordsDelete
	case "records update":
		cmd = a.recordsUpdate
	case "records set-target":
		cmd = a.recordsSetTarget
	case "keys backup":
		cmd = a.keysBackup
	case "keys restore":
		cmd = a.keysRestore
	case "keys status":
		cmd = a.keysStatus
	case "server start":
		cmd = a.serverStart
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, group+" "+sub)
	}
	if a.ephemeral && networkCommands[group+" "+sub] {
		return fmt.Errorf("%s %s: %w", group, sub, errEphemeralBackend)
	}
	return cmd(ctx, out, rest)
}

// parseFlags parses args into fs and requires exactly want positional args.
func parseFlags(fs *flag.FlagSet, args []string, want int) ([]string, error) {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	if fs.NArg() != want {
		return nil, fmt.Errorf("%w: %s expects %d argument(s), got %d", errUsage, fs.Name(), want, fs.NArg())
	}
	return fs.Args(), nil
}
