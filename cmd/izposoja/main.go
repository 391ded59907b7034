package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/erazemk/izposoja/internal/config"
	"github.com/erazemk/izposoja/internal/logger"
)

const usage = `Usage: izposoja [flags] <command> [args]

Commands:
  login -email <email> [-password <password>]   log in and store the access token
  logout                                        forget the access token
  whoami                                        show the logged-in user
  items [-p <page>]                             list catalog items
  show <item-id>                                show one item
  add -c <category> -n <name> [fields]          create an item (admin)
  edit <item-id> [fields]                       change an item (admin)
  rm <item-id>                                  delete an item (admin)
  checkout <item-id>                            check an item out to yourself
  return <item-id>                              return a checked-out item
  history <item-id>                             show an item's checkout history
  open <path>                                   check whether a page may be opened
  mine                                          list the items you have checked out
  checkouts                                     list every item currently checked out
  users                                         list user accounts (admin)
  useradd -name <n> -email <e> -password <p>    create a user account (admin)
          [-admin]
  userdel <user-id>                             delete a user account (admin)
  role <user-id> <Admin|User>                   change a user's role (admin)

Flags:
  -e, -env <path>     env file to load (default: .env)
  -v, -verbose        log at debug level
  -h, -help           show this help and exit

Configuration is read from IZPOSOJA_* environment variables;
IZPOSOJA_API_BASE_URL is required.
`

// errDenied marks a command the navigation guard refused.
var errDenied = errors.New("access denied")

// errUsage marks a malformed command line.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("izposoja", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var envFile string
	fs.StringVar(&envFile, "env", ".env", "")
	fs.StringVar(&envFile, "e", ".env", "")

	var verbose bool
	fs.BoolVar(&verbose, "verbose", false, "")
	fs.BoolVar(&verbose, "v", false, "")

	fs.Usage = func() {
		fmt.Fprint(stdout, usage)
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "missing command")
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			return 78
		}
		return 1
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	log := logger.New(cfg.Log, stderr, stderr)
	slog.SetDefault(log)

	a, err := newApp(ctx, cfg, log, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer a.close()

	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "unknown command: %s\n", fs.Arg(0))
		fs.Usage()
		return 2
	}

	err = cmd(ctx, a, fs.Args()[1:])
	a.logMetrics(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	case errors.Is(err, errDenied):
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 3
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
}
