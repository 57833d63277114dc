// Command mhctl is an operator tool for the Model Health service.
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

	"github.com/joho/godotenv"

	"github.com/model-health/modelhealth-go/internal/config"
)

var errUsage = errors.New("usage")

const usage = `usage: mhctl <command> [flags]

commands:
  sessions                                 list sessions
  subjects                                 list subjects
  activities -session ID                   list a session's activities
  tags                                     list activity tags
  status -activity ID                      show processing status of an activity
  download -activity ID -types 1,2 -out D  download result files by type code
  calibrate -session ID -rows N -cols N -square MM [-placement perpendicular|ground]
  neutral -session ID -subject N           run neutral pose calibration
  analyze -activity ID -type T [-wait]     start a movement analysis
  token -tenant T [-scopes jobs:read]      issue a tracker API token
`

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], config.Load(), os.Stdout)
	switch {
	case errors.Is(err, flag.ErrHelp):
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	case errors.Is(err, errUsage):
		if err != errUsage {
			fmt.Fprintf(os.Stderr, "mhctl: %v\n\n", err)
		}
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	case err != nil:
		fmt.Fprintf(os.Stderr, "mhctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, cfg config.Config, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	action := cmd(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return action(ctx, &env{cfg: cfg, out: out})
}
