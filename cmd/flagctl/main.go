// Command flagctl reads and changes feature flags, either directly in the
// configured storage or through a running flagd.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rentapp/x/configx"
	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/featureflagx"
	"github.com/rentapp/x/internal/config"
	"github.com/rentapp/x/loggerx"
	"github.com/rentapp/x/slogx"
	"github.com/spf13/pflag"
)

const usage = `Usage: flagctl [flags] <command> [flag name]

Commands:
  status   print the state of a flag
  enable   enable a flag
  disable  disable a flag
  toggle   flip a flag and print its new state
  list     print every known flag, or the stored ones with --stored
  watch    print flag changes until interrupted

The flag name defaults to %s.

Flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type command func(ctx context.Context, b backend, p *printer, ff featureflagx.FeatureFlag, stored bool) error

var commands = map[string]command{
	"status": func(ctx context.Context, b backend, p *printer, ff featureflagx.FeatureFlag, _ bool) error {
		return printState(ctx, p, ff, b.IsEnabled)
	},
	"enable": func(ctx context.Context, b backend, p *printer, ff featureflagx.FeatureFlag, _ bool) error {
		return printState(ctx, p, ff, b.Enable)
	},
	"disable": func(ctx context.Context, b backend, p *printer, ff featureflagx.FeatureFlag, _ bool) error {
		return printState(ctx, p, ff, b.Disable)
	},
	"toggle": func(ctx context.Context, b backend, p *printer, ff featureflagx.FeatureFlag, _ bool) error {
		return printState(ctx, p, ff, b.Toggle)
	},
	"list": func(ctx context.Context, b backend, p *printer, _ featureflagx.FeatureFlag, stored bool) error {
		if stored {
			flags, err := b.Stored(ctx)
			if err != nil {
				return err
			}
			return p.Names(flags)
		}
		flags, err := b.List(ctx)
		if err != nil {
			return err
		}
		return p.Flags(flags)
	},
	"watch": func(ctx context.Context, b backend, p *printer, _ featureflagx.FeatureFlag, _ bool) error {
		var printErr error
		err := b.Watch(ctx, func(ff featureflagx.FeatureFlag, enabled bool) {
			if err := p.Flag(ff, enabled); err != nil && printErr == nil {
				printErr = err
			}
		})
		if err != nil {
			return err
		}
		return printErr
	},
}

func printState(ctx context.Context, p *printer, ff featureflagx.FeatureFlag, op func(context.Context, featureflagx.FeatureFlag) (bool, error)) error {
	enabled, err := op(ctx, ff)
	if err != nil {
		return err
	}
	return p.Flag(ff, enabled)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("flagctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, usage, featureflagx.StaffEnrollment)
		fs.PrintDefaults()
	}
	config.RegisterFlags(fs)
	remote := fs.String("remote", "", "Base URL of a flagd, e.g. http://localhost:4480. The storage is used directly when empty.")
	output := fs.StringP("output", "o", OutputText, "Output format: text, json or yaml.")
	noColor := fs.Bool("no-color", false, "Disable colored output.")
	stored := fs.Bool("stored", false, "With list, print the flags present in the storage, known or not.")
	interval := fs.Duration("interval", 2*time.Second, "With watch and --remote, how often flagd is polled.")
	envFile := fs.String("env-file", ".env", "Environment file loaded before the configuration, if it exists.")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return errorx.InvalidArgumentErrorf("expected a command and an optional flag name, got %d arguments", fs.NArg())
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fs.Usage()
		return errorx.InvalidArgumentErrorf("unknown command %q", fs.Arg(0))
	}

	ff := featureflagx.StaffEnrollment
	if fs.NArg() == 2 {
		var err error
		if ff, err = featureflagx.ParseFeatureFlag(fs.Arg(1)); err != nil {
			return err
		}
	}

	p, err := newPrinter(stdout, *output, *noColor)
	if err != nil {
		return err
	}

	b, err := newBackend(ctx, fs, stderr, *remote, *envFile, *interval)
	if err != nil {
		return err
	}
	defer b.Close()

	return cmd(ctx, b, p, ff, *stored)
}

func newBackend(ctx context.Context, fs *pflag.FlagSet, stderr io.Writer, remote, envFile string, interval time.Duration) (backend, error) {
	if remote != "" {
		return newRemoteBackend(remote, interval), nil
	}

	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("could not load %s: %w", envFile, err)
	}

	c, _, err := config.Load(ctx, fs, configx.WithStandardValidationReporter(stderr))
	if err != nil {
		return nil, err
	}

	// Only warnings reach the terminal unless log.level asks for more.
	level := slog.LevelWarn
	if fs.Changed("log.level") {
		if level, err = slogx.ParseLevel(c.Log.Level); err != nil {
			return nil, err
		}
	}
	h, err := slogx.NewHandler(stderr, slogx.FormatText, level)
	if err != nil {
		return nil, err
	}

	return newLocalBackend(ctx, loggerx.New(h), c)
}
