// Command flagd serves the feature flags of one origin over HTTP and gRPC.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rentapp/x/configx"
	"github.com/rentapp/x/internal/config"
	"github.com/rentapp/x/internal/daemon"
	"github.com/rentapp/x/loggerx"
	"github.com/rentapp/x/slogx"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	fs := pflag.NewFlagSet("flagd", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env-file", ".env", "Environment file loaded before the configuration, if it exists.")
	config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not load %s: %w", *envFile, err)
	}

	c, _, err := config.Load(ctx, fs, configx.WithStandardValidationReporter(stderr))
	if err != nil {
		return err
	}

	level, err := slogx.ParseLevel(c.Log.Level)
	if err != nil {
		return err
	}
	h, err := slogx.NewHandler(stderr, c.Log.Format, level)
	if err != nil {
		return err
	}
	l := loggerx.New(h)

	d, err := daemon.New(ctx, l, c)
	if err != nil {
		l.WithError(err).Error(ctx, "could not start flagd")
		return err
	}
	return d.Serve(ctx)
}
