package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/flux-agi/flagsync_go/flagsync"
	"github.com/flux-agi/flagsync_go/internal/config"
	"github.com/flux-agi/flagsync_go/unleash"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "flagsync: %v\n", err)
		os.Exit(1)
	}
}

type command func(ctx context.Context, env *environment, args []string) error

var commands = map[string]command{
	"watch":  runWatch,
	"dump":   runDump,
	"serve":  runServe,
	"status": runStatus,
}

// environment is what every subcommand receives.
type environment struct {
	cfg    config.Config
	logger *slog.Logger
	stdout io.Writer
}

func run(args []string, stdout io.Writer) error {
	var (
		configPath string
		logLevel   string
	)

	flagSet := pflag.NewFlagSet("flagsync", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&configPath, "config", "", "config file (default: $FLAGSYNC_CONFIG or ~/.config/flagsync/config.toml)")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}

		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(flagSet)
		return errors.New("missing command")
	}

	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", rest[0])
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if logLevel != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return cmd(ctx, &environment{cfg: cfg, logger: logger, stdout: stdout}, rest[1:])
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `flagsync keeps a local view of feature flags in sync with Unleash.

Usage:
  flagsync [flags] <command> [command flags]

Commands:
  watch    show flags live in the terminal
  dump     print flags once and exit
  serve    publish flag state over NATS
  status   ask a running serve for its state

Flags:
%s`, flagSet.FlagUsages())
}

// newProvider builds a Provider owning an unleash client made from cfg.
func newProvider(env *environment) (*flagsync.Provider, error) {
	provider, err := flagsync.NewProvider(
		flagsync.WithLogger(env.logger),
		flagsync.WithContext(env.cfg.EvaluationContext()),
		flagsync.WithClientFactory(func(initial flagsync.EvaluationContext) (flagsync.FlagClient, error) {
			clientCfg := env.cfg.ClientConfig()
			clientCfg.Context = initial

			client, err := unleash.NewClient(clientCfg, unleash.WithLogger(env.logger))
			if err != nil {
				return nil, err
			}

			return client, nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return provider, nil
}

// waitSettled blocks until the provider stops loading or ctx is done.
func waitSettled(ctx context.Context, provider *flagsync.Provider) error {
	changes, unsubscribe := provider.Subscribe()
	defer unsubscribe()

	for provider.SyncState().Loading() {
		select {
		case _, ok := <-changes:
			if !ok {
				return errors.New("provider closed")
			}
		case <-ctx.Done():
			return fmt.Errorf("flags did not load: %w", ctx.Err())
		}
	}

	return nil
}
