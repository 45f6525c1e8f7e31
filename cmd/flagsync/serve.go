package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/spf13/pflag"

	"github.com/flux-agi/flagsync_go/flagsyncmq"
)

func runServe(ctx context.Context, env *environment, args []string) error {
	natsURL := env.cfg.NatsURL

	flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flagSet.StringVar(&natsURL, "nats", natsURL, "NATS server URL")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}

		return err
	}

	wmLogger := watermill.NewSlogLogger(env.logger)

	pub, err := flagsyncmq.NatsPublisherFactory(natsURL, env.cfg.NatsName)(wmLogger)
	if err != nil {
		return fmt.Errorf("failed to create nats pub: %w", err)
	}
	defer closeLogged(ctx, env.logger, "publisher", pub.Close)

	sub, err := flagsyncmq.NatsSubscriberFactory(natsURL, env.cfg.NatsName)(wmLogger)
	if err != nil {
		return fmt.Errorf("failed to create nats sub: %w", err)
	}
	defer closeLogged(ctx, env.logger, "subscriber", sub.Close)

	provider, err := newProvider(env)
	if err != nil {
		return err
	}
	defer provider.Close()

	broadcaster := flagsyncmq.NewBroadcaster(env.cfg.AppName, provider, pub, sub,
		flagsyncmq.WithLogger(env.logger),
	)

	router := flagsyncmq.DefaultRouterFactory(wmLogger)
	broadcaster.Register(router)

	provider.Start(ctx)

	go func() {
		if err := broadcaster.Run(ctx); err != nil {
			env.logger.ErrorContext(ctx, "failed to broadcast state", slog.String("err", err.Error()))
		}
	}()

	env.logger.InfoContext(ctx, "serving flag state",
		slog.String("app", env.cfg.AppName),
		slog.String("topic", broadcaster.Topics().State()),
	)

	if err := router.Run(ctx); err != nil {
		return fmt.Errorf("failed to run router: %w", err)
	}

	return nil
}

func closeLogged(ctx context.Context, logger *slog.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.ErrorContext(ctx, "failed to close "+what, slog.String("err", err.Error()))
	}
}
