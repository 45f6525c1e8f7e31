package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/spf13/pflag"

	"github.com/flux-agi/flagsync_go/flagsync"
	"github.com/flux-agi/flagsync_go/flagsyncmq"
)

func runStatus(ctx context.Context, env *environment, args []string) error {
	var (
		natsURL = env.cfg.NatsURL
		app     = env.cfg.AppName
		asJSON  bool
		timeout time.Duration
	)

	flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
	flagSet.StringVar(&natsURL, "nats", natsURL, "NATS server URL")
	flagSet.StringVar(&app, "app", app, "app name the server was started with")
	flagSet.BoolVar(&asJSON, "json", false, "print the raw state message")
	flagSet.DurationVar(&timeout, "timeout", 5*time.Second, "how long to wait for a reply")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}

		return err
	}

	wmLogger := watermill.NewSlogLogger(env.logger)

	pub, err := flagsyncmq.NatsPublisherFactory(natsURL, env.cfg.NatsName+"-status")(wmLogger)
	if err != nil {
		return fmt.Errorf("failed to create nats pub: %w", err)
	}
	defer closeLogged(ctx, env.logger, "publisher", pub.Close)

	sub, err := flagsyncmq.NatsSubscriberFactory(natsURL, env.cfg.NatsName+"-status")(wmLogger)
	if err != nil {
		return fmt.Errorf("failed to create nats sub: %w", err)
	}
	defer closeLogged(ctx, env.logger, "subscriber", sub.Close)

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	state, err := flagsyncmq.RequestState(reqCtx, pub, sub, flagsyncmq.NewTopics(app))
	if err != nil {
		return fmt.Errorf("failed to get state: %w", err)
	}

	return writeStatus(env.stdout, state, asJSON)
}

func writeStatus(w io.Writer, state *flagsyncmq.StateMessage, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		if err := encoder.Encode(state); err != nil {
			return fmt.Errorf("failed to encode state: %w", err)
		}

		return nil
	}

	syncState := flagsync.SyncState{Ready: state.Ready, Version: state.StateVersion}
	if state.Error != "" {
		syncState.Err = errors.New(state.Error)
	}

	_, err := fmt.Fprintf(w, "%s %s\n\n%s\n",
		state.App,
		renderStatus(syncState),
		renderToggles(state.Toggles),
	)

	return err
}
