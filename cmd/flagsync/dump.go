package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/flux-agi/flagsync_go/flagsync"
)

type dumpOutput struct {
	Status  flagsync.Status   `json:"status"`
	Error   string            `json:"error,omitempty"`
	Toggles []flagsync.Toggle `json:"toggles"`
}

func runDump(ctx context.Context, env *environment, args []string) error {
	var (
		asJSON  bool
		timeout time.Duration
	)

	flagSet := pflag.NewFlagSet("dump", pflag.ContinueOnError)
	flagSet.BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	flagSet.DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait for the first fetch")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}

		return err
	}

	provider, err := newProvider(env)
	if err != nil {
		return err
	}
	defer provider.Close()

	provider.Start(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := waitSettled(waitCtx, provider); err != nil {
		return err
	}

	return writeDump(env.stdout, provider.SyncState(), provider.Toggles(), asJSON)
}

func writeDump(w io.Writer, state flagsync.SyncState, toggles flagsync.ToggleSnapshot, asJSON bool) error {
	if asJSON {
		out := dumpOutput{
			Status:  state.Status(),
			Toggles: toggles.All(),
		}
		if state.Err != nil {
			out.Error = state.Err.Error()
		}

		if out.Toggles == nil {
			out.Toggles = []flagsync.Toggle{}
		}

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		if err := encoder.Encode(out); err != nil {
			return fmt.Errorf("failed to encode toggles: %w", err)
		}

		return nil
	}

	_, err := fmt.Fprintf(w, "%s\n\n%s\n", renderStatus(state), renderToggles(toggles.All()))

	return err
}
