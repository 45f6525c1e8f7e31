package flagsyncmq

import (
	"log/slog"
	"time"
)

type BroadcasterOptions struct {
	logger *slog.Logger
	now    func() time.Time
}

type BroadcasterOption func(*BroadcasterOptions)

func WithLogger(logger *slog.Logger) BroadcasterOption {
	return func(o *BroadcasterOptions) {
		o.logger = logger
	}
}

// WithClock replaces time.Now for message timestamps.
func WithClock(now func() time.Time) BroadcasterOption {
	return func(o *BroadcasterOptions) {
		o.now = now
	}
}
