package flagsyncmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/flux-agi/flagsync_go/flagsync"
)

// Broadcaster publishes a Source's state and accepts context changes over
// watermill.
type Broadcaster struct {
	source Source
	pub    message.Publisher
	sub    message.Subscriber
	topics *Topics
	logger *slog.Logger
	now    func() time.Time
}

func NewBroadcaster(
	app string,
	source Source,
	pub message.Publisher,
	sub message.Subscriber,
	opts ...BroadcasterOption,
) *Broadcaster {
	options := &BroadcasterOptions{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Broadcaster{
		source: source,
		pub:    pub,
		sub:    sub,
		topics: NewTopics(app),
		logger: options.logger,
		now:    options.now,
	}
}

func (b *Broadcaster) Topics() *Topics {
	return b.topics
}

// Publish sends the current state on the state topic.
func (b *Broadcaster) Publish() error {
	msg, err := b.stateMessage()
	if err != nil {
		return err
	}

	if err := b.pub.Publish(b.topics.State(), msg); err != nil {
		return fmt.Errorf("could not publish state message: %w", err)
	}

	return nil
}

// Run publishes the state once and then after every change, until ctx is
// done or the source closes its subscriptions.
func (b *Broadcaster) Run(ctx context.Context) error {
	changes, unsubscribe := b.source.Subscribe()
	defer unsubscribe()

	if err := b.Publish(); err != nil {
		return err
	}

	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return nil
			}

			if err := b.Publish(); err != nil {
				b.logger.ErrorContext(ctx, "failed to broadcast flag state", slog.String("err", err.Error()))
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Register adds the request_state and set_context handlers to r.
func (b *Broadcaster) Register(r *message.Router) {
	r.AddHandler(
		"flagsync.request_state",
		b.topics.RequestState(),
		b.sub,
		b.topics.State(),
		b.pub,
		b.handleStateRequest,
	)

	r.AddNoPublisherHandler(
		"flagsync.set_context",
		b.topics.SetContext(),
		b.sub,
		b.handleSetContext,
	)
}

func (b *Broadcaster) handleStateRequest(_ *message.Message) ([]*message.Message, error) {
	msg, err := b.stateMessage()
	if err != nil {
		return nil, err
	}

	return []*message.Message{msg}, nil
}

func (b *Broadcaster) handleSetContext(msg *message.Message) error {
	var evalCtx flagsync.EvaluationContext
	if err := json.Unmarshal(msg.Payload, &evalCtx); err != nil {
		// A malformed payload will not get better on redelivery.
		b.logger.Warn("dropping malformed context message",
			slog.String("uuid", msg.UUID),
			slog.String("err", err.Error()),
		)

		return nil
	}

	changed := b.source.SetContext(evalCtx)
	b.logger.Debug("context message received",
		slog.String("uuid", msg.UUID),
		slog.Bool("changed", changed),
	)

	return nil
}

func (b *Broadcaster) stateMessage() (*message.Message, error) {
	state := NewStateMessage(b.topics.App(), b.source, b.now())

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}

	return message.NewMessage(watermill.NewUUID(), data), nil
}
