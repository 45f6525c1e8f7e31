package flagsyncmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/flux-agi/flagsync_go/flagsync"
)

// RequestState asks a Broadcaster for its state and waits for the reply.
//
// It subscribes on the state topic before publishing the request, so the
// reply cannot be missed. Any state message counts as the reply. Use
// context.WithTimeout to bound the wait.
func RequestState(
	ctx context.Context,
	pub message.Publisher,
	sub message.Subscriber,
	topics *Topics,
) (*StateMessage, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages, err := sub.Subscribe(ctx, topics.State())
	if err != nil {
		return nil, fmt.Errorf("could not subscribe to state: %w", err)
	}

	err = pub.Publish(
		topics.RequestState(),
		message.NewMessage(watermill.NewUUID(), []byte(topics.App())),
	)
	if err != nil {
		return nil, fmt.Errorf("could not publish state request: %w", err)
	}

	select {
	case msg := <-messages:
		msg.Ack()

		var state StateMessage
		if err := json.Unmarshal(msg.Payload, &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state: %w", err)
		}

		return &state, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("context is canceled before the state message is received: %w", ctx.Err())
	}
}

// PublishContext asks a remote Broadcaster to switch its evaluation context.
func PublishContext(pub message.Publisher, topics *Topics, evalCtx flagsync.EvaluationContext) error {
	data, err := json.Marshal(evalCtx)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	err = pub.Publish(topics.SetContext(), message.NewMessage(watermill.NewUUID(), data))
	if err != nil {
		return fmt.Errorf("could not publish context: %w", err)
	}

	return nil
}
