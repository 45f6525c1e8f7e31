package flagsynctest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/flux-agi/flagsync_go/flagsyncmq"
)

// FakeStateServer answers state requests with fixed messages, one per app.
type FakeStateServer struct {
	pub message.Publisher
	sub message.Subscriber

	states map[string]flagsyncmq.StateMessage
}

func NewFakeStateServer(
	pub message.Publisher,
	sub message.Subscriber,
	states map[string]flagsyncmq.StateMessage,
) *FakeStateServer {
	return &FakeStateServer{
		pub:    pub,
		sub:    sub,
		states: states,
	}
}

// Run handles request_state messages until the returned stop function is
// called. Call stop before closing pub/sub.
func (f *FakeStateServer) Run(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	for app, state := range f.states {
		f.run(ctx, flagsyncmq.NewTopics(app), state)
	}

	return cancel
}

func (f *FakeStateServer) run(ctx context.Context, topics *flagsyncmq.Topics, state flagsyncmq.StateMessage) {
	messages, err := f.sub.Subscribe(ctx, topics.RequestState())
	if err != nil {
		panic(fmt.Errorf("could not subscribe to state requests: %w", err))
	}

	data, err := json.Marshal(state)
	if err != nil {
		panic(fmt.Errorf("failed to marshal state: %w", err))
	}

	go func() {
		for {
			select {
			case msg, ok := <-messages:
				if !ok {
					return
				}

				err := f.pub.Publish(topics.State(), message.NewMessage(watermill.NewUUID(), data))
				if err != nil {
					panic(fmt.Errorf("could not publish requested state: %w", err))
				}

				msg.Ack()
			case <-ctx.Done():
				return
			}
		}
	}()
}
