package flagsyncmq

import "fmt"

// Topics names the subjects one application's flag state travels on.
type Topics struct {
	app string
}

func NewTopics(app string) *Topics {
	return &Topics{app: app}
}

func (t *Topics) App() string { return t.app }

// State carries StateMessage snapshots, both broadcast and requested ones.
func (t *Topics) State() string { return fmt.Sprintf("flagsync.%s.state", t.app) }

func (t *Topics) RequestState() string {
	return fmt.Sprintf("flagsync.%s.request_state", t.app)
}

// SetContext carries a JSON encoded flagsync.EvaluationContext.
func (t *Topics) SetContext() string {
	return fmt.Sprintf("flagsync.%s.set_context", t.app)
}
