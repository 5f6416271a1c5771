// Package templates implements the template channel: the runtime
// feedback path that lets an active event handler spawn a new event
// handler at a concrete address and start block.
package templates

import "context"

// DefaultCapacity is the queue depth: non-zero, since handlers may be
// invoked recursively and a zero-capacity channel would deadlock them.
const DefaultCapacity = 128

// Instance is a single spawn request: instantiate the named template at a
// concrete address and start block.
type Instance struct {
	Name       string
	Address    []byte
	StartBlock uint64
}

// Manager wraps the sender half of the template channel. Workers hold only
// a Manager, never a reference back to the orchestrator, to avoid a hard
// ownership cycle between the receive loop and the workers it spawns.
type Manager struct {
	ch chan Instance
}

// NewManager creates a Manager and returns it along with the receive-only
// channel the orchestrator's event loop should drain.
func NewManager() (*Manager, <-chan Instance) {
	ch := make(chan Instance, DefaultCapacity)
	return &Manager{ch: ch}, ch
}

// Start enqueues inst. It blocks if the channel is full and fails only if
// ctx is done before a slot becomes available.
func (m *Manager) Start(ctx context.Context, inst Instance) error {
	select {
	case m.ch <- inst:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
