// Package scheduler implements the driver loops for event handlers (which
// walk block ranges) and block handlers (which sample one block per stride):
// each handler gets one long-running
// worker holding its own cursor, consulting a head watcher and a Provider,
// and invoking the handler once per matching unit of work.
package scheduler

import (
	"context"
	"time"

	"github.com/chainwatch/chainwatch/progress"
	"github.com/chainwatch/chainwatch/rpcpipe"
	"github.com/chainwatch/chainwatch/templates"
)

// ExecutionMode selects whether dispatches within one worker run serially or
// are fanned out as independent fire-and-forget tasks.
type ExecutionMode int

const (
	// Parallel spawns one goroutine per dispatched unit of work. Default.
	Parallel ExecutionMode = iota
	// Serial invokes the handler inline, preserving RPC-returned order.
	Serial
)

// DefaultEventStep is the block-range width an event worker advances by
// per tick when the DataSource does not override it.
const DefaultEventStep = 10_000

// IdleBackoff is how long a worker sleeps after a tick that made no
// progress (caught up with the head, or a transient transport error).
const IdleBackoff = 5 * time.Second

// EventContext is passed to an EventHandler for each matched log.
type EventContext struct {
	Log             rpcpipe.Log
	Provider        rpcpipe.API
	Templates       *templates.Manager
	ContractAddress []byte
}

// BlockContext is passed to a BlockHandler for each dispatched block number.
type BlockContext struct {
	Provider    rpcpipe.API
	Templates   *templates.Manager
	BlockNumber uint64
}

// Block lazily fetches the block body through the cached/rate-limited
// provider.
func (c BlockContext) Block(ctx context.Context, hydrate bool) (*rpcpipe.Block, error) {
	return c.Provider.GetBlockByNumber(ctx, c.BlockNumber, hydrate)
}

// EventHandler is the capability an indexer consumer implements to react to
// a specific contract event signature.
type EventHandler interface {
	Handle(ctx context.Context, ec EventContext) error
	Name() string
	EventSignature() string
}

// BlockHandler is the capability an indexer consumer implements to react to
// blocks sampled at a fixed stride (start, start+step, start+2*step, ...).
type BlockHandler interface {
	Handle(ctx context.Context, bc BlockContext) error
	Name() string
}

// Reporter is the narrow slice of the progress plane a worker needs.
type Reporter interface {
	Send(progress.Update)
}
