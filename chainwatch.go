// Package chainwatch is a library for indexing contract events and blocks
// across one or more EVM-compatible chains. Hosts build a Config, register
// event and block handlers against it, and call Start.
package chainwatch

import (
	"fmt"

	"github.com/chainwatch/chainwatch/rpcpipe"
	"github.com/chainwatch/chainwatch/scheduler"
)

// Re-exported so callers never need to import the scheduler package
// directly to name an execution mode.
type ExecutionMode = scheduler.ExecutionMode

const (
	Parallel = scheduler.Parallel
	Serial   = scheduler.Serial
)

// EventHandler and BlockHandler are re-exported for the same reason.
type (
	EventHandler = scheduler.EventHandler
	BlockHandler = scheduler.BlockHandler
	EventContext = scheduler.EventContext
	BlockContext = scheduler.BlockContext
)

// Network names an upstream RPC endpoint and its rate budget.
type Network = rpcpipe.Network

// DataSource is the static configuration for one event handler: the network
// it watches, the contract address, its starting cursor, and optional
// overrides. Step is the block-range width advanced per tick; zero means
// "use scheduler.DefaultEventStep", resolved at registration time.
type DataSource struct {
	Network       string
	Address       string
	StartBlock    uint64
	Step          uint64
	ExecutionMode ExecutionMode
}

// Template is a reusable DataSource blueprint, instantiated at runtime by an
// already-running handler via the template channel.
type Template struct {
	Network       string
	ExecutionMode ExecutionMode
}

// BlockHandlerConfig is the static configuration for one block handler. Step
// is the block stride sampled per tick; zero means "use
// scheduler.DefaultEventStep", resolved at registration time.
type BlockHandlerConfig struct {
	Network       string
	StartBlock    uint64
	Step          uint64
	ExecutionMode ExecutionMode
}

// Config is the structured document produced by an external loader (see
// cmd/chainwatch for a concrete YAML one): four mappings keyed by handler
// name. The orchestrator consumes entries by removing them from these maps
// as handlers register, so double-registration is detectable.
type Config struct {
	Networks      map[string]Network
	DataSources   map[string]DataSource
	Templates     map[string]Template
	BlockHandlers map[string]BlockHandlerConfig
}

// ConfigError wraps a failure constructing an Indexer from a Config.
type ConfigError struct{ Err error }

func (e *ConfigError) Error() string { return fmt.Sprintf("chainwatch: config error: %v", e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// NotFound is returned when a handler name has no matching catalog entry —
// either it was never configured, or it has already been consumed by a
// prior registration.
type NotFound struct{ Name string }

func (e *NotFound) Error() string { return fmt.Sprintf("chainwatch: handler %q not found", e.Name) }

// NetworkNotFound is returned when a DataSource/Template/BlockHandlerConfig
// names a network absent from Config.Networks.
type NetworkNotFound struct{ Name string }

func (e *NetworkNotFound) Error() string {
	return fmt.Sprintf("chainwatch: network %q not found", e.Name)
}

// InvalidAddress is returned when a DataSource's address string does not
// parse as an EVM address. Template instantiations carry their address as
// raw bytes and are not validated.
type InvalidAddress struct{ Address string }

func (e *InvalidAddress) Error() string {
	return fmt.Sprintf("chainwatch: invalid address %q", e.Address)
}
